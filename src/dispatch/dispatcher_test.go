package dispatch

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/peers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode starts a test server and registers its shutdown with the test.
func fakeNode(t *testing.T, handler http.HandlerFunc) string {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

// deadNode returns the URL of a server that has already been shut down, so
// connecting to it fails.
func deadNode(t *testing.T) string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func jsonNode(t *testing.T, status int, body string) string {
	return fakeNode(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func newTestDispatcher(t *testing.T, conf *Config, urls ...string) *Dispatcher {
	nodes := make([]*peers.Node, len(urls))
	for i, u := range urls {
		nodes[i] = peers.NewNode(u)
	}
	return NewDispatcher(peers.NewRegistry(nodes), conf, common.NewTestEntry(t, common.TestLogLevel))
}

func TestNextOffsetSequential(t *testing.T) {
	d := newTestDispatcher(t, nil, "a:1", "b:2", "c:3")

	for i := 0; i < 7; i++ {
		assert.Equal(t, i%3, d.NextOffset())
	}
}

func TestNextOffsetConcurrent(t *testing.T) {
	d := newTestDispatcher(t, nil, "a:1", "b:2", "c:3")

	const calls = 300

	var (
		mu     sync.Mutex
		counts = map[int]int{}
		wg     sync.WaitGroup
	)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := d.NextOffset()
			mu.Lock()
			counts[o]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{0: 100, 1: 100, 2: 100}, counts)
	// the cursor advanced once per call
	assert.Equal(t, 0, d.NextOffset())
}

func TestSelectOrder(t *testing.T) {
	d := newTestDispatcher(t, nil, "a:1", "b:2", "c:3")

	urls := func(nodes []*peers.Node) []string {
		res := make([]string, len(nodes))
		for i, n := range nodes {
			res[i] = n.URL()
		}
		return res
	}

	assert.Equal(t, []string{"http://a:1", "http://b:2", "http://c:3"}, urls(d.SelectOrder(RoundRobin)))
	assert.Equal(t, []string{"http://b:2", "http://c:3", "http://a:1"}, urls(d.SelectOrder(RoundRobin)))

	// Static does not move the cursor
	assert.Equal(t, []string{"http://a:1", "http://b:2", "http://c:3"}, urls(d.SelectOrder(Static)))
	assert.Equal(t, []string{"http://c:3", "http://a:1", "http://b:2"}, urls(d.SelectOrder(RoundRobin)))
}

func TestGetFailover(t *testing.T) {
	good := jsonNode(t, http.StatusOK, `{"length":1}`)
	d := newTestDispatcher(t, nil, deadNode(t), deadNode(t), good)

	resp, err := d.Get(context.Background(), "/chain")
	require.NoError(t, err)

	assert.Equal(t, good, resp.Node)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"length":1}`, string(resp.Body))

	require.Len(t, resp.Failures, 2)
	for _, f := range resp.Failures {
		assert.Equal(t, TransportFailure, f.Kind)
		assert.NotEmpty(t, f.Err)
	}
}

func TestGetRequiresExactly200(t *testing.T) {
	created := jsonNode(t, http.StatusCreated, `{}`)
	good := jsonNode(t, http.StatusOK, `{"ok":true}`)
	d := newTestDispatcher(t, nil, created, good)

	resp, err := d.Get(context.Background(), "/chain")
	require.NoError(t, err)

	assert.Equal(t, good, resp.Node)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, RemoteStatusFailure, resp.Failures[0].Kind)
	assert.Equal(t, http.StatusCreated, resp.Failures[0].Status)
}

func TestPostAccepts2xx(t *testing.T) {
	var received map[string]interface{}

	node := fakeNode(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions/new", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, _ := ioutil.ReadAll(r.Body)
		json.Unmarshal(data, &received)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Transaction will be added to Block 2"}`))
	})

	d := newTestDispatcher(t, nil, node)

	payload := map[string]interface{}{"sender": "A", "recipient": "B", "amount": 5}
	resp, err := d.BroadcastFirstSuccess(context.Background(), "/transactions/new", payload)
	require.NoError(t, err)

	assert.Equal(t, node, resp.Node)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Empty(t, resp.Failures)
	assert.Equal(t, "A", received["sender"])
	assert.EqualValues(t, 5, received["amount"])
}

func TestTotalFailure(t *testing.T) {
	urls := []string{}
	for i := 0; i < 4; i++ {
		urls = append(urls, jsonNode(t, http.StatusInternalServerError, "boom"))
	}
	d := newTestDispatcher(t, nil, urls...)

	resp, err := d.Get(context.Background(), "/chain")
	assert.Nil(t, resp)
	require.Error(t, err)

	agg, ok := AsAggregateFailure(err)
	require.True(t, ok)
	assert.Equal(t, http.MethodGet, agg.Method)
	assert.Equal(t, "/chain", agg.Path)
	require.Len(t, agg.Failures, 4)

	// each node visited exactly once, in rotation order
	for i, f := range agg.Failures {
		assert.Equal(t, urls[i], f.Node)
		assert.Equal(t, RemoteStatusFailure, f.Kind)
		assert.Equal(t, http.StatusInternalServerError, f.Status)
		assert.Equal(t, "boom", f.Detail)
	}
}

func TestFailureDetailIsTruncated(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	d := newTestDispatcher(t, nil, jsonNode(t, http.StatusBadRequest, string(long)))

	_, err := d.Post(context.Background(), "/mine", map[string]string{})
	agg, ok := AsAggregateFailure(err)
	require.True(t, ok)
	require.Len(t, agg.Failures, 1)
	assert.Len(t, agg.Failures[0].Detail, 200)
}

func TestDecodeFailure(t *testing.T) {
	garbage := fakeNode(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})
	good := jsonNode(t, http.StatusOK, `[]`)
	d := newTestDispatcher(t, nil, garbage, good)

	resp, err := d.Get(context.Background(), "/nodes")
	require.NoError(t, err)
	assert.Equal(t, good, resp.Node)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, DecodeFailure, resp.Failures[0].Kind)
}

func TestReadTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := fakeNode(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	good := jsonNode(t, http.StatusOK, `{}`)

	conf := &Config{
		ConnectTimeout: time.Second,
		ReadTimeout:    50 * time.Millisecond,
	}
	d := newTestDispatcher(t, conf, slow, good)

	resp, err := d.Get(context.Background(), "/chain")
	require.NoError(t, err)
	assert.Equal(t, good, resp.Node)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, TransportFailure, resp.Failures[0].Kind)
}

func TestRotationAcrossCalls(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []string
	)

	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits = append(hits, name)
			mu.Unlock()
			w.Write([]byte(`{}`))
		}
	}

	d := newTestDispatcher(t, nil,
		fakeNode(t, handler("a")),
		fakeNode(t, handler("b")),
		fakeNode(t, handler("c")),
	)

	for i := 0; i < 6; i++ {
		_, err := d.Get(context.Background(), "/chain")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, hits)
}

func TestEmptyRegistry(t *testing.T) {
	d := newTestDispatcher(t, nil)

	_, err := d.Get(context.Background(), "/chain")
	agg, ok := AsAggregateFailure(err)
	require.True(t, ok)
	assert.Empty(t, agg.Failures)
	assert.Contains(t, err.Error(), "no nodes configured")
}

func TestFailureJSON(t *testing.T) {
	data, err := json.Marshal(Failure{Node: "http://a:1", Kind: RemoteStatusFailure, Status: 500, Detail: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"node":"http://a:1","kind":"status","status":500,"detail":"boom"}`, string(data))
}
