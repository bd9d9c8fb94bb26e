package service

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mosaicnetworks/ledgerfront/src/chain"
	"github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
	"github.com/mosaicnetworks/ledgerfront/src/indexer"
	"github.com/mosaicnetworks/ledgerfront/src/peers"
	"github.com/mosaicnetworks/ledgerfront/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ledgerNode fakes the HTTP API of a ledger node.
func ledgerNode(t *testing.T, name string, status int) string {
	mux := http.NewServeMux()

	reply := func(body interface{}) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(body)
		}
	}

	mux.HandleFunc("/ping", reply(map[string]string{"node": name}))
	mux.HandleFunc("/chain", reply(map[string]interface{}{"chain": []interface{}{}, "length": 0, "node": name}))
	mux.HandleFunc("/nodes", reply(map[string]interface{}{"nodes": []string{}}))
	mux.HandleFunc("/mine", reply(map[string]interface{}{"message": "New Block Forged", "node": name}))
	mux.HandleFunc("/nodes/resolve", reply(map[string]interface{}{"message": "Our chain is authoritative", "node": name}))
	mux.HandleFunc("/transactions/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var tx map[string]interface{}
		json.NewDecoder(r.Body).Decode(&tx)
		w.Header().Set("Content-Type", "application/json")
		if status == http.StatusOK {
			w.WriteHeader(http.StatusCreated)
		} else {
			w.WriteHeader(status)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"message": "Transaction will be added to Block 1", "node": name, "tx": tx})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestGateway(t *testing.T, urls ...string) *Gateway {
	logger := common.NewTestEntry(t, common.TestLogLevel)
	nodes := make([]*peers.Node, len(urls))
	for i, u := range urls {
		nodes[i] = peers.NewNode(u)
	}
	d := dispatch.NewDispatcher(peers.NewRegistry(nodes), nil, logger)
	return NewGateway("127.0.0.1:0", d, logger)
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res map[string]interface{}
	data, _ := ioutil.ReadAll(rec.Body)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &res))
	}
	return rec, res
}

func TestGatewayProxiesReads(t *testing.T) {
	g := newTestGateway(t, ledgerNode(t, "A", http.StatusOK), ledgerNode(t, "B", http.StatusOK))

	rec, res := do(t, g.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", res["node"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	// the next call starts from the next node
	rec, res = do(t, g.Handler(), http.MethodGet, "/chain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B", res["node"])
	assert.EqualValues(t, 0, res["length"])

	rec, res = do(t, g.Handler(), http.MethodGet, "/peers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, res, "nodes")

	rec, res = do(t, g.Handler(), http.MethodPost, "/mine", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New Block Forged", res["message"])
}

func TestGatewayRequestIDIsPropagated(t *testing.T) {
	g := newTestGateway(t, ledgerNode(t, "A", http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestGatewayAllNodesFailed(t *testing.T) {
	a := ledgerNode(t, "A", http.StatusInternalServerError)
	b := ledgerNode(t, "B", http.StatusServiceUnavailable)
	g := newTestGateway(t, a, b)

	rec, res := do(t, g.Handler(), http.MethodGet, "/chain", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	detail := res["detail"].(map[string]interface{})
	assert.Equal(t, "all nodes failed", detail["message"])

	errs := detail["errors"].([]interface{})
	require.Len(t, errs, 2)
	assert.Equal(t, a, errs[0].(map[string]interface{})["node"])
	assert.EqualValues(t, http.StatusInternalServerError, errs[0].(map[string]interface{})["status"])
	assert.Equal(t, b, errs[1].(map[string]interface{})["node"])
}

func TestGatewayTransaction(t *testing.T) {
	failing := ledgerNode(t, "A", http.StatusBadRequest)
	accepting := ledgerNode(t, "B", http.StatusOK)
	g := newTestGateway(t, failing, accepting)

	body := []byte(`{"sender":"A","recipient":"B","amount":2.5}`)
	rec, res := do(t, g.Handler(), http.MethodPost, "/tx", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, res["ok"])
	assert.Equal(t, accepting, res["node"])

	response := res["response"].(map[string]interface{})
	assert.Equal(t, "B", response["node"])
	tx := response["tx"].(map[string]interface{})
	assert.Equal(t, "A", tx["sender"])
	assert.Equal(t, 2.5, tx["amount"])
}

func TestGatewayTransactionBroadcastFailed(t *testing.T) {
	g := newTestGateway(t, ledgerNode(t, "A", http.StatusBadRequest))

	rec, res := do(t, g.Handler(), http.MethodPost, "/tx", []byte(`{"sender":"A","recipient":"B","amount":1}`))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	detail := res["detail"].(map[string]interface{})
	assert.Equal(t, "broadcast failed", detail["message"])
	assert.Len(t, detail["errors"], 1)
}

func TestGatewayTransactionValidation(t *testing.T) {
	g := newTestGateway(t, ledgerNode(t, "A", http.StatusOK))

	for _, body := range []string{
		`not json`,
		`{"sender":"A","recipient":"B"}`,
		`{"sender":"A","amount":1}`,
		`{"recipient":"B","amount":1}`,
		`{"sender":"A","recipient":"B","amount":null}`,
		`{"sender":"A","recipient":"B","amount":"ten"}`,
		`{"sender":"A","recipient":"B","amount":true}`,
	} {
		rec, _ := do(t, g.Handler(), http.MethodPost, "/tx", []byte(body))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestGatewayTransactionLenientFields(t *testing.T) {
	g := newTestGateway(t, ledgerNode(t, "A", http.StatusOK))

	for body, expected := range map[string]map[string]interface{}{
		`{"sender":"A","recipient":"B","amount":"2.5"}`: {"sender": "A", "recipient": "B", "amount": 2.5},
		`{"sender":"","recipient":"B","amount":1}`:      {"sender": "", "recipient": "B", "amount": 1.0},
		`{"sender":"A","recipient":"","amount":0}`:      {"sender": "A", "recipient": "", "amount": 0.0},
	} {
		rec, res := do(t, g.Handler(), http.MethodPost, "/tx", []byte(body))
		require.Equal(t, http.StatusOK, rec.Code, body)

		tx := res["response"].(map[string]interface{})["tx"].(map[string]interface{})
		assert.Equal(t, expected, tx, body)
	}
}

func TestGatewayConsensus(t *testing.T) {
	a := ledgerNode(t, "A", http.StatusOK)
	b := ledgerNode(t, "B", http.StatusInternalServerError)
	g := newTestGateway(t, a, b)

	rec, res := do(t, g.Handler(), http.MethodPost, "/consensus", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	results := res["results"].([]interface{})
	require.Len(t, results, 2)

	first := results[0].(map[string]interface{})
	assert.Equal(t, a, first["node"])
	assert.EqualValues(t, 200, first["status"])
	assert.Equal(t, "A", first["body"].(map[string]interface{})["node"])

	second := results[1].(map[string]interface{})
	assert.Equal(t, b, second["node"])
	assert.EqualValues(t, 500, second["status"])
	assert.IsType(t, "", second["body"])
}

type fixedStatus struct{}

func (fixedStatus) State() indexer.State { return indexer.Idle }
func (fixedStatus) LastLength() int      { return 2 }

func newTestIndexService(t *testing.T) *IndexService {
	s := store.NewInmemStore()

	blocks := []*chain.Block{
		{Index: 0, Timestamp: 1, PreviousHash: "1", Proof: 100},
		{Index: 1, Timestamp: 2, PreviousHash: "x", Proof: 35293, Transactions: []chain.Transaction{
			{Sender: chain.MintAddress, Recipient: "A", Amount: 10},
			{Sender: "A", Recipient: "B", Amount: 4},
		}},
	}
	for _, b := range blocks {
		_, err := s.UpsertBlock(b)
		require.NoError(t, err)
	}
	_, err := indexer.NewBalanceRebuilder(s).Rebuild()
	require.NoError(t, err)

	return NewIndexService("127.0.0.1:0", s, fixedStatus{}, common.NewTestEntry(t, common.TestLogLevel))
}

func TestIndexServiceStatus(t *testing.T) {
	is := newTestIndexService(t)

	rec, res := do(t, is.Handler(), http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, res["blocks"])
	assert.EqualValues(t, 1, res["last_index"])
	assert.Equal(t, "Idle", res["state"])
	assert.EqualValues(t, 2, res["last_length"])
}

func TestIndexServiceBlocks(t *testing.T) {
	is := newTestIndexService(t)

	req := httptest.NewRequest(http.MethodGet, "/blocks", nil)
	rec := httptest.NewRecorder()
	is.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var blocks []chain.BlockRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, 0, blocks[0].Index)
	assert.Equal(t, 1, blocks[1].Index)
	assert.Len(t, blocks[1].Hash, 64)

	rec, res := do(t, is.Handler(), http.MethodGet, "/blocks/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, res["transactions"], 2)

	rec, _ = do(t, is.Handler(), http.MethodGet, "/blocks/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, is.Handler(), http.MethodGet, "/blocks/seven", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexServiceBalances(t *testing.T) {
	is := newTestIndexService(t)

	req := httptest.NewRequest(http.MethodGet, "/balances", nil)
	rec := httptest.NewRecorder()
	is.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var balances []chain.Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balances))
	assert.Equal(t, []chain.Balance{{Address: "A", Amount: 6}, {Address: "B", Amount: 4}}, balances)

	rec, res := do(t, is.Handler(), http.MethodGet, "/balances/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, res["amount"])

	rec, _ = do(t, is.Handler(), http.MethodGet, "/balances/Z", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rec = httptest.NewRecorder()
	is.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []chain.TransactionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 2)
}
