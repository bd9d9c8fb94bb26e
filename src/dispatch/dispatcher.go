package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/ledgerfront/src/peers"
	"github.com/sirupsen/logrus"
)

// maximum size of a node response
const maxBodySize = 64 << 20

// Strategy determines the order in which a call visits the nodes.
type Strategy int

const (
	// RoundRobin rotates the registry by one position on every call.
	RoundRobin Strategy = iota
	// Static always uses the registry order.
	Static
)

// Response is the successful outcome of a call: the decoded body, the node
// that produced it, and the failures of the nodes visited before it.
type Response struct {
	Node     string          `json:"node"`
	Status   int             `json:"status"`
	Body     json.RawMessage `json:"body"`
	Failures []Failure       `json:"-"`
}

// Dispatcher routes calls to the nodes of a registry with failover.
type Dispatcher struct {
	registry *peers.Registry
	conf     *Config
	client   *http.Client
	logger   *logrus.Entry

	// cursor counts calls that used the RoundRobin strategy
	cursor uint64
}

// NewDispatcher creates a Dispatcher over a registry. A nil conf uses
// DefaultConfig.
func NewDispatcher(registry *peers.Registry, conf *Config, logger *logrus.Entry) *Dispatcher {
	if conf == nil {
		conf = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Dispatcher{
		registry: registry,
		conf:     conf,
		client:   NewHTTPClient(conf),
		logger:   logger.WithField("component", "dispatcher"),
	}
}

// Registry returns the nodes served by the dispatcher.
func (d *Dispatcher) Registry() *peers.Registry {
	return d.registry
}

// NextOffset advances the cursor by one and returns its previous position,
// modulo the number of nodes. Concurrent callers get distinct, consecutive
// offsets.
func (d *Dispatcher) NextOffset() int {
	n := d.registry.Len()
	if n == 0 {
		return 0
	}
	c := atomic.AddUint64(&d.cursor, 1) - 1
	return int(c % uint64(n))
}

// SelectOrder returns every node of the registry in the order a call should
// visit them.
func (d *Dispatcher) SelectOrder(strategy Strategy) []*peers.Node {
	nodes := d.registry.Nodes()
	if strategy != RoundRobin || len(nodes) == 0 {
		return nodes
	}

	start := d.NextOffset()
	return append(nodes[start:], nodes[:start]...)
}

// Get sends a GET to the nodes until one answers 200.
func (d *Dispatcher) Get(ctx context.Context, path string) (*Response, error) {
	return d.attemptSequential(ctx, http.MethodGet, path, nil, isOK)
}

// Post sends a JSON encoded payload to the nodes until one answers with a 2xx
// status.
func (d *Dispatcher) Post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return d.attemptSequential(ctx, http.MethodPost, path, body, is2xx)
}

// BroadcastFirstSuccess submits a payload that any one node may accept, such
// as a new transaction. The response identifies the accepting node.
func (d *Dispatcher) BroadcastFirstSuccess(ctx context.Context, path string, payload interface{}) (*Response, error) {
	return d.Post(ctx, path, payload)
}

func (d *Dispatcher) attemptSequential(ctx context.Context,
	method string,
	path string,
	body []byte,
	success func(int) bool) (*Response, error) {

	failures := []Failure{}

	for _, node := range d.SelectOrder(RoundRobin) {
		start := time.Now()
		status, data, err := d.do(ctx, node, method, path, body)
		elapsed := time.Since(start)

		logger := d.logger.WithFields(logrus.Fields{
			"node":     node.URL(),
			"method":   method,
			"path":     path,
			"duration": elapsed.Nanoseconds(),
		})

		var f *Failure
		switch {
		case err != nil:
			f = &Failure{Node: node.URL(), Kind: TransportFailure, Err: err.Error()}
		case !success(status):
			f = &Failure{Node: node.URL(), Kind: RemoteStatusFailure, Status: status, Detail: snippet(data)}
		case !json.Valid(data):
			f = &Failure{Node: node.URL(), Kind: DecodeFailure, Status: status, Err: "response is not valid JSON", Detail: snippet(data)}
		}

		if f != nil {
			logger.WithField("failure", f.Error()).Warn("Node attempt failed")
			failures = append(failures, *f)
			continue
		}

		logger.WithField("status", status).Debug("Node attempt succeeded")

		return &Response{
			Node:     node.URL(),
			Status:   status,
			Body:     json.RawMessage(data),
			Failures: failures,
		}, nil
	}

	return nil, &AggregateFailure{
		Method:   method,
		Path:     path,
		Failures: failures,
	}
}

// do performs exactly one request on one node.
func (d *Dispatcher) do(ctx context.Context,
	node *peers.Node,
	method string,
	path string,
	body []byte) (int, []byte, error) {

	ctx, cancel := context.WithTimeout(ctx, d.conf.AttemptTimeout())
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, node.URL()+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, data, nil
}

func isOK(status int) bool {
	return status == http.StatusOK
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
