package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// NodeReport is what one node answered to a ConsensusReporter. Error is set
// when the node could not be reached or its 200 body was not JSON. Otherwise
// Body holds the JSON document for a 200, or a string with the beginning of the
// body for any other status.
type NodeReport struct {
	Node   string          `json:"node"`
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// OK ...
func (r NodeReport) OK() bool {
	return r.Error == "" && r.Status == http.StatusOK
}

// Report holds one NodeReport per node, in registry order.
type Report struct {
	Path    string       `json:"-"`
	Results []NodeReport `json:"results"`
}

// Succeeded returns the number of nodes that answered 200.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// ConsensusReporter polls every node of a dispatcher's registry at once.
type ConsensusReporter struct {
	dispatcher *Dispatcher
	logger     *logrus.Entry
}

// NewConsensusReporter ...
func NewConsensusReporter(d *Dispatcher) *ConsensusReporter {
	return &ConsensusReporter{
		dispatcher: d,
		logger:     d.logger.WithField("component", "consensus-reporter"),
	}
}

// PollAll sends a GET for path to every node concurrently and waits for all of
// them. It does not move the round-robin cursor.
func (r *ConsensusReporter) PollAll(ctx context.Context, path string) *Report {
	nodes := r.dispatcher.SelectOrder(Static)
	results := make([]NodeReport, len(nodes))

	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()

			status, data, err := r.dispatcher.do(ctx, nodes[i], http.MethodGet, path, nil)
			results[i] = nodeReport(url, status, data, err)

			if results[i].Error != "" {
				r.logger.WithFields(logrus.Fields{
					"node":  url,
					"error": results[i].Error,
				}).Debug("Node unreachable")
			}
		}(i, node.URL())
	}
	wg.Wait()

	return &Report{
		Path:    path,
		Results: results,
	}
}

func nodeReport(node string, status int, data []byte, err error) NodeReport {
	if err != nil {
		return NodeReport{Node: node, Error: err.Error()}
	}

	if status == http.StatusOK {
		if !json.Valid(data) {
			return NodeReport{Node: node, Error: "response is not valid JSON"}
		}
		return NodeReport{Node: node, Status: status, Body: json.RawMessage(data)}
	}

	text, _ := json.Marshal(snippet(data))
	return NodeReport{Node: node, Status: status, Body: json.RawMessage(text)}
}
