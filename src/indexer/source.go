package indexer

import (
	"context"

	"github.com/mosaicnetworks/ledgerfront/src/chain"
	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
)

// ChainPath is the path of the full chain on the gateway and on the nodes.
const ChainPath = "/chain"

// ChainSource provides chain snapshots to the Poller.
type ChainSource interface {
	FetchChain(ctx context.Context) (*chain.Snapshot, error)
}

// DispatchSource fetches snapshots through a Dispatcher. The dispatcher may
// front a single gateway, or the ledger nodes directly.
type DispatchSource struct {
	dispatcher *dispatch.Dispatcher
	path       string
}

// NewDispatchSource ...
func NewDispatchSource(d *dispatch.Dispatcher) *DispatchSource {
	return &DispatchSource{
		dispatcher: d,
		path:       ChainPath,
	}
}

// FetchChain implements the ChainSource interface.
func (s *DispatchSource) FetchChain(ctx context.Context) (*chain.Snapshot, error) {
	resp, err := s.dispatcher.Get(ctx, s.path)
	if err != nil {
		return nil, err
	}
	return chain.DecodeSnapshot(resp.Body)
}
