package indexer

import (
	"sync/atomic"
)

// State captures the state of a Poller: Idle, Fetching, Unchanged, Ingesting,
// or Stopped.
type State uint32

const (
	// Idle is the state between two ticks.
	Idle State = iota
	// Fetching is the state in which the Poller waits for a chain snapshot.
	Fetching
	// Unchanged is the state in which the Poller found the same length as
	// the previous snapshot and skips ingestion.
	Unchanged
	// Ingesting is the state in which the Poller writes a snapshot to the
	// store.
	Ingesting
	// Stopped is the state of a Poller that left its Run loop.
	Stopped
)

// String ...
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Fetching:
		return "Fetching"
	case Unchanged:
		return "Unchanged"
	case Ingesting:
		return "Ingesting"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (s *state) getState() State {
	stateAddr := (*uint32)(&s.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (s *state) setState(st State) {
	stateAddr := (*uint32)(&s.state)
	atomic.StoreUint32(stateAddr, uint32(st))
}
