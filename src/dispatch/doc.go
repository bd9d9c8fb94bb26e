// Package dispatch routes gateway operations to the ledger nodes of a
// registry.
//
// A Dispatcher visits nodes one at a time, in an order rotated by a shared
// round-robin cursor, and returns the first successful response. Every node is
// attempted at most once per call, and each attempt is bounded by the connect
// and read timeouts of the transport. When every node fails, the call returns
// an *AggregateFailure listing each node's failure in the order they were
// visited.
//
// A ConsensusReporter sends the same request to every node concurrently and
// returns what each node answered. It never fails as a whole; node failures are
// part of its result.
package dispatch
