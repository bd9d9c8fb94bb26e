// Package service implements the HTTP APIs of ledgerfront.
//
// The Gateway exposes a single entry point in front of the ledger nodes. Reads
// and mining requests fail over from node to node, transactions go to the
// first node that accepts them, and consensus requests reach every node.
//
// The IndexService exposes the blocks, transactions, and balances mirrored by
// the indexer.
package service
