// Package chain contains the records mirrored from the ledger nodes: blocks,
// transactions and the chain snapshots that carry them, plus the rows derived
// from them by the indexer.
//
// A block's hash is never taken from the wire. It is derived locally from the
// canonical encoding of the tuple (index, timestamp, transactions, proof,
// previous_hash), where every object is encoded with sorted keys, and then
// digested with SHA256. Two blocks with the same canonical fields always have
// the same hash.
//
// Transactions sent by the sentinel address "0" mint value. They credit the
// recipient but debit nobody, so the sum of all balances always equals the
// total amount minted.
package chain
