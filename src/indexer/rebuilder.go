package indexer

import (
	"github.com/mosaicnetworks/ledgerfront/src/chain"
	"github.com/mosaicnetworks/ledgerfront/src/store"
)

// BalanceRebuilder recomputes the balances table from every stored
// transaction.
type BalanceRebuilder struct {
	store store.Store
}

// NewBalanceRebuilder ...
func NewBalanceRebuilder(s store.Store) *BalanceRebuilder {
	return &BalanceRebuilder{store: s}
}

// Rebuild replaces the balances table with the net amount of every address
// that appears in a transaction. It returns the number of balance rows.
func (r *BalanceRebuilder) Rebuild() (int, error) {
	txs, err := r.store.Transactions()
	if err != nil {
		return 0, &store.StorageFailure{Op: "read transactions", Err: err}
	}

	balances := chain.ComputeBalances(txs)

	if err := r.store.ReplaceBalances(balances); err != nil {
		return 0, err
	}

	return len(balances), nil
}
