package store

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/ledgerfront/src/chain"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by NewStore.
const (
	BadgerBackend = "badger"
	BoltBackend   = "bolt"
	InmemBackend  = "inmem"
)

// Store is the durable mirror of the chain. It holds three tables: blocks
// keyed by index, transactions owned by a block index, and balances keyed by
// address.
type Store interface {
	// UpsertBlock inserts the block row unless a row with the same index, or
	// the same derived hash, already exists. Independently of that outcome,
	// it replaces all the transaction rows of the block's index with the
	// transactions of the payload. The returned bool reports whether the
	// block row was inserted.
	UpsertBlock(block *chain.Block) (bool, error)
	// GetBlock returns the block row at a given index.
	GetBlock(index int) (*chain.BlockRecord, error)
	// Blocks returns all block rows sorted by index.
	Blocks() ([]*chain.BlockRecord, error)
	// BlockCount returns the number of block rows.
	BlockCount() (int, error)
	// LastBlockIndex returns the highest stored index, or -1.
	LastBlockIndex() int
	// BlockTransactions returns the transaction rows of a block index, in
	// insertion order.
	BlockTransactions(index int) ([]chain.TransactionRecord, error)
	// Transactions returns every transaction row, ordered by block index and
	// then insertion order.
	Transactions() ([]chain.TransactionRecord, error)
	// ReplaceBalances swaps the whole balances table for the given rows in a
	// single transaction.
	ReplaceBalances(balances []chain.Balance) error
	// Balances returns all balance rows sorted by address.
	Balances() ([]chain.Balance, error)
	// GetBalance returns the balance row of an address.
	GetBalance(address string) (chain.Balance, error)
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}

// StorageFailure wraps any error returned while writing to a store. The
// indexer treats it as fatal.
type StorageFailure struct {
	Op  string
	Err error
}

// Error ...
func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage failure (%s): %v", e.Op, e.Err)
}

// Unwrap ...
func (e *StorageFailure) Unwrap() error {
	return e.Err
}

// IsStorageFailure reports whether err is, or wraps, a StorageFailure.
func IsStorageFailure(err error) bool {
	var sf *StorageFailure
	return errors.As(err, &sf)
}

func storageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageFailure{Op: op, Err: err}
}

// NewStore opens the store of the given backend at path. The inmem backend
// ignores path.
func NewStore(backend string, path string, logger *logrus.Entry) (Store, error) {
	switch backend {
	case BadgerBackend, "":
		return NewBadgerStore(path, logger)
	case BoltBackend:
		return NewBoltStore(path, logger)
	case InmemBackend:
		return NewInmemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
