package store

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/chain"
	"github.com/sirupsen/logrus"
)

const (
	blockPrefix     = "block"
	blockHashPrefix = "blockhash"
	txPrefix        = "tx"
	balancePrefix   = "balance"
	balanceGenKey   = "balancegen"
	txSequenceKey   = "seq_tx"

	// number of transaction ids leased from badger at a time
	txSequenceBandwidth = 100
)

// BadgerStore implements the Store interface on top of BadgerDB. Each table is
// a key prefix; every operation runs in a single badger transaction.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	path   string
	logger *logrus.Entry
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithTruncate(true).
		WithLogger(logger.WithField("ns", "badger"))

	return openBadgerStore(opts, logger)
}

func openBadgerStore(opts badger.Options, logger *logrus.Entry) (*BadgerStore, error) {
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	seq, err := handle.GetSequence([]byte(txSequenceKey), txSequenceBandwidth)
	if err != nil {
		handle.Close()
		return nil, err
	}

	return &BadgerStore{
		db:     handle,
		seq:    seq,
		path:   opts.Dir,
		logger: logger,
	}, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", blockPrefix, index))
}

func blockHashKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", blockHashPrefix, hash))
}

func blockTxPrefix(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d_", txPrefix, index))
}

func txKey(index int, id uint64) []byte {
	return []byte(fmt.Sprintf("%s_%09d_%020d", txPrefix, index, id))
}

func balanceGenPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d_", balancePrefix, gen))
}

func balanceKey(gen uint64, address string) []byte {
	return append(balanceGenPrefix(gen), address...)
}

func prefixOf(p string) []byte {
	return []byte(p + "_")
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// UpsertBlock implements the Store interface.
func (s *BadgerStore) UpsertBlock(block *chain.Block) (bool, error) {
	record, err := chain.NewBlockRecord(block)
	if err != nil {
		return false, err
	}

	txs := block.TransactionRecords()
	for i := range txs {
		id, err := s.seq.Next()
		if err != nil {
			return false, storageFailure("upsert block", err)
		}
		// sequences start at 0, row ids at 1
		txs[i].ID = id + 1
	}

	inserted := false

	err = s.db.Update(func(txn *badger.Txn) error {
		indexTaken, err := keyExists(txn, blockKey(record.Index))
		if err != nil {
			return err
		}
		hashTaken, err := keyExists(txn, blockHashKey(record.Hash))
		if err != nil {
			return err
		}

		if !indexTaken && !hashTaken {
			val, err := record.Marshal()
			if err != nil {
				return err
			}
			//insert [block_index] => [block row]
			if err := txn.Set(blockKey(record.Index), val); err != nil {
				return err
			}
			//insert [blockhash_hash] => [index]
			if err := txn.Set(blockHashKey(record.Hash), []byte(strconv.Itoa(record.Index))); err != nil {
				return err
			}
			inserted = true
		}

		if err := deletePrefix(txn, blockTxPrefix(record.Index)); err != nil {
			return err
		}

		for _, tx := range txs {
			val, err := tx.Marshal()
			if err != nil {
				return err
			}
			//insert [tx_index_id] => [transaction row]
			if err := txn.Set(txKey(tx.BlockIndex, tx.ID), val); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return false, storageFailure("upsert block", err)
	}

	s.logger.WithFields(logrus.Fields{
		"index":        record.Index,
		"inserted":     inserted,
		"transactions": len(txs),
	}).Debug("UpsertBlock")

	return inserted, nil
}

// GetBlock implements the Store interface.
func (s *BadgerStore) GetBlock(index int) (*chain.BlockRecord, error) {
	var blockBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(index))
		if err != nil {
			return err
		}
		blockBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Block", strconv.Itoa(index))
	}

	record := new(chain.BlockRecord)
	if err := record.Unmarshal(blockBytes); err != nil {
		return nil, err
	}

	return record, nil
}

// Blocks implements the Store interface.
func (s *BadgerStore) Blocks() ([]*chain.BlockRecord, error) {
	res := []*chain.BlockRecord{}

	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, prefixOf(blockPrefix), func(val []byte) error {
			record := new(chain.BlockRecord)
			if err := record.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, record)
			return nil
		})
	})

	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })

	return res, err
}

// BlockCount implements the Store interface.
func (s *BadgerStore) BlockCount() (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := prefixOf(blockPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// LastBlockIndex implements the Store interface.
func (s *BadgerStore) LastBlockIndex() int {
	blocks, err := s.Blocks()
	if err != nil || len(blocks) == 0 {
		return -1
	}
	return blocks[len(blocks)-1].Index
}

// BlockTransactions implements the Store interface.
func (s *BadgerStore) BlockTransactions(index int) ([]chain.TransactionRecord, error) {
	res := []chain.TransactionRecord{}

	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, blockTxPrefix(index), func(val []byte) error {
			var tx chain.TransactionRecord
			if err := tx.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, tx)
			return nil
		})
	})

	return res, err
}

// Transactions implements the Store interface.
func (s *BadgerStore) Transactions() ([]chain.TransactionRecord, error) {
	res := []chain.TransactionRecord{}

	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, prefixOf(txPrefix), func(val []byte) error {
			var tx chain.TransactionRecord
			if err := tx.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, tx)
			return nil
		})
	})

	sortTransactions(res)

	return res, err
}

// ReplaceBalances implements the Store interface. The ledger can be larger
// than a single badger transaction, so the new rows are staged under the next
// generation, in as many transactions as needed, and become visible when the
// generation key is flipped. Readers see either the old ledger or the new one.
func (s *BadgerStore) ReplaceBalances(balances []chain.Balance) error {
	return storageFailure("replace balances", s.replaceBalances(balances))
}

func (s *BadgerStore) replaceBalances(balances []chain.Balance) error {
	var current uint64
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		current, err = balanceGeneration(txn)
		return err
	}); err != nil {
		return err
	}
	next := current + 1

	// leftovers of an interrupted replacement
	if err := s.deletePrefixBatched(balanceGenPrefix(next)); err != nil {
		return err
	}

	rows := make([]keyValue, 0, len(balances))
	for _, b := range balances {
		b := b
		val, err := b.Marshal()
		if err != nil {
			return err
		}
		//insert [balance_gen_address] => [balance row]
		rows = append(rows, keyValue{key: balanceKey(next, b.Address), val: val})
	}
	if err := s.writeBatched(rows); err != nil {
		return err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(balanceGenKey), []byte(strconv.FormatUint(next, 10)))
	}); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"generation": next,
		"balances":   len(balances),
	}).Debug("ReplaceBalances")

	return s.deletePrefixBatched(balanceGenPrefix(current))
}

// Balances implements the Store interface.
func (s *BadgerStore) Balances() ([]chain.Balance, error) {
	res := []chain.Balance{}

	err := s.db.View(func(txn *badger.Txn) error {
		gen, err := balanceGeneration(txn)
		if err != nil {
			return err
		}
		return iteratePrefix(txn, balanceGenPrefix(gen), func(val []byte) error {
			var b chain.Balance
			if err := b.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, b)
			return nil
		})
	})

	sort.Slice(res, func(i, j int) bool { return res[i].Address < res[j].Address })

	return res, err
}

// GetBalance implements the Store interface.
func (s *BadgerStore) GetBalance(address string) (chain.Balance, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		gen, err := balanceGeneration(txn)
		if err != nil {
			return err
		}
		item, err := txn.Get(balanceKey(gen, address))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return chain.Balance{}, mapError(err, "Balance", address)
	}

	var b chain.Balance
	if err := b.Unmarshal(data); err != nil {
		return chain.Balance{}, err
	}

	return b, nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.logger.WithError(err).Error("Releasing transaction sequence")
	}
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/*******************************************************************************
Helpers
*******************************************************************************/

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == nil {
		return true, nil
	}
	if isDBKeyNotFound(err) {
		return false, nil
	}
	return false, err
}

func iteratePrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(val); err != nil {
			return err
		}
	}

	return nil
}

type keyValue struct {
	key []byte
	val []byte
}

// balanceGeneration returns the generation of the visible balance rows, 0
// before the first replacement.
func balanceGeneration(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(balanceGenKey))
	if isDBKeyNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(val), 10, 64)
}

// writeBatched sets rows through as many transactions as badger needs,
// committing whenever the current one is full.
func (s *BadgerStore) writeBatched(rows []keyValue) error {
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, r := range rows {
		err := txn.Set(r.key, r.val)
		if err == badger.ErrTxnTooBig {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = s.db.NewTransaction(true)
			err = txn.Set(r.key, r.val)
		}
		if err != nil {
			return err
		}
	}

	return txn.Commit()
}

// deletePrefixBatched is deletePrefix for prefixes that may not fit in a
// single transaction.
func (s *BadgerStore) deletePrefixBatched(prefix []byte) error {
	keys := [][]byte{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, k := range keys {
		err := txn.Delete(k)
		if err == badger.ErrTxnTooBig {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = s.db.NewTransaction(true)
			err = txn.Delete(k)
		}
		if err != nil {
			return err
		}
	}

	return txn.Commit()
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	keys := [][]byte{}
	it := txn.NewIterator(opts)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}

	return nil
}

func sortTransactions(txs []chain.TransactionRecord) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].BlockIndex != txs[j].BlockIndex {
			return txs[i].BlockIndex < txs[j].BlockIndex
		}
		return txs[i].ID < txs[j].ID
	})
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
