package store

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/boltdb/bolt"
	cm "github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/chain"
	"github.com/sirupsen/logrus"
)

var (
	blockBkt     = []byte("blocks")
	blockHashBkt = []byte("block_hashes")
	txBkt        = []byte("transactions")
	balanceBkt   = []byte("balances")
)

// BoltStore implements the Store interface on top of a single BoltDB file,
// with one bucket per table.
type BoltStore struct {
	fn     string
	db     *bolt.DB
	logger *logrus.Entry
}

// NewBoltStore opens or creates the database file fn.
func NewBoltStore(fn string, logger *logrus.Entry) (*BoltStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	if err := os.MkdirAll(filepath.Dir(fn), 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(fn, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	s := &BoltStore{
		fn:     fn,
		db:     db,
		logger: logger,
	}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) init() error {
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Create all the buckets
	for _, b := range [][]byte{blockBkt, blockHashBkt, txBkt, balanceBkt} {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpsertBlock implements the Store interface.
func (s *BoltStore) UpsertBlock(block *chain.Block) (bool, error) {
	record, err := chain.NewBlockRecord(block)
	if err != nil {
		return false, err
	}

	inserted := false
	txs := block.TransactionRecords()

	err = s.db.Update(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(blockBkt)
		hashes := tx.Bucket(blockHashBkt)

		if blocks.Get(itob(record.Index)) == nil && hashes.Get([]byte(record.Hash)) == nil {
			val, err := record.Marshal()
			if err != nil {
				return err
			}
			if err := blocks.Put(itob(record.Index), val); err != nil {
				return err
			}
			if err := hashes.Put([]byte(record.Hash), itob(record.Index)); err != nil {
				return err
			}
			inserted = true
		}

		b := tx.Bucket(txBkt)
		prefix := itob(record.Index)

		keys := [][]byte{}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte{}, k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for i := range txs {
			id, err := b.NextSequence()
			if err != nil {
				return err
			}
			txs[i].ID = id
			val, err := txs[i].Marshal()
			if err != nil {
				return err
			}
			if err := b.Put(txBoltKey(record.Index, id), val); err != nil {
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
func (s *BoltStore) GetBlock(index int) (*chain.BlockRecord, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blockBkt).Get(itob(index))
		if v == nil {
			return cm.NewStoreErr("Block", cm.KeyNotFound, strconv.Itoa(index))
		}
		data = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	record := new(chain.BlockRecord)
	if err := record.Unmarshal(data); err != nil {
		return nil, err
	}
	return record, nil
}

// Blocks implements the Store interface. Keys are big endian, so the cursor
// already walks them in index order.
func (s *BoltStore) Blocks() ([]*chain.BlockRecord, error) {
	res := []*chain.BlockRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(blockBkt).ForEach(func(k, v []byte) error {
			record := new(chain.BlockRecord)
			if err := record.Unmarshal(v); err != nil {
				return err
			}
			res = append(res, record)
			return nil
		})
	})
	return res, err
}

// BlockCount implements the Store interface.
func (s *BoltStore) BlockCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(blockBkt).Stats().KeyN
		return nil
	})
	return count, err
}

// LastBlockIndex implements the Store interface.
func (s *BoltStore) LastBlockIndex() int {
	last := -1
	s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(blockBkt).Cursor().Last()
		if k != nil {
			last = btoi(k)
		}
		return nil
	})
	return last
}

// BlockTransactions implements the Store interface.
func (s *BoltStore) BlockTransactions(index int) ([]chain.TransactionRecord, error) {
	res := []chain.TransactionRecord{}
	prefix := itob(index)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(txBkt).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r chain.TransactionRecord
			if err := r.Unmarshal(v); err != nil {
				return err
			}
			res = append(res, r)
		}
		return nil
	})
	return res, err
}

// Transactions implements the Store interface.
func (s *BoltStore) Transactions() ([]chain.TransactionRecord, error) {
	res := []chain.TransactionRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(txBkt).ForEach(func(k, v []byte) error {
			var r chain.TransactionRecord
			if err := r.Unmarshal(v); err != nil {
				return err
			}
			res = append(res, r)
			return nil
		})
	})
	return res, err
}

// ReplaceBalances implements the Store interface. The bucket is dropped and
// recreated inside one bolt transaction.
func (s *BoltStore) ReplaceBalances(balances []chain.Balance) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(balanceBkt); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(balanceBkt)
		if err != nil {
			return err
		}
		for _, bal := range balances {
			bal := bal
			val, err := bal.Marshal()
			if err != nil {
				return err
			}
			if err := b.Put([]byte(bal.Address), val); err != nil {
				return err
			}
		}
		return nil
	})

	return storageFailure("replace balances", err)
}

// Balances implements the Store interface.
func (s *BoltStore) Balances() ([]chain.Balance, error) {
	res := []chain.Balance{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(balanceBkt).ForEach(func(k, v []byte) error {
			var b chain.Balance
			if err := b.Unmarshal(v); err != nil {
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
func (s *BoltStore) GetBalance(address string) (chain.Balance, error) {
	var b chain.Balance
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(balanceBkt).Get([]byte(address))
		if v == nil {
			return cm.NewStoreErr("Balance", cm.KeyNotFound, address)
		}
		return b.Unmarshal(v)
	})
	return b, err
}

// Close implements the Store interface.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BoltStore) StorePath() string {
	return s.fn
}

func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int {
	return int(binary.BigEndian.Uint64(b[:8]))
}

func txBoltKey(index int, id uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(index))
	binary.BigEndian.PutUint64(k[8:], id)
	return k
}
