package store

import (
	"sort"
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/chain"
)

// InmemStore implements the Store interface with in-memory maps. It is used
// in tests and when no persistence is required.
type InmemStore struct {
	sync.RWMutex

	blocks       map[int]*chain.BlockRecord
	hashes       map[string]int
	transactions map[int][]chain.TransactionRecord
	balances     map[string]chain.Balance
	lastID       uint64
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		blocks:       make(map[int]*chain.BlockRecord),
		hashes:       make(map[string]int),
		transactions: make(map[int][]chain.TransactionRecord),
		balances:     make(map[string]chain.Balance),
	}
}

// UpsertBlock implements the Store interface.
func (s *InmemStore) UpsertBlock(block *chain.Block) (bool, error) {
	record, err := chain.NewBlockRecord(block)
	if err != nil {
		return false, err
	}

	s.Lock()
	defer s.Unlock()

	inserted := false
	_, indexTaken := s.blocks[record.Index]
	_, hashTaken := s.hashes[record.Hash]
	if !indexTaken && !hashTaken {
		s.blocks[record.Index] = record
		s.hashes[record.Hash] = record.Index
		inserted = true
	}

	txs := block.TransactionRecords()
	for i := range txs {
		s.lastID++
		txs[i].ID = s.lastID
	}
	s.transactions[block.Index] = txs

	return inserted, nil
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(index int) (*chain.BlockRecord, error) {
	s.RLock()
	defer s.RUnlock()

	b, ok := s.blocks[index]
	if !ok {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, strconv.Itoa(index))
	}
	res := *b
	return &res, nil
}

// Blocks implements the Store interface.
func (s *InmemStore) Blocks() ([]*chain.BlockRecord, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]*chain.BlockRecord, 0, len(s.blocks))
	for _, b := range s.blocks {
		cp := *b
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res, nil
}

// BlockCount implements the Store interface.
func (s *InmemStore) BlockCount() (int, error) {
	s.RLock()
	defer s.RUnlock()
	return len(s.blocks), nil
}

// LastBlockIndex implements the Store interface.
func (s *InmemStore) LastBlockIndex() int {
	s.RLock()
	defer s.RUnlock()

	last := -1
	for i := range s.blocks {
		if i > last {
			last = i
		}
	}
	return last
}

// BlockTransactions implements the Store interface.
func (s *InmemStore) BlockTransactions(index int) ([]chain.TransactionRecord, error) {
	s.RLock()
	defer s.RUnlock()

	txs := s.transactions[index]
	res := make([]chain.TransactionRecord, len(txs))
	copy(res, txs)
	return res, nil
}

// Transactions implements the Store interface.
func (s *InmemStore) Transactions() ([]chain.TransactionRecord, error) {
	s.RLock()
	defer s.RUnlock()

	indexes := make([]int, 0, len(s.transactions))
	for i := range s.transactions {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	res := []chain.TransactionRecord{}
	for _, i := range indexes {
		res = append(res, s.transactions[i]...)
	}
	return res, nil
}

// ReplaceBalances implements the Store interface.
func (s *InmemStore) ReplaceBalances(balances []chain.Balance) error {
	table := make(map[string]chain.Balance, len(balances))
	for _, b := range balances {
		table[b.Address] = b
	}

	s.Lock()
	s.balances = table
	s.Unlock()

	return nil
}

// Balances implements the Store interface.
func (s *InmemStore) Balances() ([]chain.Balance, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]chain.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Address < res[j].Address })
	return res, nil
}

// GetBalance implements the Store interface.
func (s *InmemStore) GetBalance(address string) (chain.Balance, error) {
	s.RLock()
	defer s.RUnlock()

	b, ok := s.balances[address]
	if !ok {
		return chain.Balance{}, cm.NewStoreErr("Balance", cm.KeyNotFound, address)
	}
	return b, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
