package chain

import (
	"github.com/mosaicnetworks/ledgerfront/src/crypto"
)

// Block is a block as reported by a ledger node. The hash is not part of the
// payload; see Hash.
type Block struct {
	Index        int           `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        int64         `json:"proof"`
	PreviousHash string        `json:"previous_hash"`
}

func (b *Block) canonical() map[string]interface{} {
	txs := make([]interface{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.canonical()
	}

	return map[string]interface{}{
		"index":         b.Index,
		"timestamp":     b.Timestamp,
		"transactions":  txs,
		"proof":         b.Proof,
		"previous_hash": b.PreviousHash,
	}
}

// CanonicalBytes returns the canonical JSON encoding of the hashed fields. Map
// keys are sorted at every level, so the result does not depend on how the
// block was built.
func (b *Block) CanonicalBytes() ([]byte, error) {
	return encode(b.canonical())
}

// Hash returns the hex encoded SHA256 of the canonical encoding. It is
// recomputed on every call.
func (b *Block) Hash() (string, error) {
	data, err := b.CanonicalBytes()
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(data), nil
}

// BlockRecord is a row of the blocks table.
type BlockRecord struct {
	Index        int     `json:"index"`
	Hash         string  `json:"hash"`
	PreviousHash string  `json:"previous_hash"`
	Proof        int64   `json:"proof"`
	Timestamp    float64 `json:"timestamp"`
}

// NewBlockRecord derives the row of a block, hash included.
func NewBlockRecord(b *Block) (*BlockRecord, error) {
	hash, err := b.Hash()
	if err != nil {
		return nil, err
	}

	return &BlockRecord{
		Index:        b.Index,
		Hash:         hash,
		PreviousHash: b.PreviousHash,
		Proof:        b.Proof,
		Timestamp:    b.Timestamp,
	}, nil
}

// TransactionRecords returns the rows of the block's transactions, in payload
// order and without IDs.
func (b *Block) TransactionRecords() []TransactionRecord {
	res := make([]TransactionRecord, len(b.Transactions))
	for i, tx := range b.Transactions {
		res[i] = NewTransactionRecord(b.Index, tx)
	}
	return res
}

// Marshal - json encoding of BlockRecord
func (r *BlockRecord) Marshal() ([]byte, error) {
	return encode(r)
}

// Unmarshal ...
func (r *BlockRecord) Unmarshal(data []byte) error {
	return decode(data, r)
}
