package chain

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// MintAddress is the sentinel sender of minting and reward transactions.
const MintAddress = "0"

// Transaction is a value transfer as reported by a ledger node.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// IsMint reports whether the transaction creates value.
func (t Transaction) IsMint() bool {
	return t.Sender == MintAddress
}

func (t Transaction) canonical() map[string]interface{} {
	return map[string]interface{}{
		"sender":    t.Sender,
		"recipient": t.Recipient,
		"amount":    t.Amount,
	}
}

// TransactionRecord is a row of the transactions table. ID is assigned by the
// store and grows monotonically.
type TransactionRecord struct {
	ID         uint64  `json:"id"`
	BlockIndex int     `json:"block_index"`
	Sender     string  `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     float64 `json:"amount"`
}

// NewTransactionRecord creates the row for a transaction of a given block. The
// ID is left to the store.
func NewTransactionRecord(blockIndex int, tx Transaction) TransactionRecord {
	return TransactionRecord{
		BlockIndex: blockIndex,
		Sender:     tx.Sender,
		Recipient:  tx.Recipient,
		Amount:     tx.Amount,
	}
}

// Transaction returns the transfer carried by the row.
func (r TransactionRecord) Transaction() Transaction {
	return Transaction{
		Sender:    r.Sender,
		Recipient: r.Recipient,
		Amount:    r.Amount,
	}
}

// Marshal - json encoding of TransactionRecord
func (r *TransactionRecord) Marshal() ([]byte, error) {
	return encode(r)
}

// Unmarshal ...
func (r *TransactionRecord) Unmarshal(data []byte) error {
	return decode(data, r)
}

func encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(v)
}
