package chain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Snapshot is the full chain reported by one node at one instant. It is never
// persisted as such.
type Snapshot struct {
	Chain  []*Block `json:"chain"`
	Length int      `json:"length"`
}

// ValidationError is returned when a payload does not satisfy the structure
// expected at the ingestion boundary.
type ValidationError struct {
	Reason string
}

// Error ...
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid chain snapshot: %s", e.Reason)
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// rawBlock and rawTransaction mirror Block and Transaction with pointer
// fields so that a missing key can be told apart from a zero value.
type rawBlock struct {
	Index        *int              `json:"index"`
	Timestamp    *float64          `json:"timestamp"`
	Transactions *[]rawTransaction `json:"transactions"`
	Proof        *int64            `json:"proof"`
	PreviousHash *string           `json:"previous_hash"`
}

type rawTransaction struct {
	Sender    *string  `json:"sender"`
	Recipient *string  `json:"recipient"`
	Amount    *float64 `json:"amount"`
}

func (r *rawBlock) block(pos int) (*Block, error) {
	switch {
	case r.Index == nil:
		return nil, invalid("block %d is missing index", pos)
	case r.Timestamp == nil:
		return nil, invalid("block %d is missing timestamp", pos)
	case r.Transactions == nil:
		return nil, invalid("block %d is missing transactions", pos)
	case r.Proof == nil:
		return nil, invalid("block %d is missing proof", pos)
	case r.PreviousHash == nil:
		return nil, invalid("block %d is missing previous_hash", pos)
	}

	txs := make([]Transaction, len(*r.Transactions))
	for j, rt := range *r.Transactions {
		switch {
		case rt.Sender == nil:
			return nil, invalid("transaction %d of block %d is missing sender", j, pos)
		case rt.Recipient == nil:
			return nil, invalid("transaction %d of block %d is missing recipient", j, pos)
		case rt.Amount == nil:
			return nil, invalid("transaction %d of block %d is missing amount", j, pos)
		}
		txs[j] = Transaction{
			Sender:    *rt.Sender,
			Recipient: *rt.Recipient,
			Amount:    *rt.Amount,
		}
	}

	return &Block{
		Index:        *r.Index,
		Timestamp:    *r.Timestamp,
		Transactions: txs,
		Proof:        *r.Proof,
		PreviousHash: *r.PreviousHash,
	}, nil
}

// DecodeSnapshot decodes the body of a node's /chain response and validates
// it. Every key of the payload is required, down to the transaction amounts,
// so a partial block never reaches the store.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var raw struct {
		Chain  *[]*rawBlock `json:"chain"`
		Length *int         `json:"length"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if raw.Chain == nil {
		return nil, invalid("missing chain")
	}
	if raw.Length == nil {
		return nil, invalid("missing length")
	}

	snapshot := &Snapshot{
		Chain:  make([]*Block, len(*raw.Chain)),
		Length: *raw.Length,
	}

	for i, rb := range *raw.Chain {
		if rb == nil {
			return nil, invalid("block %d is null", i)
		}
		b, err := rb.block(i)
		if err != nil {
			return nil, err
		}
		snapshot.Chain[i] = b
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Validate checks the structure of every block. It does not verify proofs or
// hash links.
func (s *Snapshot) Validate() error {
	if s.Length < 0 {
		return invalid("negative length %d", s.Length)
	}

	for i, b := range s.Chain {
		if b == nil {
			return invalid("block %d is null", i)
		}
		if b.Index < 0 {
			return invalid("block %d has negative index %d", i, b.Index)
		}
		if math.IsNaN(b.Timestamp) || math.IsInf(b.Timestamp, 0) {
			return invalid("block %d has a non finite timestamp", b.Index)
		}
		for j, tx := range b.Transactions {
			if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
				return invalid("transaction %d of block %d has a non finite amount", j, b.Index)
			}
		}
	}

	return nil
}
