package chain

import (
	"math"
	"testing"
)

func TestDecodeSnapshot(t *testing.T) {
	body := []byte(`{
		"chain": [
			{"index": 1, "timestamp": 10.5, "transactions": [], "proof": 100, "previous_hash": "1"},
			{"index": 2, "timestamp": 11.5, "transactions": [{"sender": "0", "recipient": "A", "amount": 1}], "proof": 7, "previous_hash": "abc"}
		],
		"length": 2
	}`)

	s, err := DecodeSnapshot(body)
	if err != nil {
		t.Fatal(err)
	}

	if s.Length != 2 || len(s.Chain) != 2 {
		t.Fatalf("unexpected snapshot %#v", s)
	}
	if s.Chain[1].Transactions[0].Recipient != "A" {
		t.Fatalf("unexpected transaction %#v", s.Chain[1].Transactions[0])
	}
}

func TestDecodeSnapshotErrors(t *testing.T) {
	cases := map[string]string{
		"not json":               `<html>`,
		"missing chain":          `{"length": 0}`,
		"missing length":         `{"chain": []}`,
		"negative length":        `{"chain": [], "length": -1}`,
		"null block":             `{"chain": [null], "length": 1}`,
		"negative index":         `{"chain": [{"index": -1, "timestamp": 1, "transactions": [], "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"missing index":          `{"chain": [{"timestamp": 1, "transactions": [], "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"missing timestamp":      `{"chain": [{"index": 1, "transactions": [], "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"missing transactions":   `{"chain": [{"index": 1, "timestamp": 1, "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"missing proof":          `{"chain": [{"index": 1, "timestamp": 1, "transactions": [], "previous_hash": "1"}], "length": 1}`,
		"missing previous_hash":  `{"chain": [{"index": 1, "timestamp": 1, "transactions": [], "proof": 1}], "length": 1}`,
		"missing sender":         `{"chain": [{"index": 1, "timestamp": 1, "transactions": [{"recipient": "A", "amount": 1}], "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"missing recipient":      `{"chain": [{"index": 1, "timestamp": 1, "transactions": [{"sender": "0", "amount": 1}], "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"missing amount":         `{"chain": [{"index": 1, "timestamp": 1, "transactions": [{"sender": "0", "recipient": "A"}], "proof": 1, "previous_hash": "1"}], "length": 1}`,
		"partial block after ok": `{"chain": [{"index": 1, "timestamp": 1, "transactions": [], "proof": 1, "previous_hash": "1"}, {"transactions": [{"sender": "0", "recipient": "X"}]}], "length": 2}`,
	}

	for name, body := range cases {
		_, err := DecodeSnapshot([]byte(body))
		if err == nil {
			t.Fatalf("%s: expected an error", name)
		}
		if name == "not json" {
			continue
		}
		if _, ok := err.(*ValidationError); !ok {
			t.Fatalf("%s: expected a ValidationError, got %v", name, err)
		}
	}
}

func TestDecodeSnapshotAcceptsEmptyAddresses(t *testing.T) {
	body := []byte(`{"chain": [{"index": 1, "timestamp": 1, "transactions": [{"sender": "", "recipient": "", "amount": 0}], "proof": 1, "previous_hash": "1"}], "length": 1}`)

	s, err := DecodeSnapshot(body)
	if err != nil {
		t.Fatal(err)
	}

	expected := Transaction{Sender: "", Recipient: "", Amount: 0}
	if s.Chain[0].Transactions[0] != expected {
		t.Fatalf("unexpected transaction %#v", s.Chain[0].Transactions[0])
	}
}

func TestValidateRejectsNonFiniteAmounts(t *testing.T) {
	s := &Snapshot{
		Chain: []*Block{
			{Index: 1, Transactions: []Transaction{{Sender: "A", Recipient: "B", Amount: math.Inf(1)}}},
		},
		Length: 1,
	}

	err := s.Validate()
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
}
