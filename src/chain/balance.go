package chain

import (
	"sort"
)

// Balance is a row of the balances table.
type Balance struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// Marshal - json encoding of Balance
func (b *Balance) Marshal() ([]byte, error) {
	return encode(b)
}

// Unmarshal ...
func (b *Balance) Unmarshal(data []byte) error {
	return decode(data, b)
}

// ComputeBalances aggregates a transaction history into the balance ledger.
// Every address that appears as sender or recipient gets its credits minus its
// debits; transactions from MintAddress debit nobody. The result is sorted by
// address.
//
// Each address's entries are summed in ascending order, so the result is the
// same whatever the order of txs.
func ComputeBalances(txs []TransactionRecord) []Balance {
	entries := make(map[string][]float64)

	for _, tx := range txs {
		entries[tx.Recipient] = append(entries[tx.Recipient], tx.Amount)
		if tx.Sender != MintAddress {
			entries[tx.Sender] = append(entries[tx.Sender], -tx.Amount)
		}
	}

	addresses := make([]string, 0, len(entries))
	for a := range entries {
		addresses = append(addresses, a)
	}
	sort.Strings(addresses)

	res := make([]Balance, 0, len(addresses))
	for _, a := range addresses {
		res = append(res, Balance{Address: a, Amount: sum(entries[a])})
	}

	return res
}

// TotalMinted returns the sum of all amounts sent by MintAddress.
func TotalMinted(txs []TransactionRecord) float64 {
	minted := []float64{}
	for _, tx := range txs {
		if tx.Sender == MintAddress {
			minted = append(minted, tx.Amount)
		}
	}
	return sum(minted)
}

// TotalBalance returns the sum of all balances.
func TotalBalance(balances []Balance) float64 {
	amounts := make([]float64, len(balances))
	for i, b := range balances {
		amounts[i] = b.Amount
	}
	return sum(amounts)
}

func sum(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	total := 0.0
	for _, v := range sorted {
		total += v
	}
	return total
}
