package ledger

import (
	"InsMarket/internal/event"
	"fmt"
)

// BalanceTracker holds the running position of every account touched by
// the journals applied so far. A debit raises an account, a credit lowers
// it, so a balanced ledger sums to zero.
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{balances: make(map[AccountKey]int64)}
}

func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch posts a batch only if it balances.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("reject batch at seq %d: %w", batch.Sequence, err)
	}
	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}
	return nil
}

func (bt *BalanceTracker) GetBalance(key AccountKey) int64 { return bt.balances[key] }

func (bt *BalanceTracker) InsurerCapital(id event.InsurerID) int64 {
	return bt.balances[NewInsurerAccountKey(id, SubTypeCapital)]
}

// InsuredPremiumPaid is positive; the account carries it as a credit.
func (bt *BalanceTracker) InsuredPremiumPaid(id event.InsuredID) int64 {
	return -bt.balances[NewInsuredAccountKey(id, SubTypePremiumPaid)]
}

func (bt *BalanceTracker) InsuredRecoveries(id event.InsuredID) int64 {
	return bt.balances[NewInsuredAccountKey(id, SubTypeRecoveries)]
}

// InsuredUnrecovered is the part of settled claims no capital was left to pay.
func (bt *BalanceTracker) InsuredUnrecovered(id event.InsuredID) int64 {
	return bt.balances[NewInsuredAccountKey(id, SubTypeUnrecovered)]
}

// ComputeGlobalBalance sums every account.
func (bt *BalanceTracker) ComputeGlobalBalance() int64 {
	var total int64
	for _, b := range bt.balances {
		total += b
	}
	return total
}

func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	if b := bt.balances[key]; b < 0 {
		return fmt.Errorf("account %s is negative: %d", key.AccountPath(), b)
	}
	return nil
}
