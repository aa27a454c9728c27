package ledger

import (
	"InsMarket/internal/event"
	"fmt"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is well-formed
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateInsurerCapitalNonNegative checks insurer capital >= 0
func (v *InvariantValidator) ValidateInsurerCapitalNonNegative(id event.InsurerID) error {
	return v.tracker.ValidateNonNegative(NewInsurerAccountKey(id, SubTypeCapital))
}

// ValidateInsurerCapital compares the ledger capital with a reported figure
func (v *InvariantValidator) ValidateInsurerCapital(id event.InsurerID, reported int64) error {
	if got := v.tracker.InsurerCapital(id); got != reported {
		return fmt.Errorf("insurer %d: ledger capital %d, reported %d", id, got, reported)
	}
	return nil
}

// ValidateGlobalBalance verifies the ledger is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	if total := v.tracker.ComputeGlobalBalance(); total != 0 {
		return fmt.Errorf("global balance is non-zero: %d", total)
	}
	return nil
}
