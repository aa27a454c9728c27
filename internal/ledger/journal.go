package ledger

import (
	"InsMarket/internal/event"
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeCapitalContribution JournalType = iota
	JournalTypePremium
	JournalTypeClaimPaid
	JournalTypeClaimShortfall
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeCapitalContribution:
		return "capital_contribution"
	case JournalTypePremium:
		return "premium"
	case JournalTypeClaimPaid:
		return "claim_paid"
	case JournalTypeClaimShortfall:
		return "claim_shortfall"
	default:
		return "unknown"
	}
}

// journalNamespace roots the journal IDs, which are derived from the log
// position so a rebuilt ledger carries the same IDs.
var journalNamespace = uuid.MustParse("6f1c2a8e-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Derived from Sequence and leg
	Sequence      int64       // Log position of the source event; -1 for opening balances
	Day           event.Day   // Day of the source event
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	Amount        int64       // Minor units (ALWAYS positive)
	JournalType   JournalType // Entry type
}

// Batch represents the balanced set of journal entries of one event
type Batch struct {
	Sequence int64
	Day      event.Day
	Journals []Journal
}

func (b *Batch) add(debit, credit AccountKey, amount int64, jt JournalType) {
	leg := len(b.Journals)
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.NewSHA1(journalNamespace, fmt.Appendf(nil, "%d:%d", b.Sequence, leg)),
		Sequence:      b.Sequence,
		Day:           b.Day,
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        amount,
		JournalType:   jt,
	})
}

// Validate ensures the batch is well-formed.
// Each journal entry moves a single positive amount from the credit account
// to the debit account, so every entry balances on its own.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %d is empty", b.Sequence)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.Sequence != b.Sequence {
			return fmt.Errorf("journal %s has mismatched sequence", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}

	return nil
}
