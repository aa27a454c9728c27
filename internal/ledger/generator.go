package ledger

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"fmt"
)

// JournalGenerator derives balanced journal batches from logged events. It
// reads the tracker to cap a claim payment at the insurer's remaining
// capital, the same rule the insurer applies.
type JournalGenerator struct {
	balanceTracker *BalanceTracker
	insuredOf      map[event.PolicyID]event.InsuredID
}

func NewJournalGenerator(tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		balanceTracker: tracker,
		insuredOf:      make(map[event.PolicyID]event.InsuredID),
	}
}

// GenerateOpening books every insurer's starting capital.
// Moves funds: external:capital_contributions → insurer:capital
func (jg *JournalGenerator) GenerateOpening(insurers []config.InsurerConfig) *Batch {
	batch := &Batch{Sequence: -1}
	for _, ins := range insurers {
		if ins.Capital <= 0 {
			continue
		}
		batch.add(
			NewInsurerAccountKey(ins.ID, SubTypeCapital),
			NewExternalAccountKey(SubTypeExternalCapital),
			ins.Capital,
			JournalTypeCapitalContribution,
		)
	}
	return batch
}

// Generate returns the batch for rec, or nil when the event moves no money.
func (jg *JournalGenerator) Generate(rec event.Record) (*Batch, error) {
	switch e := rec.Event.(type) {
	case *event.PolicyBound:
		return jg.generatePremium(rec, e), nil
	case *event.ClaimSettled:
		return jg.generateClaim(rec, e)
	}
	return nil, nil
}

// generatePremium moves each panel member's premium share.
// Moves funds: insured:premium_paid → insurer:capital
func (jg *JournalGenerator) generatePremium(rec event.Record, e *event.PolicyBound) *Batch {
	jg.insuredOf[e.PolicyID] = e.InsuredID

	batch := &Batch{Sequence: rec.Seq, Day: rec.Day}
	for _, entry := range e.Panel {
		if entry.Premium <= 0 {
			continue
		}
		batch.add(
			NewInsurerAccountKey(entry.InsurerID, SubTypeCapital),
			NewInsuredAccountKey(e.InsuredID, SubTypePremiumPaid),
			entry.Premium,
			JournalTypePremium,
		)
	}
	if len(batch.Journals) == 0 {
		return nil
	}
	return batch
}

// generateClaim pays a claim out of capital. Whatever capital cannot cover
// is booked as unrecovered.
// Moves funds: insurer:capital → insured:recoveries
// Shortfall:   external:unfunded_claims → insured:unrecovered
func (jg *JournalGenerator) generateClaim(rec event.Record, e *event.ClaimSettled) (*Batch, error) {
	if e.Amount <= 0 {
		return nil, nil
	}
	insured, ok := jg.insuredOf[e.PolicyID]
	if !ok {
		return nil, fmt.Errorf("seq %d: claim on policy %d that never bound", rec.Seq, e.PolicyID)
	}

	capital := jg.balanceTracker.InsurerCapital(e.InsurerID)
	paid := min(e.Amount, max(capital, 0))

	batch := &Batch{Sequence: rec.Seq, Day: rec.Day}
	if paid > 0 {
		batch.add(
			NewInsuredAccountKey(insured, SubTypeRecoveries),
			NewInsurerAccountKey(e.InsurerID, SubTypeCapital),
			paid,
			JournalTypeClaimPaid,
		)
	}
	if short := e.Amount - paid; short > 0 {
		batch.add(
			NewInsuredAccountKey(insured, SubTypeUnrecovered),
			NewExternalAccountKey(SubTypeExternalUnfundedClaims),
			short,
			JournalTypeClaimShortfall,
		)
	}
	return batch, nil
}

// FromLog builds the ledger of a whole run: opening capital, then every
// record in order.
func FromLog(insurers []config.InsurerConfig, records []event.Record) (*BalanceTracker, error) {
	tracker, _, err := Replay(insurers, records)
	return tracker, err
}

// Replay is FromLog that also returns every posted journal in posting order.
func Replay(insurers []config.InsurerConfig, records []event.Record) (*BalanceTracker, []Journal, error) {
	tracker := NewBalanceTracker()
	gen := NewJournalGenerator(tracker)

	var journals []Journal
	if opening := gen.GenerateOpening(insurers); len(opening.Journals) > 0 {
		if err := tracker.ApplyBatch(opening); err != nil {
			return nil, nil, err
		}
		journals = append(journals, opening.Journals...)
	}
	for _, rec := range records {
		batch, err := gen.Generate(rec)
		if err != nil {
			return nil, nil, err
		}
		if batch == nil {
			continue
		}
		if err := tracker.ApplyBatch(batch); err != nil {
			return nil, nil, fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		journals = append(journals, batch.Journals...)
	}
	return tracker, journals, nil
}
