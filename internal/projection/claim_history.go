package projection

import (
	"InsMarket/internal/event"
)

// ClaimEntry is one settled claim share.
type ClaimEntry struct {
	Seq        int64
	Day        event.Day
	PolicyID   event.PolicyID
	InsurerID  event.InsurerID
	EventID    event.LossEventID
	Occurrence uint32
	Amount     int64
}

// ClaimHistoryProjection keeps every settled claim in log order.
type ClaimHistoryProjection struct {
	entries []ClaimEntry
}

func NewClaimHistoryProjection() *ClaimHistoryProjection {
	return &ClaimHistoryProjection{
		entries: make([]ClaimEntry, 0),
	}
}

// Add records rec if it is a ClaimSettled.
func (p *ClaimHistoryProjection) Add(rec event.Record) {
	c, ok := rec.Event.(*event.ClaimSettled)
	if !ok {
		return
	}
	p.entries = append(p.entries, ClaimEntry{
		Seq:        rec.Seq,
		Day:        rec.Day,
		PolicyID:   c.PolicyID,
		InsurerID:  c.InsurerID,
		EventID:    c.EventID,
		Occurrence: c.Occurrence,
		Amount:     c.Amount,
	})
}

// ClaimHistory builds the projection from a whole log.
func ClaimHistory(records []event.Record) *ClaimHistoryProjection {
	p := NewClaimHistoryProjection()
	for _, rec := range records {
		p.Add(rec)
	}
	return p
}

func (p *ClaimHistoryProjection) Len() int { return len(p.entries) }

// QueryByInsurer returns up to limit of the insurer's claims, newest first.
func (p *ClaimHistoryProjection) QueryByInsurer(id event.InsurerID, limit int) []ClaimEntry {
	result := make([]ClaimEntry, 0)

	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].InsurerID == id {
			result = append(result, p.entries[i])
		}
	}

	return result
}

// TotalByInsurer sums every claim paid out per insurer.
func (p *ClaimHistoryProjection) TotalByInsurer() map[event.InsurerID]int64 {
	out := make(map[event.InsurerID]int64)
	for _, e := range p.entries {
		out[e.InsurerID] += e.Amount
	}
	return out
}

// TotalByCatEvent sums claims per catastrophe occurrence. Attritional claims
// are left out.
func (p *ClaimHistoryProjection) TotalByCatEvent() map[event.LossEventID]int64 {
	out := make(map[event.LossEventID]int64)
	for _, e := range p.entries {
		if e.EventID != 0 {
			out[e.EventID] += e.Amount
		}
	}
	return out
}
