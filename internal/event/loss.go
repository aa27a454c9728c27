package event

// LossEvent is a correlated catastrophe occurrence. DamageFraction is drawn
// once when the occurrence is scheduled and applies to every matching policy.
type LossEvent struct {
	EventID        LossEventID `json:"event_id"`
	Territory      Territory   `json:"territory"`
	Peril          Peril       `json:"peril"`
	DamageFraction float64     `json:"damage_fraction"`
}

func (e *LossEvent) EventType() EventType {
	return EventTypeLossEvent
}

// AttritionalOccurrence is an independent per-policy loss scheduled at bind.
// Occurrence numbers the policy's attritional losses from 1.
type AttritionalOccurrence struct {
	PolicyID       PolicyID `json:"policy_id"`
	Occurrence     uint32   `json:"occurrence"`
	DamageFraction float64  `json:"damage_fraction"`
}

func (e *AttritionalOccurrence) EventType() EventType {
	return EventTypeAttritionalOccurrence
}

// InsuredLoss carries the capped ground-up loss of one occurrence on one
// policy. EventID is zero for attritional occurrences, Occurrence is zero for
// catastrophe occurrences.
type InsuredLoss struct {
	PolicyID     PolicyID    `json:"policy_id"`
	InsuredID    InsuredID   `json:"insured_id"`
	EventID      LossEventID `json:"event_id"`
	Occurrence   uint32      `json:"occurrence"`
	Peril        Peril       `json:"peril"`
	GroundUpLoss int64       `json:"ground_up_loss"`
}

func (e *InsuredLoss) EventType() EventType {
	return EventTypeInsuredLoss
}

// OccurrenceKey identifies the loss occurrence an InsuredLoss or ClaimSettled
// belongs to, within one policy.
type OccurrenceKey struct {
	PolicyID   PolicyID
	EventID    LossEventID
	Occurrence uint32
}

func (e *InsuredLoss) Key() OccurrenceKey {
	return OccurrenceKey{PolicyID: e.PolicyID, EventID: e.EventID, Occurrence: e.Occurrence}
}

// ClaimSettled is one panel member's share of an insured loss.
type ClaimSettled struct {
	PolicyID   PolicyID    `json:"policy_id"`
	InsurerID  InsurerID   `json:"insurer_id"`
	EventID    LossEventID `json:"event_id"`
	Occurrence uint32      `json:"occurrence"`
	Amount     int64       `json:"amount"`
}

func (e *ClaimSettled) EventType() EventType {
	return EventTypeClaimSettled
}

func (e *ClaimSettled) Key() OccurrenceKey {
	return OccurrenceKey{PolicyID: e.PolicyID, EventID: e.EventID, Occurrence: e.Occurrence}
}

// InsurerInsolvent is emitted at most once per insurer per run.
type InsurerInsolvent struct {
	InsurerID InsurerID `json:"insurer_id"`
}

func (e *InsurerInsolvent) EventType() EventType {
	return EventTypeInsurerInsolvent
}
