package event

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeSimulationStart
	EventTypeYearStart
	EventTypeYearEnd
	EventTypeCoverageRequested
	EventTypeLeadQuoteRequested
	EventTypeLeadQuoteIssued
	EventTypeLeadQuoteDeclined
	EventTypeSubmissionDropped
	EventTypeQuotePresented
	EventTypeQuoteAccepted
	EventTypeQuoteRejected
	EventTypePolicyBound
	EventTypePolicyExpired
	EventTypeLossEvent
	EventTypeAttritionalOccurrence
	EventTypeInsuredLoss
	EventTypeClaimSettled
	EventTypeInsurerInsolvent
	EventTypeFollowerQuoteRequested
	EventTypeFollowerQuoteIssued
	EventTypeFollowerQuoteDeclined
)

// Event is the interface all event payloads implement. Events are immutable
// facts; nothing may modify one after it has been constructed.
type Event interface {
	EventType() EventType
}

// Record is one dispatched event. Seq is its position in the log and is not
// part of the serialized form; it is implied by line order.
type Record struct {
	Seq   int64
	Day   Day
	Event Event
}

// Emission is a handler output: an event to be scheduled Offset days after
// the day of the event that produced it.
type Emission struct {
	Offset Day
	Event  Event
}

// Now schedules ev on the current day.
func Now(ev Event) Emission { return Emission{Offset: 0, Event: ev} }

// After schedules ev offset days from the current day.
func After(offset Day, ev Event) Emission { return Emission{Offset: offset, Event: ev} }

var eventTypeNames = map[EventType]string{
	EventTypeSimulationStart:       "SimulationStart",
	EventTypeYearStart:             "YearStart",
	EventTypeYearEnd:               "YearEnd",
	EventTypeCoverageRequested:     "CoverageRequested",
	EventTypeLeadQuoteRequested:    "LeadQuoteRequested",
	EventTypeLeadQuoteIssued:       "LeadQuoteIssued",
	EventTypeLeadQuoteDeclined:     "LeadQuoteDeclined",
	EventTypeSubmissionDropped:     "SubmissionDropped",
	EventTypeQuotePresented:        "QuotePresented",
	EventTypeQuoteAccepted:         "QuoteAccepted",
	EventTypeQuoteRejected:         "QuoteRejected",
	EventTypePolicyBound:           "PolicyBound",
	EventTypePolicyExpired:         "PolicyExpired",
	EventTypeLossEvent:             "LossEvent",
	EventTypeAttritionalOccurrence: "AttritionalOccurrence",
	EventTypeInsuredLoss:           "InsuredLoss",
	EventTypeClaimSettled:          "ClaimSettled",
	EventTypeInsurerInsolvent:      "InsurerInsolvent",

	EventTypeFollowerQuoteRequested: "FollowerQuoteRequested",
	EventTypeFollowerQuoteIssued:    "FollowerQuoteIssued",
	EventTypeFollowerQuoteDeclined:  "FollowerQuoteDeclined",
}

// String returns the variant tag used in the persisted log.
func (et EventType) String() string {
	if name, ok := eventTypeNames[et]; ok {
		return name
	}
	return "Unknown"
}

// ParseEventType is the inverse of String.
func ParseEventType(name string) (EventType, bool) {
	for et, n := range eventTypeNames {
		if n == name {
			return et, true
		}
	}
	return EventTypeUnknown, false
}
