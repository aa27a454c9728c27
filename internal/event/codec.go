package event

import (
	"encoding/json"
	"fmt"
)

// The persisted form of a record is externally tagged:
//
//	{"day":12,"event":{"PolicyBound":{"policy_id":3,...}}}
//
// Variant tags and field names are a stable contract with log consumers.

type wireRecord struct {
	Day   Day                        `json:"day"`
	Event map[string]json.RawMessage `json:"event"`
}

var constructors = map[EventType]func() Event{
	EventTypeSimulationStart:       func() Event { return &SimulationStart{} },
	EventTypeYearStart:             func() Event { return &YearStart{} },
	EventTypeYearEnd:               func() Event { return &YearEnd{} },
	EventTypeCoverageRequested:     func() Event { return &CoverageRequested{} },
	EventTypeLeadQuoteRequested:    func() Event { return &LeadQuoteRequested{} },
	EventTypeLeadQuoteIssued:       func() Event { return &LeadQuoteIssued{} },
	EventTypeLeadQuoteDeclined:     func() Event { return &LeadQuoteDeclined{} },
	EventTypeSubmissionDropped:     func() Event { return &SubmissionDropped{} },
	EventTypeQuotePresented:        func() Event { return &QuotePresented{} },
	EventTypeQuoteAccepted:         func() Event { return &QuoteAccepted{} },
	EventTypeQuoteRejected:         func() Event { return &QuoteRejected{} },
	EventTypePolicyBound:           func() Event { return &PolicyBound{} },
	EventTypePolicyExpired:         func() Event { return &PolicyExpired{} },
	EventTypeLossEvent:             func() Event { return &LossEvent{} },
	EventTypeAttritionalOccurrence: func() Event { return &AttritionalOccurrence{} },
	EventTypeInsuredLoss:           func() Event { return &InsuredLoss{} },
	EventTypeClaimSettled:          func() Event { return &ClaimSettled{} },
	EventTypeInsurerInsolvent:      func() Event { return &InsurerInsolvent{} },

	EventTypeFollowerQuoteRequested: func() Event { return &FollowerQuoteRequested{} },
	EventTypeFollowerQuoteIssued:    func() Event { return &FollowerQuoteIssued{} },
	EventTypeFollowerQuoteDeclined:  func() Event { return &FollowerQuoteDeclined{} },
}

// MarshalRecord encodes one record as a single JSON line without the
// trailing newline.
func MarshalRecord(day Day, ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("marshal record: nil event")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.EventType(), err)
	}
	return json.Marshal(wireRecord{
		Day:   day,
		Event: map[string]json.RawMessage{ev.EventType().String(): payload},
	})
}

// UnmarshalRecord decodes one line produced by MarshalRecord. Seq is left
// zero; readers assign it from line order.
func UnmarshalRecord(line []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if len(w.Event) != 1 {
		return Record{}, fmt.Errorf("decode record: expected exactly one variant, got %d", len(w.Event))
	}

	for tag, raw := range w.Event {
		et, ok := ParseEventType(tag)
		if !ok {
			return Record{}, fmt.Errorf("decode record: unknown variant %q", tag)
		}
		ev := constructors[et]()
		if err := json.Unmarshal(raw, ev); err != nil {
			return Record{}, fmt.Errorf("decode %s: %w", tag, err)
		}
		return Record{Day: w.Day, Event: ev}, nil
	}
	panic("unreachable")
}
