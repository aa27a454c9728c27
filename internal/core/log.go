package core

import (
	"InsMarket/internal/event"
	"iter"
	"slices"
)

// EventLog is the append-only record of every dispatched event, in dispatch
// order. It has no mutation or deletion API; every derived view is a fold
// over Slice(0).
type EventLog struct {
	records []event.Record
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records ev and returns its sequence index.
func (l *EventLog) Append(day event.Day, ev event.Event) int64 {
	seq := int64(len(l.records))
	l.records = append(l.records, event.Record{Seq: seq, Day: day, Event: ev})
	return seq
}

func (l *EventLog) Len() int {
	return len(l.records)
}

// At returns the record with sequence index seq.
func (l *EventLog) At(seq int64) (event.Record, bool) {
	if seq < 0 || seq >= int64(len(l.records)) {
		return event.Record{}, false
	}
	return l.records[seq], true
}

// Slice returns the records from index from onward. The result is clipped,
// so appending to it never writes into the log.
func (l *EventLog) Slice(from int64) []event.Record {
	if from < 0 {
		from = 0
	}
	if from >= int64(len(l.records)) {
		return nil
	}
	return slices.Clip(l.records[from:])
}

// All iterates the log as it stands when iteration starts.
func (l *EventLog) All() iter.Seq2[int64, event.Record] {
	records := l.Slice(0)
	return func(yield func(int64, event.Record) bool) {
		for _, r := range records {
			if !yield(r.Seq, r) {
				return
			}
		}
	}
}

// Cursor returns a restartable reader positioned at the start of the log.
func (l *EventLog) Cursor() *Cursor {
	return &Cursor{log: l}
}

// Cursor remembers the last index it handed out. Each Next yields only the
// suffix appended since the previous call.
type Cursor struct {
	log  *EventLog
	next int64
}

func (c *Cursor) Next() []event.Record {
	out := c.log.Slice(c.next)
	c.next += int64(len(out))
	return out
}

// Position is the index of the next record the cursor will return.
func (c *Cursor) Position() int64 {
	return c.next
}

// Seek moves the cursor so the next read starts at pos, clamped to the log.
func (c *Cursor) Seek(pos int64) {
	c.next = min(max(pos, 0), int64(c.log.Len()))
}

// Reset rewinds the cursor to the start of the log.
func (c *Cursor) Reset() {
	c.next = 0
}
