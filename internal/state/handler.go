package state

import (
	"InsMarket/internal/event"
	"InsMarket/internal/rng"
)

// Handler is the contract every aggregate implements.
//
// Decide sees the aggregate before the event is applied and returns the
// events to schedule; it must not mutate anything. Apply folds the event into
// the aggregate's own fields; it draws no randomness and is the only code
// path replay uses, so live state and reconstructed state cannot drift.
//
// Neither method may panic on an unknown or retired ID: such events produce
// no output and no change.
type Handler interface {
	Decide(day event.Day, ev event.Event, g *rng.RNG, v View) []event.Emission
	Apply(day event.Day, ev event.Event)
}

// dayOpen remembers a value as it stood before the first mutation of a day.
// Quoting and acceptance decisions read the opening value, so their outcome
// does not depend on how same-day events happen to be ordered.
type dayOpen[T any] struct {
	day   event.Day
	value T
	valid bool
}

// mark snapshots the current value once per day; call it before mutating.
func (o *dayOpen[T]) mark(day event.Day, snapshot func() T) {
	if o.valid && o.day == day {
		return
	}
	o.day, o.value, o.valid = day, snapshot(), true
}

// at returns the opening value for day, or current if nothing has been
// mutated on that day yet.
func (o *dayOpen[T]) at(day event.Day, current T) T {
	if o.valid && o.day == day {
		return o.value
	}
	return current
}
