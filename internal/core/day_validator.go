package core

import (
	"InsMarket/internal/event"
	"fmt"
)

// DayValidator enforces the kernel's ordering rules: dispatched days never
// go backwards and nothing is scheduled before the day that produced it.
// Not thread-safe; only the dispatch loop touches it.
type DayValidator struct {
	current event.Day
	started bool

	regressions int64
	pastPushes  int64
}

func NewDayValidator() *DayValidator {
	return &DayValidator{}
}

// ValidateDispatch records the day of the next dispatched event.
func (v *DayValidator) ValidateDispatch(day event.Day) error {
	if v.started && day < v.current {
		v.regressions++
		return fmt.Errorf("day regression: current=%d, got=%d", v.current, day)
	}
	v.current, v.started = day, true
	return nil
}

// ValidateSchedule checks an output is due on or after the current day.
func (v *DayValidator) ValidateSchedule(at event.Day) error {
	if v.started && at < v.current {
		v.pastPushes++
		return fmt.Errorf("scheduled into the past: current=%d, at=%d", v.current, at)
	}
	return nil
}

// Current returns the day of the last dispatched event.
func (v *DayValidator) Current() event.Day {
	return v.current
}

func (v *DayValidator) Regressions() int64 { return v.regressions }
func (v *DayValidator) PastPushes() int64  { return v.pastPushes }
