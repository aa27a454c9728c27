package core

import (
	"InsMarket/internal/event"
	"fmt"
)

// FactGuard rejects a second occurrence of a one-shot fact: a policy binds
// and expires once, an insurer fails once, a submission drops once.
// Not thread-safe; only the dispatch loop touches it.
type FactGuard struct {
	seen       map[string]int64
	duplicates map[event.EventType]int64
}

func NewFactGuard() *FactGuard {
	return &FactGuard{
		seen:       make(map[string]int64),
		duplicates: make(map[event.EventType]int64),
	}
}

// factKey returns the identity of a one-shot fact, or "" for events that
// may legitimately repeat.
func factKey(ev event.Event) string {
	switch e := ev.(type) {
	case *event.PolicyBound:
		return fmt.Sprintf("%s:%d", ev.EventType(), e.PolicyID)
	case *event.PolicyExpired:
		return fmt.Sprintf("%s:%d", ev.EventType(), e.PolicyID)
	case *event.InsurerInsolvent:
		return fmt.Sprintf("%s:%d", ev.EventType(), e.InsurerID)
	case *event.SubmissionDropped:
		return fmt.Sprintf("%s:%d", ev.EventType(), e.SubmissionID)
	case *event.SimulationStart:
		return ev.EventType().String()
	case *event.YearStart:
		return fmt.Sprintf("%s:%d", ev.EventType(), e.Year)
	case *event.YearEnd:
		return fmt.Sprintf("%s:%d", ev.EventType(), e.Year)
	}
	return ""
}

// Observe records ev at seq and fails if the same fact was already logged.
func (g *FactGuard) Observe(seq int64, ev event.Event) error {
	key := factKey(ev)
	if key == "" {
		return nil
	}
	if first, ok := g.seen[key]; ok {
		g.duplicates[ev.EventType()]++
		return fmt.Errorf("duplicate fact %s: first at seq %d, again at seq %d", key, first, seq)
	}
	g.seen[key] = seq
	return nil
}

// Duplicates returns how many repeats of an event type were rejected.
func (g *FactGuard) Duplicates(et event.EventType) int64 {
	return g.duplicates[et]
}
