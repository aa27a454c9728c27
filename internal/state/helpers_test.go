package state_test

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/state"
	"testing"
)

func mustWorld(t *testing.T, cfg config.Config) *state.World {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	w, err := state.NewWorld(cfg)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func mustInsurer(t *testing.T, w *state.World, id event.InsurerID) *state.Insurer {
	t.Helper()
	i, ok := w.Insurer(id)
	if !ok {
		t.Fatalf("insurer %d not found", id)
	}
	return i
}

func mustPolicy(t *testing.T, w *state.World, id event.PolicyID) *state.Policy {
	t.Helper()
	p, ok := w.Market().Policy(id)
	if !ok {
		t.Fatalf("policy %d not found", id)
	}
	return p
}

// emitted returns every emission carrying an event of type T.
func emitted[T event.Event](out []event.Emission) []T {
	var got []T
	for _, em := range out {
		if e, ok := em.Event.(T); ok {
			got = append(got, e)
		}
	}
	return got
}

// single returns the only emission of type T and its offset.
func single[T event.Event](t *testing.T, out []event.Emission) (T, event.Day) {
	t.Helper()
	var (
		found  T
		offset event.Day
		n      int
	)
	for _, em := range out {
		if e, ok := em.Event.(T); ok {
			found, offset = e, em.Offset
			n++
		}
	}
	if n != 1 {
		t.Fatalf("got %d emissions of %T, want 1 (all: %v)", n, found, out)
	}
	return found, offset
}
