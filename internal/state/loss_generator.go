package state

import (
	"InsMarket/internal/event"
	"InsMarket/internal/perils"
	"InsMarket/internal/rng"
)

// LossGenerator schedules the year's catastrophe occurrences when the year
// opens. Its ID allocator advances as the occurrences are dispatched.
type LossGenerator struct {
	zones  []perils.CatZone
	nextID event.LossEventID
	issued int
}

func NewLossGenerator(zones []perils.CatZone) *LossGenerator {
	return &LossGenerator{zones: zones, nextID: 1}
}

func (l *LossGenerator) NextID() event.LossEventID { return l.nextID }
func (l *LossGenerator) Occurrences() int          { return l.issued }

func (l *LossGenerator) Decide(_ event.Day, ev event.Event, g *rng.RNG, _ View) []event.Emission {
	if _, ok := ev.(*event.YearStart); !ok {
		return nil
	}
	var out []event.Emission
	id := l.nextID
	for _, z := range l.zones {
		for _, occ := range z.Occurrences(g) {
			// occurrence days fall in [1, 359] after year start
			out = append(out, event.After(occ.Offset, &event.LossEvent{
				EventID:        id,
				Territory:      z.Territory,
				Peril:          z.Peril,
				DamageFraction: occ.DamageFraction,
			}))
			id++
		}
	}
	return out
}

func (l *LossGenerator) Apply(_ event.Day, ev event.Event) {
	if e, ok := ev.(*event.LossEvent); ok {
		l.nextID = max(l.nextID, e.EventID+1)
		l.issued++
	}
}
