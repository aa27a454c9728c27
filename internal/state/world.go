package state

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/pricing"
	"InsMarket/internal/rng"
	"InsMarket/internal/routing"
	"fmt"
	"slices"
)

// World is the aggregate registry of one run. Aggregates refer to each other
// by ID only; the registry resolves an ID to a live aggregate for the
// duration of one handler call.
type World struct {
	cfg config.Config

	market *Market
	broker *Broker
	losses *LossGenerator

	insurers   map[event.InsurerID]*Insurer
	insurerIDs []event.InsurerID
	insureds   map[event.InsuredID]*Insured
	insuredIDs []event.InsuredID

	pricer  pricing.Pricer
	routing routing.Policy
}

// NewWorld builds every aggregate from its initial configuration.
func NewWorld(cfg config.Config) (*World, error) {
	pricer, err := pricing.New(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	router, err := routing.New(cfg.Broker.Routing)
	if err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}

	w := &World{
		cfg:      cfg,
		market:   NewMarket(cfg),
		broker:   NewBroker(cfg.Broker),
		losses:   NewLossGenerator(cfg.Perils.Zones),
		insurers: make(map[event.InsurerID]*Insurer, len(cfg.Insurers)),
		insureds: make(map[event.InsuredID]*Insured, len(cfg.Insureds)),
		pricer:   pricer,
		routing:  router,
	}
	for _, ic := range cfg.Insurers {
		w.insurers[ic.ID] = NewInsurer(ic)
		w.insurerIDs = append(w.insurerIDs, ic.ID)
	}
	for _, sc := range cfg.Insureds {
		w.insureds[sc.ID] = NewInsured(sc, cfg.Broker, cfg.TermDays())
		w.insuredIDs = append(w.insuredIDs, sc.ID)
	}
	slices.Sort(w.insurerIDs)
	slices.Sort(w.insuredIDs)
	return w, nil
}

func (w *World) Config() config.Config         { return w.cfg }
func (w *World) Market() *Market               { return w.market }
func (w *World) Broker() *Broker               { return w.broker }
func (w *World) LossGenerator() *LossGenerator { return w.losses }
func (w *World) InsurerIDs() []event.InsurerID { return w.insurerIDs }
func (w *World) InsuredIDs() []event.InsuredID { return w.insuredIDs }

func (w *World) Insurer(id event.InsurerID) (*Insurer, bool) {
	i, ok := w.insurers[id]
	return i, ok
}

func (w *World) Insured(id event.InsuredID) (*Insured, bool) {
	s, ok := w.insureds[id]
	return s, ok
}

// View returns the read-only facade handed to Decide.
func (w *World) View() View {
	return View{w: w}
}

// Handle runs one event through every target in role order: each target
// decides against its pre-state, then applies. Outputs are concatenated in
// target order.
func (w *World) Handle(day event.Day, ev event.Event, g *rng.RNG) []event.Emission {
	var out []event.Emission
	v := w.View()
	for _, t := range w.Route(ev) {
		h, ok := w.Resolve(t)
		if !ok {
			continue
		}
		out = append(out, h.Decide(day, ev, g, v)...)
		h.Apply(day, ev)
	}
	return out
}

// Apply folds a logged event into the world without deciding anything. It
// is the replay path.
func (w *World) Apply(day event.Day, ev event.Event) {
	for _, t := range w.Route(ev) {
		if h, ok := w.Resolve(t); ok {
			h.Apply(day, ev)
		}
	}
}

// View is what Decide may read beyond the aggregate's own fields. Every
// accessor reports the start-of-day value where the value can move within a
// day.
type View struct {
	w *World
}

func (v View) Benchmark(day event.Day) float64 {
	return v.w.market.Benchmark(day)
}

// Candidates returns every insurer's opening position on day, in ID order.
func (v View) Candidates(day event.Day) []routing.Candidate {
	out := make([]routing.Candidate, 0, len(v.w.insurerIDs))
	for _, id := range v.w.insurerIDs {
		pos := v.w.insurers[id].opening(day)
		out = append(out, routing.Candidate{ID: id, Capital: pos.capital, Insolvent: pos.insolvent})
	}
	return out
}

func (v View) Routing() routing.Policy {
	return v.w.routing
}

func (v View) Price(in pricing.Input) int64 {
	return v.w.pricer.Price(in)
}

func (v View) ExpectedLossRate(r event.Risk) float64 {
	return v.w.cfg.Perils.ExpectedLossRate(r)
}
