package state

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	fpmath "InsMarket/internal/math"
	"InsMarket/internal/perils"
	"InsMarket/internal/rng"
	"slices"
)

// Market is the coordinator. It keeps the calendar running, owns the policy
// map and the territory/peril index, and tracks year-to-date totals. It takes
// no pricing or acceptance decision.
type Market struct {
	policies map[event.PolicyID]*Policy
	index    map[indexKey][]event.PolicyID

	years map[event.Year]*YearTotals

	// benchmark is the industry loss ratio EWMA over years <= closedThrough.
	benchmark     float64
	closedThrough event.Year
	weight        float64

	runYears    int
	year        event.Year
	term        event.Day
	attritional perils.Attritional
}

type indexKey struct {
	territory event.Territory
	peril     event.Peril
}

// YearTotals are the market-wide figures of one calendar year, each counted
// in the year of the day its event was dispatched on.
type YearTotals struct {
	Premium             int64
	SumInsured          int64
	Claims              int64
	CatGroundUp         int64
	AttritionalGroundUp int64
	PoliciesBound       int
	Insolvencies        int
}

// LossRatio is claims over written premium for the year.
func (t YearTotals) LossRatio() float64 {
	return fpmath.Ratio(t.Claims, t.Premium)
}

func NewMarket(cfg config.Config) *Market {
	return &Market{
		policies:    make(map[event.PolicyID]*Policy),
		index:       make(map[indexKey][]event.PolicyID),
		years:       make(map[event.Year]*YearTotals),
		benchmark:   cfg.Market.InitialBenchmark,
		weight:      cfg.Market.BenchmarkWeight,
		term:        cfg.TermDays(),
		attritional: cfg.Perils.Attritional,
	}
}

func (m *Market) Year() event.Year { return m.year }

// Policy returns a policy by ID, retired ones included.
func (m *Market) Policy(id event.PolicyID) (*Policy, bool) {
	p, ok := m.policies[id]
	return p, ok
}

// PolicyIDs returns every known policy ID in ascending order.
func (m *Market) PolicyIDs() []event.PolicyID {
	ids := make([]event.PolicyID, 0, len(m.policies))
	for id := range m.policies {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Exposed returns the live policies responding to a catastrophe occurrence
// in territory for peril, in ascending ID order.
func (m *Market) Exposed(t event.Territory, p event.Peril) []event.PolicyID {
	return m.index[indexKey{territory: t, peril: p}]
}

// Totals returns the year-to-date totals for year y.
func (m *Market) Totals(y event.Year) YearTotals {
	if t := m.years[y]; t != nil {
		return *t
	}
	return YearTotals{}
}

// Benchmark returns the industry loss ratio used by quotes dated day. Every
// year before the quote's year counts as closed.
func (m *Market) Benchmark(day event.Day) float64 {
	return m.benchmarkAt(event.YearOf(day))
}

func (m *Market) benchmarkAt(y event.Year) float64 {
	b := m.benchmark
	for cy := m.closedThrough + 1; cy < y; cy++ {
		t := m.years[cy]
		if t == nil || t.Premium <= 0 {
			continue
		}
		b = m.weight*t.LossRatio() + (1-m.weight)*b
	}
	return b
}

func (m *Market) totals(day event.Day) *YearTotals {
	y := event.YearOf(day)
	t := m.years[y]
	if t == nil {
		t = &YearTotals{}
		m.years[y] = t
	}
	return t
}

func (m *Market) Decide(_ event.Day, ev event.Event, _ *rng.RNG, _ View) []event.Emission {
	switch e := ev.(type) {
	case *event.SimulationStart:
		return []event.Emission{event.Now(&event.YearStart{Year: e.YearStart})}

	case *event.YearStart:
		return []event.Emission{event.After(event.DaysPerYear-1, &event.YearEnd{Year: e.Year})}

	case *event.YearEnd:
		if int(e.Year) >= m.runYears {
			return nil
		}
		return []event.Emission{event.After(1, &event.YearStart{Year: e.Year + 1})}
	}
	return nil
}

func (m *Market) Apply(day event.Day, ev event.Event) {
	switch e := ev.(type) {
	case *event.SimulationStart:
		m.runYears = e.Years

	case *event.YearStart:
		m.benchmark = m.benchmarkAt(e.Year)
		m.closedThrough = e.Year - 1
		m.year = e.Year

	case *event.PolicyBound:
		if _, ok := m.policies[e.PolicyID]; ok {
			return
		}
		p := newPolicy(e, m.term, m.attritional)
		m.policies[e.PolicyID] = p
		for _, peril := range p.terms.CatPerils() {
			m.insert(indexKey{territory: p.terms.Territory, peril: peril}, e.PolicyID)
		}
		t := m.totals(day)
		t.Premium += e.Premium
		t.SumInsured += e.SumInsured
		t.PoliciesBound++

	case *event.PolicyExpired:
		p, ok := m.policies[e.PolicyID]
		if !ok {
			return
		}
		for _, peril := range p.terms.CatPerils() {
			m.remove(indexKey{territory: p.terms.Territory, peril: peril}, e.PolicyID)
		}

	case *event.InsuredLoss:
		t := m.totals(day)
		if e.Peril.IsCatastrophe() {
			t.CatGroundUp += e.GroundUpLoss
		} else {
			t.AttritionalGroundUp += e.GroundUpLoss
		}

	case *event.ClaimSettled:
		m.totals(day).Claims += e.Amount

	case *event.InsurerInsolvent:
		m.totals(day).Insolvencies++
	}
}

func (m *Market) insert(k indexKey, id event.PolicyID) {
	ids := m.index[k]
	i, found := slices.BinarySearch(ids, id)
	if found {
		return
	}
	m.index[k] = slices.Insert(ids, i, id)
}

func (m *Market) remove(k indexKey, id event.PolicyID) {
	ids := m.index[k]
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return
	}
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		delete(m.index, k)
		return
	}
	m.index[k] = ids
}
