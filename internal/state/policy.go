package state

import (
	"InsMarket/internal/event"
	fpmath "InsMarket/internal/math"
	"InsMarket/internal/perils"
	"InsMarket/internal/rng"
)

type PolicyStage uint8

const (
	PolicyPending PolicyStage = iota
	PolicyActive
	PolicyRetired
)

func (s PolicyStage) String() string {
	switch s {
	case PolicyPending:
		return "pending"
	case PolicyActive:
		return "bound"
	case PolicyRetired:
		return "expired"
	default:
		return "unknown"
	}
}

// Policy is one bound contract. It lives in the market's policy map but owns
// its own fields: stage, coverage window and the per-year ground-up headroom.
type Policy struct {
	id        event.PolicyID
	insuredID event.InsuredID
	terms     event.Risk
	panel     []event.PanelEntry
	premium   int64

	stage     PolicyStage
	boundDay  event.Day
	expiryDay event.Day

	// used is the ground-up loss already attributed per calendar year.
	used map[event.Year]int64

	term        event.Day
	attritional perils.Attritional

	groundUp    int64
	incurred    int64
	occurrences int
}

func newPolicy(e *event.PolicyBound, term event.Day, attritional perils.Attritional) *Policy {
	return &Policy{
		id:          e.PolicyID,
		insuredID:   e.InsuredID,
		terms:       e.Terms(),
		panel:       e.Panel,
		premium:     e.Premium,
		used:        make(map[event.Year]int64),
		term:        term,
		attritional: attritional,
	}
}

func (p *Policy) ID() event.PolicyID          { return p.id }
func (p *Policy) InsuredID() event.InsuredID  { return p.insuredID }
func (p *Policy) Terms() event.Risk           { return p.terms }
func (p *Policy) Panel() []event.PanelEntry   { return p.panel }
func (p *Policy) Premium() int64              { return p.premium }
func (p *Policy) Stage() PolicyStage          { return p.stage }
func (p *Policy) BoundDay() event.Day         { return p.boundDay }
func (p *Policy) ExpiryDay() event.Day        { return p.expiryDay }
func (p *Policy) GroundUpLoss() int64         { return p.groundUp }
func (p *Policy) Incurred() int64             { return p.incurred }
func (p *Policy) Occurrences() int            { return p.occurrences }
func (p *Policy) UsedIn(y event.Year) int64   { return p.used[y] }
func (p *Policy) Headroom(y event.Year) int64 { return p.terms.SumInsured - p.used[y] }

// Covered reports whether a loss dated day falls strictly inside the
// coverage window. Bind and expiry days themselves are not covered.
func (p *Policy) Covered(day event.Day) bool {
	return p.stage == PolicyActive && p.boundDay < day && day < p.expiryDay
}

// groundUpLoss is the capped ground-up loss of an occurrence, or zero when
// the policy does not respond to it.
func (p *Policy) groundUpLoss(day event.Day, peril event.Peril, df float64) int64 {
	if !p.Covered(day) || !p.terms.Covers(peril) {
		return 0
	}
	gul := fpmath.ScaleFraction(p.terms.SumInsured, df)
	return max(min(gul, p.Headroom(event.YearOf(day))), 0)
}

func (p *Policy) occurrenceLoss(ev event.Event) (peril event.Peril, df float64, ok bool) {
	switch e := ev.(type) {
	case *event.LossEvent:
		if e.Territory != p.terms.Territory {
			return "", 0, false
		}
		return e.Peril, e.DamageFraction, true
	case *event.AttritionalOccurrence:
		if e.PolicyID != p.id {
			return "", 0, false
		}
		return event.PerilAttritional, e.DamageFraction, true
	}
	return "", 0, false
}

func (p *Policy) Decide(day event.Day, ev event.Event, g *rng.RNG, _ View) []event.Emission {
	switch e := ev.(type) {
	case *event.PolicyBound:
		if e.PolicyID != p.id || p.stage != PolicyPending {
			return nil
		}
		return p.decideBound(g)

	case *event.LossEvent, *event.AttritionalOccurrence:
		peril, df, ok := p.occurrenceLoss(ev)
		if !ok {
			return nil
		}
		gul := p.groundUpLoss(day, peril, df)
		if gul <= 0 {
			return nil
		}
		loss := &event.InsuredLoss{
			PolicyID:     p.id,
			InsuredID:    p.insuredID,
			Peril:        peril,
			GroundUpLoss: gul,
		}
		if le, isCat := e.(*event.LossEvent); isCat {
			loss.EventID = le.EventID
		} else {
			loss.Occurrence = e.(*event.AttritionalOccurrence).Occurrence
		}
		return []event.Emission{event.Now(loss)}

	case *event.InsuredLoss:
		if e.PolicyID != p.id || p.stage == PolicyPending {
			return nil
		}
		return p.settle(e)
	}
	return nil
}

// decideBound schedules the expiry and the policy's attritional losses.
func (p *Policy) decideBound(g *rng.RNG) []event.Emission {
	out := []event.Emission{event.After(p.term, &event.PolicyExpired{
		PolicyID:  p.id,
		InsuredID: p.insuredID,
	})}
	if !p.terms.Covers(event.PerilAttritional) {
		return out
	}
	for n, occ := range p.attritional.Occurrences(g, p.term) {
		out = append(out, event.After(occ.Offset, &event.AttritionalOccurrence{
			PolicyID:       p.id,
			Occurrence:     uint32(n + 1),
			DamageFraction: occ.DamageFraction,
		}))
	}
	return out
}

// settle splits the insured layer of a loss across the panel.
func (p *Policy) settle(e *event.InsuredLoss) []event.Emission {
	layer := fpmath.InsuredLayer(e.GroundUpLoss, p.terms.Attachment, p.terms.Limit)
	if layer <= 0 {
		return nil
	}
	shares := make([]int64, len(p.panel))
	for i, entry := range p.panel {
		shares[i] = entry.ShareBps
	}
	var out []event.Emission
	for i, amount := range fpmath.SplitByShares(layer, shares) {
		if amount <= 0 {
			continue
		}
		out = append(out, event.Now(&event.ClaimSettled{
			PolicyID:   p.id,
			InsurerID:  p.panel[i].InsurerID,
			EventID:    e.EventID,
			Occurrence: e.Occurrence,
			Amount:     amount,
		}))
	}
	return out
}

func (p *Policy) Apply(day event.Day, ev event.Event) {
	switch e := ev.(type) {
	case *event.PolicyBound:
		if e.PolicyID != p.id || p.stage != PolicyPending {
			return
		}
		p.stage = PolicyActive
		p.boundDay = day
		p.expiryDay = day + p.term

	case *event.PolicyExpired:
		if e.PolicyID == p.id && p.stage == PolicyActive {
			p.stage = PolicyRetired
		}

	case *event.LossEvent, *event.AttritionalOccurrence:
		peril, df, ok := p.occurrenceLoss(ev)
		if !ok {
			return
		}
		if gul := p.groundUpLoss(day, peril, df); gul > 0 {
			p.used[event.YearOf(day)] += gul
		}

	case *event.InsuredLoss:
		if e.PolicyID != p.id {
			return
		}
		p.groundUp += e.GroundUpLoss
		p.incurred += fpmath.InsuredLayer(e.GroundUpLoss, p.terms.Attachment, p.terms.Limit)
		p.occurrences++
	}
}
