package state

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	fpmath "InsMarket/internal/math"
	"InsMarket/internal/pricing"
	"InsMarket/internal/rng"
	"maps"
)

// Insurer owns a capital balance, its in-force book and its realized-loss
// experience. Capital moves only on premium credit and claim debit.
type Insurer struct {
	cfg config.InsurerConfig

	capital      int64
	insolvent    bool
	insolventDay event.Day

	inForce     map[event.PolicyID]exposure
	catExposure map[event.Territory]int64
	open        dayOpen[position]

	books         map[event.Year]*insurerBook
	ewmaLossRatio float64
	experience    int
	closedThrough event.Year

	quotesIssued    int
	quotesDeclined  int
	followsIssued   int
	followsDeclined int
	claimsPaid      int64
}

type exposure struct {
	territory event.Territory
	limit     int64
	cat       bool
}

// position is what a quote decision is taken against.
type position struct {
	capital     int64
	insolvent   bool
	catExposure map[event.Territory]int64
}

type insurerBook struct {
	premium int64
	claims  int64
}

func NewInsurer(cfg config.InsurerConfig) *Insurer {
	return &Insurer{
		cfg:         cfg,
		capital:     cfg.Capital,
		inForce:     make(map[event.PolicyID]exposure),
		catExposure: make(map[event.Territory]int64),
		books:       make(map[event.Year]*insurerBook),
	}
}

func (i *Insurer) ID() event.InsurerID     { return i.cfg.ID }
func (i *Insurer) Capital() int64          { return i.capital }
func (i *Insurer) Insolvent() bool         { return i.insolvent }
func (i *Insurer) InsolventDay() event.Day { return i.insolventDay }
func (i *Insurer) InForce() int            { return len(i.inForce) }
func (i *Insurer) ClaimsPaid() int64       { return i.claimsPaid }
func (i *Insurer) QuotesIssued() int       { return i.quotesIssued }
func (i *Insurer) QuotesDeclined() int     { return i.quotesDeclined }

// FollowsIssued and FollowsDeclined count follower quotes.
func (i *Insurer) FollowsIssued() int   { return i.followsIssued }
func (i *Insurer) FollowsDeclined() int { return i.followsDeclined }

// CatExposure returns the aggregate catastrophe limit written in a territory.
func (i *Insurer) CatExposure(t event.Territory) int64 { return i.catExposure[t] }

// opening returns the position as it stood at the start of day.
func (i *Insurer) opening(day event.Day) position {
	return i.open.at(day, position{
		capital:     i.capital,
		insolvent:   i.insolvent,
		catExposure: i.catExposure,
	})
}

func (i *Insurer) touch(day event.Day) {
	i.open.mark(day, func() position {
		return position{
			capital:     i.capital,
			insolvent:   i.insolvent,
			catExposure: maps.Clone(i.catExposure),
		}
	})
}

// Experience returns the realized record as it stands for quotes in year y:
// every year before y is treated as closed.
func (i *Insurer) Experience(y event.Year) pricing.Experience {
	lr, years := i.ewmaLossRatio, i.experience
	for cy := i.closedThrough + 1; cy < y; cy++ {
		b := i.books[cy]
		if b == nil || b.premium <= 0 {
			continue
		}
		yearLR := fpmath.Ratio(b.claims, b.premium)
		if years == 0 {
			lr = yearLR
		} else {
			lr = i.cfg.ExperienceWeight*yearLR + (1-i.cfg.ExperienceWeight)*lr
		}
		years++
	}
	return pricing.Experience{LossRatio: lr, Years: years}
}

func (i *Insurer) book(day event.Day) *insurerBook {
	y := event.YearOf(day)
	b := i.books[y]
	if b == nil {
		b = &insurerBook{}
		i.books[y] = b
	}
	return b
}

func (i *Insurer) Decide(day event.Day, ev event.Event, _ *rng.RNG, v View) []event.Emission {
	switch e := ev.(type) {
	case *event.LeadQuoteRequested:
		return i.decideQuote(day, e, v)

	case *event.FollowerQuoteRequested:
		return i.decideFollow(day, e)

	case *event.ClaimSettled:
		if e.InsurerID != i.cfg.ID {
			return nil
		}
		if i.wouldBecomeInsolvent(e.Amount) {
			return []event.Emission{event.Now(&event.InsurerInsolvent{InsurerID: i.cfg.ID})}
		}
	}
	return nil
}

// decideQuote applies the capacity rules against the opening position. Both
// limits scale with current capital, so a depleted insurer tightens on its
// own.
func (i *Insurer) decideQuote(day event.Day, e *event.LeadQuoteRequested, v View) []event.Emission {
	if e.InsurerID != i.cfg.ID {
		return nil
	}
	pos := i.opening(day)

	decline := func(reason event.DeclineReason) []event.Emission {
		return []event.Emission{event.Now(&event.LeadQuoteDeclined{
			SubmissionID: e.SubmissionID,
			InsuredID:    e.InsuredID,
			InsurerID:    i.cfg.ID,
			Attempt:      e.Attempt,
			Reason:       reason,
		})}
	}

	if reason := i.capacity(pos, e.Risk, e.Risk.Limit); reason != "" {
		return decline(reason)
	}

	premium := v.Price(pricing.Input{
		Risk:             e.Risk,
		RateOnLineBps:    i.cfg.RateOnLineBps,
		TargetLossRatio:  i.cfg.TargetLossRatio,
		ExpectedLossRate: v.ExpectedLossRate(e.Risk),
		Experience:       i.Experience(event.YearOf(day)),
		Benchmark:        v.Benchmark(day),
	})
	return []event.Emission{event.Now(&event.LeadQuoteIssued{
		SubmissionID: e.SubmissionID,
		InsuredID:    e.InsuredID,
		InsurerID:    i.cfg.ID,
		Attempt:      e.Attempt,
		Premium:      premium,
	})}
}

// decideFollow writes a share at the lead's price. The capacity rules see
// only the share of the limit.
func (i *Insurer) decideFollow(day event.Day, e *event.FollowerQuoteRequested) []event.Emission {
	if e.InsurerID != i.cfg.ID {
		return nil
	}
	limit := fpmath.ApplyBps(e.Risk.Limit, e.ShareBps, fpmath.RoundDown)
	if reason := i.capacity(i.opening(day), e.Risk, limit); reason != "" {
		return []event.Emission{event.Now(&event.FollowerQuoteDeclined{
			SubmissionID: e.SubmissionID,
			InsuredID:    e.InsuredID,
			InsurerID:    i.cfg.ID,
			Reason:       reason,
		})}
	}
	return []event.Emission{event.Now(&event.FollowerQuoteIssued{
		SubmissionID: e.SubmissionID,
		InsuredID:    e.InsuredID,
		InsurerID:    i.cfg.ID,
		ShareBps:     e.ShareBps,
		Premium:      fpmath.ApplyBps(e.LeadPremium, e.ShareBps, fpmath.RoundDown),
	})}
}

// capacity returns why a line of limit on risk cannot be written against
// pos, or "" when it can.
func (i *Insurer) capacity(pos position, risk event.Risk, limit int64) event.DeclineReason {
	// insolvency is permanent, so the live flag applies from the same day on
	if pos.insolvent || i.insolvent {
		return event.DeclineInsolvent
	}
	if limit > fpmath.FloorFraction(pos.capital, i.cfg.LineSizeFraction) {
		return event.DeclineLineLimit
	}
	if risk.HasCatExposure() {
		ceiling := fpmath.FloorFraction(pos.capital, i.cfg.CatExposureMultiple)
		if pos.catExposure[risk.Territory]+limit > ceiling {
			return event.DeclineCatExposure
		}
	}
	return ""
}

// wouldBecomeInsolvent is true for the first positive claim that takes
// capital to zero.
func (i *Insurer) wouldBecomeInsolvent(amount int64) bool {
	return !i.insolvent && amount > 0 && amount >= i.capital
}

func (i *Insurer) Apply(day event.Day, ev event.Event) {
	switch e := ev.(type) {
	case *event.YearStart:
		exp := i.Experience(e.Year)
		i.ewmaLossRatio, i.experience = exp.LossRatio, exp.Years
		for y := range i.books {
			if y < e.Year {
				delete(i.books, y)
			}
		}
		i.closedThrough = e.Year - 1

	case *event.LeadQuoteIssued:
		if e.InsurerID == i.cfg.ID {
			i.quotesIssued++
		}

	case *event.LeadQuoteDeclined:
		if e.InsurerID == i.cfg.ID {
			i.quotesDeclined++
		}

	case *event.FollowerQuoteIssued:
		if e.InsurerID == i.cfg.ID {
			i.followsIssued++
		}

	case *event.FollowerQuoteDeclined:
		if e.InsurerID == i.cfg.ID {
			i.followsDeclined++
		}

	case *event.PolicyBound:
		i.applyBound(day, e)

	case *event.PolicyExpired:
		x, ok := i.inForce[e.PolicyID]
		if !ok {
			return
		}
		i.touch(day)
		if x.cat {
			i.catExposure[x.territory] -= x.limit
			if i.catExposure[x.territory] <= 0 {
				delete(i.catExposure, x.territory)
			}
		}
		delete(i.inForce, e.PolicyID)

	case *event.ClaimSettled:
		if e.InsurerID != i.cfg.ID || e.Amount <= 0 {
			return
		}
		i.touch(day)
		becomesInsolvent := i.wouldBecomeInsolvent(e.Amount)
		paid := min(e.Amount, i.capital)
		i.capital -= paid
		i.claimsPaid += paid
		i.book(day).claims += e.Amount
		if becomesInsolvent {
			i.insolvent = true
			i.insolventDay = day
		}
	}
}

func (i *Insurer) applyBound(day event.Day, e *event.PolicyBound) {
	for _, entry := range e.Panel {
		if entry.InsurerID != i.cfg.ID {
			continue
		}
		i.touch(day)
		i.capital += entry.Premium
		i.book(day).premium += entry.Premium

		x := exposure{
			territory: e.Territory,
			limit:     fpmath.ApplyBps(e.Limit, entry.ShareBps, fpmath.RoundDown),
			cat:       e.Terms().HasCatExposure(),
		}
		i.inForce[e.PolicyID] = x
		if x.cat {
			i.catExposure[x.territory] += x.limit
		}
	}
}
