package state

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	fpmath "InsMarket/internal/math"
	"InsMarket/internal/rng"
)

const (
	// maxUpliftBps caps the post-loss increase of the reservation rate.
	maxUpliftBps int64 = 5_000
	// upliftPerDamageBps is the uplift for a total loss before the cap.
	upliftPerDamageBps int64 = 5_000
	// upliftRetainedPct is the share of the uplift carried into a new year.
	upliftRetainedPct int64 = 65
)

// Insured holds one risk, a reservation rate and its loss history. Recent
// damage raises the rate it is willing to pay; the uplift decays yearly.
type Insured struct {
	cfg    config.InsuredConfig
	broker config.BrokerConfig
	term   event.Day

	upliftBps  int64
	upliftYear event.Year
	open       dayOpen[int64]

	activePolicy event.PolicyID
	insured      bool

	groundUpLoss int64
	losses       int

	policiesBound  int
	quotesAccepted int
	quotesRejected int
	dropped        int
}

func NewInsured(cfg config.InsuredConfig, broker config.BrokerConfig, term event.Day) *Insured {
	return &Insured{cfg: cfg, broker: broker, term: term}
}

func (s *Insured) ID() event.InsuredID     { return s.cfg.ID }
func (s *Insured) Risk() event.Risk        { return s.cfg.Risk }
func (s *Insured) GroundUpLoss() int64     { return s.groundUpLoss }
func (s *Insured) Losses() int             { return s.losses }
func (s *Insured) PoliciesBound() int      { return s.policiesBound }
func (s *Insured) QuotesRejected() int     { return s.quotesRejected }
func (s *Insured) SubmissionsDropped() int { return s.dropped }

// ActivePolicy returns the policy currently covering the insured.
func (s *Insured) ActivePolicy() (event.PolicyID, bool) {
	return s.activePolicy, s.insured
}

// upliftAt returns the uplift with yearly decay applied through year y.
func (s *Insured) upliftAt(y event.Year) int64 {
	bps := s.upliftBps
	for cy := s.upliftYear; cy < y && bps > 0; cy++ {
		bps = bps * upliftRetainedPct / 100
	}
	return bps
}

// ReservationRate is the highest premium/sum-insured ratio the insured
// accepts on day, as it stood at the start of that day.
func (s *Insured) ReservationRate(day event.Day) float64 {
	uplift := s.open.at(day, s.upliftAt(event.YearOf(day)))
	return s.cfg.MaxRateOnLine + float64(uplift)/float64(fpmath.BpsScale)
}

func (s *Insured) request(offset event.Day) event.Emission {
	return event.After(offset, &event.CoverageRequested{InsuredID: s.cfg.ID, Risk: s.cfg.Risk})
}

func (s *Insured) Decide(day event.Day, ev event.Event, g *rng.RNG, _ View) []event.Emission {
	switch e := ev.(type) {
	case *event.SimulationStart:
		offset := event.Day(g.IntN(s.broker.StaggerDays))
		if s.cfg.RequestDay != nil {
			offset = event.Day(*s.cfg.RequestDay)
		}
		return []event.Emission{s.request(offset)}

	case *event.QuotePresented:
		if e.InsuredID != s.cfg.ID {
			return nil
		}
		rate := fpmath.Ratio(e.Premium, s.cfg.Risk.SumInsured)
		if rate > s.ReservationRate(day) {
			return []event.Emission{
				event.Now(&event.QuoteRejected{
					SubmissionID: e.SubmissionID,
					InsuredID:    e.InsuredID,
					InsurerID:    e.InsurerID,
					Premium:      e.Premium,
				}),
				// back on the market at the next renewal
				s.request(event.Day(s.broker.RenewalOffsetDays)),
			}
		}
		return []event.Emission{event.Now(&event.QuoteAccepted{
			SubmissionID: e.SubmissionID,
			InsuredID:    e.InsuredID,
			InsurerID:    e.InsurerID,
			Premium:      e.Premium,
		})}

	case *event.PolicyBound:
		if e.InsuredID != s.cfg.ID {
			return nil
		}
		return []event.Emission{s.request(s.term - event.Day(s.broker.RenewalLeadDays))}

	case *event.SubmissionDropped:
		if e.InsuredID != s.cfg.ID {
			return nil
		}
		return []event.Emission{s.request(event.Day(s.broker.RenewalOffsetDays))}
	}
	return nil
}

func (s *Insured) Apply(day event.Day, ev event.Event) {
	switch e := ev.(type) {
	case *event.QuoteAccepted:
		if e.InsuredID == s.cfg.ID {
			s.quotesAccepted++
		}

	case *event.QuoteRejected:
		if e.InsuredID == s.cfg.ID {
			s.quotesRejected++
		}

	case *event.SubmissionDropped:
		if e.InsuredID == s.cfg.ID {
			s.dropped++
		}

	case *event.PolicyBound:
		if e.InsuredID != s.cfg.ID {
			return
		}
		s.activePolicy, s.insured = e.PolicyID, true
		s.policiesBound++

	case *event.PolicyExpired:
		if e.InsuredID == s.cfg.ID && s.insured && s.activePolicy == e.PolicyID {
			s.activePolicy, s.insured = 0, false
		}

	case *event.InsuredLoss:
		if e.InsuredID != s.cfg.ID {
			return
		}
		y := event.YearOf(day)
		s.open.mark(day, func() int64 { return s.upliftAt(y) })
		added := fpmath.MulDiv(e.GroundUpLoss, upliftPerDamageBps, s.cfg.Risk.SumInsured, fpmath.RoundDown)
		s.upliftBps = min(s.upliftAt(y)+added, maxUpliftBps)
		s.upliftYear = y
		s.groundUpLoss += e.GroundUpLoss
		s.losses++
	}
}
