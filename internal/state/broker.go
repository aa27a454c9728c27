package state

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/rng"
	"InsMarket/internal/routing"
	"slices"
)

// Broker is the singleton placing every submission. It owns the submission
// ID allocator and the rotation cursor; both advance only in Apply.
type Broker struct {
	cfg config.BrokerConfig

	nextID event.SubmissionID
	cursor int
	open   map[event.SubmissionID]*submission

	bound    int
	rejected int
	dropped  int
}

type submissionStage uint8

const (
	stageSoliciting submissionStage = iota + 1
	stageQuoted
	stageAccepted
)

type submission struct {
	insured event.InsuredID
	risk    event.Risk
	start   int
	attempt int
	insurer event.InsurerID
	premium int64
	stage   submissionStage

	// followers are the shares written behind the lead, in issue order.
	followers []event.PanelEntry
}

func NewBroker(cfg config.BrokerConfig) *Broker {
	return &Broker{
		cfg:    cfg,
		nextID: 1,
		open:   make(map[event.SubmissionID]*submission),
	}
}

// Open returns the number of submissions without a terminal outcome.
func (b *Broker) Open() int     { return len(b.open) }
func (b *Broker) Bound() int    { return b.bound }
func (b *Broker) Rejected() int { return b.rejected }
func (b *Broker) Dropped() int  { return b.dropped }

func (b *Broker) routingView(id event.SubmissionID, s *submission) routing.Submission {
	return routing.Submission{ID: id, InsuredID: s.insured, Risk: s.risk, Start: s.start}
}

// solicit asks the routing policy for the insurer of the given attempt.
func (b *Broker) solicit(day event.Day, offset event.Day, id event.SubmissionID, s *submission, attempt int, v View) event.Emission {
	insurer, ok := v.Routing().Select(b.routingView(id, s), v.Candidates(day), attempt)
	if !ok {
		return event.Now(&event.SubmissionDropped{SubmissionID: id, InsuredID: s.insured, Attempts: attempt - 1})
	}
	return event.After(offset, &event.LeadQuoteRequested{
		SubmissionID: id,
		InsuredID:    s.insured,
		InsurerID:    insurer,
		Attempt:      attempt,
		Risk:         s.risk,
	})
}

func (b *Broker) Decide(day event.Day, ev event.Event, _ *rng.RNG, v View) []event.Emission {
	switch e := ev.(type) {
	case *event.CoverageRequested:
		s := &submission{insured: e.InsuredID, risk: e.Risk, start: b.cursor}
		// quote round opens the next day
		return []event.Emission{b.solicit(day, 1, b.nextID, s, 1, v)}

	case *event.LeadQuoteDeclined:
		s, ok := b.open[e.SubmissionID]
		if !ok || e.Attempt != s.attempt {
			return nil
		}
		if e.Attempt >= b.cfg.MaxAttempts {
			return []event.Emission{event.Now(&event.SubmissionDropped{
				SubmissionID: e.SubmissionID,
				InsuredID:    s.insured,
				Attempts:     e.Attempt,
			})}
		}
		return []event.Emission{b.solicit(day, event.Day(b.cfg.RerouteDelayDays), e.SubmissionID, s, e.Attempt+1, v)}

	case *event.LeadQuoteIssued:
		s, ok := b.open[e.SubmissionID]
		if !ok || e.Attempt != s.attempt {
			return nil
		}
		// followers answer the day after issue; the quote is presented the
		// day after the last round
		out := b.solicitFollowers(day, e, s, v)
		offset := event.Day(1)
		if len(out) > 0 {
			offset = 2
		}
		return append(out, event.After(offset, &event.QuotePresented{
			SubmissionID: e.SubmissionID,
			InsuredID:    s.insured,
			InsurerID:    e.InsurerID,
			Premium:      e.Premium,
		}))

	case *event.QuoteAccepted:
		s, ok := b.open[e.SubmissionID]
		if !ok || s.stage != stageQuoted {
			return nil
		}
		// binds the day after acceptance; one submission places one policy
		return []event.Emission{event.After(1, &event.PolicyBound{
			PolicyID:     event.PolicyID(e.SubmissionID),
			SubmissionID: e.SubmissionID,
			InsuredID:    s.insured,
			InsurerID:    e.InsurerID,
			Premium:      e.Premium,
			SumInsured:   s.risk.SumInsured,
			Attachment:   s.risk.Attachment,
			Limit:        s.risk.Limit,
			Territory:    s.risk.Territory,
			Perils:       s.risk.Perils,
			Panel:        panel(e.InsurerID, e.Premium, s.followers),
		})}
	}
	return nil
}

// solicitFollowers asks up to Followers solvent insurers after the lead in
// ID order, wrapping around, to follow the issued quote.
func (b *Broker) solicitFollowers(day event.Day, e *event.LeadQuoteIssued, s *submission, v View) []event.Emission {
	if b.cfg.Followers == 0 {
		return nil
	}
	candidates := v.Candidates(day)
	lead := slices.IndexFunc(candidates, func(c routing.Candidate) bool { return c.ID == e.InsurerID })

	var out []event.Emission
	for k := 1; k <= len(candidates) && len(out) < b.cfg.Followers; k++ {
		c := candidates[(lead+k+len(candidates))%len(candidates)]
		if c.Insolvent || c.ID == e.InsurerID {
			continue
		}
		out = append(out, event.After(1, &event.FollowerQuoteRequested{
			SubmissionID: e.SubmissionID,
			InsuredID:    s.insured,
			InsurerID:    c.ID,
			ShareBps:     b.cfg.FollowerShareBps,
			LeadPremium:  e.Premium,
			Risk:         s.risk,
		}))
	}
	return out
}

// panel puts the lead first with the share and premium the followers left.
// The entries always sum to a full line and to the quoted premium.
func panel(lead event.InsurerID, premium int64, followers []event.PanelEntry) []event.PanelEntry {
	share, rest := event.FullShareBps, premium
	for _, f := range followers {
		share -= f.ShareBps
		rest -= f.Premium
	}
	out := make([]event.PanelEntry, 0, len(followers)+1)
	out = append(out, event.PanelEntry{InsurerID: lead, ShareBps: share, Premium: rest})
	return append(out, followers...)
}

func (b *Broker) Apply(_ event.Day, ev event.Event) {
	switch e := ev.(type) {
	case *event.CoverageRequested:
		b.open[b.nextID] = &submission{
			insured: e.InsuredID,
			risk:    e.Risk,
			start:   b.cursor,
			stage:   stageSoliciting,
		}
		b.nextID++
		b.cursor++

	case *event.LeadQuoteRequested:
		if s, ok := b.open[e.SubmissionID]; ok {
			s.attempt = e.Attempt
			s.insurer = e.InsurerID
		}

	case *event.LeadQuoteIssued:
		if s, ok := b.open[e.SubmissionID]; ok && e.Attempt == s.attempt {
			s.premium = e.Premium
			s.stage = stageQuoted
			s.followers = nil
		}

	case *event.FollowerQuoteIssued:
		if s, ok := b.open[e.SubmissionID]; ok && s.stage == stageQuoted {
			s.followers = append(s.followers, event.PanelEntry{
				InsurerID: e.InsurerID,
				ShareBps:  e.ShareBps,
				Premium:   e.Premium,
			})
		}

	case *event.QuoteAccepted:
		if s, ok := b.open[e.SubmissionID]; ok {
			s.stage = stageAccepted
		}

	case *event.QuoteRejected:
		if _, ok := b.open[e.SubmissionID]; ok {
			delete(b.open, e.SubmissionID)
			b.rejected++
		}

	case *event.SubmissionDropped:
		if _, ok := b.open[e.SubmissionID]; ok {
			delete(b.open, e.SubmissionID)
			b.dropped++
		}

	case *event.PolicyBound:
		if _, ok := b.open[e.SubmissionID]; ok {
			delete(b.open, e.SubmissionID)
			b.bound++
		}
	}
}
