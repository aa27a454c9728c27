// Package audit checks a finished event log against the market's invariants
// without rerunning the simulation. It is the offline counterpart of the
// engine's post-checks and works on any log, including one read back from
// disk.
package audit

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/ledger"
	fpmath "InsMarket/internal/math"
	"cmp"
	"fmt"
	"slices"
)

// Check names. They are stable and appear in reports.
const (
	CheckDayMonotonic      = "day_monotonic"
	CheckQuoteChain        = "quote_chain"
	CheckPanel             = "panel_integrity"
	CheckSingleBind        = "single_bind"
	CheckExpiryTiming      = "expiry_timing"
	CheckLossWindow        = "loss_window"
	CheckCatOccurrence     = "cat_occurrence"
	CheckAttritional       = "attritional_occurrence"
	CheckGroundUpCap       = "gul_cap"
	CheckClaimWithoutLoss  = "claim_without_loss"
	CheckClaimConservation = "claim_conservation"
	CheckSingleInsolvency  = "single_insolvency"
	CheckQuoteAfterFailure = "quote_after_insolvency"
	CheckSubmission        = "submission_accounting"
	CheckLedger            = "ledger"
)

// Violation is one failed check at one log position.
type Violation struct {
	Seq    int64
	Day    event.Day
	Check  string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("seq=%d day=%d %s: %s", v.Seq, v.Day, v.Check, v.Detail)
}

// Options carries the run parameters the log does not restate.
type Options struct {
	TermDays event.Day
	// Insurers enables the capital ledger checks when set.
	Insurers []config.InsurerConfig
}

// OptionsFor derives the options of a run from its configuration.
func OptionsFor(cfg config.Config) Options {
	return Options{TermDays: cfg.TermDays(), Insurers: cfg.Insurers}
}

type policyFacts struct {
	terms  event.Risk
	bound  event.Day
	expiry event.Day
	panel  []event.PanelEntry
}

type submissionFacts struct {
	requested map[int]event.Day // attempt → day
	issuedDay event.Day
	issued    bool
	asked     map[event.InsurerID]event.Day // follower → request day
	followed  map[event.InsurerID]bool
	presented event.Day
	shown     bool
	accepted  event.Day
	outcome   string
}

type lossFacts struct {
	seq   int64
	day   event.Day
	layer int64
}

// expectedLoss is the ground-up loss a policy owes an occurrence, recomputed
// from the occurrence's damage fraction.
type expectedLoss struct {
	seq int64
	day event.Day
	gul int64
}

type validator struct {
	opts Options
	out  []Violation

	seq int64
	day event.Day

	policies    map[event.PolicyID]*policyFacts
	submissions map[event.SubmissionID]*submissionFacts
	catEvents   map[event.LossEventID]*event.LossEvent
	losses      map[event.OccurrenceKey]lossFacts
	claims      map[event.OccurrenceKey]int64
	used        map[policyYear]int64
	insolvent   map[event.InsurerID]event.Day

	// drawn is the ground-up loss owed per policy year by occurrences seen
	// so far; expected holds the owed losses no InsuredLoss has answered.
	drawn    map[policyYear]int64
	expected map[event.OccurrenceKey]expectedLoss
}

type policyYear struct {
	policy event.PolicyID
	year   event.Year
}

func (v *validator) fail(check, format string, args ...any) {
	v.out = append(v.out, Violation{Seq: v.seq, Day: v.day, Check: check, Detail: fmt.Sprintf(format, args...)})
}

func (v *validator) submission(id event.SubmissionID) *submissionFacts {
	s, ok := v.submissions[id]
	if !ok {
		s = &submissionFacts{
			requested: make(map[int]event.Day),
			asked:     make(map[event.InsurerID]event.Day),
			followed:  make(map[event.InsurerID]bool),
		}
		v.submissions[id] = s
	}
	return s
}

// Validate runs every check over records and returns the violations in log
// order. An empty result means the log is consistent.
func Validate(records []event.Record, opts Options) []Violation {
	v := &validator{
		opts:        opts,
		policies:    make(map[event.PolicyID]*policyFacts),
		submissions: make(map[event.SubmissionID]*submissionFacts),
		catEvents:   make(map[event.LossEventID]*event.LossEvent),
		losses:      make(map[event.OccurrenceKey]lossFacts),
		claims:      make(map[event.OccurrenceKey]int64),
		used:        make(map[policyYear]int64),
		insolvent:   make(map[event.InsurerID]event.Day),
		drawn:       make(map[policyYear]int64),
		expected:    make(map[event.OccurrenceKey]expectedLoss),
	}

	var prev event.Day
	for i, rec := range records {
		v.seq, v.day = rec.Seq, rec.Day
		if i > 0 && rec.Day < prev {
			v.fail(CheckDayMonotonic, "day %d after day %d", rec.Day, prev)
		}
		prev = rec.Day
		v.record(rec)
	}
	v.finish()

	if len(opts.Insurers) > 0 {
		v.ledger(records)
	}
	return v.out
}

func (v *validator) record(rec event.Record) {
	switch e := rec.Event.(type) {
	case *event.LeadQuoteRequested:
		s := v.submission(e.SubmissionID)
		s.requested[e.Attempt] = rec.Day

	case *event.LeadQuoteIssued:
		s := v.submission(e.SubmissionID)
		v.sameDayAsRequest(s, e.Attempt, "LeadQuoteIssued")
		s.issuedDay, s.issued = rec.Day, true
		if d, ok := v.insolvent[e.InsurerID]; ok {
			v.fail(CheckQuoteAfterFailure, "insurer %d quoted after failing on day %d", e.InsurerID, d)
		}

	case *event.LeadQuoteDeclined:
		v.sameDayAsRequest(v.submission(e.SubmissionID), e.Attempt, "LeadQuoteDeclined")

	case *event.FollowerQuoteRequested:
		s := v.submission(e.SubmissionID)
		if !s.issued {
			v.fail(CheckQuoteChain, "submission %d asked insurer %d to follow without a lead quote", e.SubmissionID, e.InsurerID)
		} else if rec.Day != s.issuedDay+1 {
			v.fail(CheckQuoteChain, "submission %d asked insurer %d to follow on day %d, lead issued on day %d",
				e.SubmissionID, e.InsurerID, rec.Day, s.issuedDay)
		}
		s.asked[e.InsurerID] = rec.Day

	case *event.FollowerQuoteIssued:
		s := v.submission(e.SubmissionID)
		v.sameDayAsAsked(s, e.SubmissionID, e.InsurerID, "FollowerQuoteIssued")
		s.followed[e.InsurerID] = true
		if d, ok := v.insolvent[e.InsurerID]; ok {
			v.fail(CheckQuoteAfterFailure, "insurer %d followed after failing on day %d", e.InsurerID, d)
		}

	case *event.FollowerQuoteDeclined:
		v.sameDayAsAsked(v.submission(e.SubmissionID), e.SubmissionID, e.InsurerID, "FollowerQuoteDeclined")

	case *event.QuotePresented:
		s := v.submission(e.SubmissionID)
		// a follower round adds a day between issue and presentation
		want := s.issuedDay + 1
		if len(s.asked) > 0 {
			want++
		}
		if !s.issued {
			v.fail(CheckQuoteChain, "submission %d presented without an issued quote", e.SubmissionID)
		} else if rec.Day != want {
			v.fail(CheckQuoteChain, "submission %d presented on day %d, want day %d", e.SubmissionID, rec.Day, want)
		}
		s.presented, s.shown = rec.Day, true

	case *event.QuoteAccepted:
		s := v.submission(e.SubmissionID)
		v.sameDayAsPresented(s, e.SubmissionID, "accepted")
		s.accepted = rec.Day
		v.terminal(s, e.SubmissionID, "accepted")

	case *event.QuoteRejected:
		s := v.submission(e.SubmissionID)
		v.sameDayAsPresented(s, e.SubmissionID, "rejected")
		v.terminal(s, e.SubmissionID, "rejected")

	case *event.SubmissionDropped:
		v.terminal(v.submission(e.SubmissionID), e.SubmissionID, "dropped")

	case *event.PolicyBound:
		v.bound(rec, e)

	case *event.PolicyExpired:
		p, ok := v.policies[e.PolicyID]
		if !ok {
			v.fail(CheckExpiryTiming, "policy %d expired without binding", e.PolicyID)
			return
		}
		if rec.Day != p.expiry {
			v.fail(CheckExpiryTiming, "policy %d expired on day %d, bound on day %d", e.PolicyID, rec.Day, p.bound)
		}

	case *event.LossEvent:
		v.catEvents[e.EventID] = e
		for id, p := range v.policies {
			if p.terms.Territory == e.Territory {
				v.expect(rec, event.OccurrenceKey{PolicyID: id, EventID: e.EventID}, p, e.Peril, e.DamageFraction)
			}
		}

	case *event.AttritionalOccurrence:
		if p, ok := v.policies[e.PolicyID]; ok {
			v.expect(rec, event.OccurrenceKey{PolicyID: e.PolicyID, Occurrence: e.Occurrence}, p, event.PerilAttritional, e.DamageFraction)
		}

	case *event.InsuredLoss:
		v.insuredLoss(rec, e)

	case *event.ClaimSettled:
		key := e.Key()
		if _, ok := v.losses[key]; !ok {
			v.fail(CheckClaimWithoutLoss, "claim on policy %d without a preceding insured loss", e.PolicyID)
		}
		v.claims[key] += e.Amount
		if p, ok := v.policies[e.PolicyID]; ok && !slices.ContainsFunc(p.panel, func(pe event.PanelEntry) bool {
			return pe.InsurerID == e.InsurerID
		}) {
			v.fail(CheckClaimConservation, "insurer %d is not on the panel of policy %d", e.InsurerID, e.PolicyID)
		}

	case *event.InsurerInsolvent:
		if d, ok := v.insolvent[e.InsurerID]; ok {
			v.fail(CheckSingleInsolvency, "insurer %d failed again, first on day %d", e.InsurerID, d)
			return
		}
		v.insolvent[e.InsurerID] = rec.Day
	}
}

func (v *validator) sameDayAsRequest(s *submissionFacts, attempt int, what string) {
	d, ok := s.requested[attempt]
	if !ok {
		v.fail(CheckQuoteChain, "%s for attempt %d without a request", what, attempt)
		return
	}
	if d != v.day {
		v.fail(CheckQuoteChain, "%s on day %d, requested on day %d", what, v.day, d)
	}
}

func (v *validator) sameDayAsAsked(s *submissionFacts, id event.SubmissionID, insurer event.InsurerID, what string) {
	d, ok := s.asked[insurer]
	if !ok {
		v.fail(CheckQuoteChain, "%s by insurer %d on submission %d without a request", what, insurer, id)
		return
	}
	if d != v.day {
		v.fail(CheckQuoteChain, "%s by insurer %d on day %d, requested on day %d", what, insurer, v.day, d)
	}
}

func (v *validator) sameDayAsPresented(s *submissionFacts, id event.SubmissionID, what string) {
	if !s.shown {
		v.fail(CheckQuoteChain, "submission %d %s without a presented quote", id, what)
		return
	}
	if v.day != s.presented {
		v.fail(CheckQuoteChain, "submission %d %s on day %d, presented on day %d", id, what, v.day, s.presented)
	}
}

// terminal records an outcome. Acceptance is followed by a bind, which
// replaces it.
func (v *validator) terminal(s *submissionFacts, id event.SubmissionID, outcome string) {
	if s.outcome != "" && !(s.outcome == "accepted" && outcome == "bound") {
		v.fail(CheckSubmission, "submission %d %s after being %s", id, outcome, s.outcome)
		return
	}
	s.outcome = outcome
}

func (v *validator) bound(rec event.Record, e *event.PolicyBound) {
	if _, ok := v.policies[e.PolicyID]; ok {
		v.fail(CheckSingleBind, "policy %d bound twice", e.PolicyID)
		return
	}
	v.policies[e.PolicyID] = &policyFacts{
		terms:  e.Terms(),
		bound:  rec.Day,
		expiry: rec.Day + v.opts.TermDays,
		panel:  e.Panel,
	}

	s := v.submission(e.SubmissionID)
	var total, premium int64
	for _, pe := range e.Panel {
		if pe.ShareBps <= 0 {
			v.fail(CheckPanel, "policy %d insurer %d has share %d bps", e.PolicyID, pe.InsurerID, pe.ShareBps)
		}
		if pe.InsurerID != e.InsurerID && !s.followed[pe.InsurerID] {
			v.fail(CheckPanel, "policy %d insurer %d is on the panel without following", e.PolicyID, pe.InsurerID)
		}
		total += pe.ShareBps
		premium += pe.Premium
	}
	if total != event.FullShareBps {
		v.fail(CheckPanel, "policy %d panel sums to %d bps", e.PolicyID, total)
	}
	if premium != e.Premium {
		v.fail(CheckPanel, "policy %d panel premiums sum to %d, quoted %d", e.PolicyID, premium, e.Premium)
	}

	if s.outcome != "accepted" {
		v.fail(CheckQuoteChain, "submission %d bound without acceptance", e.SubmissionID)
	} else if rec.Day != s.accepted+1 {
		v.fail(CheckQuoteChain, "submission %d bound on day %d, accepted on day %d", e.SubmissionID, rec.Day, s.accepted)
	}
	v.terminal(s, e.SubmissionID, "bound")
}

// expect records what a policy owes an occurrence: its share of the sum
// insured, capped by what earlier occurrences left of the year.
func (v *validator) expect(rec event.Record, key event.OccurrenceKey, p *policyFacts, peril event.Peril, df float64) {
	if rec.Day <= p.bound || rec.Day >= p.expiry || !p.terms.Covers(peril) {
		return
	}
	py := policyYear{key.PolicyID, event.YearOf(rec.Day)}
	gul := min(fpmath.ScaleFraction(p.terms.SumInsured, df), p.terms.SumInsured-v.drawn[py])
	if gul <= 0 {
		return
	}
	v.drawn[py] += gul
	v.expected[key] = expectedLoss{seq: rec.Seq, day: rec.Day, gul: gul}
}

func occurrenceCheck(key event.OccurrenceKey) string {
	if key.EventID != 0 {
		return CheckCatOccurrence
	}
	return CheckAttritional
}

func (v *validator) insuredLoss(rec event.Record, e *event.InsuredLoss) {
	p, ok := v.policies[e.PolicyID]
	if !ok {
		v.fail(CheckLossWindow, "loss on policy %d that never bound", e.PolicyID)
		return
	}
	if rec.Day <= p.bound || rec.Day >= p.expiry {
		v.fail(CheckLossWindow, "loss on policy %d on day %d outside (%d, %d)", e.PolicyID, rec.Day, p.bound, p.expiry)
	}

	if e.EventID != 0 {
		le, ok := v.catEvents[e.EventID]
		switch {
		case !ok:
			v.fail(CheckCatOccurrence, "loss on policy %d cites unknown event %d", e.PolicyID, e.EventID)
		case le.Peril != e.Peril || le.Territory != p.terms.Territory:
			v.fail(CheckCatOccurrence, "loss on policy %d does not match event %d", e.PolicyID, e.EventID)
		}
	}

	key := e.Key()
	want, ok := v.expected[key]
	delete(v.expected, key)
	switch {
	case !ok && e.EventID == 0:
		v.fail(CheckAttritional, "loss on policy %d cites no occurrence %d it was exposed to", e.PolicyID, e.Occurrence)
	case ok && want.gul != e.GroundUpLoss:
		v.fail(occurrenceCheck(key), "policy %d ground-up %d, occurrence implies %d", e.PolicyID, e.GroundUpLoss, want.gul)
	}

	py := policyYear{e.PolicyID, event.YearOf(rec.Day)}
	v.used[py] += e.GroundUpLoss
	if v.used[py] > p.terms.SumInsured {
		v.fail(CheckGroundUpCap, "policy %d year %d ground-up %d exceeds sum insured %d",
			e.PolicyID, py.year, v.used[py], p.terms.SumInsured)
	}

	v.losses[e.Key()] = lossFacts{
		seq:   rec.Seq,
		day:   rec.Day,
		layer: fpmath.InsuredLayer(e.GroundUpLoss, p.terms.Attachment, p.terms.Limit),
	}
}

// finish reports occurrences a covered policy never answered, then compares
// every insured loss with the claims it produced.
func (v *validator) finish() {
	missed := make([]event.OccurrenceKey, 0, len(v.expected))
	for k := range v.expected {
		missed = append(missed, k)
	}
	slices.SortFunc(missed, func(a, b event.OccurrenceKey) int {
		return cmp.Or(cmp.Compare(v.expected[a].seq, v.expected[b].seq), cmp.Compare(a.PolicyID, b.PolicyID))
	})
	for _, k := range missed {
		x := v.expected[k]
		v.out = append(v.out, Violation{
			Seq:    x.seq,
			Day:    x.day,
			Check:  occurrenceCheck(k),
			Detail: fmt.Sprintf("policy %d owed ground-up %d and reported no loss", k.PolicyID, x.gul),
		})
	}

	keys := make([]event.OccurrenceKey, 0, len(v.losses))
	for k := range v.losses {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b event.OccurrenceKey) int {
		return cmp.Compare(v.losses[a].seq, v.losses[b].seq)
	})
	for _, k := range keys {
		l := v.losses[k]
		if got := v.claims[k]; got != l.layer {
			v.out = append(v.out, Violation{
				Seq:    l.seq,
				Day:    l.day,
				Check:  CheckClaimConservation,
				Detail: fmt.Sprintf("policy %d claims %d, insured layer %d", k.PolicyID, got, l.layer),
			})
		}
	}
}

func (v *validator) ledger(records []event.Record) {
	last := Violation{Seq: -1, Check: CheckLedger}
	if n := len(records); n > 0 {
		last.Seq, last.Day = records[n-1].Seq, records[n-1].Day
	}

	tracker, err := ledger.FromLog(v.opts.Insurers, records)
	if err != nil {
		last.Detail = err.Error()
		v.out = append(v.out, last)
		return
	}
	lv := ledger.NewInvariantValidator(tracker)
	if err := lv.ValidateGlobalBalance(); err != nil {
		last.Detail = err.Error()
		v.out = append(v.out, last)
	}
	for _, ins := range v.opts.Insurers {
		if err := lv.ValidateInsurerCapitalNonNegative(ins.ID); err != nil {
			last.Detail = err.Error()
			v.out = append(v.out, last)
		}
	}
}
