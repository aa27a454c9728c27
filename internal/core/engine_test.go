package core_test

import (
	"InsMarket/internal/audit"
	"InsMarket/internal/config"
	"InsMarket/internal/core"
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/testutil"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

// --- Test helpers ---

func newTestEngine(t *testing.T, cfg config.Config) (*core.Engine, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	e, err := core.NewEngine(cfg, metrics, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, metrics
}

func mustRun(t *testing.T, e *core.Engine) {
	t.Helper()
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

type found[T event.Event] struct {
	seq int64
	day event.Day
	ev  T
}

// recordsOf returns every logged event of type T in log order.
func recordsOf[T event.Event](log *core.EventLog) []found[T] {
	var out []found[T]
	for seq, r := range log.All() {
		if ev, ok := r.Event.(T); ok {
			out = append(out, found[T]{seq: seq, day: r.Day, ev: ev})
		}
	}
	return out
}

func encodeLog(t *testing.T, log *core.EventLog) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range log.Slice(0) {
		line, err := event.MarshalRecord(r.Day, r.Event)
		if err != nil {
			t.Fatalf("encode seq %d: %v", r.Seq, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func singleInsurerConfig(capital int64, risk event.Risk, maxRate float64, requestDay int) config.Config {
	return testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, capital)},
		[]config.InsuredConfig{testutil.Insured(1, risk, maxRate, requestDay)},
	)
}

// --- End-to-end scenarios ---

func TestScenario_CatLossSettlesOneClaim(t *testing.T) {
	cfg := singleInsurerConfig(10_000, testutil.CatRisk(100, 0, 100), 0.1, 7)
	e, _ := newTestEngine(t, cfg)
	e.Schedule(50, &event.LossEvent{
		EventID:        1,
		Territory:      testutil.TestTerritory,
		Peril:          event.PerilWindstormAtlantic,
		DamageFraction: 0.4,
	})
	mustRun(t, e)

	bound := recordsOf[*event.PolicyBound](e.Log())
	if len(bound) != 1 || bound[0].day != 10 {
		t.Fatalf("got %d binds (first on day %v), want one on day 10", len(bound), bound)
	}
	claims := recordsOf[*event.ClaimSettled](e.Log())
	if len(claims) != 1 {
		t.Fatalf("got %d claims, want 1", len(claims))
	}
	if claims[0].ev.Amount != 40 || claims[0].day != 50 {
		t.Errorf("claim: got %d on day %d, want 40 on day 50", claims[0].ev.Amount, claims[0].day)
	}

	ins, _ := e.World().Insurer(1)
	want := int64(10_000) + bound[0].ev.Premium - 40
	if ins.Capital() != want {
		t.Errorf("capital: got %d, want %d", ins.Capital(), want)
	}
}

func TestScenario_CatDrawSharedAcrossInsurers(t *testing.T) {
	// round robin binds insured 1 with insurer 1 and insured 2 with insurer 2
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 20_000), testutil.Insurer(2, 20_000)},
		[]config.InsuredConfig{
			testutil.Insured(1, testutil.CatRisk(1000, 0, 1000), 0.1, 7),
			testutil.Insured(2, testutil.CatRisk(3000, 0, 3000), 0.1, 8),
		},
	)
	e, _ := newTestEngine(t, cfg)
	e.Schedule(50, &event.LossEvent{
		EventID:        1,
		Territory:      testutil.TestTerritory,
		Peril:          event.PerilWindstormAtlantic,
		DamageFraction: 0.25,
	})
	mustRun(t, e)

	bound := recordsOf[*event.PolicyBound](e.Log())
	if len(bound) != 2 {
		t.Fatalf("got %d binds, want 2", len(bound))
	}
	premium := make(map[event.InsurerID]int64)
	for _, b := range bound {
		premium[b.ev.InsurerID] = b.ev.Premium
	}
	if len(premium) != 2 {
		t.Fatalf("got binds with insurers %v, want insurers 1 and 2", premium)
	}

	wantGUL := map[event.PolicyID]int64{1: 250, 2: 750}
	losses := recordsOf[*event.InsuredLoss](e.Log())
	if len(losses) != 2 {
		t.Fatalf("got %d insured losses, want 2", len(losses))
	}
	for _, l := range losses {
		if l.ev.EventID != 1 || l.ev.GroundUpLoss != wantGUL[l.ev.PolicyID] {
			t.Errorf("policy %d: got ground-up %d from event %d, want %d from event 1",
				l.ev.PolicyID, l.ev.GroundUpLoss, l.ev.EventID, wantGUL[l.ev.PolicyID])
		}
	}

	wantClaim := map[event.InsurerID]int64{1: 250, 2: 750}
	claims := recordsOf[*event.ClaimSettled](e.Log())
	if len(claims) != 2 {
		t.Fatalf("got %d claims, want 2", len(claims))
	}
	for _, c := range claims {
		if c.ev.Amount != wantClaim[c.ev.InsurerID] || c.day != 50 {
			t.Errorf("insurer %d: got claim %d on day %d, want %d on day 50",
				c.ev.InsurerID, c.ev.Amount, c.day, wantClaim[c.ev.InsurerID])
		}
	}

	for id, paid := range wantClaim {
		ins, _ := e.World().Insurer(id)
		if want := 20_000 + premium[id] - paid; ins.Capital() != want {
			t.Errorf("insurer %d: got capital %d, want %d", id, ins.Capital(), want)
		}
	}
	if vs := audit.Validate(e.Log().Slice(0), audit.OptionsFor(cfg)); len(vs) != 0 {
		t.Errorf("audit: %v", vs)
	}
}

func TestScenario_FollowersShareTheLoss(t *testing.T) {
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 20_000), testutil.Insurer(2, 20_000), testutil.Insurer(3, 20_000)},
		[]config.InsuredConfig{testutil.Insured(1, testutil.CatRisk(1000, 0, 1000), 0.1, 7)},
	)
	cfg.Broker.Followers = 2
	cfg.Broker.FollowerShareBps = 2500
	e, _ := newTestEngine(t, cfg)
	e.Schedule(50, &event.LossEvent{
		EventID:        1,
		Territory:      testutil.TestTerritory,
		Peril:          event.PerilWindstormAtlantic,
		DamageFraction: 0.5,
	})
	mustRun(t, e)

	// lead on day 8, followers on day 9, presented and accepted on day 10
	bound := recordsOf[*event.PolicyBound](e.Log())
	if len(bound) != 1 || bound[0].day != 11 {
		t.Fatalf("got %d binds, want one on day 11", len(bound))
	}
	if n := len(recordsOf[*event.FollowerQuoteIssued](e.Log())); n != 2 {
		t.Fatalf("got %d follower quotes, want 2", n)
	}
	panel := bound[0].ev.Panel
	wantShare := map[event.InsurerID]int64{1: 5000, 2: 2500, 3: 2500}
	if len(panel) != 3 {
		t.Fatalf("panel: got %+v, want three entries", panel)
	}
	for _, pe := range panel {
		if pe.ShareBps != wantShare[pe.InsurerID] {
			t.Errorf("insurer %d: got share %d, want %d", pe.InsurerID, pe.ShareBps, wantShare[pe.InsurerID])
		}
	}

	wantClaim := map[event.InsurerID]int64{1: 250, 2: 125, 3: 125}
	claims := recordsOf[*event.ClaimSettled](e.Log())
	if len(claims) != 3 {
		t.Fatalf("got %d claims, want 3", len(claims))
	}
	for _, c := range claims {
		if c.ev.Amount != wantClaim[c.ev.InsurerID] {
			t.Errorf("insurer %d: got claim %d, want %d", c.ev.InsurerID, c.ev.Amount, wantClaim[c.ev.InsurerID])
		}
	}
	for _, pe := range panel {
		ins, _ := e.World().Insurer(pe.InsurerID)
		if want := 20_000 + pe.Premium - wantClaim[pe.InsurerID]; ins.Capital() != want {
			t.Errorf("insurer %d: got capital %d, want %d", pe.InsurerID, ins.Capital(), want)
		}
	}
	if vs := audit.Validate(e.Log().Slice(0), audit.OptionsFor(cfg)); len(vs) != 0 {
		t.Errorf("audit: %v", vs)
	}
}

func TestEngine_CanonicalRunBuildsFollowedPanels(t *testing.T) {
	cfg := config.Canonical()
	cfg.Years = 1
	e, _ := newTestEngine(t, cfg)
	mustRun(t, e)

	var followed int
	for _, b := range recordsOf[*event.PolicyBound](e.Log()) {
		if len(b.ev.Panel) > 1 {
			followed++
		}
	}
	if followed == 0 {
		t.Error("no policy bound with a follower on its panel")
	}
}

func TestScenario_InsolvencyEmittedOnce(t *testing.T) {
	// the insured asks after the horizon, so nothing else touches capital
	cfg := singleInsurerConfig(40, testutil.CatRisk(100, 0, 100), 0.1, 400)
	e, _ := newTestEngine(t, cfg)
	e.Schedule(50, &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 1, Amount: 40})
	e.Schedule(60, &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 2, Amount: 40})
	mustRun(t, e)

	insolvent := recordsOf[*event.InsurerInsolvent](e.Log())
	if len(insolvent) != 1 {
		t.Fatalf("got %d insolvency events, want 1", len(insolvent))
	}
	if insolvent[0].day != 50 {
		t.Errorf("insolvency day: got %d, want 50", insolvent[0].day)
	}

	ins, _ := e.World().Insurer(1)
	if ins.Capital() != 0 || !ins.Insolvent() {
		t.Errorf("insurer: capital %d insolvent %v", ins.Capital(), ins.Insolvent())
	}
	if ins.ClaimsPaid() != 40 {
		t.Errorf("claims paid: got %d, want 40", ins.ClaimsPaid())
	}
}

func TestScenario_DeclineThenRerouteSameDay(t *testing.T) {
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 1000), testutil.Insurer(2, 10_000)},
		[]config.InsuredConfig{testutil.Insured(1, testutil.CatRisk(400, 0, 400), 0.1, 7)},
	)
	e, metrics := newTestEngine(t, cfg)
	mustRun(t, e)

	declined := recordsOf[*event.LeadQuoteDeclined](e.Log())
	issued := recordsOf[*event.LeadQuoteIssued](e.Log())
	if len(declined) != 1 || len(issued) != 1 {
		t.Fatalf("got %d declines and %d issues, want one of each", len(declined), len(issued))
	}
	d, q := declined[0], issued[0]
	if d.ev.InsurerID != 1 || d.ev.Attempt != 1 || d.ev.Reason != event.DeclineLineLimit {
		t.Errorf("decline: got %+v", d.ev)
	}
	if q.ev.InsurerID != 2 || q.ev.Attempt != 2 {
		t.Errorf("issue: got %+v", q.ev)
	}
	if d.ev.SubmissionID != q.ev.SubmissionID {
		t.Errorf("submissions differ: %d vs %d", d.ev.SubmissionID, q.ev.SubmissionID)
	}
	if d.day != q.day || d.seq > q.seq {
		t.Errorf("decline at seq %d day %d, issue at seq %d day %d", d.seq, d.day, q.seq, q.day)
	}

	if got := promtest.ToFloat64(metrics.QuotesDeclined.WithLabelValues(string(event.DeclineLineLimit))); got != 1 {
		t.Errorf("declines metric: got %v, want 1", got)
	}
}

func TestScenario_RejectionRetriesAtRenewalOffset(t *testing.T) {
	cfg := singleInsurerConfig(10_000, testutil.CatRisk(100, 0, 100), 0.01, 7)
	cfg.Years = 2
	e, _ := newTestEngine(t, cfg)
	mustRun(t, e)

	rejected := recordsOf[*event.QuoteRejected](e.Log())
	if len(rejected) == 0 {
		t.Fatal("no QuoteRejected in log")
	}
	first := rejected[0]

	var retry *found[*event.CoverageRequested]
	for _, req := range recordsOf[*event.CoverageRequested](e.Log()) {
		if req.seq > first.seq {
			retry = &req
			break
		}
	}
	if retry == nil {
		t.Fatal("no CoverageRequested after the rejection")
	}
	if want := first.day + event.Day(cfg.Broker.RenewalOffsetDays); retry.day != want {
		t.Errorf("retry day: got %d, want %d", retry.day, want)
	}
	for _, b := range recordsOf[*event.PolicyBound](e.Log()) {
		if b.seq > first.seq && b.seq < retry.seq {
			t.Errorf("PolicyBound at seq %d between rejection and retry", b.seq)
		}
	}
}

// --- Kernel properties ---

func TestEngine_Deterministic(t *testing.T) {
	cfg := config.Canonical()
	cfg.Strict = true

	a, _ := newTestEngine(t, cfg)
	mustRun(t, a)
	b, _ := newTestEngine(t, cfg)
	mustRun(t, b)

	if !bytes.Equal(encodeLog(t, a.Log()), encodeLog(t, b.Log())) {
		t.Fatal("same seed produced different logs")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same seed produced different fingerprints")
	}

	tip, err := core.FingerprintRecords(a.Log().Slice(0))
	if err != nil {
		t.Fatalf("fingerprint records: %v", err)
	}
	if tip != a.Fingerprint() {
		t.Error("recomputed fingerprint differs from the live chain")
	}

	cfg.Seed++
	c, _ := newTestEngine(t, cfg)
	mustRun(t, c)
	if c.Fingerprint() == a.Fingerprint() {
		t.Error("different seeds produced the same fingerprint")
	}
}

func TestEngine_DaysMonotonicWithinHorizon(t *testing.T) {
	cfg := config.Canonical()
	cfg.Years = 2
	e, metrics := newTestEngine(t, cfg)
	mustRun(t, e)

	var prev event.Day
	for seq, r := range e.Log().All() {
		if r.Day < prev {
			t.Fatalf("seq %d: day %d after day %d", seq, r.Day, prev)
		}
		if r.Day > cfg.HorizonDay() {
			t.Fatalf("seq %d: day %d beyond horizon %d", seq, r.Day, cfg.HorizonDay())
		}
		prev = r.Day
	}
	if e.BeyondHorizon() == 0 {
		t.Error("expected renewals and expiries past the horizon to be dropped")
	}
	if e.Pending() != 0 {
		t.Errorf("queue not drained: %d pending", e.Pending())
	}
	if got := promtest.ToFloat64(metrics.LogLength); int(got) != e.Log().Len() {
		t.Errorf("log length metric: got %v, want %d", got, e.Log().Len())
	}
}

func TestEngine_CalendarEvents(t *testing.T) {
	cfg := config.Canonical()
	cfg.Years = 3
	e, _ := newTestEngine(t, cfg)
	mustRun(t, e)

	starts := recordsOf[*event.YearStart](e.Log())
	ends := recordsOf[*event.YearEnd](e.Log())
	if len(starts) != 3 || len(ends) != 3 {
		t.Fatalf("got %d year starts and %d year ends, want 3 each", len(starts), len(ends))
	}
	for i := range starts {
		y := event.Year(i + 1)
		if starts[i].ev.Year != y || starts[i].day != event.FirstDay(y) {
			t.Errorf("year start %d: got year %d on day %d", i, starts[i].ev.Year, starts[i].day)
		}
		if ends[i].ev.Year != y || ends[i].day != event.LastDay(y) {
			t.Errorf("year end %d: got year %d on day %d", i, ends[i].ev.Year, ends[i].day)
		}
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Canonical()
	cfg.Seed = 0
	_, err := core.NewEngine(cfg, nil, zerolog.Nop())
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestEngine_HonoursCancellation(t *testing.T) {
	e, _ := newTestEngine(t, config.Canonical())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if e.Log().Len() != 0 {
		t.Errorf("dispatched %d events after cancellation", e.Log().Len())
	}
}

func TestEngine_MaxEvents(t *testing.T) {
	e, _ := newTestEngine(t, config.Canonical())
	e.MaxEvents = 5

	err := e.Run(context.Background())
	if !errors.Is(err, core.ErrMaxEvents) {
		t.Fatalf("got %v, want ErrMaxEvents", err)
	}
	if e.Log().Len() != 5 {
		t.Errorf("log length: got %d, want 5", e.Log().Len())
	}
}

func TestEngine_DuplicateFactCountedWhenLenient(t *testing.T) {
	cfg := singleInsurerConfig(10_000, testutil.CatRisk(100, 0, 100), 0.1, 400)
	cfg.Strict = false
	e, metrics := newTestEngine(t, cfg)
	e.Schedule(20, &event.PolicyExpired{PolicyID: 99, InsuredID: 1})
	e.Schedule(30, &event.PolicyExpired{PolicyID: 99, InsuredID: 1})
	mustRun(t, e)

	if e.Violations() != 1 {
		t.Errorf("violations: got %d, want 1", e.Violations())
	}
	if got := promtest.ToFloat64(metrics.InvariantViolations.WithLabelValues("one_shot_fact")); got != 1 {
		t.Errorf("violation metric: got %v, want 1", got)
	}
}

func TestEngine_DuplicateFactPanicsWhenStrict(t *testing.T) {
	cfg := singleInsurerConfig(10_000, testutil.CatRisk(100, 0, 100), 0.1, 400)
	e, _ := newTestEngine(t, cfg)
	e.Schedule(20, &event.PolicyExpired{PolicyID: 99, InsuredID: 1})
	e.Schedule(30, &event.PolicyExpired{PolicyID: 99, InsuredID: 1})

	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.HasPrefix(msg, "FATAL:") {
			t.Errorf("got panic %v, want a FATAL invariant message", r)
		}
	}()
	_ = e.Run(context.Background())
}
