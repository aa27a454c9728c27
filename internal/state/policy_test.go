package state_test

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/rng"
	"InsMarket/internal/state"
	"InsMarket/internal/testutil"
	"testing"
)

func panelWorld(t *testing.T, risk event.Risk) *state.World {
	t.Helper()
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{
			testutil.Insurer(1, 1_000_000),
			testutil.Insurer(2, 1_000_000),
			testutil.Insurer(3, 1_000_000),
		},
		[]config.InsuredConfig{testutil.Insured(1, risk, 0.1, 0)},
	)
	return mustWorld(t, cfg)
}

func windstorm(id event.LossEventID, df float64) *event.LossEvent {
	return &event.LossEvent{
		EventID:        id,
		Territory:      testutil.TestTerritory,
		Peril:          event.PerilWindstormAtlantic,
		DamageFraction: df,
	}
}

func TestPolicy_BindSchedulesExpiry(t *testing.T) {
	risk := testutil.CatRisk(1000, 100, 800)
	w := panelWorld(t, risk)

	out := w.Handle(10, testutil.Bound(1, 1, risk, 90, 1, 2, 3), rng.New(1))
	exp, offset := single[*event.PolicyExpired](t, out)
	if exp.PolicyID != 1 || offset != w.Config().TermDays() {
		t.Errorf("expiry: got %+v at +%d", exp, offset)
	}

	p := mustPolicy(t, w, 1)
	if p.Stage() != state.PolicyActive || p.BoundDay() != 10 || p.ExpiryDay() != 370 {
		t.Errorf("policy: stage %s bound %d expiry %d", p.Stage(), p.BoundDay(), p.ExpiryDay())
	}
	if got := w.Market().Exposed(testutil.TestTerritory, event.PerilWindstormAtlantic); len(got) != 1 || got[0] != 1 {
		t.Errorf("index: got %v, want [1]", got)
	}
}

func TestPolicy_ClaimSplitAcrossPanel(t *testing.T) {
	risk := testutil.CatRisk(1000, 100, 800)
	w := panelWorld(t, risk)
	g := rng.New(1)
	w.Handle(10, testutil.Bound(1, 1, risk, 90, 1, 2, 3), g)

	out := w.Handle(50, windstorm(1, 0.5), g)
	loss, offset := single[*event.InsuredLoss](t, out)
	if loss.GroundUpLoss != 500 || loss.EventID != 1 || offset != 0 {
		t.Fatalf("loss: got %+v at +%d", loss, offset)
	}

	out = w.Handle(50, loss, g)
	claims := emitted[*event.ClaimSettled](out)
	if len(claims) != 3 {
		t.Fatalf("got %d claims, want 3", len(claims))
	}
	// layer is min(500, 800) - 100; the lead carries the residual
	want := map[event.InsurerID]int64{1: 134, 2: 133, 3: 133}
	var total int64
	for _, c := range claims {
		if c.Amount != want[c.InsurerID] {
			t.Errorf("insurer %d: got %d, want %d", c.InsurerID, c.Amount, want[c.InsurerID])
		}
		total += c.Amount
	}
	if total != 400 {
		t.Errorf("total: got %d, want 400", total)
	}
	if p := mustPolicy(t, w, 1); p.Incurred() != 400 || p.GroundUpLoss() != 500 {
		t.Errorf("policy totals: incurred %d gul %d", p.Incurred(), p.GroundUpLoss())
	}
}

func TestPolicy_AnnualGroundUpCap(t *testing.T) {
	risk := testutil.CatRisk(1000, 0, 1000)
	w := panelWorld(t, risk)
	g := rng.New(1)
	w.Handle(10, testutil.Bound(1, 1, risk, 90, 1), g)

	steps := []struct {
		day  event.Day
		df   float64
		want int64
	}{
		{day: 50, df: 0.5, want: 500},
		{day: 60, df: 0.7, want: 500},
		{day: 70, df: 0.1, want: 0},
		// headroom resets with the calendar year
		{day: 365, df: 0.1, want: 100},
	}
	for i, s := range steps {
		out := w.Handle(s.day, windstorm(event.LossEventID(i+1), s.df), g)
		losses := emitted[*event.InsuredLoss](out)
		if s.want == 0 {
			if len(losses) != 0 {
				t.Errorf("day %d: got %d losses, want none", s.day, len(losses))
			}
			continue
		}
		if len(losses) != 1 || losses[0].GroundUpLoss != s.want {
			t.Errorf("day %d: got %v, want one loss of %d", s.day, losses, s.want)
		}
	}

	p := mustPolicy(t, w, 1)
	if p.UsedIn(1) != 1000 || p.UsedIn(2) != 100 {
		t.Errorf("used: year 1 %d, year 2 %d", p.UsedIn(1), p.UsedIn(2))
	}
}

func TestPolicy_CoverageWindowIsExclusive(t *testing.T) {
	risk := testutil.CatRisk(1000, 0, 1000)
	w := panelWorld(t, risk)
	g := rng.New(1)
	w.Handle(10, testutil.Bound(1, 1, risk, 90, 1), g)

	for _, day := range []event.Day{10, 370} {
		if out := w.Handle(day, windstorm(event.LossEventID(day), 0.5), g); len(out) != 0 {
			t.Errorf("day %d: got %d emissions, want 0", day, len(out))
		}
	}

	w.Handle(370, &event.PolicyExpired{PolicyID: 1, InsuredID: 1}, g)
	if p := mustPolicy(t, w, 1); p.Stage() != state.PolicyRetired {
		t.Errorf("stage: got %s, want expired", p.Stage())
	}
	if got := w.Market().Exposed(testutil.TestTerritory, event.PerilWindstormAtlantic); len(got) != 0 {
		t.Errorf("index after expiry: got %v", got)
	}
}

func TestPolicy_IgnoresOtherTerritoriesAndPerils(t *testing.T) {
	risk := testutil.CatRisk(1000, 0, 1000)
	w := panelWorld(t, risk)
	g := rng.New(1)
	w.Handle(10, testutil.Bound(1, 1, risk, 90, 1), g)

	quake := &event.LossEvent{EventID: 1, Territory: testutil.TestTerritory, Peril: event.PerilEarthquakeUS, DamageFraction: 0.5}
	elsewhere := &event.LossEvent{EventID: 2, Territory: "ELSEWHERE", Peril: event.PerilWindstormAtlantic, DamageFraction: 0.5}
	for _, ev := range []event.Event{quake, elsewhere} {
		if out := w.Handle(50, ev, g); len(out) != 0 {
			t.Errorf("%T: got %d emissions, want 0", ev, len(out))
		}
	}
}

func TestPolicy_AttritionalOccurrencesAtBind(t *testing.T) {
	risk := event.Risk{
		SumInsured: 1000,
		Limit:      1000,
		Territory:  testutil.TestTerritory,
		Perils:     []event.Peril{event.PerilAttritional},
	}
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 1_000_000)},
		[]config.InsuredConfig{testutil.Insured(1, risk, 0.1, 0)},
	)
	cfg.Perils.Attritional.Frequency = 20
	cfg.Perils.Attritional.Mu = -1
	w := mustWorld(t, cfg)
	g := rng.New(7)

	out := w.Handle(10, testutil.Bound(1, 1, risk, 50, 1), g)
	occ := emitted[*event.AttritionalOccurrence](out)
	if len(occ) == 0 {
		t.Fatal("no attritional occurrences at frequency 20")
	}
	for i, em := range out {
		a, ok := em.Event.(*event.AttritionalOccurrence)
		if !ok {
			continue
		}
		if em.Offset < 1 || em.Offset >= w.Config().TermDays() {
			t.Errorf("emission %d: offset %d outside the term", i, em.Offset)
		}
		if a.PolicyID != 1 || a.Occurrence == 0 {
			t.Errorf("emission %d: got %+v", i, a)
		}
	}

	loss, _ := single[*event.InsuredLoss](t, w.Handle(20, occ[0], g))
	if loss.Occurrence != occ[0].Occurrence || loss.EventID != 0 || loss.Peril != event.PerilAttritional {
		t.Errorf("loss: got %+v", loss)
	}
}
