package state_test

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/rng"
	"InsMarket/internal/testutil"
	"testing"
)

func quoteRequest(insurer event.InsurerID, risk event.Risk) *event.LeadQuoteRequested {
	return &event.LeadQuoteRequested{SubmissionID: 1, InsuredID: 1, InsurerID: insurer, Attempt: 1, Risk: risk}
}

func TestInsurer_QuoteDecisions(t *testing.T) {
	tests := []struct {
		name    string
		capital int64
		risk    event.Risk
		reason  event.DeclineReason
		premium int64
	}{
		{name: "within limits", capital: 1000, risk: testutil.CatRisk(300, 0, 300), premium: 15},
		{name: "line limit", capital: 1000, risk: testutil.CatRisk(400, 0, 400), reason: event.DeclineLineLimit},
		{name: "line scales with capital", capital: 2000, risk: testutil.CatRisk(400, 0, 400), premium: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.ScenarioConfig(
				[]config.InsurerConfig{testutil.Insurer(1, tt.capital)},
				[]config.InsuredConfig{testutil.Insured(1, tt.risk, 0.1, 0)},
			)
			w := mustWorld(t, cfg)
			out := w.Handle(5, quoteRequest(1, tt.risk), rng.New(1))

			if tt.reason != "" {
				d, offset := single[*event.LeadQuoteDeclined](t, out)
				if d.Reason != tt.reason {
					t.Errorf("reason: got %s, want %s", d.Reason, tt.reason)
				}
				if offset != 0 {
					t.Errorf("offset: got %d, want 0", offset)
				}
				return
			}
			q, _ := single[*event.LeadQuoteIssued](t, out)
			if q.Premium != tt.premium {
				t.Errorf("premium: got %d, want %d", q.Premium, tt.premium)
			}
		})
	}
}

func TestInsurer_CatExposureUsesOpeningPosition(t *testing.T) {
	risk := testutil.CatRisk(300, 0, 300)
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 1000)},
		[]config.InsuredConfig{testutil.Insured(1, risk, 0.1, 0)},
	)
	w := mustWorld(t, cfg)
	g := rng.New(1)

	// ceiling is 2 x 1000; seven lines of 300 breach it
	for id := event.PolicyID(1); id <= 7; id++ {
		w.Handle(20, testutil.Bound(id, 1, risk, 0, 1), g)
	}
	ins := mustInsurer(t, w, 1)
	if got := ins.CatExposure(testutil.TestTerritory); got != 2100 {
		t.Fatalf("cat exposure: got %d, want 2100", got)
	}

	// same day: the decision sees the book as it opened
	out := w.Handle(20, quoteRequest(1, risk), g)
	single[*event.LeadQuoteIssued](t, out)

	out = w.Handle(21, quoteRequest(1, risk), g)
	d, _ := single[*event.LeadQuoteDeclined](t, out)
	if d.Reason != event.DeclineCatExposure {
		t.Errorf("reason: got %s, want %s", d.Reason, event.DeclineCatExposure)
	}
}

func TestInsurer_ExpiryReleasesExposure(t *testing.T) {
	risk := testutil.CatRisk(300, 0, 300)
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 1000)},
		[]config.InsuredConfig{testutil.Insured(1, risk, 0.1, 0)},
	)
	w := mustWorld(t, cfg)
	g := rng.New(1)

	w.Handle(10, testutil.Bound(1, 1, risk, 15, 1), g)
	ins := mustInsurer(t, w, 1)
	if ins.InForce() != 1 || ins.CatExposure(testutil.TestTerritory) != 300 {
		t.Fatalf("after bind: in force %d, exposure %d", ins.InForce(), ins.CatExposure(testutil.TestTerritory))
	}
	if ins.Capital() != 1015 {
		t.Errorf("capital: got %d, want 1015", ins.Capital())
	}

	w.Handle(370, &event.PolicyExpired{PolicyID: 1, InsuredID: 1}, g)
	if ins.InForce() != 0 || ins.CatExposure(testutil.TestTerritory) != 0 {
		t.Errorf("after expiry: in force %d, exposure %d", ins.InForce(), ins.CatExposure(testutil.TestTerritory))
	}
}

func TestInsurer_InsolventExactlyOnce(t *testing.T) {
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 40)},
		[]config.InsuredConfig{testutil.Insured(1, testutil.CatRisk(100, 0, 100), 0.1, 0)},
	)
	w := mustWorld(t, cfg)
	g := rng.New(1)
	ins := mustInsurer(t, w, 1)

	claim := &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 1, Amount: 40}
	out := w.Handle(50, claim, g)
	single[*event.InsurerInsolvent](t, out)
	if ins.Capital() != 0 || !ins.Insolvent() || ins.InsolventDay() != 50 {
		t.Fatalf("after first claim: capital %d insolvent %v day %d", ins.Capital(), ins.Insolvent(), ins.InsolventDay())
	}

	claim = &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 2, Amount: 40}
	out = w.Handle(60, claim, g)
	if n := len(emitted[*event.InsurerInsolvent](out)); n != 0 {
		t.Errorf("second claim emitted %d insolvencies, want 0", n)
	}
	if ins.Capital() != 0 {
		t.Errorf("capital: got %d, want 0", ins.Capital())
	}
	if ins.ClaimsPaid() != 40 {
		t.Errorf("claims paid: got %d, want 40", ins.ClaimsPaid())
	}

	out = w.Handle(61, quoteRequest(1, testutil.CatRisk(1, 0, 1)), g)
	d, _ := single[*event.LeadQuoteDeclined](t, out)
	if d.Reason != event.DeclineInsolvent {
		t.Errorf("reason: got %s, want %s", d.Reason, event.DeclineInsolvent)
	}
}

func TestInsurer_ZeroClaimDoesNotTriggerInsolvency(t *testing.T) {
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 40)},
		[]config.InsuredConfig{testutil.Insured(1, testutil.CatRisk(100, 0, 100), 0.1, 0)},
	)
	w := mustWorld(t, cfg)
	g := rng.New(1)

	w.Handle(50, &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 1, Amount: 40}, g)
	out := w.Handle(51, &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 2, Amount: 0}, g)
	if len(out) != 0 {
		t.Errorf("got %d emissions, want 0", len(out))
	}
}

func TestInsurer_ExperienceClosesAtYearStart(t *testing.T) {
	risk := testutil.CatRisk(300, 0, 300)
	cfg := testutil.ScenarioConfig(
		[]config.InsurerConfig{testutil.Insurer(1, 10_000)},
		[]config.InsuredConfig{testutil.Insured(1, risk, 0.1, 0)},
	)
	w := mustWorld(t, cfg)
	g := rng.New(1)
	ins := mustInsurer(t, w, 1)

	w.Handle(10, testutil.Bound(1, 1, risk, 100, 1), g)
	w.Handle(50, &event.ClaimSettled{PolicyID: 1, InsurerID: 1, EventID: 1, Amount: 50}, g)

	if exp := ins.Experience(1); exp.Years != 0 {
		t.Fatalf("open year counted: %+v", exp)
	}
	exp := ins.Experience(2)
	if exp.Years != 1 || exp.LossRatio != 0.5 {
		t.Errorf("got %+v, want one year at 0.5", exp)
	}

	w.Handle(event.FirstDay(2), &event.YearStart{Year: 2}, g)
	if got := ins.Experience(2); got != exp {
		t.Errorf("materialized experience %+v differs from as-of view %+v", got, exp)
	}
}
