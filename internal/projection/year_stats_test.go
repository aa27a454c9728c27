package projection_test

import (
	"InsMarket/internal/event"
	"InsMarket/internal/projection"
	"InsMarket/internal/testutil"
	"testing"
)

func sampleLog() []event.Record {
	risk := testutil.CatRisk(1000, 0, 400)
	evs := []struct {
		day event.Day
		ev  event.Event
	}{
		{8, &event.LeadQuoteDeclined{SubmissionID: 1, InsurerID: 1, Attempt: 1, Reason: event.DeclineLineLimit}},
		{8, &event.LeadQuoteIssued{SubmissionID: 1, InsurerID: 2, Attempt: 2, Premium: 40}},
		{10, testutil.Bound(1, 1, risk, 40, 2)},
		{50, &event.LossEvent{EventID: 1, Territory: testutil.TestTerritory, Peril: event.PerilWindstormAtlantic, DamageFraction: 0.2}},
		{50, &event.InsuredLoss{PolicyID: 1, InsuredID: 1, EventID: 1, Peril: event.PerilWindstormAtlantic, GroundUpLoss: 200}},
		{50, &event.ClaimSettled{PolicyID: 1, InsurerID: 2, EventID: 1, Amount: 200}},
		{400, &event.InsuredLoss{PolicyID: 1, InsuredID: 1, Occurrence: 1, Peril: event.PerilAttritional, GroundUpLoss: 30}},
		{400, &event.ClaimSettled{PolicyID: 1, InsurerID: 2, Occurrence: 1, Amount: 30}},
		{401, &event.QuoteRejected{SubmissionID: 2, InsuredID: 1, InsurerID: 2, Premium: 50}},
	}
	out := make([]event.Record, len(evs))
	for i, e := range evs {
		out[i] = event.Record{Seq: int64(i), Day: e.day, Event: e.ev}
	}
	return out
}

func TestYearStats(t *testing.T) {
	rows := projection.YearStats(sampleLog())
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	y1, y2 := rows[0], rows[1]
	if y1.Year != 1 || y2.Year != 2 {
		t.Fatalf("years: got %d and %d", y1.Year, y2.Year)
	}
	if y1.PoliciesBound != 1 || y1.Premium != 40 || y1.Limit != 400 {
		t.Errorf("year 1 binds: got %+v", y1)
	}
	if y1.Claims != 200 || y1.CatEvents != 1 || y1.CatGroundUp != 200 || y1.AttritionalGroundUp != 0 {
		t.Errorf("year 1 losses: got %+v", y1)
	}
	if y1.QuotesIssued != 1 || y1.QuotesDeclined != 1 {
		t.Errorf("year 1 quotes: got %+v", y1)
	}
	if got := y1.LossRatio(); got != 5 {
		t.Errorf("year 1 loss ratio: got %v, want 5", got)
	}
	if got := y1.RateOnLine(); got != 0.1 {
		t.Errorf("year 1 rate on line: got %v, want 0.1", got)
	}

	if y2.Claims != 30 || y2.AttritionalGroundUp != 30 || y2.Rejections != 1 {
		t.Errorf("year 2: got %+v", y2)
	}
	if y2.LossRatio() != 0 || y2.RateOnLine() != 0 {
		t.Errorf("year 2 without premium: loss ratio %v rate %v", y2.LossRatio(), y2.RateOnLine())
	}
}

func TestClaimHistory(t *testing.T) {
	h := projection.ClaimHistory(sampleLog())
	if h.Len() != 2 {
		t.Fatalf("got %d claims, want 2", h.Len())
	}

	got := h.QueryByInsurer(2, 1)
	if len(got) != 1 || got[0].Amount != 30 || got[0].Day != 400 {
		t.Errorf("latest claim: got %+v", got)
	}
	if got := h.QueryByInsurer(1, 10); len(got) != 0 {
		t.Errorf("insurer 1: got %d claims, want 0", len(got))
	}
	if got := h.TotalByInsurer()[2]; got != 230 {
		t.Errorf("insurer 2 total: got %d, want 230", got)
	}
	byEvent := h.TotalByCatEvent()
	if len(byEvent) != 1 || byEvent[1] != 200 {
		t.Errorf("by cat event: got %v", byEvent)
	}
}
