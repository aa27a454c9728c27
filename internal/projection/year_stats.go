package projection

import (
	"InsMarket/internal/event"
	"maps"
	"slices"
)

// YearRow is the market summary of one calendar year of the log.
type YearRow struct {
	Year event.Year

	PoliciesBound int
	Premium       int64
	SumInsured    int64
	Limit         int64

	Claims              int64
	CatEvents           int
	CatGroundUp         int64
	AttritionalGroundUp int64

	QuotesIssued    int
	QuotesDeclined  int
	FollowsIssued   int
	FollowsDeclined int
	Rejections      int
	Drops           int
	Insolvencies    int
}

// LossRatio is claims over premium, zero for a year without premium.
func (r YearRow) LossRatio() float64 {
	if r.Premium == 0 {
		return 0
	}
	return float64(r.Claims) / float64(r.Premium)
}

// RateOnLine is bound premium over bound limit.
func (r YearRow) RateOnLine() float64 {
	if r.Limit == 0 {
		return 0
	}
	return float64(r.Premium) / float64(r.Limit)
}

// YearStats folds the log into one row per calendar year that saw an event,
// in year order.
func YearStats(records []event.Record) []YearRow {
	rows := make(map[event.Year]*YearRow)
	row := func(day event.Day) *YearRow {
		y := event.YearOf(day)
		r, ok := rows[y]
		if !ok {
			r = &YearRow{Year: y}
			rows[y] = r
		}
		return r
	}

	for _, rec := range records {
		r := row(rec.Day)
		switch e := rec.Event.(type) {
		case *event.PolicyBound:
			r.PoliciesBound++
			r.Premium += e.Premium
			r.SumInsured += e.SumInsured
			r.Limit += e.Limit
		case *event.ClaimSettled:
			r.Claims += e.Amount
		case *event.LossEvent:
			r.CatEvents++
		case *event.InsuredLoss:
			if e.Peril.IsCatastrophe() {
				r.CatGroundUp += e.GroundUpLoss
			} else {
				r.AttritionalGroundUp += e.GroundUpLoss
			}
		case *event.LeadQuoteIssued:
			r.QuotesIssued++
		case *event.LeadQuoteDeclined:
			r.QuotesDeclined++
		case *event.FollowerQuoteIssued:
			r.FollowsIssued++
		case *event.FollowerQuoteDeclined:
			r.FollowsDeclined++
		case *event.QuoteRejected:
			r.Rejections++
		case *event.SubmissionDropped:
			r.Drops++
		case *event.InsurerInsolvent:
			r.Insolvencies++
		}
	}

	out := make([]YearRow, 0, len(rows))
	for _, y := range slices.Sorted(maps.Keys(rows)) {
		out = append(out, *rows[y])
	}
	return out
}
