package event

import (
	"fmt"
	"slices"
)

// Typed identities. Relations between aggregates are always by ID, never by
// reference; only the dispatch loop resolves an ID to a live aggregate.
type (
	InsurerID    uint32
	InsuredID    uint32
	PolicyID     uint64
	SubmissionID uint64
	LossEventID  uint64
)

// Day is the simulated time unit and the only ordering key of the queue.
type Day int64

// Year is 1-based.
type Year int

const DaysPerYear Day = 360

// FirstDay returns the first day of year y.
func FirstDay(y Year) Day { return Day(y-1) * DaysPerYear }

// LastDay returns the last day of year y.
func LastDay(y Year) Day { return Day(y)*DaysPerYear - 1 }

// YearOf returns the calendar year a day falls in.
func YearOf(d Day) Year { return Year(d/DaysPerYear) + 1 }

// Horizon is the last day of a run of the given length.
func Horizon(years int) Day { return LastDay(Year(years)) }

type Territory string

type Peril string

const (
	PerilWindstormAtlantic Peril = "windstorm_atlantic"
	PerilWindstormEuropean Peril = "windstorm_european"
	PerilEarthquakeUS      Peril = "earthquake_us"
	PerilEarthquakeJapan   Peril = "earthquake_japan"
	PerilFlood             Peril = "flood"
	PerilAttritional       Peril = "attritional"
)

// IsCatastrophe reports whether the peril is routed through the market's
// territory/peril index as a correlated occurrence.
func (p Peril) IsCatastrophe() bool {
	switch p {
	case PerilWindstormAtlantic, PerilWindstormEuropean, PerilEarthquakeUS, PerilEarthquakeJapan, PerilFlood:
		return true
	default:
		return false
	}
}

func (p Peril) Valid() bool {
	return p == PerilAttritional || p.IsCatastrophe()
}

// Risk is the insurable interest of one insured. Money is integer minor units.
type Risk struct {
	SumInsured int64     `json:"sum_insured" yaml:"sum_insured"`
	Attachment int64     `json:"attachment" yaml:"attachment"`
	Limit      int64     `json:"limit" yaml:"limit"`
	Territory  Territory `json:"territory" yaml:"territory"`
	Perils     []Peril   `json:"perils" yaml:"perils"`
}

func (r Risk) Covers(p Peril) bool {
	return slices.Contains(r.Perils, p)
}

// CatPerils returns the covered catastrophe perils in declaration order.
func (r Risk) CatPerils() []Peril {
	var out []Peril
	for _, p := range r.Perils {
		if p.IsCatastrophe() {
			out = append(out, p)
		}
	}
	return out
}

func (r Risk) HasCatExposure() bool {
	return len(r.CatPerils()) > 0
}

// Validate checks the terms are self-consistent.
func (r Risk) Validate() error {
	if r.SumInsured <= 0 {
		return fmt.Errorf("sum_insured must be positive, got %d", r.SumInsured)
	}
	if r.Limit <= 0 || r.Limit > r.SumInsured {
		return fmt.Errorf("limit must be in (0, sum_insured], got %d", r.Limit)
	}
	if r.Attachment < 0 || r.Attachment >= r.Limit {
		return fmt.Errorf("attachment must be in [0, limit), got %d", r.Attachment)
	}
	if r.Territory == "" {
		return fmt.Errorf("territory is required")
	}
	if len(r.Perils) == 0 {
		return fmt.Errorf("at least one peril is required")
	}
	for _, p := range r.Perils {
		if !p.Valid() {
			return fmt.Errorf("unknown peril %q", p)
		}
	}
	return nil
}

// PanelEntry is one insurer's share of a bound policy.
type PanelEntry struct {
	InsurerID InsurerID `json:"insurer_id"`
	ShareBps  int64     `json:"share_bps"`
	Premium   int64     `json:"premium"`
}

// FullShareBps is a 100% line.
const FullShareBps int64 = 10_000

// DeclineReason is the typed cause of a LeadQuoteDeclined.
type DeclineReason string

const (
	DeclineLineLimit   DeclineReason = "line_limit"
	DeclineCatExposure DeclineReason = "cat_exposure"
	DeclineInsolvent   DeclineReason = "insolvent"
)
