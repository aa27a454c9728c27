// Package pricing is the insurer's pluggable premium function. A Pricer must
// be deterministic in its Input; it never draws randomness and never sees
// aggregate state directly.
package pricing

import (
	"InsMarket/internal/event"
	fpmath "InsMarket/internal/math"
	"fmt"
	"math"
)

const (
	KindFixedRate       = "fixed_rate"
	KindExpectedLoss    = "expected_loss"
	KindExperienceRated = "experience_rated"
)

// Experience is the quoting insurer's realized record as of the quote day.
type Experience struct {
	LossRatio float64 // EWMA of closed-year loss ratios
	Years     int     // closed years with written premium
}

// Input is everything a premium may depend on.
type Input struct {
	Risk             event.Risk
	RateOnLineBps    int64
	TargetLossRatio  float64
	ExpectedLossRate float64
	Experience       Experience
	Benchmark        float64
}

type Pricer interface {
	Price(in Input) int64
}

// FixedRate charges the insurer's rate on line: limit * bps / 10000.
type FixedRate struct{}

func (FixedRate) Price(in Input) int64 {
	return max(fpmath.ApplyBps(in.Risk.Limit, in.RateOnLineBps, fpmath.RoundHalfEven), 1)
}

// ExpectedLoss charges the expected layer loss grossed up by the target loss
// ratio.
type ExpectedLoss struct{}

func (ExpectedLoss) Price(in Input) int64 {
	layer := in.Risk.Limit - in.Risk.Attachment
	expected := in.ExpectedLossRate * float64(layer)
	target := in.TargetLossRatio
	if target <= 0 {
		target = 1
	}
	return max(int64(math.Round(expected/target)), 1)
}

// ExperienceRated scales a base premium by the ratio of the insurer's
// credibility-weighted loss ratio to the market benchmark.
type ExperienceRated struct {
	Base             Pricer
	CredibilityYears float64
	MinFactor        float64
	MaxFactor        float64
}

func (p ExperienceRated) Price(in Input) int64 {
	base := p.Base.Price(in)
	return max(int64(math.Round(float64(base)*p.Factor(in))), 1)
}

// Factor is the multiplicative experience adjustment, clamped to
// [MinFactor, MaxFactor].
func (p ExperienceRated) Factor(in Input) float64 {
	if in.Benchmark <= 0 {
		return 1
	}
	z := 1.0
	if p.CredibilityYears > 0 {
		z = math.Min(1, float64(in.Experience.Years)/p.CredibilityYears)
	}
	blended := z*in.Experience.LossRatio + (1-z)*in.Benchmark
	f := blended / in.Benchmark
	if p.MinFactor > 0 {
		f = math.Max(f, p.MinFactor)
	}
	if p.MaxFactor > 0 {
		f = math.Min(f, p.MaxFactor)
	}
	return f
}

// Config selects and parameterises a Pricer.
type Config struct {
	Kind             string  `yaml:"kind"`
	CredibilityYears float64 `yaml:"credibility_years"`
	MinFactor        float64 `yaml:"min_factor"`
	MaxFactor        float64 `yaml:"max_factor"`
}

// New builds the Pricer named by cfg.Kind. Experience rating wraps the
// expected-loss pricer.
func New(cfg Config) (Pricer, error) {
	switch cfg.Kind {
	case KindFixedRate:
		return FixedRate{}, nil
	case KindExpectedLoss:
		return ExpectedLoss{}, nil
	case KindExperienceRated:
		return ExperienceRated{
			Base:             ExpectedLoss{},
			CredibilityYears: cfg.CredibilityYears,
			MinFactor:        cfg.MinFactor,
			MaxFactor:        cfg.MaxFactor,
		}, nil
	default:
		return nil, fmt.Errorf("unknown pricing kind %q", cfg.Kind)
	}
}
