// Package perils holds the loss frequency and severity models. Models only
// describe distributions; all draws go through the run's *rng.RNG.
package perils

import (
	"InsMarket/internal/event"
	"InsMarket/internal/rng"
	"fmt"
	"math"
)

// Occurrence is one scheduled loss: Offset days after the scheduling event.
type Occurrence struct {
	Offset         event.Day
	DamageFraction float64
}

// Attritional is the independent per-policy loss model: Poisson count per
// policy year, LogNormal damage fraction clipped to 1.
type Attritional struct {
	Frequency float64 `yaml:"frequency"`
	Mu        float64 `yaml:"mu"`
	Sigma     float64 `yaml:"sigma"`
}

// ExpectedDamage is E[df] of the unclipped LogNormal.
func (a Attritional) ExpectedDamage() float64 {
	return math.Min(math.Exp(a.Mu+a.Sigma*a.Sigma/2), 1)
}

// Occurrences draws the losses of one policy term. Offsets fall strictly
// inside the term, in [1, term-1].
func (a Attritional) Occurrences(g *rng.RNG, term event.Day) []Occurrence {
	n := g.Poisson(a.Frequency)
	if n == 0 {
		return nil
	}
	out := make([]Occurrence, 0, n)
	for i := 0; i < n; i++ {
		offset := event.Day(g.Between(1, int(term)-1))
		df := rng.Fraction(g.LogNormal(a.Mu, a.Sigma))
		out = append(out, Occurrence{Offset: offset, DamageFraction: df})
	}
	return out
}

func (a Attritional) Validate() error {
	if a.Frequency < 0 {
		return fmt.Errorf("attritional frequency must be non-negative, got %v", a.Frequency)
	}
	if a.Sigma < 0 {
		return fmt.Errorf("attritional sigma must be non-negative, got %v", a.Sigma)
	}
	return nil
}

// CatZone is a correlated occurrence source for one territory and peril:
// Poisson annual count, Pareto damage fraction clipped to 1.
type CatZone struct {
	Territory event.Territory `yaml:"territory"`
	Peril     event.Peril     `yaml:"peril"`
	Frequency float64         `yaml:"frequency"`
	Scale     float64         `yaml:"scale"`
	Shape     float64         `yaml:"shape"`
}

// ExpectedDamage is E[df] of the unclipped Pareto, capped at 1. An infinite
// mean (shape <= 1) is treated as total loss.
func (z CatZone) ExpectedDamage() float64 {
	if z.Shape <= 1 {
		return 1
	}
	return math.Min(z.Scale*z.Shape/(z.Shape-1), 1)
}

// Occurrences draws one year of occurrences for the zone, each on a day in
// [1, DaysPerYear-1] after year start.
func (z CatZone) Occurrences(g *rng.RNG) []Occurrence {
	n := g.Poisson(z.Frequency)
	if n == 0 {
		return nil
	}
	out := make([]Occurrence, 0, n)
	for i := 0; i < n; i++ {
		offset := event.Day(g.Between(1, int(event.DaysPerYear)-1))
		df := rng.Fraction(g.Pareto(z.Scale, z.Shape))
		out = append(out, Occurrence{Offset: offset, DamageFraction: df})
	}
	return out
}

func (z CatZone) Validate() error {
	if z.Territory == "" {
		return fmt.Errorf("cat zone territory is required")
	}
	if !z.Peril.IsCatastrophe() {
		return fmt.Errorf("cat zone peril %q is not a catastrophe peril", z.Peril)
	}
	if z.Frequency < 0 {
		return fmt.Errorf("cat zone %s/%s frequency must be non-negative", z.Territory, z.Peril)
	}
	if z.Scale <= 0 || z.Shape <= 0 {
		return fmt.Errorf("cat zone %s/%s needs positive scale and shape", z.Territory, z.Peril)
	}
	return nil
}

// Catalogue is the full loss model of a run.
type Catalogue struct {
	Attritional Attritional `yaml:"attritional"`
	Zones       []CatZone   `yaml:"zones"`
}

// ExpectedLossRate is the expected annual ground-up loss of a risk as a
// fraction of its sum insured, before the annual cap.
func (c Catalogue) ExpectedLossRate(r event.Risk) float64 {
	var rate float64
	if r.Covers(event.PerilAttritional) {
		rate += c.Attritional.Frequency * c.Attritional.ExpectedDamage()
	}
	for _, z := range c.Zones {
		if z.Territory == r.Territory && r.Covers(z.Peril) {
			rate += z.Frequency * z.ExpectedDamage()
		}
	}
	return math.Min(rate, 1)
}

func (c Catalogue) Validate() error {
	if err := c.Attritional.Validate(); err != nil {
		return err
	}
	for _, z := range c.Zones {
		if err := z.Validate(); err != nil {
			return err
		}
	}
	return nil
}
