package config

import (
	"InsMarket/internal/event"
	"InsMarket/internal/perils"
	"InsMarket/internal/pricing"
	"InsMarket/internal/routing"
)

// Money below is in pence.

// Canonical is the reference market: six insurers in three capital tiers
// and twelve insureds spread over five catastrophe territories.
func Canonical() Config {
	return Config{
		Seed:           42,
		Years:          5,
		PolicyTermDays: int(event.DaysPerYear),
		Market: MarketConfig{
			InitialBenchmark: 0.65,
			BenchmarkWeight:  0.3,
		},
		Broker: BrokerConfig{
			Routing:           routing.KindRoundRobin,
			MaxAttempts:       3,
			RerouteDelayDays:  0,
			StaggerDays:       90,
			RenewalLeadDays:   3,
			RenewalOffsetDays: int(event.DaysPerYear),
			Followers:         2,
			FollowerShareBps:  2500,
		},
		Pricing: pricing.Config{
			Kind:             pricing.KindExperienceRated,
			CredibilityYears: 5,
			MinFactor:        0.6,
			MaxFactor:        2.0,
		},
		Perils: perils.Catalogue{
			Attritional: perils.Attritional{Frequency: 2.0, Mu: -4.5, Sigma: 1.0},
			Zones: []perils.CatZone{
				{Territory: "US-SE", Peril: event.PerilWindstormAtlantic, Frequency: 0.5, Scale: 0.04, Shape: 2.0},
				{Territory: "EU-NW", Peril: event.PerilWindstormEuropean, Frequency: 0.4, Scale: 0.03, Shape: 2.5},
				{Territory: "US-CA", Peril: event.PerilEarthquakeUS, Frequency: 0.1, Scale: 0.08, Shape: 1.8},
				{Territory: "JP", Peril: event.PerilEarthquakeJapan, Frequency: 0.15, Scale: 0.06, Shape: 2.0},
				{Territory: "UK", Peril: event.PerilFlood, Frequency: 0.3, Scale: 0.02, Shape: 3.0},
			},
		},
		Insurers: []InsurerConfig{
			canonicalInsurer(1, 50_000_000_000, 450),
			canonicalInsurer(2, 50_000_000_000, 500),
			canonicalInsurer(3, 20_000_000_000, 550),
			canonicalInsurer(4, 20_000_000_000, 600),
			canonicalInsurer(5, 8_000_000_000, 625),
			canonicalInsurer(6, 8_000_000_000, 675),
		},
		Insureds: []InsuredConfig{
			canonicalInsured(1, "US-SE", event.PerilWindstormAtlantic, 10_000_000_000, 5_000_000_000, 500_000_000),
			canonicalInsured(2, "US-SE", event.PerilWindstormAtlantic, 2_000_000_000, 1_000_000_000, 100_000_000),
			canonicalInsured(3, "US-SE", event.PerilWindstormAtlantic, 1_000_000_000, 500_000_000, 50_000_000),
			canonicalInsured(4, "EU-NW", event.PerilWindstormEuropean, 3_000_000_000, 1_500_000_000, 200_000_000),
			canonicalInsured(5, "EU-NW", event.PerilWindstormEuropean, 500_000_000, 200_000_000, 20_000_000),
			canonicalInsured(6, "US-CA", event.PerilEarthquakeUS, 3_000_000_000, 1_500_000_000, 200_000_000),
			canonicalInsured(7, "US-CA", event.PerilEarthquakeUS, 1_000_000_000, 500_000_000, 50_000_000),
			canonicalInsured(8, "JP", event.PerilEarthquakeJapan, 2_000_000_000, 1_000_000_000, 100_000_000),
			canonicalInsured(9, "JP", event.PerilEarthquakeJapan, 500_000_000, 200_000_000, 20_000_000),
			canonicalInsured(10, "UK", event.PerilFlood, 1_000_000_000, 500_000_000, 50_000_000),
			canonicalInsured(11, "UK", event.PerilFlood, 500_000_000, 200_000_000, 20_000_000),
			canonicalInsured(12, "UK", event.PerilFlood, 3_000_000_000, 1_500_000_000, 200_000_000),
		},
	}
}

func canonicalInsurer(id event.InsurerID, capital, rolBps int64) InsurerConfig {
	return InsurerConfig{
		ID:                  id,
		Capital:             capital,
		RateOnLineBps:       rolBps,
		TargetLossRatio:     0.65,
		LineSizeFraction:    0.3,
		CatExposureMultiple: 2.0,
		ExperienceWeight:    0.3,
	}
}

func canonicalInsured(id event.InsuredID, territory event.Territory, peril event.Peril, si, limit, attachment int64) InsuredConfig {
	return InsuredConfig{
		ID: id,
		Risk: event.Risk{
			SumInsured: si,
			Attachment: attachment,
			Limit:      limit,
			Territory:  territory,
			Perils:     []event.Peril{peril, event.PerilAttritional},
		},
		MaxRateOnLine: 0.08,
	}
}
