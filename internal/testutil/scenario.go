package testutil

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/perils"
	"InsMarket/internal/pricing"
)

// TestTerritory is the only territory scenario worlds write.
const TestTerritory event.Territory = "TEST"

// ScenarioConfig returns a strict, one-year configuration without
// stochastic losses: no attritional frequency and no catastrophe zones.
// Losses in scenario tests are scheduled by hand. Pricing is a fixed rate
// on line.
func ScenarioConfig(insurers []config.InsurerConfig, insureds []config.InsuredConfig) config.Config {
	cfg := config.Canonical()
	cfg.Seed = 1
	cfg.Years = 1
	cfg.Strict = true
	// panels stay lead-only unless a scenario asks for followers
	cfg.Broker.Followers = 0
	cfg.Pricing = pricing.Config{Kind: pricing.KindFixedRate}
	cfg.Perils = perils.Catalogue{Attritional: perils.Attritional{Frequency: 0, Mu: -4.5, Sigma: 1}}
	cfg.Insurers = insurers
	cfg.Insureds = insureds
	return cfg
}

// Insurer is a scenario insurer writing at 500 bps with the canonical
// capacity rules.
func Insurer(id event.InsurerID, capital int64) config.InsurerConfig {
	return config.InsurerConfig{
		ID:                  id,
		Capital:             capital,
		RateOnLineBps:       500,
		TargetLossRatio:     0.65,
		LineSizeFraction:    0.3,
		CatExposureMultiple: 2.0,
		ExperienceWeight:    0.3,
	}
}

// Insured is a scenario insured asking for cover on requestDay.
func Insured(id event.InsuredID, risk event.Risk, maxRate float64, requestDay int) config.InsuredConfig {
	return config.InsuredConfig{
		ID:            id,
		Risk:          risk,
		MaxRateOnLine: maxRate,
		RequestDay:    &requestDay,
	}
}

// CatRisk is a windstorm risk in TestTerritory.
func CatRisk(sumInsured, attachment, limit int64) event.Risk {
	return event.Risk{
		SumInsured: sumInsured,
		Attachment: attachment,
		Limit:      limit,
		Territory:  TestTerritory,
		Perils:     []event.Peril{event.PerilWindstormAtlantic},
	}
}

// Bound returns a PolicyBound for risk with an equal-share panel. Shares
// that do not divide evenly leave the residual with the lead.
func Bound(id event.PolicyID, insured event.InsuredID, risk event.Risk, premium int64, panel ...event.InsurerID) *event.PolicyBound {
	entries := make([]event.PanelEntry, len(panel))
	var allocated int64
	for i, ins := range panel {
		entries[i] = event.PanelEntry{InsurerID: ins, ShareBps: event.FullShareBps / int64(len(panel))}
		allocated += entries[i].ShareBps
	}
	if len(entries) > 0 {
		entries[0].ShareBps += event.FullShareBps - allocated
		rest := premium
		for i := range entries {
			entries[i].Premium = premium * entries[i].ShareBps / event.FullShareBps
			rest -= entries[i].Premium
		}
		entries[0].Premium += rest
	}
	var lead event.InsurerID
	if len(panel) > 0 {
		lead = panel[0]
	}
	return &event.PolicyBound{
		PolicyID:     id,
		SubmissionID: event.SubmissionID(id),
		InsuredID:    insured,
		InsurerID:    lead,
		Premium:      premium,
		SumInsured:   risk.SumInsured,
		Attachment:   risk.Attachment,
		Limit:        risk.Limit,
		Territory:    risk.Territory,
		Perils:       risk.Perils,
		Panel:        entries,
	}
}
