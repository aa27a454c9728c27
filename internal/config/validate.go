package config

import (
	"InsMarket/internal/event"
	"InsMarket/internal/pricing"
	"InsMarket/internal/routing"
	"errors"
	"fmt"
)

// Validate reports every problem at once. A run must not dispatch a single
// event on an invalid configuration.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Seed == 0 {
		add("seed must be non-zero")
	}
	if c.Years < 1 {
		add("years must be at least 1, got %d", c.Years)
	}
	if c.PolicyTermDays < 2 {
		add("policy_term_days must be at least 2, got %d", c.PolicyTermDays)
	}

	if c.Market.InitialBenchmark <= 0 {
		add("market.initial_benchmark must be positive")
	}
	if c.Market.BenchmarkWeight <= 0 || c.Market.BenchmarkWeight > 1 {
		add("market.benchmark_weight must be in (0, 1], got %v", c.Market.BenchmarkWeight)
	}

	if _, err := routing.New(c.Broker.Routing); err != nil {
		add("broker.routing: %v", err)
	}
	if c.Broker.MaxAttempts < 1 {
		add("broker.max_attempts must be at least 1, got %d", c.Broker.MaxAttempts)
	}
	if c.Broker.RerouteDelayDays < 0 {
		add("broker.reroute_delay_days must be non-negative")
	}
	if c.Broker.StaggerDays < 0 {
		add("broker.stagger_days must be non-negative")
	}
	if c.Broker.RenewalLeadDays < 0 || c.Broker.RenewalLeadDays >= c.PolicyTermDays {
		add("broker.renewal_lead_days must be in [0, policy_term_days), got %d", c.Broker.RenewalLeadDays)
	}
	if c.Broker.RenewalOffsetDays < 1 {
		add("broker.renewal_offset_days must be at least 1, got %d", c.Broker.RenewalOffsetDays)
	}
	if c.Broker.Followers < 0 {
		add("broker.followers must be non-negative, got %d", c.Broker.Followers)
	}
	if c.Broker.Followers > 0 {
		if c.Broker.FollowerShareBps <= 0 {
			add("broker.follower_share_bps must be positive when followers are asked")
		} else if int64(c.Broker.Followers)*c.Broker.FollowerShareBps >= event.FullShareBps {
			add("broker: %d followers at %d bps leave the lead no share", c.Broker.Followers, c.Broker.FollowerShareBps)
		}
	}

	if _, err := pricing.New(c.Pricing); err != nil {
		add("pricing: %v", err)
	}
	if err := c.Perils.Validate(); err != nil {
		add("perils: %v", err)
	}

	if len(c.Insurers) == 0 {
		add("at least one insurer is required")
	}
	seenInsurers := make(map[event.InsurerID]bool)
	for i, ic := range c.Insurers {
		if ic.ID == 0 {
			add("insurers[%d]: id must be non-zero", i)
		}
		if seenInsurers[ic.ID] {
			add("insurers[%d]: duplicate id %d", i, ic.ID)
		}
		seenInsurers[ic.ID] = true
		if ic.Capital <= 0 {
			add("insurer %d: capital must be positive, got %d", ic.ID, ic.Capital)
		}
		if ic.RateOnLineBps < 0 {
			add("insurer %d: rate_on_line_bps must be non-negative", ic.ID)
		}
		if ic.TargetLossRatio <= 0 {
			add("insurer %d: target_loss_ratio must be positive", ic.ID)
		}
		if ic.LineSizeFraction <= 0 || ic.LineSizeFraction > 1 {
			add("insurer %d: line_size_fraction must be in (0, 1], got %v", ic.ID, ic.LineSizeFraction)
		}
		if ic.CatExposureMultiple <= 0 {
			add("insurer %d: cat_exposure_multiple must be positive", ic.ID)
		}
		if ic.ExperienceWeight <= 0 || ic.ExperienceWeight > 1 {
			add("insurer %d: experience_weight must be in (0, 1], got %v", ic.ID, ic.ExperienceWeight)
		}
	}

	if len(c.Insureds) == 0 {
		add("at least one insured is required")
	}
	seenInsureds := make(map[event.InsuredID]bool)
	for i, ic := range c.Insureds {
		if ic.ID == 0 {
			add("insureds[%d]: id must be non-zero", i)
		}
		if seenInsureds[ic.ID] {
			add("insureds[%d]: duplicate id %d", i, ic.ID)
		}
		seenInsureds[ic.ID] = true
		if err := ic.Risk.Validate(); err != nil {
			add("insured %d: %v", ic.ID, err)
		}
		if ic.MaxRateOnLine <= 0 {
			add("insured %d: max_rate_on_line must be positive", ic.ID)
		}
		if ic.RequestDay != nil && *ic.RequestDay < 0 {
			add("insured %d: request_day must be non-negative", ic.ID)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
