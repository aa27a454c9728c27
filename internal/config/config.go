// Package config is the construction-time run configuration. A Config is
// read once, validated, and then handed by value to the engine; nothing
// mutates it once a run has started.
package config

import (
	"InsMarket/internal/event"
	"InsMarket/internal/perils"
	"InsMarket/internal/pricing"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Seed           uint64 `yaml:"seed"`
	Years          int    `yaml:"years"`
	Strict         bool   `yaml:"strict"`
	PolicyTermDays int    `yaml:"policy_term_days"`

	Market   MarketConfig     `yaml:"market"`
	Broker   BrokerConfig     `yaml:"broker"`
	Pricing  pricing.Config   `yaml:"pricing"`
	Perils   perils.Catalogue `yaml:"perils"`
	Insurers []InsurerConfig  `yaml:"insurers"`
	Insureds []InsuredConfig  `yaml:"insureds"`
}

type MarketConfig struct {
	// InitialBenchmark is the industry loss ratio before any year closes.
	InitialBenchmark float64 `yaml:"initial_benchmark"`
	// BenchmarkWeight is the weight of a closed year in the benchmark EWMA.
	BenchmarkWeight float64 `yaml:"benchmark_weight"`
}

type BrokerConfig struct {
	Routing     string `yaml:"routing"`
	MaxAttempts int    `yaml:"max_attempts"`
	// RerouteDelayDays is the offset of the next LeadQuoteRequested after a
	// decline.
	RerouteDelayDays int `yaml:"reroute_delay_days"`
	// StaggerDays spreads the insureds' first requests over [0, StaggerDays).
	StaggerDays int `yaml:"stagger_days"`
	// RenewalLeadDays is how many days before expiry a bound insured asks
	// for renewal. 3 makes an uncontested renewal bind on the expiry day.
	RenewalLeadDays int `yaml:"renewal_lead_days"`
	// RenewalOffsetDays delays the retry after a rejection or a drop.
	RenewalOffsetDays int `yaml:"renewal_offset_days"`
	// Followers is how many insurers are asked to follow an issued lead
	// quote, each for FollowerShareBps of the risk. Zero keeps panels
	// lead-only.
	Followers        int   `yaml:"followers"`
	FollowerShareBps int64 `yaml:"follower_share_bps"`
}

type InsurerConfig struct {
	ID                  event.InsurerID `yaml:"id"`
	Capital             int64           `yaml:"capital"`
	RateOnLineBps       int64           `yaml:"rate_on_line_bps"`
	TargetLossRatio     float64         `yaml:"target_loss_ratio"`
	LineSizeFraction    float64         `yaml:"line_size_fraction"`
	CatExposureMultiple float64         `yaml:"cat_exposure_multiple"`
	ExperienceWeight    float64         `yaml:"experience_weight"`
}

type InsuredConfig struct {
	ID            event.InsuredID `yaml:"id"`
	Risk          event.Risk      `yaml:"risk"`
	MaxRateOnLine float64         `yaml:"max_rate_on_line"`
	// RequestDay pins the first CoverageRequested; nil draws it from the
	// broker stagger window.
	RequestDay *int `yaml:"request_day,omitempty"`
}

// HorizonDay is the last day events may be scheduled on.
func (c Config) HorizonDay() event.Day {
	return event.Horizon(c.Years)
}

func (c Config) TermDays() event.Day {
	return event.Day(c.PolicyTermDays)
}

// Load reads a YAML file over the canonical defaults. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the canonical defaults.
func Parse(data []byte) (Config, error) {
	cfg := Canonical()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Marshal renders the configuration as canonical YAML.
func Marshal(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("insmarket/run"))

// RunID is a name-based UUID of the configuration, so a seed and
// configuration always map to the same run.
func RunID(c Config) (uuid.UUID, error) {
	data, err := Marshal(c)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal config: %w", err)
	}
	return uuid.NewSHA1(runNamespace, data), nil
}

// InsurerByID returns the insurer entry with the given ID.
func (c Config) InsurerByID(id event.InsurerID) (InsurerConfig, bool) {
	for _, ic := range c.Insurers {
		if ic.ID == id {
			return ic, true
		}
	}
	return InsurerConfig{}, false
}
