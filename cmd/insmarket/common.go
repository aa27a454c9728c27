package main

import (
	"InsMarket/internal/config"
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/persistence"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Environment defaults for flags.
const (
	EnvStoreDriver = "INSMARKET_STORE_DRIVER"
	EnvStoreDSN    = "INSMARKET_STORE_DSN"
	EnvOut         = "INSMARKET_OUT"
	EnvMetricsAddr = "INSMARKET_METRICS_ADDR"
	EnvMaxEvents   = "INSMARKET_MAX_EVENTS"
)

func envStoreDriver() string { return config.EnvOrDefault(EnvStoreDriver, persistence.DriverSQLite) }
func envStoreDSN() string    { return config.EnvOrDefault(EnvStoreDSN, "") }

// loadConfig reads --config (or the canonical market), then the
// environment, then --seed and --years, and validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.Canonical()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Config{}, err
	}
	if err := applyFlagOverrides(cmd, &cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("years") {
		years, err := cmd.Flags().GetInt("years")
		if err != nil {
			return err
		}
		cfg.Years = years
	}
	return nil
}

// openStore opens the store named by --store-driver and --store-dsn.
func openStore(cmd *cobra.Command, metrics *observability.Metrics) (*persistence.Store, error) {
	driver, _ := cmd.Flags().GetString("store-driver")
	dsn, _ := cmd.Flags().GetString("store-dsn")
	if dsn == "" {
		return nil, fmt.Errorf("--store-dsn (or $%s) is required", EnvStoreDSN)
	}
	return persistence.Open(cmd.Context(), driver, dsn, metrics, loggerFor(cmd, "store"))
}

// source is where a command reads a finished run from.
type source struct {
	cfg     config.Config
	records []event.Record

	// set for stored runs
	runID       uuid.UUID
	fingerprint string
}

// addSourceFlags registers --log and --run. With neither, the latest stored
// run is used.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("log", "", "NDJSON event log file (\"-\" for stdin)")
	cmd.Flags().String("run", "", "Stored run ID (default: latest stored run)")
}

// loadSource reads a log file with the configuration from loadConfig, or a
// stored run with the configuration saved alongside it.
func loadSource(cmd *cobra.Command) (*source, error) {
	logPath, _ := cmd.Flags().GetString("log")
	if logPath != "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		records, err := readLogFile(logPath)
		if err != nil {
			return nil, err
		}
		return &source{cfg: cfg, records: records}, nil
	}

	store, err := openStore(cmd, nil)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx := cmd.Context()
	runFlag, _ := cmd.Flags().GetString("run")
	var row persistence.RunRow
	if runFlag == "" {
		row, err = store.LatestRun(ctx)
	} else {
		id, perr := uuid.Parse(runFlag)
		if perr != nil {
			return nil, fmt.Errorf("--run: %w", perr)
		}
		row, err = store.Run(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := row.RunConfig()
	if err != nil {
		return nil, fmt.Errorf("stored config of %s: %w", row.RunID, err)
	}
	runID := uuid.MustParse(row.RunID)
	records, err := store.LoadEvents(ctx, runID, 0, 0)
	if err != nil {
		return nil, err
	}
	return &source{cfg: cfg, records: records, runID: runID, fingerprint: row.Fingerprint}, nil
}

func readLogFile(path string) ([]event.Record, error) {
	if path == "-" {
		return persistence.ReadLog(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	return persistence.ReadLog(f)
}

// errFailed is returned after a command has printed its own findings.
var errFailed = errors.New("check failed")
