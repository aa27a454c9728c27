package main

import (
	"InsMarket/internal/config"
	"InsMarket/internal/core"
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/persistence"
	"InsMarket/internal/state"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and write its event log",
		Long: `Run a simulation to completion.

The event log is written as NDJSON to --out. With --save the run, its log
and its ledger journals are stored in the SQL store. With --metrics-addr
the Prometheus metrics and health endpoints stay up after the run until
interrupted.

Examples:
  insmarket run --out run.ndjson
  insmarket run --seed 7 --years 5 --save --store-dsn runs.db
  insmarket run --config market.yaml --metrics-addr :9091`,
		RunE: runSimulation,
	}

	cmd.Flags().String("out", config.EnvOrDefault(EnvOut, ""), "Write the event log here (\"-\" for stdout)")
	cmd.Flags().Bool("save", false, "Store the run in the SQL store")
	cmd.Flags().Bool("strict", false, "Abort on the first invariant violation")
	cmd.Flags().Int("max-events", config.EnvIntOrDefault(EnvMaxEvents, 0), "Stop after this many events (0: no limit)")
	cmd.Flags().String("metrics-addr", config.EnvOrDefault(EnvMetricsAddr, ""), "Serve /metrics, /healthz and /readyz on this address")
	return cmd
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := loggerFor(cmd, "run")
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		cfg.Strict = true
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	health := observability.NewHealthChecker()

	errChan := make(chan error, 1)
	addr, _ := cmd.Flags().GetString("metrics-addr")
	var srv *http.Server
	if addr != "" {
		srv = newMetricsServer(addr, reg, health)
		go func() {
			logger.Info().Str("addr", addr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		defer shutdownServer(srv, logger)
	}

	engine, err := core.NewEngine(cfg, metrics, logger)
	if err != nil {
		return err
	}
	engine.MaxEvents, _ = cmd.Flags().GetInt("max-events")
	if err := engine.Run(ctx); err != nil {
		return err
	}
	records := engine.Log().Slice(0)

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := writeLogFile(cmd, out, records); err != nil {
			return err
		}
	}

	var runID string
	if save, _ := cmd.Flags().GetBool("save"); save {
		store, err := openStore(cmd, metrics)
		if err != nil {
			return err
		}
		id, err := store.SaveRun(ctx, cfg, records)
		store.Close()
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		runID = id.String()
	}

	summary := cmd.OutOrStdout()
	if out, _ := cmd.Flags().GetString("out"); out == "-" {
		summary = cmd.ErrOrStderr()
	}
	printSummary(summary, engine, runID)

	health.SetReady(true)
	if srv == nil {
		return nil
	}
	logger.Info().Msg("run complete; serving metrics until interrupted")
	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

func newMetricsServer(addr string, reg *prometheus.Registry, health *observability.HealthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func shutdownServer(srv *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown")
	}
}

func writeLogFile(cmd *cobra.Command, path string, records []event.Record) error {
	if path == "-" {
		return persistence.WriteLog(cmd.OutOrStdout(), records)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	if err := persistence.WriteLog(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, engine *core.Engine, runID string) {
	fp := engine.Fingerprint()
	fmt.Fprintf(w, "events:       %d\n", engine.Log().Len())
	fmt.Fprintf(w, "fingerprint:  %s\n", hex.EncodeToString(fp[:]))
	if runID != "" {
		fmt.Fprintf(w, "run id:       %s\n", runID)
	}
	if n := engine.Violations(); n > 0 {
		fmt.Fprintf(w, "violations:   %d\n", n)
	}
	printInsurers(w, engine.World())
}

func printInsurers(w io.Writer, world *state.World) {
	fmt.Fprintln(w, "insurers:")
	for _, id := range world.InsurerIDs() {
		ins, _ := world.Insurer(id)
		status := "solvent"
		if ins.Insolvent() {
			status = fmt.Sprintf("insolvent day %d", ins.InsolventDay())
		}
		fmt.Fprintf(w, "  %-4d capital %-14d claims paid %-14d %s\n",
			id, ins.Capital(), ins.ClaimsPaid(), status)
	}
}
