package main

import (
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/persistence"
	"InsMarket/internal/projection"
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the market state from a finished run's log",
		Long: `Rebuild the market state by folding a run's log into a fresh world.

No decisions are taken and no random numbers are drawn: the state comes
from the logged facts alone. The rebuilt insurer positions are printed.

Examples:
  insmarket replay --log run.ndjson --seed 7
  insmarket run --out - | insmarket replay --log -`,
		RunE: runReplay,
	}

	addSourceFlags(cmd)
	cmd.Flags().Int("buffer", 256, "Records buffered between the reader and the fold")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger := loggerFor(cmd, "replay")
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	logPath, _ := cmd.Flags().GetString("log")
	if logPath == "" {
		src, err := loadSource(cmd)
		if err != nil {
			return err
		}
		world, err := projection.Reconstruct(src.cfg, src.records)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "events:       %d\n", len(src.records))
		printInsurers(cmd.OutOrStdout(), world)
		return nil
	}

	// a log file is streamed: the reader and the fold run concurrently
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, err := projection.NewReplayer(cfg, metrics, logger)
	if err != nil {
		return err
	}

	in := os.Stdin
	if logPath != "-" {
		f, err := os.Open(logPath)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		in = f
	}

	buffer, _ := cmd.Flags().GetInt("buffer")
	records := make(chan event.Record, max(buffer, 0))
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	scanErr := make(chan error, 1)
	go func() {
		defer close(records)
		scanErr <- persistence.ScanLog(ctx, in, records)
	}()

	if err := r.Run(ctx, records); err != nil {
		cancel()
		<-scanErr
		return err
	}
	if err := <-scanErr; err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "events:       %d\n", r.Applied())
	printInsurers(cmd.OutOrStdout(), r.World())
	return nil
}
