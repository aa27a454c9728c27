package main

import (
	"InsMarket/internal/observability"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "insmarket",
		Short: "Deterministic insurance market simulator",
		Long: `insmarket runs a seeded discrete-event simulation of a specialty
insurance market: insureds buy cover through a broker from lead insurers,
catastrophes and attritional losses turn into claims, and undercapitalised
insurers fail.

Every run is an append-only event log. The same seed and configuration
always produce the same log, byte for byte.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file (default: built-in canonical market)")
	flags.Uint64("seed", 0, "Override the configured seed")
	flags.Int("years", 0, "Override the configured number of years")
	flags.String("log-level", "", "debug, info, warn or error (default: $"+observability.EnvLogLevel+" or info)")
	flags.String("store-driver", envStoreDriver(), "SQL store driver: sqlite or postgres")
	flags.String("store-dsn", envStoreDSN(), "SQL store DSN; a file path for sqlite")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newVerifyCmd(),
		newStatsCmd(),
		newReplayCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "insmarket version %s\n", version)
		},
	}
}

// loggerFor builds the component logger, honouring --log-level over the
// environment.
func loggerFor(cmd *cobra.Command, component string) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		return observability.NewLogger(component)
	}
	return observability.NewLoggerWithLevel(component, observability.ParseLogLevel(level))
}
