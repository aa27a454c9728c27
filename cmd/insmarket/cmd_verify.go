package main

import (
	"InsMarket/internal/audit"
	"InsMarket/internal/core"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a finished run against the market invariants",
		Long: `Verify a finished run.

The log is checked for day order, quote chains, panel integrity, loss
windows, claim conservation, insolvency rules and a balanced ledger. A
stored run is also checked against its stored fingerprint. With --rerun
the simulation is run again from the configuration and must reproduce the
log exactly.

Examples:
  insmarket verify --log run.ndjson --seed 7
  insmarket verify --store-dsn runs.db --rerun`,
		RunE: runVerify,
	}

	addSourceFlags(cmd)
	cmd.Flags().Bool("rerun", false, "Re-simulate and compare fingerprints")
	cmd.Flags().String("expect", "", "Expected fingerprint (hex)")
	cmd.Flags().Int("max-report", 20, "Print at most this many violations")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	src, err := loadSource(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fp, err := core.FingerprintRecords(src.records)
	if err != nil {
		return err
	}
	got := hex.EncodeToString(fp[:])
	fmt.Fprintf(out, "events:       %d\n", len(src.records))
	fmt.Fprintf(out, "fingerprint:  %s\n", got)

	failed := false
	mismatch := func(what, want string) {
		if want != "" && want != got {
			fmt.Fprintf(out, "FAIL %s fingerprint %s\n", what, want)
			failed = true
		}
	}
	mismatch("stored", src.fingerprint)
	expect, _ := cmd.Flags().GetString("expect")
	mismatch("expected", expect)

	if rerun, _ := cmd.Flags().GetBool("rerun"); rerun {
		engine, err := core.NewEngine(src.cfg, nil, zerolog.Nop())
		if err != nil {
			return err
		}
		if err := engine.Run(cmd.Context()); err != nil {
			return fmt.Errorf("rerun: %w", err)
		}
		tip := engine.Fingerprint()
		mismatch("rerun", hex.EncodeToString(tip[:]))
	}

	violations := audit.Validate(src.records, audit.OptionsFor(src.cfg))
	limit, _ := cmd.Flags().GetInt("max-report")
	for i, v := range violations {
		if i == limit {
			fmt.Fprintf(out, "... and %d more\n", len(violations)-limit)
			break
		}
		fmt.Fprintf(out, "FAIL %s\n", v)
	}
	if len(violations) > 0 || failed {
		return errFailed
	}
	fmt.Fprintln(out, "OK")
	return nil
}
