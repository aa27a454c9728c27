package main

import (
	"InsMarket/internal/event"
	"InsMarket/internal/ledger"
	"InsMarket/internal/projection"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise a finished run by year and by insurer",
		Long: `Summarise a finished run.

Prints one row per simulated year (premium, claims, loss ratio, catastrophe
activity, broker outcomes), the ledger position of every insurer, and the
costliest catastrophes.

Examples:
  insmarket stats --log run.ndjson
  insmarket stats --store-dsn runs.db --json`,
		RunE: runStats,
	}

	addSourceFlags(cmd)
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Int("top", 5, "Number of costliest catastrophes to list")
	return cmd
}

type insurerStats struct {
	InsurerID  event.InsurerID `json:"insurer_id"`
	Opening    int64           `json:"opening_capital"`
	Capital    int64           `json:"capital"`
	ClaimsPaid int64           `json:"claims_paid"`
	ClaimsDue  int64           `json:"claims_due"`
}

type catStats struct {
	EventID event.LossEventID `json:"event_id"`
	Claims  int64             `json:"claims"`
}

type statsReport struct {
	Years    []projection.YearRow `json:"years"`
	Insurers []insurerStats       `json:"insurers"`
	TopCats  []catStats           `json:"top_catastrophes"`
}

func runStats(cmd *cobra.Command, args []string) error {
	src, err := loadSource(cmd)
	if err != nil {
		return err
	}
	top, _ := cmd.Flags().GetInt("top")

	report, err := buildStats(src, top)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStats(cmd.OutOrStdout(), report)
	return nil
}

func buildStats(src *source, top int) (statsReport, error) {
	tracker, journals, err := ledger.Replay(src.cfg.Insurers, src.records)
	if err != nil {
		return statsReport{}, fmt.Errorf("ledger: %w", err)
	}
	paid := make(map[ledger.AccountKey]int64)
	for _, j := range journals {
		if j.JournalType == ledger.JournalTypeClaimPaid {
			paid[j.CreditAccount] += j.Amount
		}
	}
	claims := projection.ClaimHistory(src.records)
	due := claims.TotalByInsurer()

	report := statsReport{Years: projection.YearStats(src.records)}
	for _, ic := range src.cfg.Insurers {
		report.Insurers = append(report.Insurers, insurerStats{
			InsurerID:  ic.ID,
			Opening:    ic.Capital,
			Capital:    tracker.InsurerCapital(ic.ID),
			ClaimsPaid: paid[ledger.NewInsurerAccountKey(ic.ID, ledger.SubTypeCapital)],
			ClaimsDue:  due[ic.ID],
		})
	}

	byCat := claims.TotalByCatEvent()
	ids := slices.SortedFunc(maps.Keys(byCat), func(a, b event.LossEventID) int {
		if c := cmp.Compare(byCat[b], byCat[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, id := range ids[:min(max(top, 0), len(ids))] {
		report.TopCats = append(report.TopCats, catStats{EventID: id, Claims: byCat[id]})
	}
	return report, nil
}

func printStats(w io.Writer, r statsReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "year\tbound\tpremium\tclaims\tloss ratio\trate on line\tcats\tcat GUL\tattritional GUL\tdeclines\tfollows\trejections\tdrops\tfailures\t")
	for _, y := range r.Years {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.3f\t%.4f\t%d\t%d\t%d\t%d\t%d/%d\t%d\t%d\t%d\t\n",
			y.Year, y.PoliciesBound, y.Premium, y.Claims, y.LossRatio(), y.RateOnLine(),
			y.CatEvents, y.CatGroundUp, y.AttritionalGroundUp,
			y.QuotesDeclined, y.FollowsIssued, y.FollowsIssued+y.FollowsDeclined, y.Rejections, y.Drops, y.Insolvencies)
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "insurer\topening\tcapital\tclaims paid\tclaims due\t")
	for _, s := range r.Insurers {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t\n", s.InsurerID, s.Opening, s.Capital, s.ClaimsPaid, s.ClaimsDue)
	}
	tw.Flush()

	if len(r.TopCats) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "catastrophe\tclaims\t")
	for _, c := range r.TopCats {
		fmt.Fprintf(tw, "%d\t%d\t\n", c.EventID, c.Claims)
	}
	tw.Flush()
}
