package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/store"
)

var (
	runsStatus string
	runsSince  string
	runsLimit  int
	runsJSON   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved analysis runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := store.RunFilter{Limit: runsLimit}
		if runsStatus != "" {
			filter.Status = model.RunStatus(runsStatus)
		}
		if runsSince != "" {
			since, err := time.Parse("2006-01-02", runsSince)
			if err != nil {
				return eris.Errorf("bad --since %q, want YYYY-MM-DD", runsSince)
			}
			filter.Since = since
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		fmt.Print(formatRunsList(runs))
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		fmt.Print(formatRunDetail(run))
		return nil
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate statistics across saved runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{})
		if err != nil {
			return err
		}
		fmt.Print(formatRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (queued, running, complete, failed)")
	runsListCmd.Flags().StringVar(&runsSince, "since", "", "only runs created on or after this date (YYYY-MM-DD)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsListCmd.Flags().BoolVar(&runsJSON, "json", false, "print JSON instead of a table")
	runsShowCmd.Flags().BoolVar(&runsJSON, "json", false, "print JSON instead of a table")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatRunsList(runs []model.AnalysisRun) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSOURCE\tINIT TIME\tSTORMS\tPAYOUT USD\tCREATED")
	for _, run := range runs {
		storms, payout := "-", "-"
		if run.Totals != nil {
			storms = fmt.Sprintf("%d", run.Totals.Storms)
			payout = fmt.Sprintf("%.2f", run.Totals.ExpectedPayoutUSD)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(run.ID),
			run.Status,
			run.Source,
			run.InitTime.UTC().Format("2006-01-02 15:04"),
			storms,
			payout,
			run.CreatedAt.UTC().Format("2006-01-02 15:04"),
		)
	}
	w.Flush() //nolint:errcheck
	return b.String()
}

func formatRunDetail(run *model.AnalysisRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:      %s\n", run.ID)
	fmt.Fprintf(&b, "Status:   %s\n", run.Status)
	fmt.Fprintf(&b, "Source:   %s\n", run.Source)
	fmt.Fprintf(&b, "Init:     %s\n", run.InitTime.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Created:  %s\n", run.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Updated:  %s\n", run.UpdatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	if run.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", run.Error)
	}
	if run.Totals != nil {
		t := run.Totals
		fmt.Fprintf(&b, "Totals:   %d storms, %d airports, %d records\n", t.Storms, t.AirportsAffected, t.Records)
		fmt.Fprintf(&b, "          %.1f travelers at risk, %.1f claims, $%.2f expected payout\n",
			t.TravelersAtRisk, t.ExpectedClaims, t.ExpectedPayoutUSD)
	}
	if len(run.Warnings) > 0 {
		fmt.Fprintf(&b, "Warnings: %d\n", len(run.Warnings))
		for _, warn := range run.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warn)
		}
	}
	return b.String()
}

func formatRunStats(runs []model.AnalysisRun) string {
	byStatus := map[model.RunStatus]int{}
	var complete int
	var totalDur time.Duration
	var totalPayout float64
	var latestInit time.Time
	for _, run := range runs {
		byStatus[run.Status]++
		if run.Status != model.RunStatusComplete {
			continue
		}
		complete++
		totalDur += run.UpdatedAt.Sub(run.CreatedAt)
		if run.Totals != nil {
			totalPayout += run.Totals.ExpectedPayoutUSD
		}
		if run.InitTime.After(latestInit) {
			latestInit = run.InitTime
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Runs: %d\n", len(runs))
	for _, status := range []model.RunStatus{
		model.RunStatusQueued, model.RunStatusRunning, model.RunStatusComplete, model.RunStatusFailed,
	} {
		if n := byStatus[status]; n > 0 {
			fmt.Fprintf(&b, "  %-9s %d\n", status, n)
		}
	}
	if complete > 0 {
		fmt.Fprintf(&b, "Avg duration:  %s\n", (totalDur / time.Duration(complete)).Round(time.Millisecond))
		fmt.Fprintf(&b, "Total payout:  $%.2f across %d complete runs\n", totalPayout, complete)
		fmt.Fprintf(&b, "Latest cycle:  %s\n", latestInit.UTC().Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
