package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/airports"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
	"github.com/aeroshield/stormrisk-cli/internal/schedule"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for the scheduled daily analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		table, err := airports.Default()
		if err != nil {
			return err
		}

		c, err := schedule.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return err
		}
		defer c.Close()

		a := &schedule.Activities{
			Fetcher:   newFetcher(),
			Forecasts: newForecastClient(),
			Store:     st,
			Airports:  table,
			Params:    cfg.Analysis.Params(),
			Options: pipeline.Options{
				MaxConcurrentStorms: cfg.Analysis.MaxConcurrentStorms,
				SpreadScaling:       cfg.Analysis.SpreadScaling,
			},
			DataDir:   cfg.Fetch.DataDir,
			ReportDir: cfg.Temporal.ReportDir,
		}

		w := schedule.NewWorker(c, cfg.Temporal.TaskQueue, a)
		zap.L().Info("starting worker",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("namespace", cfg.Temporal.Namespace),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
