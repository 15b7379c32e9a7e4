package schedule

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DailyResult is the workflow outcome recorded in Temporal's history.
type DailyResult struct {
	Date              string  `json:"date"`
	RunID             string  `json:"run_id,omitempty"`
	Storms            int     `json:"storms"`
	ExpectedPayoutUSD float64 `json:"expected_payout_usd"`
	TextPath          string  `json:"text_path,omitempty"`
	WorkbookPath      string  `json:"workbook_path,omitempty"`
	Skipped           bool    `json:"skipped,omitempty"`
}

// DailyAnalysisWorkflow fetches one forecast cycle, analyzes it and writes
// the reports. Each step retries on its own; a cycle whose file is not
// published yet completes early with Skipped set, and the next cron tick
// picks up the next cycle.
func DailyAnalysisWorkflow(ctx workflow.Context, req DailyRequest) (*DailyResult, error) {
	logger := workflow.GetLogger(ctx)

	var a *Activities

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    5,
		},
	})
	var fetched FetchResult
	if err := workflow.ExecuteActivity(fetchCtx, a.FetchForecast, req).Get(fetchCtx, &fetched); err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == ErrTypeNotPublished {
			logger.Info("forecast not published, skipping cycle", "date", req.Date)
			return &DailyResult{Date: req.Date, Skipped: true}, nil
		}
		return nil, err
	}

	analyzeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})
	var run RunResult
	if err := workflow.ExecuteActivity(analyzeCtx, a.RunAnalysis, fetched).Get(analyzeCtx, &run); err != nil {
		return nil, err
	}

	reportCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})
	var rep ReportResult
	if err := workflow.ExecuteActivity(reportCtx, a.WriteReport, run).Get(reportCtx, &rep); err != nil {
		return nil, err
	}

	logger.Info("daily analysis complete",
		"date", fetched.Date, "run_id", run.RunID,
		"storms", run.Storms, "expected_payout_usd", run.ExpectedPayoutUSD)

	return &DailyResult{
		Date:              fetched.Date,
		RunID:             run.RunID,
		Storms:            run.Storms,
		ExpectedPayoutUSD: run.ExpectedPayoutUSD,
		TextPath:          rep.TextPath,
		WorkbookPath:      rep.WorkbookPath,
	}, nil
}
