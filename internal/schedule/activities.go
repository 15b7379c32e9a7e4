// Package schedule runs the daily forecast analysis on a Temporal worker.
// The workflow mirrors what an operator does by hand each morning: download
// the 00Z forecast, analyze it against the airport table, persist the run
// and write report files. Temporal owns retries and cron timing; activities
// exchange file paths and run IDs rather than datasets, so payloads stay
// well under the server's blob limit.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/fetcher"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
	"github.com/aeroshield/stormrisk-cli/internal/report"
	"github.com/aeroshield/stormrisk-cli/internal/store"
	"github.com/aeroshield/stormrisk-cli/internal/track"
	"github.com/aeroshield/stormrisk-cli/pkg/weatherlab"
)

const (
	// ErrTypeNotPublished marks a fetch failure retrying cannot fix today:
	// the forecast file is not up yet. The workflow turns it into a clean
	// skip instead of burning attempts.
	ErrTypeNotPublished = "ForecastNotPublished"

	// ErrTypeBadRequest marks workflow input no retry can repair.
	ErrTypeBadRequest = "BadRequest"

	// HighExposureUSD is the total payout above which a cycle is flagged
	// loudly in the worker log.
	HighExposureUSD = 1_000_000
)

// Activities bundles the dependencies the daily workflow needs. One value
// is registered per worker and Temporal calls its exported methods.
type Activities struct {
	Fetcher   *fetcher.HTTPFetcher
	Forecasts weatherlab.Client
	Store     store.Store
	Airports  []model.Airport
	Params    model.AnalysisParams
	Options   pipeline.Options
	DataDir   string
	ReportDir string
}

// DailyRequest selects the forecast cycle to analyze. An empty date means
// today's 00Z cycle, UTC.
type DailyRequest struct {
	Date string `json:"date,omitempty"`
}

// FetchResult points at the downloaded forecast file.
type FetchResult struct {
	Date string `json:"date"`
	Path string `json:"path"`
}

// RunResult identifies the persisted run for the reporting step.
type RunResult struct {
	RunID             string  `json:"run_id"`
	Date              string  `json:"date"`
	Storms            int     `json:"storms"`
	ExpectedPayoutUSD float64 `json:"expected_payout_usd"`
}

// ReportResult lists the files the reporting step wrote.
type ReportResult struct {
	TextPath     string `json:"text_path"`
	WorkbookPath string `json:"workbook_path"`
}

// FetchForecast downloads the cycle's paired-track CSV into the data
// directory and returns its path. A cycle with no published file fails with
// a non-retryable error typed ErrTypeNotPublished.
func (a *Activities) FetchForecast(ctx context.Context, req DailyRequest) (FetchResult, error) {
	date, err := resolveDate(req.Date)
	if err != nil {
		return FetchResult{}, err
	}
	day := date.Format("2006-01-02")

	url := a.Forecasts.ForecastURL(date)
	dir := filepath.Join(a.DataDir, "weatherlab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FetchResult{}, eris.Wrap(err, "schedule: create data dir")
	}
	dest := filepath.Join(dir, path.Base(url))

	n, err := a.Fetcher.DownloadToFile(ctx, url, dest)
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			return FetchResult{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("forecast for %s not published", day), ErrTypeNotPublished, err)
		}
		return FetchResult{}, eris.Wrapf(err, "schedule: download %s", url)
	}

	zap.L().Info("schedule: forecast downloaded",
		zap.String("date", day), zap.String("path", dest), zap.Int64("bytes", n))
	return FetchResult{Date: day, Path: dest}, nil
}

// RunAnalysis parses the downloaded file, runs the pipeline and persists
// the outcome as a new run.
func (a *Activities) RunAnalysis(ctx context.Context, fetched FetchResult) (RunResult, error) {
	f, err := os.Open(fetched.Path)
	if err != nil {
		return RunResult{}, eris.Wrapf(err, "schedule: open forecast %s", fetched.Path)
	}
	defer f.Close() //nolint:errcheck

	forecast, err := weatherlab.ParseForecast(ctx, f)
	if err != nil {
		return RunResult{}, err
	}
	samples, initByStorm := track.SamplesFromForecast(forecast)

	initTime := forecast.InitTime
	if initTime.IsZero() {
		// Header-only file for a quiet day: stamp the requested cycle.
		if d, perr := time.Parse("2006-01-02", fetched.Date); perr == nil {
			initTime = d
		}
	}

	res, err := pipeline.Run(ctx, pipeline.Input{
		Source:          "weatherlab",
		InitTime:        initTime,
		InitTimeByStorm: initByStorm,
		Samples:         samples,
		Airports:        a.Airports,
		Params:          a.Params,
	}, a.Options)
	if err != nil {
		return RunResult{}, err
	}

	run, err := pipeline.SaveResult(ctx, a.Store, res)
	if err != nil {
		return RunResult{}, err
	}

	zap.L().Info("schedule: run persisted",
		zap.String("run_id", run.ID),
		zap.Int("storms", res.Totals.Storms),
		zap.Float64("expected_payout_usd", res.Totals.ExpectedPayoutUSD))

	return RunResult{
		RunID:             run.ID,
		Date:              fetched.Date,
		Storms:            res.Totals.Storms,
		ExpectedPayoutUSD: res.Totals.ExpectedPayoutUSD,
	}, nil
}

// WriteReport renders the persisted run into the report directory, one
// markdown file and one workbook per cycle.
func (a *Activities) WriteReport(ctx context.Context, run RunResult) (ReportResult, error) {
	data, err := report.FromStore(ctx, a.Store, run.RunID)
	if err != nil {
		return ReportResult{}, err
	}

	if err := os.MkdirAll(a.ReportDir, 0o755); err != nil {
		return ReportResult{}, eris.Wrap(err, "schedule: create report dir")
	}

	day := run.Date
	if day == "" {
		day = data.InitTime.UTC().Format("2006-01-02")
	}
	stem := "exposure_" + day

	textPath := filepath.Join(a.ReportDir, stem+".md")
	if err := os.WriteFile(textPath, []byte(report.Text(data)), 0o644); err != nil {
		return ReportResult{}, eris.Wrap(err, "schedule: write text report")
	}

	xlsxPath := filepath.Join(a.ReportDir, stem+".xlsx")
	wb, err := os.Create(xlsxPath)
	if err != nil {
		return ReportResult{}, eris.Wrap(err, "schedule: create workbook")
	}
	if err := report.XLSX(data, wb); err != nil {
		_ = wb.Close()
		return ReportResult{}, err
	}
	if err := wb.Close(); err != nil {
		return ReportResult{}, eris.Wrap(err, "schedule: close workbook")
	}

	if data.Totals.ExpectedPayoutUSD > HighExposureUSD {
		zap.L().Warn("schedule: high exposure cycle",
			zap.String("run_id", run.RunID),
			zap.Float64("expected_payout_usd", data.Totals.ExpectedPayoutUSD))
	}

	return ReportResult{TextPath: textPath, WorkbookPath: xlsxPath}, nil
}

// resolveDate parses a cycle date, defaulting to today UTC.
func resolveDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("bad cycle date %q, want YYYY-MM-DD", s), ErrTypeBadRequest, err)
	}
	return d, nil
}
