package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/airports"
	"github.com/aeroshield/stormrisk-cli/internal/atcf"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
	"github.com/aeroshield/stormrisk-cli/internal/report"
	"github.com/aeroshield/stormrisk-cli/internal/scenario"
	"github.com/aeroshield/stormrisk-cli/internal/track"
	"github.com/aeroshield/stormrisk-cli/pkg/weatherlab"
)

var (
	analyzeDate     string
	analyzeInput    string
	analyzeScenario string
	analyzeAirports string
	analyzeRegion   string
	analyzeSave     bool
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the exposure analysis for one forecast cycle",
	Long: "Builds wind-threshold impact zones from ensemble storm tracks, matches airports, " +
		"and prices the expected travel-insurance exposure. Input is a WeatherLab cycle date, " +
		"a local forecast CSV or best-track .dat file, or a synthetic scenario.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		in, err := buildAnalysisInput(ctx)
		if err != nil {
			return err
		}

		res, err := pipeline.Run(ctx, in, pipeline.Options{
			MaxConcurrentStorms: cfg.Analysis.MaxConcurrentStorms,
			SpreadScaling:       cfg.Analysis.SpreadScaling,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("source", res.Source),
			zap.Int("storms", res.Totals.Storms),
			zap.Int("records", res.Totals.Records),
			zap.Float64("expected_payout_usd", res.Totals.ExpectedPayoutUSD),
		)

		data := report.FromResult(res)

		if analyzeSave {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			run, err := pipeline.SaveResult(ctx, st, res)
			if err != nil {
				return err
			}
			data.RunID = run.ID
			zap.L().Info("run saved", zap.String("run_id", run.ID))
		}

		if analyzeJSON {
			out := struct {
				RunID string `json:"run_id,omitempty"`
				*pipeline.Result
			}{RunID: data.RunID, Result: res}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Print(report.Text(data))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "WeatherLab cycle date to fetch and analyze (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "local forecast CSV or ATCF best-track .dat file")
	analyzeCmd.Flags().StringVar(&analyzeScenario, "scenario", "", "synthetic scenario YAML file")
	analyzeCmd.Flags().StringVar(&analyzeAirports, "airports", "", "airport table CSV/XLSX (default: built-in table)")
	analyzeCmd.Flags().StringVar(&analyzeRegion, "region", "", "restrict to one region (florida, gulf_coast, us_east_coast, caribbean)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the run to the store")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON instead of the text report")
	rootCmd.AddCommand(analyzeCmd)
}

// newForecastClient builds a WeatherLab client from config.
func newForecastClient() weatherlab.Client {
	return weatherlab.NewClient(
		weatherlab.WithBaseURL(cfg.WeatherLab.BaseURL),
		weatherlab.WithModel(cfg.WeatherLab.Model),
		weatherlab.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.WeatherLab.TimeoutSecs) * time.Second,
		}),
	)
}

// buildAnalysisInput resolves the one selected input source.
func buildAnalysisInput(ctx context.Context) (pipeline.Input, error) {
	set := 0
	for _, s := range []string{analyzeDate, analyzeInput, analyzeScenario} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return pipeline.Input{}, eris.New("exactly one of --date, --input, --scenario is required")
	}

	if analyzeScenario != "" {
		sc, err := scenario.Load(analyzeScenario)
		if err != nil {
			return pipeline.Input{}, err
		}
		table, err := loadAirportTable(ctx, analyzeAirports)
		if err != nil {
			return pipeline.Input{}, err
		}
		return sc.Input(table)
	}

	aps, err := analysisAirports(ctx)
	if err != nil {
		return pipeline.Input{}, err
	}

	if analyzeDate != "" {
		date, err := time.Parse("2006-01-02", analyzeDate)
		if err != nil {
			return pipeline.Input{}, eris.Errorf("bad --date %q, want YYYY-MM-DD", analyzeDate)
		}
		return inputFromWeatherLab(ctx, date, aps)
	}
	return inputFromFile(ctx, analyzeInput, aps)
}

// analysisAirports loads the airport table and applies the region filter.
func analysisAirports(ctx context.Context) ([]model.Airport, error) {
	table, err := loadAirportTable(ctx, analyzeAirports)
	if err != nil {
		return nil, err
	}
	if analyzeRegion == "" {
		return table, nil
	}
	sel := airports.ByRegion(table, model.Region(analyzeRegion))
	if len(sel) == 0 {
		return nil, eris.Errorf("no airports in region %q", analyzeRegion)
	}
	return sel, nil
}

func inputFromWeatherLab(ctx context.Context, date time.Time, aps []model.Airport) (pipeline.Input, error) {
	f, err := newForecastClient().FetchForecast(ctx, date)
	if err != nil {
		return pipeline.Input{}, err
	}
	samples, initByStorm := track.SamplesFromForecast(f)
	return pipeline.Input{
		Source:          "weatherlab",
		InitTime:        f.InitTime,
		InitTimeByStorm: initByStorm,
		Samples:         samples,
		Airports:        aps,
		Params:          cfg.Analysis.Params(),
	}, nil
}

// inputFromFile reads a local file, .dat parsing as an ATCF b-deck and
// anything else as a WeatherLab paired-track CSV.
func inputFromFile(ctx context.Context, path string, aps []model.Airport) (pipeline.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Input{}, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(path), ".dat") {
		bt, err := atcf.ParseBDeck(ctx, f)
		if err != nil {
			return pipeline.Input{}, err
		}
		return pipeline.Input{
			Source:          "atcf",
			InitTime:        bt.InitTime,
			InitTimeByStorm: map[string]time.Time{bt.StormID: bt.InitTime},
			Samples:         bt.Samples,
			Airports:        aps,
			Params:          cfg.Analysis.Params(),
		}, nil
	}

	fc, err := weatherlab.ParseForecast(ctx, f)
	if err != nil {
		return pipeline.Input{}, err
	}
	samples, initByStorm := track.SamplesFromForecast(fc)
	return pipeline.Input{
		Source:          "csv",
		InitTime:        fc.InitTime,
		InitTimeByStorm: initByStorm,
		Samples:         samples,
		Airports:        aps,
		Params:          cfg.Analysis.Params(),
	}, nil
}
