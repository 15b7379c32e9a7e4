// Package pipeline orchestrates the five analysis stages: track store,
// zone builder, exposure matcher, traveler aggregator, and insurance
// estimator. All input arrives in memory before Run starts; the stages
// themselves never block on I/O.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aeroshield/stormrisk-cli/internal/insurance"
	"github.com/aeroshield/stormrisk-cli/internal/match"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/track"
	"github.com/aeroshield/stormrisk-cli/internal/traveler"
	"github.com/aeroshield/stormrisk-cli/internal/zone"
)

// Input is everything one analysis run consumes.
type Input struct {
	// Source labels where the samples came from (weatherlab, atcf,
	// scenario, csv). Informational only.
	Source string

	// InitTime is the forecast cycle shared by every storm in the batch.
	// InitTimeByStorm overrides it per storm (best-track sources have no
	// common cycle). A storm with neither falls back to its earliest
	// sample time, with a warning.
	InitTime        time.Time
	InitTimeByStorm map[string]time.Time

	Samples  []model.TrackSample
	Airports []model.Airport
	Params   model.AnalysisParams
}

// Options tunes execution, not results.
type Options struct {
	// MaxConcurrentStorms bounds the per-storm fan-out. Zero means 4.
	MaxConcurrentStorms int

	// SpreadScaling is passed through to the zone builder.
	SpreadScaling float64
}

// Result carries the terminal records plus every inspectable intermediate,
// so callers can render tracks and zones without recomputing them.
type Result struct {
	Source   string                     `json:"source"`
	InitTime time.Time                  `json:"init_time"`
	Params   model.AnalysisParams       `json:"params"`

	Trajectories []model.Trajectory         `json:"trajectories"`
	Zones        []model.ZoneSet            `json:"zones"`
	Disruptions  []model.DisruptionInterval `json:"disruptions"`
	TravelerDays []model.TravelerDay        `json:"traveler_days"`
	Exposures    []model.ExposureRecord     `json:"exposures"`

	Storms   []model.StormSummary `json:"storms"`
	Totals   model.RunTotals      `json:"totals"`
	Phases   []model.PhaseResult  `json:"phases"`
	Warnings []string             `json:"warnings,omitempty"`
	Rejected int                  `json:"rejected_samples"`
}

// Run executes the full pipeline. Parameters are validated before any data
// is touched; a bad parameter invalidates the entire run. Identical input
// and parameters always produce identical output, byte for byte.
func Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	if err := insurance.ValidateParams(in.Params); err != nil {
		return nil, err
	}

	maxStorms := opts.MaxConcurrentStorms
	if maxStorms <= 0 {
		maxStorms = 4
	}

	res := &Result{
		Source:   in.Source,
		InitTime: in.InitTime.UTC(),
		Params:   in.Params,
	}

	var warnMu sync.Mutex
	warn := func(msgs ...string) {
		warnMu.Lock()
		res.Warnings = append(res.Warnings, msgs...)
		warnMu.Unlock()
	}

	phase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		pr := model.PhaseResult{
			Name:     name,
			Status:   "complete",
			Duration: time.Since(start).Milliseconds(),
		}
		if err != nil {
			pr.Status = "failed"
			pr.Error = err.Error()
			zap.L().Error("pipeline: phase failed", zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration), zap.Error(err))
		} else {
			zap.L().Info("pipeline: phase complete", zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration))
		}
		res.Phases = append(res.Phases, pr)
		return err
	}

	// ===== Stage 1: track store =====
	var tracks *track.Result
	if err := phase("tracks", func() error {
		var err error
		tracks, err = track.Build(in.Samples)
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: build trajectories")
	}
	res.Trajectories = tracks.Trajectories
	res.Rejected = len(tracks.Rejected)
	for _, rej := range tracks.Rejected {
		warn("track: " + rej.Error())
	}

	storms := tracks.Storms()
	if len(storms) == 0 {
		warn("pipeline: no storms in input")
	}

	// ===== Stage 2: zone builder, fanned out per storm =====
	// Each storm's zone sequence is fully built before anything reads it.
	zoneSets := make([]model.ZoneSet, len(storms))
	if err := phase("zones", func() error {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(maxStorms)
		for i, stormID := range storms {
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				trajs := tracks.ByStorm(stormID)
				initTime, w := initTimeFor(stormID, trajs, in)
				set, zw := zone.Build(stormID, trajs, initTime, zone.Options{
					GrowthKMPerHour: in.Params.UncertaintyGrowthKMPerHour,
					SpreadScaling:   opts.SpreadScaling,
				})
				warn(append(w, zw...)...)
				zoneSets[i] = set
				return nil
			})
		}
		return g.Wait()
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: build zones")
	}
	res.Zones = zoneSets

	// ===== Stage 3: exposure matcher, fanned out per storm =====
	perStorm := make([][]model.DisruptionInterval, len(storms))
	if err := phase("match", func() error {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(maxStorms)
		for i := range zoneSets {
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				intervals, mw := match.Disruptions(zoneSets[i], in.Airports)
				warn(mw...)
				perStorm[i] = intervals
				return nil
			})
		}
		return g.Wait()
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: match airports")
	}
	for _, ivs := range perStorm {
		res.Disruptions = append(res.Disruptions, ivs...)
	}

	// ===== Stage 4: traveler aggregator =====
	minDisruption := time.Duration(in.Params.MinDisruptionHours * float64(time.Hour))
	if err := phase("aggregate", func() error {
		var err error
		res.TravelerDays, err = traveler.Aggregate(res.Disruptions, in.Airports, minDisruption)
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: aggregate travelers")
	}

	// ===== Stage 5: insurance estimator =====
	if err := phase("estimate", func() error {
		var err error
		res.Exposures, err = insurance.Estimate(res.TravelerDays, in.Params)
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: estimate exposure")
	}

	res.Totals = insurance.Totals(res.Exposures)
	res.Storms = summarize(storms, tracks, res.Exposures)
	sort.Strings(res.Warnings)

	zap.L().Info("pipeline: run complete",
		zap.Int("storms", res.Totals.Storms),
		zap.Int("airports_affected", res.Totals.AirportsAffected),
		zap.Int("records", res.Totals.Records),
		zap.Float64("expected_payout_usd", res.Totals.ExpectedPayoutUSD),
		zap.Int("warnings", len(res.Warnings)))

	return res, nil
}

// initTimeFor resolves the forecast init time for one storm.
func initTimeFor(stormID string, trajs []model.Trajectory, in Input) (time.Time, []string) {
	if t, ok := in.InitTimeByStorm[stormID]; ok {
		return t.UTC(), nil
	}
	if !in.InitTime.IsZero() {
		return in.InitTime.UTC(), nil
	}

	// No init time supplied: fall back to the storm's earliest fix so lead
	// time starts at zero there.
	earliest := time.Time{}
	for _, t := range trajs {
		if start, _ := t.Span(); earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
	}
	return earliest.UTC(), []string{"pipeline: storm " + stormID + " has no init time, using earliest sample"}
}

// summarize rolls exposure up per storm for reports and the run record.
func summarize(storms []string, tracks *track.Result, records []model.ExposureRecord) []model.StormSummary {
	payout := make(map[string]float64)
	airports := make(map[string]map[string]bool)
	for _, r := range records {
		payout[r.StormID] += r.ExpectedPayoutUSD
		if airports[r.StormID] == nil {
			airports[r.StormID] = make(map[string]bool)
		}
		airports[r.StormID][r.AirportCode] = true
	}

	out := make([]model.StormSummary, 0, len(storms))
	for _, id := range storms {
		trajs := tracks.ByStorm(id)
		peak := 0.0
		for _, t := range trajs {
			if w := t.PeakWindKt(); w > peak {
				peak = w
			}
		}
		out = append(out, model.StormSummary{
			StormID:           id,
			Category:          model.Category(peak),
			PeakWindKt:        peak,
			Members:           len(trajs),
			AirportsAffected:  len(airports[id]),
			ExpectedPayoutUSD: payout[id],
		})
	}
	return out
}
