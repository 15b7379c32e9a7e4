package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/store"
)

// SaveResult persists a finished result as a new run and returns the stored
// row. If any output fails to save, the run is marked failed with that
// step's message before the error is returned, so a half-written run never
// sits in the store looking queued.
func SaveResult(ctx context.Context, st store.Store, res *Result) (*model.AnalysisRun, error) {
	run, err := st.CreateRun(ctx, res.Source, res.InitTime, res.Params)
	if err != nil {
		return nil, eris.Wrap(err, "save result: create run")
	}
	if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return nil, eris.Wrap(err, "save result: mark running")
	}

	steps := []struct {
		name string
		save func() error
	}{
		{"exposures", func() error { return st.SaveExposures(ctx, run.ID, res.Exposures) }},
		{"disruptions", func() error { return st.SaveDisruptions(ctx, run.ID, res.Disruptions) }},
		{"storm summaries", func() error { return st.SaveStormSummaries(ctx, run.ID, res.Storms) }},
		{"zones", func() error { return st.SaveZones(ctx, run.ID, res.Zones) }},
	}
	for _, step := range steps {
		if err := step.save(); err != nil {
			wrapped := eris.Wrapf(err, "save result: %s", step.name)
			if failErr := st.FailRun(ctx, run.ID, wrapped.Error()); failErr != nil {
				zap.L().Warn("save result: mark run failed",
					zap.String("run_id", run.ID), zap.Error(failErr))
			}
			return nil, wrapped
		}
	}

	if err := st.CompleteRun(ctx, run.ID, res.Totals, res.Warnings); err != nil {
		return nil, eris.Wrap(err, "save result: complete run")
	}
	return st.GetRun(ctx, run.ID)
}
