package report

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/store"
)

// ErrRunNotComplete marks an attempt to render a run that has not finished.
var ErrRunNotComplete = eris.New("report: run not complete")

// FromStore assembles render data for a persisted run. Only complete runs
// render; queued, running and failed runs have no finished numbers yet.
func FromStore(ctx context.Context, st store.Store, runID string) (Data, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return Data{}, err
	}
	if run.Status != model.RunStatusComplete {
		return Data{}, eris.Wrapf(ErrRunNotComplete, "run %s is %s", runID, run.Status)
	}

	storms, err := st.GetStormSummaries(ctx, runID)
	if err != nil {
		return Data{}, err
	}
	exposures, err := st.GetExposures(ctx, runID)
	if err != nil {
		return Data{}, err
	}
	disruptions, err := st.GetDisruptions(ctx, runID)
	if err != nil {
		return Data{}, err
	}

	d := Data{
		RunID:       run.ID,
		Source:      run.Source,
		InitTime:    run.InitTime,
		Params:      run.Params,
		Storms:      storms,
		Exposures:   exposures,
		Disruptions: disruptions,
		Warnings:    run.Warnings,
	}
	if run.Totals != nil {
		d.Totals = *run.Totals
	}
	return d, nil
}
