package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// ErrRunNotFound reports a run ID with no matching row. Callers that need
// to map it to an HTTP 404 test with errors.Is.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing analysis runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs and their
// outputs. Save methods are idempotent per run ID so a retried persistence
// step never duplicates rows.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, initTime time.Time, params model.AnalysisParams) (*model.AnalysisRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, totals model.RunTotals, warnings []string) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error)

	// Run outputs
	SaveExposures(ctx context.Context, runID string, records []model.ExposureRecord) error
	GetExposures(ctx context.Context, runID string) ([]model.ExposureRecord, error)
	SaveDisruptions(ctx context.Context, runID string, intervals []model.DisruptionInterval) error
	GetDisruptions(ctx context.Context, runID string) ([]model.DisruptionInterval, error)
	SaveStormSummaries(ctx context.Context, runID string, storms []model.StormSummary) error
	GetStormSummaries(ctx context.Context, runID string) ([]model.StormSummary, error)
	SaveZones(ctx context.Context, runID string, sets []model.ZoneSet) error
	GetZones(ctx context.Context, runID, stormID string) ([]model.ZoneSet, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
