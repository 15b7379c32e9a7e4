package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aeroshield/stormrisk-cli/internal/db"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/zone"
)

// PostgresStore implements Store using pgxpool. Zone geometry is stored as
// EWKB so PostGIS deployments can query rings spatially without a separate
// conversion step.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, status, source, init_time, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, status, source, init_time, params, totals, warnings, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_exposures":     `SELECT storm_id, airport_code, date, travelers_at_risk, expected_claims, expected_payout_usd FROM exposures WHERE run_id = $1 ORDER BY storm_id, airport_code, date`,
	"get_disruptions":   `SELECT storm_id, airport_code, start_time, end_time, peak_threshold_kt FROM disruptions WHERE run_id = $1 ORDER BY storm_id, airport_code, start_time`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status     TEXT NOT NULL DEFAULT 'queued',
	source     TEXT NOT NULL,
	init_time  TIMESTAMPTZ NOT NULL,
	params     JSONB NOT NULL,
	totals     JSONB,
	warnings   JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS exposures (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	storm_id            TEXT NOT NULL,
	airport_code        TEXT NOT NULL,
	date                TEXT NOT NULL,
	travelers_at_risk   DOUBLE PRECISION NOT NULL,
	expected_claims     DOUBLE PRECISION NOT NULL,
	expected_payout_usd DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, storm_id, airport_code, date)
);

CREATE TABLE IF NOT EXISTS disruptions (
	run_id            TEXT NOT NULL REFERENCES runs(id),
	storm_id          TEXT NOT NULL,
	airport_code      TEXT NOT NULL,
	start_time        TIMESTAMPTZ NOT NULL,
	end_time          TIMESTAMPTZ NOT NULL,
	peak_threshold_kt INTEGER NOT NULL,
	PRIMARY KEY (run_id, storm_id, airport_code, start_time)
);

CREATE TABLE IF NOT EXISTS storm_summaries (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	storm_id            TEXT NOT NULL,
	category            TEXT NOT NULL,
	peak_wind_kt        DOUBLE PRECISION NOT NULL,
	members             INTEGER NOT NULL,
	airports_affected   INTEGER NOT NULL,
	expected_payout_usd DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, storm_id)
);

CREATE TABLE IF NOT EXISTS zones (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	storm_id       TEXT NOT NULL,
	init_time      TIMESTAMPTZ NOT NULL,
	valid_time     TIMESTAMPTZ NOT NULL,
	threshold_kt   INTEGER NOT NULL,
	uncertainty_km DOUBLE PRECISION NOT NULL,
	circles        JSONB NOT NULL,
	geom           BYTEA NOT NULL,
	PRIMARY KEY (run_id, storm_id, valid_time, threshold_kt)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_exposures_run_id ON exposures(run_id);
CREATE INDEX IF NOT EXISTS idx_disruptions_run_id ON disruptions(run_id);
CREATE INDEX IF NOT EXISTS idx_zones_run_storm ON zones(run_id, storm_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string, initTime time.Time, params model.AnalysisParams) (*model.AnalysisRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, source, init_time, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, string(model.RunStatusQueued), source, initTime.UTC(), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.AnalysisRun{
		ID:        id,
		Status:    model.RunStatusQueued,
		Source:    source,
		InitTime:  initTime.UTC(),
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "id %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, totals model.RunTotals, warnings []string) error {
	totalsJSON, err := json.Marshal(totals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal totals")
	}
	var warningsJSON any
	if len(warnings) > 0 {
		b, err := json.Marshal(warnings)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal warnings")
		}
		warningsJSON = b
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, totals = $2, warnings = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), totalsJSON, warningsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "id %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "id %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	var r model.AnalysisRun
	var paramsJSON []byte
	var totalsJSON, warningsJSON *[]byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, source, init_time, params, totals, warnings, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Status, &r.Source, &r.InitTime, &paramsJSON,
		&totalsJSON, &warningsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "id %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := decodeRunJSON(&r, paramsJSON, totalsJSON, warningsJSON, errMsg); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error) {
	query := `SELECT id, status, source, init_time, params, totals, warnings, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		var r model.AnalysisRun
		var paramsJSON []byte
		var totalsJSON, warningsJSON *[]byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &r.Status, &r.Source, &r.InitTime, &paramsJSON,
			&totalsJSON, &warningsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := decodeRunJSON(&r, paramsJSON, totalsJSON, warningsJSON, errMsg); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveExposures(ctx context.Context, runID string, records []model.ExposureRecord) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{runID, r.StormID, r.AirportCode, r.Date,
			r.TravelersAtRisk, r.ExpectedClaims, r.ExpectedPayoutUSD})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "exposures",
		Columns:      []string{"run_id", "storm_id", "airport_code", "date", "travelers_at_risk", "expected_claims", "expected_payout_usd"},
		ConflictKeys: []string{"run_id", "storm_id", "airport_code", "date"},
	}, rows)
	return eris.Wrapf(err, "postgres: save exposures for run %s", runID)
}

func (s *PostgresStore) GetExposures(ctx context.Context, runID string) ([]model.ExposureRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT storm_id, airport_code, date, travelers_at_risk, expected_claims, expected_payout_usd
		 FROM exposures WHERE run_id = $1 ORDER BY storm_id, airport_code, date`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get exposures")
	}
	defer rows.Close()

	var records []model.ExposureRecord
	for rows.Next() {
		var r model.ExposureRecord
		if err := rows.Scan(&r.StormID, &r.AirportCode, &r.Date,
			&r.TravelersAtRisk, &r.ExpectedClaims, &r.ExpectedPayoutUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan exposure")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: get exposures iterate")
}

func (s *PostgresStore) SaveDisruptions(ctx context.Context, runID string, intervals []model.DisruptionInterval) error {
	rows := make([][]any, 0, len(intervals))
	for _, d := range intervals {
		rows = append(rows, []any{runID, d.StormID, d.AirportCode,
			d.StartTime.UTC(), d.EndTime.UTC(), d.PeakThresholdKt})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "disruptions",
		Columns:      []string{"run_id", "storm_id", "airport_code", "start_time", "end_time", "peak_threshold_kt"},
		ConflictKeys: []string{"run_id", "storm_id", "airport_code", "start_time"},
	}, rows)
	return eris.Wrapf(err, "postgres: save disruptions for run %s", runID)
}

func (s *PostgresStore) GetDisruptions(ctx context.Context, runID string) ([]model.DisruptionInterval, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT storm_id, airport_code, start_time, end_time, peak_threshold_kt
		 FROM disruptions WHERE run_id = $1 ORDER BY storm_id, airport_code, start_time`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get disruptions")
	}
	defer rows.Close()

	var intervals []model.DisruptionInterval
	for rows.Next() {
		var d model.DisruptionInterval
		if err := rows.Scan(&d.StormID, &d.AirportCode, &d.StartTime, &d.EndTime, &d.PeakThresholdKt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan disruption")
		}
		d.StartTime = d.StartTime.UTC()
		d.EndTime = d.EndTime.UTC()
		intervals = append(intervals, d)
	}
	return intervals, eris.Wrap(rows.Err(), "postgres: get disruptions iterate")
}

func (s *PostgresStore) SaveStormSummaries(ctx context.Context, runID string, storms []model.StormSummary) error {
	rows := make([][]any, 0, len(storms))
	for _, st := range storms {
		rows = append(rows, []any{runID, st.StormID, st.Category, st.PeakWindKt,
			st.Members, st.AirportsAffected, st.ExpectedPayoutUSD})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "storm_summaries",
		Columns:      []string{"run_id", "storm_id", "category", "peak_wind_kt", "members", "airports_affected", "expected_payout_usd"},
		ConflictKeys: []string{"run_id", "storm_id"},
	}, rows)
	return eris.Wrapf(err, "postgres: save storm summaries for run %s", runID)
}

func (s *PostgresStore) GetStormSummaries(ctx context.Context, runID string) ([]model.StormSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT storm_id, category, peak_wind_kt, members, airports_affected, expected_payout_usd
		 FROM storm_summaries WHERE run_id = $1 ORDER BY storm_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get storm summaries")
	}
	defer rows.Close()

	var storms []model.StormSummary
	for rows.Next() {
		var st model.StormSummary
		if err := rows.Scan(&st.StormID, &st.Category, &st.PeakWindKt,
			&st.Members, &st.AirportsAffected, &st.ExpectedPayoutUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan storm summary")
		}
		storms = append(storms, st)
	}
	return storms, eris.Wrap(rows.Err(), "postgres: get storm summaries iterate")
}

// SaveZones replaces a run's zone rows wholesale. Ring polygons go through
// COPY; a five-day multi-storm forecast writes a few thousand rows here.
func (s *PostgresStore) SaveZones(ctx context.Context, runID string, sets []model.ZoneSet) error {
	rows := make([][]any, 0, len(sets)*16)
	for _, set := range sets {
		for _, z := range set.Zones {
			for _, ring := range z.Rings {
				circlesJSON, err := json.Marshal(ring.Circles)
				if err != nil {
					return eris.Wrap(err, "postgres: marshal circles")
				}
				geom, err := zone.RingEWKB(ring)
				if err != nil {
					return eris.Wrapf(err, "postgres: polygonize %s@%s", set.StormID, z.ValidTime.Format(time.RFC3339))
				}
				rows = append(rows, []any{runID, set.StormID, set.InitTime.UTC(), z.ValidTime.UTC(),
					ring.ThresholdKt, z.UncertaintyKM, circlesJSON, geom})
			}
		}
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM zones WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear zones for run %s", runID)
	}

	columns := []string{"run_id", "storm_id", "init_time", "valid_time", "threshold_kt", "uncertainty_km", "circles", "geom"}
	_, err := db.CopyFrom(ctx, s.pool, "zones", columns, rows)
	return eris.Wrapf(err, "postgres: save zones for run %s", runID)
}

func (s *PostgresStore) GetZones(ctx context.Context, runID, stormID string) ([]model.ZoneSet, error) {
	query := `SELECT storm_id, init_time, valid_time, threshold_kt, uncertainty_km, circles
		 FROM zones WHERE run_id = $1`
	args := []any{runID}
	if stormID != "" {
		query += ` AND storm_id = $2`
		args = append(args, stormID)
	}
	query += ` ORDER BY storm_id, valid_time, threshold_kt`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get zones")
	}
	defer rows.Close()

	var sets []model.ZoneSet
	for rows.Next() {
		var storm string
		var initTime, validTime time.Time
		var thresholdKt int
		var uncertaintyKM float64
		var circlesJSON []byte
		if err := rows.Scan(&storm, &initTime, &validTime, &thresholdKt, &uncertaintyKM, &circlesJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone")
		}
		var circles []model.Circle
		if err := json.Unmarshal(circlesJSON, &circles); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal circles")
		}
		appendZoneRow(&sets, storm, initTime.UTC(), validTime.UTC(), thresholdKt, uncertaintyKM, circles)
	}
	return sets, eris.Wrap(rows.Err(), "postgres: get zones iterate")
}

func decodeRunJSON(r *model.AnalysisRun, paramsJSON []byte, totalsJSON, warningsJSON *[]byte, errMsg *string) error {
	r.InitTime = r.InitTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()

	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return eris.Wrap(err, "postgres: unmarshal params")
	}
	if totalsJSON != nil {
		r.Totals = &model.RunTotals{}
		if err := json.Unmarshal(*totalsJSON, r.Totals); err != nil {
			return eris.Wrap(err, "postgres: unmarshal totals")
		}
	}
	if warningsJSON != nil {
		if err := json.Unmarshal(*warningsJSON, &r.Warnings); err != nil {
			return eris.Wrap(err, "postgres: unmarshal warnings")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return nil
}
