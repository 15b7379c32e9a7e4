package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/zone"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend; a single analyst laptop runs full seasons against it. Zone
// geometry is stored as GeoJSON text since SQLite has no native type for it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'queued',
	source     TEXT NOT NULL,
	init_time  DATETIME NOT NULL,
	params     TEXT NOT NULL,
	totals     TEXT,
	warnings   TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS exposures (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	storm_id            TEXT NOT NULL,
	airport_code        TEXT NOT NULL,
	date                TEXT NOT NULL,
	travelers_at_risk   REAL NOT NULL,
	expected_claims     REAL NOT NULL,
	expected_payout_usd REAL NOT NULL,
	PRIMARY KEY (run_id, storm_id, airport_code, date)
);

CREATE TABLE IF NOT EXISTS disruptions (
	run_id            TEXT NOT NULL REFERENCES runs(id),
	storm_id          TEXT NOT NULL,
	airport_code      TEXT NOT NULL,
	start_time        DATETIME NOT NULL,
	end_time          DATETIME NOT NULL,
	peak_threshold_kt INTEGER NOT NULL,
	PRIMARY KEY (run_id, storm_id, airport_code, start_time)
);

CREATE TABLE IF NOT EXISTS storm_summaries (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	storm_id            TEXT NOT NULL,
	category            TEXT NOT NULL,
	peak_wind_kt        REAL NOT NULL,
	members             INTEGER NOT NULL,
	airports_affected   INTEGER NOT NULL,
	expected_payout_usd REAL NOT NULL,
	PRIMARY KEY (run_id, storm_id)
);

CREATE TABLE IF NOT EXISTS zones (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	storm_id       TEXT NOT NULL,
	init_time      DATETIME NOT NULL,
	valid_time     DATETIME NOT NULL,
	threshold_kt   INTEGER NOT NULL,
	uncertainty_km REAL NOT NULL,
	circles        TEXT NOT NULL,
	geom           TEXT NOT NULL,
	PRIMARY KEY (run_id, storm_id, valid_time, threshold_kt)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_exposures_run_id ON exposures(run_id);
CREATE INDEX IF NOT EXISTS idx_disruptions_run_id ON disruptions(run_id);
CREATE INDEX IF NOT EXISTS idx_zones_run_storm ON zones(run_id, storm_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string, initTime time.Time, params model.AnalysisParams) (*model.AnalysisRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, source, init_time, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(model.RunStatusQueued), source, initTime.UTC(), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRunUpdated(res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, totals model.RunTotals, warnings []string) error {
	totalsJSON, err := json.Marshal(totals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal totals")
	}
	var warningsJSON any
	if len(warnings) > 0 {
		b, err := json.Marshal(warnings)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal warnings")
		}
		warningsJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, totals = ?, warnings = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(totalsJSON), warningsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRunUpdated(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRunUpdated(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, source, init_time, params, totals, warnings, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row, runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error) {
	query := `SELECT id, status, source, init_time, params, totals, warnings, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows, "")
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveExposures(ctx context.Context, runID string, records []model.ExposureRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save exposures")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO exposures
		 (run_id, storm_id, airport_code, date, travelers_at_risk, expected_claims, expected_payout_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare exposure insert")
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, runID, r.StormID, r.AirportCode, r.Date,
			r.TravelersAtRisk, r.ExpectedClaims, r.ExpectedPayoutUSD)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert exposure %s %s %s", r.StormID, r.AirportCode, r.Date)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit exposures")
}

func (s *SQLiteStore) GetExposures(ctx context.Context, runID string) ([]model.ExposureRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storm_id, airport_code, date, travelers_at_risk, expected_claims, expected_payout_usd
		 FROM exposures WHERE run_id = ? ORDER BY storm_id, airport_code, date`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get exposures")
	}
	defer rows.Close()

	var records []model.ExposureRecord
	for rows.Next() {
		var r model.ExposureRecord
		if err := rows.Scan(&r.StormID, &r.AirportCode, &r.Date,
			&r.TravelersAtRisk, &r.ExpectedClaims, &r.ExpectedPayoutUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan exposure")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: get exposures iterate")
}

func (s *SQLiteStore) SaveDisruptions(ctx context.Context, runID string, intervals []model.DisruptionInterval) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save disruptions")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO disruptions
		 (run_id, storm_id, airport_code, start_time, end_time, peak_threshold_kt)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare disruption insert")
	}
	defer stmt.Close()

	for _, d := range intervals {
		_, err := stmt.ExecContext(ctx, runID, d.StormID, d.AirportCode,
			d.StartTime.UTC(), d.EndTime.UTC(), d.PeakThresholdKt)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert disruption %s %s", d.StormID, d.AirportCode)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit disruptions")
}

func (s *SQLiteStore) GetDisruptions(ctx context.Context, runID string) ([]model.DisruptionInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storm_id, airport_code, start_time, end_time, peak_threshold_kt
		 FROM disruptions WHERE run_id = ? ORDER BY storm_id, airport_code, start_time`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get disruptions")
	}
	defer rows.Close()

	var intervals []model.DisruptionInterval
	for rows.Next() {
		var d model.DisruptionInterval
		if err := rows.Scan(&d.StormID, &d.AirportCode, &d.StartTime, &d.EndTime, &d.PeakThresholdKt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan disruption")
		}
		d.StartTime = d.StartTime.UTC()
		d.EndTime = d.EndTime.UTC()
		intervals = append(intervals, d)
	}
	return intervals, eris.Wrap(rows.Err(), "sqlite: get disruptions iterate")
}

func (s *SQLiteStore) SaveStormSummaries(ctx context.Context, runID string, storms []model.StormSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save storm summaries")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO storm_summaries
		 (run_id, storm_id, category, peak_wind_kt, members, airports_affected, expected_payout_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare storm summary insert")
	}
	defer stmt.Close()

	for _, st := range storms {
		_, err := stmt.ExecContext(ctx, runID, st.StormID, st.Category, st.PeakWindKt,
			st.Members, st.AirportsAffected, st.ExpectedPayoutUSD)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert storm summary %s", st.StormID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit storm summaries")
}

func (s *SQLiteStore) GetStormSummaries(ctx context.Context, runID string) ([]model.StormSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storm_id, category, peak_wind_kt, members, airports_affected, expected_payout_usd
		 FROM storm_summaries WHERE run_id = ? ORDER BY storm_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get storm summaries")
	}
	defer rows.Close()

	var storms []model.StormSummary
	for rows.Next() {
		var st model.StormSummary
		if err := rows.Scan(&st.StormID, &st.Category, &st.PeakWindKt,
			&st.Members, &st.AirportsAffected, &st.ExpectedPayoutUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan storm summary")
		}
		storms = append(storms, st)
	}
	return storms, eris.Wrap(rows.Err(), "sqlite: get storm summaries iterate")
}

func (s *SQLiteStore) SaveZones(ctx context.Context, runID string, sets []model.ZoneSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save zones")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zones WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear zones for run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zones
		 (run_id, storm_id, init_time, valid_time, threshold_kt, uncertainty_km, circles, geom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare zone insert")
	}
	defer stmt.Close()

	for _, set := range sets {
		for _, z := range set.Zones {
			for _, ring := range z.Rings {
				circlesJSON, err := json.Marshal(ring.Circles)
				if err != nil {
					return eris.Wrap(err, "sqlite: marshal circles")
				}
				geom, err := zone.RingGeoJSON(ring)
				if err != nil {
					return eris.Wrapf(err, "sqlite: polygonize %s@%s", set.StormID, z.ValidTime.Format(time.RFC3339))
				}
				_, err = stmt.ExecContext(ctx, runID, set.StormID, set.InitTime.UTC(), z.ValidTime.UTC(),
					ring.ThresholdKt, z.UncertaintyKM, string(circlesJSON), string(geom))
				if err != nil {
					return eris.Wrapf(err, "sqlite: insert zone %s@%s", set.StormID, z.ValidTime.Format(time.RFC3339))
				}
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit zones")
}

func (s *SQLiteStore) GetZones(ctx context.Context, runID, stormID string) ([]model.ZoneSet, error) {
	query := `SELECT storm_id, init_time, valid_time, threshold_kt, uncertainty_km, circles
		 FROM zones WHERE run_id = ?`
	args := []any{runID}
	if stormID != "" {
		query += ` AND storm_id = ?`
		args = append(args, stormID)
	}
	query += ` ORDER BY storm_id, valid_time, threshold_kt`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get zones")
	}
	defer rows.Close()

	var sets []model.ZoneSet
	for rows.Next() {
		var storm, circlesJSON string
		var initTime, validTime time.Time
		var thresholdKt int
		var uncertaintyKM float64
		if err := rows.Scan(&storm, &initTime, &validTime, &thresholdKt, &uncertaintyKM, &circlesJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone")
		}
		var circles []model.Circle
		if err := json.Unmarshal([]byte(circlesJSON), &circles); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal circles")
		}
		appendZoneRow(&sets, storm, initTime.UTC(), validTime.UTC(), thresholdKt, uncertaintyKM, circles)
	}
	return sets, eris.Wrap(rows.Err(), "sqlite: get zones iterate")
}

// appendZoneRow rebuilds ZoneSets from flat ring rows. Rows arrive ordered
// by storm, valid time and threshold, so grouping only needs to compare
// against the tail.
func appendZoneRow(sets *[]model.ZoneSet, storm string, initTime, validTime time.Time, thresholdKt int, uncertaintyKM float64, circles []model.Circle) {
	if len(*sets) == 0 || (*sets)[len(*sets)-1].StormID != storm {
		*sets = append(*sets, model.ZoneSet{StormID: storm, InitTime: initTime})
	}
	set := &(*sets)[len(*sets)-1]
	if len(set.Zones) == 0 || !set.Zones[len(set.Zones)-1].ValidTime.Equal(validTime) {
		set.Zones = append(set.Zones, model.ImpactZone{
			StormID:       storm,
			ValidTime:     validTime,
			UncertaintyKM: uncertaintyKM,
		})
	}
	z := &set.Zones[len(set.Zones)-1]
	z.Rings = append(z.Rings, model.Ring{ThresholdKt: thresholdKt, Circles: circles})
}

// helpers

func checkRunUpdated(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "id %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable, runID string) (*model.AnalysisRun, error) {
	var r model.AnalysisRun
	var paramsJSON string
	var totalsJSON, warningsJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Status, &r.Source, &r.InitTime, &paramsJSON,
		&totalsJSON, &warningsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrRunNotFound, "id %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.InitTime = r.InitTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if totalsJSON.Valid {
		r.Totals = &model.RunTotals{}
		if err := json.Unmarshal([]byte(totalsJSON.String), r.Totals); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal totals")
		}
	}
	if warningsJSON.Valid {
		if err := json.Unmarshal([]byte(warningsJSON.String), &r.Warnings); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal warnings")
		}
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}
