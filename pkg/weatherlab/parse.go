package weatherlab

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/fetcher"
)

// MeanSample is the sample value the feed uses for the ensemble mean track.
const MeanSample = -1

// TrackRow is one forecast fix from a paired-track file. Sample follows the
// published convention: -1 is the ensemble mean, 0..N are perturbed members.
// Pressure and radii are nil when the file carried no value; a nil radius
// means "no data", never zero extent.
type TrackRow struct {
	StormID         string
	Sample          int
	InitTime        time.Time
	ValidTime       time.Time
	LeadHours       float64
	Lat             float64
	Lon             float64
	MaxWindKt       float64
	PressureHPa     *float64
	RadiusMaxWindKM *float64
	Radius34KM      *float64
	Radius50KM      *float64
	Radius64KM      *float64
}

// Forecast is one parsed paired-track file: every ensemble track row
// published for one model initialization.
type Forecast struct {
	Model    string
	InitTime time.Time
	Rows     []TrackRow
	Skipped  int
}

// Storms returns the distinct storm IDs in the forecast, sorted.
func (f *Forecast) Storms() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range f.Rows {
		if _, ok := seen[r.StormID]; !ok {
			seen[r.StormID] = struct{}{}
			ids = append(ids, r.StormID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Columns a file must carry. Research exports sometimes omit init_time,
// sample, and lead_time; those are derived instead.
var requiredColumns = []string{
	"track_id",
	"valid_time",
	"lat",
	"lon",
	"maximum_sustained_wind_speed_knots",
}

// timeLayouts accepted for init_time and valid_time cells. Published files
// use the space-separated form.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

type headerIndex map[string]int

func buildHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, name := range header {
		idx[strings.ToLower(name)] = i
	}
	return idx
}

func (idx headerIndex) require() error {
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("weatherlab: header missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// cell returns the row's value for a named column. Rows shorter than the
// header report missing for the truncated columns.
func (idx headerIndex) cell(row []string, col string) (string, bool) {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("weatherlab: unparseable time %q", s)
}

// reqFloat parses a required cell. Blank, NaN, and garbage all invalidate
// the row.
func reqFloat(idx headerIndex, row []string, col string) (float64, bool) {
	cell, ok := idx.cell(row, col)
	if !ok || cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// optFloat parses an optional cell. Blank, NaN, and unparseable cells all
// mean "no data"; the row survives.
func optFloat(idx headerIndex, row []string, col string) *float64 {
	cell, ok := idx.cell(row, col)
	if !ok || cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return nil
	}
	return &v
}

// quadrantMax collapses the four per-quadrant wind radii for one threshold
// into a single scalar: the maximum extent across quadrants. All-missing
// becomes nil so downstream zone building keeps "no data" distinct from
// zero. Negative values are sentinel fills and count as missing.
func quadrantMax(idx headerIndex, row []string, thresholdKt int) *float64 {
	var best *float64
	for _, q := range [4]string{"ne", "se", "sw", "nw"} {
		col := fmt.Sprintf("radius_%d_knot_winds_%s_km", thresholdKt, q)
		v := optFloat(idx, row, col)
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			best = v
		}
	}
	return best
}

func parseRow(idx headerIndex, row []string) (TrackRow, bool) {
	stormID, _ := idx.cell(row, "track_id")
	if stormID == "" {
		return TrackRow{}, false
	}
	validRaw, _ := idx.cell(row, "valid_time")
	validTime, err := parseTime(validRaw)
	if err != nil {
		return TrackRow{}, false
	}
	lat, ok := reqFloat(idx, row, "lat")
	if !ok {
		return TrackRow{}, false
	}
	lon, ok := reqFloat(idx, row, "lon")
	if !ok {
		return TrackRow{}, false
	}
	wind, ok := reqFloat(idx, row, "maximum_sustained_wind_speed_knots")
	if !ok {
		return TrackRow{}, false
	}

	tr := TrackRow{
		StormID:         stormID,
		Sample:          MeanSample,
		ValidTime:       validTime,
		LeadHours:       math.NaN(), // resolved after the init_time fallback
		Lat:             lat,
		Lon:             lon,
		MaxWindKt:       wind,
		PressureHPa:     optFloat(idx, row, "minimum_sea_level_pressure_hpa"),
		RadiusMaxWindKM: optFloat(idx, row, "radius_of_maximum_winds_km"),
		Radius34KM:      quadrantMax(idx, row, 34),
		Radius50KM:      quadrantMax(idx, row, 50),
		Radius64KM:      quadrantMax(idx, row, 64),
	}
	// sample sometimes arrives float-formatted ("3.0").
	if cell, ok := idx.cell(row, "sample"); ok && cell != "" {
		if v, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(v) {
			tr.Sample = int(v)
		}
	}
	if cell, ok := idx.cell(row, "init_time"); ok && cell != "" {
		if t, err := parseTime(cell); err == nil {
			tr.InitTime = t
		}
	}
	if cell, ok := idx.cell(row, "lead_time"); ok && cell != "" {
		if v, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(v) {
			tr.LeadHours = v
		}
	}
	return tr, true
}

// ParseForecast parses a paired-track CSV stream into a Forecast. Rows
// missing a required field are counted in Skipped and dropped, never
// silently zeroed. Files that omit init_time get the earliest valid time as
// initialization, and missing lead_time is recomputed from it. InitTime is
// zero when the file has a header but no data rows.
func ParseForecast(ctx context.Context, r io.Reader) (*Forecast, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	f := &Forecast{}
	var idx headerIndex
	for row := range rowCh {
		if idx == nil {
			// The header was sent before the first data row.
			idx = buildHeaderIndex(<-headerCh)
			if err := idx.require(); err != nil {
				return nil, err
			}
		}
		tr, ok := parseRow(idx, row)
		if !ok {
			f.Skipped++
			continue
		}
		f.Rows = append(f.Rows, tr)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "weatherlab: stream")
	}
	if idx == nil {
		select {
		case header := <-headerCh:
			idx = buildHeaderIndex(header)
			if err := idx.require(); err != nil {
				return nil, err
			}
		default:
			return nil, eris.New("weatherlab: empty file")
		}
	}

	var minValid, minInit time.Time
	for _, tr := range f.Rows {
		if minValid.IsZero() || tr.ValidTime.Before(minValid) {
			minValid = tr.ValidTime
		}
		if !tr.InitTime.IsZero() && (minInit.IsZero() || tr.InitTime.Before(minInit)) {
			minInit = tr.InitTime
		}
	}
	for i := range f.Rows {
		tr := &f.Rows[i]
		if tr.InitTime.IsZero() {
			tr.InitTime = minValid
		}
		if math.IsNaN(tr.LeadHours) {
			tr.LeadHours = tr.ValidTime.Sub(tr.InitTime).Hours()
		}
	}
	if !minInit.IsZero() {
		f.InitTime = minInit
	} else {
		f.InitTime = minValid
	}

	if f.Skipped > 0 {
		zap.L().Warn("weatherlab: skipped malformed rows",
			zap.Int("skipped", f.Skipped),
			zap.Int("parsed", len(f.Rows)),
		)
	}
	return f, nil
}
