// Package airports holds the reference table of airports the book of
// business covers. A default Atlantic-basin table ships embedded in the
// binary; operators can override it with a CSV or XLSX import.
package airports

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aeroshield/stormrisk-cli/internal/fetcher"
	"github.com/aeroshield/stormrisk-cli/internal/model"
)

//go:embed airports.csv
var defaultCSV []byte

var loadDefault = sync.OnceValues(func() ([]model.Airport, error) {
	return LoadCSV(context.Background(), bytes.NewReader(defaultCSV))
})

// Default returns the embedded airport table, parsed once per process.
func Default() ([]model.Airport, error) {
	list, err := loadDefault()
	if err != nil {
		return nil, eris.Wrap(err, "airports: embedded table")
	}
	out := make([]model.Airport, len(list))
	copy(out, list)
	return out, nil
}

// Find returns the airport with the given IATA code.
func Find(list []model.Airport, code string) (model.Airport, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, ap := range list {
		if ap.Code == code {
			return ap, true
		}
	}
	return model.Airport{}, false
}

// ByRegion filters the table to one region.
func ByRegion(list []model.Airport, region model.Region) []model.Airport {
	var out []model.Airport
	for _, ap := range list {
		if ap.Region == region {
			out = append(out, ap)
		}
	}
	return out
}

// LoadCSV parses an airport table from CSV. The header row names the
// columns; code, name, lat, lon, baseline_daily_travelers and timezone are
// required, region is optional and classified from the coordinates when
// absent or blank. Output is sorted by code.
func LoadCSV(ctx context.Context, r io.Reader) ([]model.Airport, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var cols map[string]int
	var rows [][]string
	for row := range rowCh {
		if cols == nil {
			select {
			case header := <-headerCh:
				var err error
				if cols, err = columnIndex(header); err != nil {
					return nil, err
				}
			default:
				return nil, eris.New("airports: csv has no header row")
			}
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "airports: read csv")
	}
	if cols == nil {
		return nil, eris.New("airports: csv has no data rows")
	}

	return buildTable(rows, cols)
}

// LoadXLSX parses an airport table from the first sheet of a workbook, same
// columns as LoadCSV.
func LoadXLSX(path string) ([]model.Airport, error) {
	headerCh := make(chan []string, 1)
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
	if err != nil {
		return nil, eris.Wrapf(err, "airports: read %s", path)
	}

	var cols map[string]int
	select {
	case header := <-headerCh:
		if cols, err = columnIndex(header); err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("airports: %s has no header row", path)
	}

	return buildTable(rows, cols)
}

// requiredColumns must all appear in an import header.
var requiredColumns = []string{"code", "name", "lat", "lon", "baseline_daily_travelers", "timezone"}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, eris.Errorf("airports: header missing column %q", name)
		}
	}
	return cols, nil
}

func buildTable(rows [][]string, cols map[string]int) ([]model.Airport, error) {
	seen := make(map[string]bool, len(rows))
	out := make([]model.Airport, 0, len(rows))

	for i, row := range rows {
		ap, err := parseRow(row, cols)
		if err != nil {
			return nil, eris.Wrapf(err, "airports: row %d", i+2)
		}
		if seen[ap.Code] {
			return nil, eris.Errorf("airports: row %d: duplicate code %s", i+2, ap.Code)
		}
		seen[ap.Code] = true
		out = append(out, ap)
	}

	if len(out) == 0 {
		return nil, eris.New("airports: table is empty")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func parseRow(row []string, cols map[string]int) (model.Airport, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	ap := model.Airport{
		Code:     strings.ToUpper(field("code")),
		Name:     field("name"),
		Timezone: field("timezone"),
	}
	if len(ap.Code) != 3 {
		return ap, eris.Errorf("code %q is not a 3-letter IATA code", field("code"))
	}
	if ap.Name == "" {
		return ap, eris.New("name is empty")
	}

	var err error
	if ap.Lat, err = strconv.ParseFloat(field("lat"), 64); err != nil {
		return ap, eris.Errorf("lat %q is not a number", field("lat"))
	}
	if ap.Lon, err = strconv.ParseFloat(field("lon"), 64); err != nil {
		return ap, eris.Errorf("lon %q is not a number", field("lon"))
	}
	if ap.Lat < -90 || ap.Lat > 90 || ap.Lon < -180 || ap.Lon > 180 {
		return ap, eris.Errorf("coordinates (%g, %g) out of range", ap.Lat, ap.Lon)
	}

	if ap.BaselineDailyTravelers, err = strconv.Atoi(field("baseline_daily_travelers")); err != nil {
		return ap, eris.Errorf("baseline %q is not an integer", field("baseline_daily_travelers"))
	}
	if ap.BaselineDailyTravelers < 0 {
		return ap, eris.Errorf("baseline %d is negative", ap.BaselineDailyTravelers)
	}

	if _, err := time.LoadLocation(ap.Timezone); err != nil {
		return ap, eris.Errorf("timezone %q is not a valid IANA name", ap.Timezone)
	}

	if region := field("region"); region != "" {
		ap.Region = model.Region(strings.ToLower(region))
		if !knownRegions[ap.Region] {
			return ap, eris.Errorf("region %q is not recognized", region)
		}
	} else {
		ap.Region = ClassifyRegion(ap.Lat, ap.Lon)
	}
	return ap, nil
}

var knownRegions = map[model.Region]bool{
	model.RegionCaribbean: true,
	model.RegionFlorida:   true,
	model.RegionGulfCoast: true,
	model.RegionEastCoast: true,
	model.RegionNortheast: true,
	model.RegionOther:     true,
}
