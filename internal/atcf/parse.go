package atcf

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/fetcher"
	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// BestMember labels best-track samples; a b-deck carries exactly one track.
const BestMember = "BEST"

// nmToKM converts ATCF nautical-mile radii to the kilometers the zone
// builder works in.
const nmToKM = 1.852

// b-deck column positions.
const (
	colBasin = iota
	colNumber
	colTime
	_ // technum, blank in best tracks
	colTech
	_ // tau, always 0 in best tracks
	colLat
	colLon
	colWind
	colPressure
	_ // development level
	colRadKt
	_ // wind code
	colRadNE
	colRadSE
	colRadSW
	colRadNW
)

// colName sits past a run of columns older files often truncate.
const colName = 27

// BestTrack is one parsed b-deck file.
type BestTrack struct {
	StormID  string
	Name     string
	InitTime time.Time
	Samples  []model.TrackSample
	Skipped  int
}

type bdeckLine struct {
	basin     string
	number    string
	validTime time.Time
	lat, lon  float64
	windKt    float64
	pressure  *float64
	radKt     int      // 0 when the line carries no radii
	radiusKM  *float64 // widest quadrant extent, nil when all quadrants are zero
	name      string
}

// ParseBDeck parses a best-track file. A fix spans up to three lines, one
// per wind radii threshold; they collapse into a single sample holding the
// widest quadrant extent per threshold, converted to kilometers. Unparseable
// lines are counted in Skipped and dropped.
func ParseBDeck(ctx context.Context, r io.Reader) (*BestTrack, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})

	bt := &BestTrack{}
	byTime := make(map[time.Time]*model.TrackSample)

	for row := range rowCh {
		ln, ok := parseLine(row)
		if !ok {
			bt.Skipped++
			continue
		}
		if bt.StormID == "" {
			bt.StormID = ln.basin + ln.number + strconv.Itoa(ln.validTime.Year())
		}
		if ln.name != "" {
			bt.Name = ln.name
		}

		// Threshold lines repeat the fix fields; the first line wins.
		s := byTime[ln.validTime]
		if s == nil {
			s = &model.TrackSample{
				StormID:            bt.StormID,
				Member:             BestMember,
				ValidTime:          ln.validTime,
				Lat:                ln.lat,
				Lon:                ln.lon,
				CentralPressureHPa: ln.pressure,
				MaxWindKt:          ln.windKt,
			}
			byTime[ln.validTime] = s
		}
		if ln.radiusKM != nil {
			switch ln.radKt {
			case 34:
				s.Radius34KM = ln.radiusKM
			case 50:
				s.Radius50KM = ln.radiusKM
			case 64:
				s.Radius64KM = ln.radiusKM
			}
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "atcf: stream")
	}
	if len(byTime) == 0 {
		return nil, eris.New("atcf: no best-track fixes")
	}

	times := make([]time.Time, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	bt.InitTime = times[0]
	bt.Samples = make([]model.TrackSample, 0, len(times))
	for _, t := range times {
		bt.Samples = append(bt.Samples, *byTime[t])
	}

	if bt.Skipped > 0 {
		zap.L().Warn("atcf: skipped malformed b-deck lines",
			zap.String("storm_id", bt.StormID),
			zap.Int("skipped", bt.Skipped),
			zap.Int("fixes", len(bt.Samples)))
	}
	return bt, nil
}

func parseLine(row []string) (bdeckLine, bool) {
	if len(row) <= colWind {
		return bdeckLine{}, false
	}
	if !strings.EqualFold(row[colTech], "BEST") {
		return bdeckLine{}, false
	}
	validTime, err := time.Parse("2006010215", row[colTime])
	if err != nil {
		return bdeckLine{}, false
	}
	lat, err := parseCoord(row[colLat], 'N', 'S')
	if err != nil {
		return bdeckLine{}, false
	}
	lon, err := parseCoord(row[colLon], 'E', 'W')
	if err != nil {
		return bdeckLine{}, false
	}
	wind, err := strconv.ParseFloat(row[colWind], 64)
	if err != nil || wind < 0 {
		return bdeckLine{}, false
	}

	ln := bdeckLine{
		basin:     strings.ToUpper(row[colBasin]),
		number:    row[colNumber],
		validTime: validTime,
		lat:       lat,
		lon:       lon,
		windKt:    wind,
	}
	if len(row) > colPressure {
		if v, err := strconv.ParseFloat(row[colPressure], 64); err == nil && v > 0 {
			ln.pressure = &v
		}
	}
	if len(row) > colRadKt {
		if kt, err := strconv.Atoi(row[colRadKt]); err == nil && kt > 0 {
			ln.radKt = kt
			ln.radiusKM = maxQuadrantKM(row)
		}
	}
	if len(row) > colName {
		if name := row[colName]; name != "" && !strings.EqualFold(name, "INVEST") {
			ln.name = name
		}
	}
	return ln, true
}

// maxQuadrantKM collapses one line's four quadrant radii (nautical miles)
// into the widest extent in kilometers. Zero radii mean the threshold wind
// has no extent, so an all-zero line yields nil rather than a zero-size zone.
func maxQuadrantKM(row []string) *float64 {
	best := 0.0
	for _, col := range [4]int{colRadNE, colRadSE, colRadSW, colRadNW} {
		if col >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil || v <= 0 {
			continue
		}
		if v > best {
			best = v
		}
	}
	if best == 0 {
		return nil
	}
	km := best * nmToKM
	return &km
}

// parseCoord converts an ATCF packed coordinate ("251N", "800W") to signed
// decimal degrees.
func parseCoord(s string, pos, neg byte) (float64, error) {
	if len(s) < 2 {
		return 0, eris.Errorf("atcf: bad coordinate %q", s)
	}
	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, eris.Errorf("atcf: bad coordinate %q", s)
	}
	v /= 10
	switch s[len(s)-1] {
	case pos:
		return v, nil
	case neg:
		return -v, nil
	}
	return 0, eris.Errorf("atcf: bad coordinate %q", s)
}
