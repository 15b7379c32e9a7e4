// Package traveler converts disruption intervals into per-day
// traveler-at-risk figures, prorated against each airport's local civil day.
package traveler

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// Aggregate splits every interval across the local calendar days it touches.
// Intervals shorter than minDisruption contribute nothing: they would not
// trigger the covered delay threshold. Rows landing on the same
// (airport, storm, date) are merged additively, and the result is sorted by
// (storm, airport, date) so downstream output is deterministic.
func Aggregate(intervals []model.DisruptionInterval, airports []model.Airport, minDisruption time.Duration) ([]model.TravelerDay, error) {
	byCode := make(map[string]model.Airport, len(airports))
	for _, ap := range airports {
		byCode[ap.Code] = ap
	}
	locs := make(map[string]*time.Location)

	type dayKey struct {
		storm, airport, date string
	}
	merged := make(map[dayKey]model.TravelerDay)

	for _, iv := range intervals {
		ap, ok := byCode[iv.AirportCode]
		if !ok {
			return nil, eris.Errorf("traveler: interval references unknown airport %q", iv.AirportCode)
		}

		total := iv.Duration()
		if total < minDisruption || total <= 0 {
			continue
		}

		loc, ok := locs[ap.Timezone]
		if !ok {
			var err error
			loc, err = time.LoadLocation(ap.Timezone)
			if err != nil {
				return nil, eris.Wrapf(err, "traveler: airport %s timezone %q", ap.Code, ap.Timezone)
			}
			locs[ap.Timezone] = loc
		}

		start := iv.StartTime.In(loc)
		end := iv.EndTime.In(loc)

		// Walk local midnights; AddDate keeps day boundaries correct
		// across DST transitions.
		dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		for dayStart.Before(end) {
			dayEnd := dayStart.AddDate(0, 0, 1)

			ovStart := start
			if dayStart.After(ovStart) {
				ovStart = dayStart
			}
			ovEnd := end
			if dayEnd.Before(ovEnd) {
				ovEnd = dayEnd
			}

			if overlap := ovEnd.Sub(ovStart); overlap > 0 {
				frac := overlap.Hours() / total.Hours()
				if frac > 1 {
					frac = 1
				}
				k := dayKey{iv.StormID, ap.Code, dayStart.Format("2006-01-02")}
				d := merged[k]
				d.StormID = iv.StormID
				d.AirportCode = ap.Code
				d.Date = k.date
				d.OverlapFraction += frac
				d.TravelersAtRisk += float64(ap.BaselineDailyTravelers) * frac
				merged[k] = d
			}

			dayStart = dayEnd
		}
	}

	out := make([]model.TravelerDay, 0, len(merged))
	for _, d := range merged {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StormID != out[j].StormID {
			return out[i].StormID < out[j].StormID
		}
		if out[i].AirportCode != out[j].AirportCode {
			return out[i].AirportCode < out[j].AirportCode
		}
		return out[i].Date < out[j].Date
	})
	return out, nil
}
