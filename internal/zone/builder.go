// Package zone converts trajectories into time-stamped impact geometries.
// A zone at one valid time is the union of the ensemble members' wind-radius
// circles widened by a lead-time uncertainty term, one ring per threshold.
package zone

import (
	"fmt"
	"sort"
	"time"

	"github.com/aeroshield/stormrisk-cli/internal/geo"
	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// Options tunes zone construction.
type Options struct {
	// GrowthKMPerHour widens every member circle by growth × lead hours.
	// Lead time is measured from the forecast init time.
	GrowthKMPerHour float64

	// SpreadScaling additionally widens circles by this fraction of the
	// inter-member spread (max member distance from the member centroid).
	// Zero leaves uncertainty purely lead-time driven.
	SpreadScaling float64
}

// Build computes the full zone sequence for one storm. Trajectories must all
// belong to stormID. Unusable timestamps are skipped and reported as
// warnings rather than failing the storm.
func Build(stormID string, trajs []model.Trajectory, initTime time.Time, opts Options) (model.ZoneSet, []string) {
	byTime := make(map[time.Time][]model.TrackSample)
	for _, t := range trajs {
		for _, s := range t.Samples {
			vt := s.ValidTime.UTC()
			byTime[vt] = append(byTime[vt], s)
		}
	}

	times := make([]time.Time, 0, len(byTime))
	for vt := range byTime {
		times = append(times, vt)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	set := model.ZoneSet{StormID: stormID, InitTime: initTime.UTC()}
	var warnings []string

	for _, vt := range times {
		members := byTime[vt]
		if len(members) == 0 {
			warnings = append(warnings, fmt.Sprintf("zone: %s@%s: no members reported, timestamp skipped",
				stormID, vt.Format(time.RFC3339)))
			continue
		}

		lead := vt.Sub(initTime).Hours()
		if lead < 0 {
			warnings = append(warnings, fmt.Sprintf("zone: %s@%s: valid time precedes init time, lead clamped to 0",
				stormID, vt.Format(time.RFC3339)))
			lead = 0
		}

		uncertainty := opts.GrowthKMPerHour * lead
		if opts.SpreadScaling > 0 && len(members) > 1 {
			uncertainty += opts.SpreadScaling * memberSpreadKM(members)
		}

		zone := model.ImpactZone{
			StormID:       stormID,
			ValidTime:     vt,
			UncertaintyKM: uncertainty,
		}
		for _, kt := range model.Thresholds {
			circles := thresholdCircles(members, kt, uncertainty)
			if len(circles) == 0 {
				continue
			}
			zone.Rings = append(zone.Rings, model.Ring{ThresholdKt: kt, Circles: circles})
		}

		set.Zones = append(set.Zones, zone)
	}

	return set, warnings
}

// thresholdCircles builds the member circles for one threshold. Radii are
// normalized outward first: a member reporting 64 kt winds to some radius
// necessarily has 50 kt and 34 kt winds at least that far out, so an inner
// radius exceeding an outer one widens the outer ring instead of breaking
// the nesting invariant. A member with no radius at this threshold simply
// contributes nothing.
func thresholdCircles(members []model.TrackSample, thresholdKt int, uncertaintyKM float64) []model.Circle {
	var circles []model.Circle
	for _, m := range members {
		r := effectiveRadius(m, thresholdKt)
		if r == nil {
			continue
		}
		circles = append(circles, model.Circle{
			Lat:      m.Lat,
			Lon:      m.Lon,
			RadiusKM: *r + uncertaintyKM,
		})
	}
	return circles
}

// effectiveRadius returns the outward-normalized radius for a threshold:
// the max of the member's radii at this threshold and every stronger one.
func effectiveRadius(s model.TrackSample, thresholdKt int) *float64 {
	var best *float64
	for _, kt := range model.Thresholds {
		if kt < thresholdKt {
			continue
		}
		if r := s.Radius(kt); r != nil {
			if best == nil || *r > *best {
				v := *r
				best = &v
			}
		}
	}
	return best
}

// memberSpreadKM measures ensemble position disagreement as the max member
// distance from the member centroid.
func memberSpreadKM(members []model.TrackSample) float64 {
	var cLat, cLon float64
	for _, m := range members {
		cLat += m.Lat
		cLon += m.Lon
	}
	cLat /= float64(len(members))
	cLon /= float64(len(members))

	var maxKM float64
	for _, m := range members {
		if d := geo.HaversineKM(cLat, cLon, m.Lat, m.Lon); d > maxKM {
			maxKM = d
		}
	}
	return maxKM
}
