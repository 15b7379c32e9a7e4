// Package match intersects airport locations against zone sequences,
// producing per-airport disruption intervals. Membership tests use
// great-circle distance; a point exactly on a ring boundary is inside.
package match

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aeroshield/stormrisk-cli/internal/geo"
	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// Disruptions walks a storm's zone sequence in time order for every airport.
// An airport enters disruption at the first zone containing it and stays in
// disruption until the first later zone where it sits outside every ring;
// if the sequence ends while still inside, the interval closes at the last
// zone's valid time. Re-entry after an exit opens a fresh interval. Zones
// with unusable geometry are skipped with a warning rather than failing the
// storm.
func Disruptions(set model.ZoneSet, airports []model.Airport) ([]model.DisruptionInterval, []string) {
	var warnings []string

	usable := make([]model.ImpactZone, 0, len(set.Zones))
	for _, z := range set.Zones {
		if reason := unusable(z); reason != "" {
			warnings = append(warnings, fmt.Sprintf("match: %s@%s: %s, zone skipped",
				z.StormID, z.ValidTime.Format(time.RFC3339), reason))
			continue
		}
		usable = append(usable, z)
	}

	var intervals []model.DisruptionInterval
	for _, ap := range airports {
		intervals = append(intervals, walk(usable, set.StormID, ap)...)
	}
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].AirportCode != intervals[j].AirportCode {
			return intervals[i].AirportCode < intervals[j].AirportCode
		}
		return intervals[i].StartTime.Before(intervals[j].StartTime)
	})
	return intervals, warnings
}

// walk runs the in/out state machine for one airport over one storm.
func walk(zones []model.ImpactZone, stormID string, ap model.Airport) []model.DisruptionInterval {
	var out []model.DisruptionInterval
	var cur *model.DisruptionInterval

	for _, z := range zones {
		kt := containingThreshold(z, ap.Lat, ap.Lon)

		switch {
		case cur == nil && kt > 0:
			cur = &model.DisruptionInterval{
				AirportCode:     ap.Code,
				StormID:         stormID,
				StartTime:       z.ValidTime,
				EndTime:         z.ValidTime,
				PeakThresholdKt: kt,
			}
		case cur != nil && kt > 0:
			cur.EndTime = z.ValidTime
			if kt > cur.PeakThresholdKt {
				cur.PeakThresholdKt = kt
			}
		case cur != nil && kt == 0:
			// First zone fully outside closes the interval at its time.
			cur.EndTime = z.ValidTime
			out = append(out, *cur)
			cur = nil
		}
	}

	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// containingThreshold returns the highest wind threshold whose ring contains
// the point, or 0 when the point is outside every ring. Rings nest, so the
// check runs strongest first.
func containingThreshold(z model.ImpactZone, lat, lon float64) int {
	for i := len(model.Thresholds) - 1; i >= 0; i-- {
		kt := model.Thresholds[i]
		ring := z.Ring(kt)
		if ring == nil {
			continue
		}
		for _, c := range ring.Circles {
			if geo.HaversineKM(lat, lon, c.Lat, c.Lon) <= c.RadiusKM {
				return kt
			}
		}
	}
	return 0
}

// unusable reports why a zone cannot be tested, or "" when it is fine.
func unusable(z model.ImpactZone) string {
	for _, ring := range z.Rings {
		for _, c := range ring.Circles {
			if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsNaN(c.RadiusKM) ||
				math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) || math.IsInf(c.RadiusKM, 0) {
				return "non-finite circle geometry"
			}
			if c.RadiusKM < 0 {
				return "negative circle radius"
			}
		}
	}
	return ""
}
