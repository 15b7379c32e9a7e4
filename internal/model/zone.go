package model

import "time"

// Wind thresholds (knots) for which impact rings are built.
const (
	Threshold34Kt = 34
	Threshold50Kt = 50
	Threshold64Kt = 64
)

// Thresholds lists the ring thresholds in ascending order.
var Thresholds = []int{Threshold34Kt, Threshold50Kt, Threshold64Kt}

// Circle is a great-circle disc on the sphere: all points within RadiusKM
// of the center, boundary inclusive.
type Circle struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKM float64 `json:"radius_km"`
}

// Ring is the impact region for one wind threshold at one valid time: the
// union of the member circles that reported a radius for that threshold.
type Ring struct {
	ThresholdKt int      `json:"threshold_kt"`
	Circles     []Circle `json:"circles"`
}

// ImpactZone aggregates all ensemble members of one storm at one valid time.
// Rings are ordered by ascending threshold and nest: every 64 kt circle lies
// within the 50 kt ring, every 50 kt circle within the 34 kt ring.
type ImpactZone struct {
	StormID       string    `json:"storm_id"`
	ValidTime     time.Time `json:"valid_time"`
	UncertaintyKM float64   `json:"uncertainty_km"`
	Rings         []Ring    `json:"rings"`
}

// Ring returns the ring for a threshold, or nil when no member reported
// a radius for it at this valid time.
func (z ImpactZone) Ring(thresholdKt int) *Ring {
	for i := range z.Rings {
		if z.Rings[i].ThresholdKt == thresholdKt {
			return &z.Rings[i]
		}
	}
	return nil
}

// ZoneSet is the full zone sequence for one storm, ordered by valid time.
// It is read-only once built; the matcher walks it without copying.
type ZoneSet struct {
	StormID  string       `json:"storm_id"`
	InitTime time.Time    `json:"init_time"`
	Zones    []ImpactZone `json:"zones"`
}
