// Package model defines the value types passed between pipeline stages.
// Every type here is immutable once produced: stages build new collections
// rather than mutating upstream ones.
package model

import (
	"fmt"
	"time"
)

// TrackSample is one forecast fix for one storm and ensemble member.
// Wind radii are nil when the source reported no value for that threshold;
// nil means "no data", never zero extent.
type TrackSample struct {
	StormID            string     `json:"storm_id"`
	Member             string     `json:"member"`
	ValidTime          time.Time  `json:"valid_time"`
	Lat                float64    `json:"lat"`
	Lon                float64    `json:"lon"`
	CentralPressureHPa *float64   `json:"central_pressure_hpa,omitempty"`
	MaxWindKt          float64    `json:"max_wind_kt"`
	Radius34KM         *float64   `json:"radius_34_km,omitempty"`
	Radius50KM         *float64   `json:"radius_50_km,omitempty"`
	Radius64KM         *float64   `json:"radius_64_km,omitempty"`
}

// Key returns the unique identity of a sample within a forecast batch.
func (s TrackSample) Key() string {
	return fmt.Sprintf("%s/%s/%s", s.StormID, s.Member, s.ValidTime.UTC().Format(time.RFC3339))
}

// Radius returns the sample's wind radius for a threshold in knots,
// or nil when the source reported none.
func (s TrackSample) Radius(thresholdKt int) *float64 {
	switch thresholdKt {
	case Threshold34Kt:
		return s.Radius34KM
	case Threshold50Kt:
		return s.Radius50KM
	case Threshold64Kt:
		return s.Radius64KM
	}
	return nil
}

// Trajectory is the ordered track of one ensemble member for one storm.
// Samples are strictly increasing in valid_time; no two samples share one.
type Trajectory struct {
	StormID string        `json:"storm_id"`
	Member  string        `json:"member"`
	Samples []TrackSample `json:"samples"`
}

// Span returns the first and last valid times of the trajectory.
func (t Trajectory) Span() (start, end time.Time) {
	if len(t.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return t.Samples[0].ValidTime, t.Samples[len(t.Samples)-1].ValidTime
}

// PeakWindKt returns the highest sustained wind across the trajectory.
func (t Trajectory) PeakWindKt() float64 {
	peak := 0.0
	for _, s := range t.Samples {
		if s.MaxWindKt > peak {
			peak = s.MaxWindKt
		}
	}
	return peak
}

// Saffir-Simpson bounds in knots.
const (
	tropicalStormMinKt = 34
	cat1MinKt          = 64
	cat2MinKt          = 83
	cat3MinKt          = 96
	cat4MinKt          = 113
	cat5MinKt          = 137
)

// Category returns the Saffir-Simpson label for a sustained wind in knots.
func Category(windKt float64) string {
	switch {
	case windKt >= cat5MinKt:
		return "cat5"
	case windKt >= cat4MinKt:
		return "cat4"
	case windKt >= cat3MinKt:
		return "cat3"
	case windKt >= cat2MinKt:
		return "cat2"
	case windKt >= cat1MinKt:
		return "cat1"
	case windKt >= tropicalStormMinKt:
		return "tropical_storm"
	default:
		return "tropical_depression"
	}
}
