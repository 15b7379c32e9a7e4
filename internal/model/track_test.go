package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategoryBoundaries(t *testing.T) {
	cases := []struct {
		windKt float64
		want   string
	}{
		{20, "tropical_depression"},
		{33.9, "tropical_depression"},
		{34, "tropical_storm"},
		{63.9, "tropical_storm"},
		{64, "cat1"},
		{83, "cat2"},
		{96, "cat3"},
		{113, "cat4"},
		{136.9, "cat4"},
		{137, "cat5"},
		{165, "cat5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Category(tc.windKt), "wind %.1f kt", tc.windKt)
	}
}

func TestTrackSampleKey(t *testing.T) {
	s := TrackSample{
		StormID:   "AL092025",
		Member:    "mean",
		ValidTime: time.Date(2025, 9, 10, 6, 0, 0, 0, time.FixedZone("EDT", -4*3600)),
	}
	// Key normalizes to UTC so the same fix hashes identically regardless
	// of the zone the parser attached.
	assert.Equal(t, "AL092025/mean/2025-09-10T10:00:00Z", s.Key())
}

func TestTrackSampleRadius(t *testing.T) {
	r34 := 200.0
	s := TrackSample{Radius34KM: &r34}

	assert.Equal(t, &r34, s.Radius(Threshold34Kt))
	assert.Nil(t, s.Radius(Threshold50Kt))
	assert.Nil(t, s.Radius(Threshold64Kt))
	assert.Nil(t, s.Radius(40))
}

func TestTrajectorySpanAndPeak(t *testing.T) {
	t0 := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	traj := Trajectory{
		StormID: "AL092025",
		Member:  "0",
		Samples: []TrackSample{
			{ValidTime: t0, MaxWindKt: 60},
			{ValidTime: t0.Add(6 * time.Hour), MaxWindKt: 85},
			{ValidTime: t0.Add(12 * time.Hour), MaxWindKt: 75},
		},
	}

	start, end := traj.Span()
	assert.True(t, start.Equal(t0))
	assert.True(t, end.Equal(t0.Add(12*time.Hour)))
	assert.Equal(t, 85.0, traj.PeakWindKt())

	start, end = Trajectory{}.Span()
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}

func TestDisruptionIntervalDuration(t *testing.T) {
	d := DisruptionInterval{
		StartTime: time.Date(2025, 9, 10, 4, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 9, 11, 4, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 24*time.Hour, d.Duration())
}

func TestImpactZoneRing(t *testing.T) {
	z := ImpactZone{
		Rings: []Ring{
			{ThresholdKt: Threshold34Kt},
			{ThresholdKt: Threshold64Kt},
		},
	}

	assert.NotNil(t, z.Ring(Threshold34Kt))
	assert.Equal(t, Threshold64Kt, z.Ring(Threshold64Kt).ThresholdKt)
	assert.Nil(t, z.Ring(Threshold50Kt))
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 4.0, p.UncertaintyGrowthKMPerHour)
	assert.Equal(t, 3.0, p.MinDisruptionHours)
	assert.Equal(t, 0.02, p.PenetrationRate)
	assert.Equal(t, 0.60, p.ClaimRate)
	assert.Equal(t, 500.0, p.PayoutPerClaimUSD)
}
