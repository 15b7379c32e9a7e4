package traveler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

var testAirports = []model.Airport{
	{Code: "MIA", Name: "Miami International", Lat: 25.7959, Lon: -80.2870,
		BaselineDailyTravelers: 50000, Timezone: "America/New_York", Region: model.RegionFlorida},
	{Code: "SJU", Name: "San Juan Luis Munoz Marin", Lat: 18.4394, Lon: -66.0018,
		BaselineDailyTravelers: 25000, Timezone: "America/Puerto_Rico", Region: model.RegionCaribbean},
}

func interval(code string, start, end time.Time) model.DisruptionInterval {
	return model.DisruptionInterval{
		AirportCode:     code,
		StormID:         "AL092025",
		StartTime:       start,
		EndTime:         end,
		PeakThresholdKt: model.Threshold34Kt,
	}
}

func TestAggregateSingleDayWithinLocalDay(t *testing.T) {
	// 04:00Z to 2025-09-11 04:00Z is midnight-to-midnight in New York
	// during EDT, so the whole interval lands on one local date.
	start := time.Date(2025, 9, 10, 4, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 11, 4, 0, 0, 0, time.UTC)

	days, err := Aggregate([]model.DisruptionInterval{interval("MIA", start, end)}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	require.Len(t, days, 1)

	d := days[0]
	assert.Equal(t, "MIA", d.AirportCode)
	assert.Equal(t, "2025-09-10", d.Date)
	assert.InDelta(t, 1.0, d.OverlapFraction, 1e-9)
	assert.InDelta(t, 50000, d.TravelersAtRisk, 1e-6)
}

func TestAggregateSplitsAcrossLocalMidnight(t *testing.T) {
	// 18:00 to 06:00 New York time: 6h on the first local day, 6h on the
	// second, each half the interval.
	start := time.Date(2025, 9, 10, 22, 0, 0, 0, time.UTC) // 18:00 EDT
	end := time.Date(2025, 9, 11, 10, 0, 0, 0, time.UTC)   // 06:00 EDT next day

	days, err := Aggregate([]model.DisruptionInterval{interval("MIA", start, end)}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2025-09-10", days[0].Date)
	assert.Equal(t, "2025-09-11", days[1].Date)
	assert.InDelta(t, 0.5, days[0].OverlapFraction, 1e-9)
	assert.InDelta(t, 0.5, days[1].OverlapFraction, 1e-9)
	assert.InDelta(t, 25000, days[0].TravelersAtRisk, 1e-6)
	assert.InDelta(t, 25000, days[1].TravelersAtRisk, 1e-6)
}

func TestAggregateFractionsSumToOne(t *testing.T) {
	// An awkward 53h interval spanning three local days: fractions still
	// total exactly 1, whatever the split.
	start := time.Date(2025, 9, 10, 7, 30, 0, 0, time.UTC)
	end := start.Add(53 * time.Hour)

	days, err := Aggregate([]model.DisruptionInterval{interval("SJU", start, end)}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, days)

	var sum float64
	for _, d := range days {
		sum += d.OverlapFraction
		assert.Greater(t, d.OverlapFraction, 0.0)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestAggregateDropsShortIntervals(t *testing.T) {
	start := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	days, err := Aggregate([]model.DisruptionInterval{
		interval("MIA", start, start.Add(2*time.Hour)),
	}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, days, "interval under the minimum produces no rows")

	// Exactly at the minimum counts.
	days, err = Aggregate([]model.DisruptionInterval{
		interval("MIA", start, start.Add(3*time.Hour)),
	}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	assert.Len(t, days, 1)
}

func TestAggregateZeroLengthInterval(t *testing.T) {
	// A single-zone hit has equal start and end. Even with no minimum it
	// must not divide by zero or emit rows.
	start := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	days, err := Aggregate([]model.DisruptionInterval{
		interval("MIA", start, start),
	}, testAirports, 0)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestAggregateMergesSameDayIntervals(t *testing.T) {
	// Two separate 6h intervals on the same local date add up: each is
	// fully on 2025-09-10, so each contributes its whole baseline share.
	morning := interval("MIA",
		time.Date(2025, 9, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 10, 16, 0, 0, 0, time.UTC))
	evening := interval("MIA",
		time.Date(2025, 9, 10, 20, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 11, 2, 0, 0, 0, time.UTC)) // ends 22:00 EDT

	days, err := Aggregate([]model.DisruptionInterval{morning, evening}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	require.Len(t, days, 1)

	assert.Equal(t, "2025-09-10", days[0].Date)
	assert.InDelta(t, 2.0, days[0].OverlapFraction, 1e-9)
	assert.InDelta(t, 100000, days[0].TravelersAtRisk, 1e-6)
}

func TestAggregateUnknownAirport(t *testing.T) {
	start := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)

	_, err := Aggregate([]model.DisruptionInterval{
		interval("XXX", start, start.Add(12*time.Hour)),
	}, testAirports, 3*time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown airport")
}

func TestAggregateSortedOutput(t *testing.T) {
	start := time.Date(2025, 9, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)

	sju := interval("SJU", start, end)
	miaLate := model.DisruptionInterval{
		AirportCode: "MIA", StormID: "AL992025",
		StartTime: start, EndTime: end, PeakThresholdKt: model.Threshold34Kt,
	}
	mia := interval("MIA", start, end)

	days, err := Aggregate([]model.DisruptionInterval{sju, miaLate, mia}, testAirports, 3*time.Hour)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, "AL092025", days[0].StormID)
	assert.Equal(t, "MIA", days[0].AirportCode)
	assert.Equal(t, "AL092025", days[1].StormID)
	assert.Equal(t, "SJU", days[1].AirportCode)
	assert.Equal(t, "AL992025", days[2].StormID)
}
