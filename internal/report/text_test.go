package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
)

// reportData is a two-storm run with self-consistent arithmetic:
// MIA 50,000 travelers x 0.02 x 0.60 = 600 claims x $500 = $300,000,
// FLL 20,000 -> 240 claims -> $120,000, SJU 35,000 -> 420 -> $210,000.
func reportData() Data {
	return Data{
		RunID:    "1f2e3d4c-0000-4000-8000-ba5eba11c0de",
		Source:   "weatherlab",
		InitTime: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
		Params:   model.DefaultParams(),
		Storms: []model.StormSummary{
			{StormID: "AL092025", Category: "cat4", PeakWindKt: 130, Members: 52, AirportsAffected: 2, ExpectedPayoutUSD: 420000},
			{StormID: "AL102025", Category: "tropical_storm", PeakWindKt: 55, Members: 5, AirportsAffected: 1, ExpectedPayoutUSD: 210000},
		},
		Totals: model.RunTotals{
			Storms:            2,
			AirportsAffected:  3,
			Records:           3,
			TravelersAtRisk:   105000,
			ExpectedClaims:    1260,
			ExpectedPayoutUSD: 630000,
		},
		Exposures: []model.ExposureRecord{
			{StormID: "AL092025", AirportCode: "FLL", Date: "2025-09-10", TravelersAtRisk: 20000, ExpectedClaims: 240, ExpectedPayoutUSD: 120000},
			{StormID: "AL092025", AirportCode: "MIA", Date: "2025-09-10", TravelersAtRisk: 50000, ExpectedClaims: 600, ExpectedPayoutUSD: 300000},
			{StormID: "AL102025", AirportCode: "SJU", Date: "2025-09-11", TravelersAtRisk: 35000, ExpectedClaims: 420, ExpectedPayoutUSD: 210000},
		},
		Disruptions: []model.DisruptionInterval{
			{StormID: "AL092025", AirportCode: "MIA", StartTime: time.Date(2025, 9, 10, 4, 0, 0, 0, time.UTC), EndTime: time.Date(2025, 9, 11, 4, 0, 0, 0, time.UTC), PeakThresholdKt: 64},
			{StormID: "AL092025", AirportCode: "FLL", StartTime: time.Date(2025, 9, 10, 6, 0, 0, 0, time.UTC), EndTime: time.Date(2025, 9, 10, 16, 0, 0, 0, time.UTC), PeakThresholdKt: 34},
			{StormID: "AL102025", AirportCode: "SJU", StartTime: time.Date(2025, 9, 11, 8, 0, 0, 0, time.UTC), EndTime: time.Date(2025, 9, 11, 20, 0, 0, 0, time.UTC), PeakThresholdKt: 50},
		},
		Warnings: []string{"track: AL092025/e03: dropped duplicate valid time 2025-09-10T12:00:00Z"},
	}
}

func TestText_Content(t *testing.T) {
	t.Parallel()

	out := Text(reportData())

	assert.Contains(t, out, "# Storm Exposure Report: 2025-09-10 00:00 UTC")
	assert.Contains(t, out, "Source: weatherlab")
	assert.Contains(t, out, "Run: 1f2e3d4c-0000-4000-8000-ba5eba11c0de")

	// Grouped thousands in the summary.
	assert.Contains(t, out, "- Storms analyzed: 2")
	assert.Contains(t, out, "- Travelers at risk: 105,000")
	assert.Contains(t, out, "- Expected claims: 1,260.0")
	assert.Contains(t, out, "- Expected payout: $630,000.00")

	assert.Contains(t, out, "- Minimum disruption: 3.0 h")
	assert.Contains(t, out, "- Penetration rate: 2.0%")
	assert.Contains(t, out, "- Claim rate: 60.0%")
	assert.Contains(t, out, "- Payout per claim: $500.00")

	assert.Contains(t, out, "### AL092025 (cat4, peak 130 kt)")
	assert.Contains(t, out, "- Ensemble members: 52")
	assert.Contains(t, out, "- MIA: 50,000 travelers, 600.0 claims, $300,000.00")
	assert.Contains(t, out, "- FLL: 20,000 travelers, 240.0 claims, $120,000.00")
	assert.Contains(t, out, "### AL102025 (TS, peak 55 kt)")

	assert.Contains(t, out, "## Warnings")
	assert.Contains(t, out, "dropped duplicate valid time")
}

func TestText_AirportsRankedByPayout(t *testing.T) {
	t.Parallel()

	out := Text(reportData())

	// MIA ($300,000) outranks FLL ($120,000) inside AL092025 even though the
	// records arrive FLL first.
	mia := strings.Index(out, "- MIA:")
	fll := strings.Index(out, "- FLL:")
	require.NotEqual(t, -1, mia)
	require.NotEqual(t, -1, fll)
	assert.Less(t, mia, fll)
}

func TestText_PayoutTieBreaksOnCode(t *testing.T) {
	t.Parallel()

	d := Data{
		Source:   "scenario:tie",
		InitTime: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
		Params:   model.DefaultParams(),
		Storms: []model.StormSummary{
			{StormID: "AL092025", Category: "Cat1", PeakWindKt: 70, Members: 1, AirportsAffected: 2, ExpectedPayoutUSD: 240000},
		},
		Exposures: []model.ExposureRecord{
			{StormID: "AL092025", AirportCode: "TPA", Date: "2025-09-10", TravelersAtRisk: 20000, ExpectedClaims: 240, ExpectedPayoutUSD: 120000},
			{StormID: "AL092025", AirportCode: "MCO", Date: "2025-09-10", TravelersAtRisk: 20000, ExpectedClaims: 240, ExpectedPayoutUSD: 120000},
		},
	}
	out := Text(d)

	mco := strings.Index(out, "- MCO:")
	tpa := strings.Index(out, "- TPA:")
	require.NotEqual(t, -1, mco)
	require.NotEqual(t, -1, tpa)
	assert.Less(t, mco, tpa)
}

func TestText_UnsavedRunHasNoRunLine(t *testing.T) {
	t.Parallel()

	d := reportData()
	d.RunID = ""
	out := Text(d)
	assert.NotContains(t, out, "Run:")
}

func TestText_Empty(t *testing.T) {
	t.Parallel()

	out := Text(Data{
		Source:   "scenario:quiet",
		InitTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Params:   model.DefaultParams(),
	})

	assert.Contains(t, out, "No storms analyzed.")
	assert.Contains(t, out, "- Expected payout: $0.00")
	assert.NotContains(t, out, "## Warnings")
}

func TestText_StormWithoutExposures(t *testing.T) {
	t.Parallel()

	d := Data{
		Source:   "atcf",
		InitTime: time.Date(2024, 9, 23, 12, 0, 0, 0, time.UTC),
		Params:   model.DefaultParams(),
		Storms: []model.StormSummary{
			{StormID: "AL092024", Category: "tropical_storm", PeakWindKt: 45, Members: 1},
		},
	}
	out := Text(d)
	assert.Contains(t, out, "### AL092024 (TS, peak 45 kt)")
	assert.Contains(t, out, "- No airports affected.")
}

func TestText_Deterministic(t *testing.T) {
	t.Parallel()

	first := Text(reportData())
	second := Text(reportData())
	assert.Equal(t, first, second)
}

func TestRollupAirports_SumsAcrossDates(t *testing.T) {
	t.Parallel()

	records := []model.ExposureRecord{
		{StormID: "AL092025", AirportCode: "MIA", Date: "2025-09-10", TravelersAtRisk: 30000, ExpectedClaims: 360, ExpectedPayoutUSD: 180000},
		{StormID: "AL092025", AirportCode: "MIA", Date: "2025-09-11", TravelersAtRisk: 20000, ExpectedClaims: 240, ExpectedPayoutUSD: 120000},
		{StormID: "AL102025", AirportCode: "MIA", Date: "2025-09-10", TravelersAtRisk: 99999, ExpectedClaims: 1, ExpectedPayoutUSD: 1},
	}

	got := rollupAirports(records, "AL092025")
	require.Len(t, got, 1)
	// Two MIA days merge; the other storm's record does not leak in.
	assert.Equal(t, 50000.0, got[0].travelers)
	assert.Equal(t, 600.0, got[0].claims)
	assert.Equal(t, 300000.0, got[0].payout)
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	res := &pipeline.Result{
		Source:   "weatherlab",
		InitTime: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
		Params:   model.DefaultParams(),
		Storms: []model.StormSummary{
			{StormID: "AL092025", Category: "cat4", PeakWindKt: 130},
		},
		Totals:   model.RunTotals{Storms: 1},
		Warnings: []string{"one"},
	}

	d := FromResult(res)
	assert.Empty(t, d.RunID)
	assert.Equal(t, "weatherlab", d.Source)
	assert.Equal(t, res.Storms, d.Storms)
	assert.Equal(t, res.Totals, d.Totals)
	assert.Equal(t, res.Warnings, d.Warnings)
}
