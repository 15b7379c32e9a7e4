package model

import "time"

// DisruptionInterval is one maximal contiguous window during which an
// airport sits inside a storm's 34 kt impact zone. A storm that loops back
// over the same airport produces a second interval, never a merged one.
type DisruptionInterval struct {
	AirportCode     string    `json:"airport_code"`
	StormID         string    `json:"storm_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	PeakThresholdKt int       `json:"peak_threshold_kt"`
}

// Duration returns the interval length.
func (d DisruptionInterval) Duration() time.Duration {
	return d.EndTime.Sub(d.StartTime)
}

// TravelerDay is one local civil day's share of a disruption interval.
// OverlapFraction is the share of the interval falling on that day, so the
// fractions for one interval sum to 1. TravelersAtRisk is the airport's
// baseline prorated by that fraction.
type TravelerDay struct {
	AirportCode     string  `json:"airport_code"`
	StormID         string  `json:"storm_id"`
	Date            string  `json:"date"`
	OverlapFraction float64 `json:"overlap_fraction"`
	TravelersAtRisk float64 `json:"travelers_at_risk"`
}

// ExposureRecord is the terminal pipeline output: one row per
// (airport, storm, local civil date). Date is formatted 2006-01-02 in the
// airport's local zone.
type ExposureRecord struct {
	AirportCode       string  `json:"airport_code"`
	StormID           string  `json:"storm_id"`
	Date              string  `json:"date"`
	TravelersAtRisk   float64 `json:"travelers_at_risk"`
	ExpectedClaims    float64 `json:"expected_claims"`
	ExpectedPayoutUSD float64 `json:"expected_payout_usd"`
}
