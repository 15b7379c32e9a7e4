// Package insurance applies policy parameters to traveler-at-risk figures.
// The estimator is a pure function of its inputs; parameters are validated
// before any pipeline work starts and estimator errors are never recovered.
package insurance

import (
	"fmt"
	"math"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// ConfigurationError reports a business parameter outside its sane range.
// It fails the run before the pipeline touches any data.
type ConfigurationError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s=%g %s", e.Param, e.Value, e.Reason)
}

// ValidateParams checks every analysis parameter. Rates are fractions in
// [0, 1]; distances, durations and payouts must be non-negative and finite.
func ValidateParams(p model.AnalysisParams) error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"penetration_rate", p.PenetrationRate, 0, 1},
		{"claim_rate", p.ClaimRate, 0, 1},
		{"payout_per_claim_usd", p.PayoutPerClaimUSD, 0, math.MaxFloat64},
		{"min_disruption_hours", p.MinDisruptionHours, 0, math.MaxFloat64},
		{"uncertainty_growth_km_per_hour", p.UncertaintyGrowthKMPerHour, 0, math.MaxFloat64},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &ConfigurationError{Param: c.name, Value: c.value, Reason: "is not finite"}
		}
		if c.value < c.min {
			return &ConfigurationError{Param: c.name, Value: c.value, Reason: fmt.Sprintf("below minimum %g", c.min)}
		}
		if c.value > c.max {
			return &ConfigurationError{Param: c.name, Value: c.value, Reason: fmt.Sprintf("above maximum %g", c.max)}
		}
	}
	return nil
}

// Estimate converts traveler-days into exposure records:
//
//	coverage_holders    = travelers_at_risk × penetration_rate
//	expected_claims     = coverage_holders × claim_rate
//	expected_payout_usd = expected_claims × payout_per_claim
//
// The computation is linear in travelers_at_risk and carries no hidden
// state. Input order is preserved.
func Estimate(days []model.TravelerDay, p model.AnalysisParams) ([]model.ExposureRecord, error) {
	if err := ValidateParams(p); err != nil {
		return nil, err
	}

	records := make([]model.ExposureRecord, 0, len(days))
	for _, d := range days {
		holders := d.TravelersAtRisk * p.PenetrationRate
		claims := holders * p.ClaimRate
		payout := claims * p.PayoutPerClaimUSD

		records = append(records, model.ExposureRecord{
			AirportCode:       d.AirportCode,
			StormID:           d.StormID,
			Date:              d.Date,
			TravelersAtRisk:   d.TravelersAtRisk,
			ExpectedClaims:    claims,
			ExpectedPayoutUSD: payout,
		})
	}
	return records, nil
}

// Totals sums exposure records. Summation is associative and commutative,
// so any grouping of the same records reports the same totals up to
// floating-point rounding.
func Totals(records []model.ExposureRecord) model.RunTotals {
	t := model.RunTotals{Records: len(records)}

	storms := map[string]bool{}
	airports := map[string]bool{}
	for _, r := range records {
		storms[r.StormID] = true
		airports[r.AirportCode] = true
		t.TravelersAtRisk += r.TravelersAtRisk
		t.ExpectedClaims += r.ExpectedClaims
		t.ExpectedPayoutUSD += r.ExpectedPayoutUSD
	}
	t.Storms = len(storms)
	t.AirportsAffected = len(airports)
	return t
}
