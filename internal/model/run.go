package model

import "time"

// AnalysisParams are the tunable business parameters for one run. They are
// always passed explicitly; no stage hard-codes them. Validation happens
// before the pipeline starts (see insurance.ValidateParams).
type AnalysisParams struct {
	UncertaintyGrowthKMPerHour float64 `json:"uncertainty_growth_km_per_hour" yaml:"uncertainty_growth_km_per_hour" mapstructure:"uncertainty_growth_km_per_hour"`
	MinDisruptionHours         float64 `json:"min_disruption_hours" yaml:"min_disruption_hours" mapstructure:"min_disruption_hours"`
	PenetrationRate            float64 `json:"penetration_rate" yaml:"penetration_rate" mapstructure:"penetration_rate"`
	ClaimRate                  float64 `json:"claim_rate" yaml:"claim_rate" mapstructure:"claim_rate"`
	PayoutPerClaimUSD          float64 `json:"payout_per_claim_usd" yaml:"payout_per_claim_usd" mapstructure:"payout_per_claim_usd"`
}

// DefaultParams returns the book-of-business defaults.
func DefaultParams() AnalysisParams {
	return AnalysisParams{
		UncertaintyGrowthKMPerHour: 4,
		MinDisruptionHours:         3,
		PenetrationRate:            0.02,
		ClaimRate:                  0.60,
		PayoutPerClaimUSD:          500,
	}
}

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// AnalysisRun is the persisted envelope around one pipeline execution.
type AnalysisRun struct {
	ID        string         `json:"id"`
	Status    RunStatus      `json:"status"`
	Source    string         `json:"source"`
	InitTime  time.Time      `json:"init_time"`
	Params    AnalysisParams `json:"params"`
	Totals    *RunTotals     `json:"totals,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RunTotals summarizes a run across all storms, airports and dates.
// Payout aggregation is a plain sum over ExposureRecord values, so totals
// are independent of summation order up to floating-point rounding.
type RunTotals struct {
	Storms            int     `json:"storms"`
	AirportsAffected  int     `json:"airports_affected"`
	Records           int     `json:"records"`
	TravelersAtRisk   float64 `json:"travelers_at_risk"`
	ExpectedClaims    float64 `json:"expected_claims"`
	ExpectedPayoutUSD float64 `json:"expected_payout_usd"`
}

// StormSummary is the per-storm rollup used by reports and the run output.
type StormSummary struct {
	StormID           string  `json:"storm_id"`
	Category          string  `json:"category"`
	PeakWindKt        float64 `json:"peak_wind_kt"`
	Members           int     `json:"members"`
	AirportsAffected  int     `json:"airports_affected"`
	ExpectedPayoutUSD float64 `json:"expected_payout_usd"`
}

// PhaseResult records timing and outcome for one pipeline phase of a run.
type PhaseResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}
