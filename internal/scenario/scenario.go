// Package scenario loads synthetic what-if inputs from YAML. Scenarios are
// used for reinsurance stress tests: hand-written storms with explicit
// tracks, run through the same pipeline as live forecast data.
package scenario

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/aeroshield/stormrisk-cli/internal/airports"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
)

// Scenario is one synthetic analysis input.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	InitTime    time.Time   `yaml:"init_time"`
	Params      ParamsPatch `yaml:"params"`

	// AirportCodes restricts the run to a subset of the airport table.
	// Airports defines extra airports inline; both may be set.
	AirportCodes []string  `yaml:"airport_codes"`
	Airports     []Airport `yaml:"airports"`

	Storms []Storm `yaml:"storms"`
}

// ParamsPatch overrides individual analysis parameters. Nil fields keep the
// default; zero is a meaningful override for the rates.
type ParamsPatch struct {
	UncertaintyGrowthKMPerHour *float64 `yaml:"uncertainty_growth_km_per_hour"`
	MinDisruptionHours         *float64 `yaml:"min_disruption_hours"`
	PenetrationRate            *float64 `yaml:"penetration_rate"`
	ClaimRate                  *float64 `yaml:"claim_rate"`
	PayoutPerClaimUSD          *float64 `yaml:"payout_per_claim_usd"`
}

// Airport is an inline airport row, same fields as a CSV import row.
type Airport struct {
	Code                   string  `yaml:"code"`
	Name                   string  `yaml:"name"`
	Lat                    float64 `yaml:"lat"`
	Lon                    float64 `yaml:"lon"`
	BaselineDailyTravelers int     `yaml:"baseline_daily_travelers"`
	Timezone               string  `yaml:"timezone"`
	Region                 string  `yaml:"region"`
}

// Storm is one synthetic storm with its ensemble members.
type Storm struct {
	StormID  string     `yaml:"storm_id"`
	InitTime *time.Time `yaml:"init_time"`
	Members  []Member   `yaml:"members"`
}

// Member is one trajectory of a synthetic storm.
type Member struct {
	Member  string   `yaml:"member"`
	Samples []Sample `yaml:"samples"`
}

// Sample mirrors model.TrackSample with optional fields left as pointers.
type Sample struct {
	ValidTime          time.Time `yaml:"valid_time"`
	Lat                float64   `yaml:"lat"`
	Lon                float64   `yaml:"lon"`
	MaxWindKt          float64   `yaml:"max_wind_kt"`
	CentralPressureHPa *float64  `yaml:"central_pressure_hpa"`
	Radius34KM         *float64  `yaml:"radius_34_km"`
	Radius50KM         *float64  `yaml:"radius_50_km"`
	Radius64KM         *float64  `yaml:"radius_64_km"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scenario: read %s", path)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrapf(err, "scenario: parse %s", path)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return eris.New("scenario: name is required")
	}
	if s.InitTime.IsZero() {
		return eris.New("scenario: init_time is required")
	}
	if len(s.Storms) == 0 {
		return eris.New("scenario: at least one storm is required")
	}
	for _, st := range s.Storms {
		if st.StormID == "" {
			return eris.New("scenario: storm_id is required")
		}
		if len(st.Members) == 0 {
			return eris.Errorf("scenario: storm %s has no members", st.StormID)
		}
		for _, m := range st.Members {
			if len(m.Samples) == 0 {
				return eris.Errorf("scenario: storm %s member %q has no samples", st.StormID, m.Member)
			}
			for _, smp := range m.Samples {
				if smp.ValidTime.IsZero() {
					return eris.Errorf("scenario: storm %s member %q has a sample without valid_time", st.StormID, m.Member)
				}
			}
		}
	}
	return nil
}

// AnalysisParams applies the patch over the defaults.
func (s *Scenario) AnalysisParams() model.AnalysisParams {
	p := model.DefaultParams()
	if v := s.Params.UncertaintyGrowthKMPerHour; v != nil {
		p.UncertaintyGrowthKMPerHour = *v
	}
	if v := s.Params.MinDisruptionHours; v != nil {
		p.MinDisruptionHours = *v
	}
	if v := s.Params.PenetrationRate; v != nil {
		p.PenetrationRate = *v
	}
	if v := s.Params.ClaimRate; v != nil {
		p.ClaimRate = *v
	}
	if v := s.Params.PayoutPerClaimUSD; v != nil {
		p.PayoutPerClaimUSD = *v
	}
	return p
}

// Input assembles the pipeline input against the given airport table.
// AirportCodes filter the table; inline airports are appended after.
func (s *Scenario) Input(table []model.Airport) (pipeline.Input, error) {
	aps, err := s.resolveAirports(table)
	if err != nil {
		return pipeline.Input{}, err
	}

	var samples []model.TrackSample
	initByStorm := make(map[string]time.Time)
	for _, st := range s.Storms {
		if st.InitTime != nil {
			initByStorm[st.StormID] = st.InitTime.UTC()
		}
		for _, m := range st.Members {
			for _, smp := range m.Samples {
				samples = append(samples, model.TrackSample{
					StormID:            st.StormID,
					Member:             m.Member,
					ValidTime:          smp.ValidTime.UTC(),
					Lat:                smp.Lat,
					Lon:                smp.Lon,
					CentralPressureHPa: smp.CentralPressureHPa,
					MaxWindKt:          smp.MaxWindKt,
					Radius34KM:         smp.Radius34KM,
					Radius50KM:         smp.Radius50KM,
					Radius64KM:         smp.Radius64KM,
				})
			}
		}
	}

	in := pipeline.Input{
		Source:   "scenario:" + s.Name,
		InitTime: s.InitTime.UTC(),
		Samples:  samples,
		Airports: aps,
		Params:   s.AnalysisParams(),
	}
	if len(initByStorm) > 0 {
		in.InitTimeByStorm = initByStorm
	}
	return in, nil
}

func (s *Scenario) resolveAirports(table []model.Airport) ([]model.Airport, error) {
	var out []model.Airport

	if len(s.AirportCodes) == 0 && len(s.Airports) == 0 {
		out = append(out, table...)
	}
	for _, code := range s.AirportCodes {
		ap, ok := airports.Find(table, code)
		if !ok {
			return nil, eris.Errorf("scenario: airport code %q not in the active table", code)
		}
		out = append(out, ap)
	}
	for _, a := range s.Airports {
		ap := model.Airport{
			Code:                   a.Code,
			Name:                   a.Name,
			Lat:                    a.Lat,
			Lon:                    a.Lon,
			BaselineDailyTravelers: a.BaselineDailyTravelers,
			Timezone:               a.Timezone,
			Region:                 model.Region(a.Region),
		}
		if ap.Region == "" {
			ap.Region = airports.ClassifyRegion(ap.Lat, ap.Lon)
		}
		if _, err := time.LoadLocation(ap.Timezone); err != nil {
			return nil, eris.Errorf("scenario: airport %s timezone %q is not a valid IANA name", ap.Code, ap.Timezone)
		}
		out = append(out, ap)
	}

	if len(out) == 0 {
		return nil, eris.New("scenario: no airports resolved")
	}
	return out, nil
}
