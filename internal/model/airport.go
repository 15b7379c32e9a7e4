package model

// Region buckets airports for seasonality and report grouping.
type Region string

const (
	RegionCaribbean Region = "caribbean"
	RegionFlorida   Region = "florida"
	RegionGulfCoast Region = "gulf_coast"
	RegionEastCoast Region = "us_east_coast"
	RegionNortheast Region = "northeast"
	RegionOther     Region = "other"
)

// Airport is reference data, read-only to the pipeline. Timezone is an IANA
// name; the traveler aggregator prorates disruption intervals against the
// airport's local civil day, not UTC.
type Airport struct {
	Code                   string  `json:"code"`
	Name                   string  `json:"name"`
	Lat                    float64 `json:"lat"`
	Lon                    float64 `json:"lon"`
	BaselineDailyTravelers int     `json:"baseline_daily_travelers"`
	Timezone               string  `json:"timezone"`
	Region                 Region  `json:"region"`
}
