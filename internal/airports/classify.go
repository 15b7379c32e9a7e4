package airports

import "github.com/aeroshield/stormrisk-cli/internal/model"

// Region bounding boxes in degrees, checked in declaration order. Florida is
// listed before the Caribbean and Gulf boxes because they touch along the
// panhandle and the Straits of Florida.
var regionBoxes = []struct {
	region         model.Region
	minLat, maxLat float64
	minLon, maxLon float64
}{
	{model.RegionFlorida, 24.3, 31.0, -87.7, -79.8},
	{model.RegionCaribbean, 10.0, 27.0, -90.0, -59.0},
	{model.RegionGulfCoast, 24.5, 31.5, -99.0, -87.7},
	{model.RegionEastCoast, 31.0, 39.2, -85.0, -74.0},
	{model.RegionNortheast, 39.2, 45.5, -80.0, -66.0},
}

// ClassifyRegion returns the exposure region for a coordinate, or
// RegionOther for points outside every box (inland hubs, Bermuda).
func ClassifyRegion(lat, lon float64) model.Region {
	for _, b := range regionBoxes {
		if lat >= b.minLat && lat <= b.maxLat && lon >= b.minLon && lon <= b.maxLon {
			return b.region
		}
	}
	return model.RegionOther
}
