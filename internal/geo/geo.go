// Package geo provides great-circle math shared by the zone builder,
// the exposure matcher, and the geometry exporters. All distances are in
// kilometers on a spherical earth.
package geo

import "math"

// EarthRadiusKM is the mean earth radius used for all great-circle math.
const EarthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance in kilometers between two
// points given in decimal degrees.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

// Destination returns the point reached by travelling distKM from
// (lat, lon) along the given initial bearing in degrees (0 = north,
// clockwise). Used to discretize zone circles for export.
func Destination(lat, lon, bearingDeg, distKM float64) (destLat, destLon float64) {
	phi1 := radians(lat)
	lambda1 := radians(lon)
	theta := radians(bearingDeg)
	delta := distKM / EarthRadiusKM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	destLat = degrees(phi2)
	destLon = normalizeLon(degrees(lambda2))
	return destLat, destLon
}

// normalizeLon wraps a longitude into [-180, 180].
func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
