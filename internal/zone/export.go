package zone

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/aeroshield/stormrisk-cli/internal/geo"
	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// circleSegments is the vertex count used to discretize a circle for export.
// Exported polygons are for maps and GIS tooling; membership testing always
// uses great-circle distance against the exact circles.
const circleSegments = 16

// circlePoints returns circleSegments (lat, lon) vertices around the circle,
// clockwise starting from due north.
func circlePoints(c model.Circle) [][2]float64 {
	step := 360.0 / float64(circleSegments)
	pts := make([][2]float64, 0, circleSegments)
	for i := 0; i < circleSegments; i++ {
		lat, lon := geo.Destination(c.Lat, c.Lon, float64(i)*step, c.RadiusKM)
		pts = append(pts, [2]float64{lat, lon})
	}
	return pts
}

// ringMultiPolygon converts one threshold ring to a MultiPolygon with one
// polygon per ensemble-member circle. Exterior rings are wound
// counterclockwise and closed, as GeoJSON expects.
func ringMultiPolygon(r model.Ring) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for _, c := range r.Circles {
		pts := circlePoints(c)

		flat := make([]float64, 0, (len(pts)+1)*2)
		for i := len(pts) - 1; i >= 0; i-- {
			flat = append(flat, pts[i][1], pts[i][0])
		}
		flat = append(flat, pts[len(pts)-1][1], pts[len(pts)-1][0])

		poly := geom.NewPolygon(geom.XY).SetSRID(4326)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrapf(err, "zone: build polygon ring at %dkt", r.ThresholdKt)
		}
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrapf(err, "zone: push polygon at %dkt", r.ThresholdKt)
		}
	}
	return mp, nil
}

// RingEWKB encodes one threshold ring as EWKB with SRID 4326 for PostGIS
// storage.
func RingEWKB(r model.Ring) ([]byte, error) {
	mp, err := ringMultiPolygon(r)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "zone: encode EWKB")
	}
	return data, nil
}

// RingGeoJSON encodes one threshold ring as a bare GeoJSON geometry, used
// by the SQLite store where geometry lives in a text column.
func RingGeoJSON(r model.Ring) ([]byte, error) {
	mp, err := ringMultiPolygon(r)
	if err != nil {
		return nil, err
	}
	data, err := geojson.Marshal(mp)
	if err != nil {
		return nil, eris.Wrap(err, "zone: encode GeoJSON geometry")
	}
	return data, nil
}

// GeoJSON renders a storm's zone sequence as a FeatureCollection with one
// feature per (valid_time, threshold) ring. Properties carry everything a
// map client needs to style and animate the zones.
func GeoJSON(set model.ZoneSet) ([]byte, error) {
	fc := &geojson.FeatureCollection{}

	for _, z := range set.Zones {
		for _, r := range z.Rings {
			mp, err := ringMultiPolygon(r)
			if err != nil {
				return nil, err
			}
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:       fmt.Sprintf("%s-%s-%d", set.StormID, z.ValidTime.UTC().Format("20060102T1504"), r.ThresholdKt),
				Geometry: mp,
				Properties: map[string]interface{}{
					"storm_id":       set.StormID,
					"init_time":      set.InitTime.UTC().Format(time.RFC3339),
					"valid_time":     z.ValidTime.UTC().Format(time.RFC3339),
					"threshold_kt":   r.ThresholdKt,
					"uncertainty_km": z.UncertaintyKM,
					"members":        len(r.Circles),
				},
			})
		}
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: encode FeatureCollection for %s", set.StormID)
	}
	return data, nil
}
