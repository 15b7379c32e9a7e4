package zone

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

func exportSet() model.ZoneSet {
	vt := time.Date(2025, 9, 10, 6, 0, 0, 0, time.UTC)
	return model.ZoneSet{
		StormID:  "AL092025",
		InitTime: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
		Zones: []model.ImpactZone{
			{
				StormID:       "AL092025",
				ValidTime:     vt,
				UncertaintyKM: 24,
				Rings: []model.Ring{
					{ThresholdKt: 34, Circles: []model.Circle{
						{Lat: 25.0, Lon: -80.0, RadiusKM: 224},
						{Lat: 25.5, Lon: -79.5, RadiusKM: 204},
					}},
					{ThresholdKt: 64, Circles: []model.Circle{
						{Lat: 25.0, Lon: -80.0, RadiusKM: 74},
					}},
				},
			},
			{
				StormID:       "AL092025",
				ValidTime:     vt.Add(6 * time.Hour),
				UncertaintyKM: 48,
				Rings: []model.Ring{
					{ThresholdKt: 34, Circles: []model.Circle{
						{Lat: 26.0, Lon: -81.0, RadiusKM: 248},
					}},
				},
			},
		},
	}
}

func TestGeoJSONFeatureCollection(t *testing.T) {
	data, err := GeoJSON(exportSet())
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates [][][][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	// Three rings across two zones, one feature each.
	require.Len(t, fc.Features, 3)

	f := fc.Features[0]
	assert.Equal(t, "MultiPolygon", f.Geometry.Type)
	assert.Equal(t, "AL092025", f.Properties["storm_id"])
	assert.Equal(t, "2025-09-10T06:00:00Z", f.Properties["valid_time"])
	assert.InDelta(t, 34, f.Properties["threshold_kt"].(float64), 1e-9)
	assert.InDelta(t, 24, f.Properties["uncertainty_km"].(float64), 1e-9)
	assert.InDelta(t, 2, f.Properties["members"].(float64), 1e-9)

	// Two member circles means two polygons in the first feature.
	require.Len(t, f.Geometry.Coordinates, 2)

	// Exterior rings are closed and carry lon-lat pairs near the storm.
	ring := f.Geometry.Coordinates[0][0]
	require.Len(t, ring, circleSegments+1)
	assert.Equal(t, ring[0], ring[len(ring)-1])
	for _, pt := range ring {
		assert.InDelta(t, -80.0, pt[0], 3.0)
		assert.InDelta(t, 25.0, pt[1], 3.0)
	}
}

func TestGeoJSONEmptySet(t *testing.T) {
	data, err := GeoJSON(model.ZoneSet{StormID: "AL092025"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
}

func TestRingGeoJSONGeometry(t *testing.T) {
	data, err := RingGeoJSON(model.Ring{ThresholdKt: 34, Circles: []model.Circle{
		{Lat: 25.0, Lon: -80.0, RadiusKM: 100},
	}})
	require.NoError(t, err)

	var g struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, "MultiPolygon", g.Type)
}

func TestRingEWKB(t *testing.T) {
	data, err := RingEWKB(model.Ring{ThresholdKt: 64, Circles: []model.Circle{
		{Lat: 25.0, Lon: -80.0, RadiusKM: 74},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	// NDR encoding starts with the little-endian byte-order marker.
	assert.Equal(t, byte(0x01), data[0])
}

func TestWriteShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.shp")
	require.NoError(t, WriteShapefile(path, []model.ZoneSet{exportSet()}))

	reader, err := shp.Open(path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	names := make([]string, 0, 4)
	for _, f := range reader.Fields() {
		names = append(names, strings.TrimRight(f.String(), "\x00"))
	}
	assert.Contains(t, names, "STORM")
	assert.Contains(t, names, "THRESH_KT")

	shapes := 0
	for reader.Next() {
		_, shape := reader.Shape()
		require.NotNil(t, shape)

		poly, ok := shape.(*shp.Polygon)
		require.True(t, ok)
		require.NotEmpty(t, poly.Points)
		for _, p := range poly.Points {
			assert.InDelta(t, -80.0, p.X, 4.0)
			assert.InDelta(t, 25.5, p.Y, 4.0)
		}
		shapes++
	}
	assert.Equal(t, 3, shapes)
}
