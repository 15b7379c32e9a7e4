package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKM(t *testing.T) {
	// Miami to Key West is roughly 206 km.
	d := HaversineKM(25.7959, -80.2870, 24.5551, -81.7800)
	assert.InDelta(t, 206, d, 10)

	// Same point is zero.
	assert.Zero(t, HaversineKM(32.0, -97.0, 32.0, -97.0))

	// Symmetric.
	d1 := HaversineKM(25.0, -80.0, 18.4, -66.0)
	d2 := HaversineKM(18.4, -66.0, 25.0, -80.0)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDestination(t *testing.T) {
	// Travelling distKM from a point lands exactly distKM away.
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		lat, lon := Destination(25.0, -80.0, bearing, 150)
		assert.InDelta(t, 150, HaversineKM(25.0, -80.0, lat, lon), 0.01,
			"bearing %v", bearing)
	}

	// Due north moves latitude only.
	lat, lon := Destination(25.0, -80.0, 0, 111.0)
	assert.InDelta(t, 26.0, lat, 0.01)
	assert.InDelta(t, -80.0, lon, 0.01)
}

func TestNormalizeLon(t *testing.T) {
	assert.InDelta(t, -170, normalizeLon(190), 1e-9)
	assert.InDelta(t, 170, normalizeLon(-190), 1e-9)
	assert.InDelta(t, 0, normalizeLon(360), 1e-9)
}
