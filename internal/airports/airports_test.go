package airports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

func TestDefaultTable(t *testing.T) {
	list, err := Default()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 39)

	// Sorted by code, no duplicates.
	seen := map[string]bool{}
	for i, ap := range list {
		if i > 0 {
			assert.Less(t, list[i-1].Code, ap.Code)
		}
		assert.False(t, seen[ap.Code], "duplicate %s", ap.Code)
		seen[ap.Code] = true

		assert.Len(t, ap.Code, 3)
		assert.NotEmpty(t, ap.Name)
		assert.Positive(t, ap.BaselineDailyTravelers)
		_, err := time.LoadLocation(ap.Timezone)
		assert.NoError(t, err, "%s timezone %q", ap.Code, ap.Timezone)
		assert.NotEqual(t, model.Region(""), ap.Region)
	}

	mia, ok := Find(list, "MIA")
	require.True(t, ok)
	assert.Equal(t, "Miami International", mia.Name)
	assert.InDelta(t, 25.7959, mia.Lat, 1e-9)
	assert.InDelta(t, -80.2870, mia.Lon, 1e-9)
	assert.Equal(t, 50000, mia.BaselineDailyTravelers)
	assert.Equal(t, "America/New_York", mia.Timezone)
	assert.Equal(t, model.RegionFlorida, mia.Region)
}

func TestDefaultReturnsCopy(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	a[0].Code = "ZZZ"

	b, err := Default()
	require.NoError(t, err)
	assert.NotEqual(t, "ZZZ", b[0].Code)
}

func TestFindNormalizesCode(t *testing.T) {
	list, err := Default()
	require.NoError(t, err)

	ap, ok := Find(list, " mia ")
	require.True(t, ok)
	assert.Equal(t, "MIA", ap.Code)

	_, ok = Find(list, "XXX")
	assert.False(t, ok)
}

func TestByRegion(t *testing.T) {
	list, err := Default()
	require.NoError(t, err)

	florida := ByRegion(list, model.RegionFlorida)
	require.NotEmpty(t, florida)
	codes := map[string]bool{}
	for _, ap := range florida {
		assert.Equal(t, model.RegionFlorida, ap.Region)
		codes[ap.Code] = true
	}
	assert.True(t, codes["MIA"])
	assert.True(t, codes["TPA"])
	assert.False(t, codes["SJU"])
}

func TestClassifyRegion(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     model.Region
	}{
		{"Miami", 25.7959, -80.2870, model.RegionFlorida},
		{"Pensacola", 30.4734, -87.1866, model.RegionFlorida},
		{"San Juan", 18.4394, -66.0018, model.RegionCaribbean},
		{"Nassau", 25.0390, -77.4662, model.RegionCaribbean},
		{"New Orleans", 29.9934, -90.2581, model.RegionGulfCoast},
		{"San Antonio", 29.5312, -98.4683, model.RegionGulfCoast},
		{"Charleston", 32.8986, -80.0405, model.RegionEastCoast},
		{"Washington National", 38.8521, -77.0377, model.RegionEastCoast},
		{"Boston", 42.3656, -71.0096, model.RegionNortheast},
		{"Bermuda", 32.3641, -64.6787, model.RegionOther},
		{"Dallas", 32.8998, -97.0403, model.RegionOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegion(tt.lat, tt.lon))
		})
	}
}

func TestLoadCSVOverride(t *testing.T) {
	csv := strings.Join([]string{
		"code,name,lat,lon,baseline_daily_travelers,timezone,region",
		"mia,Miami International,25.7959,-80.2870,50000,America/New_York,",
		"ZZV,Test Field,39.9444,-81.8921,100,America/New_York,other",
	}, "\n")

	list, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Sorted by code, lowercase input upcased, blank region classified.
	assert.Equal(t, "MIA", list[0].Code)
	assert.Equal(t, model.RegionFlorida, list[0].Region)
	assert.Equal(t, "ZZV", list[1].Code)
	assert.Equal(t, model.RegionOther, list[1].Region)
}

func TestLoadCSVColumnOrderFlexible(t *testing.T) {
	csv := strings.Join([]string{
		"timezone,baseline_daily_travelers,lon,lat,name,code",
		"America/New_York,1234,-80.2870,25.7959,Miami International,MIA",
	}, "\n")

	list, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "MIA", list[0].Code)
	assert.Equal(t, 1234, list[0].BaselineDailyTravelers)
	assert.InDelta(t, 25.7959, list[0].Lat, 1e-9)
}

func TestLoadCSVRejectsBadRows(t *testing.T) {
	header := "code,name,lat,lon,baseline_daily_travelers,timezone"
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bad code", "MIAMI,Miami,25.7,-80.2,100,America/New_York", "not a 3-letter IATA code"},
		{"bad lat", "MIA,Miami,north,-80.2,100,America/New_York", "not a number"},
		{"lat out of range", "MIA,Miami,95.0,-80.2,100,America/New_York", "out of range"},
		{"bad baseline", "MIA,Miami,25.7,-80.2,many,America/New_York", "not an integer"},
		{"negative baseline", "MIA,Miami,25.7,-80.2,-5,America/New_York", "is negative"},
		{"bad timezone", "MIA,Miami,25.7,-80.2,100,Mars/Olympus", "not a valid IANA name"},
		{"empty name", "MIA,,25.7,-80.2,100,America/New_York", "name is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(context.Background(), strings.NewReader(header+"\n"+tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCSVDuplicateCode(t *testing.T) {
	csv := strings.Join([]string{
		"code,name,lat,lon,baseline_daily_travelers,timezone",
		"MIA,Miami International,25.7959,-80.2870,50000,America/New_York",
		"MIA,Miami Again,25.7959,-80.2870,50000,America/New_York",
	}, "\n")

	_, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate code MIA")
}

func TestLoadCSVMissingColumn(t *testing.T) {
	csv := strings.Join([]string{
		"code,name,lat,lon,passengers,timezone",
		"MIA,Miami,25.7,-80.2,100,America/New_York",
	}, "\n")

	_, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestLoadCSVUnknownRegion(t *testing.T) {
	csv := strings.Join([]string{
		"code,name,lat,lon,baseline_daily_travelers,timezone,region",
		"MIA,Miami,25.7,-80.2,100,America/New_York,atlantis",
	}, "\n")

	_, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not recognized")
}
