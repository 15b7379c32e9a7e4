//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

func TestLoadAirportTableDefault(t *testing.T) {
	table, err := loadAirportTable(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, table)

	var codes []string
	for _, a := range table {
		codes = append(codes, a.Code)
	}
	assert.Contains(t, codes, "MIA")
}

func TestLoadAirportTableCSV(t *testing.T) {
	csv := "code,name,lat,lon,baseline_daily_travelers,timezone\n" +
		"TST,Test Field,27.9,-82.5,1200,America/New_York\n"
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	table, err := loadAirportTable(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "TST", table[0].Code)
	assert.Equal(t, 1200, table[0].BaselineDailyTravelers)
	// 27.9,-82.5 (Tampa) falls in the florida box.
	assert.Equal(t, model.RegionFlorida, table[0].Region)
}

func TestLoadAirportTableMissingFile(t *testing.T) {
	_, err := loadAirportTable(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.csv")
}

func TestFormatAirports(t *testing.T) {
	out := formatAirports([]model.Airport{testMIA})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "CODE")
	assert.Contains(t, lines[0], "TRAVELERS/DAY")
	assert.Contains(t, lines[1], "MIA")
	assert.Contains(t, lines[1], "Miami International")
	assert.Contains(t, lines[1], "America/New_York")
	assert.Contains(t, lines[1], "50000")
}
