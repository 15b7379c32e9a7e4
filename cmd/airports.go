package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aeroshield/stormrisk-cli/internal/airports"
	"github.com/aeroshield/stormrisk-cli/internal/model"
)

var (
	airportsFile   string
	airportsRegion string
)

var airportsCmd = &cobra.Command{
	Use:   "airports",
	Short: "List the airports the analysis covers",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadAirportTable(cmd.Context(), airportsFile)
		if err != nil {
			return err
		}
		if airportsRegion != "" {
			table = airports.ByRegion(table, model.Region(airportsRegion))
			if len(table) == 0 {
				return eris.Errorf("no airports in region %q", airportsRegion)
			}
		}
		fmt.Print(formatAirports(table))
		return nil
	},
}

func init() {
	airportsCmd.Flags().StringVar(&airportsFile, "file", "", "airport table CSV/XLSX (default: built-in table)")
	airportsCmd.Flags().StringVar(&airportsRegion, "region", "", "restrict to one region")
	rootCmd.AddCommand(airportsCmd)
}

// loadAirportTable resolves the airport table for a command: the built-in
// table when path is empty, otherwise a CSV or XLSX file.
func loadAirportTable(ctx context.Context, path string) ([]model.Airport, error) {
	if path == "" {
		return airports.Default()
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return airports.LoadXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open airport table %s", path)
	}
	defer f.Close() //nolint:errcheck
	return airports.LoadCSV(ctx, f)
}

func formatAirports(table []model.Airport) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tREGION\tLAT\tLON\tTZ\tTRAVELERS/DAY")
	for _, a := range table {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%s\t%d\n",
			a.Code, a.Name, a.Region, a.Lat, a.Lon, a.Timezone, a.BaselineDailyTravelers)
	}
	w.Flush() //nolint:errcheck
	return b.String()
}
