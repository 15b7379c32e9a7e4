package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/zone"
)

var (
	zonesRun    string
	zonesStorm  string
	zonesFormat string
	zonesOut    string
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Work with a run's impact zones",
}

var zonesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export impact zones as GeoJSON or an ESRI shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if zonesRun == "" {
			return eris.New("--run is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sets, err := st.GetZones(ctx, zonesRun, zonesStorm)
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			if zonesStorm != "" {
				return eris.Errorf("run %s has no zones for storm %s", truncateID(zonesRun), zonesStorm)
			}
			return eris.Errorf("run %s has no zones", truncateID(zonesRun))
		}

		switch zonesFormat {
		case "geojson":
			return exportGeoJSON(sets, zonesOut)
		case "shapefile":
			out := zonesOut
			if out == "" {
				out = "zones.shp"
			}
			if err := zone.WriteShapefile(out, sets); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		default:
			return eris.Errorf("unknown --format %q, want geojson or shapefile", zonesFormat)
		}
	},
}

func init() {
	zonesExportCmd.Flags().StringVar(&zonesRun, "run", "", "run ID to export zones from")
	zonesExportCmd.Flags().StringVar(&zonesStorm, "storm", "", "restrict to one storm ID (for example AL092025)")
	zonesExportCmd.Flags().StringVar(&zonesFormat, "format", "geojson", "output format (geojson or shapefile)")
	zonesExportCmd.Flags().StringVar(&zonesOut, "out", "", "output file, or directory for multi-storm GeoJSON")

	zonesCmd.AddCommand(zonesExportCmd)
	rootCmd.AddCommand(zonesCmd)
}

// exportGeoJSON writes one FeatureCollection per storm. A single storm goes
// to --out or stdout; multiple storms need --out as a directory.
func exportGeoJSON(sets []model.ZoneSet, out string) error {
	if len(sets) == 1 {
		b, err := zone.GeoJSON(sets[0])
		if err != nil {
			return err
		}
		if out == "" {
			_, err := os.Stdout.Write(append(b, '\n'))
			return err
		}
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", out)
		}
		fmt.Printf("wrote %s\n", out)
		return nil
	}

	if out == "" {
		return eris.New("run has multiple storms: pass --storm or an --out directory")
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", out)
	}
	for _, set := range sets {
		b, err := zone.GeoJSON(set)
		if err != nil {
			return err
		}
		dest := filepath.Join(out, strings.ToLower(set.StormID)+".geojson")
		if err := os.WriteFile(dest, b, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", dest)
		}
		fmt.Printf("wrote %s\n", dest)
	}
	return nil
}
