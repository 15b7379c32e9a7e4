package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aeroshield/stormrisk-cli/internal/report"
)

var (
	reportRun    string
	reportFormat string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a saved run as a text report or XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if reportRun == "" {
			return eris.New("--run is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		data, err := report.FromStore(ctx, st, reportRun)
		if err != nil {
			return err
		}

		switch reportFormat {
		case "text":
			if reportOut == "" {
				fmt.Print(report.Text(data))
				return nil
			}
			if err := os.WriteFile(reportOut, []byte(report.Text(data)), 0o644); err != nil {
				return eris.Wrapf(err, "write %s", reportOut)
			}
			fmt.Printf("wrote %s\n", reportOut)
			return nil

		case "xlsx":
			out := reportOut
			if out == "" {
				out = fmt.Sprintf("exposure_%s.xlsx", truncateID(reportRun))
			}
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "create %s", out)
			}
			if err := report.XLSX(data, f); err != nil {
				f.Close() //nolint:errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return eris.Wrapf(err, "close %s", out)
			}
			fmt.Printf("wrote %s\n", out)
			return nil

		default:
			return eris.Errorf("unknown --format %q, want text or xlsx", reportFormat)
		}
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run ID to report on")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format (text or xlsx)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output path (default: stdout for text)")
	rootCmd.AddCommand(reportCmd)
}
