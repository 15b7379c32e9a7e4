package report

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Number formats applied to workbook cells. Excel renders the grouping;
// the stored values stay raw floats.
const (
	fmtCount = "#,##0"
	fmtUSD   = "$#,##0.00"
	fmtOneDP = "0.0"
)

// XLSX writes the run workbook: Summary, Storms, Exposure, and Disruptions
// sheets. Underwriting imports the Exposure sheet into their book of
// business, so its column order is load-bearing.
func XLSX(d Data, w io.Writer) error {
	f := xlsx.NewFile()

	if err := summarySheet(f, d); err != nil {
		return err
	}
	if err := stormsSheet(f, d); err != nil {
		return err
	}
	if err := exposureSheet(f, d); err != nil {
		return err
	}
	if err := disruptionsSheet(f, d); err != nil {
		return err
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

func summarySheet(f *xlsx.File, d Data) error {
	sh, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addKV := func(key string, set func(c *xlsx.Cell)) {
		row := sh.AddRow()
		row.AddCell().SetString(key)
		set(row.AddCell())
	}

	addKV("Forecast cycle", func(c *xlsx.Cell) { c.SetString(d.InitTime.UTC().Format("2006-01-02 15:04 UTC")) })
	addKV("Source", func(c *xlsx.Cell) { c.SetString(d.Source) })
	if d.RunID != "" {
		addKV("Run", func(c *xlsx.Cell) { c.SetString(d.RunID) })
	}
	addKV("Storms analyzed", func(c *xlsx.Cell) { c.SetInt(d.Totals.Storms) })
	addKV("Airports affected", func(c *xlsx.Cell) { c.SetInt(d.Totals.AirportsAffected) })
	addKV("Exposure records", func(c *xlsx.Cell) { c.SetInt(d.Totals.Records) })
	addKV("Travelers at risk", func(c *xlsx.Cell) { c.SetFloatWithFormat(d.Totals.TravelersAtRisk, fmtCount) })
	addKV("Expected claims", func(c *xlsx.Cell) { c.SetFloatWithFormat(d.Totals.ExpectedClaims, fmtOneDP) })
	addKV("Expected payout (USD)", func(c *xlsx.Cell) { c.SetFloatWithFormat(d.Totals.ExpectedPayoutUSD, fmtUSD) })
	addKV("Minimum disruption (h)", func(c *xlsx.Cell) { c.SetFloatWithFormat(d.Params.MinDisruptionHours, fmtOneDP) })
	addKV("Penetration rate", func(c *xlsx.Cell) { c.SetFloat(d.Params.PenetrationRate) })
	addKV("Claim rate", func(c *xlsx.Cell) { c.SetFloat(d.Params.ClaimRate) })
	addKV("Payout per claim (USD)", func(c *xlsx.Cell) { c.SetFloatWithFormat(d.Params.PayoutPerClaimUSD, fmtUSD) })

	return nil
}

func stormsSheet(f *xlsx.File, d Data) error {
	sh, err := f.AddSheet("Storms")
	if err != nil {
		return eris.Wrap(err, "report: add storms sheet")
	}

	header := sh.AddRow()
	for _, h := range []string{"Storm", "Category", "Peak Wind (kt)", "Members", "Airports Affected", "Expected Payout (USD)"} {
		header.AddCell().SetString(h)
	}

	for _, st := range d.Storms {
		row := sh.AddRow()
		row.AddCell().SetString(st.StormID)
		row.AddCell().SetString(st.Category)
		row.AddCell().SetFloatWithFormat(st.PeakWindKt, fmtCount)
		row.AddCell().SetInt(st.Members)
		row.AddCell().SetInt(st.AirportsAffected)
		row.AddCell().SetFloatWithFormat(st.ExpectedPayoutUSD, fmtUSD)
	}
	return nil
}

func exposureSheet(f *xlsx.File, d Data) error {
	sh, err := f.AddSheet("Exposure")
	if err != nil {
		return eris.Wrap(err, "report: add exposure sheet")
	}

	header := sh.AddRow()
	for _, h := range []string{"Storm", "Airport", "Date", "Travelers at Risk", "Expected Claims", "Expected Payout (USD)"} {
		header.AddCell().SetString(h)
	}

	for _, r := range d.Exposures {
		row := sh.AddRow()
		row.AddCell().SetString(r.StormID)
		row.AddCell().SetString(r.AirportCode)
		row.AddCell().SetString(r.Date)
		row.AddCell().SetFloatWithFormat(r.TravelersAtRisk, fmtCount)
		row.AddCell().SetFloatWithFormat(r.ExpectedClaims, fmtOneDP)
		row.AddCell().SetFloatWithFormat(r.ExpectedPayoutUSD, fmtUSD)
	}
	return nil
}

func disruptionsSheet(f *xlsx.File, d Data) error {
	sh, err := f.AddSheet("Disruptions")
	if err != nil {
		return eris.Wrap(err, "report: add disruptions sheet")
	}

	header := sh.AddRow()
	for _, h := range []string{"Storm", "Airport", "Start (UTC)", "End (UTC)", "Hours", "Peak Threshold (kt)"} {
		header.AddCell().SetString(h)
	}

	for _, iv := range d.Disruptions {
		row := sh.AddRow()
		row.AddCell().SetString(iv.StormID)
		row.AddCell().SetString(iv.AirportCode)
		row.AddCell().SetString(iv.StartTime.UTC().Format(time.RFC3339))
		row.AddCell().SetString(iv.EndTime.UTC().Format(time.RFC3339))
		row.AddCell().SetFloatWithFormat(iv.Duration().Hours(), fmtOneDP)
		row.AddCell().SetInt(iv.PeakThresholdKt)
	}
	return nil
}
