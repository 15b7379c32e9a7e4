// Package report renders finished runs for people: a plain-text exposure
// report and an xlsx workbook. Both renderers are pure functions of their
// input; identical data renders to identical bytes.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
)

// Data is everything the renderers consume. RunID is empty for runs that
// were never persisted.
type Data struct {
	RunID    string
	Source   string
	InitTime time.Time
	Params   model.AnalysisParams

	Storms      []model.StormSummary
	Totals      model.RunTotals
	Exposures   []model.ExposureRecord
	Disruptions []model.DisruptionInterval
	Warnings    []string
}

// FromResult adapts a pipeline result for rendering.
func FromResult(res *pipeline.Result) Data {
	return Data{
		Source:      res.Source,
		InitTime:    res.InitTime,
		Params:      res.Params,
		Storms:      res.Storms,
		Totals:      res.Totals,
		Exposures:   res.Exposures,
		Disruptions: res.Disruptions,
		Warnings:    res.Warnings,
	}
}

// Text generates the human-readable exposure report.
func Text(d Data) string {
	p := message.NewPrinter(language.AmericanEnglish)
	var b strings.Builder

	fmt.Fprintf(&b, "# Storm Exposure Report: %s\n", d.InitTime.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Source: %s\n", d.Source)
	if d.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", d.RunID)
	}
	b.WriteString("\n")

	// Summary.
	b.WriteString("## Summary\n")
	p.Fprintf(&b, "- Storms analyzed: %d\n", d.Totals.Storms)
	p.Fprintf(&b, "- Airports affected: %d\n", d.Totals.AirportsAffected)
	p.Fprintf(&b, "- Exposure records: %d\n", d.Totals.Records)
	p.Fprintf(&b, "- Travelers at risk: %.0f\n", d.Totals.TravelersAtRisk)
	p.Fprintf(&b, "- Expected claims: %.1f\n", d.Totals.ExpectedClaims)
	p.Fprintf(&b, "- Expected payout: $%.2f\n\n", d.Totals.ExpectedPayoutUSD)

	// Parameters.
	b.WriteString("## Parameters\n")
	fmt.Fprintf(&b, "- Minimum disruption: %.1f h\n", d.Params.MinDisruptionHours)
	fmt.Fprintf(&b, "- Penetration rate: %.1f%%\n", d.Params.PenetrationRate*100)
	fmt.Fprintf(&b, "- Claim rate: %.1f%%\n", d.Params.ClaimRate*100)
	p.Fprintf(&b, "- Payout per claim: $%.2f\n", d.Params.PayoutPerClaimUSD)
	fmt.Fprintf(&b, "- Uncertainty growth: %.1f km/h\n\n", d.Params.UncertaintyGrowthKMPerHour)

	// Per-storm breakdown with airports ranked by payout.
	b.WriteString("## Storms\n")
	if len(d.Storms) == 0 {
		b.WriteString("No storms analyzed.\n")
	}
	for _, st := range d.Storms {
		fmt.Fprintf(&b, "### %s (%s, peak %.0f kt)\n", st.StormID, st.Category, st.PeakWindKt)
		p.Fprintf(&b, "- Ensemble members: %d\n", st.Members)
		p.Fprintf(&b, "- Airports affected: %d\n", st.AirportsAffected)
		p.Fprintf(&b, "- Expected payout: $%.2f\n", st.ExpectedPayoutUSD)
		rollups := rollupAirports(d.Exposures, st.StormID)
		if len(rollups) == 0 {
			b.WriteString("- No airports affected.\n")
		}
		for _, a := range rollups {
			p.Fprintf(&b, "- %s: %.0f travelers, %.1f claims, $%.2f\n",
				a.code, a.travelers, a.claims, a.payout)
		}
		b.WriteString("\n")
	}

	// Warnings appendix.
	if len(d.Warnings) > 0 {
		b.WriteString("## Warnings\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

type airportRollup struct {
	code      string
	travelers float64
	claims    float64
	payout    float64
}

// rollupAirports sums one storm's records per airport across dates, ranked
// by payout with the code as tiebreak so the ordering is total.
func rollupAirports(records []model.ExposureRecord, stormID string) []airportRollup {
	byCode := make(map[string]*airportRollup)
	for _, r := range records {
		if r.StormID != stormID {
			continue
		}
		a := byCode[r.AirportCode]
		if a == nil {
			a = &airportRollup{code: r.AirportCode}
			byCode[r.AirportCode] = a
		}
		a.travelers += r.TravelersAtRisk
		a.claims += r.ExpectedClaims
		a.payout += r.ExpectedPayoutUSD
	}

	out := make([]airportRollup, 0, len(byCode))
	for _, a := range byCode {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].payout != out[j].payout {
			return out[i].payout > out[j].payout
		}
		return out[i].code < out[j].code
	})
	return out
}
