package track

import (
	"fmt"
	"time"

	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/pkg/weatherlab"
)

// MemberName maps a feed sample number to a member label. The ensemble mean
// becomes "mean", perturbed members "e00".."eNN".
func MemberName(sample int) string {
	if sample == weatherlab.MeanSample {
		return "mean"
	}
	return fmt.Sprintf("e%02d", sample)
}

// SamplesFromForecast flattens a WeatherLab forecast into track samples plus
// the per-storm initialization times the zone builder's uncertainty model
// keys off. Published files share one init time across storms; the map form
// also covers mixed batches.
func SamplesFromForecast(f *weatherlab.Forecast) ([]model.TrackSample, map[string]time.Time) {
	samples := make([]model.TrackSample, 0, len(f.Rows))
	initByStorm := make(map[string]time.Time)

	for _, row := range f.Rows {
		samples = append(samples, model.TrackSample{
			StormID:            row.StormID,
			Member:             MemberName(row.Sample),
			ValidTime:          row.ValidTime,
			Lat:                row.Lat,
			Lon:                row.Lon,
			CentralPressureHPa: row.PressureHPa,
			MaxWindKt:          row.MaxWindKt,
			Radius34KM:         row.Radius34KM,
			Radius50KM:         row.Radius50KM,
			Radius64KM:         row.Radius64KM,
		})
		if cur, ok := initByStorm[row.StormID]; !ok || row.InitTime.Before(cur) {
			initByStorm[row.StormID] = row.InitTime
		}
	}
	return samples, initByStorm
}
