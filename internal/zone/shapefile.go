package zone

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// WriteShapefile writes zone rings as ESRI POLYGON shapes with a DBF
// attribute per feature. One feature per (storm, valid_time, threshold);
// ensemble-member circles become parts of the same polygon. Outer rings are
// wound clockwise per the shapefile spec.
func WriteShapefile(path string, sets []model.ZoneSet) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "zone: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("STORM", 16),
		shp.StringField("VALIDTIME", 20),
		shp.NumberField("THRESH_KT", 3),
		shp.FloatField("UNCERT_KM", 12, 2),
	})

	row := 0
	features := 0
	for _, set := range sets {
		for _, z := range set.Zones {
			for _, r := range z.Rings {
				parts := make([][]shp.Point, 0, len(r.Circles))
				for _, c := range r.Circles {
					pts := circlePoints(c)
					part := make([]shp.Point, 0, len(pts)+1)
					for _, p := range pts {
						part = append(part, shp.Point{X: p[1], Y: p[0]})
					}
					part = append(part, part[0])
					parts = append(parts, part)
				}
				if len(parts) == 0 {
					continue
				}

				poly := shp.Polygon(*shp.NewPolyLine(parts))
				w.Write(&poly)
				w.WriteAttribute(row, 0, set.StormID)
				w.WriteAttribute(row, 1, z.ValidTime.UTC().Format("2006-01-02T15:04Z"))
				w.WriteAttribute(row, 2, r.ThresholdKt)
				w.WriteAttribute(row, 3, z.UncertaintyKM)
				row++
				features++
			}
		}
	}

	zap.L().Info("zone: wrote shapefile",
		zap.String("path", path),
		zap.Int("features", features))
	return nil
}
