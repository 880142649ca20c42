package http

import (
	"encoding/json"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/yanqian/chargemap/internal/domain/explorer"
)

// encodeMapGeoJSON renders map points as a FeatureCollection of Point features with
// the display score and bucket styling as properties.
func encodeMapGeoJSON(view explorer.MapView) ([]byte, error) {
	fc := geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(view.Points)),
	}
	for _, p := range view.Points {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       p.ID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}),
			Properties: map[string]interface{}{
				"label":     p.Label,
				"metric":    string(view.Metric),
				"score":     p.Score,
				"intensity": p.Intensity,
				"bucket":    int(p.Bucket),
				"color":     p.Color,
			},
		})
	}
	return json.Marshal(&fc)
}
