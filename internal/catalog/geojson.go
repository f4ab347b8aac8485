package catalog

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/resort-geocoder/internal/fileutil"
	"github.com/sells-group/resort-geocoder/internal/model"
)

// FeatureCollection builds a GeoJSON FeatureCollection of the records that
// have coordinates. Records without coordinates are omitted.
func FeatureCollection(resorts []model.Resort) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, r := range resorts {
		if !r.HasCoordinates() {
			continue
		}
		props := map[string]any{
			"code":          r.Code,
			"name":          r.Name,
			"location":      r.Location,
			"all_inclusive": r.AllInclusive,
		}
		if r.Tier != nil {
			props["tier"] = *r.Tier
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.Code,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Longitude, *r.Latitude}),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes the resolved records as a GeoJSON FeatureCollection.
func WriteGeoJSON(path string, resorts []model.Resort) error {
	data, err := json.Marshal(FeatureCollection(resorts))
	if err != nil {
		return eris.Wrap(err, "catalog: marshal geojson")
	}
	if err := fileutil.WriteAtomic(path, append(data, '\n')); err != nil {
		return eris.Wrapf(err, "catalog: write %s", path)
	}
	return nil
}
