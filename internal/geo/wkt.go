// Package geo turns the WKT polygons stored in the snapshot dataset into GeoJSON for the choropleth.
package geo

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"heartprev/internal/errors"
)

// ParseWKT parses POLYGON and MULTIPOLYGON text, optionally prefixed with SRID=...;
func ParseWKT(text string) (orb.Geometry, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, ";"); i >= 0 && strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		s = strings.TrimSpace(s[i+1:])
	}

	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, errors.DataFormat("invalid geometry", err)
	}
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return g, nil
	default:
		return nil, errors.DataFormat("unsupported geometry "+g.GeoJSONType(), nil)
	}
}

// NewFeatureCollection pairs region ids with their geometries
func NewFeatureCollection(ids []string, geometries []orb.Geometry, names []string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, id := range ids {
		f := geojson.NewFeature(geometries[i])
		f.ID = id
		f.Properties["code"] = id
		if i < len(names) {
			f.Properties["name"] = names[i]
		}
		fc.Append(f)
	}
	return fc
}

// Projected reports whether any coordinate lies outside longitude/latitude bounds, which means
// the geometry uses a projected grid and cannot be drawn on a geographic basemap.
func Projected(g orb.Geometry) bool {
	if g == nil {
		return false
	}
	b := g.Bound()
	if b.IsEmpty() {
		return false
	}
	return b.Min.X() < -180 || b.Max.X() > 180 || b.Min.Y() < -90 || b.Max.Y() > 90
}
