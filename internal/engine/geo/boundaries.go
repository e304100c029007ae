package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// BoundaryStore answers country lookups from a Natural Earth countries
// geojson file. It backs the Country scope when the geocoder is unreachable:
// a place with coordinates can still resolve its country offline.
type BoundaryStore struct {
	features map[string]*geojson.Feature // key: lowercase country name or ISO code
}

// NewBoundaryStore loads boundaries from a geojson file path.
func NewBoundaryStore(path string) (*BoundaryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading boundaries file: %w", err)
	}

	fc := &geojson.FeatureCollection{}
	if err := json.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	store := &BoundaryStore{
		features: make(map[string]*geojson.Feature),
	}

	for _, f := range fc.Features {
		if name, ok := f.Properties["NAME"].(string); ok {
			store.features[strings.ToLower(name)] = f
		}
		if iso2, ok := f.Properties["ISO_A2"].(string); ok {
			store.features[strings.ToLower(iso2)] = f
		}
		if iso3, ok := f.Properties["ISO_A3"].(string); ok {
			store.features[strings.ToLower(iso3)] = f
		}
		if admin, ok := f.Properties["ADMIN"].(string); ok {
			store.features[strings.ToLower(admin)] = f
		}
	}

	return store, nil
}

// CountryAt returns the name of the country containing the given point,
// or "" when no boundary matches.
func (bs *BoundaryStore) CountryAt(lat, lng float64) string {
	point := orb.Point{lng, lat} // orb.Point is [lng, lat]
	seen := make(map[*geojson.Feature]bool)
	for _, f := range bs.features {
		if seen[f] {
			continue
		}
		seen[f] = true
		if polygonContains(f.Geometry, point) {
			if name, ok := f.Properties["NAME"].(string); ok {
				return name
			}
		}
	}
	return ""
}

// CountryPolygon returns the MultiPolygon for a country by name or ISO code.
func (bs *BoundaryStore) CountryPolygon(country string) (orb.MultiPolygon, error) {
	f, ok := bs.features[strings.ToLower(country)]
	if !ok {
		return nil, fmt.Errorf("country %q not found in boundaries", country)
	}

	switch g := f.Geometry.(type) {
	case orb.MultiPolygon:
		return g, nil
	case orb.Polygon:
		return orb.MultiPolygon{g}, nil
	default:
		return nil, fmt.Errorf("unexpected geometry type %T for %q", g, country)
	}
}

func polygonContains(g orb.Geometry, point orb.Point) bool {
	switch geom := g.(type) {
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, point)
	case orb.Polygon:
		return planar.PolygonContains(geom, point)
	}
	return false
}
