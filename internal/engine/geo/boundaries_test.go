package geo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenghan/artmap/internal/model"
)

// A square around the origin standing in for a country boundary.
const testGeojson = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"NAME": "Squareland", "ISO_A2": "SQ", "ISO_A3": "SQL", "ADMIN": "Squareland"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[-1,-1],[1,-1],[1,1],[-1,1],[-1,-1]]]
		}
	}]
}`

func newTestBoundaryStore(t *testing.T) *BoundaryStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "countries.geojson")
	if err := os.WriteFile(path, []byte(testGeojson), 0644); err != nil {
		t.Fatal(err)
	}
	bs, err := NewBoundaryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return bs
}

func TestCountryAt(t *testing.T) {
	bs := newTestBoundaryStore(t)

	if got := bs.CountryAt(0.5, 0.5); got != "Squareland" {
		t.Fatalf("CountryAt inside = %q, want Squareland", got)
	}
	if got := bs.CountryAt(5, 5); got != "" {
		t.Fatalf("CountryAt outside = %q, want empty", got)
	}
}

func TestCountryPolygonByISOCode(t *testing.T) {
	bs := newTestBoundaryStore(t)

	for _, key := range []string{"Squareland", "sq", "SQL"} {
		poly, err := bs.CountryPolygon(key)
		if err != nil {
			t.Fatalf("CountryPolygon(%q): %v", key, err)
		}
		if len(poly) != 1 {
			t.Fatalf("polygon count = %d", len(poly))
		}
	}

	if _, err := bs.CountryPolygon("atlantis"); err == nil {
		t.Fatal("expected error for unknown country")
	}
}

func TestResolveRegionsOfflineCountryFallback(t *testing.T) {
	g := NewGeocoder()
	g.Boundaries = newTestBoundaryStore(t)

	place := &model.Place{
		ID:   "1",
		Name: "Center Square",
		Lat:  0.2,
		Lng:  0.3,
		Components: map[string]string{
			"suburb": "Center Square",
			"state":  "Middle",
		},
	}

	names, err := g.ResolveRegions(context.Background(), place, model.StreetViewScopes())
	if err != nil {
		t.Fatal(err)
	}
	if names[model.ScopeCountry] != "Squareland" {
		t.Fatalf("country = %q, want offline fallback Squareland", names[model.ScopeCountry])
	}
}
