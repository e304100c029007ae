package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shenghan/artmap/internal/model"
)

// ErrPlaceUnresolvable signals a place with no identifying information.
// Non-fatal: callers report it and proceed with whatever scopes resolved.
var ErrPlaceUnresolvable = errors.New("place has no identifying information")

const nominatimURL = "https://nominatim.openstreetmap.org"

type nominatimResult struct {
	PlaceID     int64             `json:"place_id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	Address     map[string]string `json:"address"`
}

// Geocoder resolves places and region names via the OSM Nominatim API.
// A zero BaseURL uses the public endpoint. When Boundaries is set, the
// country scope falls back to an offline point-in-polygon lookup for
// places whose address has no country component.
type Geocoder struct {
	BaseURL    string
	Boundaries *BoundaryStore
	http       *http.Client
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Geocode resolves a free-text query into a Place.
func (g *Geocoder) Geocode(ctx context.Context, query string) (*model.Place, error) {
	u := g.base() + "/search?" + url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}.Encode()

	var results []nominatimResult
	if err := g.getJSON(ctx, u, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("place %q not found", query)
	}
	return placeFromResult(results[0]), nil
}

// ResolveRegions maps each requested scope to a human-readable location
// string via one reverse geocode of the place's coordinates (or a forward
// geocode of its name when coordinates are missing). Scopes whose address
// component is absent resolve to the empty string, which downstream
// consumers treat as "skip"; one unresolved scope never blocks the others.
func (g *Geocoder) ResolveRegions(ctx context.Context, place *model.Place, scopes []model.Scope) (model.RegionNames, error) {
	names := make(model.RegionNames, len(scopes))
	for _, s := range scopes {
		names[s] = ""
	}

	if place.IsZero() {
		return names, ErrPlaceUnresolvable
	}

	address := place.Components
	if len(address) == 0 {
		result, err := g.lookup(ctx, place)
		if err != nil {
			return names, err
		}
		address = result.Address
	}

	for _, s := range scopes {
		names[s] = componentFor(address, s)
		if s == model.ScopeCountry && names[s] == "" && g.Boundaries != nil {
			names[s] = g.Boundaries.CountryAt(place.Lat, place.Lng)
		}
	}

	// Fast path for the finest scope: the place's own name stands in when
	// the geocoder has no matching component.
	if len(scopes) > 0 && names[scopes[0]] == "" {
		names[scopes[0]] = place.Name
	}

	return names, nil
}

func (g *Geocoder) lookup(ctx context.Context, place *model.Place) (*nominatimResult, error) {
	if place.Lat != 0 || place.Lng != 0 {
		u := g.base() + "/reverse?" + url.Values{
			"lat":            {strconv.FormatFloat(place.Lat, 'f', -1, 64)},
			"lon":            {strconv.FormatFloat(place.Lng, 'f', -1, 64)},
			"format":         {"jsonv2"},
			"addressdetails": {"1"},
		}.Encode()

		var result nominatimResult
		if err := g.getJSON(ctx, u, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	query := place.Name
	if query == "" {
		query = place.DisplayName
	}
	u := g.base() + "/search?" + url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}.Encode()

	var results []nominatimResult
	if err := g.getJSON(ctx, u, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("place %q not found", query)
	}
	return &results[0], nil
}

// componentFor picks the Nominatim address component matching a scope,
// trying synonyms in decreasing specificity.
func componentFor(address map[string]string, s model.Scope) string {
	var keys []string
	switch s {
	case model.ScopeNeighborhood:
		keys = []string{"neighbourhood", "quarter", "hamlet"}
	case model.ScopeSublocality:
		keys = []string{"suburb", "city_district", "borough", "village", "town", "city"}
	case model.ScopeCounty:
		keys = []string{"county", "municipality", "state_district"}
	case model.ScopeState:
		keys = []string{"state", "province", "region"}
	case model.ScopeCountry:
		keys = []string{"country"}
	}
	for _, k := range keys {
		if v := address[k]; v != "" {
			return v
		}
	}
	return ""
}

func placeFromResult(r nominatimResult) *model.Place {
	lat, _ := strconv.ParseFloat(r.Lat, 64)
	lng, _ := strconv.ParseFloat(r.Lon, 64)
	return &model.Place{
		ID:          strconv.FormatInt(r.PlaceID, 10),
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Lat:         lat,
		Lng:         lng,
		Components:  r.Address,
	}
}

func (g *Geocoder) base() string {
	if g.BaseURL != "" {
		return g.BaseURL
	}
	return nominatimURL
}

func (g *Geocoder) getJSON(ctx context.Context, reqURL string, v any) error {
	client := g.http
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "artmap/0.1 (museum artwork discovery)")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding geocoding response: %w", err)
	}
	return nil
}
