package museum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shenghan/artmap/internal/model"
)

const (
	aicBaseURL   = "https://api.artic.edu/api/v1/artworks"
	aicSearchURL = "https://api.artic.edu/api/v1/artworks/search"
	aicImageURL  = "https://www.artic.edu/iiif/2"

	aicSizeLarge  = "/full/1686,/0/default.jpg"
	aicSizeMedium = "/full/843,/0/default.jpg"
	aicSizeSmall  = "/full/400,/0/default.jpg"
)

// PlaceholderImage is the sentinel used when no candidate image resolves.
const PlaceholderImage = "sample-img.jpg"

// SearchQuery is one scope-level index query.
type SearchQuery struct {
	Text             string
	Limit            int
	ByDate           bool
	From             int
	To               int
	PublicDomainOnly bool
}

// Source is a museum collection API: an id index plus per-id records.
type Source interface {
	Name() string
	SearchIDs(ctx context.Context, q SearchQuery) ([]int, error)
	Artwork(ctx context.Context, id int) (*model.Artwork, error)
}

// AIC is the Art Institute of Chicago source.
// Zero-value URL fields fall back to the production endpoints.
type AIC struct {
	Client    *Client
	BaseURL   string
	SearchURL string
	ImageURL  string
}

func NewAIC(client *Client) *AIC {
	return &AIC{Client: client}
}

func (a *AIC) Name() string { return "aic" }

type aicSearchResponse struct {
	Data []struct {
		ID int `json:"id"`
	} `json:"data"`
}

type aicArtworkResponse struct {
	Data *aicArtworkData `json:"data"`
}

type aicArtworkData struct {
	ID             int      `json:"id"`
	Title          string   `json:"title"`
	ArtistDisplay  string   `json:"artist_display"`
	DateDisplay    string   `json:"date_display"`
	DateStart      int      `json:"date_start"`
	DateEnd        int      `json:"date_end"`
	MediumDisplay  string   `json:"medium_display"`
	Dimensions     string   `json:"dimensions"`
	Description    string   `json:"description"`
	PlaceOfOrigin  string   `json:"place_of_origin"`
	Department     string   `json:"department_title"`
	GalleryTitle   string   `json:"gallery_title"`
	CreditLine     string   `json:"credit_line"`
	IsPublicDomain bool     `json:"is_public_domain"`
	ImageID        string   `json:"image_id"`
	AltImageIDs    []string `json:"alt_image_ids"`
}

// SearchIDs runs one first-page search and extracts only the id field of
// each hit. Full records are fetched lazily per artwork, since most sampled
// ids are never displayed.
func (a *AIC) SearchIDs(ctx context.Context, q SearchQuery) ([]int, error) {
	searchURL := a.SearchURL
	if searchURL == "" {
		searchURL = aicSearchURL
	}

	params := url.Values{}
	params.Set("fields", "id")
	if q.ByDate {
		body, err := buildDateQuery(q)
		if err != nil {
			return nil, err
		}
		params.Set("params", body)
	} else {
		params.Set("q", q.Text)
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}

	var resp aicSearchResponse
	if err := a.Client.GetJSON(ctx, searchURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("searching %q: %w", q.Text, err)
	}

	ids := make([]int, 0, len(resp.Data))
	for _, hit := range resp.Data {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// buildDateQuery renders the Elasticsearch bool query the AIC search API
// expects as a JSON string in the "params" parameter: creation date within
// [From, To], optionally restricted to public-domain works.
func buildDateQuery(q SearchQuery) (string, error) {
	must := []map[string]any{
		{
			"range": map[string]any{
				"date_start": map[string]any{
					"gte": q.From,
					"lte": q.To,
				},
			},
		},
	}
	if q.PublicDomainOnly {
		must = append(must, map[string]any{
			"term": map[string]any{"is_public_domain": true},
		})
	}

	text := q.Text
	if text == "" {
		text = "*"
	}
	obj := map[string]any{
		"q": text,
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
		"limit": q.Limit,
		"page":  1,
	}

	body, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encoding date query: %w", err)
	}
	return string(body), nil
}

// Artwork fetches the full record for id and resolves a working image URL
// by probing the large, medium and small IIIF candidates in order.
func (a *AIC) Artwork(ctx context.Context, id int) (*model.Artwork, error) {
	baseURL := a.BaseURL
	if baseURL == "" {
		baseURL = aicBaseURL
	}

	var resp aicArtworkResponse
	if err := a.Client.GetJSON(ctx, fmt.Sprintf("%s/%d", baseURL, id), &resp); err != nil {
		return nil, fmt.Errorf("fetching artwork %d: %w", id, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("artwork %d: empty record", id)
	}
	d := resp.Data

	art := &model.Artwork{
		ID:             d.ID,
		Source:         a.Name(),
		Title:          d.Title,
		ArtistDisplay:  d.ArtistDisplay,
		DateDisplay:    d.DateDisplay,
		DateStart:      d.DateStart,
		DateEnd:        d.DateEnd,
		Medium:         d.MediumDisplay,
		Dimensions:     d.Dimensions,
		Description:    d.Description,
		PlaceOfOrigin:  d.PlaceOfOrigin,
		Department:     d.Department,
		GalleryTitle:   d.GalleryTitle,
		CreditLine:     d.CreditLine,
		IsPublicDomain: d.IsPublicDomain,
	}

	imageID := d.ImageID
	if imageID == "" && len(d.AltImageIDs) > 0 {
		imageID = d.AltImageIDs[0]
	}
	if imageID == "" {
		art.ImageLarge = PlaceholderImage
		art.ImageMedium = PlaceholderImage
		art.ImageSmall = PlaceholderImage
		art.ValidImage = PlaceholderImage
		return art, nil
	}

	art.ImageLarge = a.imageURL(imageID, aicSizeLarge)
	art.ImageMedium = a.imageURL(imageID, aicSizeMedium)
	art.ImageSmall = a.imageURL(imageID, aicSizeSmall)
	art.ValidImage = a.validImage(ctx, art)

	return art, nil
}

func (a *AIC) imageURL(imageID, size string) string {
	base := a.ImageURL
	if base == "" {
		base = aicImageURL
	}
	return base + "/" + imageID + size
}

// validImage probes candidates largest first and returns the first that
// responds, falling back to the placeholder when none do.
func (a *AIC) validImage(ctx context.Context, art *model.Artwork) string {
	for _, candidate := range []string{art.ImageLarge, art.ImageMedium, art.ImageSmall} {
		if a.Client.Probe(ctx, candidate) {
			return candidate
		}
	}
	return PlaceholderImage
}
