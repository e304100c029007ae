package museum

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shenghan/artmap/internal/model"
)

const (
	metSearchURL = "https://collectionapi.metmuseum.org/public/collection/v1/search"
	metObjectURL = "https://collectionapi.metmuseum.org/public/collection/v1/objects"
)

// Met is the Metropolitan Museum of Art source. Its collection API has no
// paging on search, so the objectIDs list is capped client-side.
type Met struct {
	Client    *Client
	SearchURL string
	ObjectURL string
}

func NewMet(client *Client) *Met {
	return &Met{Client: client}
}

func (m *Met) Name() string { return "met" }

type metSearchResponse struct {
	Total     int   `json:"total"`
	ObjectIDs []int `json:"objectIDs"`
}

type metObject struct {
	ObjectID          int    `json:"objectID"`
	Title             string `json:"title"`
	ArtistDisplayName string `json:"artistDisplayName"`
	ArtistDisplayBio  string `json:"artistDisplayBio"`
	ObjectDate        string `json:"objectDate"`
	ObjectBeginDate   int    `json:"objectBeginDate"`
	ObjectEndDate     int    `json:"objectEndDate"`
	Medium            string `json:"medium"`
	Dimensions        string `json:"dimensions"`
	Department        string `json:"department"`
	GalleryNumber     string `json:"GalleryNumber"`
	CreditLine        string `json:"creditLine"`
	IsPublicDomain    bool   `json:"isPublicDomain"`
	PrimaryImage      string `json:"primaryImage"`
	PrimaryImageSmall string `json:"primaryImageSmall"`
	Country           string `json:"country"`
	Message           string `json:"message"`
}

func (m *Met) SearchIDs(ctx context.Context, q SearchQuery) ([]int, error) {
	searchURL := m.SearchURL
	if searchURL == "" {
		searchURL = metSearchURL
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("hasImages", "true")
	if q.ByDate {
		params.Set("dateBegin", strconv.Itoa(q.From))
		params.Set("dateEnd", strconv.Itoa(q.To))
	}

	var resp metSearchResponse
	if err := m.Client.GetJSON(ctx, searchURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("searching %q: %w", q.Text, err)
	}

	ids := resp.ObjectIDs
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	return ids, nil
}

func (m *Met) Artwork(ctx context.Context, id int) (*model.Artwork, error) {
	objectURL := m.ObjectURL
	if objectURL == "" {
		objectURL = metObjectURL
	}

	var obj metObject
	if err := m.Client.GetJSON(ctx, fmt.Sprintf("%s/%d", objectURL, id), &obj); err != nil {
		return nil, fmt.Errorf("fetching object %d: %w", id, err)
	}
	if obj.Message != "" && obj.ObjectID == 0 {
		return nil, fmt.Errorf("object %d: %s", id, obj.Message)
	}

	artist := obj.ArtistDisplayName
	if obj.ArtistDisplayBio != "" {
		artist += "\n" + obj.ArtistDisplayBio
	}

	art := &model.Artwork{
		ID:             obj.ObjectID,
		Source:         m.Name(),
		Title:          obj.Title,
		ArtistDisplay:  artist,
		DateDisplay:    obj.ObjectDate,
		DateStart:      obj.ObjectBeginDate,
		DateEnd:        obj.ObjectEndDate,
		Medium:         obj.Medium,
		Dimensions:     obj.Dimensions,
		Department:     obj.Department,
		GalleryTitle:   obj.GalleryNumber,
		CreditLine:     obj.CreditLine,
		PlaceOfOrigin:  obj.Country,
		IsPublicDomain: obj.IsPublicDomain,
	}

	if obj.PrimaryImage == "" && obj.PrimaryImageSmall == "" {
		art.ImageLarge = PlaceholderImage
		art.ImageMedium = PlaceholderImage
		art.ImageSmall = PlaceholderImage
		art.ValidImage = PlaceholderImage
		return art, nil
	}

	// The Met serves two tiers; the medium candidate reuses the small one.
	art.ImageLarge = obj.PrimaryImage
	art.ImageMedium = obj.PrimaryImageSmall
	art.ImageSmall = obj.PrimaryImageSmall
	if art.ImageLarge == "" {
		art.ImageLarge = obj.PrimaryImageSmall
	}

	for _, candidate := range []string{art.ImageLarge, art.ImageMedium, art.ImageSmall} {
		if m.Client.Probe(ctx, candidate) {
			art.ValidImage = candidate
			break
		}
	}
	if art.ValidImage == "" {
		art.ValidImage = PlaceholderImage
	}

	return art, nil
}
