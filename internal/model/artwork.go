package model

// Scope is a geographic granularity level, ordered finest to broadest.
// Sampling escalates to the next scope only when the current one runs dry.
type Scope int

const (
	ScopeNeighborhood Scope = iota
	ScopeSublocality
	ScopeCounty
	ScopeState
	ScopeCountry
)

func (s Scope) String() string {
	switch s {
	case ScopeNeighborhood:
		return "neighborhood"
	case ScopeSublocality:
		return "sublocality"
	case ScopeCounty:
		return "county"
	case ScopeState:
		return "state"
	case ScopeCountry:
		return "country"
	}
	return "unknown"
}

// StreetViewScopes returns the scope ladder for street-view sessions,
// which start at the finest granularity.
func StreetViewScopes() []Scope {
	return []Scope{ScopeNeighborhood, ScopeSublocality, ScopeCounty, ScopeState, ScopeCountry}
}

// MapScopes returns the scope ladder for plain 2D map sessions.
func MapScopes() []Scope {
	return []Scope{ScopeSublocality, ScopeCounty, ScopeState}
}

// Place is a resolved location. Immutable once geocoded.
type Place struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	Components  map[string]string `json:"components,omitempty"`
}

// IsZero reports whether the place carries no identifying information.
func (p *Place) IsZero() bool {
	return p == nil || (p.Name == "" && p.DisplayName == "" && p.Lat == 0 && p.Lng == 0)
}

// RegionNames maps each scope to its resolved location string.
// An empty string means the scope could not be resolved and is skipped.
type RegionNames map[Scope]string

// Artwork is the resolved record for one museum object.
type Artwork struct {
	ID             int    `json:"id"`
	Source         string `json:"source"` // "aic" or "met"
	Title          string `json:"title"`
	ArtistDisplay  string `json:"artist_display"`
	DateDisplay    string `json:"date_display"`
	DateStart      int    `json:"date_start"`
	DateEnd        int    `json:"date_end"`
	Medium         string `json:"medium"`
	Dimensions     string `json:"dimensions"`
	Description    string `json:"description"` // HTML from the source API
	PlaceOfOrigin  string `json:"place_of_origin"`
	Department     string `json:"department"`
	GalleryTitle   string `json:"gallery_title"`
	CreditLine     string `json:"credit_line"`
	IsPublicDomain bool   `json:"is_public_domain"`
	ImageLarge     string `json:"image_large"`
	ImageMedium    string `json:"image_medium"`
	ImageSmall     string `json:"image_small"`
	ValidImage     string `json:"valid_image"`
	Region         string `json:"region"` // region name whose pool produced this artwork
}

// SessionParams holds all configuration for one sampling session.
type SessionParams struct {
	// Place selection: free-text query or coordinates.
	Query string
	Lat   float64
	Lng   float64

	// Sampling
	PageSize    int  // artworks per pull
	MaxPoolSize int  // id pool cap per scope
	LimitSize   bool // carousel mode: fixed-size rotating page, wraps instead of ending
	StreetView  bool // use the finer-grained scope ladder

	// Filters
	ByDate           bool
	From             int
	To               int
	PublicDomainOnly bool

	// Upstream
	Source   string // museum source: "aic" (default) or "met"
	APIToken string
	ProxyURL string

	DBPath string
}

func (p *SessionParams) IsCoordMode() bool {
	return p.Lat != 0 || p.Lng != 0
}
