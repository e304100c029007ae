package museum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAICSearchIDs(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"data":[{"id":11},{"id":22},{"id":33}]}`))
	}))
	defer srv.Close()

	aic := &AIC{Client: NewClient("", ""), SearchURL: srv.URL}
	ids, err := aic.SearchIDs(context.Background(), SearchQuery{Text: "Chicago", Limit: 96})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "Chicago" {
		t.Fatalf("query sent = %q, want Chicago", gotQuery)
	}
	want := []int{11, 22, 33}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestAICSearchIDsDateQuery(t *testing.T) {
	var gotParams string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query().Get("params")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	aic := &AIC{Client: NewClient("", ""), SearchURL: srv.URL}
	_, err := aic.SearchIDs(context.Background(), SearchQuery{
		Text:             "Paris",
		Limit:            50,
		ByDate:           true,
		From:             1850,
		To:               1900,
		PublicDomainOnly: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	var obj struct {
		Q     string `json:"q"`
		Limit int    `json:"limit"`
		Query struct {
			Bool struct {
				Must []map[string]json.RawMessage `json:"must"`
			} `json:"bool"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(gotParams), &obj); err != nil {
		t.Fatalf("params is not valid JSON: %v\n%s", err, gotParams)
	}
	if obj.Q != "Paris" || obj.Limit != 50 {
		t.Fatalf("q=%q limit=%d, want Paris/50", obj.Q, obj.Limit)
	}
	if len(obj.Query.Bool.Must) != 2 {
		t.Fatalf("must clauses = %d, want range + public-domain term", len(obj.Query.Bool.Must))
	}
	if !strings.Contains(gotParams, `"date_start"`) {
		t.Fatalf("date range clause missing from params: %s", gotParams)
	}
}

func TestAICArtworkImageFallback(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Large tier is broken, medium works.
		if strings.Contains(r.URL.Path, "1686,") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("jpeg"))
	}))
	defer imgSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{
			"id":208516,
			"title":"Fireplace Surround",
			"artist_display":"George Washington Maher",
			"date_display":"1901",
			"image_id":"abc-123"
		}}`)
	}))
	defer apiSrv.Close()

	aic := &AIC{Client: NewClient("", ""), BaseURL: apiSrv.URL, ImageURL: imgSrv.URL}
	art, err := aic.Artwork(context.Background(), 208516)
	if err != nil {
		t.Fatal(err)
	}
	if art.Title != "Fireplace Surround" {
		t.Fatalf("title = %q", art.Title)
	}
	if art.ValidImage != art.ImageMedium {
		t.Fatalf("valid image = %q, want the medium candidate %q", art.ValidImage, art.ImageMedium)
	}
	if !strings.Contains(art.ImageLarge, "abc-123") {
		t.Fatalf("large candidate = %q, want image id in URL", art.ImageLarge)
	}
}

func TestAICArtworkNoImage(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":5,"title":"Untitled","image_id":""}}`)
	}))
	defer apiSrv.Close()

	aic := &AIC{Client: NewClient("", ""), BaseURL: apiSrv.URL}
	art, err := aic.Artwork(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if art.ValidImage != PlaceholderImage {
		t.Fatalf("valid image = %q, want placeholder", art.ValidImage)
	}
}

func TestAICArtworkAltImageFallback(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg"))
	}))
	defer imgSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":9,"title":"Alt","image_id":"","alt_image_ids":["alt-1","alt-2"]}}`)
	}))
	defer apiSrv.Close()

	aic := &AIC{Client: NewClient("", ""), BaseURL: apiSrv.URL, ImageURL: imgSrv.URL}
	art, err := aic.Artwork(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(art.ValidImage, "alt-1") {
		t.Fatalf("valid image = %q, want first alt image id", art.ValidImage)
	}
}

func TestMetSearchIDsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":5,"objectIDs":[1,2,3,4,5]}`))
	}))
	defer srv.Close()

	met := &Met{Client: NewClient("", ""), SearchURL: srv.URL}
	ids, err := met.SearchIDs(context.Background(), SearchQuery{Text: "Kyoto", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want capped to 3", ids)
	}
}
