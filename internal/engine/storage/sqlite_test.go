package storage

import (
	"path/filepath"
	"testing"

	"github.com/shenghan/artmap/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertBatchDeduplicates(t *testing.T) {
	store := newTestStore(t)

	page := []model.Artwork{
		{ID: 1, Source: "aic", Title: "Nighthawks", Region: "Chicago"},
		{ID: 2, Source: "aic", Title: "American Gothic", Region: "Chicago"},
	}
	n, err := store.InsertBatch(page)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}

	// Same ids again plus one new record: only the new one lands.
	page = append(page, model.Artwork{ID: 1, Source: "met", Title: "Wheat Field"})
	n, err = store.InsertBatch(page)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("inserted = %d, want 1 (duplicates ignored)", n)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestListRoundTrip(t *testing.T) {
	store := newTestStore(t)

	want := model.Artwork{
		ID:             208516,
		Source:         "aic",
		Title:          "Fireplace Surround",
		ArtistDisplay:  "George Washington Maher",
		DateDisplay:    "1901",
		DateStart:      1901,
		DateEnd:        1901,
		Medium:         "Oak",
		IsPublicDomain: true,
		ImageLarge:     "https://example.org/full/1686,/0/default.jpg",
		ValidImage:     "https://example.org/full/1686,/0/default.jpg",
		Region:         "Cook County",
	}
	if _, err := store.InsertBatch([]model.Artwork{want}); err != nil {
		t.Fatal(err)
	}

	got, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Title != want.Title || got[0].Region != want.Region {
		t.Fatalf("got %+v", got[0])
	}
	if !got[0].IsPublicDomain {
		t.Fatal("public domain flag lost")
	}
	if got[0].ValidImage != want.ValidImage {
		t.Fatalf("valid image = %q", got[0].ValidImage)
	}
}
