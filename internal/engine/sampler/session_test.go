package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shenghan/artmap/internal/engine/museum"
	"github.com/shenghan/artmap/internal/model"
)

// fakeSource serves canned id pools keyed by region name and synthesizes
// artwork records, with optional per-id failures and a block hook for
// concurrency tests.
type fakeSource struct {
	mu        sync.Mutex
	pools     map[string][]int
	searchErr map[string]error
	recordErr map[int]error
	block     chan struct{} // if non-nil, Artwork waits for a receive
	fetched   []int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) SearchIDs(_ context.Context, q museum.SearchQuery) ([]int, error) {
	if err := f.searchErr[q.Text]; err != nil {
		return nil, err
	}
	ids := f.pools[q.Text]
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	return ids, nil
}

func (f *fakeSource) Artwork(_ context.Context, id int) (*model.Artwork, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	if err := f.recordErr[id]; err != nil {
		return nil, err
	}
	return &model.Artwork{
		ID:         id,
		Source:     "fake",
		Title:      fmt.Sprintf("work %d", id),
		ValidImage: museum.PlaceholderImage,
	}, nil
}

type fakeRegions struct {
	names model.RegionNames
	err   error
}

func (f *fakeRegions) ResolveRegions(_ context.Context, _ *model.Place, scopes []model.Scope) (model.RegionNames, error) {
	names := make(model.RegionNames, len(scopes))
	for _, s := range scopes {
		names[s] = f.names[s]
	}
	return names, f.err
}

func testPlace() *model.Place {
	return &model.Place{Name: "Art Institute", DisplayName: "Art Institute, Chicago", Lat: 41.88, Lng: -87.62}
}

func newTestSession(src *fakeSource, regions *fakeRegions, pageSize int, limitSize bool) *Session {
	return NewSession(Config{
		Scopes:    model.MapScopes(),
		PageSize:  pageSize,
		LimitSize: limitSize,
		Source:    src,
		Regions:   regions,
	})
}

func TestEscalationOrder(t *testing.T) {
	src := &fakeSource{pools: map[string][]int{
		"Cook County": {1, 2},
		"Illinois":    {3},
	}}
	regions := &fakeRegions{names: model.RegionNames{
		model.ScopeSublocality: "",
		model.ScopeCounty:      "Cook County",
		model.ScopeState:       "Illinois",
	}}
	s := newTestSession(src, regions, 2, false)

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}
	if got := s.ActiveScope(); got != model.ScopeCounty {
		t.Fatalf("initial scope = %s, want county (first non-empty, not sublocality)", got)
	}

	page, ok := s.NextPage(context.Background())
	if !ok || len(page) != 2 {
		t.Fatalf("first page = %d artworks ok=%v, want 2", len(page), ok)
	}

	page, ok = s.NextPage(context.Background())
	if !ok {
		t.Fatalf("second pull rejected")
	}
	if len(page) != 1 {
		t.Fatalf("second page = %d artworks, want the 1 state id", len(page))
	}
	if page[0].ID != 3 {
		t.Fatalf("escalated page id = %d, want 3", page[0].ID)
	}
	if got := s.ActiveScope(); got != model.ScopeState {
		t.Fatalf("scope after escalation = %s, want state", got)
	}
	if !s.IsEnd() {
		t.Fatalf("session should be exhausted after draining all scopes")
	}
}

func TestAllPoolsEmpty(t *testing.T) {
	src := &fakeSource{pools: map[string][]int{}}
	regions := &fakeRegions{names: model.RegionNames{
		model.ScopeSublocality: "Loop",
		model.ScopeCounty:      "Cook County",
		model.ScopeState:       "Illinois",
	}}
	s := newTestSession(src, regions, 4, false)

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}
	if !s.IsEnd() {
		t.Fatalf("all-empty pools should exhaust immediately")
	}
	if s.State() != StateExhausted {
		t.Fatalf("state = %s, want exhausted", s.State())
	}
	if _, ok := s.NextPage(context.Background()); ok {
		t.Fatalf("pull on exhausted session should be rejected")
	}
	if len(s.Artworks()) != 0 {
		t.Fatalf("exhausted session should carry zero artworks")
	}
}

func TestEmptyPlace(t *testing.T) {
	s := newTestSession(&fakeSource{}, &fakeRegions{}, 4, false)
	if err := s.Start(context.Background(), &model.Place{}); err != nil {
		t.Fatal(err)
	}
	if !s.IsEnd() {
		t.Fatalf("empty place should yield an immediately-ended session")
	}
}

func TestRecordErrorSkipped(t *testing.T) {
	src := &fakeSource{
		pools:     map[string][]int{"Cook County": {1, 2, 3}},
		recordErr: map[int]error{2: errors.New("rate_limited")},
	}
	regions := &fakeRegions{names: model.RegionNames{model.ScopeCounty: "Cook County"}}
	stats := &Stats{}
	s := NewSession(Config{
		Scopes:   model.MapScopes(),
		PageSize: 2,
		Source:   src,
		Regions:  regions,
		Stats:    stats,
	})

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}
	page, ok := s.NextPage(context.Background())
	if !ok {
		t.Fatalf("pull rejected")
	}
	for _, art := range page {
		if art.ID == 2 {
			t.Fatalf("failing id 2 must not appear in the page")
		}
	}
	if len(page) != 2 {
		t.Fatalf("page = %d artworks, want 2 (skip must not shrink the page)", len(page))
	}
	if got := stats.Skipped.Load(); got != 1 {
		t.Fatalf("skipped = %d, want 1", got)
	}
	if got := stats.Resolved.Load(); got != 2 {
		t.Fatalf("resolved = %d, want 2", got)
	}
}

func TestNoRepeatAcrossPages(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	src := &fakeSource{pools: map[string][]int{"Illinois": pool}}
	regions := &fakeRegions{names: model.RegionNames{model.ScopeState: "Illinois"}}
	s := newTestSession(src, regions, 3, false)

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}

	seen := map[int]bool{}
	for !s.IsEnd() {
		page, ok := s.NextPage(context.Background())
		if !ok {
			t.Fatalf("pull rejected before exhaustion")
		}
		for _, art := range page {
			if seen[art.ID] {
				t.Fatalf("id %d emitted twice", art.ID)
			}
			seen[art.ID] = true
		}
	}
	if len(seen) != len(pool) {
		t.Fatalf("emitted %d distinct ids, want %d", len(seen), len(pool))
	}
}

func TestIndexFailureIsolatedPerScope(t *testing.T) {
	src := &fakeSource{
		pools:     map[string][]int{"Illinois": {7}},
		searchErr: map[string]error{"Cook County": errors.New("boom")},
	}
	regions := &fakeRegions{names: model.RegionNames{
		model.ScopeCounty: "Cook County",
		model.ScopeState:  "Illinois",
	}}

	var notes []string
	s := NewSession(Config{
		Scopes:   model.MapScopes(),
		PageSize: 1,
		Source:   src,
		Regions:  regions,
		Notifier: NotifierFunc(func(kind, _ string) { notes = append(notes, kind) }),
	})

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}
	if got := s.ActiveScope(); got != model.ScopeState {
		t.Fatalf("active scope = %s, want state (county query failed → empty pool)", got)
	}
	if len(notes) != 1 || notes[0] != NoteIndexFetchFailed {
		t.Fatalf("notifications = %v, want one index_fetch_failed", notes)
	}
}

func TestCarouselWraps(t *testing.T) {
	src := &fakeSource{pools: map[string][]int{"Illinois": {1, 2, 3}}}
	regions := &fakeRegions{names: model.RegionNames{model.ScopeState: "Illinois"}}
	s := newTestSession(src, regions, 2, true)

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}

	page1, ok := s.NextPage(context.Background())
	if !ok || len(page1) != 2 {
		t.Fatalf("first carousel page = %d ok=%v, want 2", len(page1), ok)
	}

	// One id remains; the carousel wraps back to the pool instead of ending.
	page2, ok := s.NextPage(context.Background())
	if !ok || len(page2) != 2 {
		t.Fatalf("wrapped page = %d ok=%v, want 2", len(page2), ok)
	}
	if s.IsEnd() {
		t.Fatalf("carousel session must not terminate on wrap")
	}
	if got := len(s.Artworks()); got != 2 {
		t.Fatalf("carousel artwork list = %d, want bounded to page size 2", got)
	}
}

func TestOverlappingPullsCoalesced(t *testing.T) {
	src := &fakeSource{
		pools: map[string][]int{"Illinois": {1, 2}},
		block: make(chan struct{}),
	}
	regions := &fakeRegions{names: model.RegionNames{model.ScopeState: "Illinois"}}
	s := newTestSession(src, regions, 2, false)

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		s.NextPage(context.Background())
		close(done)
	}()

	// Wait for the fill to park inside the blocked record fetch.
	time.Sleep(50 * time.Millisecond)
	if _, ok := s.NextPage(context.Background()); ok {
		t.Fatalf("overlapping pull must be coalesced, not run concurrently")
	}

	src.block <- struct{}{}
	src.block <- struct{}{}
	<-done

	if got := len(s.Artworks()); got != 2 {
		t.Fatalf("artworks after fill = %d, want 2", got)
	}
}

func TestStaleFillDiscarded(t *testing.T) {
	src := &fakeSource{
		pools: map[string][]int{"Illinois": {1}},
		block: make(chan struct{}),
	}
	regions := &fakeRegions{names: model.RegionNames{model.ScopeState: "Illinois"}}
	s := newTestSession(src, regions, 1, false)

	if err := s.Start(context.Background(), testPlace()); err != nil {
		t.Fatal(err)
	}

	type result struct {
		page []model.Artwork
		ok   bool
	}
	resCh := make(chan result, 1)
	go func() {
		page, ok := s.NextPage(context.Background())
		resCh <- result{page, ok}
	}()

	time.Sleep(50 * time.Millisecond)

	// Roll the session while the fill is parked in the record fetch.
	if err := s.Start(context.Background(), &model.Place{}); err != nil {
		t.Fatal(err)
	}

	src.block <- struct{}{}
	res := <-resCh
	if res.ok {
		t.Fatalf("stale fill must report ok=false")
	}
	if got := len(s.Artworks()); got != 0 {
		t.Fatalf("stale fill leaked %d artworks into the new session", got)
	}
}
