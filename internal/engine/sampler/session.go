package sampler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/shenghan/artmap/internal/engine/museum"
	"github.com/shenghan/artmap/internal/model"
)

// Notification kinds surfaced through the Notifier.
const (
	NoteRegionUnresolvable = "region_unresolvable"
	NoteIndexFetchFailed   = "index_fetch_failed"
	NoteRecordFetchFailed  = "record_fetch_failed"
)

// Notifier receives classified, user-visible failure reports. Every
// component that can fail gets one injected; there is no ambient global
// error channel.
type Notifier interface {
	Notify(kind, msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(kind, msg string)

func (f NotifierFunc) Notify(kind, msg string) { f(kind, msg) }

// RegionResolver turns a place into per-scope region names.
type RegionResolver interface {
	ResolveRegions(ctx context.Context, place *model.Place, scopes []model.Scope) (model.RegionNames, error)
}

// State is the sampling session lifecycle.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateFetching
	StateReady
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Stats tracks live counters shared between the engine and its consumer.
type Stats struct {
	Pulls       atomic.Int64
	Resolved    atomic.Int64
	Skipped     atomic.Int64
	Escalations atomic.Int64
	IndexErrors atomic.Int64
}

// Config wires one sampling session.
type Config struct {
	Scopes           []model.Scope // finest first; fixed for the session
	PageSize         int
	MaxPoolSize      int
	LimitSize        bool // carousel: bounded page that wraps instead of ending
	ByDate           bool
	From             int
	To               int
	PublicDomainOnly bool

	Source   museum.Source
	Regions  RegionResolver
	Notifier Notifier
	Logger   *log.Logger
	Stats    *Stats
}

// Session drives the escalating sampler: one selector over the active
// scope's id pool, escalating to broader scopes as pools drain, emitting
// pages of resolved artworks on demand.
//
// All mutation funnels through Start and NextPage. A Start call rolls the
// session epoch; page fills still in flight against the previous epoch
// discard their results on completion.
type Session struct {
	mu  sync.Mutex
	cfg Config

	epoch     int
	state     State
	place     *model.Place
	names     model.RegionNames
	pools     map[model.Scope][]int
	poolsInit bool
	currScope int
	sel       *Selector
	artworks  []model.Artwork
	end       bool
	filling   bool
}

func NewSession(cfg Config) *Session {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = model.MapScopes()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 6
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 96
	}
	if cfg.Stats == nil {
		cfg.Stats = &Stats{}
	}
	return &Session{cfg: cfg, state: StateIdle}
}

// SetDateFilter updates the date-range filter. The caller must Start again
// afterwards: a filter change tears down and rebuilds the session just like
// a place change.
func (s *Session) SetDateFilter(byDate bool, from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ByDate = byDate
	s.cfg.From = from
	s.cfg.To = to
}

// Start resolves regions and fetches id pools for place, resetting all
// session state. The first non-empty pool in scope order becomes the active
// selector; if every pool is empty the session is immediately exhausted.
func (s *Session) Start(ctx context.Context, place *model.Place) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.place = place
	s.names = nil
	s.pools = nil
	s.poolsInit = false
	s.currScope = 0
	s.sel = nil
	s.artworks = nil
	s.end = false
	s.state = StateResolving
	s.mu.Unlock()

	if place.IsZero() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch == epoch {
			s.end = true
			s.state = StateExhausted
		}
		return nil
	}

	names, err := s.cfg.Regions.ResolveRegions(ctx, place, s.cfg.Scopes)
	if err != nil {
		// Non-fatal: unresolved scopes are skipped, the rest proceed.
		s.notify(NoteRegionUnresolvable, err.Error())
		s.logf("REGION_ERROR place=%q err=%v", place.DisplayName, err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.names = names
	s.state = StateFetching
	s.mu.Unlock()

	pools := make(map[model.Scope][]int, len(s.cfg.Scopes))
	for _, scope := range s.cfg.Scopes {
		name := names[scope]
		if name == "" {
			continue
		}
		ids, err := s.cfg.Source.SearchIDs(ctx, museum.SearchQuery{
			Text:             name,
			Limit:            s.cfg.MaxPoolSize,
			ByDate:           s.cfg.ByDate,
			From:             s.cfg.From,
			To:               s.cfg.To,
			PublicDomainOnly: s.cfg.PublicDomainOnly,
		})
		if err != nil {
			// A failed scope is an empty pool, not a failed session.
			s.cfg.Stats.IndexErrors.Add(1)
			s.notify(NoteIndexFetchFailed, fmt.Sprintf("%s: %v", name, err))
			s.logf("INDEX_ERROR scope=%s region=%q err=%v", scope, name, err)
			continue
		}
		pools[scope] = ids
		s.logf("INDEX scope=%s region=%q ids=%d", scope, name, len(ids))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	s.pools = pools
	s.poolsInit = true

	for i, scope := range s.cfg.Scopes {
		if len(pools[scope]) > 0 {
			s.currScope = i
			s.sel = NewSelector(pools[scope])
			s.state = StateReady
			return nil
		}
	}

	s.end = true
	s.state = StateExhausted
	return nil
}

// NextPage fills and returns one page of resolved artworks. It returns
// ok=false when the session is not ready, already exhausted, or a fill is
// in progress (overlapping pulls are coalesced, never run concurrently
// against the shared selector).
func (s *Session) NextPage(ctx context.Context) ([]model.Artwork, bool) {
	s.mu.Lock()
	if s.filling || !s.poolsInit || s.end || s.sel == nil {
		s.mu.Unlock()
		return nil, false
	}
	s.filling = true
	epoch := s.epoch
	sel := s.sel
	pools := s.pools
	curr := s.currScope
	need := s.cfg.PageSize
	s.mu.Unlock()

	s.cfg.Stats.Pulls.Add(1)

	page := make([]model.Artwork, 0, need)
	wraps := 0
	reachedEnd := false

	for need > 0 && ctx.Err() == nil {
		drawn := sel.Select(1)
		if len(drawn) == 0 {
			next, ok := s.nextNonEmptyScope(pools, curr)
			if ok {
				// Escalate: append the broader pool onto the drained
				// selector. Prior ids stay in its original set for
				// accounting but are not re-drawable.
				sel.Reset(pools[s.cfg.Scopes[next]]...)
				curr = next
				s.cfg.Stats.Escalations.Add(1)
				s.logf("ESCALATE scope=%s pool=%d", s.cfg.Scopes[next], len(pools[s.cfg.Scopes[next]]))
				continue
			}
			if s.cfg.LimitSize && wraps < 1 {
				// Carousel mode wraps back to the finest non-empty pool
				// instead of terminating. One wrap per fill keeps a pool
				// smaller than the page from spinning forever.
				first, ok := s.firstNonEmptyScope(pools)
				if ok {
					sel = NewSelector(pools[s.cfg.Scopes[first]])
					curr = first
					wraps++
					continue
				}
			}
			reachedEnd = true
			break
		}

		id := drawn[0]
		art, err := s.cfg.Source.Artwork(ctx, id)
		if err != nil {
			// Skip: the id does not count toward the page.
			s.cfg.Stats.Skipped.Add(1)
			s.notify(NoteRecordFetchFailed, fmt.Sprintf("artwork %d: %v", id, err))
			s.logf("RECORD_ERROR id=%d err=%v", id, err)
			continue
		}
		art.Region = s.regionName(curr)
		page = append(page, *art)
		need--
		s.cfg.Stats.Resolved.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filling = false
	if s.epoch != epoch {
		// The session was restarted mid-fill; these are stale results.
		return nil, false
	}
	s.currScope = curr
	s.sel = sel
	if reachedEnd && !s.cfg.LimitSize {
		s.end = true
		s.state = StateExhausted
	}
	if reachedEnd && s.cfg.LimitSize && len(page) == 0 {
		s.end = true
		s.state = StateExhausted
	}
	if s.cfg.LimitSize {
		s.artworks = page
	} else {
		s.artworks = append(s.artworks, page...)
	}
	return page, true
}

// Artworks returns a copy of the session's current artwork list:
// accumulated pages in normal mode, the latest page in carousel mode.
func (s *Session) Artworks() []model.Artwork {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Artwork, len(s.artworks))
	copy(out, s.artworks)
	return out
}

// IsEnd reports whether every scope has been exhausted.
func (s *Session) IsEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveScope returns the scope currently being sampled.
func (s *Session) ActiveScope() model.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Scopes[s.currScope]
}

// RegionNames returns the resolved region name map.
func (s *Session) RegionNames() model.RegionNames {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(model.RegionNames, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// nextNonEmptyScope finds the next broader scope with a populated pool,
// skipping unpopulated ones without consuming a pull cycle.
func (s *Session) nextNonEmptyScope(pools map[model.Scope][]int, curr int) (int, bool) {
	for i := curr + 1; i < len(s.cfg.Scopes); i++ {
		if len(pools[s.cfg.Scopes[i]]) > 0 {
			return i, true
		}
	}
	return 0, false
}

func (s *Session) firstNonEmptyScope(pools map[model.Scope][]int) (int, bool) {
	for i, scope := range s.cfg.Scopes {
		if len(pools[scope]) > 0 {
			return i, true
		}
	}
	return 0, false
}

func (s *Session) regionName(scopeIdx int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil || scopeIdx >= len(s.cfg.Scopes) {
		return ""
	}
	return s.names[s.cfg.Scopes[scopeIdx]]
}

func (s *Session) notify(kind, msg string) {
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(kind, msg)
	}
}

func (s *Session) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}
