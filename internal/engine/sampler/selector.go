package sampler

import "math/rand/v2"

// Selector draws ids uniformly at random without replacement.
// An id handed out by Select is never handed out again until Reset.
type Selector struct {
	original  []int
	available []int
}

// NewSelector copies ids into both the original and available sets.
func NewSelector(ids []int) *Selector {
	s := &Selector{
		original:  make([]int, len(ids)),
		available: make([]int, len(ids)),
	}
	copy(s.original, ids)
	copy(s.available, ids)
	return s
}

// Select draws up to n ids. If n exceeds what is available, all remaining
// ids are returned and the available set is emptied. Each draw removes the
// id from the available set, so a single call never repeats an id.
// The returned order is the draw order, not the input order.
func (s *Selector) Select(n int) []int {
	if n <= 0 {
		return nil
	}

	if n >= len(s.available) {
		out := s.available
		s.available = nil
		return out
	}

	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx := rand.IntN(len(s.available))
		out = append(out, s.available[idx])
		s.available[idx] = s.available[len(s.available)-1]
		s.available = s.available[:len(s.available)-1]
	}
	return out
}

// Reset with ids appends them to both the original and available sets; the
// escalating session relies on this to chain the next scope's pool onto an
// already-drained selector without reviving previously drawn ids.
// Reset with no ids restores the available set to a copy of the original,
// making everything selectable again.
func (s *Selector) Reset(ids ...int) {
	if len(ids) > 0 {
		s.original = append(s.original, ids...)
		s.available = append(s.available, ids...)
		return
	}
	s.available = make([]int, len(s.original))
	copy(s.available, s.original)
}

// RemainingCount returns how many ids are still drawable.
func (s *Selector) RemainingCount() int {
	return len(s.available)
}

// HasAvailable reports whether any id is still drawable.
func (s *Selector) HasAvailable() bool {
	return len(s.available) > 0
}

// Original returns a copy of the original id set.
func (s *Selector) Original() []int {
	out := make([]int, len(s.original))
	copy(out, s.original)
	return out
}

// Available returns a copy of the ids still drawable.
func (s *Selector) Available() []int {
	out := make([]int, len(s.available))
	copy(out, s.available)
	return out
}
