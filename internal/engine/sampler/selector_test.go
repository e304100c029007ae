package sampler

import (
	"sort"
	"testing"
)

func sorted(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}

func equalSets(a, b []int) bool {
	a, b = sorted(a), sorted(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectNoRepeat(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	s := NewSelector(ids)

	seen := map[int]bool{}
	for i := 0; i < len(ids); i++ {
		got := s.Select(1)
		if len(got) != 1 {
			t.Fatalf("draw %d: got %d ids, want 1", i, len(got))
		}
		id := got[0]
		if seen[id] {
			t.Fatalf("id %d drawn twice", id)
		}
		seen[id] = true

		found := false
		for _, orig := range ids {
			if orig == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("drawn id %d not in original set", id)
		}
	}
	if s.HasAvailable() {
		t.Fatalf("selector should be empty after drawing everything")
	}
}

func TestSelectConservation(t *testing.T) {
	ids := []int{10, 20, 30, 40, 50}
	s := NewSelector(ids)

	drawn := 0
	for s.HasAvailable() {
		drawn += len(s.Select(2))
		if s.RemainingCount()+drawn != len(ids) {
			t.Fatalf("conservation violated: remaining=%d drawn=%d original=%d",
				s.RemainingCount(), drawn, len(ids))
		}
	}
	if drawn != len(ids) {
		t.Fatalf("drew %d ids, want %d", drawn, len(ids))
	}
}

func TestSelectOvershoot(t *testing.T) {
	s := NewSelector([]int{1, 2, 3})
	got := s.Select(5)
	if !equalSets(got, []int{1, 2, 3}) {
		t.Fatalf("overshoot select = %v, want all of [1 2 3]", got)
	}
	if s.RemainingCount() != 0 {
		t.Fatalf("available not emptied, %d left", s.RemainingCount())
	}
}

func TestSelectNonPositive(t *testing.T) {
	s := NewSelector([]int{1, 2})
	if got := s.Select(0); len(got) != 0 {
		t.Fatalf("Select(0) = %v, want empty", got)
	}
	if got := s.Select(-3); len(got) != 0 {
		t.Fatalf("Select(-3) = %v, want empty", got)
	}
	if s.RemainingCount() != 2 {
		t.Fatalf("non-positive select consumed ids")
	}
}

func TestResetRestoresOriginal(t *testing.T) {
	ids := []int{7, 8, 9}
	s := NewSelector(ids)
	s.Select(2)

	s.Reset()
	if !equalSets(s.Available(), ids) {
		t.Fatalf("after Reset() available = %v, want %v", s.Available(), ids)
	}
}

func TestResetAppends(t *testing.T) {
	s := NewSelector([]int{1, 2})
	s.Select(1)

	s.Reset(3, 4)
	if !equalSets(s.Original(), []int{1, 2, 3, 4}) {
		t.Fatalf("original after append = %v, want {1,2,3,4}", s.Original())
	}
	// The already drawn id must not come back: available is one survivor plus
	// the two appended ids.
	if got := s.RemainingCount(); got != 3 {
		t.Fatalf("available count after append = %d, want 3", got)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := NewSelector([]int{1, 2, 3})
	orig := s.Original()
	orig[0] = 99
	if s.Original()[0] == 99 {
		t.Fatalf("Original() leaked internal state")
	}
	avail := s.Available()
	avail[0] = 99
	if s.Available()[0] == 99 {
		t.Fatalf("Available() leaked internal state")
	}
}

func TestEmptySelector(t *testing.T) {
	s := NewSelector(nil)
	if s.HasAvailable() {
		t.Fatalf("empty selector reports availability")
	}
	if got := s.Select(1); len(got) != 0 {
		t.Fatalf("Select on empty selector = %v, want empty", got)
	}
}
