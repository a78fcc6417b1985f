// Package availability holds one recruiter's offered intervals. A Store is
// the only mutable state shared across that recruiter's sessions, so every
// operation is serialized by a single mutex and every read hands out copies:
// a reader sees either the pre-Replace set or the post-Replace set, never a
// partial mix.
package availability

import (
	"sync"
	"time"

	"schedmatch/internal/domain"
)

type Store struct {
	mu        sync.Mutex
	intervals []domain.Interval
}

func NewStore() *Store {
	return &Store{}
}

// Seed installs intervals unconditionally. Used at engine start with the
// default generator output.
func (s *Store) Seed(intervals []domain.Interval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append([]domain.Interval(nil), intervals...)
}

// Replace swaps the whole set for fresher data and returns how many
// intervals were installed. An empty refresh is a no-op returning 0:
// stale-but-present availability beats an empty set, and the return value
// lets callers tell "refresh returned nothing" from "replaced with N".
func (s *Store) Replace(intervals []domain.Interval) int {
	if len(intervals) == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append([]domain.Interval(nil), intervals...)
	return len(s.intervals)
}

// Query returns free intervals whose start falls within
// [rangeStart, rangeEnd], inclusive on both ends, in store order.
func (s *Store) Query(rangeStart, rangeEnd time.Time) []domain.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Interval, 0, len(s.intervals))
	for _, iv := range s.intervals {
		if !iv.Free {
			continue
		}
		if iv.Start.Before(rangeStart) || iv.Start.After(rangeEnd) {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Snapshot returns a point-in-time copy of the whole set, booked intervals
// included, in store order.
func (s *Store) Snapshot() []domain.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Interval(nil), s.intervals...)
}

// Book marks the first interval whose (start, end) exactly equals the
// arguments as booked. Idempotent: only the first free-to-booked transition
// returns true; booking an already-booked or unknown interval is a no-op
// returning false. Concurrent callers racing for one interval get exactly
// one winner.
func (s *Store) Book(start, end time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.intervals {
		if !s.intervals[i].SameIdentity(start, end) {
			continue
		}
		if !s.intervals[i].Free {
			return false
		}
		s.intervals[i].Free = false
		return true
	}
	return false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intervals)
}

// FreeCount reports how many intervals are still bookable.
func (s *Store) FreeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, iv := range s.intervals {
		if iv.Free {
			n++
		}
	}
	return n
}
