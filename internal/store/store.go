package store

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/basel-bench/basel/pkg/types"
)

// Entry pairs a computed partial sum with the moment it entered the cache.
type Entry struct {
	Result    *types.Result
	UpdatedAt time.Time
}

// Store memoises partial sums by their upper bound n. A sum never changes
// for a given n, so the TTL only bounds memory: a result older than the TTL
// is treated as absent and later dropped by Evict.
type Store struct {
	mu      sync.RWMutex
	results map[int]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// New returns an empty Store whose results live for ttl.
func New(ttl time.Duration) *Store {
	return &Store{results: map[int]*Entry{}, ttl: ttl, now: time.Now}
}

// Put caches r under r.N, replacing any earlier result for the same bound.
// r is shared with readers afterwards and must be treated as immutable.
func (s *Store) Put(r *types.Result) {
	ent := &Entry{Result: r, UpdatedAt: s.now()}
	s.mu.Lock()
	s.results[r.N] = ent
	s.mu.Unlock()
}

// Get returns the cached result for n if it is still within its TTL.
func (s *Store) Get(n int) (*Entry, bool) {
	s.mu.RLock()
	ent, ok := s.results[n]
	s.mu.RUnlock()
	if !ok || s.expired(ent, s.now()) {
		return nil, false
	}
	return ent, true
}

// List returns the unexpired results ordered by n.
func (s *Store) List() []*Entry {
	now := s.now()
	s.mu.RLock()
	live := make([]*Entry, 0, len(s.results))
	for _, ent := range s.results {
		if !s.expired(ent, now) {
			live = append(live, ent)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(live, func(a, b *Entry) int { return a.Result.N - b.Result.N })
	return live
}

// Results is List without the bookkeeping.
func (s *Store) Results() []*types.Result {
	entries := s.List()
	out := make([]*types.Result, len(entries))
	for i, ent := range entries {
		out[i] = ent.Result
	}
	return out
}

// Count reports how many bounds are held, expired ones included until Evict
// runs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// TTL is how long a result is served after Put.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Evict drops every result that has expired as of now and reports how many
// went.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.results)
	maps.DeleteFunc(s.results, func(_ int, ent *Entry) bool {
		return s.expired(ent, now)
	})
	return before - len(s.results)
}

// Run calls Evict on a ticker until ctx ends. The period is half the TTL,
// never shorter than a second.
func (s *Store) Run(ctx context.Context) {
	t := time.NewTicker(max(s.ttl/2, time.Second))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if dropped := s.Evict(now); dropped > 0 {
				slog.Debug("store: dropped expired sums", "count", dropped, "remaining", s.Count())
			}
		}
	}
}

// expired reports whether ent is at least one TTL old at now.
func (s *Store) expired(ent *Entry, now time.Time) bool {
	return !ent.UpdatedAt.After(now.Add(-s.ttl))
}
