package compute

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/basel-bench/basel/internal/store"
	"github.com/basel-bench/basel/pkg/series"
	"github.com/basel-bench/basel/pkg/types"
)

// Stats counts how Compute calls were served.
type Stats struct {
	Hits   uint64 // answered from the store
	Misses uint64 // ran the summation
}

// Engine computes and caches partial sums.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	store *store.Store
	group singleflight.Group
	now   func() time.Time // injectable for deterministic tests

	mu        sync.RWMutex
	tolerance float64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewEngine returns an Engine that caches into st and judges convergence
// against tolerance.
func NewEngine(st *store.Store, tolerance float64) *Engine {
	return &Engine{store: st, tolerance: tolerance, now: time.Now}
}

// Compute returns the partial sum for n.
//
// When several goroutines ask for the same uncached n at once, only one
// summation runs. It is detached from every caller's cancellation: a caller
// whose ctx ends stops waiting and gets ctx.Err(), while the summation keeps
// going for the remaining waiters and its result is still cached.
func (e *Engine) Compute(ctx context.Context, n int) (*types.Result, error) {
	if err := series.Validate(n); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}

	tol := e.Tolerance()
	if ent, ok := e.store.Get(n); ok {
		e.hits.Add(1)
		return judge(ent.Result, tol), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compute: n=%d: %w", n, err)
	}

	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(strconv.Itoa(n), func() (interface{}, error) {
		return e.run(detached, n)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("compute: n=%d: %w", n, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("compute: shared in-flight summation", "n", n)
		}
		return judge(res.Val.(*types.Result), tol), nil
	}
}

// Warm computes each term in order, stopping at the first failure.
func (e *Engine) Warm(ctx context.Context, terms []int) error {
	for _, n := range terms {
		r, err := e.Compute(ctx, n)
		if err != nil {
			return fmt.Errorf("compute: warm n=%d: %w", n, err)
		}
		slog.Info("compute: warmed", "n", n, "sum", r.Sum, "gap", r.Gap, "elapsed", r.Elapsed)
	}
	return nil
}

// Results returns every cached result in ascending n, judged against the
// current tolerance.
func (e *Engine) Results() []*types.Result {
	tol := e.Tolerance()
	raw := e.store.Results()
	out := make([]*types.Result, len(raw))
	for i, r := range raw {
		out[i] = judge(r, tol)
	}
	return out
}

// Tolerance returns the current convergence tolerance.
func (e *Engine) Tolerance() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tolerance
}

// SetTolerance replaces the convergence tolerance used by later calls.
func (e *Engine) SetTolerance(tol float64) {
	e.mu.Lock()
	e.tolerance = tol
	e.mu.Unlock()
}

// Stats returns the cache hit and miss counters.
func (e *Engine) Stats() Stats {
	return Stats{Hits: e.hits.Load(), Misses: e.misses.Load()}
}

// run performs the summation and stores the raw result.
func (e *Engine) run(ctx context.Context, n int) (*types.Result, error) {
	e.misses.Add(1)

	start := e.now()
	sum, err := series.SumContext(ctx, n)
	if err != nil {
		slog.Warn("compute: summation interrupted", "n", n, "err", err)
		return nil, fmt.Errorf("compute: %w", err)
	}
	end := e.now()

	r := &types.Result{
		N:          n,
		Sum:        sum,
		Gap:        series.Limit - sum,
		Elapsed:    end.Sub(start),
		ComputedAt: end,
	}
	e.store.Put(r)
	return r, nil
}

// judge returns a copy of r with the verdict for tol filled in. The stored
// result is never mutated.
func judge(r *types.Result, tol float64) *types.Result {
	out := *r
	out.Tolerance = tol
	out.Converged = out.Gap <= tol
	return &out
}
