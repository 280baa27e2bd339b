package api

import (
	"time"

	"github.com/basel-bench/basel/pkg/types"
)

// ResultResponse is the JSON form of one computed partial sum.
type ResultResponse struct {
	N          int     `json:"n"`
	Sum        float64 `json:"sum"`
	Gap        float64 `json:"gap"`
	Tolerance  float64 `json:"tolerance"`
	Converged  bool    `json:"converged"`
	ElapsedMs  float64 `json:"elapsed_ms"`
	ComputedAt string  `json:"computed_at"` // RFC3339
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State       string  `json:"state"`
	Limit       float64 `json:"limit"`
	Cached      int     `json:"cached"`
	MaxN        int     `json:"max_n"`
	CacheHits   uint64  `json:"cache_hits"`
	CacheMisses uint64  `json:"cache_misses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ToResultResponse maps a Result to its JSON representation.
func ToResultResponse(r *types.Result) ResultResponse {
	return ResultResponse{
		N:          r.N,
		Sum:        r.Sum,
		Gap:        r.Gap,
		Tolerance:  r.Tolerance,
		Converged:  r.Converged,
		ElapsedMs:  float64(r.Elapsed) / float64(time.Millisecond),
		ComputedAt: r.ComputedAt.UTC().Format(time.RFC3339),
	}
}
