package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/basel-bench/basel/internal/compute"
	"github.com/basel-bench/basel/internal/metrics"
	"github.com/basel-bench/basel/pkg/series"
)

// Handler is the HTTP handler for /api/v1/* and /metrics.
type Handler struct {
	engine *compute.Engine
	maxN   atomic.Int64
	mux    *http.ServeMux
}

// New creates a Handler backed by eng that rejects n above maxN.
func New(eng *compute.Engine, maxN int) *Handler {
	h := &Handler{engine: eng, mux: http.NewServeMux()}
	h.maxN.Store(int64(maxN))

	h.mux.HandleFunc("/api/v1/series", h.series)
	h.mux.HandleFunc("/api/v1/results", h.results)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// SetMaxN changes the request cap, e.g. after a config reload.
func (h *Handler) SetMaxN(n int) {
	h.maxN.Store(int64(n))
}

// --- route handlers ---------------------------------------------------------

// series returns GET /api/v1/series?n=N.
func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("n")
	if raw == "" {
		jsonErr(w, http.StatusBadRequest, "query parameter n is required")
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "n must be an integer")
		return
	}
	if limit := h.maxN.Load(); int64(n) > limit {
		jsonErr(w, http.StatusBadRequest, "n exceeds max_n "+strconv.FormatInt(limit, 10))
		return
	}

	res, err := h.engine.Compute(r.Context(), n)
	switch {
	case errors.Is(err, series.ErrNegative), errors.Is(err, series.ErrTooLarge):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Warn("api: compute failed", "n", n, "err", err)
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, ToResultResponse(res))
}

// results returns GET /api/v1/results: every cached result.
func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildResults(h.engine))
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats := h.engine.Stats()
	jsonResp(w, http.StatusOK, HealthResponse{
		State:       "ok",
		Limit:       series.Limit,
		Cached:      len(h.engine.Results()),
		MaxN:        int(h.maxN.Load()),
		CacheHits:   stats.Hits,
		CacheMisses: stats.Misses,
	})
}

// metrics returns GET /metrics in the Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", string(metrics.Format))
	w.WriteHeader(http.StatusOK)
	if err := metrics.Write(w, metrics.Families(h.engine.Results(), h.engine.Stats())); err != nil {
		slog.Error("api: write metrics", "err", err)
	}
}

// --- helpers ----------------------------------------------------------------

// BuildResults returns the JSON view of every cached result. It is shared
// with the WebSocket hub.
func BuildResults(eng *compute.Engine) []ResultResponse {
	res := eng.Results()
	out := make([]ResultResponse, 0, len(res))
	for _, r := range res {
		out = append(out, ToResultResponse(r))
	}
	return out
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
