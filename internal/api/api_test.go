package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/basel-bench/basel/internal/api"
	"github.com/basel-bench/basel/internal/compute"
	"github.com/basel-bench/basel/internal/metrics"
	"github.com/basel-bench/basel/internal/metrics/metricstest"
	"github.com/basel-bench/basel/internal/store"
	"github.com/basel-bench/basel/pkg/series"
)

// --- test helpers -----------------------------------------------------------

func newHandler(maxN int) (*api.Handler, *compute.Engine) {
	eng := compute.NewEngine(store.New(5*time.Minute), 1e-3)
	return api.New(eng, maxN), eng
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/series ---------------------------------------------------------

func TestSeries_Computes(t *testing.T) {
	h, _ := newHandler(1_000_000)
	rr := get(t, h, "/api/v1/series?n=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got api.ResultResponse
	decode(t, rr, &got)
	if got.N != 2 || got.Sum != 1.25 {
		t.Errorf("got n=%d sum=%g, want n=2 sum=1.25", got.N, got.Sum)
	}
	limit := series.Limit
	if got.Gap != limit-1.25 {
		t.Errorf("gap = %g", got.Gap)
	}
	if got.Converged || got.Tolerance != 1e-3 {
		t.Errorf("converged=%v tolerance=%g", got.Converged, got.Tolerance)
	}
}

func TestSeries_ZeroN(t *testing.T) {
	h, _ := newHandler(10)
	rr := get(t, h, "/api/v1/series?n=0")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got api.ResultResponse
	decode(t, rr, &got)
	if got.Sum != 0 {
		t.Errorf("sum = %g, want 0", got.Sum)
	}
}

func TestSeries_BadRequests(t *testing.T) {
	h, _ := newHandler(1000)
	tests := []struct {
		name string
		path string
	}{
		{"missing n", "/api/v1/series"},
		{"non-integer n", "/api/v1/series?n=abc"},
		{"float n", "/api/v1/series?n=1.5"},
		{"negative n", "/api/v1/series?n=-4"},
		{"above max_n", "/api/v1/series?n=1001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := get(t, h, tc.path)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
			var e struct {
				Error string `json:"error"`
			}
			decode(t, rr, &e)
			if e.Error == "" {
				t.Error("error message empty")
			}
		})
	}
}

func TestSeries_SetMaxN(t *testing.T) {
	h, _ := newHandler(10)
	if rr := get(t, h, "/api/v1/series?n=20"); rr.Code != http.StatusBadRequest {
		t.Fatalf("before SetMaxN: status = %d, want 400", rr.Code)
	}
	h.SetMaxN(100)
	if rr := get(t, h, "/api/v1/series?n=20"); rr.Code != http.StatusOK {
		t.Fatalf("after SetMaxN: status = %d, want 200", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newHandler(10)
	for _, path := range []string{"/api/v1/series?n=1", "/api/v1/results", "/api/v1/health", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: status = %d, want 405", path, rr.Code)
		}
	}
}

// --- /api/v1/results --------------------------------------------------------

func TestResults_ListsCachedAscending(t *testing.T) {
	h, _ := newHandler(100_000)
	for _, n := range []string{"1000", "1", "10"} {
		if rr := get(t, h, "/api/v1/series?n="+n); rr.Code != http.StatusOK {
			t.Fatalf("seed n=%s: status %d", n, rr.Code)
		}
	}

	rr := get(t, h, "/api/v1/results")
	var got []api.ResultResponse
	decode(t, rr, &got)

	var ns []int
	for _, r := range got {
		ns = append(ns, r.N)
	}
	if diff := cmp.Diff([]int{1, 10, 1000}, ns); diff != "" {
		t.Errorf("results order (-want +got):\n%s", diff)
	}
	if !got[2].Converged {
		t.Errorf("n=1000 gap %g should be within 1e-3", got[2].Gap)
	}
}

func TestResults_EmptyIsArray(t *testing.T) {
	h, _ := newHandler(10)
	rr := get(t, h, "/api/v1/results")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth(t *testing.T) {
	h, _ := newHandler(50)
	get(t, h, "/api/v1/series?n=5")
	get(t, h, "/api/v1/series?n=5")

	var got api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &got)

	want := api.HealthResponse{
		State:       "ok",
		Limit:       series.Limit,
		Cached:      1,
		MaxN:        50,
		CacheHits:   1,
		CacheMisses: 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Exposition(t *testing.T) {
	h, _ := newHandler(50)
	get(t, h, "/api/v1/series?n=3")

	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	mfs, err := metricstest.Parse(rr.Body)
	if err != nil {
		t.Fatalf("parse /metrics: %v", err)
	}
	got, ok := metricstest.Lookup(mfs[metrics.NamePartialSum], metrics.LabelN, 3)
	if !ok || got != 1.0+0.25+1.0/9.0 {
		t.Errorf("basel_partial_sum{n=3} = %.17g, %v", got, ok)
	}
}
