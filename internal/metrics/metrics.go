package metrics

import (
	"fmt"
	"io"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/basel-bench/basel/internal/compute"
	"github.com/basel-bench/basel/pkg/series"
	"github.com/basel-bench/basel/pkg/types"
)

// Metric names exposed by this package.
const (
	NameLimit          = "basel_limit"
	NamePartialSum     = "basel_partial_sum"
	NameGap            = "basel_gap"
	NameConverged      = "basel_converged"
	NameComputeSeconds = "basel_compute_seconds"
	NameCacheHits      = "basel_cache_hits_total"
	NameCacheMisses    = "basel_cache_misses_total"

	// LabelN carries the upper bound of the sum on every per-result series.
	LabelN = "n"
)

// Format is the exposition format Write produces.
var Format = expfmt.NewFormat(expfmt.TypeTextPlain)

// Families builds the metric families for results and the engine counters.
// Families with no samples are omitted; the text format cannot carry them.
func Families(results []*types.Result, stats compute.Stats) []*dto.MetricFamily {
	sums := gaugeFamily(NamePartialSum, "Partial sum of 1/i^2 for i = 1..n.")
	gaps := gaugeFamily(NameGap, "Distance from the partial sum to pi^2/6.")
	conv := gaugeFamily(NameConverged, "1 when the gap is within the configured tolerance.")
	secs := gaugeFamily(NameComputeSeconds, "Wall time spent summing the series.")

	for _, r := range results {
		lbl := labelN(r.N)
		sums.Metric = append(sums.Metric, gauge(r.Sum, lbl))
		gaps.Metric = append(gaps.Metric, gauge(r.Gap, lbl))
		conv.Metric = append(conv.Metric, gauge(boolValue(r.Converged), lbl))
		secs.Metric = append(secs.Metric, gauge(r.Elapsed.Seconds(), lbl))
	}

	limit := gaugeFamily(NameLimit, "Value the series converges to, pi^2/6.")
	limit.Metric = []*dto.Metric{gauge(series.Limit)}

	out := []*dto.MetricFamily{
		limit,
		counterFamily(NameCacheHits, "Computations answered from the result cache.", float64(stats.Hits)),
		counterFamily(NameCacheMisses, "Computations that ran the summation loop.", float64(stats.Misses)),
	}
	for _, mf := range []*dto.MetricFamily{sums, gaps, conv, secs} {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

// Write encodes mfs to w in the text exposition format.
func Write(w io.Writer, mfs []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, Format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func counterFamily(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func labelN(n int) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(LabelN), Value: proto.String(strconv.Itoa(n))}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
