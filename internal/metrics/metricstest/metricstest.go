// Package metricstest decodes Prometheus text expositions so tests can
// assert on the samples a command or handler wrote.
package metricstest

import (
	"fmt"
	"io"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Parse decodes a text exposition from r into metric families keyed by name.
// A partial result with a non-fatal parse warning is still returned
// successfully.
func Parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("metricstest: parse text exposition: %w", err)
	}
	return mfs, nil
}

// Lookup returns the value of the sample in mf whose label is n, or of the
// single unlabelled sample when n < 0.
func Lookup(mf *dto.MetricFamily, label string, n int) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	want := strconv.Itoa(n)
	for _, m := range mf.GetMetric() {
		if n < 0 && len(m.GetLabel()) == 0 {
			return value(m), true
		}
		for _, lp := range m.GetLabel() {
			if n >= 0 && lp.GetName() == label && lp.GetValue() == want {
				return value(m), true
			}
		}
	}
	return 0, false
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
