// Package metrics renders partial-sum results in the Prometheus text
// exposition format.
//
// Families builds client_model metric families from stored results and the
// engine's cache counters, and Write encodes them with expfmt. The same
// encoding backs `basel --format prom` (node_exporter textfile collector) and
// the server's /metrics endpoint. Package metricstest decodes it again.
package metrics
