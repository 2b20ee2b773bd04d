// Package prometheus exposes authguard counters through a
// [github.com/prometheus/client_golang/prometheus.Collector].
//
// Counters are named authguard_*_total; the latency histograms are
// authguard_validate_latency_seconds and authguard_score_latency_seconds.
// When a Sampler is supplied, Redis pool and dispatcher gauges are added.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry; callers own registration.
//   - Mutate engine state.
package prometheus
