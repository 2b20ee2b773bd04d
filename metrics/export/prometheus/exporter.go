package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/metrics/export/internaldefs"
)

// MetricsSource supplies counter snapshots. *authguard.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() authguard.MetricsSnapshot
	AuditDropped() uint64
}

// SampleSource supplies the latest health sample. *authguard.Sampler
// implements it.
type SampleSource interface {
	Latest() authguard.Sample
}

// Collector is a prometheus.Collector over engine counters and, optionally,
// sampler gauges. Values are read at scrape time.
type Collector struct {
	source  MetricsSource
	sampler SampleSource

	counters     []*prometheus.Desc
	histograms   []*prometheus.Desc
	auditDropped *prometheus.Desc

	redisUp         *prometheus.Desc
	redisLatency    *prometheus.Desc
	redisTotalConns *prometheus.Desc
	redisIdleConns  *prometheus.Desc
	redisTimeouts   *prometheus.Desc
	auditPending    *prometheus.Desc
	notifyDropped   *prometheus.Desc
}

// NewCollector builds a collector over source. sampler may be nil.
func NewCollector(source MetricsSource, sampler SampleSource) *Collector {
	c := &Collector{
		source:       source,
		sampler:      sampler,
		auditDropped: prometheus.NewDesc("authguard_audit_dropped_total", "Security events dropped under backpressure.", nil, nil),

		redisUp:         prometheus.NewDesc("authguard_redis_up", "Whether the last Redis ping succeeded.", nil, nil),
		redisLatency:    prometheus.NewDesc("authguard_redis_ping_seconds", "Latency of the last Redis ping.", nil, nil),
		redisTotalConns: prometheus.NewDesc("authguard_redis_pool_total_conns", "Connections in the Redis pool.", nil, nil),
		redisIdleConns:  prometheus.NewDesc("authguard_redis_pool_idle_conns", "Idle connections in the Redis pool.", nil, nil),
		redisTimeouts:   prometheus.NewDesc("authguard_redis_pool_timeouts", "Redis pool wait timeouts.", nil, nil),
		auditPending:    prometheus.NewDesc("authguard_audit_pending", "Security events waiting for delivery.", nil, nil),
		notifyDropped:   prometheus.NewDesc("authguard_notify_dropped", "Notifications dropped by the dispatcher.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	for _, d := range c.histograms {
		ch <- d
	}
	ch <- c.auditDropped
	if c.sampler != nil {
		ch <- c.redisUp
		ch <- c.redisLatency
		ch <- c.redisTotalConns
		ch <- c.redisIdleConns
		ch <- c.redisTimeouts
		ch <- c.auditPending
		ch <- c.notifyDropped
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.counters[i], prometheus.CounterValue, float64(snap.Counters[def.ID]))
	}
	for i, def := range internaldefs.HistogramDefs {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for j, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cum[j]
		}
		// Bucket counts only; the core histograms keep no sum.
		ch <- prometheus.MustNewConstHistogram(c.histograms[i], cum[len(cum)-1], 0, buckets)
	}
	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))

	if c.sampler == nil {
		return
	}
	s := c.sampler.Latest()
	up := 0.0
	if s.RedisUp {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(c.redisUp, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(c.redisLatency, prometheus.GaugeValue, s.RedisLatency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.redisTotalConns, prometheus.GaugeValue, float64(s.RedisPool.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.redisIdleConns, prometheus.GaugeValue, float64(s.RedisPool.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.redisTimeouts, prometheus.GaugeValue, float64(s.RedisPool.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.auditPending, prometheus.GaugeValue, float64(s.AuditPending))
	ch <- prometheus.MustNewConstMetric(c.notifyDropped, prometheus.GaugeValue, float64(s.NotifyDropped))
}

// Handler serves the collector from a private registry, so nothing is added
// to the global default registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
