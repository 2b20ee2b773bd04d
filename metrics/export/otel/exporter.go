package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
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

type observedCounter struct {
	id         authguard.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      authguard.MetricID
	buckets [authguard.HistogramBucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type sampleGauges struct {
	redisUp    metric.Int64ObservableGauge
	totalConns metric.Int64ObservableGauge
	pending    metric.Int64ObservableGauge
}

// Exporter registers observable instruments that read engine counters on
// every collection cycle.
type Exporter struct {
	source       MetricsSource
	sampler      SampleSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	gauges       *sampleGauges
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithSampler adds Redis and dispatcher gauges read from s.
func WithSampler(s SampleSource) Option {
	return func(e *Exporter) { e.sampler = s }
}

// NewExporter registers the authguard instruments on meter.
func NewExporter(meter metric.Meter, source MetricsSource, opts ...Option) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}
	for _, opt := range opts {
		opt(exporter)
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+4)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authguard_audit_dropped_total",
		metric.WithDescription("Security events dropped under backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if exporter.sampler != nil {
		g := &sampleGauges{}
		if g.redisUp, err = meter.Int64ObservableGauge("authguard_redis_up", metric.WithDescription("Whether the last Redis ping succeeded.")); err != nil {
			return nil, fmt.Errorf("create redis up gauge: %w", err)
		}
		if g.totalConns, err = meter.Int64ObservableGauge("authguard_redis_pool_total_conns", metric.WithDescription("Connections in the Redis pool.")); err != nil {
			return nil, fmt.Errorf("create redis pool gauge: %w", err)
		}
		if g.pending, err = meter.Int64ObservableGauge("authguard_audit_pending", metric.WithDescription("Security events waiting for delivery.")); err != nil {
			return nil, fmt.Errorf("create audit pending gauge: %w", err)
		}
		exporter.gauges = g
		observables = append(observables, g.redisUp, g.totalConns, g.pending)
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := 0; i < len(cumulative); i++ {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.gauges != nil {
		s := e.sampler.Latest()
		var up int64
		if s.RedisUp {
			up = 1
		}
		observer.ObserveInt64(e.gauges.redisUp, up)
		observer.ObserveInt64(e.gauges.totalConns, int64(s.RedisPool.TotalConns))
		observer.ObserveInt64(e.gauges.pending, int64(s.AuditPending))
	}
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
