package authguard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RedisPoolSample mirrors the go-redis pool counters.
type RedisPoolSample struct {
	Hits       uint32
	Misses     uint32
	Timeouts   uint32
	TotalConns uint32
	IdleConns  uint32
	StaleConns uint32
}

// Sample is one point-in-time view of engine health.
type Sample struct {
	At time.Time

	RedisUp      bool
	RedisLatency time.Duration
	RedisPool    RedisPoolSample

	AuditPending   int
	AuditDropped   uint64
	AuditDelivered uint64

	NotifySent    uint64
	NotifyFailed  uint64
	NotifyDropped uint64

	Metrics MetricsSnapshot
}

// Sampler periodically records a [Sample] off the request path. The zero
// value is not usable; create one with [Engine.NewSampler].
type Sampler struct {
	engine   *Engine
	interval time.Duration
	onSample func(Sample)

	mu     sync.RWMutex
	latest Sample
}

// NewSampler returns a sampler that takes a sample every interval and hands
// it to onSample, which may be nil. Intervals under one second are raised to
// one second.
func (e *Engine) NewSampler(interval time.Duration, onSample func(Sample)) *Sampler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Sampler{engine: e, interval: interval, onSample: onSample}
}

// Run samples until ctx is cancelled. It takes one sample immediately.
func (s *Sampler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.record(s.Sample(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.record(s.Sample(ctx))
		}
	}
}

// Latest returns the most recent sample taken by Run.
func (s *Sampler) Latest() Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Sample takes one sample now without recording it.
func (s *Sampler) Sample(ctx context.Context) Sample {
	e := s.engine
	out := Sample{
		At:      e.now(),
		Metrics: e.MetricsSnapshot(),
	}

	pctx, cancel := e.opContext(ctx)
	start := time.Now()
	err := e.redis.Ping(pctx).Err()
	out.RedisLatency = time.Since(start)
	cancel()
	out.RedisUp = err == nil
	if err != nil {
		e.logger.Warn("redis ping failed", zap.Error(err))
	}

	if ps := e.redis.PoolStats(); ps != nil {
		out.RedisPool = RedisPoolSample{
			Hits:       ps.Hits,
			Misses:     ps.Misses,
			Timeouts:   ps.Timeouts,
			TotalConns: ps.TotalConns,
			IdleConns:  ps.IdleConns,
			StaleConns: ps.StaleConns,
		}
	}

	if e.audit != nil {
		out.AuditPending = e.audit.Pending()
		out.AuditDropped = e.audit.Dropped()
		out.AuditDelivered = e.audit.Delivered()
	}
	if e.notifier != nil {
		st := e.notifier.Stats()
		out.NotifySent = st.Sent
		out.NotifyFailed = st.Failed
		out.NotifyDropped = st.Dropped
	}
	return out
}

func (s *Sampler) record(sample Sample) {
	s.mu.Lock()
	s.latest = sample
	s.mu.Unlock()
	if s.onSample != nil {
		s.onSample(sample)
	}
}
