package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config tunes the dispatcher.
type Config struct {
	QueueSize   int
	RatePerSec  float64
	Burst       int
	SendTimeout time.Duration
}

// DefaultConfig returns conservative delivery settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:   256,
		RatePerSec:  10,
		Burst:       20,
		SendTimeout: 5 * time.Second,
	}
}

// Stats counts dispatcher outcomes.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// Dispatcher is a fire-and-forget, rate-throttled notification queue.
type Dispatcher struct {
	cfg      Config
	notifier Notifier
	logger   *zap.Logger
	limiter  *rate.Limiter

	queue  chan Notification
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(cfg Config, notifier Notifier, logger *zap.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = def.RatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger.Named("notify"),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		queue:    make(chan Notification, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Send enqueues n and returns immediately. It reports false when the
// notification was dropped.
func (d *Dispatcher) Send(n Notification) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	if err := d.limiter.Wait(d.ctx); err != nil {
		d.dropped.Add(1)
		return
	}

	ctx := d.ctx
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}

	if err := d.notifier.Notify(ctx, n); err != nil {
		d.failed.Add(1)
		d.logger.Warn("notification delivery failed",
			zap.String("kind", n.Kind),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		return
	}
	d.sent.Add(1)
}

// Close stops intake and drains the queue. If ctx expires first, pending
// notifications are dropped and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-finished
		return ctx.Err()
	}
}

// Stats returns a snapshot of delivery counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}
