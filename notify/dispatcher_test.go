package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu   sync.Mutex
	got  []Notification
	gate chan struct{}
	err  error
}

func (r *recorder) Notify(ctx context.Context, n Notification) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcherDeliversAll(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(Config{QueueSize: 16, RatePerSec: 1000, Burst: 100}, rec, nil)

	for i := 0; i < 10; i++ {
		require.True(t, d.Send(Notification{Kind: KindAccountLocked, UserID: "u1"}))
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 10, rec.count())
	assert.Equal(t, Stats{Sent: 10}, d.Stats())
}

func TestSendNeverBlocksWhenFull(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	d := NewDispatcher(Config{QueueSize: 1, RatePerSec: 1000, Burst: 100}, rec, nil)

	start := time.Now()
	for i := 0; i < 20; i++ {
		d.Send(Notification{Kind: KindSuspiciousLocation})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Greater(t, d.Stats().Dropped, uint64(0))

	close(rec.gate)
	require.NoError(t, d.Close(context.Background()))
}

func TestSendAfterCloseDrops(t *testing.T) {
	d := NewDispatcher(DefaultConfig(), &recorder{}, nil)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Send(Notification{Kind: KindTokenReuse}))
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestDeliveryFailureIsCountedAndLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &recorder{err: errors.New("smtp down")}
	d := NewDispatcher(Config{QueueSize: 4, RatePerSec: 1000, Burst: 10}, rec, zap.New(core))

	d.Send(Notification{Kind: KindAccountLocked, UserID: "u9"})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, uint64(1), d.Stats().Failed)
	assert.Equal(t, 1, logs.FilterMessage("notification delivery failed").Len())
}

func TestCloseHonoursDeadline(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	d := NewDispatcher(Config{QueueSize: 8, RatePerSec: 1000, Burst: 10}, rec, nil)
	for i := 0; i < 4; i++ {
		d.Send(Notification{Kind: KindAccountLocked})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, rec.count())
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.False(t, d.Send(Notification{}))
	assert.NoError(t, d.Close(context.Background()))
	assert.Equal(t, Stats{}, d.Stats())
}

func TestNotifierFuncAndLogNotifier(t *testing.T) {
	called := false
	f := NotifierFunc(func(context.Context, Notification) error { called = true; return nil })
	require.NoError(t, f.Notify(context.Background(), Notification{}))
	assert.True(t, called)

	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, LogNotifier{Logger: zap.New(core)}.Notify(context.Background(), Notification{Kind: KindAccountLocked}))
	assert.Equal(t, 1, logs.Len())
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), Notification{}))
}
