package limiters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockout(t *testing.T, cfg LockoutConfig) (*Lockout, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLockout(rdb, cfg), mr
}

func defaultLockoutConfig() LockoutConfig {
	return LockoutConfig{Enabled: true, MaxAttempts: 5, Duration: 30 * time.Minute}
}

func TestLockoutLocksAtThreshold(t *testing.T) {
	l, _ := newTestLockout(t, defaultLockoutConfig())
	ctx := context.Background()
	now := time.Now()

	for i := 1; i < 5; i++ {
		state, locked, err := l.RecordFailure(ctx, "u1", now)
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, i, state.Failures)
		assert.False(t, state.Locked(now))
	}

	state, locked, err := l.RecordFailure(ctx, "u1", now)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, 5, state.Failures)
	assert.True(t, state.Locked(now))
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), state.LockedUntil.UnixMilli())

	status, err := l.Status(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.Locked(now))
	assert.False(t, status.Locked(now.Add(31*time.Minute)))
}

func TestLockoutFailuresDuringLockDoNotExtend(t *testing.T) {
	l, _ := newTestLockout(t, defaultLockoutConfig())
	ctx := context.Background()
	now := time.Now()

	var first LockoutState
	for i := 0; i < 5; i++ {
		s, _, err := l.RecordFailure(ctx, "u1", now)
		require.NoError(t, err)
		first = s
	}

	s, locked, err := l.RecordFailure(ctx, "u1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Equal(t, first.LockedUntil, s.LockedUntil)
	assert.Equal(t, 5, s.Failures)
}

func TestLockoutExpiresByTime(t *testing.T) {
	l, mr := newTestLockout(t, defaultLockoutConfig())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, _, err := l.RecordFailure(ctx, "u1", now)
		require.NoError(t, err)
	}

	mr.FastForward(31 * time.Minute)
	status, err := l.Status(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.Locked(now.Add(31*time.Minute)))
	assert.True(t, status.LockedUntil.IsZero())
	assert.Equal(t, 5, status.Failures)
}

func TestLockoutRelocksAfterExpiryOnNextFailure(t *testing.T) {
	l, _ := newTestLockout(t, defaultLockoutConfig())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, _, err := l.RecordFailure(ctx, "u1", now)
		require.NoError(t, err)
	}

	later := now.Add(45 * time.Minute)
	s, locked, err := l.RecordFailure(ctx, "u1", later)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, 6, s.Failures)
	assert.True(t, s.Locked(later))
}

func TestLockoutResetClearsState(t *testing.T) {
	l, _ := newTestLockout(t, defaultLockoutConfig())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, _, err := l.RecordFailure(ctx, "u1", now)
		require.NoError(t, err)
	}
	require.NoError(t, l.Reset(ctx, "u1"))

	status, err := l.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, status.Failures)
	assert.False(t, status.Locked(now))
}

func TestLockoutWindowForgetsOldFailures(t *testing.T) {
	cfg := defaultLockoutConfig()
	cfg.Window = 10 * time.Minute
	l, mr := newTestLockout(t, cfg)
	ctx := context.Background()

	_, _, err := l.RecordFailure(ctx, "u1", time.Now())
	require.NoError(t, err)
	mr.FastForward(11 * time.Minute)

	s, _, err := l.RecordFailure(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failures)
}

func TestLockoutConcurrentFailuresLockOnce(t *testing.T) {
	l, _ := newTestLockout(t, defaultLockoutConfig())
	ctx := context.Background()
	now := time.Now()

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		lockers int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, locked, err := l.RecordFailure(ctx, "u1", now)
			assert.NoError(t, err)
			if locked {
				mu.Lock()
				lockers++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, lockers)
}

func TestNilLockoutIsNoop(t *testing.T) {
	var l *Lockout
	ctx := context.Background()
	s, locked, err := l.RecordFailure(ctx, "u1", time.Now())
	assert.NoError(t, err)
	assert.False(t, locked)
	assert.Zero(t, s.Failures)
	assert.NoError(t, l.Reset(ctx, "u1"))
}
