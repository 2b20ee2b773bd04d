package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig configures the lockout state machine.
type LockoutConfig struct {
	Enabled     bool
	MaxAttempts int
	Duration    time.Duration
	// Window bounds how long failures are remembered. Zero keeps the counter
	// until the next successful login.
	Window time.Duration
	Prefix string
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutState is the current lockout view of one user.
type LockoutState struct {
	Failures    int
	LockedUntil time.Time
}

// Locked reports whether the lock is in force at now.
func (s LockoutState) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

const recordFailureScript = `
local now = tonumber(ARGV[5])
local locked = redis.call("GET", KEYS[2])
if locked then
  if tonumber(locked) > now then
    return {tonumber(redis.call("GET", KEYS[1]) or "0"), tonumber(locked), 0}
  end
  redis.call("DEL", KEYS[2])
end
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[4]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
if n >= tonumber(ARGV[1]) then
  redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[2])
  return {n, tonumber(ARGV[3]), 1}
end
return {n, 0, 0}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// Lockout tracks failed logins and locks accounts at the configured threshold.
type Lockout struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockout creates a lockout state machine.
func NewLockout(redisClient redis.UniversalClient, cfg LockoutConfig) *Lockout {
	if cfg.Prefix == "" {
		cfg.Prefix = "ag"
	}
	return &Lockout{redis: redisClient, config: cfg}
}

func (l *Lockout) failKey(userID string) string { return l.config.Prefix + ":lk:f:" + userID }
func (l *Lockout) lockKey(userID string) string { return l.config.Prefix + ":lk:u:" + userID }

// RecordFailure counts one failed attempt at now. justLocked is true only for
// the attempt that crossed the threshold. While a lock is in force the counter
// is left untouched.
func (l *Lockout) RecordFailure(ctx context.Context, userID string, now time.Time) (state LockoutState, justLocked bool, err error) {
	if l == nil || !l.config.Enabled || userID == "" {
		return LockoutState{}, false, nil
	}

	until := now.Add(l.config.Duration)
	res, err := recordFailureLua.Run(ctx, l.redis,
		[]string{l.failKey(userID), l.lockKey(userID)},
		l.config.MaxAttempts,
		l.config.Duration.Milliseconds(),
		until.UnixMilli(),
		l.config.Window.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return LockoutState{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(res) != 3 {
		return LockoutState{}, false, fmt.Errorf("%w: unexpected script reply", ErrLockoutUnavailable)
	}

	state.Failures = int(res[0])
	if res[1] > 0 {
		state.LockedUntil = time.UnixMilli(res[1])
	}
	return state, res[2] == 1, nil
}

// Status returns the failure count and lock deadline for a user.
func (l *Lockout) Status(ctx context.Context, userID string) (LockoutState, error) {
	if l == nil || !l.config.Enabled || userID == "" {
		return LockoutState{}, nil
	}

	vals, err := l.redis.MGet(ctx, l.failKey(userID), l.lockKey(userID)).Result()
	if err != nil {
		return LockoutState{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	var state LockoutState
	if n, ok := parseInt(vals[0]); ok {
		state.Failures = int(n)
	}
	if ms, ok := parseInt(vals[1]); ok && ms > 0 {
		state.LockedUntil = time.UnixMilli(ms)
	}
	return state, nil
}

// Reset clears the counter and any lock. The Engine calls it only after a
// successful verification outside an active lock.
func (l *Lockout) Reset(ctx context.Context, userID string) error {
	if l == nil || !l.config.Enabled || userID == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.failKey(userID), l.lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func parseInt(v interface{}) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
