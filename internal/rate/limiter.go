package rate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rule allows Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// ParseRule parses strings such as "5/minute" or "2/hour".
func ParseRule(s string) (Rule, error) {
	count, period, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}

	var window time.Duration
	switch period {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	case "day":
		window = 24 * time.Hour
	default:
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}
	return Rule{Limit: n, Window: window}, nil
}

func (r Rule) String() string {
	switch r.Window {
	case time.Second:
		return strconv.Itoa(r.Limit) + "/second"
	case time.Minute:
		return strconv.Itoa(r.Limit) + "/minute"
	case time.Hour:
		return strconv.Itoa(r.Limit) + "/hour"
	case 24 * time.Hour:
		return strconv.Itoa(r.Limit) + "/day"
	default:
		return strconv.Itoa(r.Limit) + "/" + r.Window.String()
	}
}

// Config holds per-path rules and the fallback rule.
type Config struct {
	Rules   map[string]Rule
	Default Rule
	Prefix  string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result describes one limiter decision.
type Result struct {
	Allowed bool
	Count   int64
	Rule    Rule
	ResetIn time.Duration
}

// KEYS[1] window set; ARGV: now ms, cutoff ms, window ms, limit, member.
const slidingWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local n = redis.call("ZCARD", KEYS[1])
if n < tonumber(ARGV[4]) then
  redis.call("ZADD", KEYS[1], ARGV[1], ARGV[5])
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
  return {1, n + 1, tonumber(ARGV[3])}
end
local reset = tonumber(ARGV[3])
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if oldest[2] then
  reset = tonumber(oldest[2]) - tonumber(ARGV[2])
end
return {0, n, reset}
`

var slidingWindowLua = redis.NewScript(slidingWindowScript)

// Limiter enforces sliding-window request budgets with Redis sorted sets.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	seq    atomic.Uint64
	nonce  string
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "ag"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{redis: redisClient, config: cfg, nonce: uuid.NewString()}
}

// RuleFor returns the rule applied to path.
func (l *Limiter) RuleFor(path string) Rule {
	if r, ok := l.config.Rules[path]; ok {
		return r
	}
	return l.config.Default
}

// Allow records one request from ip to path and reports whether it fits the
// path's budget over the trailing window. Denied requests are not recorded.
// A zero-limit rule disables limiting for the path.
func (l *Limiter) Allow(ctx context.Context, ip, path string) (Result, error) {
	rule := l.RuleFor(path)
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true, Rule: rule}, nil
	}

	now := l.config.Now().UnixMilli()
	window := rule.Window.Milliseconds()
	member := strconv.FormatInt(now, 10) + ":" + l.nonce + ":" + strconv.FormatUint(l.seq.Add(1), 10)
	res, err := slidingWindowLua.Run(ctx, l.redis, []string{l.key(ip, path)},
		now, now-window, window, rule.Limit, member).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	out := Result{
		Allowed: res[0] == 1,
		Count:   res[1],
		Rule:    rule,
	}
	if res[2] > 0 {
		out.ResetIn = time.Duration(res[2]) * time.Millisecond
	}
	return out, nil
}

// Count returns the number of requests in the current trailing window
// without recording one.
func (l *Limiter) Count(ctx context.Context, ip, path string) (int64, error) {
	rule := l.RuleFor(path)
	lower := "-inf"
	if rule.Window > 0 {
		lower = "(" + strconv.FormatInt(l.config.Now().Add(-rule.Window).UnixMilli(), 10)
	}
	n, err := l.redis.ZCount(ctx, l.key(ip, path), lower, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (l *Limiter) key(ip, path string) string {
	return l.config.Prefix + ":rl:" + ip + ":" + path
}
