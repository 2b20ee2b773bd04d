package threat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reasons stored as blocklist values.
const (
	ReasonRateLimited = "rate_limited"
	ReasonHighThreat  = "high_threat"
	ReasonManual      = "manual"
)

// BlockEntry describes an active block.
type BlockEntry struct {
	Reason    string
	Remaining time.Duration
}

// Blocklist keeps temporary IP blocks and medium-threat monitoring counters
// in Redis. Keys are blocked_ip:{ip} and threat_monitoring:{ip}, optionally
// namespaced by a prefix.
type Blocklist struct {
	redis  redis.UniversalClient
	prefix string
}

// NewBlocklist creates a [Blocklist]. An empty prefix leaves keys
// unnamespaced.
func NewBlocklist(redisClient redis.UniversalClient, prefix string) *Blocklist {
	return &Blocklist{redis: redisClient, prefix: prefix}
}

// Block places ip on the blocklist for ttl, replacing any existing entry.
func (b *Blocklist) Block(ctx context.Context, ip, reason string, ttl time.Duration) error {
	if err := b.redis.Set(ctx, b.blockKey(ip), reason, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Status reports whether ip is currently blocked.
func (b *Blocklist) Status(ctx context.Context, ip string) (BlockEntry, bool, error) {
	key := b.blockKey(ip)

	var getCmd *redis.StringCmd
	var ttlCmd *redis.DurationCmd
	_, err := b.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		getCmd = p.Get(ctx, key)
		ttlCmd = p.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return BlockEntry{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	reason, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return BlockEntry{}, false, nil
	}
	if err != nil {
		return BlockEntry{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	entry := BlockEntry{Reason: reason}
	if d := ttlCmd.Val(); d > 0 {
		entry.Remaining = d
	}
	return entry, true, nil
}

// Unblock removes ip from the blocklist.
func (b *Blocklist) Unblock(ctx context.Context, ip string) error {
	if err := b.redis.Del(ctx, b.blockKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Monitor increments the monitoring counter for ip and refreshes its expiry.
func (b *Blocklist) Monitor(ctx context.Context, ip string, ttl time.Duration) (int64, error) {
	key := b.monitorKey(ip)

	var incr *redis.IntCmd
	_, err := b.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}

func (b *Blocklist) blockKey(ip string) string   { return b.key("blocked_ip:" + ip) }
func (b *Blocklist) monitorKey(ip string) string { return b.key("threat_monitoring:" + ip) }

func (b *Blocklist) key(k string) string {
	if b.prefix == "" {
		return k
	}
	return b.prefix + ":" + k
}
