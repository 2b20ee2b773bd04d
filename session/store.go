package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Store persists sessions. End must be forward-only and idempotent.
// CreateCapped must add the session and end the user's oldest live sessions
// beyond limit as one atomic step.
type Store interface {
	Create(ctx context.Context, s *Session) error
	CreateCapped(ctx context.Context, s *Session, limit int, now time.Time) ([]string, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	ListActive(ctx context.Context, userID string, now time.Time) ([]*Session, error)
	End(ctx context.Context, sessionID string, status Status, at time.Time) (bool, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
}

const endSessionScript = `
local st = redis.call("HGET", KEYS[1], "st")
if not st then
  return -1
end
if st ~= "active" and st ~= "suspicious" then
  return 0
end
local uid = redis.call("HGET", KEYS[1], "uid")
redis.call("HSET", KEYS[1], "st", ARGV[1], "end", ARGV[2])
if uid then
  redis.call("ZREM", ARGV[3] .. uid, ARGV[4])
end
return 1
`

var endSessionLua = redis.NewScript(endSessionScript)

// KEYS[1] new session hash, KEYS[2] user index.
// ARGV: id, index score, hash expire-at ms, index ttl ms, cap, now ms,
// session key prefix, eviction status, then field/value pairs.
const createCappedScript = `
local fields = {}
for i = 9, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[1], unpack(fields))
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
redis.call("PEXPIRE", KEYS[2], ARGV[4])

local cap = tonumber(ARGV[5])
local now = tonumber(ARGV[6])
local live = {}
for _, id in ipairs(redis.call("ZRANGE", KEYS[2], 0, -1)) do
  local key = ARGV[7] .. id
  local st = redis.call("HGET", key, "st")
  if not st then
    redis.call("ZREM", KEYS[2], id)
  elseif st == "active" then
    local exp = tonumber(redis.call("HGET", key, "exp") or "0")
    if exp > now then
      live[#live + 1] = id
    end
  end
end

local evicted = {}
local i = 1
while #live - #evicted > cap and i <= #live do
  local id = live[i]
  if id ~= ARGV[1] then
    redis.call("HSET", ARGV[7] .. id, "st", ARGV[8], "end", ARGV[6])
    redis.call("ZREM", KEYS[2], id)
    evicted[#evicted + 1] = id
  end
  i = i + 1
end
return evicted
`

var createCappedLua = redis.NewScript(createCappedScript)

// RedisStore keeps each session in a hash and indexes a user's sessions in a
// sorted set scored by creation time.
type RedisStore struct {
	redis       redis.UniversalClient
	prefix      string
	maxLifetime time.Duration
	retention   time.Duration
}

// NewRedisStore returns a RedisStore. maxLifetime is the longest session
// lifetime the caller issues; ended sessions stay readable for retention after
// their expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, maxLifetime, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "ag"
	}
	return &RedisStore{redis: client, prefix: prefix, maxLifetime: maxLifetime, retention: retention}
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + ":s:" + id }
func (s *RedisStore) userPrefix() string { return s.prefix + ":u:" }
func (s *RedisStore) userKey(uid string) string { return s.userPrefix() + uid }

// Create persists a new session and adds it to the user index.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return errors.New("session requires id and user")
	}
	key := s.sessionKey(sess.ID)
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, sessionFields(sess))
		p.PExpireAt(ctx, key, sess.ExpiresAt.Add(s.retention))
		p.ZAdd(ctx, s.userKey(sess.UserID), redis.Z{
			Score:  float64(sess.CreatedAt.UnixMicro()),
			Member: sess.ID,
		})
		p.PExpire(ctx, s.userKey(sess.UserID), s.maxLifetime+s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CreateCapped persists sess and, in the same script, ends the user's oldest
// live sessions until at most limit remain, the new one included. It returns
// the ids of the ended sessions, oldest first. A non-positive limit behaves
// like Create.
func (s *RedisStore) CreateCapped(ctx context.Context, sess *Session, limit int, now time.Time) ([]string, error) {
	if limit <= 0 {
		return nil, s.Create(ctx, sess)
	}
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return nil, errors.New("session requires id and user")
	}

	fields := sessionFields(sess)
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	args := []interface{}{
		sess.ID,
		sess.CreatedAt.UnixMicro(),
		sess.ExpiresAt.Add(s.retention).UnixMilli(),
		(s.maxLifetime + s.retention).Milliseconds(),
		limit,
		now.UnixMilli(),
		s.prefix + ":s:",
		string(StatusRevoked),
	}
	for _, k := range names {
		args = append(args, k, fields[k])
	}

	evicted, err := createCappedLua.Run(ctx, s.redis,
		[]string{s.sessionKey(sess.ID), s.userKey(sess.UserID)}, args...).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return evicted, nil
}

// Get loads one session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseSession(sessionID, fields), nil
}

// ListActive returns the user's active sessions ordered oldest first. Index
// entries whose session hash has vanished are pruned.
func (s *RedisStore) ListActive(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var (
		active []*Session
		stale  []interface{}
	)
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		sess := parseSession(ids[i], fields)
		if sess.IsActive(now) {
			active = append(active, sess)
		}
	}
	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// End moves a live session to status. It returns false without error when
// the session had already ended, and ErrNotFound when it does not exist.
func (s *RedisStore) End(ctx context.Context, sessionID string, status Status, at time.Time) (bool, error) {
	if !status.Ended() {
		return false, fmt.Errorf("invalid end status %q", status)
	}
	res, err := endSessionLua.Run(ctx, s.redis,
		[]string{s.sessionKey(sessionID)},
		string(status), at.UnixMilli(), s.userPrefix(), sessionID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch res {
	case -1:
		return false, ErrNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// Touch records activity on a live session.
func (s *RedisStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	key := s.sessionKey(sessionID)
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := s.redis.HSet(ctx, key, "lat", at.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func sessionFields(s *Session) map[string]interface{} {
	f := map[string]interface{}{
		"uid":  s.UserID,
		"tok":  s.TokenHash,
		"ip":   s.IP,
		"ua":   s.UserAgent,
		"fp":   s.Fingerprint,
		"cc":   s.Country,
		"city": s.City,
		"dev":  s.DeviceType,
		"br":   s.Browser,
		"os":   s.OS,
		"st":   string(s.Status),
		"sus":  boolField(s.IsSuspicious),
		"risk": s.RiskScore,
		"cat":  s.CreatedAt.UnixNano(),
		"lat":  s.LastActivity.UnixMilli(),
		"exp":  s.ExpiresAt.UnixMilli(),
	}
	if s.EndedAt != nil {
		f["end"] = s.EndedAt.UnixMilli()
	}
	return f
}

func parseSession(id string, f map[string]string) *Session {
	risk, _ := strconv.Atoi(f["risk"])
	cat, _ := strconv.ParseInt(f["cat"], 10, 64)
	lat, _ := strconv.ParseInt(f["lat"], 10, 64)
	exp, _ := strconv.ParseInt(f["exp"], 10, 64)

	s := &Session{
		ID:           id,
		TokenHash:    f["tok"],
		UserID:       f["uid"],
		IP:           f["ip"],
		UserAgent:    f["ua"],
		Fingerprint:  f["fp"],
		Country:      f["cc"],
		City:         f["city"],
		DeviceType:   f["dev"],
		Browser:      f["br"],
		OS:           f["os"],
		Status:       Status(f["st"]),
		IsSuspicious: f["sus"] == "1",
		RiskScore:    risk,
		CreatedAt:    time.Unix(0, cat),
		LastActivity: time.UnixMilli(lat),
		ExpiresAt:    time.UnixMilli(exp),
	}
	if raw, ok := f["end"]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			s.EndedAt = &t
		}
	}
	return s
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
