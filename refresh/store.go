package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rotateScript = `
if redis.call("EXISTS", KEYS[5]) == 1 then
  return 5
end
local rec = redis.call("HMGET", KEYS[1], "fam", "used", "rev", "exp")
if not rec[1] or rec[1] ~= ARGV[6] then
  return 1
end
if rec[3] == "1" then
  return 3
end
if rec[2] == "1" then
  return 2
end
if tonumber(rec[4]) <= tonumber(ARGV[1]) then
  return 4
end
redis.call("HSET", KEYS[1], "used", "1")
redis.call("HSET", KEYS[2],
  "uid", ARGV[4], "sid", ARGV[5], "fam", ARGV[6],
  "used", "0", "rev", "0",
  "exp", ARGV[7], "cat", ARGV[8], "ip", ARGV[9], "ua", ARGV[10])
redis.call("PEXPIREAT", KEYS[2], ARGV[7])
redis.call("SADD", KEYS[3], ARGV[2])
redis.call("PEXPIRE", KEYS[3], ARGV[3])
redis.call("SADD", KEYS[4], ARGV[2])
redis.call("PEXPIRE", KEYS[4], ARGV[3])
return 0
`

const revokeSetScript = `
if ARGV[2] ~= "" then
  redis.call("SET", KEYS[2], "1", "PX", ARGV[2])
end
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, h in ipairs(members) do
  local k = ARGV[1] .. h
  if redis.call("EXISTS", k) == 1 then
    if redis.call("HGET", k, "rev") ~= "1" then
      n = n + 1
      redis.call("HSET", k, "rev", "1")
    end
  end
end
return n
`

var (
	rotateLua    = redis.NewScript(rotateScript)
	revokeSetLua = redis.NewScript(revokeSetScript)
)

// RedisStore keeps refresh records as Redis hashes with per-family and
// per-session index sets.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	familyTTL time.Duration
}

// NewRedisStore returns a RedisStore. familyTTL bounds how long family and
// session indexes and revocation tombstones are retained; it should be at
// least the refresh token lifetime.
func NewRedisStore(client redis.UniversalClient, prefix string, familyTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "ag"
	}
	return &RedisStore{redis: client, prefix: prefix, familyTTL: familyTTL}
}

func (s *RedisStore) recordKey(hash string) string { return s.prefix + ":rt:" + hash }
func (s *RedisStore) familyKey(family string) string { return s.prefix + ":rf:" + family }
func (s *RedisStore) sessionKey(sid string) string { return s.prefix + ":rs:" + sid }
func (s *RedisStore) tombstoneKey(family string) string { return s.prefix + ":rfx:" + family }

// Save stores a new record and indexes it under its family and session.
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.TokenHash == "" || rec.FamilyID == "" {
		return errors.New("refresh record requires hash and family")
	}
	key := s.recordKey(rec.TokenHash)
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, recordFields(rec))
		p.PExpireAt(ctx, key, rec.ExpiresAt)
		p.SAdd(ctx, s.familyKey(rec.FamilyID), rec.TokenHash)
		p.PExpire(ctx, s.familyKey(rec.FamilyID), s.familyTTL)
		if rec.SessionID != "" {
			p.SAdd(ctx, s.sessionKey(rec.SessionID), rec.TokenHash)
			p.PExpire(ctx, s.sessionKey(rec.SessionID), s.familyTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads the record for tokenHash.
func (s *RedisStore) Get(ctx context.Context, tokenHash string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseRecord(tokenHash, fields), nil
}

// Rotate marks presentedHash used and stores next in one script. next must
// carry the same FamilyID; a family mismatch is reported as RotateNotFound.
func (s *RedisStore) Rotate(ctx context.Context, presentedHash string, next *Record, now time.Time) (RotateStatus, error) {
	if next == nil || next.TokenHash == "" || next.FamilyID == "" {
		return RotateNotFound, errors.New("rotation requires a successor record")
	}
	keys := []string{
		s.recordKey(presentedHash),
		s.recordKey(next.TokenHash),
		s.familyKey(next.FamilyID),
		s.sessionKey(next.SessionID),
		s.tombstoneKey(next.FamilyID),
	}
	args := []interface{}{
		now.UnixMilli(),
		next.TokenHash,
		s.familyTTL.Milliseconds(),
		next.UserID,
		next.SessionID,
		next.FamilyID,
		next.ExpiresAt.UnixMilli(),
		next.CreatedAt.UnixMilli(),
		next.IP,
		next.UserAgent,
	}

	code, err := rotateLua.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return RotateNotFound, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case 0:
		return RotateOK, nil
	case 1:
		return RotateNotFound, nil
	case 2:
		return RotateAlreadyUsed, nil
	case 3:
		return RotateRevoked, nil
	case 4:
		return RotateExpired, nil
	case 5:
		return RotateFamilyRevoked, nil
	default:
		return RotateNotFound, fmt.Errorf("unexpected rotate status %d", code)
	}
}

// RevokeFamily revokes every record in the family and writes the family
// tombstone. It returns how many records changed state; repeating it is a
// no-op.
func (s *RedisStore) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	ttl := s.familyTTL.Milliseconds()
	if ttl <= 0 {
		ttl = int64((30 * 24 * time.Hour) / time.Millisecond)
	}
	return s.revokeSet(ctx, s.familyKey(familyID), s.tombstoneKey(familyID), strconv.FormatInt(ttl, 10))
}

// RevokeSession revokes every record bound to sessionID.
func (s *RedisStore) RevokeSession(ctx context.Context, sessionID string) (int, error) {
	return s.revokeSet(ctx, s.sessionKey(sessionID), s.sessionKey(sessionID), "")
}

// FamilyRevoked reports whether the family tombstone exists.
func (s *RedisStore) FamilyRevoked(ctx context.Context, familyID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.tombstoneKey(familyID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

func (s *RedisStore) revokeSet(ctx context.Context, setKey, markerKey, markerTTL string) (int, error) {
	n, err := revokeSetLua.Run(ctx, s.redis, []string{setKey, markerKey}, s.prefix+":rt:", markerTTL).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

func recordFields(rec *Record) map[string]interface{} {
	return map[string]interface{}{
		"uid":  rec.UserID,
		"sid":  rec.SessionID,
		"fam":  rec.FamilyID,
		"used": boolField(rec.Used),
		"rev":  boolField(rec.Revoked),
		"exp":  rec.ExpiresAt.UnixMilli(),
		"cat":  rec.CreatedAt.UnixMilli(),
		"ip":   rec.IP,
		"ua":   rec.UserAgent,
	}
}

func parseRecord(hash string, f map[string]string) *Record {
	exp, _ := strconv.ParseInt(f["exp"], 10, 64)
	cat, _ := strconv.ParseInt(f["cat"], 10, 64)
	return &Record{
		TokenHash: hash,
		UserID:    f["uid"],
		SessionID: f["sid"],
		FamilyID:  f["fam"],
		Used:      f["used"] == "1",
		Revoked:   f["rev"] == "1",
		ExpiresAt: time.UnixMilli(exp),
		CreatedAt: time.UnixMilli(cat),
		IP:        f["ip"],
		UserAgent: f["ua"],
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
