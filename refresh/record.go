package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a token hash.
	ErrNotFound = errors.New("refresh record not found")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Record is the persisted state of one refresh token.
type Record struct {
	TokenHash string
	UserID    string
	SessionID string
	FamilyID  string
	Used      bool
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
	IP        string
	UserAgent string
}

// IsValid reports whether the record can still be exchanged at now.
func (r *Record) IsValid(now time.Time) bool {
	return r != nil && !r.Used && !r.Revoked && now.Before(r.ExpiresAt)
}

// RotateStatus is the outcome of a rotation attempt.
type RotateStatus int

const (
	RotateOK RotateStatus = iota
	RotateNotFound
	RotateAlreadyUsed
	RotateRevoked
	RotateExpired
	RotateFamilyRevoked
)

func (s RotateStatus) String() string {
	switch s {
	case RotateOK:
		return "ok"
	case RotateNotFound:
		return "not_found"
	case RotateAlreadyUsed:
		return "already_used"
	case RotateRevoked:
		return "revoked"
	case RotateExpired:
		return "expired"
	case RotateFamilyRevoked:
		return "family_revoked"
	default:
		return "unknown"
	}
}

// Store is the persistence contract for refresh records. Rotate must be a
// conditional update: it succeeds only while the presented record is unused,
// unrevoked, unexpired, and its family is not revoked.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, tokenHash string) (*Record, error)
	Rotate(ctx context.Context, presentedHash string, next *Record, now time.Time) (RotateStatus, error)
	RevokeFamily(ctx context.Context, familyID string) (int, error)
	RevokeSession(ctx context.Context, sessionID string) (int, error)
	FamilyRevoked(ctx context.Context, familyID string) (bool, error)
}
