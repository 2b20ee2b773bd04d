package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusRevoked    Status = "revoked"
	StatusSuspicious Status = "suspicious"
)

// Ended reports whether s is terminal.
func (s Status) Ended() bool {
	return s == StatusExpired || s == StatusRevoked
}

// CanTransition reports whether a session may move from one status to another.
// Only live sessions (active or suspicious) may change, and only forward.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusExpired || to == StatusRevoked || to == StatusSuspicious
	case StatusSuspicious:
		return to == StatusExpired || to == StatusRevoked
	default:
		return false
	}
}

// Session is one authenticated login. Token holds the plaintext session token
// only on the value returned at creation; persisted copies carry TokenHash.
type Session struct {
	ID        string
	Token     string
	TokenHash string
	UserID    string

	IP          string
	UserAgent   string
	Fingerprint string
	Country     string
	City        string
	DeviceType  string
	Browser     string
	OS          string

	Status       Status
	IsSuspicious bool
	RiskScore    int

	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	EndedAt      *time.Time
}

// IsActive reports whether the session is live at now: status active, not past
// expiry, and never ended.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil &&
		s.Status == StatusActive &&
		s.EndedAt == nil &&
		now.Before(s.ExpiresAt)
}

// RaiseRisk lifts the risk score to at least floor, capped at 100.
func (s *Session) RaiseRisk(floor int) {
	if s.RiskScore < floor {
		s.RiskScore = floor
	}
	if s.RiskScore > 100 {
		s.RiskScore = 100
	}
}

// HashToken returns the digest stored in place of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
