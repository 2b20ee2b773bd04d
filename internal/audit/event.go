package audit

import (
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Severity grades an event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event types.
const (
	TypeLoginSucceeded          = "login_succeeded"
	TypeLoginFailed             = "login_failed"
	TypeAccountRegistered       = "account_registered"
	TypeRegistrationRejected    = "registration_rejected"
	TypeAccountLocked           = "account_locked"
	TypeAccountInactive         = "account_inactive"
	TypeTokenRotated            = "token_rotated"
	TypeTokenReuseDetected      = "token_reuse_detected"
	TypeSuspiciousLoginLocation = "suspicious_login_location"
	TypeSessionCreated          = "session_created"
	TypeSessionEvicted          = "session_evicted"
	TypeSessionRevoked          = "session_revoked"
	TypeThreatDetected          = "threat_detected"
	TypeThreatMonitored         = "threat_monitored"
	TypeThreatBlocked           = "threat_blocked"
	TypeBlockedUserAgent        = "blocked_user_agent"
	TypeRateLimitExceeded       = "rate_limit_exceeded"
	TypePermissionDenied        = "permission_denied"
)

// Event is one security-relevant occurrence.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Severity   Severity          `json:"severity"`
	IP         string            `json:"ip,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Confidence int               `json:"confidence"`
	Details    string            `json:"details,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// IDs mints lexicographically sortable event identifiers.
type IDs struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewIDs returns a generator drawing monotonic entropy from r.
func NewIDs(r io.Reader) *IDs {
	return &IDs{entropy: ulid.Monotonic(r, 0)}
}

// New returns a ULID string for t.
func (g *IDs) New(t time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
