package authguard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/session"
	"github.com/MrEthical07/authguard/threat"
)

// AccountStatus is the lifecycle state of a credential.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountDisabled  AccountStatus = "disabled"
	AccountPending   AccountStatus = "pending"
)

// CredentialRecord is the persisted login credential of one user.
//
// PasswordHash and PasswordSalt are always produced together by
// password.Hasher.Hash. FailedAttempts and LockedUntil mirror the lockout
// state kept in Redis, which stays authoritative.
type CredentialRecord struct {
	UserID         string
	Identifier     string
	Role           string
	Status         AccountStatus
	PasswordHash   string
	PasswordSalt   string
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	LastLoginIP    string
}

// IsLocked reports whether the mirrored lock is in force at now.
func (c *CredentialRecord) IsLocked(now time.Time) bool {
	return c != nil && c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// IsActive reports whether the account may authenticate.
func (c *CredentialRecord) IsActive() bool {
	return c != nil && c.Status == AccountActive
}

var (
	// ErrCredentialNotFound must be returned by CredentialStore lookups for
	// unknown identifiers or ids.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrStoreFailure may be wrapped by persistence implementations to mark
	// backend failures.
	ErrStoreFailure = errors.New("persistence backend failure")
	// ErrCredentialExists must be returned, possibly wrapped, by
	// CredentialCreator for a taken user id or identifier.
	ErrCredentialExists = errors.New("credential already exists")
)

// CredentialStore is the durable credential persistence collaborator.
type CredentialStore interface {
	GetCredentialByIdentifier(ctx context.Context, identifier string) (*CredentialRecord, error)
	GetCredentialByID(ctx context.Context, userID string) (*CredentialRecord, error)
	UpdateLockState(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error
	RecordLogin(ctx context.Context, userID string, at time.Time, ip string) error
}

// CredentialCreator is implemented by credential stores that accept new
// accounts. Register requires it.
type CredentialCreator interface {
	CreateCredential(ctx context.Context, rec CredentialRecord) error
}

// SecurityEvent is one append-only security record.
type SecurityEvent = audit.Event

// Severity grades a SecurityEvent.
type Severity = audit.Severity

const (
	SeverityLow      = audit.SeverityLow
	SeverityMedium   = audit.SeverityMedium
	SeverityHigh     = audit.SeverityHigh
	SeverityCritical = audit.SeverityCritical
)

// EventStore persists security events.
type EventStore interface {
	AppendSecurityEvent(ctx context.Context, event SecurityEvent) error
}

// SessionContext is the request metadata a session is created from.
type SessionContext struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Accept         string
}

// SessionContextFromRequest extracts a SessionContext from r, resolving the
// client address through the usual proxy headers.
func SessionContextFromRequest(r *http.Request) SessionContext {
	return SessionContext{
		IP:             threat.ClientIP(r.Header, r.RemoteAddr),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Accept:         r.Header.Get("Accept"),
	}
}

// Identity is a verified credential stripped of secret material.
type Identity struct {
	UserID     string
	Identifier string
	Role       string
}

// TokenPair is an access token with its paired refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
	FamilyID         string
}

// ExpiresIn returns the access token lifetime remaining at now, in whole seconds.
func (p *TokenPair) ExpiresIn(now time.Time) int {
	if p == nil {
		return 0
	}
	d := p.AccessExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Registration is the input of [Engine.Register].
type Registration struct {
	Identifier string
	Password   string
	Role       string
	// Status defaults to AccountPending.
	Status AccountStatus
}

// LoginResult is returned by [Engine.Login] and [Engine.Register].
type LoginResult struct {
	Identity Identity
	Session  *session.Session
	Tokens   *TokenPair
	// Suspicious is set when the session was flagged by the risk rules.
	Suspicious bool
}

// AccessResult is returned by [Engine.ValidateAccess].
type AccessResult struct {
	UserID     string
	Role       string
	SessionID  string
	Permission string
	Claims     *jwt.Claims
}
