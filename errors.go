package authguard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authguard/internal/limiters"
	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/refresh"
	"github.com/MrEthical07/authguard/secret"
	"github.com/MrEthical07/authguard/session"
	"github.com/MrEthical07/authguard/threat"
)

// Kind classifies every error the Engine returns.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindAccountLocked
	KindAccountInactive
	KindInvalidToken
	KindTokenReuseDetected
	KindRateLimitExceeded
	KindThreatBlocked
	KindPermissionDenied
	KindCryptoFailure
	KindStoreUnavailable
	KindAccountExists
	KindWeakPassword
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindInvalidCredentials: "invalid_credentials",
	KindAccountLocked:      "account_locked",
	KindAccountInactive:    "account_inactive",
	KindInvalidToken:       "invalid_token",
	KindTokenReuseDetected: "token_reuse_detected",
	KindRateLimitExceeded:  "rate_limit_exceeded",
	KindThreatBlocked:      "threat_blocked",
	KindPermissionDenied:   "permission_denied",
	KindCryptoFailure:      "crypto_failure",
	KindStoreUnavailable:   "store_unavailable",
	KindAccountExists:      "account_exists",
	KindWeakPassword:       "weak_password",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Public messages never distinguish between causes within a kind.
var kindMessages = [...]string{
	KindUnknown:            "internal error",
	KindInvalidCredentials: "invalid credentials",
	KindAccountLocked:      "account locked",
	KindAccountInactive:    "account inactive",
	KindInvalidToken:       "invalid token",
	KindTokenReuseDetected: "token reuse detected",
	KindRateLimitExceeded:  "rate limit exceeded",
	KindThreatBlocked:      "request blocked",
	KindPermissionDenied:   "permission denied",
	KindCryptoFailure:      "internal error",
	KindStoreUnavailable:   "service unavailable",
	KindAccountExists:      "account already exists",
	KindWeakPassword:       "password does not meet policy",
}

// Error is the structured error returned by Engine operations.
//
// Error() yields only the generic message for Kind. Reason and Err carry the
// internal cause and are meant for logs, never for clients.
type Error struct {
	Kind Kind
	// UnlockAt is set for KindAccountLocked.
	UnlockAt time.Time
	// RetryAfter is set for KindRateLimitExceeded and blocklist hits.
	RetryAfter time.Duration
	// ThreatTypes lists matched attack categories for KindThreatBlocked.
	ThreatTypes []string
	// Violations lists the failed policy rules for KindWeakPassword.
	Violations []string
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return kindMessages[KindUnknown]
	}
	if e.Kind < 0 || int(e.Kind) >= len(kindMessages) {
		return kindMessages[KindUnknown]
	}
	return kindMessages[e.Kind]
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same Kind, so the exported sentinels work with
// errors.Is regardless of the structured fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

var (
	// ErrInvalidCredentials is returned for unknown identifiers and wrong passwords alike.
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	// ErrAccountLocked is returned while a lockout is in force.
	ErrAccountLocked = &Error{Kind: KindAccountLocked}
	// ErrAccountInactive is returned for suspended, disabled or pending accounts.
	ErrAccountInactive = &Error{Kind: KindAccountInactive}
	// ErrInvalidToken covers every token rejection reason.
	ErrInvalidToken = &Error{Kind: KindInvalidToken}
	// ErrTokenReuseDetected is returned when a consumed or revoked refresh token is presented.
	ErrTokenReuseDetected = &Error{Kind: KindTokenReuseDetected}
	// ErrRateLimitExceeded is returned when a request exceeds its window budget.
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded}
	// ErrThreatBlocked is returned for blocklisted or high-threat requests.
	ErrThreatBlocked = &Error{Kind: KindThreatBlocked}
	// ErrPermissionDenied is returned when a role lacks the endpoint permission.
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	// ErrCryptoFailure is returned when hashing, signing or randomness fails.
	ErrCryptoFailure = &Error{Kind: KindCryptoFailure}
	// ErrStoreUnavailable is returned when Redis or the persistence layer fails or times out.
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	// ErrAccountExists is returned by Register for a taken identifier.
	ErrAccountExists = &Error{Kind: KindAccountExists}
	// ErrWeakPassword is returned by Register when the password fails the policy.
	ErrWeakPassword = &Error{Kind: KindWeakPassword}

	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

// classify maps a collaborator error onto a Kind. Errors that are already
// *Error pass through unchanged.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, jwt.ErrInvalidToken):
		return newError(KindInvalidToken, strings.TrimPrefix(err.Error(), jwt.ErrInvalidToken.Error()+": "), err)
	case errors.Is(err, ErrCredentialExists):
		return newError(KindAccountExists, "duplicate", err)
	case errors.Is(err, secret.ErrCrypto):
		return newError(KindCryptoFailure, "crypto", err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return newError(KindStoreUnavailable, "timeout", err)
	case errors.Is(err, refresh.ErrRedisUnavailable),
		errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, limiters.ErrLockoutUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, threat.ErrRedisUnavailable),
		errors.Is(err, ErrStoreFailure):
		return newError(KindStoreUnavailable, "store", err)
	default:
		return newError(KindStoreUnavailable, "unclassified", err)
	}
}
