package authguard

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/flows"
	"github.com/MrEthical07/authguard/notify"
	"github.com/MrEthical07/authguard/password"
)

// VerifyCredentials describes the credential verification operation and its
// observable behavior.
//
// Unknown identifiers and wrong passwords both fail with
// ErrInvalidCredentials after the same amount of hashing work. While the
// account is locked the password is not examined and the error is an *Error
// of KindAccountLocked carrying UnlockAt. The failure that reaches the
// lockout threshold still reports KindInvalidCredentials and records a high
// severity account_locked event. Inactive accounts fail with
// KindAccountInactive only after the password matched.
func (e *Engine) VerifyCredentials(ctx context.Context, identifier, pass string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	res := flows.RunVerifyCredentials(ctx, identifier, pass, e.flows.Verify)
	cred := res.Credential

	switch res.Failure {
	case flows.VerifyFailureNone:
		return &Identity{UserID: cred.UserID, Identifier: cred.Identifier, Role: cred.Role}, nil

	case flows.VerifyFailureUnknownIdentity:
		e.metricInc(MetricLoginFailure)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeLoginFailed,
			Severity:   SeverityLow,
			Confidence: 20,
			Details:    "unknown identifier",
		})
		return nil, e.failure("verify_credentials", newError(KindInvalidCredentials, "unknown identifier", nil))

	case flows.VerifyFailureLocked:
		e.metricInc(MetricAccountLockedRejected)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeLoginFailed,
			Severity:   SeverityMedium,
			UserID:     cred.UserID,
			Confidence: 50,
			Details:    "attempt while locked",
		})
		err := newError(KindAccountLocked, "locked", nil)
		err.UnlockAt = res.Lockout.LockedUntil
		return nil, e.failure("verify_credentials", err)

	case flows.VerifyFailureMismatch:
		e.metricInc(MetricLoginFailure)
		if res.JustLocked {
			e.metricInc(MetricAccountLocked)
			meta := map[string]string{
				"failed_attempts": strconv.Itoa(res.Lockout.Failures),
				"locked_until":    res.Lockout.LockedUntil.UTC().Format(time.RFC3339),
			}
			e.emit(ctx, SecurityEvent{
				Type:       audit.TypeAccountLocked,
				Severity:   SeverityHigh,
				UserID:     cred.UserID,
				Confidence: 90,
				Details:    "account locked after repeated failed logins",
				Metadata:   meta,
			})
			e.notify(notify.KindAccountLocked, cred.UserID,
				"Your account has been locked",
				"Too many failed sign-in attempts. Your account is locked until "+meta["locked_until"]+".",
				meta)
		} else {
			e.emit(ctx, SecurityEvent{
				Type:       audit.TypeLoginFailed,
				Severity:   SeverityLow,
				UserID:     cred.UserID,
				Confidence: 20,
				Details:    "password mismatch",
				Metadata:   map[string]string{"failed_attempts": strconv.Itoa(res.Lockout.Failures)},
			})
		}
		return nil, e.failure("verify_credentials", newError(KindInvalidCredentials, "password mismatch", nil))

	case flows.VerifyFailureInactive:
		e.metricInc(MetricAccountInactive)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeAccountInactive,
			Severity:   SeverityMedium,
			UserID:     cred.UserID,
			Confidence: 40,
			Details:    "login to inactive account",
		})
		return nil, e.failure("verify_credentials", newError(KindAccountInactive, "inactive", nil))

	case flows.VerifyFailureHash:
		return nil, e.failure("verify_credentials", newError(KindCryptoFailure, "password verify", res.Err))

	default:
		return nil, e.failure("verify_credentials", classify(res.Err))
	}
}

// HashPassword checks pw against the password policy and returns a fresh
// hash and salt for storage in a CredentialRecord.
func (e *Engine) HashPassword(pw string) (hash, salt string, report password.Report, err error) {
	if e == nil {
		return "", "", password.Report{}, ErrEngineNotReady
	}
	report = e.policy.Validate(pw)
	if !report.Valid {
		return "", "", report, report.Err()
	}
	hash, salt, err = e.hasher.Hash(pw)
	if err != nil {
		return "", "", report, e.failure("hash_password", newError(KindCryptoFailure, "hash", err))
	}
	return hash, salt, report, nil
}
