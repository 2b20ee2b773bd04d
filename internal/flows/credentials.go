package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authguard/internal/limiters"
)

// VerifyFailureKind classifies credential verification failures.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureLookup
	VerifyFailureUnknownIdentity
	VerifyFailureLocked
	VerifyFailureMismatch
	VerifyFailureHash
	VerifyFailureLockout
	VerifyFailureInactive
)

// Credential is the flow-local view of a stored credential.
type Credential struct {
	UserID       string
	Identifier   string
	Role         string
	Active       bool
	PasswordHash string
	PasswordSalt string
}

// VerifyResult carries the verified credential or failure metadata.
type VerifyResult struct {
	Failure    VerifyFailureKind
	Err        error
	Credential Credential
	Lockout    limiters.LockoutState
	// JustLocked is set on the failure that crossed the lockout threshold.
	JustLocked bool
}

type PasswordVerifier interface {
	Verify(password, hash, salt string) (bool, error)
}

type LockoutTracker interface {
	Status(ctx context.Context, userID string) (limiters.LockoutState, error)
	RecordFailure(ctx context.Context, userID string, now time.Time) (limiters.LockoutState, bool, error)
	Reset(ctx context.Context, userID string) error
}

// VerifyDeps captures credential verification dependencies.
type VerifyDeps struct {
	Now func() time.Time
	// Lookup returns found=false for unknown identifiers.
	Lookup func(ctx context.Context, identifier string) (cred Credential, found bool, err error)
	Hasher PasswordVerifier
	// DummyHash and DummySalt are verified against for unknown identities so
	// both paths pay one hash computation.
	DummyHash string
	DummySalt string
	Lockout   LockoutTracker
	// MirrorLockState copies lockout state onto the credential record. Its
	// failures are reported through Warn and never fail verification.
	MirrorLockState func(ctx context.Context, userID string, failures int, lockedUntil *time.Time) error
	Warn            func(msg string, err error)
}

// RunVerifyCredentials checks identifier and password against the stored
// credential, applying the lockout state machine.
//
// A locked account fails with VerifyFailureLocked before the password is
// examined, so a correct password cannot clear an active lock. A mismatch
// records a failure; the attempt that reaches the threshold still reports
// VerifyFailureMismatch with JustLocked set. A successful match resets the
// counter.
func RunVerifyCredentials(ctx context.Context, identifier, password string, deps VerifyDeps) VerifyResult {
	cred, found, err := deps.Lookup(ctx, identifier)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureLookup, Err: err}
	}
	if !found {
		if deps.DummyHash != "" {
			_, _ = deps.Hasher.Verify(password, deps.DummyHash, deps.DummySalt)
		}
		return VerifyResult{Failure: VerifyFailureUnknownIdentity}
	}

	now := deps.Now()
	if deps.Lockout != nil {
		state, err := deps.Lockout.Status(ctx, cred.UserID)
		if err != nil {
			return VerifyResult{Failure: VerifyFailureLockout, Err: err, Credential: cred}
		}
		if state.Locked(now) {
			return VerifyResult{Failure: VerifyFailureLocked, Credential: cred, Lockout: state}
		}
	}

	ok, err := deps.Hasher.Verify(password, cred.PasswordHash, cred.PasswordSalt)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureHash, Err: err, Credential: cred}
	}

	if !ok {
		res := VerifyResult{Failure: VerifyFailureMismatch, Credential: cred}
		if deps.Lockout != nil {
			state, justLocked, err := deps.Lockout.RecordFailure(ctx, cred.UserID, now)
			if err != nil {
				return VerifyResult{Failure: VerifyFailureLockout, Err: err, Credential: cred}
			}
			res.Lockout = state
			res.JustLocked = justLocked
			mirror(ctx, deps, cred.UserID, state)
		}
		return res
	}

	if deps.Lockout != nil {
		if err := deps.Lockout.Reset(ctx, cred.UserID); err != nil {
			return VerifyResult{Failure: VerifyFailureLockout, Err: err, Credential: cred}
		}
		mirror(ctx, deps, cred.UserID, limiters.LockoutState{})
	}

	if !cred.Active {
		return VerifyResult{Failure: VerifyFailureInactive, Credential: cred}
	}
	return VerifyResult{Credential: cred}
}

func mirror(ctx context.Context, deps VerifyDeps, userID string, state limiters.LockoutState) {
	if deps.MirrorLockState == nil {
		return
	}
	var until *time.Time
	if !state.LockedUntil.IsZero() {
		t := state.LockedUntil
		until = &t
	}
	if err := deps.MirrorLockState(ctx, userID, state.Failures, until); err != nil && deps.Warn != nil {
		deps.Warn("lock state mirror failed", err)
	}
}
