package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/refresh"
)

// RotateFailureKind classifies rotation failures.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureInvalidToken
	RotateFailureAccountLookup
	RotateFailureInactive
	RotateFailureIssue
	RotateFailureStore
	RotateFailureReuse
)

// RotateInput is one refresh exchange request.
type RotateInput struct {
	Token     string
	IP        string
	UserAgent string
}

// RotateResult carries the new token pair or failure metadata.
type RotateResult struct {
	Failure      RotateFailureKind
	Err          error
	Claims       *jwt.Claims
	Status       refresh.RotateStatus
	Role         string
	AccessToken  string
	AccessClaims *jwt.Claims
	Refresh      *jwt.RefreshIssue
	// FamilyRevoked counts records revoked in response to reuse.
	FamilyRevoked int
}

// RotateDeps captures rotation dependencies.
type RotateDeps struct {
	Now           func() time.Time
	VerifyRefresh func(token string) (*jwt.Claims, error)
	IssueRefresh  func(subject, sessionID, familyID string) (*jwt.RefreshIssue, error)
	IssueAccess   func(subject, role, sessionID string) (string, *jwt.Claims, error)
	// Account returns the user's current role and whether the account may
	// still hold tokens.
	Account func(ctx context.Context, userID string) (role string, active bool, err error)
	Store   refresh.Store
}

// RunRotate exchanges a refresh token for a new pair.
//
// The presented token's record is consumed and its successor stored in one
// conditional step. Any record that is missing, used, revoked, expired, or
// whose family is revoked is treated as reuse: the whole family is revoked
// and RotateFailureReuse is returned.
func RunRotate(ctx context.Context, in RotateInput, deps RotateDeps) RotateResult {
	claims, err := deps.VerifyRefresh(in.Token)
	if err != nil {
		return RotateResult{Failure: RotateFailureInvalidToken, Err: err}
	}

	role, active, err := deps.Account(ctx, claims.Subject)
	if err != nil {
		return RotateResult{Failure: RotateFailureAccountLookup, Err: err, Claims: claims}
	}
	if !active {
		n, err := deps.Store.RevokeFamily(ctx, claims.FamilyID)
		return RotateResult{Failure: RotateFailureInactive, Err: err, Claims: claims, FamilyRevoked: n}
	}

	next, err := deps.IssueRefresh(claims.Subject, claims.SessionID, claims.FamilyID)
	if err != nil {
		return RotateResult{Failure: RotateFailureIssue, Err: err, Claims: claims}
	}

	now := deps.Now()
	status, err := deps.Store.Rotate(ctx, jwt.HashToken(in.Token), &refresh.Record{
		TokenHash: next.TokenHash,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		FamilyID:  next.FamilyID,
		ExpiresAt: next.ExpiresAt,
		CreatedAt: now,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	}, now)
	if err != nil {
		return RotateResult{Failure: RotateFailureStore, Err: err, Claims: claims}
	}
	if status != refresh.RotateOK {
		res := RotateResult{Failure: RotateFailureReuse, Claims: claims, Status: status}
		n, err := deps.Store.RevokeFamily(ctx, claims.FamilyID)
		res.FamilyRevoked = n
		res.Err = err
		return res
	}

	access, accessClaims, err := deps.IssueAccess(claims.Subject, role, claims.SessionID)
	if err != nil {
		return RotateResult{Failure: RotateFailureIssue, Err: err, Claims: claims, Status: status}
	}

	return RotateResult{
		Claims:       claims,
		Status:       status,
		Role:         role,
		AccessToken:  access,
		AccessClaims: accessClaims,
		Refresh:      next,
	}
}
