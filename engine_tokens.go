package authguard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/flows"
	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/notify"
	"github.com/MrEthical07/authguard/refresh"
)

// IssueTokens signs an access token and starts a new refresh token family
// bound to sessionID. The refresh record is stored before the pair is
// returned.
func (e *Engine) IssueTokens(ctx context.Context, userID, role, sessionID string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	access, accessClaims, err := e.jwt.IssueAccess(userID, role, sessionID, 0)
	if err != nil {
		return nil, e.failure("issue_tokens", newError(KindCryptoFailure, "sign access", err))
	}
	issue, err := e.jwt.IssueRefresh(userID, sessionID, "")
	if err != nil {
		return nil, e.failure("issue_tokens", newError(KindCryptoFailure, "sign refresh", err))
	}

	now := e.now()
	if err := e.refresh.Save(ctx, &refresh.Record{
		TokenHash: issue.TokenHash,
		UserID:    userID,
		SessionID: sessionID,
		FamilyID:  issue.FamilyID,
		ExpiresAt: issue.ExpiresAt,
		CreatedAt: now,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}); err != nil {
		return nil, e.failure("issue_tokens", classify(err))
	}

	e.metricInc(MetricTokensIssued)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     issue.Token,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: issue.ExpiresAt,
		SessionID:        sessionID,
		FamilyID:         issue.FamilyID,
	}, nil
}

// RotateTokens describes the refresh exchange operation and its observable
// behavior.
//
// A valid refresh token is consumed and exchanged for a new pair in the same
// family. Presenting a token whose record is missing, already used, revoked,
// expired, or whose family is revoked revokes the entire family, records a
// critical token_reuse_detected event and fails with KindTokenReuseDetected.
// Of any number of concurrent exchanges of one token, exactly one succeeds.
// Tokens of inactive or deleted accounts fail with KindAccountInactive and
// their family is revoked.
func (e *Engine) RotateTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	res := flows.RunRotate(ctx, flows.RotateInput{
		Token:     refreshToken,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}, e.flows.Rotate)

	switch res.Failure {
	case flows.RotateFailureNone:
	case flows.RotateFailureInvalidToken:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricTokenInvalid)
		return nil, e.failure("rotate_tokens", classify(res.Err))
	case flows.RotateFailureInactive:
		e.metricInc(MetricRefreshFailure)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeAccountInactive,
			Severity:   SeverityMedium,
			UserID:     res.Claims.Subject,
			SessionID:  res.Claims.SessionID,
			Confidence: 40,
			Details:    "refresh for inactive account",
			Metadata:   map[string]string{"token_family": res.Claims.FamilyID},
		})
		return nil, e.failure("rotate_tokens", newError(KindAccountInactive, "inactive", res.Err))
	case flows.RotateFailureReuse:
		e.metricInc(MetricRefreshFailure)
		return nil, e.failure("rotate_tokens", e.reportReuse(ctx, res.Claims, res.Status, res.FamilyRevoked, res.Err))
	case flows.RotateFailureIssue:
		e.metricInc(MetricRefreshFailure)
		return nil, e.failure("rotate_tokens", newError(KindCryptoFailure, "sign", res.Err))
	default:
		e.metricInc(MetricRefreshFailure)
		return nil, e.failure("rotate_tokens", classify(res.Err))
	}

	e.metricInc(MetricRefreshSuccess)
	e.emit(ctx, SecurityEvent{
		Type:      audit.TypeTokenRotated,
		Severity:  SeverityLow,
		UserID:    res.Claims.Subject,
		SessionID: res.Claims.SessionID,
		Metadata:  map[string]string{"token_family": res.Refresh.FamilyID},
	})

	return &TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.Refresh.Token,
		TokenType:        "Bearer",
		AccessExpiresAt:  res.AccessClaims.ExpiresAt.Time,
		RefreshExpiresAt: res.Refresh.ExpiresAt,
		SessionID:        res.Claims.SessionID,
		FamilyID:         res.Refresh.FamilyID,
	}, nil
}

// VerifyToken checks token as the expected type. Refresh tokens must also
// have a live record: unused, unrevoked, unexpired and in a family that was
// not revoked. A refresh token that passes signature checks but whose record
// is not live is treated as reuse: its family is revoked and the call fails
// with KindTokenReuseDetected. Every other rejection is KindInvalidToken.
func (e *Engine) VerifyToken(ctx context.Context, token string, expected jwt.TokenType) (*jwt.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwt.Verify(token, expected)
	if err != nil {
		e.metricInc(MetricTokenInvalid)
		return nil, e.failure("verify_token", classify(err))
	}
	if expected != jwt.TypeRefresh {
		return claims, nil
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	rec, err := e.refresh.Get(ctx, jwt.HashToken(token))
	if errors.Is(err, refresh.ErrNotFound) {
		e.metricInc(MetricTokenInvalid)
		return nil, e.failure("verify_token", newError(KindInvalidToken, "no refresh record", nil))
	}
	if err != nil {
		return nil, e.failure("verify_token", classify(err))
	}

	status := recordStatus(rec, e.now())
	if status == refresh.RotateOK {
		revoked, err := e.refresh.FamilyRevoked(ctx, claims.FamilyID)
		if err != nil {
			return nil, e.failure("verify_token", classify(err))
		}
		if revoked {
			status = refresh.RotateFamilyRevoked
		}
	}
	if status == refresh.RotateOK {
		return claims, nil
	}

	e.metricInc(MetricTokenInvalid)
	n, err := e.refresh.RevokeFamily(ctx, claims.FamilyID)
	if err != nil {
		return nil, e.failure("verify_token", classify(err))
	}
	return nil, e.failure("verify_token", e.reportReuse(ctx, claims, status, n, nil))
}

func recordStatus(rec *refresh.Record, now time.Time) refresh.RotateStatus {
	switch {
	case rec.Revoked:
		return refresh.RotateRevoked
	case rec.Used:
		return refresh.RotateAlreadyUsed
	case !now.Before(rec.ExpiresAt):
		return refresh.RotateExpired
	default:
		return refresh.RotateOK
	}
}

// reportReuse records a critical token_reuse_detected event, notifies the
// account owner and returns the KindTokenReuseDetected error.
func (e *Engine) reportReuse(ctx context.Context, claims *jwt.Claims, status refresh.RotateStatus, revoked int, cause error) *Error {
	e.metricInc(MetricRefreshReuseDetected)
	meta := map[string]string{
		"token_family":   claims.FamilyID,
		"status":         status.String(),
		"tokens_revoked": strconv.Itoa(revoked),
	}
	e.emit(ctx, SecurityEvent{
		Type:       audit.TypeTokenReuseDetected,
		Severity:   SeverityCritical,
		UserID:     claims.Subject,
		SessionID:  claims.SessionID,
		Confidence: 95,
		Details:    "refresh token reuse detected; token family revoked",
		Metadata:   meta,
	})
	e.notify(notify.KindTokenReuse, claims.Subject,
		"Suspicious session activity",
		"A previously used sign-in token was presented again. Affected sessions were signed out.",
		meta)
	return newError(KindTokenReuseDetected, status.String(), cause)
}
