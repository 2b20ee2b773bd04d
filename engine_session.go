package authguard

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/flows"
	"github.com/MrEthical07/authguard/notify"
	"github.com/MrEthical07/authguard/session"
)

// CreateSession describes the session creation operation and its observable
// behavior.
//
// The session expires after Session.Timeout, or Session.RememberMeTTL when
// rememberMe is set. A login from a country none of the user's active
// sessions came from marks the session suspicious with risk of at least 75
// and records a medium suspicious_login_location event; the session stays
// active. When the user already holds Session.MaxConcurrent active sessions,
// the oldest one is revoked together with its refresh tokens and the new
// session's risk is raised to at least 50.
//
// The returned session carries the plaintext session token; only its hash
// is stored.
func (e *Engine) CreateSession(ctx context.Context, userID string, sc SessionContext, rememberMe bool) (*session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	if sc.IP == "" {
		sc.IP = clientIPFromContext(ctx)
	}
	if sc.UserAgent == "" {
		sc.UserAgent = userAgentFromContext(ctx)
	}

	res := flows.RunCreateSession(ctx, flows.SessionInput{
		UserID:         userID,
		IP:             sc.IP,
		UserAgent:      sc.UserAgent,
		AcceptLanguage: sc.AcceptLanguage,
		AcceptEncoding: sc.AcceptEncoding,
		Accept:         sc.Accept,
		RememberMe:     rememberMe,
	}, e.flows.Session)

	switch res.Failure {
	case flows.SessionFailureNone:
	case flows.SessionFailureRandom:
		return nil, e.failure("create_session", newError(KindCryptoFailure, "session id", res.Err))
	default:
		return nil, e.failure("create_session", classify(res.Err))
	}

	s := res.Session
	e.metricInc(MetricSessionCreated)

	for _, victim := range res.Evicted {
		e.metricInc(MetricSessionEvicted)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeSessionEvicted,
			Severity:   SeverityLow,
			IP:         sc.IP,
			UserID:     userID,
			SessionID:  victim,
			Confidence: 10,
			Details:    "concurrent session limit reached",
			Metadata: map[string]string{
				"max_sessions":   strconv.Itoa(e.config.Session.MaxConcurrent),
				"new_session_id": s.ID,
			},
		})
	}

	if res.Assessment.NewCountry {
		e.metricInc(MetricSuspiciousLocation)
		meta := map[string]string{
			"new_country":        s.Country,
			"previous_countries": strings.Join(res.Assessment.PreviousCountries, ","),
		}
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeSuspiciousLoginLocation,
			Severity:   SeverityMedium,
			IP:         sc.IP,
			UserID:     userID,
			SessionID:  s.ID,
			Confidence: 75,
			Details:    "login from new country",
			Metadata:   meta,
		})
		e.notify(notify.KindSuspiciousLocation, userID,
			"New sign-in location",
			"Your account was accessed from "+s.Country+". If this was not you, revoke the session and change your password.",
			meta)
	}

	e.emit(ctx, SecurityEvent{
		Type:       audit.TypeSessionCreated,
		Severity:   SeverityLow,
		IP:         sc.IP,
		UserID:     userID,
		SessionID:  s.ID,
		Confidence: s.RiskScore,
		Metadata: map[string]string{
			"device_type": s.DeviceType,
			"browser":     s.Browser,
			"os":          s.OS,
			"country":     s.Country,
		},
	})

	return s, nil
}

// RevokeSession ends the session and revokes every refresh token bound to
// it. Revoking an ended or unknown session succeeds without effect.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	changed, err := flows.RunRevokeSession(ctx, sessionID, e.flows.Revoke)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return e.failure("revoke_session", classify(err))
	}
	if changed {
		e.metricInc(MetricSessionRevoked)
		e.emit(ctx, SecurityEvent{
			Type:      audit.TypeSessionRevoked,
			Severity:  SeverityLow,
			SessionID: sessionID,
		})
	}
	return nil
}

// Logout revokes the session named by token. The token's signature and expiry
// are not checked, so an expired access token still ends its session.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	claims := e.jwt.DecodeUnsafe(token)
	if claims == nil || claims.SessionID == "" {
		return e.failure("logout", newError(KindInvalidToken, "undecodable token", nil))
	}
	e.logger.Debug("logout", zap.String("session_id", claims.SessionID))
	return e.RevokeSession(ctx, claims.SessionID)
}
