package authguard

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/MrEthical07/authguard/internal/audit"
)

// Login verifies the credentials, opens a session and issues its first token
// pair. Request screening is separate: call [Engine.ScoreRequest] first.
//
// When token issuance fails the new session is revoked before the error is
// returned. Recording the last login on the credential record is best effort.
func (e *Engine) Login(ctx context.Context, identifier, pass string, sc SessionContext, rememberMe bool) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sc.IP != "" {
		ctx = WithClientIP(ctx, sc.IP)
	}
	if sc.UserAgent != "" {
		ctx = WithUserAgent(ctx, sc.UserAgent)
	}

	id, err := e.VerifyCredentials(ctx, identifier, pass)
	if err != nil {
		return nil, err
	}

	s, err := e.CreateSession(ctx, id.UserID, sc, rememberMe)
	if err != nil {
		return nil, err
	}

	tokens, err := e.IssueTokens(ctx, id.UserID, id.Role, s.ID)
	if err != nil {
		if rerr := e.RevokeSession(ctx, s.ID); rerr != nil {
			e.logger.Warn("orphan session not revoked", zap.String("session_id", s.ID), zap.Error(rerr))
		}
		return nil, err
	}

	rctx, cancel := e.opContext(ctx)
	if err := e.credentials.RecordLogin(rctx, id.UserID, e.now(), sc.IP); err != nil {
		e.logger.Warn("last login not recorded", zap.String("user_id", id.UserID), zap.Error(err))
	}
	cancel()

	e.metricInc(MetricLoginSuccess)
	e.emit(ctx, SecurityEvent{
		Type:      audit.TypeLoginSucceeded,
		Severity:  SeverityLow,
		UserID:    id.UserID,
		SessionID: s.ID,
		Metadata:  map[string]string{"remember_me": strconv.FormatBool(rememberMe)},
	})

	return &LoginResult{
		Identity:   *id,
		Session:    s,
		Tokens:     tokens,
		Suspicious: s.IsSuspicious,
	}, nil
}
