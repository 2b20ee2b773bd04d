package authguard

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/authguard/internal/audit"
)

// Register creates an account, opens its first session and issues the
// initial token pair. The credential store must implement
// [CredentialCreator].
//
// The password is checked against the policy before any hashing work; a
// violation fails with KindWeakPassword and lists the failed rules in
// Error.Violations. A taken identifier fails with KindAccountExists, whether
// the pre-check or the store's uniqueness constraint catches it. New accounts
// are AccountPending unless reg.Status says otherwise, so they cannot rotate
// their refresh token until activated.
func (e *Engine) Register(ctx context.Context, reg Registration, sc SessionContext) (*LoginResult, error) {
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

	creator, ok := e.credentials.(CredentialCreator)
	if !ok {
		return nil, e.failure("register", newError(KindUnknown, "credential store cannot create accounts", nil))
	}

	identifier := strings.TrimSpace(reg.Identifier)
	if identifier == "" {
		return nil, e.failure("register", newError(KindInvalidCredentials, "empty identifier", nil))
	}
	if !e.authorizer.HasRole(reg.Role) {
		return nil, e.failure("register", newError(KindPermissionDenied, "unknown role", nil))
	}
	status := reg.Status
	if status == "" {
		status = AccountPending
	}

	report := e.policy.Validate(reg.Password)
	if !report.Valid {
		weak := newError(KindWeakPassword, "policy", report.Err())
		for _, v := range report.Errors {
			weak.Violations = append(weak.Violations, v.Error())
		}
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeRegistrationRejected,
			Severity:   SeverityLow,
			Confidence: 10,
			Details:    "weak password",
		})
		return nil, e.failure("register", weak)
	}

	userID, err := e.createAccount(ctx, creator, identifier, reg, status)
	if err != nil {
		ae := classify(err)
		if ae.Kind == KindAccountExists {
			e.emit(ctx, SecurityEvent{
				Type:       audit.TypeRegistrationRejected,
				Severity:   SeverityLow,
				Confidence: 20,
				Details:    "identifier taken",
			})
		}
		return nil, e.failure("register", ae)
	}
	e.metricInc(MetricAccountRegistered)
	e.emit(ctx, SecurityEvent{
		Type:     audit.TypeAccountRegistered,
		Severity: SeverityLow,
		UserID:   userID,
		Metadata: map[string]string{"role": reg.Role, "status": string(status)},
	})

	s, err := e.CreateSession(ctx, userID, sc, false)
	if err != nil {
		return nil, err
	}
	tokens, err := e.IssueTokens(ctx, userID, reg.Role, s.ID)
	if err != nil {
		if rerr := e.RevokeSession(ctx, s.ID); rerr != nil {
			e.logger.Warn("orphan session not revoked", zap.String("session_id", s.ID), zap.Error(rerr))
		}
		return nil, err
	}

	return &LoginResult{
		Identity:   Identity{UserID: userID, Identifier: identifier, Role: reg.Role},
		Session:    s,
		Tokens:     tokens,
		Suspicious: s.IsSuspicious,
	}, nil
}

func (e *Engine) createAccount(ctx context.Context, creator CredentialCreator, identifier string, reg Registration, status AccountStatus) (string, error) {
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	_, err := e.credentials.GetCredentialByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		return "", newError(KindAccountExists, "identifier taken", nil)
	case !errors.Is(err, ErrCredentialNotFound):
		return "", err
	}

	hash, salt, err := e.hasher.Hash(reg.Password)
	if err != nil {
		return "", newError(KindCryptoFailure, "hash", err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", newError(KindCryptoFailure, "user id", err)
	}

	err = creator.CreateCredential(ctx, CredentialRecord{
		UserID:       id.String(),
		Identifier:   identifier,
		Role:         reg.Role,
		Status:       status,
		PasswordHash: hash,
		PasswordSalt: salt,
	})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
