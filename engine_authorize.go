package authguard

import (
	"context"
	"time"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/jwt"
)

// Authorize reports whether role may call method on path. Public paths and
// endpoints without a mapped permission are allowed.
func (e *Engine) Authorize(role, method, path string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.public.IsPublic(path) {
		return nil
	}
	perm, ok := e.endpoints.Resolve(method, path)
	if !ok || e.authorizer.Allows(role, perm) {
		return nil
	}
	e.metricInc(MetricPermissionDenied)
	return newError(KindPermissionDenied, perm, nil)
}

// ValidateAccess describes the request admission operation and its
// observable behavior.
//
// Public paths are admitted without a token and return a nil result. For
// every other path the access token is verified and the role it carries is
// authorized for method and path. Token rejections fail with
// KindInvalidToken; a role without the required permission fails with
// KindPermissionDenied and records a permission_denied event.
//
// The access token is verified without a session lookup, so a revoked
// session stays usable until its access token expires.
func (e *Engine) ValidateAccess(ctx context.Context, token, method, path string) (*AccessResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()

	if e.public.IsPublic(path) {
		return nil, nil
	}

	claims, err := e.VerifyToken(ctx, token, jwt.TypeAccess)
	if err != nil {
		return nil, err
	}

	perm, _ := e.endpoints.Resolve(method, path)
	if err := e.Authorize(claims.Role, method, path); err != nil {
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypePermissionDenied,
			Severity:   SeverityMedium,
			UserID:     claims.Subject,
			SessionID:  claims.SessionID,
			Confidence: 30,
			Details:    "role lacks endpoint permission",
			Metadata: map[string]string{
				"role":       claims.Role,
				"permission": perm,
				"method":     method,
				"path":       path,
			},
		})
		return nil, e.failure("validate_access", err.(*Error))
	}

	return &AccessResult{
		UserID:     claims.Subject,
		Role:       claims.Role,
		SessionID:  claims.SessionID,
		Permission: perm,
		Claims:     claims,
	}, nil
}
