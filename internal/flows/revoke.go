package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authguard/session"
)

type RefreshRevoker interface {
	RevokeSession(ctx context.Context, sessionID string) (int, error)
}

// RevokeDeps captures session revocation dependencies.
type RevokeDeps struct {
	Now      func() time.Time
	Sessions session.Store
	Refresh  RefreshRevoker
}

// RunRevokeSession ends a session and revokes every refresh token bound to
// it. It reports whether the session state changed; revoking an already
// ended session is a no-op that still sweeps its refresh tokens.
func RunRevokeSession(ctx context.Context, sessionID string, deps RevokeDeps) (bool, error) {
	changed, err := deps.Sessions.End(ctx, sessionID, session.StatusRevoked, deps.Now())
	if err != nil {
		return false, err
	}
	if deps.Refresh != nil {
		if _, err := deps.Refresh.RevokeSession(ctx, sessionID); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
