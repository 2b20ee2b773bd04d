package authguard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authguard/session"
)

// SessionInfo is the safe introspection view of a session. It never carries
// the session token or its hash.
type SessionInfo struct {
	SessionID    string
	Status       session.Status
	Suspicious   bool
	RiskScore    int
	IP           string
	Country      string
	City         string
	DeviceType   string
	Browser      string
	OS           string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// LockoutStatus is the current lockout view of one account.
type LockoutStatus struct {
	Failures    int
	Locked      bool
	LockedUntil time.Time
}

// ListActiveSessions returns the user's live sessions, oldest first.
func (e *Engine) ListActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	sessions, err := e.sessions.ListActive(ctx, userID, e.now())
	if err != nil {
		return nil, e.failure("list_sessions", classify(err))
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionInfo(s))
	}
	return out, nil
}

// GetActiveSessionCount returns how many live sessions the user holds.
func (e *Engine) GetActiveSessionCount(ctx context.Context, userID string) (int, error) {
	list, err := e.ListActiveSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// GetSessionInfo returns one session, live or ended. Unknown ids fail with
// KindInvalidToken.
func (e *Engine) GetSessionInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	s, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, newError(KindInvalidToken, "unknown session", nil)
	}
	if err != nil {
		return nil, e.failure("get_session", classify(err))
	}
	info := toSessionInfo(s)
	return &info, nil
}

// RevokeAllSessions ends every live session of the user and returns how many
// were ended.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	list, err := e.ListActiveSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range list {
		if err := e.RevokeSession(ctx, s.SessionID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// TouchSession records activity on a live session.
func (e *Engine) TouchSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err := e.sessions.Touch(ctx, sessionID, e.now())
	if errors.Is(err, session.ErrNotFound) {
		return newError(KindInvalidToken, "unknown session", nil)
	}
	if err != nil {
		return e.failure("touch_session", classify(err))
	}
	return nil
}

// GetLockoutStatus reports the failure count and lock deadline of userID.
func (e *Engine) GetLockoutStatus(ctx context.Context, userID string) (LockoutStatus, error) {
	if e == nil {
		return LockoutStatus{}, ErrEngineNotReady
	}
	if e.lockout == nil {
		return LockoutStatus{}, nil
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	st, err := e.lockout.Status(ctx, userID)
	if err != nil {
		return LockoutStatus{}, e.failure("lockout_status", classify(err))
	}
	return LockoutStatus{
		Failures:    st.Failures,
		Locked:      st.Locked(e.now()),
		LockedUntil: st.LockedUntil,
	}, nil
}

// UnlockAccount clears the failure counter and any lock on userID.
func (e *Engine) UnlockAccount(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if e.lockout != nil {
		if err := e.lockout.Reset(ctx, userID); err != nil {
			return e.failure("unlock_account", classify(err))
		}
	}
	if err := e.credentials.UpdateLockState(ctx, userID, 0, nil); err != nil && !errors.Is(err, ErrCredentialNotFound) {
		return e.failure("unlock_account", classify(err))
	}
	return nil
}

// Health pings Redis.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	start := time.Now()
	err := e.redis.Ping(ctx).Err()
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   time.Since(start),
	}
}

func toSessionInfo(s *session.Session) SessionInfo {
	return SessionInfo{
		SessionID:    s.ID,
		Status:       s.Status,
		Suspicious:   s.IsSuspicious,
		RiskScore:    s.RiskScore,
		IP:           s.IP,
		Country:      s.Country,
		City:         s.City,
		DeviceType:   s.DeviceType,
		Browser:      s.Browser,
		OS:           s.OS,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
	}
}
