package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authguard/geo"
	"github.com/MrEthical07/authguard/session"
)

// SessionFailureKind classifies session creation failures.
type SessionFailureKind int

const (
	SessionFailureNone SessionFailureKind = iota
	SessionFailureRandom
	SessionFailureStore
)

// SessionInput is the request context a session is created from.
type SessionInput struct {
	UserID         string
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Accept         string
	RememberMe     bool
}

// SessionResult carries the created session or failure metadata.
type SessionResult struct {
	Failure    SessionFailureKind
	Err        error
	Session    *session.Session
	Assessment session.Assessment
	// Evicted lists the sessions ended to make room under the concurrency
	// cap, oldest first.
	Evicted []string
}

// SessionDeps captures session creation dependencies.
type SessionDeps struct {
	Now        func() time.Time
	NewID      func() (string, error)
	NewToken   func() (string, error)
	Locator    geo.Locator
	Classifier geo.Classifier
	Risk       *session.Risk
	Store      session.Store
	Revoke     RevokeDeps
	Warn       func(msg string, err error)
}

// RunCreateSession builds a session from in, applies the risk rules against
// the user's active sessions and persists it. The store enforces the cap
// atomically with the insert; every evicted session then has its refresh
// tokens revoked. The returned session carries its plaintext token; only the
// hash is stored.
func RunCreateSession(ctx context.Context, in SessionInput, deps SessionDeps) SessionResult {
	id, err := deps.NewID()
	if err != nil {
		return SessionResult{Failure: SessionFailureRandom, Err: err}
	}
	token, err := deps.NewToken()
	if err != nil {
		return SessionResult{Failure: SessionFailureRandom, Err: err}
	}

	now := deps.Now()
	loc := geo.Location{}
	if deps.Locator != nil {
		if l, err := deps.Locator.Lookup(ctx, in.IP); err != nil {
			if deps.Warn != nil {
				deps.Warn("geo lookup failed", err)
			}
		} else {
			loc = l
		}
	}
	dev := geo.UnknownDevice
	if deps.Classifier != nil {
		dev = deps.Classifier.Classify(in.UserAgent)
	}

	candidate := &session.Session{
		ID:           id,
		Token:        token,
		TokenHash:    session.HashToken(token),
		UserID:       in.UserID,
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Fingerprint:  session.Fingerprint(in.UserAgent, in.AcceptLanguage, in.AcceptEncoding, in.Accept),
		Country:      loc.Country,
		City:         loc.City,
		DeviceType:   dev.Type,
		Browser:      dev.Browser,
		OS:           dev.OS,
		Status:       session.StatusActive,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    deps.Risk.Policy().Expiry(now, in.RememberMe),
	}

	active, err := deps.Store.ListActive(ctx, in.UserID, now)
	if err != nil {
		return SessionResult{Failure: SessionFailureStore, Err: err}
	}

	res := SessionResult{Assessment: deps.Risk.Evaluate(candidate, active)}

	evicted, err := deps.Store.CreateCapped(ctx, candidate, deps.Risk.Policy().MaxConcurrent, now)
	if err != nil {
		return SessionResult{Failure: SessionFailureStore, Err: err}
	}
	res.Session = candidate
	res.Evicted = evicted
	if len(evicted) > 0 {
		res.Assessment.CapReached = true
	}

	for _, id := range evicted {
		if _, err := RunRevokeSession(ctx, id, deps.Revoke); err != nil && !errors.Is(err, session.ErrNotFound) {
			if deps.Warn != nil {
				deps.Warn("evicted session refresh sweep failed", err)
			}
			res.Err = err
		}
	}
	return res
}
