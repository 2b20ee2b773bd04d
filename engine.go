package authguard

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authguard/geo"
	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/flows"
	"github.com/MrEthical07/authguard/internal/limiters"
	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/notify"
	"github.com/MrEthical07/authguard/password"
	"github.com/MrEthical07/authguard/permission"
	"github.com/MrEthical07/authguard/refresh"
	"github.com/MrEthical07/authguard/secret"
	"github.com/MrEthical07/authguard/session"
	"github.com/MrEthical07/authguard/threat"
)

// Engine is the authentication and session integrity engine. It is safe for
// concurrent use once returned by [Builder.Build].
type Engine struct {
	config Config
	now    func() time.Time
	logger *zap.Logger
	random *secret.Source
	ids    *audit.IDs

	redis       redis.UniversalClient
	credentials CredentialStore

	hasher    password.Hasher
	policy    password.Policy
	dummyHash string
	dummySalt string
	sealer    *secret.Sealer
	signer    *secret.Signer

	jwt      *jwt.Manager
	refresh  refresh.Store
	sessions session.Store
	risk     *session.Risk
	lockout  *limiters.Lockout

	authorizer *permission.Authorizer
	endpoints  *permission.EndpointMap
	public     permission.PublicPaths

	threat    *threat.Pipeline
	blocklist *threat.Blocklist

	locator    geo.Locator
	classifier geo.Classifier

	sink     audit.Sink
	audit    *audit.Dispatcher
	notifier *notify.Dispatcher
	metrics  *Metrics

	flows flows.Deps
}

// Close stops the audit and notification workers after draining their
// queues.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.notifier.Close(ctx); err != nil {
			e.logger.Warn("notification queue not drained", zap.Error(err))
		}
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped returns how many security events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Authorizer exposes the role table for introspection.
func (e *Engine) Authorizer() *permission.Authorizer {
	return e.authorizer
}

// Unblock removes ip from the threat blocklist.
func (e *Engine) Unblock(ctx context.Context, ip string) error {
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	if err := e.blocklist.Unblock(ctx, ip); err != nil {
		return e.failure("unblock", classify(err))
	}
	return nil
}

func (e *Engine) wireFlows() {
	warn := func(msg string, err error) {
		e.logger.Warn(msg, zap.Error(err))
	}

	revoke := flows.RevokeDeps{
		Now:      e.now,
		Sessions: e.sessions,
		Refresh:  e.refresh,
	}

	var lockout flows.LockoutTracker
	if e.lockout != nil {
		lockout = e.lockout
	}

	e.flows = flows.Deps{
		Verify: flows.VerifyDeps{
			Now:       e.now,
			Lookup:    e.lookupCredential,
			Hasher:    e.hasher,
			DummyHash: e.dummyHash,
			DummySalt: e.dummySalt,
			Lockout:   lockout,
			MirrorLockState: func(ctx context.Context, userID string, failures int, lockedUntil *time.Time) error {
				return e.credentials.UpdateLockState(ctx, userID, failures, lockedUntil)
			},
			Warn: warn,
		},
		Session: flows.SessionDeps{
			Now:        e.now,
			NewID:      func() (string, error) { return e.random.Token(16) },
			NewToken:   func() (string, error) { return e.random.Token(32) },
			Locator:    e.locator,
			Classifier: e.classifier,
			Risk:       e.risk,
			Store:      e.sessions,
			Revoke:     revoke,
			Warn:       warn,
		},
		Rotate: flows.RotateDeps{
			Now: e.now,
			VerifyRefresh: func(token string) (*jwt.Claims, error) {
				return e.jwt.Verify(token, jwt.TypeRefresh)
			},
			IssueRefresh: e.jwt.IssueRefresh,
			IssueAccess: func(subject, role, sessionID string) (string, *jwt.Claims, error) {
				return e.jwt.IssueAccess(subject, role, sessionID, 0)
			},
			Account: e.accountState,
			Store:   e.refresh,
		},
		Revoke: revoke,
	}
}

func (e *Engine) lookupCredential(ctx context.Context, identifier string) (flows.Credential, bool, error) {
	rec, err := e.credentials.GetCredentialByIdentifier(ctx, identifier)
	if errors.Is(err, ErrCredentialNotFound) {
		return flows.Credential{}, false, nil
	}
	if err != nil {
		return flows.Credential{}, false, err
	}
	if rec == nil {
		return flows.Credential{}, false, nil
	}
	return flows.Credential{
		UserID:       rec.UserID,
		Identifier:   rec.Identifier,
		Role:         rec.Role,
		Active:       rec.IsActive(),
		PasswordHash: rec.PasswordHash,
		PasswordSalt: rec.PasswordSalt,
	}, true, nil
}

// accountState treats a vanished account like an inactive one so its token
// family is revoked.
func (e *Engine) accountState(ctx context.Context, userID string) (string, bool, error) {
	rec, err := e.credentials.GetCredentialByID(ctx, userID)
	if errors.Is(err, ErrCredentialNotFound) || (err == nil && rec == nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Role, rec.IsActive(), nil
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.Store.OperationTimeout)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// failure logs the internal cause of err and counts infrastructure failures.
func (e *Engine) failure(op string, err *Error) *Error {
	if err == nil {
		err = newError(KindUnknown, "missing cause", nil)
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.Stringer("kind", err.Kind),
	}
	if err.Reason != "" {
		fields = append(fields, zap.String("reason", err.Reason))
	}
	if err.Err != nil {
		fields = append(fields, zap.Error(err.Err))
	}

	switch err.Kind {
	case KindStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.logger.Error("operation failed", fields...)
	case KindCryptoFailure:
		e.metricInc(MetricCryptoFailure)
		e.logger.Error("operation failed", fields...)
	default:
		e.logger.Info("operation rejected", fields...)
	}
	return err
}

// emit stamps and records a security event. With audit buffering disabled the
// event is written synchronously.
func (e *Engine) emit(ctx context.Context, event SecurityEvent) {
	now := e.now()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if event.ID == "" {
		id, err := e.ids.New(event.Timestamp)
		if err != nil {
			e.logger.Warn("security event id generation failed", zap.Error(err))
		}
		event.ID = id
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}

	if e.audit != nil {
		e.audit.Emit(ctx, event)
		return
	}
	if e.sink != nil {
		e.sink.Emit(context.WithoutCancel(ctx), event)
	}
}

func (e *Engine) notify(kind, userID, subject, body string, metadata map[string]string) {
	if e.notifier == nil || userID == "" {
		return
	}
	e.notifier.Send(notify.Notification{
		Kind:     kind,
		UserID:   userID,
		Subject:  subject,
		Body:     body,
		Metadata: metadata,
		At:       e.now(),
	})
}
