package authguard

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authguard/geo"
	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/limiters"
	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/MrEthical07/authguard/jwt"
	"github.com/MrEthical07/authguard/notify"
	"github.com/MrEthical07/authguard/password"
	"github.com/MrEthical07/authguard/permission"
	"github.com/MrEthical07/authguard/refresh"
	"github.com/MrEthical07/authguard/secret"
	"github.com/MrEthical07/authguard/session"
	"github.com/MrEthical07/authguard/threat"
)

// Builder assembles an [Engine]. Configure it during initialization; a
// Builder can build exactly one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	events      EventStore

	now    func() time.Time
	random io.Reader
	logger *zap.Logger

	locator    geo.Locator
	classifier geo.Classifier
	notifier   notify.Notifier
	hasher     password.Hasher
	policy     *password.Policy

	roles     map[string][]string
	superRole string
	endpoints map[string]string

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, refresh records, lockout,
// rate windows and the blocklist. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the credential persistence collaborator. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithEventStore sets where security events are persisted. Without one,
// events are only logged.
func (b *Builder) WithEventStore(store EventStore) *Builder {
	b.events = store
	return b
}

// WithClock injects the time source used by every time-based decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRandom injects the randomness source for ids, salts and tokens.
// Defaults to crypto/rand.Reader.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithLocator sets the IP geolocation collaborator.
func (b *Builder) WithLocator(l geo.Locator) *Builder {
	b.locator = l
	return b
}

// WithClassifier sets the user-agent classifier.
func (b *Builder) WithClassifier(c geo.Classifier) *Builder {
	b.classifier = c
	return b
}

// WithNotifier sets the user notification channel.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithHasher overrides the password hasher selected by Config.Crypto.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithPasswordPolicy overrides the policy used by HashPassword.
func (b *Builder) WithPasswordPolicy(p password.Policy) *Builder {
	b.policy = &p
	return b
}

// WithRoles replaces the role table. superRole, when non-empty, holds "*".
func (b *Builder) WithRoles(roles map[string][]string, superRole string) *Builder {
	b.roles = roles
	b.superRole = superRole
	return b
}

// WithEndpoints replaces the endpoint permission table. Keys are
// "METHOD:/path" with "*" matching one segment.
func (b *Builder) WithEndpoints(endpoints map[string]string) *Builder {
	b.endpoints = endpoints
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	randomReader := b.random
	if randomReader == nil {
		randomReader = rand.Reader
	}

	e := &Engine{
		config:      cfg,
		now:         now,
		logger:      logger,
		random:      secret.NewSource(randomReader),
		ids:         audit.NewIDs(randomReader),
		redis:       b.redis,
		credentials: b.credentials,
		locator:     b.locator,
		classifier:  b.classifier,
		metrics:     NewMetrics(cfg.Metrics),
	}
	if e.locator == nil {
		e.locator = geo.Unknown{}
	}
	if e.classifier == nil {
		e.classifier = geo.UAClassifier{}
	}

	// -------- CREDENTIALS --------
	hasher := b.hasher
	if hasher == nil {
		var err error
		switch cfg.Crypto.PasswordHasher {
		case "argon2id":
			hasher, err = password.NewArgon2(cfg.Crypto.Argon2, randomReader)
		default:
			hasher, err = password.NewBcrypt(cfg.Crypto.BcryptCost, randomReader)
		}
		if err != nil {
			return nil, err
		}
	}
	e.hasher = hasher
	e.policy = password.DefaultPolicy()
	if b.policy != nil {
		e.policy = *b.policy
	}

	filler, err := e.random.Token(24)
	if err != nil {
		return nil, fmt.Errorf("dummy credential: %w", err)
	}
	e.dummyHash, e.dummySalt, err = hasher.Hash(filler)
	if err != nil {
		return nil, fmt.Errorf("dummy credential: %w", err)
	}

	if len(cfg.Crypto.MasterKey) > 0 {
		if e.sealer, err = secret.NewSealer(cfg.Crypto.MasterKey, cfg.Crypto.SealerSalt, e.random); err != nil {
			return nil, err
		}
		if e.signer, err = secret.NewSigner(cfg.Crypto.MasterKey, now); err != nil {
			return nil, err
		}
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		ClockSkew:     cfg.Token.ClockSkew,
		KeyID:         cfg.Token.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	e.jwt = jm
	e.refresh = refresh.NewRedisStore(b.redis, cfg.Store.Prefix, cfg.Token.RefreshTTL)

	// -------- SESSIONS --------
	policy := session.Policy{
		MaxConcurrent: cfg.Session.MaxConcurrent,
		Timeout:       cfg.Session.Timeout,
		RememberMeTTL: cfg.Session.RememberMeTTL,
	}
	e.risk = session.NewRisk(policy)
	e.sessions = session.NewRedisStore(b.redis, cfg.Store.Prefix, policy.RememberMeTTL, cfg.Session.Retention)

	// -------- LOCKOUT --------
	if cfg.Lockout.Enabled {
		e.lockout = limiters.NewLockout(b.redis, limiters.LockoutConfig{
			Enabled:     true,
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Duration:    cfg.Lockout.Duration,
			Window:      cfg.Lockout.Window,
			Prefix:      cfg.Store.Prefix,
		})
	}

	// -------- RBAC --------
	roles, superRole := b.roles, b.superRole
	if roles == nil {
		roles, superRole = permission.DefaultRoles(), permission.SuperAdmin
	}
	if e.authorizer, err = permission.NewAuthorizer(roles, superRole); err != nil {
		return nil, err
	}
	endpoints := b.endpoints
	if endpoints == nil {
		endpoints = permission.DefaultEndpoints()
	}
	if e.endpoints, err = permission.NewEndpointMap(endpoints); err != nil {
		return nil, err
	}
	e.public = permission.DefaultPublicPaths()
	if len(cfg.Threat.PublicPaths) > 0 {
		e.public = permission.PublicPaths(cfg.Threat.PublicPaths)
	}

	// -------- THREAT --------
	rules, defRule, err := cfg.Threat.rules()
	if err != nil {
		return nil, err
	}
	e.blocklist = threat.NewBlocklist(b.redis, cfg.Store.ThreatPrefix)
	e.threat = threat.NewPipeline(
		e.blocklist,
		rate.New(b.redis, rate.Config{Rules: rules, Default: defRule, Prefix: cfg.Store.Prefix, Now: now}),
		threat.NewScorer(nil),
		threat.PipelineConfig{
			BlockThreshold:   cfg.Threat.BlockThreshold,
			MonitorThreshold: cfg.Threat.MonitorThreshold,
			HighThreatBlock:  cfg.Threat.HighThreatBlock,
			RateLimitBlock:   cfg.Threat.RateLimitBlock,
			MonitorTTL:       cfg.Threat.MonitorTTL,
			BlockedAgents:    cfg.Threat.BlockedAgents,
		},
	)

	// -------- EVENTS --------
	sinks := audit.MultiSink{audit.NewZapSink(logger)}
	if b.events != nil {
		sinks = append(sinks, audit.NewStoreSink(b.events, logger))
	}
	e.sink = sinks
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, sinks)

	if cfg.Notify.Enabled {
		e.notifier = notify.NewDispatcher(notify.Config{
			QueueSize:   cfg.Notify.QueueSize,
			RatePerSec:  cfg.Notify.RatePerSec,
			Burst:       cfg.Notify.Burst,
			SendTimeout: cfg.Notify.SendTimeout,
		}, b.notifier, logger)
	}

	e.wireFlows()

	for _, w := range cfg.Lint() {
		logger.Warn("configuration warning", zap.String("warning", w))
	}

	b.built = true

	return e, nil
}
