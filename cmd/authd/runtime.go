package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/internal/config"
	"github.com/MrEthical07/authguard/notify"
	"github.com/MrEthical07/authguard/permission"
	"github.com/MrEthical07/authguard/store/memory"
	"github.com/MrEthical07/authguard/store/postgres"
)

// accountStore is implemented by both store/postgres and store/memory.
type accountStore interface {
	authguard.CredentialStore
	authguard.EventStore
	CreateCredential(ctx context.Context, rec authguard.CredentialRecord) error
	ListSecurityEvents(ctx context.Context, userID string, limit int) ([]authguard.SecurityEvent, error)
}

type runtime struct {
	settings *config.Settings
	logger   *zap.Logger
	engine   *authguard.Engine
	store    accountStore
	redis    *redis.Client

	closers []func() error
}

// serviceEndpoints extends the default permission table with the routes
// authd adds.
func serviceEndpoints() map[string]string {
	endpoints := permission.DefaultEndpoints()
	endpoints["GET:/api/admin/security-events"] = "audit:read"
	return endpoints
}

func newRuntime(ctx context.Context, s *config.Settings, dev bool, logger *zap.Logger) (*runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := s.EngineConfig()
	if err != nil {
		return nil, err
	}

	rt := &runtime{settings: s, logger: logger}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	redisAddr := s.RedisAddr
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-process redis: %w", err)
		}
		rt.closers = append(rt.closers, func() error { mr.Close(); return nil })
		redisAddr = mr.Addr()
		rt.store = memory.New()

		if len(cfg.Token.PrivateKey) == 0 {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return nil, err
			}
			cfg.Token.PrivateKey = key
			logger.Warn("dev mode: using an ephemeral signing key")
		}
	} else {
		if s.PostgresDSN == "" {
			return nil, errors.New("AUTHGUARD_POSTGRES_DSN is required without --dev")
		}
		pg, err := postgres.Open(s.PostgresDSN, postgres.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pg.Close)
		if err := pg.DB().PingContext(ctx); err != nil {
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		rt.store = pg
	}

	rt.redis = redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	})
	rt.closers = append(rt.closers, rt.redis.Close)
	if err := rt.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	engine, err := authguard.New().
		WithConfig(cfg).
		WithRedis(rt.redis).
		WithCredentialStore(rt.store).
		WithEventStore(rt.store).
		WithLogger(logger.Named("engine")).
		WithNotifier(notify.LogNotifier{Logger: logger.Named("notify")}).
		WithEndpoints(serviceEndpoints()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	rt.engine = engine

	for _, w := range cfg.Lint() {
		logger.Warn("configuration", zap.String("warning", w))
	}
	ok = true
	return rt, nil
}

// Close drains the engine workers and closes the backends in reverse order.
func (rt *runtime) Close() {
	if rt.engine != nil {
		rt.engine.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close", zap.Error(err))
		}
	}
	rt.closers = nil
}

// seedUser hashes pw under the engine's policy and stores a credential.
func (rt *runtime) seedUser(ctx context.Context, userID, identifier, role, pw string) error {
	hash, salt, _, err := rt.engine.HashPassword(pw)
	if err != nil {
		return err
	}
	return rt.store.CreateCredential(ctx, authguard.CredentialRecord{
		UserID:       userID,
		Identifier:   identifier,
		Role:         role,
		Status:       authguard.AccountActive,
		PasswordHash: hash,
		PasswordSalt: salt,
	})
}
