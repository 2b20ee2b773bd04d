package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/internal/config"
	"github.com/MrEthical07/authguard/internal/logging"
)

const (
	devAdminID         = "admin"
	devAdminIdentifier = "admin@example.com"
	devPasswordEnv     = "AUTHGUARD_DEV_PASSWORD"
	devPasswordDefault = "Demo-Admin-Pass-42!"
)

func serve(ctx context.Context, s *config.Settings, dev bool) error {
	logger, closeLog, err := logging.New(logging.Options{
		Level:      s.LogLevel,
		File:       s.LogFile,
		MaxSizeMB:  s.LogMaxSizeMB,
		MaxBackups: s.LogMaxBackups,
		MaxAgeDays: s.LogMaxAgeDays,
		Compress:   s.LogCompress,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	rt, err := newRuntime(ctx, s, dev, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer rt.Close()

	if dev {
		pw := lookupEnv(devPasswordEnv, devPasswordDefault)
		if err := rt.seedUser(ctx, devAdminID, devAdminIdentifier, "admin", pw); err != nil {
			return err
		}
		logger.Info("dev mode: seeded admin account", zap.String("identifier", devAdminIdentifier))
	}

	sampler := rt.engine.NewSampler(s.SampleInterval, func(sm authguard.Sample) {
		if !sm.RedisUp {
			logger.Warn("redis unreachable")
		}
	})
	samplerCtx, stopSampler := context.WithCancel(ctx)
	defer stopSampler()
	go sampler.Run(samplerCtx)

	srv := &http.Server{
		Addr:              s.HTTPAddr,
		Handler:           newRouter(rt, sampler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", s.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
