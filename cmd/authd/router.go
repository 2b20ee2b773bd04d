package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/MrEthical07/authguard"
	promexport "github.com/MrEthical07/authguard/metrics/export/prometheus"
	"github.com/MrEthical07/authguard/middleware"
)

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         3600,
	}).Handler
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", r.Header.Get(middleware.RequestIDHeader)),
			)
		})
	}
}

func newRouter(rt *runtime, sampler *authguard.Sampler) http.Handler {
	h := &handlers{
		engine:        rt.engine,
		store:         rt.store,
		now:           time.Now,
		registerRoles: rt.settings.RegisterRoles,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(corsHandler(rt.settings.AllowedOrigins))
	r.Use(requestLogger(rt.logger.Named("http")))

	r.Get("/health", h.health)
	if rt.settings.MetricsEnabled {
		var samples promexport.SampleSource
		if sampler != nil {
			samples = sampler
		}
		r.Method(http.MethodGet, "/metrics", promexport.Handler(promexport.NewCollector(rt.engine, samples)))
	}

	r.Group(func(pub chi.Router) {
		pub.Use(middleware.Shield(rt.engine))
		pub.Post("/auth/login", h.login)
		pub.Post("/auth/refresh", h.refresh)
		if len(h.registerRoles) > 0 {
			pub.Post("/auth/register", h.register)
		}
	})

	r.Group(func(priv chi.Router) {
		priv.Use(middleware.Guard(rt.engine))
		priv.Post("/auth/logout", h.logout)
		priv.Get("/api/me", h.me)
		priv.Get("/api/sessions", h.listSessions)
		priv.Delete("/api/sessions/{id}", h.revokeSession)
		priv.Get("/api/admin/security-events", h.securityEvents)
	})
	return r
}
