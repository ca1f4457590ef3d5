// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects services, handlers and
// middleware, and owns the background workers (OAuth state sweeper, sync
// scheduler) for the lifetime of the process.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → OpenStore → server.New(cfg, store, logger)
//	New:     store → services → handlers → routes
//
// This is the "composition root" pattern: every dependency is built in
// one place, and no package below reaches for globals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/content-dashboard/internal/analysis"
	"github.com/sakif/content-dashboard/internal/auth"
	"github.com/sakif/content-dashboard/internal/config"
	"github.com/sakif/content-dashboard/internal/handler"
	"github.com/sakif/content-dashboard/internal/middleware"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
	"github.com/sakif/content-dashboard/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The store is owned by the caller; the Server never closes it.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	logger    *slog.Logger
	store     repository.Store
	sweeper   *auth.Sweeper
	scheduler *service.Scheduler
}

// New builds every service and handler over store and mounts the routes.
// It fails only when the session secret is unusable.
func New(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	states := auth.NewMemoryStateStore(time.Now)
	provider := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Timeout:      cfg.HTTPTimeout,
	})
	authSvc := service.NewAuthService(provider, states, store, tokens, service.AuthConfig{
		AllowlistEnabled: cfg.AllowlistEnabled,
		SuccessRedirect:  cfg.SuccessRedirect,
		FailureRedirect:  cfg.FailureRedirect,
	}, logger)

	reconciler := NewReconciler(store, cfg, logger)

	// Left nil without a key so AnalysisService reports itself disabled.
	var analyzer service.PostAnalyzer
	if cfg.AnalysisEnabled() {
		analyzer = analysis.NewAnalyzer(analysis.NewClient(analysis.ClientConfig{
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
		}), logger)
	}

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		logger:    logger,
		store:     store,
		sweeper:   auth.NewSweeper(states, time.Minute, logger),
		scheduler: service.NewScheduler(reconciler, cfg.SyncInterval, logger),
	}

	s.routes(routeDeps{
		tokens:    tokens,
		auth:      handler.NewAuthHandler(authSvc, auth.CookieOptions{ForceSecure: cfg.CookieSecure}, logger),
		dashboard: handler.NewDashboardHandler(service.NewOverviewService(store, time.Now), logger),
		platforms: handler.NewPlatformHandler(reconciler, store, logger, handler.WithLongRequestTimeout(cfg.LongRequestTimeout)),
		admin:     handler.NewAdminHandler(service.NewAllowListService(store, logger), logger),
		analysis:  handler.NewAnalysisHandler(service.NewAnalysisService(store, analyzer, logger), logger, handler.WithLongRequestTimeout(cfg.LongRequestTimeout)),
		health:    handler.NewHealthHandler(store, logger),
		limiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger),
	})
	return s, nil
}

type routeDeps struct {
	tokens    auth.TokenVerifier
	auth      *handler.AuthHandler
	dashboard *handler.DashboardHandler
	platforms *handler.PlatformHandler
	admin     *handler.AdminHandler
	analysis  *handler.AnalysisHandler
	health    *handler.HealthHandler
	limiter   *middleware.RateLimiter
}

// routes mounts every endpoint.
//
// ROUTE STRUCTURE:
//
//	GET    /auth/google                              → consent redirect
//	GET    /auth/google/callback                     → finish login
//	GET    /metrics                                  → Prometheus
//	GET    /api/health                               → store ping
//	POST   /api/auth/logout                          → clear cookie
//	-- session required --
//	GET    /api/auth/user
//	GET    /api/metrics/overview
//	GET    /api/posts, /api/posts/top, /api/posts/{id}
//	GET    /api/platforms
//	-- role user --
//	POST   /api/platforms/{type}/sync
//	GET    /api/platforms/{type}/validate
//	POST   /api/posts/{id}/sync, /api/posts/{id}/analyze
//	POST   /api/analysis/batch
//	-- role admin --
//	POST   /api/platforms/{type}/refresh-token
//	GET    /api/admin/allowed-emails
//	POST   /api/admin/allowed-emails
//	DELETE /api/admin/allowed-emails/{email}
//
// MIDDLEWARE ORDER MATTERS: RequestID and RealIP run first so the logger
// and the rate limiter see the request id and the real client address.
func (s *Server) routes(d routeDeps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/auth/google", d.auth.HandleLogin)
	s.router.Get("/auth/google/callback", d.auth.HandleCallback)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(d.limiter.Handler)

		r.Get("/health", d.health.HandleHealth)
		r.Post("/auth/logout", d.auth.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.tokens))

			r.Get("/auth/user", d.auth.HandleUser)
			r.Get("/metrics/overview", d.dashboard.HandleOverview)
			r.Get("/posts", d.dashboard.HandleListPosts)
			r.Get("/posts/top", d.dashboard.HandleTopPosts)
			r.Get("/posts/{id}", d.dashboard.HandleGetPost)
			r.Get("/platforms", d.platforms.HandleList)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(model.RoleUser))

				r.Post("/platforms/{type}/sync", d.platforms.HandleSync)
				r.Get("/platforms/{type}/validate", d.platforms.HandleValidate)
				r.Post("/posts/{id}/sync", d.platforms.HandleSyncPost)
				r.Post("/posts/{id}/analyze", d.analysis.HandleAnalyzePost)
				r.Post("/analysis/batch", d.analysis.HandleBatch)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(model.RoleAdmin))

				r.Post("/platforms/{type}/refresh-token", d.platforms.HandleRefreshToken)
				r.Get("/admin/allowed-emails", d.admin.HandleList)
				r.Post("/admin/allowed-emails", d.admin.HandleAdd)
				r.Delete("/admin/allowed-emails/{email}", d.admin.HandleRemove)
			})
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting connections and let in-flight requests finish
//  2. stop the scheduler, cancelling any running sync
//  3. stop the state sweeper
func (s *Server) Start(ctx context.Context) error {
	// Sync and analysis routes extend their own write deadline; see
	// handler.WithLongRequestTimeout.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.sweeper.Start()
	defer s.sweeper.Stop()
	s.scheduler.Start(ctx)
	defer s.scheduler.Stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.StoreDriver()),
			slog.Bool("allowlist", s.cfg.AllowlistEnabled),
			slog.Bool("analysis", s.cfg.AnalysisEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
