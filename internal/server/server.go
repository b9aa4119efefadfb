// Package server sets up the HTTP router, all route definitions and the
// listener lifecycle.
//
// This package is the "wiring" layer: it decides which URL patterns map to
// which handlers and what middleware runs on which routes. Handlers arrive
// already constructed (see cmd/server), so tests can build a Server from
// handlers backed by fakes.
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

	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/handler"
	"github.com/sakif/mymume/internal/middleware"
)

// Config holds listener settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// DevLogin registers POST /auth/dev/login.
	DevLogin bool
}

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Profile    *handler.ProfileHandler
	Identity   *handler.IdentityHandler
	Connection *handler.ConnectionHandler
	Avatar     *handler.AvatarHandler
	Health     *handler.HealthHandler
}

// Server represents the HTTP server and its router.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

func New(cfg Config, h Handlers, tokens *auth.TokenService, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(h, tokens)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                → liveness + database ping
//	GET    /auth/google/login      → redirect to Google
//	GET    /auth/google/callback   → finish login, set cookie
//	POST   /auth/logout            → clear cookie
//	POST   /auth/dev/login         → email login (only when enabled)
//	GET    /api/avatar             → render a seed (svg, png, json)
//	GET    /api/avatar/random      → fresh seed
//
//	Authenticated:
//	GET    /api/me
//	GET    /api/playlist           → stored playlist + profile
//	POST   /api/playlist           → profile update, pasted text or streamed URL ingest
//	POST   /api/analyze-identity
//	POST   /api/detect-city
//	POST   /api/profile/reset
//	GET    /api/profile/songs?userId=
//	GET    /api/public-profiles
//	POST   /api/mume-connection
//
// MIDDLEWARE ORDER MATTERS: RequestID runs first so the access log can
// print it; Recoverer sits inside Logger so a recovered panic is logged
// with its 500 status.
func (s *Server) setupRoutes(h Handlers, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", h.Health.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", h.Auth.HandleGoogleLogin)
		r.Get("/google/callback", h.Auth.HandleGoogleCallback)
		r.Post("/logout", h.Auth.HandleLogout)
		if s.config.DevLogin {
			r.Post("/dev/login", h.Auth.HandleDevLogin)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/avatar", h.Avatar.HandleAvatar)
		r.Get("/avatar/random", h.Avatar.HandleRandom)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", h.Auth.HandleMe)
			r.Get("/playlist", h.Profile.HandleGetPlaylist)
			r.Post("/playlist", h.Profile.HandlePostPlaylist)
			r.Post("/analyze-identity", h.Identity.HandleAnalyze)
			r.Post("/detect-city", h.Profile.HandleDetectCity)
			r.Post("/profile/reset", h.Profile.HandleReset)
			r.Get("/profile/songs", h.Connection.HandleSongs)
			r.Get("/public-profiles", h.Profile.HandlePublicProfiles)
			r.Post("/mume-connection", h.Connection.HandleSetConnection)
		})
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully: stop
// accepting connections and give in-flight requests ShutdownTimeout to
// finish. Ingestion streams that outlive it are cut off.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
