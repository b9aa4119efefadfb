// Package main is the entry point for the MyMuMe server.
//
// The main package stays small. Its job is to:
//  1. Read configuration (TOML file, .env files, environment)
//  2. Create dependencies (logger, database, browser, caches, clients)
//  3. Wire them into services and handlers and start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/mymume/internal/app"
	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/config"
	"github.com/sakif/mymume/internal/handler"
	"github.com/sakif/mymume/internal/logging"
	"github.com/sakif/mymume/internal/repository/sqldb"
	"github.com/sakif/mymume/internal/server"
	"github.com/sakif/mymume/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (default $MYMUME_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "mymume:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// === 1. CONFIGURATION + LOGGING ===
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// SIGINT/SIGTERM cancel ctx, which drives the graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Released in reverse order once the server has stopped.
	var closers app.Closers
	defer func() {
		if err := closers.Close(); err != nil {
			logger.Warn("shutdown: close failed", slog.String("error", err.Error()))
		}
	}()

	// === 2. CACHE ===
	c, err := app.NewCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	if cl, ok := c.(io.Closer); ok {
		closers = append(closers, cl)
	}

	// === 3. DATABASE ===
	db, err := sqldb.Open(ctx, cfg.Database.DSN, sqldb.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	closers = append(closers, db)
	logger.Info("database ready", slog.String("driver", db.Driver()))

	// === 4. OUTBOUND CLIENTS ===
	pipeline, pipelineClosers, err := app.NewPipeline(ctx, cfg, c, logger)
	if err != nil {
		return err
	}
	closers = append(closers, pipelineClosers...)

	ident, err := app.NewAnalyzer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	locator := app.NewLocator(cfg.Geo, c, logger)

	// === 5. AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}
	var provider handler.OAuthProvider
	if cfg.Auth.GoogleClientID != "" && cfg.Auth.GoogleClientSecret != "" {
		provider = auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleCallbackURL)
	} else {
		logger.Warn("Google OAuth not configured, /auth/google/* will answer 503")
	}
	if cfg.Auth.DevLogin {
		logger.Warn("dev login enabled, anyone can sign in by email")
	}

	// === 6. SERVICES + HANDLERS ===
	// DEPENDENCY CHAIN: db → services → handlers → router.
	// Handlers never touch the database; services never touch HTTP.
	authSvc := service.NewAuthService(db, tokens, logger)
	profileSvc := service.NewProfileService(db, pipeline, locator, logger)
	identitySvc := service.NewIdentityService(db, ident, logger)
	connSvc := service.NewConnectionService(db, db, logger)

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DevLogin:        cfg.Auth.DevLogin,
	}, server.Handlers{
		Auth: handler.NewAuthHandler(provider, authSvc, handler.CookieOptions{
			MaxAge: tokens.TTL(),
			Secure: cfg.Auth.CookieSecure,
		}, logger),
		Profile:    handler.NewProfileHandler(profileSvc, logger),
		Identity:   handler.NewIdentityHandler(identitySvc, logger),
		Connection: handler.NewConnectionHandler(connSvc, logger),
		Avatar:     handler.NewAvatarHandler(logger),
		Health:     handler.NewHealthHandler(db, logger),
	}, tokens, logger)

	// Start blocks until ctx is cancelled (Ctrl+C or SIGTERM).
	return srv.Start(ctx)
}
