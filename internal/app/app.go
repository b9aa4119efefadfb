// Package app builds the long-lived dependencies shared by the server and
// the mumectl tool from a loaded config: cache, browser, ingestion
// pipeline and identity analyzer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/browser"
	"github.com/sakif/mymume/internal/browser/docker"
	"github.com/sakif/mymume/internal/cache"
	"github.com/sakif/mymume/internal/config"
	"github.com/sakif/mymume/internal/geo"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/scraper"
	"github.com/sakif/mymume/internal/spotify"
)

// Closers collects resources to release on shutdown.
type Closers []io.Closer

// Close releases everything in reverse order of acquisition.
func (cs Closers) Close() error {
	var errs []error
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewCache picks the cache backend. The memory cache gets a sweeper that
// stops with ctx.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using redis cache", slog.String("addr", cfg.RedisAddr))
		return r, nil
	case "none":
		return cache.Nop{}, nil
	default:
		m := cache.NewMemory()
		go m.RunSweeper(ctx, time.Minute)
		return m, nil
	}
}

// NewBrowser starts either local Chrome processes or a docker container
// pool. The returned closer is nil for local Chrome.
func NewBrowser(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (browser.Browser, io.Closer, error) {
	logger = logger.With(slog.String("component", "browser"))

	if cfg.Mode == config.BrowserDocker {
		dcfg := docker.DefaultConfig()
		if cfg.Image != "" {
			dcfg.Image = cfg.Image
		}
		if cfg.Network != "" {
			dcfg.Network = cfg.Network
		}
		if cfg.PoolSize > 0 {
			dcfg.PoolSize = cfg.PoolSize
		}
		p, err := docker.New(ctx, dcfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("app: starting browser pool: %w", err)
		}
		return browser.NewRemote(p, logger), p, nil
	}

	return browser.NewLocal(browser.LocalOptions{
		ExecPath:  cfg.ChromePath,
		NoSandbox: cfg.NoSandbox,
	}, logger), nil, nil
}

// NewPipeline builds the resolvers named by ingest.strategy and
// ingest.fallback. A browser is only started when scraping is configured.
func NewPipeline(ctx context.Context, cfg *config.Config, c cache.Cache, logger *slog.Logger) (*ingest.Pipeline, Closers, error) {
	var closers Closers
	resolvers := map[string]ingest.Resolver{}

	for _, strategy := range []string{cfg.Ingest.Strategy, cfg.Ingest.Fallback} {
		if strategy == "" || resolvers[strategy] != nil {
			continue
		}
		switch strategy {
		case config.StrategyScrape:
			b, closer, err := NewBrowser(ctx, cfg.Browser, logger)
			if err != nil {
				closers.Close()
				return nil, nil, err
			}
			if closer != nil {
				closers = append(closers, closer)
			}
			resolvers[strategy] = scraper.New(b, scraper.Options{
				BaseURL:     cfg.Scraper.BaseURL,
				LoadTimeout: cfg.Scraper.LoadTimeout,
				MaxWait:     cfg.Scraper.MaxWait,
				ScrollDelay: cfg.Scraper.ScrollDelay,
				IdleRounds:  cfg.Scraper.IdleRounds,
			}, logger.With(slog.String("component", "scraper")))

		case config.StrategyCatalog:
			catalog, err := spotify.New(spotify.Config{
				ClientID:     cfg.Spotify.ClientID,
				ClientSecret: cfg.Spotify.ClientSecret,
			}, logger.With(slog.String("component", "spotify")))
			if err != nil {
				closers.Close()
				return nil, nil, err
			}
			resolvers[strategy] = catalog

		default:
			closers.Close()
			return nil, nil, fmt.Errorf("app: unknown ingest strategy %q", strategy)
		}
	}

	p := ingest.NewPipeline(ingest.Options{
		Primary:  resolvers[cfg.Ingest.Strategy],
		Fallback: resolvers[cfg.Ingest.Fallback],
		Cache:    c,
		CacheTTL: cfg.Ingest.CacheTTL,
		Logger:   logger.With(slog.String("component", "ingest")),
	})
	return p, closers, nil
}

// errNoAPIKey is what analysis fails with when no model key is configured.
var errNoAPIKey = errors.New("analyzer.api_key is not configured")

type unconfiguredGenerator struct{}

func (unconfiguredGenerator) GenerateText(context.Context, string) (string, error) {
	return "", errNoAPIKey
}

// NewAnalyzer builds the identity analyzer. Without an API key it still
// returns an analyzer, whose calls fail as upstream errors, so the rest of
// the app can run.
func NewAnalyzer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*analyzer.Analyzer, error) {
	logger = logger.With(slog.String("component", "analyzer"))

	var gen analyzer.TextGenerator = unconfiguredGenerator{}
	if cfg.Analyzer.APIKey != "" {
		g, err := analyzer.NewGemini(ctx, cfg.Analyzer.APIKey, cfg.Analyzer.Model)
		if err != nil {
			return nil, err
		}
		gen = g
	} else {
		logger.Warn("analyzer.api_key not set, identity analysis will fail")
	}

	var limiter *rate.Limiter
	if rpm := cfg.Analyzer.RequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(rpm/60), 1)
	}

	return analyzer.New(gen, analyzer.Options{
		Template:    cfg.Prompts.IdentityAnalysis,
		MinLength:   cfg.Analyzer.MinResponseLength,
		RejectToken: cfg.Analyzer.RejectToken,
		Limiter:     limiter,
	}, logger), nil
}

// NewLocator builds the IP geolocator on top of the shared cache.
func NewLocator(cfg config.GeoConfig, c cache.Cache, logger *slog.Logger) *geo.Locator {
	var limiter *rate.Limiter
	if rps := cfg.RequestsPerSecond; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return geo.NewLocator(geo.Options{
		LookupURL:   cfg.LookupURL,
		PublicIPURL: cfg.PublicIPURL,
		Cache:       c,
		CacheTTL:    cfg.CacheTTL,
		Limiter:     limiter,
	}, logger.With(slog.String("component", "geo")))
}
