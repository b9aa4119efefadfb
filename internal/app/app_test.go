package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/cache"
	"github.com/sakif/mymume/internal/config"
	"github.com/sakif/mymume/internal/ingest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type closeRecorder struct {
	name  string
	order *[]string
	err   error
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestClosers_ReverseOrderAndJoinedErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	cs := Closers{
		closeRecorder{name: "db", order: &order},
		closeRecorder{name: "browser", order: &order, err: boom},
		closeRecorder{name: "cache", order: &order},
	}

	err := cs.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"cache", "browser", "db"}, order)
}

func TestNewCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewCache(ctx, config.CacheConfig{Backend: "none"}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, cache.Nop{}, c)

	c, err = NewCache(ctx, config.CacheConfig{Backend: "memory"}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, c)

	_, err = NewCache(ctx, config.CacheConfig{Backend: "redis"}, quietLogger())
	assert.Error(t, err, "redis without an address must fail")
}

func TestNewPipeline_Catalog(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.Strategy = config.StrategyCatalog
	cfg.Spotify.ClientID = "id"
	cfg.Spotify.ClientSecret = "secret"

	p, closers, err := NewPipeline(context.Background(), cfg, cache.Nop{}, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Empty(t, closers, "no browser is started for the catalog strategy")

	// Text never reaches a resolver.
	corpus, err := p.Ingest(context.Background(), ingest.Source{Text: "A - B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "A - B", corpus)
}

func TestNewPipeline_CatalogNeedsCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.Strategy = config.StrategyCatalog

	_, _, err := NewPipeline(context.Background(), cfg, cache.Nop{}, quietLogger())
	assert.Error(t, err)
}

func TestNewPipeline_UnknownStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.Strategy = "carrier-pigeon"

	_, _, err := NewPipeline(context.Background(), cfg, cache.Nop{}, quietLogger())
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestNewAnalyzer_WithoutKeyFailsUpstream(t *testing.T) {
	cfg := config.Default()
	cfg.Analyzer.APIKey = ""

	a, err := NewAnalyzer(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), "A - B")
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestNewLocator(t *testing.T) {
	l := NewLocator(config.Default().Geo, cache.Nop{}, quietLogger())
	assert.NotNil(t, l)
}
