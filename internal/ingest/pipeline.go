package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/cache"
	"github.com/sakif/mymume/internal/model"
)

// ProgressFunc receives the running number of tracks discovered so far.
type ProgressFunc func(count int)

// Resolver fetches the tracks of one playlist. Implementations report
// progress as a running count of tracks they will return.
type Resolver interface {
	Resolve(ctx context.Context, playlistID string, progress ProgressFunc) ([]model.Track, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, playlistID string, progress ProgressFunc) ([]model.Track, error)

func (f ResolverFunc) Resolve(ctx context.Context, playlistID string, progress ProgressFunc) ([]model.Track, error) {
	return f(ctx, playlistID, progress)
}

var errNoTracks = errors.New("no tracks found in playlist")

// Options configures a Pipeline. Fallback and Cache are optional.
type Options struct {
	Primary  Resolver
	Fallback Resolver
	Cache    cache.Cache
	CacheTTL time.Duration // zero disables caching
	Logger   *slog.Logger
}

// Pipeline resolves URL sources through one strategy, with an optional
// fallback used only when the primary fails. Results are all-or-nothing:
// a failed resolve never yields a truncated corpus.
type Pipeline struct {
	primary  Resolver
	fallback Resolver
	cache    cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

func NewPipeline(opts Options) *Pipeline {
	c := opts.Cache
	if c == nil {
		c = cache.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		primary:  opts.Primary,
		fallback: opts.Fallback,
		cache:    c,
		ttl:      opts.CacheTTL,
		logger:   logger,
	}
}

// Ingest produces the corpus for src. Text sources pass through verbatim.
// For URL sources progress (may be nil) sees a non-decreasing sequence of
// counts whose last value is the final track count.
func (p *Pipeline) Ingest(ctx context.Context, src Source, progress ProgressFunc) (string, error) {
	if !src.IsURL() {
		return src.Text, nil
	}

	mon := &monotonic{fn: progress}
	key := "corpus:" + src.PlaylistID

	if corpus, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.Warn("corpus cache read failed",
			slog.String("playlist", src.PlaylistID),
			slog.String("error", err.Error()),
		)
	} else if ok {
		p.logger.Debug("corpus cache hit", slog.String("playlist", src.PlaylistID))
		mon.report(len(CorpusLines(corpus)))
		return corpus, nil
	}

	// Concurrent requests for the same playlist share one resolve. Only the
	// caller that started it sees intermediate counts; the others get the
	// final count.
	v, err, shared := p.group.Do(src.PlaylistID, func() (any, error) {
		return p.resolve(ctx, src.PlaylistID, mon.report)
	})
	if err != nil {
		return "", err
	}
	tracks := v.([]model.Track)
	mon.report(len(tracks))

	corpus := FormatCorpus(tracks)
	if p.ttl > 0 {
		if err := p.cache.Set(ctx, key, corpus, p.ttl); err != nil {
			p.logger.Warn("corpus cache write failed",
				slog.String("playlist", src.PlaylistID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.logger.Info("playlist ingested",
		slog.String("playlist", src.PlaylistID),
		slog.Int("tracks", len(tracks)),
		slog.Bool("shared", shared),
	)
	return corpus, nil
}

func (p *Pipeline) resolve(ctx context.Context, id string, progress ProgressFunc) ([]model.Track, error) {
	if p.primary == nil {
		return nil, apperror.Upstream("Failed to scrape playlist", errors.New("no resolver configured"))
	}

	if p.fallback == nil {
		tracks, err := p.primary.Resolve(ctx, id, progress)
		if err == nil && len(tracks) == 0 {
			err = errNoTracks
		}
		if err != nil {
			return nil, apperror.Upstream("Failed to scrape playlist", err)
		}
		return tracks, nil
	}

	// With a fallback configured the primary's counts are held back until it
	// succeeds. A fallback that finds fewer tracks than the primary had
	// counted would otherwise leave the stream ending above the final count.
	var held []int
	tracks, err := p.primary.Resolve(ctx, id, func(n int) { held = append(held, n) })
	if err == nil && len(tracks) == 0 {
		err = errNoTracks
	}
	if err == nil && progress != nil {
		for _, n := range held {
			progress(n)
		}
	}
	if err != nil {
		p.logger.Warn("primary resolver failed, trying fallback",
			slog.String("playlist", id),
			slog.String("error", err.Error()),
		)
		tracks, err = p.fallback.Resolve(ctx, id, progress)
		if err == nil && len(tracks) == 0 {
			err = errNoTracks
		}
	}
	if err != nil {
		return nil, apperror.Upstream("Failed to scrape playlist", err)
	}
	return tracks, nil
}

// monotonic drops repeated and decreasing counts, so the final count is not
// sent twice when the resolver already reported it.
type monotonic struct {
	fn   ProgressFunc
	last int
	sent bool
}

func (m *monotonic) report(n int) {
	if m.fn == nil {
		return
	}
	if m.sent && n <= m.last {
		return
	}
	m.last, m.sent = n, true
	m.fn(n)
}
