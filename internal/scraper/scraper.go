// Package scraper resolves playlist tracks by rendering the public playlist
// page in a headless browser and reading rows out of the DOM.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sakif/mymume/internal/browser"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
)

// Options tunes page structure and timing. Zero fields take DefaultOptions
// values.
type Options struct {
	BaseURL        string
	RowSelector    string
	TitleSelector  string
	ArtistSelector string

	// LoadTimeout caps the initial navigation. Playlist pages often never
	// reach a quiet state, so hitting it is not an error.
	LoadTimeout time.Duration
	// MaxWait caps the whole resolve; whatever was collected by then is
	// returned.
	MaxWait time.Duration
	// ScrollDelay is the pause after each scroll for lazy rows to render.
	ScrollDelay time.Duration
	// IdleRounds is how many consecutive rounds without new rows end the
	// scrape.
	IdleRounds int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:        "https://open.spotify.com/playlist/",
		RowSelector:    `[data-testid="tracklist-row"]`,
		TitleSelector:  `a[data-testid="internal-track-link"]`,
		ArtistSelector: `a[href*="/artist/"]`,
		LoadTimeout:    30 * time.Second,
		MaxWait:        90 * time.Second,
		ScrollDelay:    1500 * time.Millisecond,
		IdleRounds:     3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if o.RowSelector == "" {
		o.RowSelector = d.RowSelector
	}
	if o.TitleSelector == "" {
		o.TitleSelector = d.TitleSelector
	}
	if o.ArtistSelector == "" {
		o.ArtistSelector = d.ArtistSelector
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = d.LoadTimeout
	}
	if o.MaxWait <= 0 {
		o.MaxWait = d.MaxWait
	}
	if o.ScrollDelay <= 0 {
		o.ScrollDelay = d.ScrollDelay
	}
	if o.IdleRounds <= 0 {
		o.IdleRounds = d.IdleRounds
	}
	return o
}

// Scraper implements ingest.Resolver.
type Scraper struct {
	browser browser.Browser
	opts    Options
	logger  *slog.Logger
}

var _ ingest.Resolver = (*Scraper)(nil)

func New(b browser.Browser, opts Options, logger *slog.Logger) *Scraper {
	return &Scraper{browser: b, opts: opts.withDefaults(), logger: logger}
}

// Resolve scrolls through the playlist page until no new rows appear for
// IdleRounds rounds or MaxWait elapses.
func (s *Scraper) Resolve(ctx context.Context, playlistID string, progress ingest.ProgressFunc) ([]model.Track, error) {
	return s.ResolveURL(ctx, s.opts.BaseURL+playlistID, progress)
}

// ResolveURL scrapes an arbitrary page with the configured selectors.
func (s *Scraper) ResolveURL(ctx context.Context, url string, progress ingest.ProgressFunc) ([]model.Track, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.opts.MaxWait)
	defer cancel()

	page, release, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("scraper: opening page: %w", err)
	}
	defer release()

	navCtx, navCancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	err = page.Navigate(navCtx, url)
	navTimedOut := navCtx.Err() != nil
	navCancel()
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && !navTimedOut {
			return nil, fmt.Errorf("scraper: loading %s: %w", url, err)
		}
		s.logger.Warn("page load timed out, scraping what rendered", slog.String("url", url))
	}

	var (
		rows   = newCollector()
		idle   int
		rounds int
	)

loop:
	for {
		rounds++
		html, err := page.HTML(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("scraper: reading page: %w", err)
		}

		added, err := s.extract(html, rows)
		if err != nil {
			return nil, err
		}
		if added > 0 {
			idle = 0
			if progress != nil {
				progress(len(rows.tracks))
			}
		} else {
			idle++
		}
		if idle >= s.opts.IdleRounds {
			break
		}

		if err := page.ScrollToLast(ctx, s.opts.RowSelector); err != nil {
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("scraper: scrolling: %w", err)
		}

		select {
		case <-ctx.Done():
			break loop
		case <-time.After(s.opts.ScrollDelay):
		}
	}

	if err := parent.Err(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		s.logger.Warn("scrape hit max wait, returning partial list",
			slog.String("url", url),
			slog.Int("tracks", len(rows.tracks)),
		)
	}
	s.logger.Debug("scrape finished",
		slog.String("url", url),
		slog.Int("tracks", len(rows.tracks)),
		slog.Int("rounds", rounds),
	)
	return rows.tracks, nil
}

// extract adds the rows of one DOM snapshot to c and returns how many were
// new. Virtualized lists drop rows that scrolled away, so rows are keyed by
// their aria-rowindex when present.
func (s *Scraper) extract(html string, c *collector) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("scraper: parsing page: %w", err)
	}

	added := 0
	var unindexed []model.Track
	doc.Find(s.opts.RowSelector).Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find(s.opts.TitleSelector).First().Text())
		if title == "" {
			return
		}
		names := row.Find(s.opts.ArtistSelector).Map(func(_ int, a *goquery.Selection) string {
			return strings.TrimSpace(a.Text())
		})
		track := model.Track{Title: title, Artists: strings.Join(nonEmpty(names), ", ")}

		index := row.Closest("[aria-rowindex]").AttrOr("aria-rowindex", "")
		if index == "" {
			unindexed = append(unindexed, track)
			return
		}
		if c.indexed[index] {
			return
		}
		c.indexed[index] = true
		c.tracks = append(c.tracks, track)
		added++
	})
	return added + c.addUnindexed(unindexed), nil
}

// collector accumulates the rows of one scrape across snapshots.
type collector struct {
	indexed map[string]bool
	// plain holds the keys of rows without aria-rowindex in page order.
	plain  []string
	tracks []model.Track
}

func newCollector() *collector {
	return &collector{indexed: make(map[string]bool)}
}

// addUnindexed places a snapshot of rows without an index by position. The
// snapshot is aligned at the first offset into the rows seen so far where
// every overlapping row matches; rows past the end of that overlap are new.
// A track listed twice is kept twice.
func (c *collector) addUnindexed(rows []model.Track) int {
	if len(rows) == 0 {
		return 0
	}
	keys := make([]string, len(rows))
	for i, t := range rows {
		keys[i] = t.Artists + "\x00" + t.Title
	}

	offset := alignOffset(c.plain, keys)
	added := 0
	for i := len(c.plain) - offset; i < len(keys); i++ {
		c.plain = append(c.plain, keys[i])
		c.tracks = append(c.tracks, rows[i])
		added++
	}
	return added
}

// alignOffset returns the smallest offset o into seen such that snap[i] ==
// seen[o+i] wherever both exist. len(seen) always qualifies.
func alignOffset(seen, snap []string) int {
	for o := range seen {
		ok := true
		for i := 0; i < len(snap) && o+i < len(seen); i++ {
			if snap[i] != seen[o+i] {
				ok = false
				break
			}
		}
		if ok {
			return o
		}
	}
	return len(seen)
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
