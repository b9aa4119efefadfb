// Package spotify resolves playlists through the Spotify Web API using the
// client-credentials flow.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
)

const (
	DefaultAPIURL   = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// Only track names and artist names are requested.
	trackFields = "items(track(name,artists(name))),next"
	pageLimit   = 100
)

type Config struct {
	ClientID     string
	ClientSecret string
	APIURL       string // defaults to DefaultAPIURL
	TokenURL     string // defaults to DefaultTokenURL
	Timeout      time.Duration
}

// Catalog implements ingest.Resolver.
type Catalog struct {
	http   *http.Client
	apiURL string
	logger *slog.Logger
}

var _ ingest.Resolver = (*Catalog)(nil)

// New builds a catalog client. The token source is created once and
// refreshes itself, so the client is shared by every request.
func New(cfg Config, logger *slog.Logger) (*Catalog, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify: client id and secret are required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := cc.Client(context.Background())
	client.Timeout = cfg.Timeout

	return &Catalog{
		http:   client,
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		logger: logger,
	}, nil
}

type tracksPage struct {
	Items []struct {
		Track *struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"track"`
	} `json:"items"`
	Next *string `json:"next"`
}

// Resolve walks every page of the playlist's tracks. Removed or
// unavailable entries come back with a null track and are skipped.
func (c *Catalog) Resolve(ctx context.Context, playlistID string, progress ingest.ProgressFunc) ([]model.Track, error) {
	q := url.Values{}
	q.Set("fields", trackFields)
	q.Set("limit", fmt.Sprint(pageLimit))
	next := fmt.Sprintf("%s/playlists/%s/tracks?%s", c.apiURL, url.PathEscape(playlistID), q.Encode())

	var tracks []model.Track
	for pages := 0; next != ""; pages++ {
		page, err := c.fetch(ctx, next)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.Name == "" {
				continue
			}
			names := make([]string, 0, len(item.Track.Artists))
			for _, a := range item.Track.Artists {
				if a.Name != "" {
					names = append(names, a.Name)
				}
			}
			tracks = append(tracks, model.Track{
				Title:   item.Track.Name,
				Artists: strings.Join(names, ", "),
			})
		}
		if progress != nil {
			progress(len(tracks))
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
		c.logger.Debug("catalog page fetched",
			slog.String("playlist", playlistID),
			slog.Int("page", pages),
			slog.Int("tracks", len(tracks)),
		)
	}
	return tracks, nil
}

func (c *Catalog) fetch(ctx context.Context, pageURL string) (*tracksPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("spotify: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: fetching playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spotify: playlist request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page tracksPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("spotify: decoding playlist page: %w", err)
	}
	return &page, nil
}
