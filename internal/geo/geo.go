// Package geo guesses a caller's city and country from their IP address.
// It is best effort: every failure degrades to an empty Location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sakif/mymume/internal/cache"
)

const (
	DefaultLookupURL   = "https://freeipapi.com/api/json/"
	DefaultPublicIPURL = "https://api64.ipify.org?format=json"
)

type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

func (l Location) IsZero() bool {
	return l.City == "" && l.Country == ""
}

type Options struct {
	LookupURL   string // IP is appended to it
	PublicIPURL string
	Cache       cache.Cache
	CacheTTL    time.Duration
	Limiter     *rate.Limiter // nil means unlimited
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type Locator struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
	group  singleflight.Group
}

func NewLocator(opts Options, logger *slog.Logger) *Locator {
	if opts.LookupURL == "" {
		opts.LookupURL = DefaultLookupURL
	}
	if opts.PublicIPURL == "" {
		opts.PublicIPURL = DefaultPublicIPURL
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Locator{opts: opts, http: client, logger: logger}
}

// Locate resolves ip to a location. Local or missing addresses are
// replaced by this host's public address first, which is what a developer
// running locally wants.
func (l *Locator) Locate(ctx context.Context, ip string) Location {
	if IsLocal(ip) {
		public, err := l.publicIP(ctx)
		if err != nil {
			l.logger.Warn("public IP fallback failed", slog.String("error", err.Error()))
			return Location{}
		}
		l.logger.Debug("local address, using public IP", slog.String("ip", public))
		ip = public
	}
	if IsLocal(ip) {
		return Location{}
	}

	key := "geo:" + ip
	if raw, ok, err := l.opts.Cache.Get(ctx, key); err == nil && ok {
		var loc Location
		if json.Unmarshal([]byte(raw), &loc) == nil {
			return loc
		}
	}

	v, err, _ := l.group.Do(ip, func() (any, error) {
		return l.lookup(ctx, ip)
	})
	if err != nil {
		l.logger.Warn("geo lookup failed", slog.String("ip", ip), slog.String("error", err.Error()))
		return Location{}
	}
	loc := v.(Location)

	if !loc.IsZero() && l.opts.CacheTTL > 0 {
		raw, _ := json.Marshal(loc)
		if err := l.opts.Cache.Set(ctx, key, string(raw), l.opts.CacheTTL); err != nil {
			l.logger.Warn("geo cache write failed", slog.String("error", err.Error()))
		}
	}
	return loc
}

func (l *Locator) lookup(ctx context.Context, ip string) (Location, error) {
	if l.opts.Limiter != nil {
		if err := l.opts.Limiter.Wait(ctx); err != nil {
			return Location{}, fmt.Errorf("geo: rate limit: %w", err)
		}
	}

	var body struct {
		CityName    string `json:"cityName"`
		CountryName string `json:"countryName"`
	}
	if err := l.getJSON(ctx, l.opts.LookupURL+ip, &body); err != nil {
		return Location{}, err
	}
	return Location{City: clean(body.CityName), Country: clean(body.CountryName)}, nil
}

func (l *Locator) publicIP(ctx context.Context) (string, error) {
	var body struct {
		IP string `json:"ip"`
	}
	if err := l.getJSON(ctx, l.opts.PublicIPURL, &body); err != nil {
		return "", err
	}
	if body.IP == "" {
		return "", errors.New("geo: empty public IP response")
	}
	return body.IP, nil
}

func (l *Locator) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("geo: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("geo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo: %s returned %d", req.URL.Host, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geo: decoding response: %w", err)
	}
	return nil
}

// freeipapi reports unknown fields as "-".
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" {
		return ""
	}
	return s
}

// ClientIP picks the caller address from proxy headers, falling back to
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(h)); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsLocal reports whether ip cannot be geolocated: missing, malformed,
// loopback, private, link-local or unspecified.
func IsLocal(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return true
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast()
}
