// Package config loads application settings: embedded defaults, an optional
// TOML file, .env files and finally environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Ingest   IngestConfig   `toml:"ingest"`
	Scraper  ScraperConfig  `toml:"scraper"`
	Browser  BrowserConfig  `toml:"browser"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Geo      GeoConfig      `toml:"geo"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
	Prompts  PromptsConfig  `toml:"prompts"`
}

type ServerConfig struct {
	Port            int           `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret          string        `toml:"jwt_secret"`
	TokenTTL           time.Duration `toml:"token_ttl"`
	CookieSecure       bool          `toml:"cookie_secure"`
	DevLogin           bool          `toml:"dev_login"`
	GoogleClientID     string        `toml:"google_client_id"`
	GoogleClientSecret string        `toml:"google_client_secret"`
	GoogleCallbackURL  string        `toml:"google_callback_url"`
}

type IngestConfig struct {
	Strategy string        `toml:"strategy"`
	Fallback string        `toml:"fallback"`
	CacheTTL time.Duration `toml:"cache_ttl"`
}

type ScraperConfig struct {
	BaseURL     string        `toml:"base_url"`
	LoadTimeout time.Duration `toml:"load_timeout"`
	MaxWait     time.Duration `toml:"max_wait"`
	ScrollDelay time.Duration `toml:"scroll_delay"`
	IdleRounds  int           `toml:"idle_rounds"`
}

type BrowserConfig struct {
	Mode       string `toml:"mode"`
	ChromePath string `toml:"chrome_path"`
	NoSandbox  bool   `toml:"no_sandbox"`
	Image      string `toml:"image"`
	Network    string `toml:"network"`
	PoolSize   int    `toml:"pool_size"`
}

type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type AnalyzerConfig struct {
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	MinResponseLength int     `toml:"min_response_length"`
	RejectToken       string  `toml:"reject_token"`
	RequestsPerMinute float64 `toml:"requests_per_minute"`
}

type GeoConfig struct {
	LookupURL         string        `toml:"lookup_url"`
	PublicIPURL       string        `toml:"public_ip_url"`
	CacheTTL          time.Duration `toml:"cache_ttl"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
}

type CacheConfig struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Prefix        string `toml:"prefix"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type PromptsConfig struct {
	IdentityAnalysis string `toml:"identity_analysis"`
}

const (
	StrategyScrape  = "scrape"
	StrategyCatalog = "catalog"

	BrowserLocal  = "local"
	BrowserDocker = "docker"
)

// Default returns the embedded example configuration.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Example returns the raw embedded example file, for `mumectl` to print.
func Example() []byte {
	return exampleConf
}

// Load builds the configuration. path may be empty; MYMUME_CONFIG is used
// then. .env.local takes precedence over .env, and variables already set in
// the process environment win over both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MYMUME_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setInt(&c.Server.Port, "PORT", &errs)
	setString(&c.Database.DSN, "DB_PATH")
	setString(&c.Database.DSN, "DB_DSN") // wins over DB_PATH

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setDuration(&c.Auth.TokenTTL, "TOKEN_TTL", &errs)
	setBool(&c.Auth.CookieSecure, "COOKIE_SECURE", &errs)
	setBool(&c.Auth.DevLogin, "AUTH_DEV_LOGIN", &errs)
	setString(&c.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Auth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Auth.GoogleCallbackURL, "GOOGLE_CALLBACK_URL")

	setString(&c.Ingest.Strategy, "INGEST_STRATEGY")
	setString(&c.Ingest.Fallback, "INGEST_FALLBACK")
	setString(&c.Browser.Mode, "BROWSER_MODE")
	setString(&c.Browser.ChromePath, "CHROME_PATH")

	setString(&c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setString(&c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")

	setString(&c.Analyzer.APIKey, "GEMINI_API_KEY")
	setString(&c.Analyzer.Model, "GEMINI_MODEL")

	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	return errors.Join(errs...)
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	for _, s := range []struct{ name, value string }{
		{"ingest.strategy", c.Ingest.Strategy},
		{"ingest.fallback", c.Ingest.Fallback},
	} {
		switch s.value {
		case StrategyScrape:
		case StrategyCatalog:
			if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
				errs = append(errs, fmt.Errorf("%s %q needs spotify.client_id and spotify.client_secret", s.name, s.value))
			}
		case "":
			if s.name == "ingest.strategy" {
				errs = append(errs, errors.New("ingest.strategy is required"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown %s %q", s.name, s.value))
		}
	}
	if c.Ingest.Fallback != "" && c.Ingest.Fallback == c.Ingest.Strategy {
		errs = append(errs, errors.New("ingest.fallback must differ from ingest.strategy"))
	}

	switch c.Browser.Mode {
	case BrowserLocal, BrowserDocker:
	default:
		errs = append(errs, fmt.Errorf("unknown browser.mode %q", c.Browser.Mode))
	}

	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.backend redis needs cache.redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if c.Analyzer.MinResponseLength < 0 {
		errs = append(errs, errors.New("analyzer.min_response_length must not be negative"))
	}
	if strings.TrimSpace(c.Prompts.IdentityAnalysis) == "" {
		errs = append(errs, errors.New("prompts.identity_analysis is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func setBool(dst *bool, key string, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func setDuration(dst *time.Duration, key string, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
