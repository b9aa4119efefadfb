// Package logging builds the process-wide *slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// New returns a logger writing to w (stderr when nil) in the given format:
// "text", "json" or "pretty". Pretty output is colored for terminals.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var h slog.Handler
	switch format {
	case "", "text":
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	case "pretty":
		h = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(lvl),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	return slog.New(h), nil
}
