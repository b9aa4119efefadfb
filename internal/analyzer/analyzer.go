// Package analyzer sends a playlist corpus to a generative text model and
// validates what comes back.
package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/sakif/mymume/internal/apperror"
)

// TextGenerator is a generative text backend.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultMinLength   = 20
	DefaultRejectToken = "NO"

	notAPlaylistMessage = "The text does not look like a music playlist. Please try a different text."
)

type Options struct {
	// Template is the instruction prepended to the corpus. It should tell
	// the model to answer RejectToken when the input is not a song list.
	Template    string
	MinLength   int
	RejectToken string
	// Limiter throttles calls to the backend; nil means unlimited.
	Limiter *rate.Limiter
}

// Category is one entry of a structured identity result.
type Category struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Result is a validated identity. Categories is set only when the model
// answered with a JSON array of categories.
type Result struct {
	Text       string     `json:"result"`
	Prompt     string     `json:"prompt"`
	Categories []Category `json:"categories,omitempty"`
}

type Analyzer struct {
	gen    TextGenerator
	opts   Options
	logger *slog.Logger
}

func New(gen TextGenerator, opts Options, logger *slog.Logger) *Analyzer {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.RejectToken == "" {
		opts.RejectToken = DefaultRejectToken
	}
	return &Analyzer{gen: gen, opts: opts, logger: logger}
}

// Prompt builds the exact text sent to the model.
func (a *Analyzer) Prompt(corpus string) string {
	return a.opts.Template + "\n" + corpus
}

// Analyze runs the model over corpus. A response equal to the reject token
// (case-insensitive) or shorter than MinLength characters yields a
// NotAPlaylist error.
func (a *Analyzer) Analyze(ctx context.Context, corpus string) (*Result, error) {
	prompt := a.Prompt(corpus)

	if a.opts.Limiter != nil {
		if err := a.opts.Limiter.Wait(ctx); err != nil {
			return nil, apperror.Upstream("Failed to analyze identity", err)
		}
	}

	text, err := a.gen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, apperror.Upstream("Failed to analyze identity", err)
	}
	text = strings.TrimSpace(text)

	if strings.EqualFold(text, a.opts.RejectToken) || utf8.RuneCountInString(text) < a.opts.MinLength {
		a.logger.Info("analyzer rejected input",
			slog.Int("corpusLength", len(corpus)),
			slog.String("response", truncate(text, 40)),
		)
		return nil, apperror.NotAPlaylist(notAPlaylistMessage)
	}

	res := &Result{Text: text, Prompt: prompt}
	if cats, ok := ParseCategories(text); ok {
		res.Categories = cats
	}
	return res, nil
}

// ParseCategories reads a JSON array of {title, description} objects,
// tolerating markdown code fences or chatter around the array.
func ParseCategories(text string) ([]Category, bool) {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var cats []Category
	if err := json.Unmarshal([]byte(s[start:end+1]), &cats); err != nil {
		return nil, false
	}
	out := cats[:0]
	for _, c := range cats {
		if strings.TrimSpace(c.Title) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
