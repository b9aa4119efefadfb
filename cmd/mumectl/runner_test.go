package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/ingest"
)

type fakeIngester struct {
	got ingest.Source
}

func (f *fakeIngester) Ingest(_ context.Context, src ingest.Source, progress ingest.ProgressFunc) (string, error) {
	f.got = src
	progress(1)
	progress(2)
	return "M83 - Midnight City\nKavinsky - Nightcall", nil
}

type fakeAnalyzer struct {
	res    *analyzer.Result
	err    error
	corpus string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, corpus string) (*analyzer.Result, error) {
	f.corpus = corpus
	return f.res, f.err
}

// run executes mumectl with args against r and returns stdout and stderr.
func run(t *testing.T, opts RunnerOpts, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	opts.Output = &out
	opts.ErrOutput = &errOut
	r := NewRunner(opts)

	app := &cli.Command{
		Name: "mumectl",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Commands: r.register(),
	}
	err := app.Run(context.Background(), append([]string{"mumectl"}, args...))
	return out.String(), errOut.String(), err
}

func TestRunner_Avatar(t *testing.T) {
	t.Run("svg to stdout", func(t *testing.T) {
		out, _, err := run(t, RunnerOpts{}, "avatar", "hello")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "<?xml"))
		assert.Contains(t, out, `width="256"`)
	})

	t.Run("json descriptor", func(t *testing.T) {
		out, _, err := run(t, RunnerOpts{}, "avatar", "--format", "json", "ab")
		require.NoError(t, err)

		var body struct {
			Seed string `json:"seed"`
			Hash uint32 `json:"hash"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		assert.Equal(t, "ab", body.Seed)
		assert.Equal(t, uint32(3105), body.Hash)
	})

	t.Run("png to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.png")
		_, _, err := run(t, RunnerOpts{}, "avatar", "--format", "png", "--size", "32", "-o", path, "x")
		require.NoError(t, err)

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := run(t, RunnerOpts{}, "avatar", "--format", "gif", "x")
		assert.ErrorContains(t, err, "gif")
	})
}

func TestRunner_Ingest(t *testing.T) {
	t.Run("url streams progress to stderr", func(t *testing.T) {
		ing := &fakeIngester{}
		out, errOut, err := run(t, RunnerOpts{Ingester: ing},
			"ingest", "--url", "https://open.spotify.com/playlist/37i9dQZF1DX0XUsuxWHRQd")
		require.NoError(t, err)

		assert.Equal(t, "37i9dQZF1DX0XUsuxWHRQd", ing.got.PlaylistID)
		assert.Equal(t, "M83 - Midnight City\nKavinsky - Nightcall\n", out)
		assert.Contains(t, errOut, "found 2 tracks")
	})

	t.Run("text file passes through", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "songs.txt")
		require.NoError(t, os.WriteFile(path, []byte("A - B\nC - D"), 0o644))

		ing := &fakeIngester{}
		out, _, err := run(t, RunnerOpts{Ingester: ing}, "ingest", "--file", path)
		require.NoError(t, err)
		assert.Equal(t, "A - B\nC - D\n", out)
		assert.Empty(t, ing.got.PlaylistID, "text never reaches the ingester")
	})

	t.Run("invalid url", func(t *testing.T) {
		_, _, err := run(t, RunnerOpts{Ingester: &fakeIngester{}}, "ingest", "--url", "https://example.com/nope")
		assert.Error(t, err)
	})
}

func TestRunner_Analyze(t *testing.T) {
	write := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "corpus.txt")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("plain text result", func(t *testing.T) {
		a := &fakeAnalyzer{res: &analyzer.Result{Text: "A synth-drenched night owl.", Prompt: "Describe:\nA - B"}}
		out, _, err := run(t, RunnerOpts{Analyzer: a}, "analyze", "--file", write(t, "  A - B\n"), "--prompt")
		require.NoError(t, err)

		assert.Equal(t, "A - B", a.corpus)
		assert.Contains(t, out, "--- prompt ---\nDescribe:\nA - B")
		assert.Contains(t, out, "A synth-drenched night owl.")
	})

	t.Run("categories", func(t *testing.T) {
		a := &fakeAnalyzer{res: &analyzer.Result{Categories: []analyzer.Category{
			{Title: "Night Driver", Description: "Lives for synths after dark."},
		}}}
		out, _, err := run(t, RunnerOpts{Analyzer: a}, "analyze", "--file", write(t, "A - B"))
		require.NoError(t, err)
		assert.Equal(t, "Night Driver\n  Lives for synths after dark.\n", out)
	})

	t.Run("stdin", func(t *testing.T) {
		a := &fakeAnalyzer{res: &analyzer.Result{Text: "ok"}}
		_, _, err := run(t, RunnerOpts{Analyzer: a, Input: strings.NewReader("E - F")}, "analyze", "--file", "-")
		require.NoError(t, err)
		assert.Equal(t, "E - F", a.corpus)
	})

	t.Run("empty corpus", func(t *testing.T) {
		_, _, err := run(t, RunnerOpts{Analyzer: &fakeAnalyzer{}}, "analyze", "--file", write(t, " \n"))
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("analyzer failure", func(t *testing.T) {
		boom := errors.New("quota")
		_, _, err := run(t, RunnerOpts{Analyzer: &fakeAnalyzer{err: boom}}, "analyze", "--file", write(t, "A - B"))
		assert.ErrorIs(t, err, boom)
	})
}

func TestRunner_ExampleConfig(t *testing.T) {
	out, _, err := run(t, RunnerOpts{}, "example-config")
	require.NoError(t, err)
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, "identity_analysis")
}
