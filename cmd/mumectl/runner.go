package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/app"
	"github.com/sakif/mymume/internal/avatar"
	"github.com/sakif/mymume/internal/cache"
	"github.com/sakif/mymume/internal/config"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/logging"
)

// Ingester turns a source into a corpus. *ingest.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source, progress ingest.ProgressFunc) (string, error)
}

// Analyzer describes a corpus. *analyzer.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, corpus string) (*analyzer.Result, error)
}

// Runner holds the dependencies of the CLI commands. Ingester and Analyzer
// are built from the config on first use unless provided.
type Runner struct {
	output    io.Writer
	errOutput io.Writer
	input     io.Reader
	ingester  Ingester
	analyzer  Analyzer
}

type RunnerOpts struct {
	Output    io.Writer
	ErrOutput io.Writer
	Input     io.Reader
	Ingester  Ingester
	Analyzer  Analyzer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	return &Runner{
		output:    opts.Output,
		errOutput: opts.ErrOutput,
		input:     opts.Input,
		ingester:  opts.Ingester,
		analyzer:  opts.Analyzer,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{
		avatarCommand, ingestCommand, analyzeCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// logger writes pretty logs to the error stream so stdout stays clean for
// piping.
func (r *Runner) logger(cmd *cli.Command) (*slog.Logger, error) {
	return logging.New(r.errOutput, cmd.String("log-level"), "pretty")
}

// Avatar renders a seed. An empty seed is valid and has its own avatar.
func (r *Runner) Avatar(ctx context.Context, cmd *cli.Command) error {
	d := avatar.Generate(cmd.StringArg("seed"))
	scene := avatar.BuildScene(d)

	out := r.output
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	size := cmd.Int("size")
	switch cmd.String("format") {
	case "svg":
		return avatar.RenderSVG(out, scene, size)
	case "png":
		return avatar.RenderPNG(out, scene, size)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			avatar.Descriptor
			Scene avatar.Scene `json:"scene"`
		}{d, scene})
	default:
		return fmt.Errorf("unknown format %q (want svg, png or json)", cmd.String("format"))
	}
}

// Ingest prints the corpus on stdout and progress on stderr.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	var text string
	if path := cmd.String("file"); path != "" {
		b, err := r.readInput(path)
		if err != nil {
			return err
		}
		text = string(b)
	}

	src, err := ingest.ParseSource(text, cmd.String("url"))
	if err != nil {
		return err
	}

	var corpus string
	if !src.IsURL() {
		corpus = src.Text
	} else {
		ing, closers, err := r.ingesterFor(ctx, cmd)
		if err != nil {
			return err
		}
		defer closers.Close()

		corpus, err = ing.Ingest(ctx, src, func(count int) {
			fmt.Fprintf(r.errOutput, "\rfound %d tracks", count)
		})
		fmt.Fprintln(r.errOutput)
		if err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(r.output, corpus)
	return err
}

// Analyze prints the identity text, one block per category when the model
// answered with categories.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	b, err := r.readInput(cmd.String("file"))
	if err != nil {
		return err
	}
	corpus := strings.TrimSpace(string(b))
	if corpus == "" {
		return fmt.Errorf("corpus is empty")
	}

	a, err := r.analyzerFor(ctx, cmd)
	if err != nil {
		return err
	}
	res, err := a.Analyze(ctx, corpus)
	if err != nil {
		return err
	}

	if cmd.Bool("prompt") {
		fmt.Fprintf(r.output, "--- prompt ---\n%s\n--- result ---\n", res.Prompt)
	}
	if len(res.Categories) == 0 {
		_, err = fmt.Fprintln(r.output, res.Text)
		return err
	}
	for _, c := range res.Categories {
		fmt.Fprintf(r.output, "%s\n  %s\n", c.Title, c.Description)
	}
	return nil
}

func (r *Runner) ExampleConfig(ctx context.Context, cmd *cli.Command) error {
	_, err := r.output.Write(config.Example())
	return err
}

func (r *Runner) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(r.input)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}

func (r *Runner) ingesterFor(ctx context.Context, cmd *cli.Command) (Ingester, app.Closers, error) {
	if r.ingester != nil {
		return r.ingester, nil, nil
	}
	cfg, logger, err := r.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	// One-shot runs gain nothing from a shared cache.
	return app.NewPipeline(ctx, cfg, cache.Nop{}, logger)
}

func (r *Runner) analyzerFor(ctx context.Context, cmd *cli.Command) (Analyzer, error) {
	if r.analyzer != nil {
		return r.analyzer, nil
	}
	cfg, logger, err := r.load(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewAnalyzer(ctx, cfg, logger)
}

func (r *Runner) load(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := r.logger(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
