package main

import "github.com/urfave/cli/v3"

func avatarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "avatar",
		Usage: "Render the avatar for a seed",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "seed"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "svg, png or json",
				Value:   "svg",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Edge length in pixels",
				Value: 256,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default stdout)",
			},
		},
		Action: r.Avatar,
	}
}

func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Turn a playlist URL or a text file into a song corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Spotify playlist URL",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Text file with one song per line (- for stdin)",
			},
		},
		Action: r.Ingest,
	}
}

func analyzeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Describe the music identity behind a corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Corpus file, as written by ingest (- for stdin)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "prompt",
				Usage: "Also print the prompt sent to the model",
			},
		},
		Action: r.Analyze,
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "example-config",
		Usage:  "Print the default configuration file",
		Action: r.ExampleConfig,
	}
}
