// Command mumectl exercises the MyMuMe building blocks from a terminal:
// render avatars, ingest playlists and run the identity analysis without
// the web server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	runner := NewRunner(RunnerOpts{})

	app := &cli.Command{
		Name:  "mumectl",
		Usage: "MyMuMe command line tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file (default $MYMUME_CONFIG)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "info",
			},
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mumectl:", err)
		os.Exit(1)
	}
}
