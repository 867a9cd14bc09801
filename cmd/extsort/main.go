// Command extsort generates, sorts and verifies files larger than memory.
//
//	extsort generate --count 10000000 --out data.stm
//	extsort --memory 1000000 --compress sort --in data.stm --out sorted.stm
//	extsort verify --in sorted.stm
//
// Files are item streams of int64 values, or text with one item per line
// when --format lines is given.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "extsort",
		Usage: "sort files larger than memory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML file with sort settings",
			},
			&cli.IntFlag{
				Name:  "memory",
				Usage: "maximum number of items held in memory",
			},
			&cli.IntFlag{
				Name:  "fan-in",
				Usage: "maximum number of runs merged at once",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "maximum number of merges running at once",
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "lz4-compress runs",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "run storage: local, memory or pebble",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "directory for run storage",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level",
			},
		},
		Commands: []*cli.Command{
			generateCommand(),
			sortCommand(),
			verifyCommand(),
		},
	}
}
