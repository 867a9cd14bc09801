package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/jvahrenhold/tpie/extsort"
	"github.com/jvahrenhold/tpie/merger"
	"github.com/jvahrenhold/tpie/recordio"
	"github.com/jvahrenhold/tpie/stream"
	"github.com/urfave/cli/v2"
)

const (
	formatInt64 = "int64"
	formatLines = "lines"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Value: formatInt64,
		Usage: "file format: int64 (item stream) or lines (text)",
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "write a stream of random int64 values",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "count", Value: 1000, Usage: "number of values"},
			&cli.Int64Flag{Name: "seed", Usage: "random seed, the current time if unset"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output file"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			seed := time.Now().UnixNano()
			if c.IsSet("seed") {
				seed = c.Int64("seed")
			}
			rng := rand.New(rand.NewSource(seed))

			f, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			w, err := stream.NewWriter[int64](f, recordio.Int64{}, &stream.Options{Compress: cfg.Compress})
			if err != nil {
				return errors.Join(err, f.Close())
			}

			count := c.Int64("count")
			for i := int64(0); i < count; i++ {
				if err := w.Write(rng.Int63()); err != nil {
					return errors.Join(err, w.Close())
				}
			}
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "wrote %d values to %s\n", count, c.String("out"))
			return nil
		},
	}
}

func sortCommand() *cli.Command {
	return &cli.Command{
		Name:  "sort",
		Usage: "sort a file",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.StringFlag{Name: "in", Required: true, Usage: "input file"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output file"},
			&cli.BoolFlag{Name: "unique", Usage: "drop duplicate items"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			switch format := c.String("format"); format {
			case formatInt64:
				return sortInt64s(c, cfg)
			case formatLines:
				return sortLines(c, cfg)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
}

// sortOptions opens the configured store and returns the options using it.
func sortOptions[T comparable](c *cli.Context, cfg extsort.Config) ([]extsort.Option, func() error, error) {
	logger, err := newLogger(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, err
	}

	opts := append(cfg.Options(), extsort.WithStore(store), extsort.WithLogger(logger))
	if c.Bool("unique") {
		opts = append(opts, extsort.WithUnique(func(a, b T) bool { return a == b }))
	}
	return opts, closeStore, nil
}

func sortInt64s(c *cli.Context, cfg extsort.Config) (err error) {
	opts, closeStore, err := sortOptions[int64](c, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeStore())
	}()

	s, err := extsort.New[int64](recordio.Int64{}, func(a, b int64) bool { return a < b }, opts...)
	if err != nil {
		return err
	}

	in, err := os.Open(c.String("in"))
	if err != nil {
		return err
	}
	out, err := os.Create(c.String("out"))
	if err != nil {
		return errors.Join(err, in.Close())
	}
	w, err := stream.NewWriter[int64](out, recordio.Int64{}, &stream.Options{Compress: cfg.Compress})
	if err != nil {
		return errors.Join(err, in.Close(), out.Close())
	}

	res, err := s.Sort(c.Context, stream.NewReader[int64](in, recordio.Int64{}, nil), w)
	if err = errors.Join(err, w.Close()); err != nil {
		return err
	}
	return report(c.App.Writer, res)
}

func sortLines(c *cli.Context, cfg extsort.Config) (err error) {
	opts, closeStore, err := sortOptions[string](c, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeStore())
	}()

	s, err := extsort.New[string](recordio.String{}, func(a, b string) bool { return a < b }, opts...)
	if err != nil {
		return err
	}

	in, err := os.Open(c.String("in"))
	if err != nil {
		return err
	}
	out, err := os.Create(c.String("out"))
	if err != nil {
		return errors.Join(err, in.Close())
	}
	sink := newLineSink(out)

	res, err := s.Sort(c.Context, newLineSource(in), sink)
	if err = errors.Join(err, sink.Flush(), out.Close()); err != nil {
		return err
	}
	return report(c.App.Writer, res)
}

func report(w io.Writer, res extsort.Result) error {
	_, err := fmt.Fprintf(w, "sorted %d items (%d written) in %d runs and %d merge passes\n",
		res.Items, res.Written, res.Runs, res.Passes)
	return err
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check that a file is sorted",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.StringFlag{Name: "in", Required: true, Usage: "input file"},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("in"))
			if err != nil {
				return err
			}

			var n int64
			switch format := c.String("format"); format {
			case formatInt64:
				n, err = verify[int64](stream.NewReader[int64](f, recordio.Int64{}, nil))
			case formatLines:
				n, err = verify[string](newLineSource(f))
			default:
				return errors.Join(fmt.Errorf("unknown format %q", format), f.Close())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%d items in order\n", n)
			return nil
		},
	}
}

// verify counts the items of src and fails at the first one out of order.
func verify[T int64 | string](src merger.Source[T]) (int64, error) {
	var (
		n    int64
		prev T
	)
	sink := stream.SinkFunc[T](func(v T) error {
		if n > 0 && v < prev {
			return fmt.Errorf("item %d is out of order: %v after %v", n, v, prev)
		}
		prev = v
		n++
		return nil
	})
	_, err := stream.Copy[T](sink, src)
	return n, err
}
