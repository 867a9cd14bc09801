package main

import (
	"github.com/jvahrenhold/tpie/extsort"
	"github.com/jvahrenhold/tpie/monitoring"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the --config file, if any, and applies the global flags
// over it.
func loadConfig(c *cli.Context) (extsort.Config, error) {
	cfg := extsort.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = extsort.LoadConfig(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("memory") {
		cfg.MemoryItems = c.Int("memory")
	}
	if c.IsSet("fan-in") {
		cfg.FanIn = c.Int("fan-in")
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("compress") {
		cfg.Compress = c.Bool("compress")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("dir") {
		cfg.Dir = c.String("dir")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg extsort.Config) (logrus.FieldLogger, error) {
	base, err := monitoring.NewBaseLogger(c.App.ErrWriter, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return monitoring.WithComponent(base, "cli"), nil
}
