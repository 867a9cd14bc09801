package extsort

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/jvahrenhold/tpie/storage"
	"github.com/jvahrenhold/tpie/storage/local"
	"github.com/jvahrenhold/tpie/storage/memory"
	"github.com/jvahrenhold/tpie/storage/pebble"
)

// Run storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

var ErrUnknownBackend = errors.New("extsort: unknown storage backend")

// Config is the file form of the sorter options.
type Config struct {
	MemoryItems int    `toml:"memory_items"`
	FanIn       int    `toml:"fan_in"`
	Concurrency int    `toml:"concurrency"`
	Compress    bool   `toml:"compress"`
	Backend     string `toml:"backend"`
	Dir         string `toml:"dir"`
	LogLevel    string `toml:"log_level"`
}

// DefaultConfig returns the configuration matching the default options.
func DefaultConfig() Config {
	o := defaultOptions()
	return Config{
		MemoryItems: o.memory,
		FanIn:       o.fanIn,
		Concurrency: o.concurrency,
		Backend:     BackendLocal,
		LogLevel:    "info",
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("extsort: load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("extsort: load config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Options converts the config to sorter options. The store is opened
// separately with OpenStore.
func (c Config) Options() []Option {
	return []Option{
		WithMemory(c.MemoryItems),
		WithFanIn(c.FanIn),
		WithConcurrency(c.Concurrency),
		WithCompression(c.Compress),
	}
}

// OpenStore opens the configured run store. The returned close function
// releases it; for a local store without a directory it also removes the
// temporary directory it created.
func (c Config) OpenStore() (storage.Store, func() error, error) {
	nop := func() error { return nil }

	switch c.Backend {
	case BackendMemory:
		return memory.NewMemoryStorage(), nop, nil
	case BackendLocal, "":
		if c.Dir != "" {
			s, err := local.NewLocalStorage(c.Dir)
			return s, nop, err
		}
		dir, err := os.MkdirTemp("", "extsort-*")
		if err != nil {
			return nil, nil, fmt.Errorf("extsort: %w", err)
		}
		s, err := local.NewLocalStorage(dir)
		if err != nil {
			return nil, nil, errors.Join(err, os.RemoveAll(dir))
		}
		return s, func() error { return os.RemoveAll(dir) }, nil
	case BackendPebble:
		if c.Dir == "" {
			return nil, nil, fmt.Errorf("extsort: the %s backend needs a directory", BackendPebble)
		}
		s, err := pebble.NewStorage(pebble.StorageOptions{Path: c.Dir})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}
