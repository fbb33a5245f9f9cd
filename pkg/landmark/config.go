package landmark

import (
	"io"

	"github.com/himanishpuri/landmark/internal/audio"
	"github.com/himanishpuri/landmark/internal/fingerprint"
	"github.com/himanishpuri/landmark/internal/matcher"
	"github.com/himanishpuri/landmark/internal/storage"
)

type Config struct {
	// DBPath is the sqlite file or badger directory. Empty uses the sqlite
	// default file, or an in-memory badger.
	DBPath  string
	Backend string

	Store       storage.Store
	Logger      Logger
	Fingerprint fingerprint.Config
	Match       matcher.Config

	// Workers bounds how many files AddDirectory fingerprints at once.
	Workers int

	// Progress receives a progress bar during AddDirectory. nil disables it.
	Progress io.Writer

	// Channel selects one input channel; audio.Downmix averages them.
	Channel int
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithBackend picks the storage backend: sqlite, badger or memory.
func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithStore injects an already opened store. The service closes it on Close.
func WithStore(store storage.Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithFingerprintConfig(cfg fingerprint.Config) Option {
	return func(c *Config) {
		c.Fingerprint = cfg
	}
}

func WithMatchConfig(cfg matcher.Config) Option {
	return func(c *Config) {
		c.Match = cfg
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithProgress(w io.Writer) Option {
	return func(c *Config) {
		c.Progress = w
	}
}

func WithChannel(ch int) Option {
	return func(c *Config) {
		c.Channel = ch
	}
}

func defaultConfig() *Config {
	return &Config{
		Backend:     storage.BackendSQLite,
		Fingerprint: fingerprint.DefaultConfig(),
		Match:       matcher.DefaultConfig(),
		Workers:     4,
		Channel:     audio.Downmix,
	}
}
