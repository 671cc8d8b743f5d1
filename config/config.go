package config

import (
	"time"

	"mvdb/engine/tx"
	"mvdb/observability"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	LogLevel string `toml:"log-level"`

	MaxActiveTransactions int `toml:"max-active-transactions"`
	PageCapacity          int `toml:"page-capacity"`

	GCInterval time.Duration `toml:"gc-interval"`
	GCWorkers  int           `toml:"gc-workers"`

	MetricsAddr string `toml:"metrics-addr"`

	Bench Bench `toml:"bench"`
}

// Bench configures the counter workload driven by `mvdb bench`.
type Bench struct {
	Workers      int    `toml:"workers"`
	Transactions int    `toml:"transactions"`
	Rows         int    `toml:"rows"`
	Isolation    string `toml:"isolation"`
}

func Default() Config {
	return Config{
		LogLevel:              "info",
		MaxActiveTransactions: 0,
		PageCapacity:          64,
		GCInterval:            100 * time.Millisecond,
		GCWorkers:             8,
		MetricsAddr:           "",
		Bench: Bench{
			Workers:      8,
			Transactions: 1000,
			Rows:         16,
			Isolation:    "snapshot",
		},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: failed to decode %s", path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "unknown key %s", undecoded[0])
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log-level: %v", err)
	}
	if c.MaxActiveTransactions < 0 {
		return errors.Wrap(ErrInvalidConfig, "max-active-transactions must not be negative")
	}
	if c.PageCapacity <= 0 {
		return errors.Wrap(ErrInvalidConfig, "page-capacity must be positive")
	}
	if c.GCInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "gc-interval must be positive")
	}
	if c.GCWorkers <= 0 {
		return errors.Wrap(ErrInvalidConfig, "gc-workers must be positive")
	}
	if c.Bench.Workers <= 0 || c.Bench.Transactions < 0 || c.Bench.Rows <= 0 {
		return errors.Wrap(ErrInvalidConfig, "bench: workers and rows must be positive")
	}
	if _, ok := tx.ParseIsolationLevel(c.Bench.Isolation); !ok {
		return errors.Wrapf(ErrInvalidConfig, "bench: unknown isolation %q", c.Bench.Isolation)
	}
	return nil
}

// ManagerOptions maps the config onto the transaction manager.
func (c Config) ManagerOptions() tx.ManagerOptions {
	return tx.ManagerOptions{
		MaxActiveTransactions: c.MaxActiveTransactions,
		GCWorkers:             c.GCWorkers,
	}
}
