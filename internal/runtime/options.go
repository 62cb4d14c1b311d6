package runtime

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
)

// Option is a functional option for configuring a Moderator.
type Option func(*Moderator) error

// WithFileConfig loads configuration from a YAML file with MODERATOR_
// environment overrides. A missing file yields the defaults.
func WithFileConfig(path string) Option {
	return func(m *Moderator) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		m.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration, typically from
// config.Load or config.Default. The Moderator keeps its own copy.
func WithConfig(cfg *config.Config) Option {
	return func(m *Moderator) error {
		if cfg == nil {
			return errors.New("nil config")
		}
		c := *cfg
		m.cfg = &c
		return nil
	}
}

// WithSQLite stores verdicts in the SQLite file at path.
func WithSQLite(path string) Option {
	return withStorage(func(c *config.StorageConfig) {
		c.Type = "sqlite"
		c.SQLite.Path = path
	})
}

// WithPostgres stores verdicts in PostgreSQL.
func WithPostgres(dsn string) Option {
	return withStorage(func(c *config.StorageConfig) {
		c.Type = "postgres"
		c.Database = config.DatabaseConfig{Driver: "pgx", DSN: dsn}
	})
}

// WithMemoryStore keeps verdicts in process memory only.
func WithMemoryStore() Option {
	return withStorage(func(c *config.StorageConfig) { c.Type = "memory" })
}

// withStorage edits the storage section of the config. It must follow the
// config option.
func withStorage(edit func(*config.StorageConfig)) Option {
	return func(m *Moderator) error {
		if m.cfg == nil {
			return errors.New("config must be set before storage options")
		}
		edit(&m.cfg.Storage)
		return nil
	}
}

// WithStore uses a caller owned verdict store. Shutdown leaves it open.
func WithStore(store ports.VerdictStore) Option {
	return func(m *Moderator) error {
		m.store = store
		return nil
	}
}

// WithOracle replaces the configured provider. The retry and rate limit
// wrappers from the oracle config still apply.
func WithOracle(o ports.Oracle) Option {
	return func(m *Moderator) error {
		m.oracle = o
		return nil
	}
}

// WithCommentSource replaces the Instagram client used for imports.
func WithCommentSource(src ports.CommentSource) Option {
	return func(m *Moderator) error {
		m.source = src
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Moderator) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}
