// Package storage opens the configured verdict store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/storage/memory"
	"github.com/tjfontaine/harassment-moderator/internal/storage/sqldb"
)

// Open returns the store selected by cfg.Type.
func Open(cfg config.StorageConfig) (ports.VerdictStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		path := cfg.SQLite.Path
		if path == "" {
			path = "./data/moderator.db"
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqldb.NewSQLite(path)
	case "postgres":
		driver := cfg.Database.Driver
		if driver == "" {
			driver = "postgres"
		}
		return sqldb.New(sqldb.Config{Driver: driver, DSN: cfg.Database.DSN})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
