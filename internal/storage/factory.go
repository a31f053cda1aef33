package storage

import (
	"fmt"

	"github.com/OCAP2/skelscale/internal/config"
	"github.com/OCAP2/skelscale/internal/database"
	"github.com/OCAP2/skelscale/internal/logging"
	gormstorage "github.com/OCAP2/skelscale/internal/storage/gorm"
	"github.com/OCAP2/skelscale/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/skelscale/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Dependencies carries what the SQL backends need beyond their config.
type Dependencies struct {
	LogManager *logging.SlogManager
	Logger     zerolog.Logger
	// DumpPath is used for SQLite dumps when the config leaves the path
	// empty, including the SQLite fallback of an unreachable Postgres.
	DumpPath string
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	sqliteCfg := sqlitestorage.Config{
		DumpInterval: cfg.SQLite.DumpInterval,
		DumpPath:     cfg.SQLite.DumpPath,
	}
	if sqliteCfg.DumpPath == "" {
		sqliteCfg.DumpPath = deps.DumpPath
	}

	switch cfg.Type {
	case "memory", "":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestorage.New(sqliteCfg, nil, deps.LogManager)
	case "postgres":
		m := database.NewManager(deps.Logger)
		if err := m.Connect(); err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		if m.ShouldSaveLocal {
			// Postgres was unreachable; keep the frames in SQLite and dump them.
			return sqlitestorage.New(sqliteCfg, m.DB, deps.LogManager)
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:         m.DB,
			LogManager: deps.LogManager,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Type)
	}
}
