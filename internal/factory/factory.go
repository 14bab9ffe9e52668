// Package factory builds config-selected infrastructure components.
package factory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nexusweave/nexus/server/internal/config"
	"github.com/nexusweave/nexus/server/internal/store"
	"github.com/nexusweave/nexus/server/internal/store/postgres"
	"github.com/nexusweave/nexus/server/internal/store/sqlite"
)

// NewStore opens the configured database driver, ensures the schema, and
// returns the store with its close function.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, func() error, error) {
	var (
		db  *sql.DB
		st  store.Store
		err error
	)

	switch cfg.DBDriver {
	case "sqlite":
		db, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite at %s: %w", cfg.SQLitePath, err)
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("sqlite schema: %w", err)
		}
		st = sqlite.New(db)
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
	case "postgres":
		db, err = postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		st = postgres.New(db)
		log.Info().Msg("postgres store ready")
	default:
		return nil, nil, fmt.Errorf("unsupported DB driver: %s", cfg.DBDriver)
	}

	return st, db.Close, nil
}
