package store

import (
	"context"

	"github.com/nexusweave/nexus/server/internal/model"
)

// Store exposes persistence operations required by the service.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Sessions() Sessions
	Settings() Settings
	Logs() Logs
}

// Sessions persists whole session rows. Writes are last-write-wins: Upsert
// replaces every mutable field and bumps the update time, with no version
// checks.
type Sessions interface {
	Upsert(ctx context.Context, s *model.Session) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]*model.Session, error)
	Delete(ctx context.Context, id string) error
}

// Settings is a flat key/value table of operator preferences.
type Settings interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// Logs records generator request/response exchanges.
type Logs interface {
	Append(ctx context.Context, rec *model.LogRecord) error
	Recent(ctx context.Context, limit int) ([]*model.LogRecord, error)
}
