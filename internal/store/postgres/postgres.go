// Package postgres implements store.Store on the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nexusweave/nexus/server/internal/model"
	"github.com/nexusweave/nexus/server/internal/store"
)

const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    genre TEXT NOT NULL DEFAULT '',
    setting TEXT NOT NULL DEFAULT '',
    style TEXT NOT NULL DEFAULT '',
    history JSONB NOT NULL DEFAULT '[]',
    lore TEXT NOT NULL DEFAULT '',
    codex JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS logs (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    request TEXT NOT NULL,
    response TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// New constructs a Postgres-backed store over db.
func New(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Sessions() store.Sessions { return &sessions{db: s.db} }
func (s *pgStore) Settings() store.Settings { return &settings{db: s.db} }
func (s *pgStore) Logs() store.Logs         { return &logs{db: s.db} }

// HealthPing verifies database connectivity.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Sessions ---

type sessions struct{ db *sql.DB }

func (s *sessions) Upsert(ctx context.Context, m *model.Session) (*model.Session, error) {
	history, codex, err := encodeCollections(m)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, name, genre, setting, style, history, lore, codex, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name,
            genre=EXCLUDED.genre,
            setting=EXCLUDED.setting,
            style=EXCLUDED.style,
            history=EXCLUDED.history,
            lore=EXCLUDED.lore,
            codex=EXCLUDED.codex,
            updated_at=EXCLUDED.updated_at
    `, m.ID, m.Name, m.Genre, m.Setting, m.Style, history, m.Lore, codex, now, now)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, m.ID)
}

func (s *sessions) Get(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, genre, setting, style, history, lore, codex, created_at, updated_at
        FROM sessions WHERE id=$1
    `, id)
	return scanSession(row)
}

func (s *sessions) List(ctx context.Context) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, genre, setting, style, history, lore, codex, created_at, updated_at
        FROM sessions ORDER BY updated_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *sessions) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var out model.Session
	var history, codex []byte
	err := row.Scan(&out.ID, &out.Name, &out.Genre, &out.Setting, &out.Style,
		&history, &out.Lore, &codex, &out.CreateTime, &out.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out.History = []model.Message{}
	out.Codex = []model.CodexEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &out.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if len(codex) > 0 {
		if err := json.Unmarshal(codex, &out.Codex); err != nil {
			return nil, fmt.Errorf("unmarshal codex: %w", err)
		}
	}
	if out.History == nil {
		out.History = []model.Message{}
	}
	if out.Codex == nil {
		out.Codex = []model.CodexEntry{}
	}
	return &out, nil
}

func encodeCollections(m *model.Session) (history, codex []byte, err error) {
	h := m.History
	if h == nil {
		h = []model.Message{}
	}
	c := m.Codex
	if c == nil {
		c = []model.CodexEntry{}
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal history: %w", err)
	}
	cb, err := json.Marshal(c)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal codex: %w", err)
	}
	return hb, cb, nil
}

// --- Settings ---

type settings struct{ db *sql.DB }

func (s *settings) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *settings) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO settings (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value
    `, key, value)
	return err
}

// --- Logs ---

type logs struct{ db *sql.DB }

func (l *logs) Append(ctx context.Context, rec *model.LogRecord) error {
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO logs (session_id, request, response, created_at)
        VALUES ($1,$2,$3,$4)
    `, rec.SessionID, rec.Request, rec.Response, time.Now().UTC())
	return err
}

func (l *logs) Recent(ctx context.Context, limit int) ([]*model.LogRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT id, session_id, request, response, created_at
        FROM logs ORDER BY created_at DESC, id DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.LogRecord
	for rows.Next() {
		var rec model.LogRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Request, &rec.Response, &rec.CreateTime); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
