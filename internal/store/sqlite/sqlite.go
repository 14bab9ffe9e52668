// Package sqlite implements store.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

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
    history TEXT NOT NULL DEFAULT '[]',
    lore TEXT NOT NULL DEFAULT '',
    codex TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    request TEXT NOT NULL,
    response TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

// Open opens (or creates) a SQLite database at the given path and enables
// WAL journal mode. Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*sql.DB, error) {
	dsn := "file::memory:?cache=shared"
	if path != ":memory:" {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; a single pooled conn avoids
	// SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates tables when missing. There is no migration story
// beyond this.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// New constructs a SQLite-backed store over db.
func New(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Sessions() store.Sessions { return &sessions{db: s.db} }
func (s *sqliteStore) Settings() store.Settings { return &settings{db: s.db} }
func (s *sqliteStore) Logs() store.Logs         { return &logs{db: s.db} }

// HealthPing verifies database connectivity.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
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
        VALUES (?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            name=excluded.name,
            genre=excluded.genre,
            setting=excluded.setting,
            style=excluded.style,
            history=excluded.history,
            lore=excluded.lore,
            codex=excluded.codex,
            updated_at=excluded.updated_at
    `, m.ID, m.Name, m.Genre, m.Setting, m.Style, history, m.Lore, codex, now, now)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, m.ID)
}

func (s *sessions) Get(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, genre, setting, style, history, lore, codex, created_at, updated_at
        FROM sessions WHERE id = ?
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
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
	var history, codex string
	err := row.Scan(&out.ID, &out.Name, &out.Genre, &out.Setting, &out.Style,
		&history, &out.Lore, &codex, &out.CreateTime, &out.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := decodeCollections(&out, history, codex); err != nil {
		return nil, err
	}
	return &out, nil
}

func encodeCollections(m *model.Session) (history, codex string, err error) {
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
		return "", "", fmt.Errorf("marshal history: %w", err)
	}
	cb, err := json.Marshal(c)
	if err != nil {
		return "", "", fmt.Errorf("marshal codex: %w", err)
	}
	return string(hb), string(cb), nil
}

func decodeCollections(m *model.Session, history, codex string) error {
	m.History = []model.Message{}
	m.Codex = []model.CodexEntry{}
	if history != "" {
		if err := json.Unmarshal([]byte(history), &m.History); err != nil {
			return fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if codex != "" {
		if err := json.Unmarshal([]byte(codex), &m.Codex); err != nil {
			return fmt.Errorf("unmarshal codex: %w", err)
		}
	}
	if m.History == nil {
		m.History = []model.Message{}
	}
	if m.Codex == nil {
		m.Codex = []model.CodexEntry{}
	}
	return nil
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
        INSERT INTO settings (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value
    `, key, value)
	return err
}

// --- Logs ---

type logs struct{ db *sql.DB }

func (l *logs) Append(ctx context.Context, rec *model.LogRecord) error {
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO logs (session_id, request, response, created_at)
        VALUES (?,?,?,?)
    `, rec.SessionID, rec.Request, rec.Response, time.Now().UTC())
	return err
}

func (l *logs) Recent(ctx context.Context, limit int) ([]*model.LogRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT id, session_id, request, response, created_at
        FROM logs ORDER BY created_at DESC, id DESC LIMIT ?
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
