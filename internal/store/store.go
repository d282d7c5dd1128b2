// Package store is the SQLite persistence layer behind the graph engine
// and the summary coordinator: the live graph document and its versions,
// conversations with their messages, and stored summaries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/lodestar/internal/logging"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var for testability.
var timeNow = time.Now

// timestampLayout is fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file. Its directory is created if needed.
	Path string
	// LiveDocumentKey names the row holding the live graph document.
	LiveDocumentKey string
	// DefaultTimezone is used when a conversation has no valid zone.
	DefaultTimezone string
}

// Store implements every persistence collaborator on one SQLite database.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
	log   *zap.Logger
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type sqlRowScanner struct {
	rows *sql.Rows
}

func (r sqlRowScanner) Next() bool             { return r.rows.Next() }
func (r sqlRowScanner) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRowScanner) Err() error             { return r.rows.Err() }
func (r sqlRowScanner) Close() error           { return r.rows.Close() }

// storeHooks let tests fail individual statements.
type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	queryIt func(ctx context.Context, db queryer, query string, args ...any) (rowScanner, error)
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) queryItHook(ctx context.Context, db queryer, query string, args ...any) (rowScanner, error) {
	if s.hooks.queryIt != nil {
		return s.hooks.queryIt(ctx, db, query, args...)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRowScanner{rows: rows}, nil
}

// New opens the database with WAL mode and runs migrations.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.LiveDocumentKey == "" {
		cfg.LiveDocumentKey = "main"
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, log: logging.OrNop(logger).Named("store")}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	s.log.Debug("database ready", zap.String("path", cfg.Path))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS graph_documents (
			key        TEXT    PRIMARY KEY,
			document   TEXT    NOT NULL,
			revision   INTEGER NOT NULL,
			updated_at TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS graph_document_versions (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT    NOT NULL UNIQUE,
			document   TEXT    NOT NULL,
			created_at TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			timezone   TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_messages (
			id                TEXT PRIMARY KEY,
			conversation_id   TEXT NOT NULL,
			role              TEXT NOT NULL,
			content           TEXT NOT NULL,
			created_at        TEXT NOT NULL,
			parent_message_id TEXT,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_msg_conversation ON conversation_messages(conversation_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_msg_parent       ON conversation_messages(parent_message_id);

		CREATE TABLE IF NOT EXISTS conversation_summaries (
			id                    TEXT PRIMARY KEY,
			conversation_id       TEXT NOT NULL,
			level                 TEXT NOT NULL,
			period_start          TEXT NOT NULL,
			content               TEXT NOT NULL,
			created_by_message_id TEXT NOT NULL,
			created_at            TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			UNIQUE (conversation_id, level, period_start, created_by_message_id)
		);

		CREATE INDEX IF NOT EXISTS idx_sum_period ON conversation_summaries(conversation_id, level, period_start);
	`
	_, err := s.execHook(ctx, s.db, schema)
	return err
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
