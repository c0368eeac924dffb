// Package sqlite implements the store driver on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) the sqlite database at dsn.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite db %s", dsn)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username   TEXT NOT NULL UNIQUE,
			created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS ai_chat_session (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			uid          TEXT NOT NULL UNIQUE,
			creator_id   INTEGER NOT NULL,
			title        TEXT NOT NULL DEFAULT 'New Chat',
			model        TEXT NOT NULL DEFAULT '',
			scenario_uid TEXT NOT NULL DEFAULT '',
			created_ts   BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_ts   BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS ai_chat_message (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  INTEGER NOT NULL REFERENCES ai_chat_session(id) ON DELETE CASCADE,
			creator_id  INTEGER NOT NULL,
			role        TEXT NOT NULL,
			content     TEXT NOT NULL,
			model       TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			created_ts  BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_chat_message_session ON ai_chat_message(session_id)`,
		`CREATE TABLE IF NOT EXISTS ai_config (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			creator_id INTEGER NOT NULL UNIQUE,
			provider   TEXT NOT NULL DEFAULT 'deepseek',
			api_key    TEXT NOT NULL,
			model      TEXT NOT NULL,
			created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS token_usage (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			creator_id        INTEGER NOT NULL,
			model             TEXT NOT NULL,
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens      INTEGER NOT NULL DEFAULT 0,
			created_ts        BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_token_usage_creator ON token_usage(creator_id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}
