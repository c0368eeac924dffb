// Package postgres implements the store driver on lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

type DB struct {
	db *sql.DB
}

// NewDB opens a postgres connection with the given DSN.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres db")
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// placeholder returns the n-th positional parameter, e.g. $1.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "user" (
			id         SERIAL PRIMARY KEY,
			username   TEXT   NOT NULL UNIQUE,
			created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE TABLE IF NOT EXISTS ai_chat_session (
			id           SERIAL PRIMARY KEY,
			uid          TEXT    NOT NULL UNIQUE,
			creator_id   INTEGER NOT NULL,
			title        TEXT    NOT NULL DEFAULT 'New Chat',
			model        TEXT    NOT NULL DEFAULT '',
			scenario_uid TEXT    NOT NULL DEFAULT '',
			created_ts   BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW()),
			updated_ts   BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE TABLE IF NOT EXISTS ai_chat_message (
			id          SERIAL PRIMARY KEY,
			session_id  INTEGER NOT NULL REFERENCES ai_chat_session(id) ON DELETE CASCADE,
			creator_id  INTEGER NOT NULL,
			role        TEXT    NOT NULL,
			content     TEXT    NOT NULL,
			model       TEXT    NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			created_ts  BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_chat_message_session ON ai_chat_message(session_id)`,
		`CREATE TABLE IF NOT EXISTS ai_config (
			id         SERIAL PRIMARY KEY,
			creator_id INTEGER NOT NULL UNIQUE,
			provider   TEXT    NOT NULL DEFAULT 'deepseek',
			api_key    TEXT    NOT NULL,
			model      TEXT    NOT NULL,
			created_ts BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW()),
			updated_ts BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE TABLE IF NOT EXISTS token_usage (
			id                SERIAL PRIMARY KEY,
			creator_id        INTEGER NOT NULL,
			model             TEXT    NOT NULL,
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens      INTEGER NOT NULL DEFAULT 0,
			created_ts        BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
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
