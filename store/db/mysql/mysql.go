// Package mysql implements the store driver on go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

type DB struct {
	db *sql.DB
}

// NewDB opens a mysql connection with the given DSN.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql db")
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user (
			id         INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			username   VARCHAR(256) NOT NULL UNIQUE,
			created_ts TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ai_chat_session (
			id           INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			uid          VARCHAR(256) NOT NULL UNIQUE,
			creator_id   INT NOT NULL,
			title        TEXT NOT NULL,
			model        VARCHAR(256) NOT NULL DEFAULT '',
			scenario_uid VARCHAR(256) NOT NULL DEFAULT '',
			created_ts   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_ts   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ai_chat_message (
			id          INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			session_id  INT NOT NULL,
			creator_id  INT NOT NULL,
			role        VARCHAR(256) NOT NULL,
			content     TEXT NOT NULL,
			model       VARCHAR(256) NOT NULL DEFAULT '',
			token_count INT NOT NULL DEFAULT 0,
			created_ts  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_ai_chat_message_session FOREIGN KEY (session_id) REFERENCES ai_chat_session(id) ON DELETE CASCADE,
			INDEX idx_ai_chat_message_session (session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_config (
			id         INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			creator_id INT NOT NULL UNIQUE,
			provider   VARCHAR(256) NOT NULL DEFAULT 'deepseek',
			api_key    TEXT NOT NULL,
			model      VARCHAR(256) NOT NULL,
			created_ts TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_ts TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS token_usage (
			id                INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			creator_id        INT NOT NULL,
			model             VARCHAR(256) NOT NULL,
			prompt_tokens     INT NOT NULL DEFAULT 0,
			completion_tokens INT NOT NULL DEFAULT 0,
			total_tokens      INT NOT NULL DEFAULT 0,
			created_ts        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_token_usage_creator (creator_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}
