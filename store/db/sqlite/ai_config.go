package sqlite

import (
	"context"
	"database/sql"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) UpsertAIConfig(ctx context.Context, upsert *store.AIConfig) (*store.AIConfig, error) {
	stmt := `INSERT INTO ai_config (creator_id, provider, api_key, model) VALUES (?, ?, ?, ?)
		ON CONFLICT(creator_id) DO UPDATE SET
			provider = excluded.provider,
			api_key = excluded.api_key,
			model = excluded.model,
			updated_ts = strftime('%s', 'now')`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.CreatorID, upsert.Provider, upsert.APIKey, upsert.Model); err != nil {
		return nil, err
	}
	return d.GetAIConfig(ctx, upsert.CreatorID)
}

func (d *DB) GetAIConfig(ctx context.Context, creatorID int32) (*store.AIConfig, error) {
	query := `SELECT id, creator_id, provider, api_key, model, created_ts, updated_ts
	          FROM ai_config WHERE creator_id = ?`
	c := &store.AIConfig{}
	err := d.db.QueryRowContext(ctx, query, creatorID).
		Scan(&c.ID, &c.CreatorID, &c.Provider, &c.APIKey, &c.Model, &c.CreatedTs, &c.UpdatedTs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) DeleteAIConfig(ctx context.Context, creatorID int32) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM ai_config WHERE creator_id = ?", creatorID)
	return err
}
