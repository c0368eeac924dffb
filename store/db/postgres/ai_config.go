package postgres

import (
	"context"
	"database/sql"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) UpsertAIConfig(ctx context.Context, upsert *store.AIConfig) (*store.AIConfig, error) {
	stmt := `INSERT INTO ai_config (creator_id, provider, api_key, model)
	         VALUES ($1, $2, $3, $4)
	         ON CONFLICT (creator_id) DO UPDATE SET
	             provider = EXCLUDED.provider,
	             api_key = EXCLUDED.api_key,
	             model = EXCLUDED.model,
	             updated_ts = EXTRACT(EPOCH FROM NOW())
	         RETURNING id, creator_id, provider, api_key, model, created_ts, updated_ts`
	c := &store.AIConfig{}
	if err := d.db.QueryRowContext(ctx, stmt, upsert.CreatorID, upsert.Provider, upsert.APIKey, upsert.Model).
		Scan(&c.ID, &c.CreatorID, &c.Provider, &c.APIKey, &c.Model, &c.CreatedTs, &c.UpdatedTs); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) GetAIConfig(ctx context.Context, creatorID int32) (*store.AIConfig, error) {
	query := `SELECT id, creator_id, provider, api_key, model, created_ts, updated_ts
	          FROM ai_config WHERE creator_id = $1`
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
	_, err := d.db.ExecContext(ctx, `DELETE FROM ai_config WHERE creator_id = $1`, creatorID)
	return err
}
