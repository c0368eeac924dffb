package mysql

import (
	"context"
	"database/sql"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) UpsertAIConfig(ctx context.Context, upsert *store.AIConfig) (*store.AIConfig, error) {
	stmt := "INSERT INTO `ai_config` (`creator_id`, `provider`, `api_key`, `model`) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `provider` = VALUES(`provider`), `api_key` = VALUES(`api_key`), `model` = VALUES(`model`), `updated_ts` = CURRENT_TIMESTAMP"
	if _, err := d.db.ExecContext(ctx, stmt, upsert.CreatorID, upsert.Provider, upsert.APIKey, upsert.Model); err != nil {
		return nil, err
	}
	return d.GetAIConfig(ctx, upsert.CreatorID)
}

func (d *DB) GetAIConfig(ctx context.Context, creatorID int32) (*store.AIConfig, error) {
	query := "SELECT `id`, `creator_id`, `provider`, `api_key`, `model`, UNIX_TIMESTAMP(`created_ts`), UNIX_TIMESTAMP(`updated_ts`) FROM `ai_config` WHERE `creator_id` = ?"
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
	_, err := d.db.ExecContext(ctx, "DELETE FROM `ai_config` WHERE `creator_id` = ?", creatorID)
	return err
}
