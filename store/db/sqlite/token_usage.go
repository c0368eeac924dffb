package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) CreateTokenUsage(ctx context.Context, create *store.TokenUsage) (*store.TokenUsage, error) {
	stmt := `INSERT INTO token_usage (creator_id, model, prompt_tokens, completion_tokens, total_tokens)
	         VALUES (?, ?, ?, ?, ?)`
	result, err := d.db.ExecContext(ctx, stmt, create.CreatorID, create.Model, create.PromptTokens, create.CompletionTokens, create.TotalTokens)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	u := &store.TokenUsage{
		ID:               int32(rawID),
		CreatorID:        create.CreatorID,
		Model:            create.Model,
		PromptTokens:     create.PromptTokens,
		CompletionTokens: create.CompletionTokens,
		TotalTokens:      create.TotalTokens,
	}
	_ = d.db.QueryRowContext(ctx, "SELECT created_ts FROM token_usage WHERE id = ?", u.ID).Scan(&u.CreatedTs)
	return u, nil
}

func (d *DB) ListTokenUsages(ctx context.Context, find *store.FindTokenUsage) ([]*store.TokenUsage, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = ?"), append(args, *v)
	}
	if v := find.CreatedTsAfter; v != nil {
		where, args = append(where, "created_ts >= ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT id, creator_id, model, prompt_tokens, completion_tokens, total_tokens, created_ts
		 FROM token_usage WHERE %s ORDER BY created_ts DESC, id DESC`,
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.TokenUsage
	for rows.Next() {
		u := &store.TokenUsage{}
		if err := rows.Scan(&u.ID, &u.CreatorID, &u.Model, &u.PromptTokens, &u.CompletionTokens, &u.TotalTokens, &u.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
