package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) CreateTokenUsage(ctx context.Context, create *store.TokenUsage) (*store.TokenUsage, error) {
	stmt := `INSERT INTO token_usage (creator_id, model, prompt_tokens, completion_tokens, total_tokens)
	         VALUES ($1, $2, $3, $4, $5)
	         RETURNING id, created_ts`
	u := &store.TokenUsage{
		CreatorID:        create.CreatorID,
		Model:            create.Model,
		PromptTokens:     create.PromptTokens,
		CompletionTokens: create.CompletionTokens,
		TotalTokens:      create.TotalTokens,
	}
	if err := d.db.QueryRowContext(ctx, stmt,
		create.CreatorID, create.Model, create.PromptTokens, create.CompletionTokens, create.TotalTokens,
	).Scan(&u.ID, &u.CreatedTs); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *DB) ListTokenUsages(ctx context.Context, find *store.FindTokenUsage) ([]*store.TokenUsage, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedTsAfter; v != nil {
		where, args = append(where, "created_ts >= "+placeholder(len(args)+1)), append(args, *v)
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
