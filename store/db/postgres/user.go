package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	stmt := `INSERT INTO "user" (username) VALUES ($1) RETURNING id, created_ts`
	u := &store.User{Username: create.Username}
	if err := d.db.QueryRowContext(ctx, stmt, create.Username).Scan(&u.ID, &u.CreatedTs); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Username; v != nil {
		where, args = append(where, "username = "+placeholder(len(args)+1)), append(args, *v)
	}
	query := fmt.Sprintf(`SELECT id, username, created_ts FROM "user" WHERE %s`, strings.Join(where, " AND "))
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u := &store.User{}
	if err := rows.Scan(&u.ID, &u.Username, &u.CreatedTs); err != nil {
		return nil, err
	}
	return u, rows.Err()
}
