package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	result, err := d.db.ExecContext(ctx, "INSERT INTO `user` (`username`) VALUES (?)", create.Username)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	id := int32(rawID)
	return d.GetUser(ctx, &store.FindUser{ID: &id})
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if v := find.Username; v != nil {
		where, args = append(where, "`username` = ?"), append(args, *v)
	}
	query := fmt.Sprintf("SELECT `id`, `username`, UNIX_TIMESTAMP(`created_ts`) FROM `user` WHERE %s", strings.Join(where, " AND "))
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
