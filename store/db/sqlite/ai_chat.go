package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/useinkwell/inkwell/store"
)

func (d *DB) CreateAIChatSession(ctx context.Context, create *store.AIChatSession) (*store.AIChatSession, error) {
	stmt := `INSERT INTO ai_chat_session (uid, creator_id, title, model, scenario_uid) VALUES (?, ?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, stmt, create.UID, create.CreatorID, create.Title, create.Model, create.ScenarioUID); err != nil {
		return nil, err
	}
	// Fetch it back to populate timestamps.
	return d.GetAIChatSession(ctx, &store.FindAIChatSession{UID: &create.UID})
}

func (d *DB) ListAIChatSessions(ctx context.Context, find *store.FindAIChatSession) ([]*store.AIChatSession, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	if v := find.HasScenario; v != nil {
		if *v {
			where = append(where, "scenario_uid != ''")
		} else {
			where = append(where, "scenario_uid = ''")
		}
	}
	query := fmt.Sprintf(
		`SELECT id, uid, creator_id, title, model, scenario_uid, created_ts, updated_ts
		 FROM ai_chat_session WHERE %s ORDER BY updated_ts DESC, id DESC`,
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.AIChatSession
	for rows.Next() {
		s := &store.AIChatSession{}
		if err := rows.Scan(&s.ID, &s.UID, &s.CreatorID, &s.Title, &s.Model, &s.ScenarioUID, &s.CreatedTs, &s.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (d *DB) GetAIChatSession(ctx context.Context, find *store.FindAIChatSession) (*store.AIChatSession, error) {
	list, err := d.ListAIChatSessions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) UpdateAIChatSession(ctx context.Context, update *store.UpdateAIChatSession) (*store.AIChatSession, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = ?"), append(args, *v)
	}
	if v := update.Model; v != nil {
		set, args = append(set, "model = ?"), append(args, *v)
	}
	// Every update marks activity on the session.
	set = append(set, "updated_ts = strftime('%s', 'now')")
	args = append(args, update.UID)
	stmt := fmt.Sprintf("UPDATE ai_chat_session SET %s WHERE uid = ?", strings.Join(set, ", "))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, err
	}
	return d.GetAIChatSession(ctx, &store.FindAIChatSession{UID: &update.UID})
}

func (d *DB) DeleteAIChatSession(ctx context.Context, uid string) error {
	stmts := []string{
		"DELETE FROM ai_chat_message WHERE session_id IN (SELECT id FROM ai_chat_session WHERE uid = ?)",
		"DELETE FROM ai_chat_session WHERE uid = ?",
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt, uid); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) CreateAIChatMessage(ctx context.Context, create *store.CreateAIChatMessage) (*store.AIChatMessage, error) {
	stmt := `INSERT INTO ai_chat_message (session_id, creator_id, role, content, model, token_count) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := d.db.ExecContext(ctx, stmt, create.SessionID, create.CreatorID, create.Role, create.Content, create.Model, create.TokenCount)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	m := &store.AIChatMessage{
		ID:         int32(rawID),
		SessionID:  create.SessionID,
		CreatorID:  create.CreatorID,
		Role:       create.Role,
		Content:    create.Content,
		Model:      create.Model,
		TokenCount: create.TokenCount,
	}
	// Fetch created_ts.
	_ = d.db.QueryRowContext(ctx, "SELECT created_ts FROM ai_chat_message WHERE id = ?", m.ID).Scan(&m.CreatedTs)
	return m, nil
}

func (d *DB) CountAIChatMessages(ctx context.Context, find *store.FindAIChatMessage) (int32, error) {
	var count int32
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_chat_message WHERE session_id = ?", find.SessionID).Scan(&count)
	return count, err
}

func (d *DB) ListAIChatMessages(ctx context.Context, find *store.FindAIChatMessage) ([]*store.AIChatMessage, error) {
	query := `SELECT id, session_id, creator_id, role, content, model, token_count, created_ts
	          FROM ai_chat_message WHERE session_id = ? ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.SessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.AIChatMessage
	for rows.Next() {
		m := &store.AIChatMessage{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.CreatorID, &m.Role, &m.Content, &m.Model, &m.TokenCount, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
