package store

import "context"

// User is the minimal account record this subsystem needs: enough to
// resolve a bearer token to an owner. Registration and credential storage
// live elsewhere.
type User struct {
	ID        int32
	Username  string
	CreatedTs int64
}

// FindUser filters for GetUser.
type FindUser struct {
	ID       *int32
	Username *string
}

// CreateUser persists a new user.
func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

// GetUser returns the first user matching the given filter, or nil.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	return s.driver.GetUser(ctx, find)
}
