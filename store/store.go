// Package store provides the persistence facade. All reads and writes go
// through a database Driver selected at startup.
package store

import "context"

// Store is the database-agnostic persistence facade.
type Store struct {
	driver Driver
}

// New creates a Store over the given driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// Migrate bootstraps the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.EnsureSchema(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.driver.Close()
}
