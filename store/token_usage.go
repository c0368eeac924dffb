package store

import "context"

// TokenUsage is one entry of the append-only token accounting ledger.
// Rows are never mutated; statistics are aggregated on read.
type TokenUsage struct {
	ID               int32
	CreatorID        int32
	Model            string
	PromptTokens     int32
	CompletionTokens int32
	TotalTokens      int32
	CreatedTs        int64
}

// FindTokenUsage filters for ListTokenUsages.
type FindTokenUsage struct {
	CreatorID      *int32
	CreatedTsAfter *int64
}

// CreateTokenUsage appends one entry to the usage ledger.
func (s *Store) CreateTokenUsage(ctx context.Context, create *TokenUsage) (*TokenUsage, error) {
	return s.driver.CreateTokenUsage(ctx, create)
}

// ListTokenUsages returns ledger entries matching the filter, newest first.
func (s *Store) ListTokenUsages(ctx context.Context, find *FindTokenUsage) ([]*TokenUsage, error) {
	return s.driver.ListTokenUsages(ctx, find)
}
