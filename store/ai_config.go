package store

import "context"

// AIConfig is a user's completion-provider credential. One row per user.
type AIConfig struct {
	ID        int32
	CreatorID int32
	Provider  string
	APIKey    string
	Model     string
	CreatedTs int64
	UpdatedTs int64
}

// UpsertAIConfig creates or replaces the user's provider credential.
func (s *Store) UpsertAIConfig(ctx context.Context, upsert *AIConfig) (*AIConfig, error) {
	return s.driver.UpsertAIConfig(ctx, upsert)
}

// GetAIConfig returns the user's provider credential, or nil when none is
// on file.
func (s *Store) GetAIConfig(ctx context.Context, creatorID int32) (*AIConfig, error) {
	return s.driver.GetAIConfig(ctx, creatorID)
}

// DeleteAIConfig removes the user's provider credential.
func (s *Store) DeleteAIConfig(ctx context.Context, creatorID int32) error {
	return s.driver.DeleteAIConfig(ctx, creatorID)
}
