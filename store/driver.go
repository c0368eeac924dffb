package store

import "context"

// Driver is the contract every database backend implements.
type Driver interface {
	EnsureSchema(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, create *User) (*User, error)
	GetUser(ctx context.Context, find *FindUser) (*User, error)

	CreateAIChatSession(ctx context.Context, create *AIChatSession) (*AIChatSession, error)
	ListAIChatSessions(ctx context.Context, find *FindAIChatSession) ([]*AIChatSession, error)
	GetAIChatSession(ctx context.Context, find *FindAIChatSession) (*AIChatSession, error)
	UpdateAIChatSession(ctx context.Context, update *UpdateAIChatSession) (*AIChatSession, error)
	DeleteAIChatSession(ctx context.Context, uid string) error

	CreateAIChatMessage(ctx context.Context, create *CreateAIChatMessage) (*AIChatMessage, error)
	ListAIChatMessages(ctx context.Context, find *FindAIChatMessage) ([]*AIChatMessage, error)
	CountAIChatMessages(ctx context.Context, find *FindAIChatMessage) (int32, error)

	UpsertAIConfig(ctx context.Context, upsert *AIConfig) (*AIConfig, error)
	GetAIConfig(ctx context.Context, creatorID int32) (*AIConfig, error)
	DeleteAIConfig(ctx context.Context, creatorID int32) error

	CreateTokenUsage(ctx context.Context, create *TokenUsage) (*TokenUsage, error)
	ListTokenUsages(ctx context.Context, find *FindTokenUsage) ([]*TokenUsage, error)
}
