package store

// AIChatSession represents a single conversation thread.
type AIChatSession struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	// Model pins the session to a specific model; empty means the user's
	// configured default.
	Model string
	// ScenarioUID references an external scenario preset that seeded the
	// session; empty for plain conversations.
	ScenarioUID string
	CreatedTs   int64
	UpdatedTs   int64
}

// DefaultSessionTitle is the placeholder title given to new sessions until
// the first exchange derives one from the user's message.
const DefaultSessionTitle = "New Chat"

// AIChatMessage is a single message within a session. Messages are
// immutable once created; their insertion order is the canonical
// conversation history.
type AIChatMessage struct {
	ID         int32
	SessionID  int32
	CreatorID  int32
	Role       string // "user" | "assistant"
	Content    string
	Model      string
	TokenCount int32
	CreatedTs  int64
}

// FindAIChatSession filters for ListAIChatSessions.
type FindAIChatSession struct {
	UID       *string
	CreatorID *int32
	// HasScenario narrows to scenario-bound (true) or plain (false) sessions.
	HasScenario *bool
}

// UpdateAIChatSession carries fields accepted by UpdateAIChatSession.
// updated_ts is bumped on every call, even when no field is set.
type UpdateAIChatSession struct {
	UID   string
	Title *string
	Model *string
}

// FindAIChatMessage filters for ListAIChatMessages.
type FindAIChatMessage struct {
	SessionID int32
}

// CreateAIChatMessage is the payload for CreateAIChatMessage.
type CreateAIChatMessage struct {
	SessionID  int32
	CreatorID  int32
	Role       string
	Content    string
	Model      string
	TokenCount int32
}
