package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/useinkwell/inkwell/server/auth"
	"github.com/useinkwell/inkwell/store"
)

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	// Create without title falls back to the default.
	uid := env.createSession(t, "")
	resp := env.do(t, http.MethodGet, "/api/v1/ai/sessions/"+uid, nil)
	var detail sessionDetailResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	resp.Body.Close()
	assert.Equal(t, store.DefaultSessionTitle, detail.Title)
	assert.Empty(t, detail.Messages)

	// Rename.
	resp = env.do(t, http.MethodPatch, "/api/v1/ai/sessions/"+uid, map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, "Renamed", updated.Title)

	// Listed.
	resp = env.do(t, http.MethodGet, "/api/v1/ai/sessions", nil)
	var sessions []sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	resp.Body.Close()
	require.Len(t, sessions, 1)
	assert.Equal(t, uid, sessions[0].UID)

	// Delete, then gone.
	resp = env.do(t, http.MethodDelete, "/api/v1/ai/sessions/"+uid, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/v1/ai/sessions/"+uid, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionUpdateRejectsEmptyPatch(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPatch, "/api/v1/ai/sessions/"+uid, map[string]string{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	empty := ""
	resp = env.do(t, http.MethodPatch, "/api/v1/ai/sessions/"+uid, map[string]*string{"title": &empty})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionListIncludesMessageCount(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	uid := env.createSession(t, "counted")

	ctx := context.Background()
	sess, err := env.store.GetAIChatSession(ctx, &store.FindAIChatSession{UID: &uid})
	require.NoError(t, err)
	for _, role := range []string{"user", "assistant"} {
		_, err := env.store.CreateAIChatMessage(ctx, &store.CreateAIChatMessage{
			SessionID: sess.ID, CreatorID: env.user.ID, Role: role, Content: "hi",
		})
		require.NoError(t, err)
	}

	resp := env.do(t, http.MethodGet, "/api/v1/ai/sessions", nil)
	var sessions []sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	resp.Body.Close()
	require.Len(t, sessions, 1)
	assert.Equal(t, int32(2), sessions[0].MessageCount)

	resp = env.do(t, http.MethodGet, "/api/v1/ai/sessions/"+uid, nil)
	var detail sessionDetailResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	resp.Body.Close()
	assert.Equal(t, int32(2), detail.MessageCount)
	assert.Len(t, detail.Messages, 2)
}

func TestSessionListFiltersByType(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions", map[string]string{"title": "plain"})
	resp.Body.Close()
	resp = env.do(t, http.MethodPost, "/api/v1/ai/sessions", map[string]string{"title": "roleplay", "scenarioUid": "scn-1"})
	resp.Body.Close()

	var sessions []sessionResponse
	resp = env.do(t, http.MethodGet, "/api/v1/ai/sessions?type=normal", nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	resp.Body.Close()
	require.Len(t, sessions, 1)
	assert.Equal(t, "plain", sessions[0].Title)

	resp = env.do(t, http.MethodGet, "/api/v1/ai/sessions?type=scenario", nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	resp.Body.Close()
	require.Len(t, sessions, 1)
	assert.Equal(t, "scn-1", sessions[0].ScenarioUID)
}

func TestSessionOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	uid := env.createSession(t, "mine")

	other, err := env.store.CreateUser(context.Background(), &store.User{Username: "mallory"})
	require.NoError(t, err)
	otherToken, err := auth.GenerateAccessToken(other.ID, testSecret, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Someone else's session reads as not found, not forbidden.
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/ai/sessions/"+uid, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	resp, err := http.Get(env.server.URL + "/api/v1/ai/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAIConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	// Unset config reads as null.
	resp := env.do(t, http.MethodGet, "/api/v1/ai/config", nil)
	var got *aiConfigResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Nil(t, got)

	// Provider defaults when omitted.
	resp = env.do(t, http.MethodPost, "/api/v1/ai/config", map[string]string{"apiKey": "sk-1", "model": "chat-a"})
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, "deepseek", got.Provider)

	// Upsert replaces, never duplicates.
	resp = env.do(t, http.MethodPut, "/api/v1/ai/config", map[string]string{"provider": "openai", "apiKey": "sk-2", "model": "chat-b"})
	resp.Body.Close()
	resp = env.do(t, http.MethodGet, "/api/v1/ai/config", nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	require.NotNil(t, got)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "sk-2", got.APIKey)
	assert.Equal(t, "chat-b", got.Model)

	resp = env.do(t, http.MethodDelete, "/api/v1/ai/config", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/v1/ai/config", nil)
	got = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Nil(t, got)
}

func TestAIConfigRequiresKeyAndModel(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/config", map[string]string{"model": "chat-a"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/ai/config", map[string]string{"apiKey": "sk-1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenStatsAggregation(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	ctx := context.Background()

	for _, u := range []*store.TokenUsage{
		{CreatorID: env.user.ID, Model: "chat-a", TotalTokens: 10},
		{CreatorID: env.user.ID, Model: "chat-a", TotalTokens: 5},
		{CreatorID: env.user.ID, Model: "chat-b", TotalTokens: 7},
	} {
		_, err := env.store.CreateTokenUsage(ctx, u)
		require.NoError(t, err)
	}
	// Another user's usage must not leak into the stats.
	other, err := env.store.CreateUser(ctx, &store.User{Username: "bob"})
	require.NoError(t, err)
	_, err = env.store.CreateTokenUsage(ctx, &store.TokenUsage{CreatorID: other.ID, Model: "chat-a", TotalTokens: 100})
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/v1/ai/tokens", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats tokenStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))

	assert.Equal(t, int32(22), stats.Total.TotalTokens)
	assert.Equal(t, int32(0), stats.Total.PromptTokens)
	require.Contains(t, stats.ByModel, "chat-a")
	assert.Equal(t, int32(15), stats.ByModel["chat-a"].TotalTokens)
	assert.Equal(t, int32(2), stats.ByModel["chat-a"].Count)
	assert.Equal(t, int32(7), stats.ByModel["chat-b"].TotalTokens)
	require.Len(t, stats.Details, 3)

	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, int32(22), stats.ByDay[today].TotalTokens)
}
