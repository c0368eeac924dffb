package v1

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/useinkwell/inkwell/server/auth"
	"github.com/useinkwell/inkwell/server/profile"
	"github.com/useinkwell/inkwell/store"
	"github.com/useinkwell/inkwell/store/db/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	store  *store.Store
	server *httptest.Server
	user   *store.User
	token  string
}

// newTestEnv spins up the API over a throwaway sqlite database, with the
// relay pointed at upstreamURL.
func newTestEnv(t *testing.T, upstreamURL string) *testEnv {
	t.Helper()

	driver, err := sqlite.NewDB(filepath.Join(t.TempDir(), "inkwell_test.db"))
	require.NoError(t, err)
	st := store.New(driver)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	user, err := st.CreateUser(context.Background(), &store.User{Username: "alice"})
	require.NoError(t, err)
	token, err := auth.GenerateAccessToken(user.ID, testSecret, time.Now().Add(time.Hour))
	require.NoError(t, err)

	p := &profile.Profile{Mode: "dev", AIBaseURL: upstreamURL, Secret: testSecret}
	e := echo.New()
	NewAPIV1Service(testSecret, p, st).Register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &testEnv{store: st, server: srv, user: user, token: token}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (env *testEnv) configureAI(t *testing.T) {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/v1/ai/config", map[string]string{
		"apiKey": "sk-test",
		"model":  "test-chat",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func (env *testEnv) createSession(t *testing.T, title string) string {
	t.Helper()
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		UID string `json:"uid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created.UID
}

type sseEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Tokens  int32  `json:"tokens"`
	} `json:"message"`
	Error string `json:"error"`
}

func readSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev sseEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

// fakeUpstream serves a canned SSE response for each chat completion call.
func fakeUpstream(t *testing.T, records ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\n\n", rec)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatStreamHappyPath(t *testing.T) {
	upstream := fakeUpstream(t,
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"delta":{"content":" there"}}],"usage":{"total_tokens":12}}`,
		`data: [DONE]`,
	)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "Hi, who are you?"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readSSE(t, resp)
	require.Len(t, events, 4)
	assert.Equal(t, "user", events[0].Type)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, "Hi, who are you?", events[0].Message.Content)
	assert.Equal(t, "content", events[1].Type)
	assert.Equal(t, "Hello", events[1].Content)
	assert.Equal(t, " there", events[2].Content)
	assert.Equal(t, "done", events[3].Type)
	require.NotNil(t, events[3].Message)
	assert.Equal(t, "Hello there", events[3].Message.Content)
	assert.Equal(t, int32(12), events[3].Message.Tokens)

	// Persisted history matches what the client saw.
	sess, err := env.store.GetAIChatSession(context.Background(), &store.FindAIChatSession{UID: &uid})
	require.NoError(t, err)
	msgs, err := env.store.ListAIChatMessages(context.Background(), &store.FindAIChatMessage{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Hello there", msgs[1].Content)

	// One ledger entry, total only.
	usages, err := env.store.ListTokenUsages(context.Background(), &store.FindTokenUsage{CreatorID: &env.user.ID})
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, int32(12), usages[0].TotalTokens)
	assert.Equal(t, int32(0), usages[0].PromptTokens)
	assert.Equal(t, int32(0), usages[0].CompletionTokens)

	// First exchange derives the title from the user's message.
	assert.Equal(t, "Hi, who are you?", sess.Title)
}

func TestChatStreamThinkingSegment(t *testing.T) {
	upstream := fakeUpstream(t,
		`data: {"choices":[{"delta":{"content":"<think>reason"}}]}`,
		`data: {"choices":[{"delta":{"content":"ing done</think>answer"}}]}`,
		`data: [DONE]`,
	)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "why?"})
	defer resp.Body.Close()
	events := readSSE(t, resp)

	require.Len(t, events, 4)
	assert.Equal(t, "user", events[0].Type)
	assert.Equal(t, "thinking", events[1].Type)
	assert.Equal(t, "reasoning done", events[1].Content)
	assert.Equal(t, "content", events[2].Type)
	assert.Equal(t, "answer", events[2].Content)
	assert.Equal(t, "done", events[3].Type)
	assert.Equal(t, "answer", events[3].Message.Content)
}

func TestChatStreamMalformedRecordDoesNotAbort(t *testing.T) {
	upstream := fakeUpstream(t,
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {definitely not json`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: [DONE]`,
	)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "go"})
	defer resp.Body.Close()
	events := readSSE(t, resp)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, "done", last.Type)
	assert.Equal(t, "ab", last.Message.Content)
}

func TestChatStreamEmptyAnswerFallback(t *testing.T) {
	upstream := fakeUpstream(t, `data: [DONE]`)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "hello"})
	defer resp.Body.Close()
	events := readSSE(t, resp)

	last := events[len(events)-1]
	require.Equal(t, "done", last.Type)
	assert.Equal(t, emptyAnswerFallback, last.Message.Content)

	// No usage reported means no ledger entry.
	usages, err := env.store.ListTokenUsages(context.Background(), &store.FindTokenUsage{CreatorID: &env.user.ID})
	require.NoError(t, err)
	assert.Empty(t, usages)
}

func TestChatStreamCustomTitlePreserved(t *testing.T) {
	upstream := fakeUpstream(t,
		`data: {"choices":[{"delta":{"content":"sure"}}]}`,
		`data: [DONE]`,
	)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "Trip planning")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "first message"})
	events := readSSE(t, resp)
	resp.Body.Close()
	require.Equal(t, "done", events[len(events)-1].Type)

	sess, err := env.store.GetAIChatSession(context.Background(), &store.FindAIChatSession{UID: &uid})
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", sess.Title)
}

func TestChatStreamLongFirstMessageTruncatedTitle(t *testing.T) {
	upstream := fakeUpstream(t,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	long := strings.Repeat("x", 80)
	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": long})
	events := readSSE(t, resp)
	resp.Body.Close()
	require.Equal(t, "done", events[len(events)-1].Type)

	sess, err := env.store.GetAIChatSession(context.Background(), &store.FindAIChatSession{UID: &uid})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", sess.Title)
}

func TestChatWithoutConfigRejected(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "hello"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatUnknownSessionRejected(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	env.configureAI(t)

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/nope/chat", map[string]string{"content": "hello"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatUpstreamFailureEmitsErrorEvent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"provider exploded"}`)
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "hello"})
	defer resp.Body.Close()
	events := readSSE(t, resp)

	require.Len(t, events, 2)
	assert.Equal(t, "user", events[0].Type)
	assert.Equal(t, "error", events[1].Type)
	// The provider's error body must never reach the client.
	assert.NotContains(t, events[1].Error, "provider exploded")

	// Only the user turn was persisted.
	sess, err := env.store.GetAIChatSession(context.Background(), &store.FindAIChatSession{UID: &uid})
	require.NoError(t, err)
	msgs, err := env.store.ListAIChatMessages(context.Background(), &store.FindAIChatMessage{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestChatStreamTruncatedUpstreamEmitsErrorEvent(t *testing.T) {
	// A chunked response cut off before the terminating chunk surfaces as a
	// read error in the relay's pump loop.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, bufrw, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		defer conn.Close()
		payload := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n"
		fmt.Fprintf(bufrw, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nTransfer-Encoding: chunked\r\n\r\n%x\r\n%s\r\n", len(payload), payload)
		require.NoError(t, bufrw.Flush())
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/ai/sessions/"+uid+"/chat", map[string]string{"content": "hello"})
	defer resp.Body.Close()
	events := readSSE(t, resp)

	require.Len(t, events, 3)
	assert.Equal(t, "user", events[0].Type)
	assert.Equal(t, "content", events[1].Type)
	assert.Equal(t, "partial", events[1].Content)
	assert.Equal(t, "error", events[2].Type)

	// The partial answer is not persisted.
	sess, err := env.store.GetAIChatSession(context.Background(), &store.FindAIChatSession{UID: &uid})
	require.NoError(t, err)
	msgs, err := env.store.ListAIChatMessages(context.Background(), &store.FindAIChatMessage{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestChatClientDisconnectStopsStream(t *testing.T) {
	upstreamDone := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Hold the stream open until the relay drops the connection.
		<-r.Context().Done()
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL)
	env.configureAI(t)
	uid := env.createSession(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	data, _ := json.Marshal(map[string]string{"content": "hello"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		env.server.URL+"/api/v1/ai/sessions/"+uid+"/chat", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n') // first event arrived, stream is live
	require.NoError(t, err)

	cancel()
	resp.Body.Close()

	// Cancellation propagates upstream: the fake provider sees its request
	// context end instead of serving forever.
	select {
	case <-upstreamDone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream read loop was not cancelled")
	}

	// Aborted attempts persist the user turn only.
	require.Eventually(t, func() bool {
		sess, err := env.store.GetAIChatSession(context.Background(), &store.FindAIChatSession{UID: &uid})
		if err != nil || sess == nil {
			return false
		}
		msgs, err := env.store.ListAIChatMessages(context.Background(), &store.FindAIChatMessage{SessionID: sess.ID})
		return err == nil && len(msgs) == 1 && msgs[0].Role == "user"
	}, 5*time.Second, 50*time.Millisecond)
}
