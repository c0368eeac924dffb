package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/useinkwell/inkwell/plugin/llm"
	"github.com/useinkwell/inkwell/store"
)

const (
	// emptyAnswerFallback is persisted when the provider streams no usable
	// answer content at all.
	emptyAnswerFallback = "Sorry, I could not come up with an answer."

	// titleMaxRunes bounds the session title derived from the first message.
	titleMaxRunes = 50
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type chatRequest struct {
	Content string `json:"content"` // user message text
	Model   string `json:"model"`   // optional per-request model override
}

type createSessionRequest struct {
	Title       string `json:"title"`
	ScenarioUID string `json:"scenarioUid"`
	Model       string `json:"model"`
}

type updateSessionRequest struct {
	Title *string `json:"title"`
	Model *string `json:"model"`
}

type sessionResponse struct {
	UID          string `json:"uid"`
	Title        string `json:"title"`
	Model        string `json:"model,omitempty"`
	ScenarioUID  string `json:"scenarioUid,omitempty"`
	MessageCount int32  `json:"messageCount"`
	CreatedTs    int64  `json:"createdTs"`
	UpdatedTs    int64  `json:"updatedTs"`
}

type sessionDetailResponse struct {
	sessionResponse
	Messages []messageResponse `json:"messages"`
}

type messageResponse struct {
	ID        int32  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Model     string `json:"model,omitempty"`
	Tokens    int32  `json:"tokens,omitempty"`
	CreatedTs int64  `json:"createdTs"`
}

// streamEvent is one downstream SSE record. Exactly one payload field is
// set depending on Type.
type streamEvent struct {
	Type    string           `json:"type"` // user | content | thinking | done | error
	Content string           `json:"content,omitempty"`
	Message *messageResponse `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func toSessionResponse(s *store.AIChatSession) sessionResponse {
	return sessionResponse{
		UID:         s.UID,
		Title:       s.Title,
		Model:       s.Model,
		ScenarioUID: s.ScenarioUID,
		CreatedTs:   s.CreatedTs,
		UpdatedTs:   s.UpdatedTs,
	}
}

func toMessageResponse(m *store.AIChatMessage) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Model:     m.Model,
		Tokens:    m.TokenCount,
		CreatedTs: m.CreatedTs,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Route registration
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) registerAIChatRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/ai")
	g.GET("/sessions", s.listAIChatSessions)
	g.POST("/sessions", s.createAIChatSession)
	g.GET("/sessions/:uid", s.getAIChatSession)
	g.PATCH("/sessions/:uid", s.updateAIChatSession)
	g.DELETE("/sessions/:uid", s.deleteAIChatSession)
	g.GET("/sessions/:uid/messages", s.listAIChatMessages)
	g.POST("/sessions/:uid/chat", s.handleAIChat)
}

// ─────────────────────────────────────────────────────────────────────────────
// Session CRUD
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) listAIChatSessions(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	find := &store.FindAIChatSession{CreatorID: &user.ID}
	switch c.QueryParam("type") {
	case "normal":
		no := false
		find.HasScenario = &no
	case "scenario":
		yes := true
		find.HasScenario = &yes
	}
	sessions, err := s.Store.ListAIChatSessions(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		r := toSessionResponse(sess)
		count, err := s.Store.CountAIChatMessages(c.Request().Context(), &store.FindAIChatMessage{SessionID: sess.ID})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		r.MessageCount = count
		resp = append(resp, r)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) createAIChatSession(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		req.Title = store.DefaultSessionTitle
	}
	if req.Title == "" {
		req.Title = store.DefaultSessionTitle
	}
	sess, err := s.Store.CreateAIChatSession(c.Request().Context(), &store.AIChatSession{
		UID:         shortuuid.New(),
		CreatorID:   user.ID,
		Title:       req.Title,
		Model:       req.Model,
		ScenarioUID: req.ScenarioUID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (s *APIV1Service) getAIChatSession(c *echo.Context) error {
	uid := c.Param("uid")
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	sess, err := s.Store.GetAIChatSession(c.Request().Context(), &store.FindAIChatSession{UID: &uid})
	if err != nil || sess == nil || sess.CreatorID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	msgs, err := s.Store.ListAIChatMessages(c.Request().Context(), &store.FindAIChatMessage{SessionID: sess.ID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := sessionDetailResponse{
		sessionResponse: toSessionResponse(sess),
		Messages:        make([]messageResponse, 0, len(msgs)),
	}
	resp.MessageCount = int32(len(msgs))
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) updateAIChatSession(c *echo.Context) error {
	uid := c.Param("uid")
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	// verify ownership
	sess, err := s.Store.GetAIChatSession(c.Request().Context(), &store.FindAIChatSession{UID: &uid})
	if err != nil || sess == nil || sess.CreatorID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	var req updateSessionRequest
	if err := c.Bind(&req); err != nil || (req.Title == nil && req.Model == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, "title or model required")
	}
	if req.Title != nil && *req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title must not be empty")
	}
	updated, err := s.Store.UpdateAIChatSession(c.Request().Context(), &store.UpdateAIChatSession{
		UID:   uid,
		Title: req.Title,
		Model: req.Model,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSessionResponse(updated))
}

func (s *APIV1Service) deleteAIChatSession(c *echo.Context) error {
	uid := c.Param("uid")
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	sess, err := s.Store.GetAIChatSession(c.Request().Context(), &store.FindAIChatSession{UID: &uid})
	if err != nil || sess == nil || sess.CreatorID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err := s.Store.DeleteAIChatSession(c.Request().Context(), uid); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) listAIChatMessages(c *echo.Context) error {
	uid := c.Param("uid")
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	sess, err := s.Store.GetAIChatSession(c.Request().Context(), &store.FindAIChatSession{UID: &uid})
	if err != nil || sess == nil || sess.CreatorID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	msgs, err := s.Store.ListAIChatMessages(c.Request().Context(), &store.FindAIChatMessage{SessionID: sess.ID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

// ─────────────────────────────────────────────────────────────────────────────
// Main chat handler (SSE)
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) handleAIChat(c *echo.Context) error {
	uid := c.Param("uid")
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content required")
	}

	ctx := c.Request().Context()

	// ── 1. Provider credential ───────────────────────────────────────────────
	config, err := s.Store.GetAIConfig(ctx, user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if config == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "AI settings are not configured")
	}

	// ── 2. Session + ownership ───────────────────────────────────────────────
	sess, err := s.Store.GetAIChatSession(ctx, &store.FindAIChatSession{UID: &uid})
	if err != nil || sess == nil || sess.CreatorID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	// ── 3. Conversation history ──────────────────────────────────────────────
	history, err := s.Store.ListAIChatMessages(ctx, &store.FindAIChatMessage{SessionID: sess.ID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Model precedence: request override, session pin, configured default.
	model := req.Model
	if model == "" {
		model = sess.Model
	}
	if model == "" {
		model = config.Model
	}

	// ── 4. Persist the user turn before anything streams ─────────────────────
	// It stays persisted even if the client disconnects mid-stream.
	userMsg, err := s.Store.CreateAIChatMessage(ctx, &store.CreateAIChatMessage{
		SessionID: sess.ID,
		CreatorID: user.ID,
		Role:      "user",
		Content:   req.Content,
		Model:     model,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// ── 5. Set up SSE ────────────────────────────────────────────────────────
	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)

	emit := func(ev streamEvent) {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(rw, "data: %s\n\n", data)
		if f, ok := rw.(http.Flusher); ok {
			f.Flush()
		}
	}

	// The client sees its own turn before the upstream call is even opened.
	userResp := toMessageResponse(userMsg)
	emit(streamEvent{Type: "user", Message: &userResp})

	// ── 6. Open the upstream stream ──────────────────────────────────────────
	upstream := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		upstream = append(upstream, llm.Message{Role: m.Role, Content: m.Content})
	}
	upstream = append(upstream, llm.Message{Role: "user", Content: req.Content})

	client := llm.NewClient(s.Profile.AIBaseURL, config.APIKey)
	body, err := client.StreamChat(ctx, model, upstream)
	if err != nil {
		// Headers are committed; degrade to a terminal error event. The
		// provider's error body is logged here and never forwarded.
		var upstreamErr *llm.UpstreamServiceError
		if errors.As(err, &upstreamErr) {
			slog.Error("completion provider rejected request", "status", upstreamErr.StatusCode, "body", upstreamErr.Body)
		} else {
			slog.Error("failed to open completion stream", "err", err)
		}
		emit(streamEvent{Type: "error", Error: "AI service call failed"})
		return nil
	}
	defer body.Close()

	// ── 7. Pump loop ─────────────────────────────────────────────────────────
	// Each upstream record is demultiplexed and pushed before the next is
	// read, so client backpressure slows upstream consumption.
	state := &llm.StreamState{}
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			// Client disconnected: stop reading (and paying for) upstream
			// tokens. No finalization, no further events.
			slog.Info("chat stream cancelled by client", "session", sess.UID)
			return nil
		default:
		}

		events, done := state.ProcessRecord(scanner.Text())
		for _, ev := range events {
			emit(streamEvent{Type: string(ev.Type), Content: ev.Content})
		}
		if done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			slog.Info("chat stream cancelled by client", "session", sess.UID)
			return nil
		}
		slog.Error("upstream stream read failed", "session", sess.UID, "err", err)
		emit(streamEvent{Type: "error", Error: "stream transfer failed"})
		return nil
	}

	// ── 8. Finalize, then signal completion ──────────────────────────────────
	// The stream ended naturally; this is the only transition that persists.
	assistantMsg, err := s.finalizeChatExchange(ctx, sess, user.ID, model, req.Content, len(history), state)
	if err != nil {
		slog.Error("failed to finalize chat exchange", "session", sess.UID, "err", err)
		emit(streamEvent{Type: "error", Error: "failed to persist reply"})
		return nil
	}
	assistantResp := toMessageResponse(assistantMsg)
	emit(streamEvent{Type: "done", Message: &assistantResp})
	return nil
}

// finalizeChatExchange runs exactly once per completed stream: it persists
// the assistant turn, appends the token-usage ledger entry, and refreshes
// session metadata. The returned message is what the terminal done event
// carries, so everything here happens before that event is written.
func (s *APIV1Service) finalizeChatExchange(
	ctx context.Context,
	sess *store.AIChatSession,
	userID int32,
	model string,
	userContent string,
	priorMessages int,
	state *llm.StreamState,
) (*store.AIChatMessage, error) {
	answer := state.Answer()
	if answer == "" {
		answer = emptyAnswerFallback
	}
	msg, err := s.Store.CreateAIChatMessage(ctx, &store.CreateAIChatMessage{
		SessionID:  sess.ID,
		CreatorID:  userID,
		Role:       "assistant",
		Content:    answer,
		Model:      model,
		TokenCount: state.TotalTokens(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist assistant message")
	}

	if total := state.TotalTokens(); total > 0 {
		// The streaming path only reports the cumulative total; the
		// prompt/completion split stays zero.
		if _, err := s.Store.CreateTokenUsage(ctx, &store.TokenUsage{
			CreatorID:   userID,
			Model:       model,
			TotalTokens: total,
		}); err != nil {
			slog.Warn("failed to record token usage", "session", sess.UID, "err", err)
		}
	}

	update := &store.UpdateAIChatSession{UID: sess.UID}
	if priorMessages == 0 && sess.Title == store.DefaultSessionTitle {
		title := deriveSessionTitle(userContent)
		update.Title = &title
	}
	if _, err := s.Store.UpdateAIChatSession(ctx, update); err != nil {
		slog.Warn("failed to update session", "session", sess.UID, "err", err)
	}
	return msg, nil
}

// deriveSessionTitle shortens the first user message into a session title.
func deriveSessionTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
