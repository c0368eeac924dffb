// Package llm relays streaming chat completions from an OpenAI-compatible
// provider and demultiplexes the incremental event stream.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrStreamUnavailable is returned when the provider accepts the request
// but yields no readable body to stream from.
var ErrStreamUnavailable = errors.New("upstream returned no readable stream")

// UpstreamServiceError is a non-2xx reply from the completion provider.
// Body is kept for server-side logging and must never be forwarded to the
// client verbatim.
type UpstreamServiceError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream service error: status %d", e.StatusCode)
}

// Message is one turn of conversation history sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client opens streaming completion requests against an OpenAI-compatible
// chat endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the given endpoint and bearer credential.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// StreamChat opens a single streaming completion request and returns the
// raw event-stream body. A single attempt is made per call: retrying here
// could double-bill the tokens of a request that already ran upstream, so
// failures are surfaced to the caller instead.
func (c *Client) StreamChat(ctx context.Context, model string, messages []Message) (io.ReadCloser, error) {
	bodyBytes, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call completion provider")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &UpstreamServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrStreamUnavailable
	}
	return resp.Body, nil
}
