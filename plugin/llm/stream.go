package llm

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"

	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// EventType classifies a normalized downstream event produced by the
// demultiplexer.
type EventType string

const (
	// EventContent carries one incremental slice of visible answer text.
	EventContent EventType = "content"
	// EventThinking carries the full text of a reasoning segment, emitted
	// once when its closing tag is seen.
	EventThinking EventType = "thinking"
)

// Event is one normalized event ready to be pushed to the client.
type Event struct {
	Type    EventType
	Content string
}

// StreamState accumulates the result of one in-flight chat exchange. It is
// owned by a single request and never shared.
//
// Thinking segments are delimited by <think>/</think> tags that are assumed
// to arrive whole within a single delta. A tag split across two deltas is
// passed through as plain answer text; see the module design notes.
type StreamState struct {
	answer      strings.Builder
	thinking    strings.Builder
	inThinking  bool
	totalTokens int32
}

// Answer returns the visible answer text accumulated so far.
func (st *StreamState) Answer() string { return st.answer.String() }

// TotalTokens returns the last cumulative total reported by the provider.
func (st *StreamState) TotalTokens() int32 { return st.totalTokens }

// streamRecord mirrors the subset of the provider's per-line JSON payload
// that the relay consumes.
type streamRecord struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int32 `json:"total_tokens"`
	} `json:"usage"`
}

// ProcessRecord consumes one raw line of the upstream event stream and
// advances the state. It returns the normalized events the line produced
// and whether the terminator sentinel was seen.
//
// Lines without the event-record prefix are ignored. A line whose payload
// fails to parse is logged and skipped; one garbled record never aborts
// the stream.
func (st *StreamState) ProcessRecord(line string) ([]Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	data := strings.TrimPrefix(line, dataPrefix)
	if data == doneSentinel {
		return nil, true
	}

	var record streamRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		slog.Warn("skipping malformed stream record", "err", err)
		return nil, false
	}

	var events []Event
	if len(record.Choices) > 0 {
		if delta := record.Choices[0].Delta.Content; delta != "" {
			events = st.processDelta(delta)
		}
	}
	// Cumulative totals: the provider repeats the running sum, so the last
	// value observed wins.
	if record.Usage != nil {
		st.totalTokens = record.Usage.TotalTokens
	}
	return events, false
}

// processDelta routes one content delta between the answer and the current
// thinking segment.
func (st *StreamState) processDelta(delta string) []Event {
	switch {
	case !st.inThinking && strings.Contains(delta, thinkOpenTag):
		before, after, _ := strings.Cut(delta, thinkOpenTag)
		st.inThinking = true
		st.thinking.Reset()
		st.thinking.WriteString(after)
		if before != "" {
			st.answer.WriteString(before)
			return []Event{{Type: EventContent, Content: before}}
		}
		return nil

	case st.inThinking && strings.Contains(delta, thinkCloseTag):
		before, after, _ := strings.Cut(delta, thinkCloseTag)
		st.thinking.WriteString(before)
		st.inThinking = false
		events := []Event{{Type: EventThinking, Content: st.thinking.String()}}
		if after != "" {
			st.answer.WriteString(after)
			events = append(events, Event{Type: EventContent, Content: after})
		}
		return events

	case st.inThinking:
		// Partial reasoning is held back until the segment closes.
		st.thinking.WriteString(delta)
		return nil

	default:
		st.answer.WriteString(delta)
		return []Event{{Type: EventContent, Content: delta}}
	}
}
