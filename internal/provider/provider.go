// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package provider defines the language-model endpoint boundary. The model
// is untrusted: it may return malformed, partial or tool-less responses,
// and adapters only normalize transport — all protocol handling lives in
// the agent package.
package provider

import (
	"context"
	"strings"
)

// Provider is the capability-typed interface for LLM backends. The backend
// is chosen once at construction; there is no per-call dynamic dispatch.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	// ModelVersion identifies the concrete model for audit fields on
	// persisted results.
	ModelVersion() string
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Close() error
}

// Embedder is the optional embedding capability used by the similar-case
// index. Backends that cannot embed simply do not implement it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ChatRequest represents one model invocation: the full ordered
// conversation, the system instruction and the tool catalog.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	Options      ChatOptions
}

// ChatOptions contains model configuration.
type ChatOptions struct {
	Temperature  *float32
	MaxTokens    int
	// JSONResponse hints the backend to emit structured output where the
	// API supports a response-format parameter.
	JSONResponse bool
}

// Message is one conversation turn.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCallID string
	ToolName   string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
)

// ToolDefinition describes one registry tool offered to the model.
// InputSchema is a full JSON Schema object ("type"/"properties"/"required").
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type     EventType
	Text     string
	ToolCall *ToolCall
	Usage    *Usage
	Error    string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeToolCall  EventType = "tool_call"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// ToolCall is a tool invocation emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is one fully collected model turn.
type Response struct {
	Text      string
	ToolCalls []*ToolCall
	Usage     *Usage
}

// Collect drains a chat event stream into a single Response. The
// orchestrator is strictly sequential within a run, so each call is awaited
// in full before the next decision is made. A fatal stream error discards
// partial output.
func Collect(eventCh <-chan ChatEvent) (*Response, error) {
	var buf strings.Builder
	var resp Response
	var streamErr string

	for ev := range eventCh {
		switch ev.Type {
		case EventTypeTextDelta:
			buf.WriteString(ev.Text)
		case EventTypeToolCall:
			if ev.ToolCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, ev.ToolCall)
			}
		case EventTypeUsage:
			resp.Usage = ev.Usage
		case EventTypeDone:
			if ev.Usage != nil {
				resp.Usage = ev.Usage
			}
		case EventTypeError:
			streamErr = ev.Error
		}
	}

	if streamErr != "" {
		return nil, &StreamError{Message: streamErr}
	}

	resp.Text = buf.String()
	return &resp, nil
}

// StreamError is a transport failure surfaced mid-stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }
