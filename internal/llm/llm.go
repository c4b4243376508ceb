// Package llm defines the completion-backend contract the tested agent calls
// each turn, and its OpenAI-compatible implementation.
package llm

import (
	"context"

	"github.com/a2abench/a2abench/internal/chat"
)

// Options are the per-call completion controls.
type Options struct {
	Model       string
	Temperature float32
}

// Completion is one assistant turn from the backend. Failures are reported
// through the error return, never raised through the wire; callers branch
// explicitly to build a fallback text turn.
type Completion struct {
	Content          string
	ToolCalls        []chat.ToolCall
	ReasoningContent string
}

// Backend produces one assistant message for a history plus tool catalogue.
type Backend interface {
	Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts Options) (*Completion, error)
}

// BackendFunc adapts a function to the Backend interface. Used by tests.
type BackendFunc func(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts Options) (*Completion, error)

func (f BackendFunc) Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts Options) (*Completion, error) {
	return f(ctx, messages, tools, opts)
}
