// Package agent implements the tested (purple) agent: a conversation
// executor that decodes inbound wire turns, drives a completion backend, and
// encodes the assistant reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/a2abench/a2abench/internal/chat"
	"github.com/a2abench/a2abench/internal/llm"
)

// Executor serves conversation turns. One instance handles all conversations;
// per-conversation locking lives in the store's Conversation values.
type Executor struct {
	store   *chat.Store
	backend llm.Backend
	opts    llm.Options
	log     *slog.Logger
}

func NewExecutor(backend llm.Backend, opts llm.Options, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		store:   chat.NewStore(),
		backend: backend,
		opts:    opts,
		log:     log,
	}
}

// Execute handles one inbound turn for contextID and returns the assistant
// reply. Backend failures degrade to a plain error text turn so the remote
// peer's turn-taking loop is never broken.
func (e *Executor) Execute(ctx context.Context, contextID string, inbound a2a.Message) (a2a.Message, error) {
	conv := e.store.Get(contextID)
	conv.Lock()
	defer conv.Unlock()

	log := e.log.With("context", shortID(contextID))

	in := chat.DecodeInbound(inbound.Parts)
	if in.Tools != nil {
		conv.Tools = in.Tools
	}
	e.appendInbound(conv, in, log)

	log.Info("received turn",
		"turn", len(conv.Messages),
		"tool_results", len(in.ToolResults),
		"tools", len(conv.Tools))

	assistant := e.completeTurn(ctx, conv, log)
	conv.Messages = append(conv.Messages, assistant)

	parts := chat.EncodeAssistant(assistant)
	return a2a.NewMessage(a2a.RoleAgent, parts, contextID), nil
}

// appendInbound turns the decoded message into history entries. A batch of
// tool results resolves the preceding assistant turn's pending calls; plain
// text answering pending calls takes the legacy bind-all path; anything else
// is a user turn, with the system prompt recorded once on first sight.
func (e *Executor) appendInbound(conv *chat.Conversation, in chat.Inbound, log *slog.Logger) {
	pending := conv.LastAssistant()
	if pending != nil && len(pending.ToolCalls) > 0 {
		if len(in.ToolResults) > 0 {
			conv.Messages = append(conv.Messages, chat.MatchToolResults(pending.ToolCalls, in.ToolResults, log)...)
			return
		}
		conv.Messages = append(conv.Messages, chat.BindLegacyText(pending.ToolCalls, in.UserText)...)
		return
	}
	if in.SystemText != "" && !conv.HasSystem() {
		conv.Messages = append(conv.Messages, chat.SystemMessage(in.SystemText))
	}
	conv.Messages = append(conv.Messages, chat.UserMessage(in.UserText))
}

func (e *Executor) completeTurn(ctx context.Context, conv *chat.Conversation, log *slog.Logger) chat.Message {
	completion, err := e.backend.Complete(ctx, conv.Messages, conv.Tools, e.opts)
	if err != nil {
		log.Error("completion backend failed", "error", err)
		return chat.Message{
			Role:    chat.RoleAssistant,
			Content: fmt.Sprintf("Error processing request: %v", err),
		}
	}
	log.Info("completion received",
		"tool_calls", len(completion.ToolCalls),
		"content_len", len(completion.Content))
	return chat.Message{
		Role:             chat.RoleAssistant,
		Content:          completion.Content,
		ToolCalls:        completion.ToolCalls,
		ReasoningContent: completion.ReasoningContent,
	}
}

// Cancel stops accepting turns for contextID and releases its state. A backend
// call already in flight finishes against the detached state and is discarded.
func (e *Executor) Cancel(contextID string) {
	e.log.Info("canceling conversation", "context", shortID(contextID))
	e.store.Delete(contextID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
