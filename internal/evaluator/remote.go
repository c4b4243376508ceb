package evaluator

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/a2abench/a2abench/internal/chat"
)

// RemoteAgent drives the tested agent over the wire protocol as if it were a
// local policy: the first turn carries the combined system/user prompt plus
// the tool catalogue, later turns carry plain text or tool-result batches.
type RemoteAgent struct {
	url    string
	client *a2a.Client
	first  bool
}

// AgentFactory builds a fresh remote agent per benchmark task. Each agent
// gets its own client so conversation context ids never cross tasks.
type AgentFactory func() *RemoteAgent

// NewRemoteAgentFactory returns a factory for agents talking to agentURL.
func NewRemoteAgentFactory(agentURL string) AgentFactory {
	return func() *RemoteAgent {
		return &RemoteAgent{url: agentURL, client: a2a.NewClient(), first: true}
	}
}

// InitState seeds the conversation history for a task.
func (r *RemoteAgent) InitState(systemPrompt, initialObservation string) []chat.Message {
	r.first = true
	return []chat.Message{
		chat.SystemMessage(systemPrompt),
		chat.UserMessage(initialObservation),
	}
}

// NextMessage sends the latest state entry to the remote agent and parses the
// reply into an assistant message with synthesized tool-call ids.
func (r *RemoteAgent) NextMessage(ctx context.Context, state []chat.Message, tools []chat.ToolSpec) (chat.Message, error) {
	last := state[len(state)-1]
	var parts []a2a.Part
	if r.first {
		system := ""
		if state[0].Role == chat.RoleSystem {
			system = state[0].Content
		}
		prompt := last.Content
		if system != "" {
			prompt = fmt.Sprintf("System: %s\n\nUser: %s", system, last.Content)
		}
		parts = append(parts, a2a.TextPart(prompt))
		if len(tools) > 0 {
			specs := make([]any, 0, len(tools))
			for _, t := range tools {
				specs = append(specs, map[string]any(t))
			}
			parts = append(parts, a2a.DataPart(map[string]any{"tools": specs}))
		}
	} else {
		parts = append(parts, a2a.TextPart(last.Content))
	}

	newConversation := r.first
	r.first = false
	reply, err := r.client.SendParts(ctx, r.url, parts, newConversation)
	if err != nil {
		return chat.Message{}, fmt.Errorf("talk to agent %s: %w", r.url, err)
	}
	return chat.DecodeAssistant(reply.Parts, syntheticCallID), nil
}

// SendToolResults forwards a batch of executed tool results and returns the
// agent's next turn.
func (r *RemoteAgent) SendToolResults(ctx context.Context, results []chat.ToolResult) (chat.Message, error) {
	batch := make([]any, 0, len(results))
	for _, res := range results {
		entry := map[string]any{
			"tool_name": res.ToolName,
			"content":   res.Content,
		}
		if res.ToolCallID != "" {
			entry["tool_call_id"] = res.ToolCallID
		}
		batch = append(batch, entry)
	}
	parts := []a2a.Part{a2a.DataPart(map[string]any{"tool_results": batch})}
	reply, err := r.client.SendParts(ctx, r.url, parts, false)
	if err != nil {
		return chat.Message{}, fmt.Errorf("talk to agent %s: %w", r.url, err)
	}
	return chat.DecodeAssistant(reply.Parts, syntheticCallID), nil
}

// Cancel drops the remote conversation.
func (r *RemoteAgent) Cancel(ctx context.Context) error {
	return r.client.Cancel(ctx, r.url)
}

// syntheticCallID derives a stable id for a wire tool call, which carries no
// id of its own.
func syntheticCallID(name string, args map[string]any) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(chat.MarshalArguments(args)))
	return fmt.Sprintf("call_%08x", h.Sum32())
}
