// Package chat holds per-conversation state for a tested agent: the message
// history, the announced tool catalogue, and the conversion between the wire
// parts representation and a flat chat-completion history.
package chat

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one pending tool invocation announced by an assistant turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one history entry, tagged by Role. Assistant entries may carry
// tool calls and a provider reasoning payload; tool entries answer a specific
// tool call from the immediately preceding assistant entry.
type Message struct {
	Role             string
	Content          string
	ToolCalls        []ToolCall
	ReasoningContent string
	ToolCallID       string
}

// SystemMessage builds a system history entry.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user history entry.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolMessage builds a tool-result history entry bound to callID.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}

// ToolSpec is one entry of the tool catalogue announced by the evaluator,
// kept opaque and forwarded to the completion backend as-is.
type ToolSpec map[string]any

// ToolResult is one inbound tool-execution result. ToolCallID is optional and
// the name is not guaranteed unique within a turn.
type ToolResult struct {
	ToolName   string
	Content    string
	ToolCallID string
}
