package chat

import (
	"encoding/json"
	"strings"

	"github.com/a2abench/a2abench/internal/a2a"
)

const (
	systemPrefix  = "System:"
	userSeparator = "\n\nUser:"
)

// Inbound is the decoded form of one inbound wire message.
type Inbound struct {
	// SystemText is set when the text segment carried a combined
	// "System: …\n\nUser: …" prompt.
	SystemText string
	// UserText is the user portion of the turn, empty when the message only
	// carried tool results.
	UserText string
	// Tools, when non-nil, replaces the conversation's tool catalogue.
	Tools []ToolSpec
	// ToolResults is the batch routed to the matcher instead of being
	// appended as a plain user turn.
	ToolResults []ToolResult
}

// DecodeInbound converts the wire parts of one inbound message. Text is split
// into system and user halves when it matches the combined-prompt pattern; a
// data segment with a tools field replaces the catalogue; a data segment with
// tool_results becomes the result batch. When neither text nor tool results
// were found, the merged text of all parts is the fallback user input.
func DecodeInbound(parts []a2a.Part) Inbound {
	var in Inbound
	for _, part := range parts {
		switch part.Kind {
		case a2a.PartKindText:
			system, user, ok := splitSystemUser(part.Text)
			if ok {
				in.SystemText = system
				in.UserText = user
			} else {
				in.UserText = part.Text
			}
		case a2a.PartKindData:
			if raw, ok := part.Data["tools"]; ok {
				in.Tools = decodeTools(raw)
			}
			if raw, ok := part.Data["tool_results"]; ok {
				in.ToolResults = decodeToolResults(raw)
			}
		}
	}
	if in.UserText == "" && len(in.ToolResults) == 0 {
		in.UserText = a2a.MergeParts(parts)
	}
	return in
}

func splitSystemUser(text string) (system, user string, ok bool) {
	if !strings.Contains(text, systemPrefix) || !strings.Contains(text, userSeparator) {
		return "", "", false
	}
	head, tail, _ := strings.Cut(text, userSeparator)
	system = strings.TrimSpace(strings.Replace(head, systemPrefix, "", 1))
	user = strings.TrimSpace(tail)
	return system, user, true
}

func decodeTools(raw any) []ToolSpec {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	tools := make([]ToolSpec, 0, len(items))
	for _, item := range items {
		if spec, ok := item.(map[string]any); ok {
			tools = append(tools, ToolSpec(spec))
		}
	}
	return tools
}

func decodeToolResults(raw any) []ToolResult {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	results := make([]ToolResult, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var r ToolResult
		r.ToolName, _ = entry["tool_name"].(string)
		r.Content, _ = entry["content"].(string)
		r.ToolCallID, _ = entry["tool_call_id"].(string)
		results = append(results, r)
	}
	return results
}

// EncodeAssistant converts an assistant turn into wire parts: a text segment
// for literal content, a data segment listing requested tool calls, and a
// data segment with the provider reasoning payload. The wire format never
// carries zero segments, so an empty turn becomes one empty text segment.
func EncodeAssistant(msg Message) []a2a.Part {
	var parts []a2a.Part
	if msg.Content != "" {
		parts = append(parts, a2a.TextPart(msg.Content))
	}
	if len(msg.ToolCalls) > 0 {
		calls := make([]any, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			args := tc.Arguments
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, map[string]any{
				"tool_name": tc.Name,
				"arguments": args,
			})
		}
		parts = append(parts, a2a.DataPart(map[string]any{"tool_calls": calls}))
	}
	if msg.ReasoningContent != "" {
		parts = append(parts, a2a.DataPart(map[string]any{"reasoning_content": msg.ReasoningContent}))
	}
	if len(parts) == 0 {
		parts = append(parts, a2a.TextPart(""))
	}
	return parts
}

// DecodeAssistant is the inverse of EncodeAssistant: it rebuilds an assistant
// message from wire parts, used by the evaluator side when parsing the tested
// agent's reply. Tool-call ids are not carried on the wire; newID assigns
// them.
func DecodeAssistant(parts []a2a.Part, newID func(name string, args map[string]any) string) Message {
	msg := Message{Role: RoleAssistant}
	for _, part := range parts {
		switch part.Kind {
		case a2a.PartKindText:
			msg.Content = part.Text
		case a2a.PartKindData:
			if raw, ok := part.Data["tool_calls"]; ok {
				msg.ToolCalls = append(msg.ToolCalls, decodeToolCalls(raw, newID)...)
			}
			if reasoning, ok := part.Data["reasoning_content"].(string); ok {
				msg.ReasoningContent = reasoning
			}
		}
	}
	return msg
}

func decodeToolCalls(raw any, newID func(name string, args map[string]any) string) []ToolCall {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var calls []ToolCall
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["tool_name"].(string)
		args, _ := entry["arguments"].(map[string]any)
		calls = append(calls, ToolCall{
			ID:        newID(name, args),
			Name:      name,
			Arguments: args,
		})
	}
	return calls
}

// MarshalArguments renders tool-call arguments as the JSON string form used
// by completion backends.
func MarshalArguments(args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
