package chat

import "log/slog"

// MatchToolResults binds a batch of inbound tool results to the pending calls
// announced by the preceding assistant message.
//
// Calls are grouped by tool name into ordered buckets; each result consumes
// the first remaining call for its name (first-requested, first-resolved). A
// result carrying an explicit tool_call_id that matches a pending call
// consumes exactly that call. A result with no matching call is still
// emitted, bound to a synthetic "unknown_<name>" id, so the turn is never
// dropped. Output order follows result arrival order, not call issue order.
func MatchToolResults(pending []ToolCall, results []ToolResult, log *slog.Logger) []Message {
	if log == nil {
		log = slog.Default()
	}
	buckets := map[string][]ToolCall{}
	for _, call := range pending {
		buckets[call.Name] = append(buckets[call.Name], call)
	}

	out := make([]Message, 0, len(results))
	for _, result := range results {
		if result.ToolCallID != "" {
			if consumeByID(buckets, result.ToolCallID) {
				out = append(out, ToolMessage(result.ToolCallID, result.Content))
				continue
			}
		}
		bucket := buckets[result.ToolName]
		if len(bucket) > 0 {
			call := bucket[0]
			buckets[result.ToolName] = bucket[1:]
			out = append(out, ToolMessage(call.ID, result.Content))
			continue
		}
		syntheticID := "unknown_" + result.ToolName
		log.Warn("tool result has no matching pending call",
			"tool_name", result.ToolName, "synthetic_id", syntheticID)
		out = append(out, ToolMessage(syntheticID, result.Content))
	}
	return out
}

func consumeByID(buckets map[string][]ToolCall, id string) bool {
	for name, bucket := range buckets {
		for i, call := range bucket {
			if call.ID == id {
				buckets[name] = append(bucket[:i:i], bucket[i+1:]...)
				return true
			}
		}
	}
	return false
}

// BindLegacyText answers every pending call with the same raw text. This is
// the compatibility path for evaluators that reply to tool calls as plain
// text instead of structured tool_results.
func BindLegacyText(pending []ToolCall, text string) []Message {
	out := make([]Message, 0, len(pending))
	for _, call := range pending {
		out = append(out, ToolMessage(call.ID, text))
	}
	return out
}
