package chat_test

import (
	"testing"

	"github.com/a2abench/a2abench/internal/chat"
	"github.com/stretchr/testify/require"
)

func TestMatchToolResults_FirstRequestedFirstResolved(t *testing.T) {
	pending := []chat.ToolCall{
		{ID: "a", Name: "get_time"},
		{ID: "b", Name: "get_time"},
	}
	results := []chat.ToolResult{
		{ToolName: "get_time", Content: "r1"},
		{ToolName: "get_time", Content: "r2"},
	}
	out := chat.MatchToolResults(pending, results, nil)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ToolCallID)
	require.Equal(t, "r1", out[0].Content)
	require.Equal(t, "b", out[1].ToolCallID)
	require.Equal(t, "r2", out[1].Content)
}

func TestMatchToolResults_OutputFollowsArrivalOrder(t *testing.T) {
	pending := []chat.ToolCall{
		{ID: "a", Name: "get_time"},
		{ID: "b", Name: "get_weather"},
	}
	results := []chat.ToolResult{
		{ToolName: "get_weather", Content: "sunny"},
		{ToolName: "get_time", Content: "12:00"},
	}
	out := chat.MatchToolResults(pending, results, nil)
	require.Equal(t, "b", out[0].ToolCallID)
	require.Equal(t, "a", out[1].ToolCallID)
}

func TestMatchToolResults_ExplicitIDWins(t *testing.T) {
	pending := []chat.ToolCall{
		{ID: "a", Name: "get_time"},
		{ID: "b", Name: "get_time"},
	}
	results := []chat.ToolResult{
		{ToolName: "get_time", Content: "for b", ToolCallID: "b"},
		{ToolName: "get_time", Content: "for a"},
	}
	out := chat.MatchToolResults(pending, results, nil)
	require.Equal(t, "b", out[0].ToolCallID)
	require.Equal(t, "a", out[1].ToolCallID)
}

func TestMatchToolResults_UnknownNameGetsSyntheticID(t *testing.T) {
	pending := []chat.ToolCall{{ID: "a", Name: "get_time"}}
	results := []chat.ToolResult{{ToolName: "get_weather", Content: "sunny"}}

	out := chat.MatchToolResults(pending, results, nil)
	require.Len(t, out, 1)
	require.Equal(t, "unknown_get_weather", out[0].ToolCallID)
	require.Equal(t, "sunny", out[0].Content)
}

func TestMatchToolResults_StaleIDFallsBackToNameBucket(t *testing.T) {
	pending := []chat.ToolCall{{ID: "a", Name: "get_time"}}
	results := []chat.ToolResult{{ToolName: "get_time", Content: "12:00", ToolCallID: "gone"}}

	out := chat.MatchToolResults(pending, results, nil)
	require.Equal(t, "a", out[0].ToolCallID)
}

func TestBindLegacyText(t *testing.T) {
	pending := []chat.ToolCall{
		{ID: "a", Name: "get_time"},
		{ID: "b", Name: "get_weather"},
	}
	out := chat.BindLegacyText(pending, "raw reply")
	require.Len(t, out, 2)
	for i, msg := range out {
		require.Equal(t, chat.RoleTool, msg.Role)
		require.Equal(t, pending[i].ID, msg.ToolCallID)
		require.Equal(t, "raw reply", msg.Content)
	}
}
