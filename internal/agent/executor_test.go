package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/a2abench/a2abench/internal/agent"
	"github.com/a2abench/a2abench/internal/chat"
	"github.com/a2abench/a2abench/internal/llm"
	"github.com/stretchr/testify/require"
)

func textBackend(reply string) (llm.Backend, *[][]chat.Message) {
	var histories [][]chat.Message
	backend := llm.BackendFunc(func(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts llm.Options) (*llm.Completion, error) {
		snapshot := make([]chat.Message, len(messages))
		copy(snapshot, messages)
		histories = append(histories, snapshot)
		return &llm.Completion{Content: reply}, nil
	})
	return backend, &histories
}

func firstTurn(text string, tools []any) a2a.Message {
	parts := []a2a.Part{a2a.TextPart(text)}
	if tools != nil {
		parts = append(parts, a2a.DataPart(map[string]any{"tools": tools}))
	}
	return a2a.NewMessage(a2a.RoleUser, parts, "ctx-1")
}

func TestExecute_FirstTurnRecordsSystemOnce(t *testing.T) {
	backend, histories := textBackend("hello")
	exec := agent.NewExecutor(backend, llm.Options{Model: "m"}, nil)

	reply, err := exec.Execute(context.Background(), "ctx-1",
		firstTurn("System: be helpful\n\nUser: hi", nil))
	require.NoError(t, err)
	require.Equal(t, a2a.RoleAgent, reply.Role)
	require.Equal(t, "hello", reply.Parts[0].Text)

	_, err = exec.Execute(context.Background(), "ctx-1",
		firstTurn("System: be helpful\n\nUser: again", nil))
	require.NoError(t, err)

	second := (*histories)[1]
	systems := 0
	for _, m := range second {
		if m.Role == chat.RoleSystem {
			systems++
		}
	}
	require.Equal(t, 1, systems)
	// system, user, assistant, user
	require.Len(t, second, 4)
}

func TestExecute_ToolCallThenResults(t *testing.T) {
	calls := 0
	backend := llm.BackendFunc(func(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts llm.Options) (*llm.Completion, error) {
		calls++
		if calls == 1 {
			require.Len(t, tools, 1)
			return &llm.Completion{ToolCalls: []chat.ToolCall{
				{ID: "call_1", Name: "get_time", Arguments: map[string]any{"tz": "UTC"}},
			}}, nil
		}
		// Second turn: the tool result must be in history under call_1.
		last := messages[len(messages)-1]
		require.Equal(t, chat.RoleTool, last.Role)
		require.Equal(t, "call_1", last.ToolCallID)
		require.Equal(t, "12:00", last.Content)
		return &llm.Completion{Content: "it is noon"}, nil
	})
	exec := agent.NewExecutor(backend, llm.Options{}, nil)

	reply, err := exec.Execute(context.Background(), "ctx-1",
		firstTurn("System: s\n\nUser: what time?", []any{map[string]any{"name": "get_time"}}))
	require.NoError(t, err)
	require.Equal(t, "tool_calls", firstDataKey(t, reply.Parts))

	results := a2a.NewMessage(a2a.RoleUser, []a2a.Part{
		a2a.DataPart(map[string]any{"tool_results": []any{
			map[string]any{"tool_name": "get_time", "content": "12:00"},
		}}),
	}, "ctx-1")
	reply, err = exec.Execute(context.Background(), "ctx-1", results)
	require.NoError(t, err)
	require.Equal(t, "it is noon", reply.Parts[0].Text)
}

func TestExecute_LegacyTextAnswersPendingCalls(t *testing.T) {
	calls := 0
	backend := llm.BackendFunc(func(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts llm.Options) (*llm.Completion, error) {
		calls++
		if calls == 1 {
			return &llm.Completion{ToolCalls: []chat.ToolCall{
				{ID: "a", Name: "get_time"},
				{ID: "b", Name: "get_weather"},
			}}, nil
		}
		// Both pending calls were answered with the same raw text.
		require.Equal(t, "a", messages[len(messages)-2].ToolCallID)
		require.Equal(t, "b", messages[len(messages)-1].ToolCallID)
		require.Equal(t, messages[len(messages)-2].Content, messages[len(messages)-1].Content)
		return &llm.Completion{Content: "done"}, nil
	})
	exec := agent.NewExecutor(backend, llm.Options{}, nil)

	_, err := exec.Execute(context.Background(), "ctx-1", firstTurn("System: s\n\nUser: u", nil))
	require.NoError(t, err)
	reply, err := exec.Execute(context.Background(), "ctx-1",
		a2a.NewMessage(a2a.RoleUser, []a2a.Part{a2a.TextPart("here are both answers")}, "ctx-1"))
	require.NoError(t, err)
	require.Equal(t, "done", reply.Parts[0].Text)
}

func TestExecute_BackendFailureBecomesTextTurn(t *testing.T) {
	backend := llm.BackendFunc(func(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts llm.Options) (*llm.Completion, error) {
		return nil, errors.New("rate limited")
	})
	exec := agent.NewExecutor(backend, llm.Options{}, nil)

	reply, err := exec.Execute(context.Background(), "ctx-1", firstTurn("hi", nil))
	require.NoError(t, err)
	require.Equal(t, "Error processing request: rate limited", reply.Parts[0].Text)
}

func TestExecute_ConversationsAreIsolated(t *testing.T) {
	backend, histories := textBackend("ok")
	exec := agent.NewExecutor(backend, llm.Options{}, nil)

	_, err := exec.Execute(context.Background(), "ctx-1", firstTurn("from one", nil))
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), "ctx-2", firstTurn("from two", nil))
	require.NoError(t, err)

	require.Len(t, (*histories)[1], 1)
	require.Equal(t, "from two", (*histories)[1][0].Content)
}

func TestCancel_DropsHistory(t *testing.T) {
	backend, histories := textBackend("ok")
	exec := agent.NewExecutor(backend, llm.Options{}, nil)

	_, err := exec.Execute(context.Background(), "ctx-1", firstTurn("first", nil))
	require.NoError(t, err)
	exec.Cancel("ctx-1")
	_, err = exec.Execute(context.Background(), "ctx-1", firstTurn("fresh", nil))
	require.NoError(t, err)

	require.Len(t, (*histories)[1], 1)
	require.Equal(t, "fresh", (*histories)[1][0].Content)
}

func firstDataKey(t *testing.T, parts []a2a.Part) string {
	t.Helper()
	for _, p := range parts {
		if p.Kind == a2a.PartKindData {
			for k := range p.Data {
				return k
			}
		}
	}
	t.Fatal("no data part")
	return ""
}
