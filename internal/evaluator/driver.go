package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/a2abench/a2abench/internal/chat"
	"github.com/a2abench/a2abench/internal/score"
)

// TaskArgs selects which tasks a driver run covers.
type TaskArgs struct {
	Category  score.Category
	Split     string
	NumTasks  int
	TaskIDs   []string
	NumTrials int
	Config    map[string]any
}

// Driver is the benchmark execution engine contract. A driver run is
// long-running and synchronous internally; the evaluator dispatches it off
// the conversation-handling path. checkpointPath names a scratch file the
// driver may use to persist partial progress.
type Driver interface {
	Run(ctx context.Context, args TaskArgs, checkpointPath string, factory AgentFactory) ([]score.EnvRunResult, error)
}

// scriptedTask is one declarative task read from scenario config. The agent
// passes by naming the expected tool, or by answering with the expected
// substring, or both in sequence when the task supplies a tool result.
type scriptedTask struct {
	ID              string
	Category        score.Category
	System          string
	Prompt          string
	Tools           []chat.ToolSpec
	ExpectTool      string
	ToolResult      string
	ExpectSubstring string
}

// ScriptedDriver runs tasks declared inline in the scenario config. It is the
// built-in driver: enough to exercise the full conversation loop against a
// live tested agent without an external benchmark engine.
type ScriptedDriver struct{}

func (ScriptedDriver) Run(ctx context.Context, args TaskArgs, checkpointPath string, factory AgentFactory) ([]score.EnvRunResult, error) {
	tasks, err := scriptedTasks(args.Config, args.Category)
	if err != nil {
		return nil, err
	}
	if len(args.TaskIDs) > 0 {
		tasks = filterTasks(tasks, args.TaskIDs)
	}
	if args.NumTasks > 0 && args.NumTasks < len(tasks) {
		tasks = tasks[:args.NumTasks]
	}
	trials := args.NumTrials
	if trials < 1 {
		trials = 1
	}

	var results []score.EnvRunResult
	for _, task := range tasks {
		for trial := 0; trial < trials; trial++ {
			result, err := runScriptedTask(ctx, task, trial, factory)
			if err != nil {
				return results, err
			}
			results = append(results, result)
		}
	}
	return results, nil
}

func runScriptedTask(ctx context.Context, task scriptedTask, trial int, factory AgentFactory) (score.EnvRunResult, error) {
	agent := factory()
	defer agent.Cancel(context.Background())

	state := agent.InitState(task.System, task.Prompt)
	reply, err := agent.NextMessage(ctx, state, task.Tools)
	if err != nil {
		return score.EnvRunResult{}, err
	}
	state = append(state, reply)

	reward := 0.0
	info := map[string]any{}
	calledExpected := task.ExpectTool != "" && hasToolCall(reply, task.ExpectTool)
	if calledExpected && task.ToolResult != "" {
		// Feed the scripted result back and judge the follow-up answer.
		var callID string
		for _, tc := range reply.ToolCalls {
			if tc.Name == task.ExpectTool {
				callID = tc.ID
				break
			}
		}
		followUp, err := agent.SendToolResults(ctx, []chat.ToolResult{{
			ToolName:   task.ExpectTool,
			Content:    task.ToolResult,
			ToolCallID: callID,
		}})
		if err != nil {
			return score.EnvRunResult{}, err
		}
		state = append(state, followUp)
		reply = followUp
	}

	switch {
	case task.ExpectSubstring != "" && strings.Contains(reply.Content, task.ExpectSubstring):
		reward = 1.0
	case task.ExpectSubstring == "" && calledExpected:
		reward = 1.0
	default:
		info["failure"] = "expected outcome not observed"
	}

	return score.EnvRunResult{
		TaskID:     task.ID,
		Category:   task.Category,
		Trial:      trial,
		Reward:     reward,
		Info:       info,
		Trajectory: state,
	}, nil
}

func hasToolCall(msg chat.Message, name string) bool {
	for _, tc := range msg.ToolCalls {
		if tc.Name == name {
			return true
		}
	}
	return false
}

// scriptedTasks decodes [[config.tasks]] entries for one category.
func scriptedTasks(config map[string]any, category score.Category) ([]scriptedTask, error) {
	raw, ok := config["tasks"]
	if !ok {
		return nil, nil
	}
	entries, ok := raw.([]map[string]any)
	if !ok {
		// TOML decoders may hand back []any for arrays of tables.
		anyEntries, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("config tasks: unexpected type %T", raw)
		}
		for _, e := range anyEntries {
			if m, ok := e.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	}
	var tasks []scriptedTask
	for i, entry := range entries {
		task := scriptedTask{
			ID:              stringOr(entry["id"], fmt.Sprintf("task_%d", i)),
			Category:        score.Category(stringOr(entry["category"], string(score.CategoryBase))),
			System:          stringOr(entry["system"], ""),
			Prompt:          stringOr(entry["prompt"], ""),
			ExpectTool:      stringOr(entry["expect_tool"], ""),
			ToolResult:      stringOr(entry["tool_result"], ""),
			ExpectSubstring: stringOr(entry["expect_substring"], ""),
		}
		if task.Category != category {
			continue
		}
		if task.Prompt == "" {
			return nil, fmt.Errorf("config tasks[%d]: prompt is required", i)
		}
		if raw, ok := entry["tools"].([]any); ok {
			for _, t := range raw {
				if spec, ok := t.(map[string]any); ok {
					task.Tools = append(task.Tools, chat.ToolSpec(spec))
				}
			}
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func filterTasks(tasks []scriptedTask, ids []string) []scriptedTask {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []scriptedTask
	for _, task := range tasks {
		if want[task.ID] {
			out = append(out, task)
		}
	}
	return out
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
