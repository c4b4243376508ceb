// Package evaluator implements the green agent: it receives an evaluation
// request naming the tested agent, drives the benchmark against it through a
// remote-agent proxy, and reports aggregated scores.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/a2abench/a2abench/internal/chat"
	"github.com/a2abench/a2abench/internal/score"
)

// EvalRequest asks the green agent to evaluate the participants. Participants
// maps role names to agent URLs.
type EvalRequest struct {
	Participants map[string]string
	Config       map[string]any
}

// Validate checks the request against the roles and config keys this
// evaluator requires.
func (r EvalRequest) Validate(requiredRoles, requiredKeys []string) error {
	for _, role := range requiredRoles {
		if _, ok := r.Participants[role]; !ok {
			return fmt.Errorf("missing role %q", role)
		}
	}
	for _, key := range requiredKeys {
		if _, ok := r.Config[key]; !ok {
			return fmt.Errorf("missing config key %q", key)
		}
	}
	return nil
}

// Executor serves evaluation requests over the wire protocol. The role under
// test is "agent".
type Executor struct {
	driver Driver
	log    *slog.Logger
}

func NewExecutor(driver Driver, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if driver == nil {
		driver = ScriptedDriver{}
	}
	return &Executor{driver: driver, log: log}
}

// Execute handles one inbound message. A data part carrying eval_request
// starts an evaluation; the reply is the result artifact (summary text plus
// structured scores). Evaluation failures come back as a plain text turn.
func (e *Executor) Execute(ctx context.Context, contextID string, inbound a2a.Message) (a2a.Message, error) {
	req, err := decodeEvalRequest(inbound.Parts)
	if err != nil {
		return a2a.NewMessage(a2a.RoleAgent, []a2a.Part{
			a2a.TextPart(fmt.Sprintf("Invalid evaluation request: %v", err)),
		}, contextID), nil
	}
	if err := req.Validate([]string{"agent"}, nil); err != nil {
		return a2a.NewMessage(a2a.RoleAgent, []a2a.Part{
			a2a.TextPart(fmt.Sprintf("Invalid evaluation request: %v", err)),
		}, contextID), nil
	}

	parts, err := e.runEval(ctx, req)
	if err != nil {
		e.log.Error("evaluation failed", "error", err)
		parts = []a2a.Part{a2a.TextPart(fmt.Sprintf("Evaluation failed: %v", err))}
	}
	return a2a.NewMessage(a2a.RoleAgent, parts, contextID), nil
}

// Cancel is part of the executor contract; evaluation runs are bounded by the
// request context, so there is no per-conversation state to release.
func (e *Executor) Cancel(contextID string) {}

func (e *Executor) runEval(ctx context.Context, req EvalRequest) ([]a2a.Part, error) {
	agentURL := req.Participants["agent"]
	e.log.Info("starting evaluation", "agent_url", agentURL)
	started := time.Now()
	factory := NewRemoteAgentFactory(agentURL)

	byCategory := map[score.Category][]score.EnvRunResult{}
	for _, category := range score.Categories {
		args, configured := categoryArgs(req.Config, category)
		if !configured {
			e.log.Debug("skipping category", "category", category)
			continue
		}
		e.log.Info("running category", "category", category,
			"num_tasks", args.NumTasks, "num_trials", args.NumTrials)

		checkpoint := filepath.Join(os.TempDir(),
			fmt.Sprintf("a2abench_eval_%s_%s.json", category, args.Split))
		// A stale checkpoint from an earlier run would corrupt resume logic.
		_ = os.Remove(checkpoint)

		results, err := e.dispatchDriver(ctx, args, checkpoint, factory)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		byCategory[category] = results

		var reward float64
		for _, r := range results {
			reward += r.Reward
		}
		e.log.Info("completed category", "category", category,
			"tasks", len(results), "total_reward", reward)
	}

	agg := score.Compute(byCategory)
	timeUsed := time.Since(started).Seconds()
	summary := score.Summary(agg, timeUsed)
	return []a2a.Part{
		a2a.TextPart(summary),
		a2a.DataPart(resultData(agg, timeUsed)),
	}, nil
}

// dispatchDriver runs the benchmark engine on its own goroutine. The engine
// is synchronous internally and can run for minutes; keeping it off the
// request path means other conversations are never starved.
func (e *Executor) dispatchDriver(ctx context.Context, args TaskArgs, checkpoint string, factory AgentFactory) ([]score.EnvRunResult, error) {
	type outcome struct {
		results []score.EnvRunResult
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		results, err := e.driver.Run(ctx, args, checkpoint, factory)
		ch <- outcome{results: results, err: err}
	}()
	select {
	case out := <-ch:
		return out.results, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// categoryArgs reads the per-category task selection from config. A category
// runs only when its num_tasks or task_id_filter key is present.
func categoryArgs(config map[string]any, category score.Category) (TaskArgs, bool) {
	numKey := fmt.Sprintf("tasks_%s_num_tasks", category)
	filterKey := fmt.Sprintf("tasks_%s_task_id_filter", category)
	_, hasNum := config[numKey]
	_, hasFilter := config[filterKey]
	if !hasNum && !hasFilter {
		return TaskArgs{}, false
	}
	args := TaskArgs{
		Category:  category,
		Split:     stringOr(config["task_split"], "test"),
		NumTasks:  intOr(config[numKey], -1),
		NumTrials: intOr(config["num_trials"], 1),
		Config:    config,
	}
	if filter, ok := config[filterKey].([]any); ok {
		for _, id := range filter {
			if s, ok := id.(string); ok {
				args.TaskIDs = append(args.TaskIDs, s)
			}
		}
	}
	return args, true
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}

func decodeEvalRequest(parts []a2a.Part) (EvalRequest, error) {
	for _, part := range parts {
		if part.Kind != a2a.PartKindData {
			continue
		}
		raw, ok := part.Data["eval_request"].(map[string]any)
		if !ok {
			continue
		}
		req := EvalRequest{
			Participants: map[string]string{},
			Config:       map[string]any{},
		}
		if participants, ok := raw["participants"].(map[string]any); ok {
			for role, url := range participants {
				if s, ok := url.(string); ok {
					req.Participants[role] = s
				}
			}
		}
		if config, ok := raw["config"].(map[string]any); ok {
			req.Config = config
		}
		return req, nil
	}
	return EvalRequest{}, fmt.Errorf("no eval_request data part found")
}

func resultData(agg score.Aggregate, timeUsed float64) map[string]any {
	passPower := map[string]float64{}
	passAt := map[string]float64{}
	for k := 1; k <= agg.MaxTrials; k++ {
		passPower[fmt.Sprintf("Pass^%d", k)] = agg.PassPowerK[k]
		passAt[fmt.Sprintf("Pass@%d", k)] = agg.PassAtK[k]
	}
	perCategory := map[string]any{}
	for cat, cs := range agg.PerCategory {
		perCategory[string(cat)] = map[string]any{
			"total_reward":     cs.TotalReward,
			"task_count":       cs.TaskCount,
			"pass_rate":        cs.PassRate,
			"task_rewards":     taskRewards(cs.Tasks),
			"detailed_results": detailedResults(cs.Tasks),
		}
	}
	return map[string]any{
		"score":               agg.TotalReward,
		"max_score":           agg.TaskCount,
		"pass_rate":           agg.PassRate,
		"max_trials":          agg.MaxTrials,
		"pass_power_k_scores": passPower,
		"pass_at_k_scores":    passAt,
		"per_category":        perCategory,
		"time_used":           timeUsed,
	}
}

// taskRewards keys rewards by task id; repeated trials of a task overwrite
// earlier ones, leaving the last trial's reward.
func taskRewards(tasks []score.TaskScore) map[string]float64 {
	out := make(map[string]float64, len(tasks))
	for _, ts := range tasks {
		out[ts.TaskID] = ts.Reward
	}
	return out
}

func detailedResults(tasks []score.TaskScore) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, ts := range tasks {
		out = append(out, map[string]any{
			"task_id":     ts.TaskID,
			"trial":       ts.Trial,
			"reward":      ts.Reward,
			"reward_info": ts.Info,
			"trajectory":  trajectoryData(ts.Trajectory),
		})
	}
	return out
}

// trajectoryData renders a trial's conversation without the system prompt.
func trajectoryData(msgs []chat.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == chat.RoleSystem {
			continue
		}
		entry := map[string]any{
			"role":    m.Role,
			"content": m.Content,
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, map[string]any{
					"tool_name": tc.Name,
					"arguments": tc.Arguments,
				})
			}
			entry["tool_calls"] = calls
		}
		if m.ReasoningContent != "" {
			entry["reasoning_content"] = m.ReasoningContent
		}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
		}
		out = append(out, entry)
	}
	return out
}
