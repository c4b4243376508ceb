// Package score folds raw per-trial benchmark results into pass^k / pass@k
// metrics and a human-readable summary.
package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/a2abench/a2abench/internal/chat"
)

// Category is a benchmark task category.
type Category string

const (
	CategoryBase           Category = "base"
	CategoryHallucination  Category = "hallucination"
	CategoryDisambiguation Category = "disambiguation"
)

// Categories is the display ordering.
var Categories = []Category{CategoryBase, CategoryHallucination, CategoryDisambiguation}

// EnvRunResult is one completed trial of one task, produced by the benchmark
// driver and consumed read-only here.
type EnvRunResult struct {
	TaskID     string
	Category   Category
	Trial      int
	Reward     float64
	Info       map[string]any
	Trajectory []chat.Message
}

// TaskScore is one trial's outcome, kept in driver order so summaries and
// saved artifacts can show which tasks passed.
type TaskScore struct {
	TaskID     string
	Trial      int
	Reward     float64
	Passed     bool
	Info       map[string]any
	Trajectory []chat.Message
}

// CategoryScore is the per-category slice of an aggregate.
type CategoryScore struct {
	TotalReward float64
	TaskCount   int
	PassRate    float64
	PassPowerK  map[int]float64
	PassAtK     map[int]float64
	Tasks       []TaskScore
}

// Aggregate is the full run outcome. Recomputed each run, never persisted.
type Aggregate struct {
	TotalReward float64
	TaskCount   int
	PassRate    float64
	MaxTrials   int
	PassPowerK  map[int]float64
	PassAtK     map[int]float64
	PerCategory map[Category]CategoryScore
}

// Compute aggregates results grouped by category.
//
// Totals (reward sum, task count, pass rate) are computed over the union of
// all categories. The per-k scores are instead the unweighted mean of the
// per-category scores, over categories that have at least one result. An
// empty category is excluded from both numerator and divisor, not counted as
// zero.
func Compute(byCategory map[Category][]EnvRunResult) Aggregate {
	agg := Aggregate{
		PassPowerK:  map[int]float64{},
		PassAtK:     map[int]float64{},
		PerCategory: map[Category]CategoryScore{},
		MaxTrials:   1,
	}

	type catMetrics struct {
		powerK map[int]float64
		atK    map[int]float64
	}
	metricsByCat := map[Category]catMetrics{}

	for cat, results := range byCategory {
		if len(results) == 0 {
			continue
		}
		cs := CategoryScore{
			TaskCount:  len(results),
			PassPowerK: map[int]float64{},
			PassAtK:    map[int]float64{},
		}
		for _, r := range results {
			cs.TotalReward += r.Reward
			cs.Tasks = append(cs.Tasks, TaskScore{
				TaskID:     r.TaskID,
				Trial:      r.Trial,
				Reward:     r.Reward,
				Passed:     r.Reward >= passThreshold,
				Info:       r.Info,
				Trajectory: r.Trajectory,
			})
		}
		cs.PassRate = cs.TotalReward / float64(cs.TaskCount) * 100

		organized := organizeByTaskAndTrial(results)
		catTrials := maxTrialCount(organized)
		if catTrials > agg.MaxTrials {
			agg.MaxTrials = catTrials
		}
		for k := 1; k <= catTrials; k++ {
			cs.PassPowerK[k] = passPowerK(organized, k)
			cs.PassAtK[k] = passAtK(organized, k)
		}
		metricsByCat[cat] = catMetrics{powerK: cs.PassPowerK, atK: cs.PassAtK}

		agg.TotalReward += cs.TotalReward
		agg.TaskCount += cs.TaskCount
		agg.PerCategory[cat] = cs
	}

	if agg.TaskCount > 0 {
		agg.PassRate = agg.TotalReward / float64(agg.TaskCount) * 100
	}

	numCats := len(metricsByCat)
	if numCats == 0 {
		return agg
	}
	for k := 1; k <= agg.MaxTrials; k++ {
		var powerSum, atSum float64
		for _, m := range metricsByCat {
			powerSum += m.powerK[k]
			atSum += m.atK[k]
		}
		agg.PassPowerK[k] = powerSum / float64(numCats)
		agg.PassAtK[k] = atSum / float64(numCats)
	}
	return agg
}

// organizeByTaskAndTrial maps task id → per-trial rewards.
func organizeByTaskAndTrial(results []EnvRunResult) map[string][]float64 {
	byTask := map[string]map[int]float64{}
	for _, r := range results {
		trials, ok := byTask[r.TaskID]
		if !ok {
			trials = map[int]float64{}
			byTask[r.TaskID] = trials
		}
		trials[r.Trial] = r.Reward
	}
	out := map[string][]float64{}
	for taskID, trials := range byTask {
		keys := make([]int, 0, len(trials))
		for trial := range trials {
			keys = append(keys, trial)
		}
		sort.Ints(keys)
		rewards := make([]float64, 0, len(keys))
		for _, trial := range keys {
			rewards = append(rewards, trials[trial])
		}
		out[taskID] = rewards
	}
	return out
}

func maxTrialCount(organized map[string][]float64) int {
	max := 1
	for _, trials := range organized {
		if len(trials) > max {
			max = len(trials)
		}
	}
	return max
}

// Summary renders the aggregate the way run logs and artifacts display it.
func Summary(agg Aggregate, timeUsed float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluation Results\n")
	fmt.Fprintf(&b, "Tasks: %d\n", agg.TaskCount)
	fmt.Fprintf(&b, "Overall Pass Rate: %.1f%% (%.1f/%d)\n", agg.PassRate, agg.TotalReward, agg.TaskCount)
	fmt.Fprintf(&b, "Time: %.1fs\n\nPass Scores:\n", timeUsed)
	for k := 1; k <= agg.MaxTrials; k++ {
		fmt.Fprintf(&b, "  Pass^%d: %.1f%%  |  Pass@%d: %.1f%%\n",
			k, agg.PassPowerK[k]*100, k, agg.PassAtK[k]*100)
	}
	b.WriteString("\nTask Results by Category:\n")
	first := true
	for _, cat := range Categories {
		cs, ok := agg.PerCategory[cat]
		if !ok {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		fmt.Fprintf(&b, "  %s: %.1f%% (%.1f/%d)\n",
			titleCase(string(cat)), cs.PassRate, cs.TotalReward, cs.TaskCount)
		for _, ts := range cs.Tasks {
			mark := "✗"
			if ts.Passed {
				mark = "✓"
			}
			fmt.Fprintf(&b, "    Task %s: %s (%.2f)\n", ts.TaskID, mark, ts.Reward)
		}
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
