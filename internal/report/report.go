// Package report persists evaluation results and renders comparison reports
// across saved runs.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const resultsEnvVar = "A2ABENCH_RESULTS"

// Result is the artifact saved after one evaluation run.
type Result struct {
	Scenario   string                    `json:"scenario"`
	FinishedAt time.Time                 `json:"finished_at"`
	TimeUsed   float64                   `json:"time_used"`
	Score      float64                   `json:"score"`
	MaxScore   float64                   `json:"max_score"`
	PassRate   float64                   `json:"pass_rate"`
	PassPowerK map[string]float64        `json:"pass_power_k_scores,omitempty"`
	PassAtK    map[string]float64        `json:"pass_at_k_scores,omitempty"`
	Categories map[string]CategoryResult `json:"per_category,omitempty"`
}

// CategoryResult is one category's slice of the run outcome.
type CategoryResult struct {
	TotalReward float64            `json:"total_reward"`
	TaskCount   int                `json:"task_count"`
	PassRate    float64            `json:"pass_rate"`
	TaskRewards map[string]float64 `json:"task_rewards,omitempty"`
	Detailed    []TaskDetail       `json:"detailed_results,omitempty"`
}

// TaskDetail is one trial's record inside a saved artifact.
type TaskDetail struct {
	TaskID     string           `json:"task_id"`
	Trial      int              `json:"trial"`
	Reward     float64          `json:"reward"`
	RewardInfo map[string]any   `json:"reward_info,omitempty"`
	Trajectory []map[string]any `json:"trajectory,omitempty"`
}

// FromData builds a Result from the structured score payload an evaluator
// returns on the wire. The scenario path is reduced to its base name so runs
// of the same scenario group together regardless of where it was loaded from.
// Unknown keys are ignored; missing keys zero.
func FromData(scenario string, data map[string]any) (Result, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Result{}, fmt.Errorf("encode result data: %w", err)
	}
	res := Result{Scenario: sanitizeName(scenario), FinishedAt: time.Now().UTC()}
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("decode result data: %w", err)
	}
	return res, nil
}

// ResultsDir resolves where run artifacts live: the explicit override, then
// $A2ABENCH_RESULTS, then ./results.
func ResultsDir(override string) string {
	if override != "" {
		return override
	}
	if dir := os.Getenv(resultsEnvVar); dir != "" {
		return dir
	}
	return "results"
}

// Save writes the result as a timestamped JSON file under dir and returns the
// path.
func Save(dir string, res Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.result.json",
		sanitizeName(res.Scenario), res.FinishedAt.Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "run"
	}
	s = strings.TrimSuffix(filepath.Base(s), filepath.Ext(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Row is one aggregated line of the comparison report: all saved runs of one
// scenario.
type Row struct {
	Scenario    string
	Count       int
	AvgScore    float64
	AvgMaxScore float64
	AvgPassRate float64
	AvgTime     float64
	LastRun     time.Time
}

type Report struct {
	Rows []Row
}

// Options filter which saved results enter the report.
type Options struct {
	ResultsDir string
	Scenarios  []string
	After      *time.Time
}

// Run loads every saved result under the results directory and aggregates
// them per scenario.
func Run(opts Options) (*Report, error) {
	dir := ResultsDir(opts.ResultsDir)
	entries, err := loadResults(dir)
	if err != nil {
		return nil, err
	}

	scenarioSet := sliceToSet(opts.Scenarios)
	grouped := map[string][]Result{}
	for _, e := range entries {
		if scenarioSet != nil && !scenarioSet[e.Scenario] {
			continue
		}
		if opts.After != nil && e.FinishedAt.Before(*opts.After) {
			continue
		}
		grouped[e.Scenario] = append(grouped[e.Scenario], e)
	}

	rows := make([]Row, 0, len(grouped))
	for name, group := range grouped {
		row := Row{Scenario: name, Count: len(group)}
		for _, e := range group {
			row.AvgScore += e.Score
			row.AvgMaxScore += e.MaxScore
			row.AvgPassRate += e.PassRate
			row.AvgTime += e.TimeUsed
			if e.FinishedAt.After(row.LastRun) {
				row.LastRun = e.FinishedAt
			}
		}
		n := float64(len(group))
		row.AvgScore /= n
		row.AvgMaxScore /= n
		row.AvgPassRate /= n
		row.AvgTime /= n
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvgPassRate != rows[j].AvgPassRate {
			return rows[i].AvgPassRate > rows[j].AvgPassRate
		}
		return rows[i].Scenario < rows[j].Scenario
	})
	return &Report{Rows: rows}, nil
}

func (r *Report) WriteCSV(w io.Writer) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	cw := csv.NewWriter(w)
	header := []string{"scenario", "runs", "avg_score", "avg_max_score", "avg_pass_rate", "avg_time", "last_run"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{
			row.Scenario,
			strconv.Itoa(row.Count),
			formatFloat(row.AvgScore),
			formatFloat(row.AvgMaxScore),
			formatFloat(row.AvgPassRate),
			formatFloat(row.AvgTime),
			row.LastRun.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func loadResults(dir string) ([]Result, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Result
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".result.json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var res Result
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if res.FinishedAt.IsZero() {
			if info, err := os.Stat(path); err == nil {
				res.FinishedAt = info.ModTime()
			}
		}
		if res.Scenario == "" {
			res.Scenario = strings.TrimSuffix(d.Name(), ".result.json")
		}
		out = append(out, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sliceToSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.TrimSpace(item)] = true
	}
	return set
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
