package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/a2abench/a2abench/internal/orchestrator"
	"github.com/a2abench/a2abench/internal/output"
	"github.com/a2abench/a2abench/internal/scenario"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalScenario = `
[green_agent]
endpoint = "http://localhost:9009"

[[participants]]
role = "agent"
endpoint = "http://localhost:9019"
`

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(errors.New("boom")))
	require.Equal(t, 7, ExitCode(&orchestrator.ExitError{Code: 7}))
	require.Equal(t, 1, ExitCode(&orchestrator.ExitError{Code: 0}))
}

func TestRunCommand_PassesFlags(t *testing.T) {
	var got orchestrator.Options
	orig := runScenario
	t.Cleanup(func() { runScenario = orig })
	runScenario = func(ctx context.Context, printer *output.Printer, log *slog.Logger, opts orchestrator.Options) error {
		got = opts
		return nil
	}

	cmd := newRunCmd()
	cmd.SetArgs([]string{"demo.toml", "--serve-only", "--show-logs", "--timeout", "5"})
	require.NoError(t, cmd.Execute())

	require.Equal(t, "demo.toml", got.ScenarioPath)
	require.True(t, got.ServeOnly)
	require.True(t, got.ShowLogs)
	require.False(t, got.EvaluateOnly)
	require.Equal(t, 5*time.Second, got.Timeout)
}

func TestRunCommand_InterruptIsCleanExit(t *testing.T) {
	orig := runScenario
	t.Cleanup(func() { runScenario = orig })
	runScenario = func(ctx context.Context, printer *output.Printer, log *slog.Logger, opts orchestrator.Options) error {
		return context.Canceled
	}

	cmd := newRunCmd()
	cmd.SetArgs([]string{"demo.toml"})
	require.NoError(t, cmd.Execute())
}

func TestValidateCommand(t *testing.T) {
	cmd := newValidateCmd()
	cmd.SetArgs([]string{writeScenario(t, minimalScenario)})
	require.NoError(t, cmd.Execute())

	cmd = newValidateCmd()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.toml")})
	require.Error(t, cmd.Execute())
}

func TestRunClient_SavesScoredResult(t *testing.T) {
	orig := sendEval
	t.Cleanup(func() { sendEval = orig })
	var gotURL string
	var gotParts []a2a.Part
	sendEval = func(ctx context.Context, greenURL string, parts []a2a.Part) (*a2a.Message, error) {
		gotURL = greenURL
		gotParts = parts
		reply := a2a.NewMessage(a2a.RoleAgent, []a2a.Part{
			a2a.TextPart("Evaluation Results"),
			a2a.DataPart(map[string]any{"score": 1.0, "max_score": 1, "pass_rate": 100.0}),
		}, "ctx-1")
		return &reply, nil
	}

	path := writeScenario(t, minimalScenario)
	sc, err := scenario.Load(path)
	require.NoError(t, err)

	resultsDir := t.TempDir()
	printer := output.NewPrinter(io.Discard)
	require.NoError(t, runClient(context.Background(), printer, slog.Default(), sc, path, resultsDir))

	require.Equal(t, "http://localhost:9009", gotURL)
	require.Len(t, gotParts, 1)
	req := gotParts[0].Data["eval_request"].(map[string]any)
	require.Equal(t, map[string]string{"agent": "http://localhost:9019"}, req["participants"])

	saved, err := filepath.Glob(filepath.Join(resultsDir, "*.result.json"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
}

func TestRunClient_TextOnlyReplyFails(t *testing.T) {
	orig := sendEval
	t.Cleanup(func() { sendEval = orig })
	sendEval = func(ctx context.Context, greenURL string, parts []a2a.Part) (*a2a.Message, error) {
		reply := a2a.NewMessage(a2a.RoleAgent, []a2a.Part{
			a2a.TextPart("Invalid evaluation request: missing role \"agent\""),
		}, "ctx-1")
		return &reply, nil
	}

	sc, err := scenario.Load(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	err = runClient(context.Background(), output.NewPrinter(io.Discard), slog.Default(), sc, "demo.toml", "")
	require.Error(t, err)
	require.ErrorContains(t, err, "Invalid evaluation request")
}

func TestRunClient_TransportErrorPropagates(t *testing.T) {
	orig := sendEval
	t.Cleanup(func() { sendEval = orig })
	sendEval = func(ctx context.Context, greenURL string, parts []a2a.Part) (*a2a.Message, error) {
		return nil, errors.New("connection refused")
	}

	sc, err := scenario.Load(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	err = runClient(context.Background(), output.NewPrinter(io.Discard), slog.Default(), sc, "demo.toml", "")
	require.ErrorContains(t, err, "connection refused")
}

func TestShouldShowUsage(t *testing.T) {
	require.True(t, shouldShowUsage(errors.New(`unknown command "frob" for "a2abench"`)))
	require.True(t, shouldShowUsage(errors.New("unknown flag: --bogus")))
	require.True(t, shouldShowUsage(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldShowUsage(errors.New("scenario demo.toml: no such file")))
}
