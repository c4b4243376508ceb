package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/a2abench/a2abench/internal/agent"
	"github.com/a2abench/a2abench/internal/evaluator"
	"github.com/a2abench/a2abench/internal/llm"
	"github.com/a2abench/a2abench/internal/logging"
	"github.com/a2abench/a2abench/internal/orchestrator"
	"github.com/a2abench/a2abench/internal/output"
	"github.com/a2abench/a2abench/internal/report"
	"github.com/a2abench/a2abench/internal/scenario"
)

// These function variables allow tests to stub external dependencies.
var (
	runScenario = func(ctx context.Context, printer *output.Printer, log *slog.Logger, opts orchestrator.Options) error {
		return orchestrator.NewRunner(printer, log).Run(ctx, opts)
	}
	newBackend = func() (llm.Backend, error) {
		return llm.NewOpenAIBackend()
	}
	sendEval = func(ctx context.Context, greenURL string, parts []a2a.Part) (*a2a.Message, error) {
		return a2a.NewClient().SendParts(ctx, greenURL, parts, true)
	}
)

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context so
// every command can tear down its processes before returning.
func Execute() error {
	root := silenceUsageAndErrors(&cobra.Command{
		Use:   "a2abench",
		Short: "Run multi-agent evaluation scenarios over the A2A protocol.",
	})

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newEvaluatorCmd())
	root.AddCommand(newClientCmd())
	root.AddCommand(newReportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root.SetContext(ctx)
	executed, err := root.ExecuteC()
	if err != nil {
		maybePrintUsage(executed, root, err)
	}
	return err
}

// ExitCode maps a CLI error to the process exit status. A failing evaluation
// driver propagates its own code; everything else is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *orchestrator.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

func newRunCmd() *cobra.Command {
	var showLogs bool
	var serveOnly bool
	var evaluateOnly bool
	var timeoutSeconds int
	var verbose bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "run <scenario.toml>",
		Short: "Launch a scenario's agents and run the evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Configure("orchestrator", verbose)
			printer := output.NewPrinter(os.Stdout)
			err := runScenario(cmd.Context(), printer, log, orchestrator.Options{
				ScenarioPath: args[0],
				ShowLogs:     showLogs,
				ServeOnly:    serveOnly,
				EvaluateOnly: evaluateOnly,
				Timeout:      time.Duration(timeoutSeconds) * time.Second,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	cmd.Flags().BoolVar(&showLogs, "show-logs", false, "stream agent process output")
	cmd.Flags().BoolVar(&serveOnly, "serve-only", false, "start agents and wait; do not evaluate")
	cmd.Flags().BoolVar(&evaluateOnly, "evaluate-only", false, "evaluate against already-running agents")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "seconds to wait for agents to become ready")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "validate <scenario.toml>",
		Short: "Validate a scenario definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			formatted, err := json.MarshalIndent(sc, "", "  ")
			if err != nil {
				return fmt.Errorf("format scenario: %w", err)
			}
			fmt.Println(string(formatted))
			fmt.Println("valid")
			return nil
		},
	})
	return cmd
}

func newAgentCmd() *cobra.Command {
	var host string
	var port int
	var model string
	var cardURL string
	var verbose bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "agent [--host HOST] [--port PORT] [--model MODEL]",
		Short: "Serve the agent under test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Configure("agent", verbose)
			backend, err := newBackend()
			if err != nil {
				return err
			}
			if model == "" {
				model = defaultModel()
			}
			addr := fmt.Sprintf("%s:%d", host, port)
			if cardURL == "" {
				cardURL = "http://" + addr
			}
			card := a2a.AgentCard{
				Name:               "a2abench agent",
				Description:        "Tool-calling chat agent under evaluation",
				URL:                cardURL,
				Version:            "1.0.0",
				DefaultInputModes:  []string{"text", "data"},
				DefaultOutputModes: []string{"text", "data"},
				Skills: []a2a.Skill{{
					ID:   "chat",
					Name: "Tool-calling chat",
					Tags: []string{"chat", "tools"},
				}},
			}
			executor := agent.NewExecutor(backend, llm.Options{Model: model}, log)
			server := a2a.NewServer(card, executor, log)
			log.Info("serving agent", "addr", addr, "model", model)
			return server.ListenAndServe(cmd.Context(), addr)
		},
	})
	cmd.Flags().StringVar(&host, "host", "localhost", "bind host")
	cmd.Flags().IntVar(&port, "port", 9019, "bind port")
	cmd.Flags().StringVar(&model, "model", "", "completion model (default $A2ABENCH_MODEL)")
	cmd.Flags().StringVar(&cardURL, "card-url", "", "public URL advertised on the agent card")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	return cmd
}

func newEvaluatorCmd() *cobra.Command {
	var host string
	var port int
	var cardURL string
	var verbose bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "evaluator [--host HOST] [--port PORT]",
		Short: "Serve the evaluator agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Configure("evaluator", verbose)
			addr := fmt.Sprintf("%s:%d", host, port)
			if cardURL == "" {
				cardURL = "http://" + addr
			}
			card := a2a.AgentCard{
				Name:               "a2abench evaluator",
				Description:        "Benchmark evaluator: drives tasks against participant agents and scores the outcomes",
				URL:                cardURL,
				Version:            "1.0.0",
				DefaultInputModes:  []string{"text", "data"},
				DefaultOutputModes: []string{"text", "data"},
				Skills: []a2a.Skill{{
					ID:   "evaluate",
					Name: "Run evaluation",
					Tags: []string{"benchmark"},
				}},
			}
			executor := evaluator.NewExecutor(nil, log)
			server := a2a.NewServer(card, executor, log)
			log.Info("serving evaluator", "addr", addr)
			return server.ListenAndServe(cmd.Context(), addr)
		},
	})
	cmd.Flags().StringVar(&host, "host", "localhost", "bind host")
	cmd.Flags().IntVar(&port, "port", 9009, "bind port")
	cmd.Flags().StringVar(&cardURL, "card-url", "", "public URL advertised on the agent card")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	return cmd
}

func newClientCmd() *cobra.Command {
	var verbose bool
	var noSave bool
	var resultsDir string
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "client <scenario.toml>",
		Short: "Send a scenario's evaluation request to the evaluator and report the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Configure("client", verbose)
			printer := output.NewPrinter(os.Stdout)
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			saveDir := ""
			if !noSave {
				saveDir = report.ResultsDir(resultsDir)
			}
			return runClient(cmd.Context(), printer, log, sc, args[0], saveDir)
		},
	})
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the result artifact")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "where to save results (default $A2ABENCH_RESULTS or ./results)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var resultsDir string
	var scenarios []string
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "report",
		Short: "Summarize saved evaluation results as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := report.Run(report.Options{
				ResultsDir: resultsDir,
				Scenarios:  scenarios,
			})
			if err != nil {
				return err
			}
			return rep.WriteCSV(os.Stdout)
		},
	})
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "results directory (default $A2ABENCH_RESULTS or ./results)")
	cmd.Flags().StringSliceVar(&scenarios, "scenario", nil, "limit to these scenario names")
	return cmd
}

// runClient is the evaluation driver: it packages the scenario's participants
// and config into an eval_request, sends it to the evaluator, and prints the
// returned artifact. A reply without structured scores means the evaluation
// did not complete, so the driver fails.
func runClient(ctx context.Context, printer *output.Printer, log *slog.Logger, sc *scenario.Scenario, scenarioPath, saveDir string) error {
	request := map[string]any{
		"eval_request": map[string]any{
			"participants": sc.Roles(),
			"config":       sc.Config,
		},
	}
	log.Info("sending evaluation request", "evaluator", sc.GreenAgent.URL())
	reply, err := sendEval(ctx, sc.GreenAgent.URL(), []a2a.Part{a2a.DataPart(request)})
	if err != nil {
		return fmt.Errorf("send evaluation request: %w", err)
	}

	var scores map[string]any
	var failureText []string
	for _, part := range reply.Parts {
		switch part.Kind {
		case a2a.PartKindText:
			printer.App(part.Text)
			failureText = append(failureText, part.Text)
		case a2a.PartKindData:
			if _, ok := part.Data["score"]; ok {
				scores = part.Data
			}
		}
	}
	if scores == nil {
		return fmt.Errorf("evaluation failed: %s", strings.Join(failureText, " "))
	}
	if saveDir != "" {
		res, err := report.FromData(scenarioPath, scores)
		if err != nil {
			return err
		}
		path, err := report.Save(saveDir, res)
		if err != nil {
			return fmt.Errorf("save result: %w", err)
		}
		log.Info("saved result", "path", path)
	}
	return nil
}

func defaultModel() string {
	if m := os.Getenv("A2ABENCH_MODEL"); m != "" {
		return m
	}
	return "gpt-4o"
}

func silenceUsageAndErrors(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func maybePrintUsage(cmd, root *cobra.Command, err error) {
	if err == nil {
		return
	}
	target := cmd
	if target == nil {
		target = root
	}
	if target == nil {
		return
	}
	if shouldShowUsage(err) {
		_ = target.Usage()
	}
}

func shouldShowUsage(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "unknown command") {
		return true
	}
	if strings.HasPrefix(msg, "unknown flag") || strings.HasPrefix(msg, "unknown shorthand flag") {
		return true
	}
	if strings.Contains(msg, "accepts") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "required flag") {
		return true
	}
	if strings.Contains(msg, "flag needs an argument") {
		return true
	}
	if strings.HasPrefix(msg, "invalid argument") {
		return true
	}
	return false
}
