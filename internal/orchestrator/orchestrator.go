// Package orchestrator runs a scenario end to end: launch the declared
// agents, gate on their readiness, then either idle in serve mode or drive an
// evaluation, and tear the whole process set down on every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/a2abench/a2abench/internal/health"
	"github.com/a2abench/a2abench/internal/output"
	"github.com/a2abench/a2abench/internal/scenario"
	"github.com/a2abench/a2abench/internal/supervisor"
)

// ErrModeConflict rejects --serve-only together with --evaluate-only before
// any process is launched.
var ErrModeConflict = errors.New("cannot use both serve-only and evaluate-only")

// ExitError carries the evaluation driver's non-zero exit status, which is
// the run's result.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("evaluation driver exited with code %d", e.Code)
}

// Options configure one run.
type Options struct {
	ScenarioPath string
	ShowLogs     bool
	ServeOnly    bool
	EvaluateOnly bool
	Timeout      time.Duration

	// DriverCommand builds the launch command for the external evaluation
	// driver. By default it re-invokes this executable's client subcommand.
	DriverCommand func(scenarioPath string) string
}

const (
	defaultTimeout   = 30 * time.Second
	livenessInterval = 500 * time.Millisecond
)

// Runner wires the orchestration collaborators. Fields are replaceable by
// tests.
type Runner struct {
	Printer *output.Printer
	Log     *slog.Logger
	Gate    interface {
		Wait(ctx context.Context, endpoints []string, timeout time.Duration) error
	}
	Supervisor *supervisor.Supervisor
}

func NewRunner(printer *output.Printer, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if printer == nil {
		printer = output.NewPrinter(io.Discard)
	}
	return &Runner{
		Printer:    printer,
		Log:        log,
		Gate:       health.NewGate(health.NewChecker(log), log),
		Supervisor: supervisor.New(log),
	}
}

// Run executes a scenario. On any exit path, including context cancellation
// from an interrupt, every launched process (and the driver, if spawned) is
// shut down exactly once via the deferred escalating teardown.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	if opts.ServeOnly && opts.EvaluateOnly {
		return ErrModeConflict
	}
	sc, err := scenario.Load(opts.ScenarioPath)
	if err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	defer func() {
		r.Log.Info("shutting down agents")
		r.Supervisor.ShutdownAll()
	}()

	if !opts.EvaluateOnly {
		r.launchAgents(sc, opts)
	}

	endpoints := r.readinessEndpoints(sc, opts.EvaluateOnly)
	if err := r.Gate.Wait(ctx, endpoints, timeout); err != nil {
		r.Log.Error("not all agents became ready", "error", err)
		return err
	}

	if opts.ServeOnly {
		r.Log.Info("agents started", "mode", "serve")
		return r.serveLoop(ctx)
	}

	r.Log.Info("agents started", "mode", "evaluate")
	return r.runDriver(ctx, opts)
}

// launchAgents starts every participant, then the green agent. Entries with
// an empty command are externally managed and skipped. A failed launch is
// logged and the run proceeds to the readiness wait, which turns the missing
// agent into a visible timeout instead of an early abort.
func (r *Runner) launchAgents(sc *scenario.Scenario, opts Options) {
	for _, p := range sc.Participants {
		r.launchOne(p, opts)
	}
	r.launchOne(sc.GreenAgent, opts)
}

func (r *Runner) launchOne(ep scenario.Endpoint, opts Options) {
	if ep.Cmd == "" {
		return
	}
	var sink io.Writer = io.Discard
	if opts.ShowLogs || opts.ServeOnly {
		sink = r.Printer.Stream(roleLabel(ep))
	}
	r.Log.Info("starting agent", "role", roleLabel(ep), "host", ep.Host, "port", ep.Port)
	if _, err := r.Supervisor.Launch(ep.Cmd, nil, sink); err != nil {
		closeSink(sink)
		if errors.Is(err, supervisor.ErrEmptyCommand) {
			return
		}
		r.Log.Error("failed to start agent", "role", roleLabel(ep), "error", err)
	}
}

// closeSink releases a stream sink when no process took ownership of it.
func closeSink(sink io.Writer) {
	if c, ok := sink.(io.Closer); ok {
		c.Close()
	}
}

// readinessEndpoints builds the probe set. In evaluate-only mode only the
// green agent is checked: participants are reachable through a network this
// process does not control, and the green agent probes them itself.
func (r *Runner) readinessEndpoints(sc *scenario.Scenario, evaluateOnly bool) []string {
	if evaluateOnly {
		return []string{sc.GreenAgent.URL()}
	}
	endpoints := make([]string, 0, len(sc.Participants)+1)
	for _, p := range sc.Participants {
		endpoints = append(endpoints, p.URL())
	}
	return append(endpoints, sc.GreenAgent.URL())
}

// serveLoop blocks until interrupted, polling each launched process and
// warning when one exits unexpectedly.
func (r *Runner) serveLoop(ctx context.Context) error {
	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()
	reported := map[*supervisor.Process]bool{}
	for {
		select {
		case <-ctx.Done():
			r.Log.Info("received interrupt signal")
			return nil
		case <-ticker.C:
			for _, p := range r.Supervisor.Processes() {
				if !p.Alive() && !reported[p] {
					reported[p] = true
					r.Log.Warn("agent exited", "command", p.Command, "exit_code", p.ExitCode())
				}
			}
		}
	}
}

// runDriver spawns the external evaluation driver and blocks until it exits;
// its exit status is the run's result. The driver joins the supervised set so
// teardown covers it too.
func (r *Runner) runDriver(ctx context.Context, opts Options) error {
	buildCommand := opts.DriverCommand
	if buildCommand == nil {
		buildCommand = selfClientCommand
	}
	command := buildCommand(opts.ScenarioPath)
	r.Log.Info("starting evaluation client")
	sink := r.Printer.Stream("client")
	proc, err := r.Supervisor.Launch(command, nil, sink)
	if err != nil {
		closeSink(sink)
		return fmt.Errorf("start evaluation driver: %w", err)
	}
	select {
	case <-ctx.Done():
		r.Log.Info("received interrupt signal")
		return ctx.Err()
	case <-proc.Done():
	}
	if code := proc.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func selfClientCommand(scenarioPath string) string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return fmt.Sprintf("%q client %q", exe, scenarioPath)
}

func roleLabel(ep scenario.Endpoint) string {
	if ep.Role != "" {
		return ep.Role
	}
	return ep.Addr()
}
