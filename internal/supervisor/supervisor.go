// Package supervisor launches agent child processes in detached process
// groups and guarantees escalating teardown of the whole set.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// ErrEmptyCommand is returned by Launch for a blank command string. Callers
// treat this as "externally managed agent" and skip the entry.
var ErrEmptyCommand = errors.New("empty launch command")

// LaunchError marks a child process that could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Process is one launched child, running in its own process group. Handles
// are owned exclusively by the Supervisor; nothing else signals or waits on
// them.
type Process struct {
	Command string
	cmd     *exec.Cmd
	done    chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Alive is a non-blocking liveness check.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

// ExitCode returns the recorded exit code; valid only once Alive is false.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Wait blocks until the child exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return p.ExitCode()
}

// Done is closed when the child exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Supervisor owns every process it launched.
type Supervisor struct {
	grace time.Duration
	log   *slog.Logger

	mu    sync.Mutex
	procs []*Process
}

func New(log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{grace: time.Second, log: log}
}

// Launch splits command with shell-style word rules and starts it in a new
// process group, with stdout/stderr attached to sink (nil discards output).
// env replaces the child environment when non-nil.
func (s *Supervisor) Launch(command string, env []string, sink io.Writer) (*Process, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, &LaunchError{Command: command, Err: err}
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	cmd := exec.Command(args[0], args[1:]...)
	if env != nil {
		cmd.Env = env
	}
	if sink != nil {
		cmd.Stdout = sink
		cmd.Stderr = sink
	}
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: command, Err: err}
	}

	p := &Process{Command: command, cmd: cmd, done: make(chan struct{})}
	go s.reap(p, sink)

	s.mu.Lock()
	s.procs = append(s.procs, p)
	s.mu.Unlock()
	return p, nil
}

// reap waits for the child and records its exit so Alive stays non-blocking.
// A closable sink is closed once the child is gone, so a line-buffering sink
// sees EOF and flushes any final unterminated line.
func (s *Supervisor) reap(p *Process, sink io.Writer) {
	err := p.cmd.Wait()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	if c, ok := sink.(io.Closer); ok {
		c.Close()
	}
	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)
}

// Processes returns a snapshot of every launched process.
func (s *Supervisor) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Process, len(s.procs))
	copy(out, s.procs)
	return out
}

// ShutdownAll terminates every launched process group: one graceful signal to
// each live group, a single collective grace wait, then a forced kill for any
// straggler. It never fails: signal errors for already-gone processes are
// swallowed, and calling it again is a no-op.
func (s *Supervisor) ShutdownAll() {
	procs := s.Processes()
	signaled := false
	for _, p := range procs {
		if !p.Alive() {
			continue
		}
		if err := terminateGroup(p); err != nil && !isProcessGone(err) {
			s.log.Debug("terminate signal failed", "pid", p.Pid(), "error", err)
		}
		signaled = true
	}
	if !signaled {
		return
	}
	time.Sleep(s.grace)
	for _, p := range procs {
		if !p.Alive() {
			continue
		}
		if err := killGroup(p); err != nil && !isProcessGone(err) {
			s.log.Debug("kill signal failed", "pid", p.Pid(), "error", err)
		}
	}
}

// SetGrace overrides the 1s grace period between the graceful and forceful
// phases. Used by tests.
func (s *Supervisor) SetGrace(d time.Duration) { s.grace = d }

func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err)
}
