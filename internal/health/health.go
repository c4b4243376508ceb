// Package health implements capability probing of agent endpoints and the
// readiness gate the orchestrator waits on before starting an evaluation.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2abench/a2abench/internal/a2a"
)

const probeTimeout = 5 * time.Second

// Checker performs single capability probes. A probe never returns an error:
// any transport failure or malformed card collapses to not-ready.
type Checker struct {
	http *http.Client
	log  *slog.Logger
}

func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		http: &http.Client{Timeout: probeTimeout},
		log:  log,
	}
}

// Probe fetches the agent card at endpoint and reports whether the endpoint
// answered with a well-formed card in time.
func (c *Checker) Probe(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+a2a.CardPath, nil)
	if err != nil {
		c.log.Debug("agent check failed", "endpoint", endpoint, "error", err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("agent check failed", "endpoint", endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Debug("agent check failed", "endpoint", endpoint, "status", resp.Status)
		return false
	}
	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		c.log.Debug("agent check failed", "endpoint", endpoint, "error", err)
		return false
	}
	if card.Name == "" {
		c.log.Debug("agent check failed", "endpoint", endpoint, "error", "card has no name")
		return false
	}
	return true
}

// ReadinessError reports a gate timeout together with how many endpoints were
// last seen ready.
type ReadinessError struct {
	Ready   int
	Total   int
	Timeout time.Duration
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("timeout waiting for agents: %d/%d ready after %s", e.Ready, e.Total, e.Timeout)
}

// Prober is the single-probe contract the gate polls with.
type Prober interface {
	Probe(ctx context.Context, endpoint string) bool
}

// Gate polls a set of endpoints until every one answers ready in the same
// round.
type Gate struct {
	checker  Prober
	interval time.Duration
	log      *slog.Logger
}

func NewGate(checker Prober, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{checker: checker, interval: time.Second, log: log}
}

// SetInterval overrides the 1s inter-round sleep. Used by tests.
func (g *Gate) SetInterval(d time.Duration) { g.interval = d }

// Wait blocks until an all-ready polling round, the timeout elapses, or ctx
// is canceled. An endpoint's earlier ready answer is never cached: every
// round re-probes the full set, since a process can answer once and then
// crash during warm-up. An empty endpoint set succeeds immediately.
func (g *Gate) Wait(ctx context.Context, endpoints []string, timeout time.Duration) error {
	if len(endpoints) == 0 {
		return nil
	}
	g.log.Info("waiting for agents", "count", len(endpoints), "timeout", timeout)
	deadline := time.Now().Add(timeout)
	lastReady := 0
	for time.Now().Before(deadline) {
		ready := 0
		for _, endpoint := range endpoints {
			if g.checker.Probe(ctx, endpoint) {
				ready++
			} else {
				g.log.Debug("agent not ready yet", "endpoint", endpoint)
			}
		}
		lastReady = ready
		if ready == len(endpoints) {
			g.log.Info("all agents ready", "count", len(endpoints))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.interval):
		}
	}
	err := &ReadinessError{Ready: lastReady, Total: len(endpoints), Timeout: timeout}
	g.log.Error("readiness gate failed", "ready", lastReady, "total", len(endpoints))
	return err
}

// IsTimeout reports whether err is a readiness timeout.
func IsTimeout(err error) bool {
	var re *ReadinessError
	return errors.As(err, &re)
}
