// Package logging configures the process-wide structured logger. Every
// component logs through slog with a role attribute (orchestrator, agent,
// evaluator, client) so interleaved multi-process output stays attributable.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Configure installs the default logger and returns one bound to role.
// LOG_LEVEL selects the level (debug/info/warn/error, default info);
// LOG_FORMAT=json switches to the JSON handler for container captures.
func Configure(role string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger.With("role", role)
}
