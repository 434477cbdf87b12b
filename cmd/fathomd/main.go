// Command fathomd runs the Fathom agent runtime: a process that owns
// one or more session actors, accepts triggers for them, and fires
// configured cron schedules into them, grounded on the teacher's
// cobra-based CLI entry point (cmd/nexus/main.go) adapted to Fathom's
// much smaller session/task/event surface.
package main

import (
	"log/slog"
	"os"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
