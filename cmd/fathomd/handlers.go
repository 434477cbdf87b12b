// handlers.go holds the RunE bodies the command builders wire to,
// mirroring the teacher's split between command definitions and
// their handlers (commands.go / handlers.go, handlers_serve.go).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathom-run/fathom/internal/config"
	"github.com/fathom-run/fathom/internal/runtime"
	"github.com/fathom-run/fathom/internal/session"
	"github.com/spf13/cobra"
)

func loadRuntime(path string) (*runtime.Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	apiKey := apiKeyFromEnv(cfg.LLM.APIKeyEnv)
	rt, err := runtime.New(cfg, apiKey, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to build runtime: %w", err)
	}
	return rt, nil
}

func runServe(ctx context.Context, path string) error {
	rt, err := loadRuntime(path)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt.StartCron(ctx)
	slog.Info("fathomd started")

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping cron scheduler")

	stopped := make(chan struct{})
	go func() {
		rt.StopCron()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		slog.Warn("cron scheduler did not stop within grace period")
	}

	slog.Info("fathomd stopped")
	return nil
}

func runSessionsCreate(cmd *cobra.Command, path, agentID string, users []string) error {
	rt, err := loadRuntime(path)
	if err != nil {
		return err
	}
	summary, err := rt.CreateSession(agentID, users)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return printJSON(cmd, summary)
}

func runSessionsList(cmd *cobra.Command, path string) error {
	rt, err := loadRuntime(path)
	if err != nil {
		return err
	}
	summaries, err := rt.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	return printJSON(cmd, summaries)
}

func runSessionsEnqueue(cmd *cobra.Command, path, sessionID, userID, text string) error {
	rt, err := loadRuntime(path)
	if err != nil {
		return err
	}
	result, err := rt.EnqueueTrigger(cmd.Context(), sessionID, session.Trigger{
		Kind:   session.TriggerUserMessage,
		UserID: userID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue trigger: %w", err)
	}
	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
