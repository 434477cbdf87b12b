// commands.go holds fathomd's cobra command tree: one builder function
// per command, matching the teacher's one-builder-per-command style.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fathomd",
		Short:        "fathomd - a single-agent session runtime",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to fathomd YAML/JSON5 configuration file")
	rootCmd.AddCommand(
		buildServeCmd(),
		buildSessionsCmd(),
	)
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run fathomd until a shutdown signal is received",
		Long: `Start the runtime and its cron scheduler.

No sessions are created: a cron entry's trigger is delivered only if its
session_id names a session that exists in this process.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	return cmd
}

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and drive session actors",
	}
	cmd.AddCommand(
		buildSessionsCreateCmd(),
		buildSessionsListCmd(),
		buildSessionsEnqueueCmd(),
	)
	return cmd
}

func buildSessionsCreateCmd() *cobra.Command {
	var agentID string
	var users []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session for an agent and its participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsCreate(cmd, configPath, agentID, users)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent id (required)")
	cmd.Flags().StringArrayVar(&users, "user", nil, "Participant user id; may be repeated")
	cobra.CheckErr(cmd.MarkFlagRequired("agent"))
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known sessions and their summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, configPath)
		},
	}
}

func buildSessionsEnqueueCmd() *cobra.Command {
	var sessionID, userID, text string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a user_message trigger into a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsEnqueue(cmd, configPath, sessionID, userID, text)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (required)")
	cmd.Flags().StringVar(&userID, "user", "", "Sending user id (required)")
	cmd.Flags().StringVar(&text, "text", "", "Message text (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("session"))
	cobra.CheckErr(cmd.MarkFlagRequired("user"))
	cobra.CheckErr(cmd.MarkFlagRequired("text"))
	return cmd
}

func apiKeyFromEnv(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
