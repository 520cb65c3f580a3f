// Package main is the terminal playground client for the agent daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentmesh/a2a-client/internal/a2a"
	"github.com/agentmesh/a2a-client/internal/config"
	"github.com/agentmesh/a2a-client/internal/session"
	"github.com/agentmesh/a2a-client/pkg/logger"
)

func main() {
	cfg := config.Load()

	var serverURL string
	var logLevel string

	root := &cobra.Command{
		Use:   "a2a-chat",
		Short: "Terminal playground for conversing with an A2A agent",
		Long: "a2a-chat connects to an A2A collaborator, streams task events " +
			"over SSE, and renders the live transcript in the terminal.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The TUI owns the terminal; logs go nowhere unless a level
			// below error is explicitly requested for debugging.
			log := logger.Nop()
			if logLevel == "debug" {
				var err error
				if log, err = logger.New(logLevel); err != nil {
					return fmt.Errorf("create logger: %w", err)
				}
			}

			client := a2a.NewClient(serverURL, log)
			dir := session.NewDirectory(client, log)
			defer dir.Close()

			return runTUI(dir)
		},
	}

	root.Flags().StringVar(&serverURL, "server", cfg.ServerURL, "base URL of the agent daemon")
	root.Flags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level (debug enables logging)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
