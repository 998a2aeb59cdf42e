package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crmcheck/internal/healthcheck"
	"crmcheck/internal/mcptools"
	"crmcheck/internal/realtime"
	"crmcheck/pkg/logging"
)

var mcpCreds credentialFlags

// mcpServerCmd serves the health checks as MCP tools over stdio.
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Expose the health checks as MCP tools over stdio",
	Long: `Runs an MCP server on stdin/stdout for AI assistants. It exposes:

  health_run      run the suites and return the result
  health_list     list the declared test cases
  health_results  progress of the current run or the last result

Logs go to stderr; stdout carries only the protocol.`,
	RunE: runMCPServer,
}

func init() {
	rootCmd.AddCommand(mcpServerCmd)

	mcpServerCmd.Flags().StringVar(&mcpCreds.token, "token", "", "Bearer token for runs (not persisted)")
	mcpServerCmd.Flags().StringVar(&mcpCreds.apiKey, "api-key", "", "API key for runs (not persisted)")
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := loadEnvironment(mcpCreds)
	if err != nil {
		return err
	}
	env.watchKeyStore(ctx)

	var channel realtime.Channel
	ws, err := env.connectRealtime(ctx)
	if err != nil {
		logging.Warn("MCP", "realtime tests unavailable: %v", err)
	} else if ws != nil {
		defer ws.Close()
		channel = ws
	}

	defaults := env.runOptions()
	if defaults.CustomSuites, err = env.loadCustomSuites(""); err != nil {
		return err
	}

	reporter := healthcheck.NewStructuredReporter()
	server := mcptools.NewServer(env.newOrchestrator(channel, reporter), reporter, defaults, GetVersion())
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
