package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "session-security",
	Short: "Session-based authentication gateway",
	Long: `session-security serves form login backed by a single-session registry
and path-based access rules. Running it without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
