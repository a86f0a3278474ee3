// Package cmd implements the oscws command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "oscws",
	Short: "OSC over WebSocket test server",
	Long: `oscws serves random OSC packets to WebSocket clients, echoes what they
send back, and can bridge OSC between UDP and WebSocket.`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}
