package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// adminAddr is the base URL of the admin HTTP surface (pkg/adminhttp)
// every subcommand talks to.
var adminAddr string

var rootCmd = &cobra.Command{
	Use:   "sdmctl",
	Short: "sdmctl — operate a delivery-goal orchestration core from the command line",
	Long: `sdmctl is the operator CLI for a delivery-goal orchestration core.
It talks to the core's admin HTTP surface, the same list/cancel/deploy-toggle
operations the chat surface exposes as Slack commands.

Common workflow:

  sdmctl list                   view pending goal sets
  sdmctl cancel <goal-set-id>   cancel one pending goal set
  sdmctl cancel --all           cancel every pending goal set
  sdmctl deploy enable <repo>   re-enable deploy goals for a repo
  sdmctl deploy disable <repo>  pause deploy goals for a repo
  sdmctl dashboard              live TUI view of pending goal sets`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&adminAddr, "addr", "a", "http://localhost:8090", "base URL of the admin HTTP surface")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("cli error: %w", err)
	}
	return nil
}
