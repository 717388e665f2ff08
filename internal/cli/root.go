// Package cli implements the taskbay command-line interface using Cobra.
// Commands other than serve open the local store directly.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskbay",
	Short: "taskbay: escrow-backed task marketplace",
	Long: `taskbay is a task marketplace ledger.
Authors post tasks with the reward held in escrow, workers apply and submit
results, and the reward is released on approval or after the review window.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env may set TASKBAY_HOME per project; a missing file is fine.
		_ = godotenv.Load()
	},
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
