package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskbay/taskbay/internal/daemon"
)

func init() {
	initCmd.Flags().StringVar(&initOwner, "owner", "", "Platform operator address (required)")
	initCmd.Flags().Int64Var(&initFee, "fee", 1, "Fee percentage for new deposits (0-100)")
	rootCmd.AddCommand(initCmd)
}

var (
	initOwner string
	initFee   int64
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.toml with the platform operator",
	Long: `Write $TASKBAY_HOME/config.toml. The owner and fee seed a fresh store;
once the store has committed state, the persisted owner wins.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if initOwner == "" {
		return errors.New("--owner is required")
	}
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Platform.Owner = initOwner
	cfg.Platform.FeePercentage = initFee
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := daemon.SaveConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out(cmd), "Wrote %s (owner %s, fee %d%%)\n", daemon.ConfigPath(), initOwner, initFee)
	return nil
}
