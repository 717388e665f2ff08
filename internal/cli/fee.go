package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	feeCmd.PersistentFlags().StringVar(&actAs, "as", "", "Address to act as (must be the owner)")
	feeCmd.AddCommand(feeShowCmd, feeSetCmd, feeWithdrawCmd)
	rootCmd.AddCommand(feeCmd)
}

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Inspect and manage platform fees",
}

var feeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the owner, fee percentage, and accrued fees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLocal(context.Background())
		if err != nil {
			return err
		}
		defer l.Close()

		e := l.engine
		fmt.Fprintf(out(cmd), "Owner:        %s\n", e.Owner())
		fmt.Fprintf(out(cmd), "Fee:          %d%%\n", e.FeePercentage())
		fmt.Fprintf(out(cmd), "Accrued fees: %d\n", e.TotalFees())
		fmt.Fprintf(out(cmd), "Balance:      %d\n", e.Balance())
		return nil
	},
}

var feeSetCmd = &cobra.Command{
	Use:   "set PERCENT",
	Short: "Change the fee applied to future deposits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := caller()
		if err != nil {
			return err
		}
		pct, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("fee %q is not a number", args[0])
		}
		ctx := context.Background()
		l, err := openLocal(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		if err := l.engine.SetPlatformFee(ctx, actor, pct); err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Fee set to %d%%\n", pct)
		return nil
	},
}

var feeWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Pay accrued fees out to the owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := caller()
		if err != nil {
			return err
		}
		ctx := context.Background()
		l, err := openLocal(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		amount, err := l.engine.WithdrawFees(ctx, actor)
		if err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Withdrew %d to %s\n", amount, actor)
		return nil
	},
}
