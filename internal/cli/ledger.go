package cli

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskbay/taskbay/internal/domain"
	"github.com/taskbay/taskbay/internal/security"
)

func init() {
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "Maximum entries to show (0 = all)")
	auditCmd.Flags().Uint64Var(&auditTask, "task", 0, "Only show operations on this task")
	auditCmd.Flags().BoolVar(&auditVerify, "verify", false, "Check each record's operator signature")
	rootCmd.AddCommand(ratingCmd, ledgerCmd, auditCmd)
}

var (
	ledgerLimit int
	auditTask   uint64
	auditVerify bool
)

var ratingCmd = &cobra.Command{
	Use:   "rating ADDRESS",
	Short: "Show an identity's cumulative rating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLocal(context.Background())
		if err != nil {
			return err
		}
		defer l.Close()

		fmt.Fprintf(out(cmd), "%s: %d\n", args[0], l.engine.GetRating(domain.Address(args[0])))
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger ACCOUNT",
	Short: "Show an account's balance and recent entries",
	Long: `Show ledger entries for an account, newest first.
Accounts are external:<address>, escrow:<task id>, or platform:fees.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		l, err := openLocal(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		account := args[0]
		entries, err := l.engine.History(ctx, account, ledgerLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Account: %s\nBalance: %d\n", account, l.engine.AccountBalance(account))
		if len(entries) == 0 {
			fmt.Fprintln(out(cmd), "No entries.")
			return nil
		}

		w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tSIDE\tAMOUNT\tBALANCE\tTASK")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.EntryType, e.Amount, e.Balance, e.TaskID)
		}
		return w.Flush()
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the record of committed operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		l, err := openLocal(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		records, err := l.db.AuditTrail(ctx, auditTask)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(out(cmd), "No operations recorded.")
			return nil
		}

		var pub ed25519.PublicKey
		if auditVerify {
			if pub, err = security.LoadPublicKey(l.dir); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
		header := "TIME\tOP\tACTOR\tTASK\tINPUTS"
		if auditVerify {
			header += "\tSIGNATURE"
		}
		fmt.Fprintln(w, header)
		invalid := 0
		for _, r := range records {
			hash := r.InputsHash
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s", r.At.Format("2006-01-02 15:04:05"), r.Op, r.Actor, r.TaskID, hash)
			if auditVerify {
				status := "ok"
				if !security.VerifyAudit(r, pub) {
					status = "INVALID"
					invalid++
				}
				fmt.Fprintf(w, "\t%s", status)
			}
			fmt.Fprintln(w)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d audit records failed signature verification", invalid, len(records))
		}
		return nil
	},
}
