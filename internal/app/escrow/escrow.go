// Package escrow holds task funds in a double-entry account ledger.
// Every movement creates matched DEBIT/CREDIT entries, so the sum of all
// account balances is always zero. Funds inside the platform are the task
// escrow accounts plus the fee account; external accounts record what each
// identity paid in (negative) or received (positive).
package escrow

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskbay/taskbay/internal/domain"
)

// Custody tracks account balances and the in-memory journal. Not safe for
// concurrent use; the platform engine serializes access.
type Custody struct {
	balances map[string]int64
	journal  []domain.LedgerEntry
	newID    func() string
}

// NewCustody creates an empty custody ledger.
func NewCustody() *Custody {
	return &Custody{
		balances: make(map[string]int64),
		newID:    uuid.NewString,
	}
}

// Restore loads persisted balances. The journal starts empty; history is
// served by the durable store when one is configured.
func (c *Custody) Restore(balances map[string]int64) {
	c.balances = make(map[string]int64, len(balances))
	for acct, bal := range balances {
		c.balances[acct] = bal
	}
	c.journal = nil
}

// Balance returns the current balance of an account.
func (c *Custody) Balance(account string) int64 {
	return c.balances[account]
}

// Held returns the funds in custody for a task.
func (c *Custody) Held(taskID uint64) int64 {
	return c.balances[domain.EscrowAccount(taskID)]
}

// PlatformBalance returns all funds inside the platform: every task escrow
// plus accrued fees.
func (c *Custody) PlatformBalance() int64 {
	var total int64
	for acct, bal := range c.balances {
		if acct == domain.FeeAccount || strings.HasPrefix(acct, "escrow:") {
			total += bal
		}
	}
	return total
}

// Post applies committed entries. Each entry carries its post-balance.
func (c *Custody) Post(entries []domain.LedgerEntry) {
	for _, e := range entries {
		c.balances[e.Account] = e.Balance
	}
	c.journal = append(c.journal, entries...)
}

// History returns recent journal entries for an account, newest first.
func (c *Custody) History(account string, limit int) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for i := len(c.journal) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if c.journal[i].Account == account {
			out = append(out, c.journal[i])
		}
	}
	return out
}

// Verify checks the double-entry invariant: all balances sum to zero.
func (c *Custody) Verify() error {
	var sum int64
	for _, bal := range c.balances {
		sum += bal
	}
	if sum != 0 {
		return fmt.Errorf("ledger unbalanced: sum of %d accounts = %d", len(c.balances), sum)
	}
	return nil
}

// Batch stages the movements of one operation. Nothing is visible in the
// custody until the batch's entries are committed and posted.
func (c *Custody) Batch(at time.Time) *Batch {
	return &Batch{c: c, at: at, overlay: make(map[string]int64)}
}

// ─── Batch ──────────────────────────────────────────────────────────────────

// Batch accumulates ledger entries with running balances.
type Batch struct {
	c       *Custody
	at      time.Time
	overlay map[string]int64
	entries []domain.LedgerEntry
	err     error
}

// Entries returns the staged entries.
func (b *Batch) Entries() []domain.LedgerEntry {
	return b.entries
}

// Err reports the first movement that could not be staged. A batch with an
// error must not be committed.
func (b *Batch) Err() error {
	return b.err
}

func (b *Batch) balance(account string) int64 {
	if bal, ok := b.overlay[account]; ok {
		return bal
	}
	return b.c.balances[account]
}

// transfer stages a DEBIT on from and a CREDIT on to.
func (b *Batch) transfer(tx domain.TxType, from, to string, amount int64, taskID uint64, desc string) {
	if b.err != nil {
		return
	}
	if amount < 0 || b.balance(from) < math.MinInt64+amount || b.balance(to) > math.MaxInt64-amount {
		b.err = fmt.Errorf("transfer %d from %s to %s out of range: %w", amount, from, to, domain.ErrInvalidAmount)
		return
	}
	fromBal := b.balance(from) - amount
	toBal := b.balance(to) + amount
	b.overlay[from] = fromBal
	b.overlay[to] = toBal

	b.entries = append(b.entries,
		domain.LedgerEntry{
			ID:          b.c.newID(),
			Timestamp:   b.at,
			Type:        tx,
			EntryType:   domain.EntryDebit,
			Account:     from,
			Amount:      amount,
			TaskID:      taskID,
			Description: desc,
			Balance:     fromBal,
		},
		domain.LedgerEntry{
			ID:          b.c.newID(),
			Timestamp:   b.at,
			Type:        tx,
			EntryType:   domain.EntryCredit,
			Account:     to,
			Amount:      amount,
			TaskID:      taskID,
			Description: desc,
			Balance:     toBal,
		},
	)
}

// Deposit takes a validated deposit from payer: the reward goes into the
// task's escrow and the fee into the platform fee account. A deposit that
// would push the platform's total holdings past int64 sets Err.
func (b *Batch) Deposit(taskID uint64, payer domain.Address, reward, fee int64) {
	if reward < 0 || fee < 0 || reward > math.MaxInt64-fee || b.c.PlatformBalance() > math.MaxInt64-(reward+fee) {
		if b.err == nil {
			b.err = fmt.Errorf("deposit of %d+%d for task %d exceeds platform capacity: %w", reward, fee, taskID, domain.ErrInvalidAmount)
		}
		return
	}
	src := domain.ExternalAccount(payer)
	b.transfer(domain.TxDeposit, src, domain.EscrowAccount(taskID), reward, taskID, "task reward escrowed")
	if fee > 0 {
		b.transfer(domain.TxFee, src, domain.FeeAccount, fee, taskID, "platform fee")
	}
}

// Release pays amount from the task's escrow to recipient. Any remainder is
// returned to rest so the escrow ends at zero.
func (b *Batch) Release(taskID uint64, recipient domain.Address, amount int64, rest domain.Address) error {
	acct := domain.EscrowAccount(taskID)
	held := b.balance(acct)
	if amount < 0 || amount > held {
		return fmt.Errorf("release %d of %d held for task %d: %w", amount, held, taskID, domain.ErrInsufficientEscrow)
	}
	if amount > 0 {
		b.transfer(domain.TxRelease, acct, domain.ExternalAccount(recipient), amount, taskID, "reward released")
	}
	if rem := held - amount; rem > 0 {
		b.transfer(domain.TxRefund, acct, domain.ExternalAccount(rest), rem, taskID, "escrow remainder returned")
	}
	return b.err
}

// Refund returns the task's entire remaining escrow to recipient and reports
// the amount refunded.
func (b *Batch) Refund(taskID uint64, recipient domain.Address) int64 {
	acct := domain.EscrowAccount(taskID)
	held := b.balance(acct)
	if held > 0 {
		b.transfer(domain.TxRefund, acct, domain.ExternalAccount(recipient), held, taskID, "task deleted")
	}
	return held
}

// Withdraw pays accrued fees out to the operator.
func (b *Batch) Withdraw(operator domain.Address, amount int64) error {
	held := b.balance(domain.FeeAccount)
	if amount < 0 || amount > held {
		return fmt.Errorf("withdraw %d of %d accrued: %w", amount, held, domain.ErrInsufficientEscrow)
	}
	if amount > 0 {
		b.transfer(domain.TxWithdraw, domain.FeeAccount, domain.ExternalAccount(operator), amount, 0, "fee withdrawal")
	}
	return b.err
}
