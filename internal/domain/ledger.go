package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Double-Entry Ledger ────────────────────────────────────────────────────
// Every fund movement is a matched DEBIT/CREDIT pair.
// SUM(debits) == SUM(credits) is an invariant.

// TxType is the business reason for a fund movement.
type TxType string

const (
	TxDeposit  TxType = "DEPOSIT"  // author → task escrow
	TxFee      TxType = "FEE"      // author → platform fee account
	TxRelease  TxType = "RELEASE"  // task escrow → assignee
	TxRefund   TxType = "REFUND"   // task escrow → author
	TxWithdraw TxType = "WITHDRAW" // platform fee account → operator
)

// EntryType is the side of a ledger pair.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// LedgerEntry is one side of a fund movement.
type LedgerEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        TxType    `json:"type"`
	EntryType   EntryType `json:"entry_type"`
	Account     string    `json:"account"`
	Amount      int64     `json:"amount"`
	TaskID      uint64    `json:"task_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Balance     int64     `json:"balance"` // account balance after this entry
}

// FeeAccount holds accrued platform fees.
const FeeAccount = "platform:fees"

// EscrowAccount is the custody account of a single task.
func EscrowAccount(taskID uint64) string {
	return fmt.Sprintf("escrow:%d", taskID)
}

const externalPrefix = "external:"

// ExternalAccount represents funds outside the platform for an identity.
// Its balance is the net amount the identity received from the platform.
// The address is lowercased so every casing of it shares one account.
func ExternalAccount(addr Address) string {
	return externalPrefix + strings.ToLower(string(addr))
}

// NormalizeAccount maps a user-supplied account name to its ledger key.
// Escrow and fee accounts are returned unchanged.
func NormalizeAccount(account string) string {
	if addr, ok := strings.CutPrefix(account, externalPrefix); ok {
		return ExternalAccount(Address(addr))
	}
	return account
}
