package domain

import (
	"context"
	"fmt"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// PlatformState is the process-wide operator state.
type PlatformState struct {
	Owner         Address `json:"owner"`
	FeePercentage int64   `json:"fee_percentage"`
	TotalFees     int64   `json:"total_fees"`
	NextTaskID    uint64  `json:"next_task_id"`
}

// AuditRecord documents one committed operation.
type AuditRecord struct {
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	Actor      Address   `json:"actor"`
	TaskID     uint64    `json:"task_id,omitempty"`
	InputsHash string    `json:"inputs_hash"`
	At         time.Time `json:"at"`
	Signature  string    `json:"signature,omitempty"` // hex Ed25519 signature of Payload
}

// Payload is the canonical byte form an operator signs.
func (a AuditRecord) Payload() []byte {
	return fmt.Appendf(nil, "%s|%s|%s|%d|%s|%d", a.ID, a.Op, a.Actor, a.TaskID, a.InputsHash, a.At.Unix())
}

// RatingUpdate is the new cumulative rating of an identity.
type RatingUpdate struct {
	Address Address
	Total   int64
}

// ChangeSet is everything one operation mutates. It is committed as a unit:
// either the store and memory both see all of it, or neither sees any of it.
type ChangeSet struct {
	Platform      PlatformState
	Upsert        *Task // task created or transitioned
	RemovedTaskID uint64
	Entries       []LedgerEntry
	Rating        *RatingUpdate
	Audit         AuditRecord
}

// Snapshot is the durable state the engine restores on start.
type Snapshot struct {
	Platform PlatformState
	Tasks    []Task // live tasks in id order
	Ratings  map[Address]int64
	Balances map[string]int64
}

// Store abstracts durable platform storage.
type Store interface {
	// Load returns the last committed snapshot; ok is false on a fresh store.
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)

	// Commit persists a change set atomically.
	Commit(ctx context.Context, cs ChangeSet) error

	// LedgerEntries returns recent entries for an account, newest first.
	LedgerEntries(ctx context.Context, account string, limit int) ([]LedgerEntry, error)
}
