// Package platform implements the task lifecycle engine.
// Every operation takes the caller's identity explicitly, validates the task
// state, stages a change set (task state, ledger entries, fee and rating
// updates), commits it to the store, and only then applies it in memory.
// A rejected operation leaves no trace in either.
package platform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskbay/taskbay/internal/app/escrow"
	"github.com/taskbay/taskbay/internal/app/fee"
	"github.com/taskbay/taskbay/internal/app/rating"
	"github.com/taskbay/taskbay/internal/app/registry"
	"github.com/taskbay/taskbay/internal/domain"
	"github.com/taskbay/taskbay/internal/infra/metrics"
)

// Options configures an Engine.
type Options struct {
	Owner         domain.Address // operator; ignored when the store already has one
	FeePercentage int64
	Store         domain.Store // nil keeps state in memory only
	Logger        *slog.Logger
	Now           func() time.Time
	Signer        AuditSigner // nil leaves audit records unsigned
}

// AuditSigner attests committed operations on behalf of the operator.
type AuditSigner interface {
	SignAudit(rec domain.AuditRecord) string
}

// Engine is the single serialization point for all platform operations.
type Engine struct {
	mu      sync.Mutex
	tasks   *registry.Registry
	fees    *fee.Book
	ratings *rating.Ledger
	custody *escrow.Custody

	store  domain.Store
	signer AuditSigner
	log    *slog.Logger
	now    func() time.Time
}

// New creates an engine, restoring the last committed snapshot when the
// store has one.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.FeePercentage < 0 || opts.FeePercentage > fee.MaxPercentage {
		return nil, fmt.Errorf("fee percentage %d outside [0, %d]: %w", opts.FeePercentage, fee.MaxPercentage, domain.ErrInvalidAmount)
	}
	e := &Engine{
		tasks:   registry.New(),
		fees:    fee.NewBook(opts.Owner, opts.FeePercentage),
		ratings: rating.NewLedger(),
		custody: escrow.NewCustody(),
		store:   opts.Store,
		signer:  opts.Signer,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("component", "platform")
	if e.now == nil {
		e.now = time.Now
	}

	if e.store != nil {
		snap, ok, err := e.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			e.restore(snap, opts)
		}
	}
	e.observe()
	return e, nil
}

func (e *Engine) restore(snap domain.Snapshot, opts Options) {
	ps := snap.Platform
	if ps.Owner.IsZero() {
		ps.Owner = opts.Owner
	} else if !opts.Owner.IsZero() && !ps.Owner.Equal(opts.Owner) {
		e.log.Warn("configured owner differs from persisted owner; keeping persisted",
			"persisted", ps.Owner, "configured", opts.Owner)
	}
	e.fees.Restore(ps)
	e.tasks.Restore(snap.Tasks, ps.NextTaskID)
	e.ratings.Restore(snap.Ratings)
	e.custody.Restore(snap.Balances)
	e.log.Info("state restored", "tasks", e.tasks.Len(), "next_id", e.tasks.NextID(),
		"total_fees", ps.TotalFees, "balance", e.custody.PlatformBalance())
}

// ─── Staging and Commit ─────────────────────────────────────────────────────

// clock returns the current time at ledger granularity (whole seconds).
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// state returns the current platform state, the base of every change set.
func (e *Engine) state() domain.PlatformState {
	return domain.PlatformState{
		Owner:         e.fees.Owner(),
		FeePercentage: e.fees.Percentage(),
		TotalFees:     e.fees.Total(),
		NextTaskID:    e.tasks.NextID(),
	}
}

// commit persists a staged change set and applies it. Callers hold e.mu.
func (e *Engine) commit(ctx context.Context, op string, actor domain.Address, taskID uint64, inputs any, cs domain.ChangeSet, at time.Time) error {
	cs.Audit = domain.AuditRecord{
		ID:         uuid.NewString(),
		Op:         op,
		Actor:      actor,
		TaskID:     taskID,
		InputsHash: hashInputs(inputs),
		At:         at,
	}
	if e.signer != nil {
		cs.Audit.Signature = e.signer.SignAudit(cs.Audit)
	}
	if e.store != nil {
		if err := e.store.Commit(ctx, cs); err != nil {
			return e.reject(op, actor, taskID, fmt.Errorf("commit %s: %w", op, err))
		}
	}
	e.apply(cs)
	e.log.Debug("operation committed", "op", op, "task", taskID, "actor", actor)
	return nil
}

// apply mutates memory with a committed change set. It cannot fail.
func (e *Engine) apply(cs domain.ChangeSet) {
	if cs.RemovedTaskID != 0 {
		_, _ = e.tasks.Remove(cs.RemovedTaskID)
	}
	if t := cs.Upsert; t != nil {
		if t.ID == e.tasks.NextID() {
			e.tasks.Create(t)
		} else {
			_ = e.tasks.Put(t)
		}
	}
	e.custody.Post(cs.Entries)
	if cs.Rating != nil {
		e.ratings.Apply(*cs.Rating)
	}
	e.fees.Restore(cs.Platform)

	for _, entry := range cs.Entries {
		if entry.EntryType == domain.EntryCredit {
			metrics.FundsMoved.WithLabelValues(string(entry.Type)).Add(float64(entry.Amount))
		}
	}
	e.observe()
}

func (e *Engine) observe() {
	metrics.FeesAccrued.Set(float64(e.fees.Total()))
	metrics.EscrowHeld.Set(float64(e.custody.PlatformBalance() - e.custody.Balance(domain.FeeAccount)))
}

// reject logs and counts a failed operation and returns err unchanged.
func (e *Engine) reject(op string, actor domain.Address, taskID uint64, err error) error {
	kind := domain.ErrorKind(err)
	metrics.OperationsRejected.WithLabelValues(op, kind).Inc()
	e.log.Info("operation rejected", "op", op, "task", taskID, "actor", actor, "kind", kind, "error", err)
	return err
}

// hashInputs fingerprints operation inputs for the audit trail.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ─── Queries ────────────────────────────────────────────────────────────────

// GetTask returns a copy of a task.
func (e *Engine) GetTask(id uint64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Get(id)
}

// GetAllTasks returns every live task in creation order.
func (e *Engine) GetAllTasks() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.List()
}

// GetRating returns an identity's cumulative rating.
func (e *Engine) GetRating(addr domain.Address) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ratings.Get(addr)
}

// Owner returns the operator identity.
func (e *Engine) Owner() domain.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees.Owner()
}

// FeePercentage returns the rate applied to new deposits.
func (e *Engine) FeePercentage() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees.Percentage()
}

// TotalFees returns the accrued, withdrawable fees.
func (e *Engine) TotalFees() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees.Total()
}

// RequiredDeposit returns the exact value to attach when posting reward.
// It fails with ErrInvalidAmount for rewards AddTask would reject.
func (e *Engine) RequiredDeposit(reward int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fee.RequiredDeposit(reward, e.fees.Percentage())
}

// Balance returns all funds held by the platform: escrow plus fees.
func (e *Engine) Balance() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.custody.PlatformBalance()
}

// AccountBalance returns the ledger balance of any account. External
// account names match regardless of address casing.
func (e *Engine) AccountBalance(account string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.custody.Balance(domain.NormalizeAccount(account))
}

// History returns recent ledger entries for an account, newest first.
func (e *Engine) History(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	account = domain.NormalizeAccount(account)
	if e.store != nil {
		return e.store.LedgerEntries(ctx, account, limit)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.custody.History(account, limit), nil
}

// CheckSolvency verifies the money invariants: the ledger is balanced, each
// task's escrow matches its custody account, the fee book matches the fee
// account, and the platform holds exactly escrow plus fees.
func (e *Engine) CheckSolvency() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.custody.Verify(); err != nil {
		return err
	}
	var escrowed int64
	for _, t := range e.tasks.List() {
		if held := e.custody.Held(t.ID); held != t.Escrowed {
			return fmt.Errorf("task %d escrow %d, custody holds %d", t.ID, t.Escrowed, held)
		}
		escrowed += t.Escrowed
	}
	if got := e.custody.Balance(domain.FeeAccount); got != e.fees.Total() {
		return fmt.Errorf("fee book %d, fee account %d", e.fees.Total(), got)
	}
	if bal := e.custody.PlatformBalance(); bal != escrowed+e.fees.Total() {
		return fmt.Errorf("platform balance %d, want escrow %d + fees %d", bal, escrowed, e.fees.Total())
	}
	return nil
}
