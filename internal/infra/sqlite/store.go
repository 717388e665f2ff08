package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/taskbay/taskbay/internal/domain"
)

// Platform state keys.
const (
	keyOwner         = "owner"
	keyFeePercentage = "fee_percentage"
	keyTotalFees     = "total_fees"
	keyNextTaskID    = "next_task_id"
)

var _ domain.Store = (*DB)(nil)

// ─── Commit ─────────────────────────────────────────────────────────────────

// Commit persists a change set in a single transaction.
func (d *DB) Commit(ctx context.Context, cs domain.ChangeSet) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := savePlatform(ctx, tx, cs.Platform); err != nil {
		return err
	}
	if cs.RemovedTaskID != 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, cs.RemovedTaskID); err != nil {
			return fmt.Errorf("delete task %d: %w", cs.RemovedTaskID, err)
		}
	}
	if cs.Upsert != nil {
		if err := upsertTask(ctx, tx, cs.Upsert); err != nil {
			return err
		}
	}
	for _, e := range cs.Entries {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	if r := cs.Rating; r != nil {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ratings (address, total) VALUES (?, ?)
			 ON CONFLICT(address) DO UPDATE SET total=excluded.total`,
			string(r.Address), r.Total)
		if err != nil {
			return fmt.Errorf("save rating: %w", err)
		}
	}
	if a := cs.Audit; a.ID != "" {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO audit (id, op, actor, task_id, inputs_hash, at, signature) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Op, string(a.Actor), nullableID(a.TaskID), a.InputsHash, a.At.Unix(), a.Signature)
		if err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func savePlatform(ctx context.Context, tx execer, ps domain.PlatformState) error {
	kv := [][2]string{
		{keyOwner, string(ps.Owner)},
		{keyFeePercentage, strconv.FormatInt(ps.FeePercentage, 10)},
		{keyTotalFees, strconv.FormatInt(ps.TotalFees, 10)},
		{keyNextTaskID, strconv.FormatUint(ps.NextTaskID, 10)},
	}
	for _, p := range kv {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO platform (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			p[0], p[1])
		if err != nil {
			return fmt.Errorf("save platform %s: %w", p[0], err)
		}
	}
	return nil
}

func upsertTask(ctx context.Context, tx execer, t *domain.Task) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (id, author, title, description, task_type, reward, deposit, fee, escrowed,
			status, assignee, result, created_at, submitted_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			escrowed=excluded.escrowed,
			status=excluded.status,
			assignee=excluded.assignee,
			result=excluded.result,
			submitted_at=excluded.submitted_at,
			completed_at=excluded.completed_at`,
		t.ID, string(t.Author), t.Title, t.Description, string(t.Type),
		t.Reward, t.Deposit, t.Fee, t.Escrowed,
		string(t.Status), string(t.Assignee), t.Result,
		t.CreatedAt.Unix(), nullableUnix(t.SubmittedAt), nullableUnix(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save task %d: %w", t.ID, err)
	}

	// Child rows are rewritten wholesale on every save.
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_candidates WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("reset candidates %d: %w", t.ID, err)
	}
	for i, c := range t.Candidates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_candidates (task_id, position, address) VALUES (?, ?, ?)`,
			t.ID, i, string(c)); err != nil {
			return fmt.Errorf("save candidate %d/%d: %w", t.ID, i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM change_requests WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("reset change requests %d: %w", t.ID, err)
	}
	for i, cr := range t.ChangeRequests {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO change_requests (task_id, seq, message, created_at) VALUES (?, ?, ?, ?)`,
			t.ID, i, cr.Message, cr.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("save change request %d/%d: %w", t.ID, i, err)
		}
	}
	return nil
}

func insertEntry(ctx context.Context, tx execer, e domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger (id, timestamp, type, entry_type, account, amount, task_id, description, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Unix(), string(e.Type), string(e.EntryType),
		e.Account, e.Amount, nullableID(e.TaskID), e.Description, e.Balance,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ─── Load ───────────────────────────────────────────────────────────────────

// Load reads the committed snapshot. ok is false until the first commit.
func (d *DB) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	snap := domain.Snapshot{
		Ratings:  make(map[domain.Address]int64),
		Balances: make(map[string]int64),
	}

	ps, ok, err := d.loadPlatform(ctx)
	if err != nil || !ok {
		return snap, false, err
	}
	snap.Platform = ps

	if snap.Tasks, err = d.loadTasks(ctx); err != nil {
		return snap, false, err
	}
	if err := d.loadRatings(ctx, snap.Ratings); err != nil {
		return snap, false, err
	}
	if err := d.loadBalances(ctx, snap.Balances); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

func (d *DB) loadPlatform(ctx context.Context) (domain.PlatformState, bool, error) {
	var ps domain.PlatformState
	rows, err := d.db.QueryContext(ctx, `SELECT key, value FROM platform`)
	if err != nil {
		return ps, false, fmt.Errorf("load platform: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return ps, false, err
		}
		switch key {
		case keyOwner:
			ps.Owner = domain.Address(value)
		case keyFeePercentage:
			ps.FeePercentage, err = strconv.ParseInt(value, 10, 64)
		case keyTotalFees:
			ps.TotalFees, err = strconv.ParseInt(value, 10, 64)
		case keyNextTaskID:
			ps.NextTaskID, err = strconv.ParseUint(value, 10, 64)
			found = true
		}
		if err != nil {
			return ps, false, fmt.Errorf("platform %s=%q: %w", key, value, err)
		}
	}
	return ps, found, rows.Err()
}

func (d *DB) loadTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, author, title, description, task_type, reward, deposit, fee, escrowed,
			status, assignee, result, created_at, submitted_at, completed_at
		 FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	index := make(map[uint64]int)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(tasks)
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	cands, err := d.db.QueryContext(ctx,
		`SELECT task_id, address FROM task_candidates ORDER BY task_id, position`)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer cands.Close()
	for cands.Next() {
		var id uint64
		var addr string
		if err := cands.Scan(&id, &addr); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			tasks[i].Candidates = append(tasks[i].Candidates, domain.Address(addr))
		}
	}
	if err := cands.Err(); err != nil {
		return nil, err
	}
	cands.Close()

	crs, err := d.db.QueryContext(ctx,
		`SELECT task_id, message, created_at FROM change_requests ORDER BY task_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("load change requests: %w", err)
	}
	defer crs.Close()
	for crs.Next() {
		var id uint64
		var cr domain.ChangeRequest
		var at sql.NullInt64
		if err := crs.Scan(&id, &cr.Message, &at); err != nil {
			return nil, err
		}
		cr.CreatedAt = fromUnix(at)
		if i, ok := index[id]; ok {
			tasks[i].ChangeRequests = append(tasks[i].ChangeRequests, cr)
		}
	}
	return tasks, crs.Err()
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var author, typ, status, assignee string
	var createdAt, submittedAt, completedAt sql.NullInt64

	err := s.Scan(&t.ID, &author, &t.Title, &t.Description, &typ,
		&t.Reward, &t.Deposit, &t.Fee, &t.Escrowed,
		&status, &assignee, &t.Result, &createdAt, &submittedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	t.Author = domain.Address(author)
	t.Type = domain.TaskType(typ)
	t.Status = domain.TaskStatus(status)
	t.Assignee = domain.Address(assignee)
	t.Candidates = []domain.Address{}
	t.ChangeRequests = []domain.ChangeRequest{}
	t.CreatedAt = fromUnix(createdAt)
	t.SubmittedAt = fromUnix(submittedAt)
	t.CompletedAt = fromUnix(completedAt)
	return &t, nil
}

func (d *DB) loadRatings(ctx context.Context, into map[domain.Address]int64) error {
	rows, err := d.db.QueryContext(ctx, `SELECT address, total FROM ratings`)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var addr string
		var total int64
		if err := rows.Scan(&addr, &total); err != nil {
			return err
		}
		into[domain.Address(addr)] = total
	}
	return rows.Err()
}

// loadBalances takes each account's post-balance from its latest entry.
func (d *DB) loadBalances(ctx context.Context, into map[string]int64) error {
	rows, err := d.db.QueryContext(ctx,
		`SELECT account, balance FROM ledger
		 WHERE seq IN (SELECT MAX(seq) FROM ledger GROUP BY account)`)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var acct string
		var bal int64
		if err := rows.Scan(&acct, &bal); err != nil {
			return err
		}
		into[acct] = bal
	}
	return rows.Err()
}

// ─── Ledger and Audit Queries ───────────────────────────────────────────────

// LedgerEntries returns recent ledger entries for an account, newest first.
// A non-positive limit returns every entry.
func (d *DB) LedgerEntries(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, timestamp, type, entry_type, account, amount, task_id, description, balance
		 FROM ledger WHERE account = ? ORDER BY seq DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts sql.NullInt64
		var taskID sql.NullInt64
		var desc sql.NullString
		var typ, entryType string
		err := rows.Scan(&e.ID, &ts, &typ, &entryType, &e.Account,
			&e.Amount, &taskID, &desc, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = fromUnix(ts)
		e.Type = domain.TxType(typ)
		e.EntryType = domain.EntryType(entryType)
		if taskID.Valid {
			e.TaskID = uint64(taskID.Int64)
		}
		if desc.Valid {
			e.Description = desc.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AuditTrail returns audit records oldest first, for one task or, when
// taskID is 0, for the whole platform.
func (d *DB) AuditTrail(ctx context.Context, taskID uint64) ([]domain.AuditRecord, error) {
	query := `SELECT id, op, actor, task_id, inputs_hash, at, signature FROM audit`
	var args []any
	if taskID != 0 {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY at, rowid`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var a domain.AuditRecord
		var actor string
		var id sql.NullInt64
		var at int64
		if err := rows.Scan(&a.ID, &a.Op, &actor, &id, &a.InputsHash, &at, &a.Signature); err != nil {
			return nil, err
		}
		a.Actor = domain.Address(actor)
		if id.Valid {
			a.TaskID = uint64(id.Int64)
		}
		a.At = fromUnix(sql.NullInt64{Int64: at, Valid: true})
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 && taskID != 0 {
		return nil, fmt.Errorf("audit for task %d: %w", taskID, domain.ErrNotFound)
	}
	return out, nil
}
