// Package sqlite provides SQLite-based persistent storage for taskbay.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes commits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// PingContext checks database connectivity with a deadline.
func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Platform scalars: owner, fee percentage, accrued fees, next task id.
		`CREATE TABLE IF NOT EXISTS platform (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id           INTEGER PRIMARY KEY,
			author       TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			task_type    TEXT NOT NULL,
			reward       INTEGER NOT NULL,
			deposit      INTEGER NOT NULL,
			fee          INTEGER NOT NULL,
			escrowed     INTEGER NOT NULL,
			status       TEXT NOT NULL,
			assignee     TEXT NOT NULL,
			result       TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			submitted_at INTEGER,
			completed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_author ON tasks(author)`,

		// Candidates keep application order.
		`CREATE TABLE IF NOT EXISTS task_candidates (
			task_id  INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			address  TEXT NOT NULL,
			PRIMARY KEY (task_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS change_requests (
			task_id    INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			message    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (task_id, seq)
		)`,

		// Double-entry ledger; entries outlive deleted tasks.
		`CREATE TABLE IF NOT EXISTS ledger (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			timestamp   INTEGER NOT NULL,
			type        TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			account     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			task_id     INTEGER,
			description TEXT,
			balance     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger(account)`,

		`CREATE TABLE IF NOT EXISTS ratings (
			address TEXT PRIMARY KEY,
			total   INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS audit (
			id          TEXT PRIMARY KEY,
			op          TEXT NOT NULL,
			actor       TEXT NOT NULL,
			task_id     INTEGER,
			inputs_hash TEXT NOT NULL,
			at          INTEGER NOT NULL,
			signature   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_task ON audit(task_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

func nullableID(id uint64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}
