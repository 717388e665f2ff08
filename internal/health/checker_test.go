package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskbay/taskbay/internal/infra/sqlite"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB(t *testing.T) (*sqlite.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func solvent() error { return nil }

func statusOf(c *Checker, name string) (Status, bool) {
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s, true
		}
	}
	return Status{}, false
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, solvent, dir, 0, discard)
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, solvent, dir, time.Minute, discard)
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, solvent, dir, time.Minute, discard)

	// No statuses yet: vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_SolvencyFailure(t *testing.T) {
	db, dir := newTestDB(t)
	broken := func() error { return errors.New("ledger unbalanced: sum = 3") }

	c := NewChecker(db, broken, dir, time.Minute, discard)
	c.runAll(context.Background())

	s, ok := statusOf(c, "solvency")
	if !ok {
		t.Fatal("solvency check not found in statuses")
	}
	if s.Healthy || s.Error == "" {
		t.Errorf("solvency status = %+v, want unhealthy with error", s)
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when solvency fails")
	}
}

func TestChecker_SQLiteClosed(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, solvent, dir, time.Minute, discard)
	db.Close()

	c.runAll(context.Background())
	if s, _ := statusOf(c, "sqlite"); s.Healthy {
		t.Error("sqlite check should fail on a closed database")
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	db, _ := newTestDB(t)
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(db, solvent, path, time.Minute, discard)
	c.runAll(context.Background())

	if s, _ := statusOf(c, "data_dir"); s.Healthy {
		t.Error("data_dir should fail when path is a file")
	}
}

func TestChecker_FailingCheck(t *testing.T) {
	c := &Checker{
		log: discard,
		checks: []Check{
			{
				Name: "always_fail",
				CheckFn: func(ctx context.Context) error {
					return os.ErrPermission
				},
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("error message should be populated")
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, solvent, dir, time.Minute, discard)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()

	s1[0].Healthy = false
	if !s2[0].Healthy {
		t.Error("Statuses() should return a copy, not a reference")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, solvent, dir, 10*time.Millisecond, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if len(c.Statuses()) != 3 {
		t.Errorf("Statuses() = %d, want 3 after Run", len(c.Statuses()))
	}
}
