package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskbay/taskbay/internal/app/platform"
	"github.com/taskbay/taskbay/internal/daemon"
	"github.com/taskbay/taskbay/internal/domain"
	"github.com/taskbay/taskbay/internal/infra/sqlite"
)

// actAs is the identity mutating commands act on behalf of (--as).
var actAs string

// local is an engine restored from the on-disk store.
type local struct {
	dir    string
	db     *sqlite.DB
	engine *platform.Engine
}

func (l *local) Close() { _ = l.db.Close() }

// openLocal loads config and restores the engine. CLI logging stays at warn
// unless the config asks for debug.
func openLocal(ctx context.Context) (*local, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if cfg.Logging.Level == "debug" {
		level = "debug"
	}
	db, engine, err := daemon.OpenEngine(ctx, cfg, daemon.NewLogger(level, os.Stderr))
	if err != nil {
		return nil, err
	}
	dir := cfg.Store.Dir
	if dir == "" {
		dir = daemon.Home()
	}
	return &local{dir: dir, db: db, engine: engine}, nil
}

// caller returns the --as identity or an error when it is missing.
func caller() (domain.Address, error) {
	if strings.TrimSpace(actAs) == "" {
		return "", errors.New("--as <address> is required for this command")
	}
	return domain.Address(strings.TrimSpace(actAs)), nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("task id %q is not a number", s)
	}
	return id, nil
}

func parseTaskType(s string) (domain.TaskType, error) {
	switch strings.ToLower(s) {
	case "fcfs", "first-come", "firstcomefirstserve":
		return domain.FirstComeFirstServe, nil
	case "author", "author-selected", "authorselected":
		return domain.AuthorSelected, nil
	}
	return "", fmt.Errorf("unknown task type %q (want fcfs or author)", s)
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }

func printTask(w io.Writer, t *domain.Task) {
	fmt.Fprintf(w, "Task:        #%d\n", t.ID)
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(w, "Type:        %s\n", t.Type)
	fmt.Fprintf(w, "Status:      %s\n", t.Status)
	fmt.Fprintf(w, "Author:      %s\n", t.Author)
	if t.IsAssigned() {
		fmt.Fprintf(w, "Assignee:    %s\n", t.Assignee)
	}
	if len(t.Candidates) > 0 {
		fmt.Fprintf(w, "Candidates:  %s\n", joinAddrs(t.Candidates))
	}
	fmt.Fprintf(w, "Reward:      %d (deposit %d, fee %d, escrowed %d)\n", t.Reward, t.Deposit, t.Fee, t.Escrowed)
	if t.Result != "" {
		fmt.Fprintf(w, "Result:      %s\n", t.Result)
	}
	for i, cr := range t.ChangeRequests {
		fmt.Fprintf(w, "Change %d/%d: %s (%s)\n", i+1, domain.MaxChangeRequests, cr.Message, cr.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "Created:     %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if !t.SubmittedAt.IsZero() {
		fmt.Fprintf(w, "Submitted:   %s\n", t.SubmittedAt.Format("2006-01-02 15:04:05"))
	}
	if !t.CompletedAt.IsZero() {
		fmt.Fprintf(w, "Completed:   %s\n", t.CompletedAt.Format("2006-01-02 15:04:05"))
	}
}

func joinAddrs(addrs []domain.Address) string {
	s := make([]string, len(addrs))
	for i, a := range addrs {
		s[i] = string(a)
	}
	return strings.Join(s, ", ")
}
