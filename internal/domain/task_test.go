package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// ─── Task Tests ─────────────────────────────────────────────────────────────

func TestTaskStatus_IsValid(t *testing.T) {
	statuses := []TaskStatus{
		TaskOpen, TaskAssigned, TaskInReview,
		TaskChangeRequested, TaskCompleted,
	}
	seen := make(map[TaskStatus]bool)
	for _, s := range statuses {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
		if seen[s] {
			t.Errorf("duplicate TaskStatus: %s", s)
		}
		seen[s] = true
	}
	if TaskStatus("CANCELLED").IsValid() {
		t.Error("unknown status should be invalid")
	}
}

func TestTaskType_IsValid(t *testing.T) {
	if !FirstComeFirstServe.IsValid() || !AuthorSelected.IsValid() {
		t.Error("both task types should be valid")
	}
	if TaskType("AUCTION").IsValid() {
		t.Error("unknown type should be invalid")
	}
}

func TestTask_IsTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskOpen, false},
		{TaskAssigned, false},
		{TaskInReview, false},
		{TaskChangeRequested, false},
		{TaskCompleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			task := Task{Status: tt.status}
			if got := task.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestTask_Clone(t *testing.T) {
	orig := &Task{
		ID:             1,
		Candidates:     []Address{"0xA"},
		ChangeRequests: []ChangeRequest{{Message: "m"}},
	}
	c := orig.Clone()
	c.Candidates[0] = "0xB"
	c.Candidates = append(c.Candidates, "0xC")
	c.ChangeRequests[0].Message = "changed"

	if orig.Candidates[0] != "0xA" || len(orig.Candidates) != 1 {
		t.Errorf("original candidates mutated: %v", orig.Candidates)
	}
	if orig.ChangeRequests[0].Message != "m" {
		t.Errorf("original change request mutated: %v", orig.ChangeRequests)
	}
}

func TestTask_ReviewElapsed(t *testing.T) {
	now := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	task := Task{}
	if got := task.ReviewElapsed(now); got != 0 {
		t.Errorf("unsubmitted ReviewElapsed() = %v, want 0", got)
	}
	task.SubmittedAt = now.Add(-ReviewWindow)
	if got := task.ReviewElapsed(now); got != ReviewWindow {
		t.Errorf("ReviewElapsed() = %v, want %v", got, ReviewWindow)
	}
}

// ─── Address Tests ──────────────────────────────────────────────────────────

func TestAddress(t *testing.T) {
	if !Address("").IsZero() || !Unassigned.IsZero() {
		t.Error("empty and unassigned addresses should be zero")
	}
	if Address("0xAbC").IsZero() {
		t.Error("real address reported as zero")
	}
	if !Address("0xABC").Equal("0xabc") {
		t.Error("Equal() should ignore hex casing")
	}
	if Address("0xABC").Equal("0xABD") {
		t.Error("different addresses compared equal")
	}
}

func TestRoleOf(t *testing.T) {
	task := &Task{
		Author:     "0xAuthor",
		Assignee:   "0xWorker",
		Candidates: []Address{"0xWorker", "0xCand"},
	}
	tests := []struct {
		actor Address
		want  Role
	}{
		{"0xAuthor", RoleAuthor},
		{"0xauthor", RoleAuthor},
		{"0xWorker", RoleAssignee},
		{"0xCand", RoleCandidate},
		{"0xStranger", RoleVisitor},
		{Unassigned, RoleVisitor},
	}
	for _, tt := range tests {
		if got := RoleOf(task, tt.actor); got != tt.want {
			t.Errorf("RoleOf(%s) = %s, want %s", tt.actor, got, tt.want)
		}
	}

	// The unassigned sentinel never matches an unassigned task's assignee.
	open := &Task{Author: "0xAuthor", Assignee: Unassigned}
	if got := RoleOf(open, Unassigned); got != RoleVisitor {
		t.Errorf("RoleOf(zero) on open task = %s, want visitor", got)
	}
}

// ─── Ledger Tests ───────────────────────────────────────────────────────────

func TestAccounts(t *testing.T) {
	if got := EscrowAccount(7); got != "escrow:7" {
		t.Errorf("EscrowAccount(7) = %q", got)
	}
	if got := ExternalAccount("0xA"); got != "external:0xa" {
		t.Errorf("ExternalAccount() = %q", got)
	}
	if ExternalAccount("0xAbC") != ExternalAccount("0xabc") {
		t.Error("ExternalAccount() should not depend on address casing")
	}
}

func TestNormalizeAccount(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"external:0xWorker", "external:0xworker"},
		{"external:0xworker", "external:0xworker"},
		{"escrow:7", "escrow:7"},
		{FeeAccount, FeeAccount},
		{"EXTERNAL:0xA", "EXTERNAL:0xA"},
	}
	for _, tt := range tests {
		if got := NormalizeAccount(tt.in); got != tt.want {
			t.Errorf("NormalizeAccount(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidAmount, "InvalidAmount"},
		{fmt.Errorf("task 3: %w", ErrUnauthorized), "Unauthorized"},
		{fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrTooEarly)), "TooEarly"},
		{ErrLimitExceeded, "LimitExceeded"},
		{ErrInsufficientEscrow, "InsufficientEscrow"},
		{errors.New("disk full"), "Internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrors_AreDistinct(t *testing.T) {
	errs := []error{
		ErrInvalidAmount, ErrUnauthorized, ErrInvalidState, ErrInvalidCandidate,
		ErrNotAssigned, ErrTooEarly, ErrLimitExceeded, ErrNotFound,
		ErrInsufficientEscrow, ErrInvalidRating, ErrInvalidInput,
	}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v matches %v", a, b)
			}
		}
	}
}
