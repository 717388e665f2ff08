// Package domain holds the task marketplace types.
// A Task is a paid unit of work held in escrow:
// post → apply/assign → submit → review (change requests) → complete | delete.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Address identifies a party (author, worker, operator).
type Address string

// Unassigned is the sentinel assignee of a task nobody holds.
const Unassigned Address = "0x0000000000000000000000000000000000000000"

// IsZero reports whether a is empty or the unassigned sentinel.
func (a Address) IsZero() bool {
	return a == "" || a == Unassigned
}

// Equal compares addresses case-insensitively (hex checksum casing is not identity).
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

// TaskStatus tracks the task lifecycle.
type TaskStatus string

const (
	TaskOpen            TaskStatus = "OPEN"
	TaskAssigned        TaskStatus = "ASSIGNED"
	TaskInReview        TaskStatus = "IN_REVIEW"
	TaskChangeRequested TaskStatus = "CHANGE_REQUESTED"
	TaskCompleted       TaskStatus = "COMPLETED"
)

// IsValid checks if the status is one of the lifecycle states.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskOpen, TaskAssigned, TaskInReview, TaskChangeRequested, TaskCompleted:
		return true
	}
	return false
}

// TaskType governs how a task gets assigned.
type TaskType string

const (
	// FirstComeFirstServe assigns the first applicant immediately.
	FirstComeFirstServe TaskType = "FCFS"
	// AuthorSelected collects candidates; the author picks one.
	AuthorSelected TaskType = "AUTHOR_SELECTED"
)

// IsValid checks if the type is known.
func (t TaskType) IsValid() bool {
	return t == FirstComeFirstServe || t == AuthorSelected
}

// Review protocol limits.
const (
	MaxChangeRequests = 3
	ReviewWindow      = 10 * 24 * time.Hour
	MaxRating         = 5
)

// ChangeRequest is an author's rejection of a submission.
type ChangeRequest struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a posted, escrow-backed unit of work.
type Task struct {
	ID             uint64          `json:"id"`
	Author         Address         `json:"author"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Type           TaskType        `json:"task_type"`
	Reward         int64           `json:"reward"`
	Deposit        int64           `json:"deposit"`
	Fee            int64           `json:"fee"`
	Escrowed       int64           `json:"escrowed"`
	Status         TaskStatus      `json:"status"`
	Assignee       Address         `json:"assignee"`
	Candidates     []Address       `json:"candidates"`
	Result         string          `json:"result,omitempty"`
	ChangeRequests []ChangeRequest `json:"change_requests"`
	CreatedAt      time.Time       `json:"created_at"`
	SubmittedAt    time.Time       `json:"submitted_at,omitempty"`
	CompletedAt    time.Time       `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers never alias registry state.
func (t *Task) Clone() *Task {
	c := *t
	c.Candidates = slices.Clone(t.Candidates)
	c.ChangeRequests = slices.Clone(t.ChangeRequests)
	return &c
}

// IsTerminal returns true once the reward has been released.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted
}

// IsAssigned reports whether someone currently holds the task.
func (t *Task) IsAssigned() bool {
	return !t.Assignee.IsZero()
}

// HasCandidate reports whether addr applied for the task.
func (t *Task) HasCandidate(addr Address) bool {
	return slices.ContainsFunc(t.Candidates, addr.Equal)
}

// ReviewElapsed returns how long the current submission has been in review.
func (t *Task) ReviewElapsed(now time.Time) time.Duration {
	if t.SubmittedAt.IsZero() {
		return 0
	}
	return now.Sub(t.SubmittedAt)
}

// ─── Roles ──────────────────────────────────────────────────────────────────

// Role is the relation of an identity to a task.
type Role string

const (
	RoleAuthor    Role = "author"
	RoleAssignee  Role = "assignee"
	RoleCandidate Role = "candidate"
	RoleVisitor   Role = "visitor"
)

// RoleOf classifies actor against the task. Author wins over assignee.
func RoleOf(t *Task, actor Address) Role {
	switch {
	case t.Author.Equal(actor):
		return RoleAuthor
	case t.IsAssigned() && t.Assignee.Equal(actor):
		return RoleAssignee
	case t.HasCandidate(actor):
		return RoleCandidate
	default:
		return RoleVisitor
	}
}
