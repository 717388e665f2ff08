package platform

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/taskbay/taskbay/internal/domain"
)

func TestActions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := domain.Task{
		ID:       1,
		Author:   author,
		Type:     domain.AuthorSelected,
		Status:   domain.TaskOpen,
		Assignee: domain.Unassigned,
	}

	withCandidates := base
	withCandidates.Candidates = []domain.Address{worker}

	assigned := base
	assigned.Status = domain.TaskAssigned
	assigned.Assignee = worker

	review := assigned
	review.Status = domain.TaskInReview
	review.SubmittedAt = now.Add(-time.Hour)

	overdue := review
	overdue.SubmittedAt = now.Add(-domain.ReviewWindow)

	exhausted := review
	exhausted.ChangeRequests = make([]domain.ChangeRequest, domain.MaxChangeRequests)

	changes := assigned
	changes.Status = domain.TaskChangeRequested

	done := assigned
	done.Status = domain.TaskCompleted

	tests := []struct {
		name  string
		task  domain.Task
		actor domain.Address
		want  []string
	}{
		{"open author no candidates", base, author, []string{OpDeleteTask, OpApplyForTask}},
		{"open author with candidates", withCandidates, author, []string{OpAssignTask, OpDeleteTask, OpApplyForTask}},
		{"open visitor", base, other, []string{OpApplyForTask}},
		{"open candidate", withCandidates, worker, nil},
		{"open candidate other casing", withCandidates, "0xworker", nil},
		{"open anonymous", base, domain.Unassigned, nil},
		{"assigned author", assigned, author, []string{OpUnassignTask}},
		{"assigned worker", assigned, worker, []string{OpUnassignTask, OpSubmitResult}},
		{"assigned visitor", assigned, other, nil},
		{"review author", review, author, []string{OpCompleteTask, OpRequestChange}},
		{"review author at limit", exhausted, author, []string{OpCompleteTask}},
		{"review worker early", review, worker, nil},
		{"review worker overdue", overdue, worker, []string{OpRequestPayment}},
		{"change requested worker", changes, worker, []string{OpSubmitResult}},
		{"change requested author", changes, author, nil},
		{"completed", done, author, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Actions(&tt.task, tt.actor, now)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Actions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActions_OmitsRepeatApplication(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	task := addTask(t, e, domain.AuthorSelected)
	if _, err := e.ApplyForTask(ctx, worker, task.ID); err != nil {
		t.Fatalf("ApplyForTask() error: %v", err)
	}

	got, err := e.ActionsFor(task.ID, worker)
	if err != nil {
		t.Fatalf("ActionsFor() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ActionsFor(candidate) = %v, want none", got)
	}

	// A second application succeeds but leaves the task as it was.
	again, err := e.ApplyForTask(ctx, worker, task.ID)
	if err != nil {
		t.Fatalf("repeat ApplyForTask() error: %v", err)
	}
	if len(again.Candidates) != 1 || again.Status != domain.TaskOpen {
		t.Errorf("repeat application changed task: candidates=%v status=%s", again.Candidates, again.Status)
	}
}

func TestActionsFor(t *testing.T) {
	e, clk := newTestEngine(t)
	task := inReview(t, e)

	got, err := e.ActionsFor(task.ID, worker)
	if err != nil {
		t.Fatalf("ActionsFor() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ActionsFor(worker) = %v, want none before the review window", got)
	}

	clk.Advance(domain.ReviewWindow)
	got, _ = e.ActionsFor(task.ID, worker)
	if !reflect.DeepEqual(got, []string{OpRequestPayment}) {
		t.Errorf("ActionsFor(worker) = %v, want [%s]", got, OpRequestPayment)
	}
	if _, err := e.RequestPayment(context.Background(), worker, task.ID); err != nil {
		t.Errorf("advertised action failed: %v", err)
	}

	if _, err := e.ActionsFor(42, worker); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ActionsFor(42) error = %v, want ErrNotFound", err)
	}
}
