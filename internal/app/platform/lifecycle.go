package platform

import (
	"context"
	"fmt"
	"slices"

	"github.com/taskbay/taskbay/internal/app/fee"
	"github.com/taskbay/taskbay/internal/app/rating"
	"github.com/taskbay/taskbay/internal/domain"
	"github.com/taskbay/taskbay/internal/infra/metrics"
)

// Operation names, used for audit records, metrics and logs.
const (
	OpAddTask        = "addTask"
	OpApplyForTask   = "applyForTask"
	OpAssignTask     = "assignTask"
	OpUnassignTask   = "unassignTask"
	OpSubmitResult   = "submitResult"
	OpCompleteTask   = "completeTask"
	OpRequestPayment = "requestPayment"
	OpRequestChange  = "requestChange"
	OpDeleteTask     = "deleteTask"
	OpSetPlatformFee = "setPlatformFee"
	OpWithdrawFees   = "withdrawFees"
)

func invalidState(t *domain.Task, want ...domain.TaskStatus) error {
	return fmt.Errorf("task %d is %s, want %v: %w", t.ID, t.Status, want, domain.ErrInvalidState)
}

func unauthorized(t *domain.Task, actor domain.Address, role domain.Role) error {
	return fmt.Errorf("task %d: %s is not the %s: %w", t.ID, actor, role, domain.ErrUnauthorized)
}

// load fetches a working copy of a task. Callers hold e.mu.
func (e *Engine) load(op string, actor domain.Address, id uint64) (*domain.Task, error) {
	t, err := e.tasks.Get(id)
	if err != nil {
		return nil, e.reject(op, actor, id, err)
	}
	return t, nil
}

// transition commits a task state change that moves no funds.
func (e *Engine) transition(ctx context.Context, op string, actor domain.Address, t *domain.Task, inputs any) (*domain.Task, error) {
	cs := domain.ChangeSet{Platform: e.state(), Upsert: t}
	if err := e.commit(ctx, op, actor, t.ID, inputs, cs, e.clock()); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// ─── Creation ───────────────────────────────────────────────────────────────

// AddTask posts a task. value must equal reward + fee(reward) exactly; the
// reward is escrowed for the task and the fee accrues to the platform.
func (e *Engine) AddTask(ctx context.Context, actor domain.Address, req NewTask, value int64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireCaller(actor); err != nil {
		return nil, e.reject(OpAddTask, actor, 0, err)
	}
	if err := validateStruct(req); err != nil {
		return nil, e.reject(OpAddTask, actor, 0, err)
	}
	f, err := fee.ValidateDeposit(req.Reward, value, e.fees.Percentage())
	if err != nil {
		return nil, e.reject(OpAddTask, actor, 0, err)
	}

	now := e.clock()
	id := e.tasks.NextID()
	t := &domain.Task{
		ID:             id,
		Author:         actor,
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Reward:         req.Reward,
		Deposit:        value,
		Fee:            f,
		Escrowed:       req.Reward,
		Status:         domain.TaskOpen,
		Assignee:       domain.Unassigned,
		Candidates:     []domain.Address{},
		ChangeRequests: []domain.ChangeRequest{},
		CreatedAt:      now,
	}

	b := e.custody.Batch(now)
	b.Deposit(id, actor, req.Reward, f)
	if err := b.Err(); err != nil {
		return nil, e.reject(OpAddTask, actor, 0, err)
	}

	ps := e.state()
	ps.NextTaskID = id + 1
	ps.TotalFees += f

	cs := domain.ChangeSet{Platform: ps, Upsert: t, Entries: b.Entries()}
	inputs := struct {
		NewTask
		Value int64 `json:"value"`
	}{req, value}
	if err := e.commit(ctx, OpAddTask, actor, id, inputs, cs, now); err != nil {
		return nil, err
	}
	metrics.TasksCreated.WithLabelValues(string(t.Type)).Inc()
	return t.Clone(), nil
}

// ─── Assignment ─────────────────────────────────────────────────────────────

// ApplyForTask registers actor's interest. A FirstComeFirstServe task is
// assigned to the first applicant; an AuthorSelected task records the
// applicant as a candidate (repeat applications are a no-op).
func (e *Engine) ApplyForTask(ctx context.Context, actor domain.Address, id uint64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireCaller(actor); err != nil {
		return nil, e.reject(OpApplyForTask, actor, id, err)
	}
	t, err := e.load(OpApplyForTask, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskOpen {
		return nil, e.reject(OpApplyForTask, actor, id, invalidState(t, domain.TaskOpen))
	}

	switch t.Type {
	case domain.FirstComeFirstServe:
		t.Assignee = actor
		t.Status = domain.TaskAssigned
	case domain.AuthorSelected:
		if t.HasCandidate(actor) {
			return t, nil
		}
		t.Candidates = append(t.Candidates, actor)
	}
	return e.transition(ctx, OpApplyForTask, actor, t, map[string]any{"id": id})
}

// AssignTask lets the author of an AuthorSelected task pick a candidate.
func (e *Engine) AssignTask(ctx context.Context, actor domain.Address, id uint64, candidate domain.Address) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.load(OpAssignTask, actor, id)
	if err != nil {
		return nil, err
	}
	switch {
	case t.Status != domain.TaskOpen:
		return nil, e.reject(OpAssignTask, actor, id, invalidState(t, domain.TaskOpen))
	case t.Type != domain.AuthorSelected:
		return nil, e.reject(OpAssignTask, actor, id,
			fmt.Errorf("task %d is %s, only %s tasks are assigned by the author: %w", id, t.Type, domain.AuthorSelected, domain.ErrInvalidState))
	case !t.Author.Equal(actor):
		return nil, e.reject(OpAssignTask, actor, id, unauthorized(t, actor, domain.RoleAuthor))
	case candidate.IsZero() || !t.HasCandidate(candidate):
		return nil, e.reject(OpAssignTask, actor, id,
			fmt.Errorf("task %d: %s never applied: %w", id, candidate, domain.ErrInvalidCandidate))
	}

	// Keep the address as the candidate applied with it.
	t.Assignee = t.Candidates[slices.IndexFunc(t.Candidates, candidate.Equal)]
	t.Status = domain.TaskAssigned
	return e.transition(ctx, OpAssignTask, actor, t, map[string]any{"id": id, "candidate": candidate})
}

// UnassignTask returns an assigned task to Open. The author or the assignee
// may do this; the candidate list is kept.
func (e *Engine) UnassignTask(ctx context.Context, actor domain.Address, id uint64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.load(OpUnassignTask, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskAssigned {
		return nil, e.reject(OpUnassignTask, actor, id,
			fmt.Errorf("task %d is %s: %w", id, t.Status, domain.ErrNotAssigned))
	}
	if role := domain.RoleOf(t, actor); role != domain.RoleAuthor && role != domain.RoleAssignee {
		return nil, e.reject(OpUnassignTask, actor, id,
			fmt.Errorf("task %d: %s is neither author nor assignee: %w", id, actor, domain.ErrUnauthorized))
	}

	t.Assignee = domain.Unassigned
	t.Status = domain.TaskOpen
	return e.transition(ctx, OpUnassignTask, actor, t, map[string]any{"id": id})
}

// ─── Review Cycle ───────────────────────────────────────────────────────────

// SubmitResult hands work in for review, from Assigned or after a change
// request. Resubmission overwrites the result and restarts the review window.
func (e *Engine) SubmitResult(ctx context.Context, actor domain.Address, id uint64, result string) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.load(OpSubmitResult, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskAssigned && t.Status != domain.TaskChangeRequested {
		return nil, e.reject(OpSubmitResult, actor, id, invalidState(t, domain.TaskAssigned, domain.TaskChangeRequested))
	}
	if !t.Assignee.Equal(actor) {
		return nil, e.reject(OpSubmitResult, actor, id, unauthorized(t, actor, domain.RoleAssignee))
	}

	t.Result = result
	t.SubmittedAt = e.clock()
	t.Status = domain.TaskInReview
	return e.transition(ctx, OpSubmitResult, actor, t, map[string]any{"id": id, "result": result})
}

// RequestChange rejects the submission with feedback. At most
// domain.MaxChangeRequests may be made per task.
func (e *Engine) RequestChange(ctx context.Context, actor domain.Address, id uint64, message string) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.load(OpRequestChange, actor, id)
	if err != nil {
		return nil, err
	}
	switch {
	case t.Status != domain.TaskInReview:
		return nil, e.reject(OpRequestChange, actor, id, invalidState(t, domain.TaskInReview))
	case !t.Author.Equal(actor):
		return nil, e.reject(OpRequestChange, actor, id, unauthorized(t, actor, domain.RoleAuthor))
	case len(t.ChangeRequests) >= domain.MaxChangeRequests:
		return nil, e.reject(OpRequestChange, actor, id,
			fmt.Errorf("task %d already has %d change requests: %w", id, len(t.ChangeRequests), domain.ErrLimitExceeded))
	}

	t.ChangeRequests = append(t.ChangeRequests, domain.ChangeRequest{Message: message, CreatedAt: e.clock()})
	t.Status = domain.TaskChangeRequested
	return e.transition(ctx, OpRequestChange, actor, t, map[string]any{"id": id, "message": message})
}

// ─── Settlement ─────────────────────────────────────────────────────────────

// CompleteTask approves the submission: the reward is released to the
// assignee and score is added to the assignee's rating.
func (e *Engine) CompleteTask(ctx context.Context, actor domain.Address, id uint64, score int64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := rating.Validate(score); err != nil {
		return nil, e.reject(OpCompleteTask, actor, id, err)
	}
	t, err := e.load(OpCompleteTask, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskInReview {
		return nil, e.reject(OpCompleteTask, actor, id, invalidState(t, domain.TaskInReview))
	}
	if !t.Author.Equal(actor) {
		return nil, e.reject(OpCompleteTask, actor, id, unauthorized(t, actor, domain.RoleAuthor))
	}

	u := e.ratings.Preview(t.Assignee, score)
	out, err := e.settle(ctx, OpCompleteTask, actor, t, &u, map[string]any{"id": id, "rating": score})
	if err != nil {
		return nil, err
	}
	metrics.TasksCompleted.WithLabelValues("approved").Inc()
	return out, nil
}

// RequestPayment lets the assignee collect the reward once a submission has
// sat in review for domain.ReviewWindow without a decision. No rating is
// recorded.
func (e *Engine) RequestPayment(ctx context.Context, actor domain.Address, id uint64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.load(OpRequestPayment, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskInReview {
		return nil, e.reject(OpRequestPayment, actor, id, invalidState(t, domain.TaskInReview))
	}
	if !t.Assignee.Equal(actor) {
		return nil, e.reject(OpRequestPayment, actor, id, unauthorized(t, actor, domain.RoleAssignee))
	}
	if elapsed := t.ReviewElapsed(e.clock()); elapsed < domain.ReviewWindow {
		return nil, e.reject(OpRequestPayment, actor, id,
			fmt.Errorf("task %d in review for %s of %s: %w", id, elapsed, domain.ReviewWindow, domain.ErrTooEarly))
	}

	out, err := e.settle(ctx, OpRequestPayment, actor, t, nil, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	metrics.TasksCompleted.WithLabelValues("timeout").Inc()
	return out, nil
}

// settle releases the escrow to the assignee and completes the task.
func (e *Engine) settle(ctx context.Context, op string, actor domain.Address, t *domain.Task, u *domain.RatingUpdate, inputs any) (*domain.Task, error) {
	now := e.clock()
	b := e.custody.Batch(now)
	if err := b.Release(t.ID, t.Assignee, t.Escrowed, t.Author); err != nil {
		return nil, e.reject(op, actor, t.ID, err)
	}

	t.Escrowed = 0
	t.Status = domain.TaskCompleted
	t.CompletedAt = now

	cs := domain.ChangeSet{Platform: e.state(), Upsert: t, Entries: b.Entries(), Rating: u}
	if err := e.commit(ctx, op, actor, t.ID, inputs, cs, now); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// DeleteTask withdraws an open, unassigned task: the escrowed reward is
// refunded to the author and the task leaves the registry. The fee is kept.
func (e *Engine) DeleteTask(ctx context.Context, actor domain.Address, id uint64) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.load(OpDeleteTask, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskOpen || t.IsAssigned() {
		return nil, e.reject(OpDeleteTask, actor, id, invalidState(t, domain.TaskOpen))
	}
	if !t.Author.Equal(actor) {
		return nil, e.reject(OpDeleteTask, actor, id, unauthorized(t, actor, domain.RoleAuthor))
	}

	now := e.clock()
	b := e.custody.Batch(now)
	b.Refund(t.ID, t.Author)
	if err := b.Err(); err != nil {
		return nil, e.reject(OpDeleteTask, actor, id, err)
	}
	t.Escrowed = 0

	cs := domain.ChangeSet{Platform: e.state(), RemovedTaskID: id, Entries: b.Entries()}
	if err := e.commit(ctx, OpDeleteTask, actor, id, map[string]any{"id": id}, cs, now); err != nil {
		return nil, err
	}
	metrics.TasksDeleted.Inc()
	return t.Clone(), nil
}

// ─── Operator ───────────────────────────────────────────────────────────────

// SetPlatformFee changes the fee rate for future deposits.
func (e *Engine) SetPlatformFee(ctx context.Context, actor domain.Address, pct int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.fees.CheckSetPercentage(actor, pct); err != nil {
		return e.reject(OpSetPlatformFee, actor, 0, err)
	}
	ps := e.state()
	ps.FeePercentage = pct
	cs := domain.ChangeSet{Platform: ps}
	return e.commit(ctx, OpSetPlatformFee, actor, 0, map[string]any{"percentage": pct}, cs, e.clock())
}

// WithdrawFees pays all accrued fees to the operator and returns the amount.
// Withdrawing a zero balance succeeds and moves nothing.
func (e *Engine) WithdrawFees(ctx context.Context, actor domain.Address) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount, err := e.fees.CheckWithdraw(actor)
	if err != nil {
		return 0, e.reject(OpWithdrawFees, actor, 0, err)
	}
	now := e.clock()
	b := e.custody.Batch(now)
	if err := b.Withdraw(actor, amount); err != nil {
		return 0, e.reject(OpWithdrawFees, actor, 0, err)
	}
	ps := e.state()
	ps.TotalFees = 0
	cs := domain.ChangeSet{Platform: ps, Entries: b.Entries()}
	if err := e.commit(ctx, OpWithdrawFees, actor, 0, map[string]any{"amount": amount}, cs, now); err != nil {
		return 0, err
	}
	return amount, nil
}
