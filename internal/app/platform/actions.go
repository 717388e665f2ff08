package platform

import (
	"time"

	"github.com/taskbay/taskbay/internal/domain"
)

// Actions lists the operations through which actor could change a task right
// now. Calls that would succeed without effect are left out, such as a
// candidate applying again. Presentation layers use it to decide which
// controls to show.
func Actions(t *domain.Task, actor domain.Address, now time.Time) []string {
	role := domain.RoleOf(t, actor)
	var out []string

	switch t.Status {
	case domain.TaskOpen:
		if role == domain.RoleAuthor {
			if t.Type == domain.AuthorSelected && len(t.Candidates) > 0 {
				out = append(out, OpAssignTask)
			}
			if !t.IsAssigned() {
				out = append(out, OpDeleteTask)
			}
		}
		if !actor.IsZero() && role != domain.RoleCandidate {
			out = append(out, OpApplyForTask)
		}
	case domain.TaskAssigned:
		if role == domain.RoleAuthor || role == domain.RoleAssignee {
			out = append(out, OpUnassignTask)
		}
		if t.Assignee.Equal(actor) {
			out = append(out, OpSubmitResult)
		}
	case domain.TaskInReview:
		if role == domain.RoleAuthor {
			out = append(out, OpCompleteTask)
			if len(t.ChangeRequests) < domain.MaxChangeRequests {
				out = append(out, OpRequestChange)
			}
		}
		if t.Assignee.Equal(actor) && t.ReviewElapsed(now) >= domain.ReviewWindow {
			out = append(out, OpRequestPayment)
		}
	case domain.TaskChangeRequested:
		if t.Assignee.Equal(actor) {
			out = append(out, OpSubmitResult)
		}
	}
	return out
}

// ActionsFor looks a task up and lists actor's legal operations on it.
func (e *Engine) ActionsFor(id uint64, actor domain.Address) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tasks.Get(id)
	if err != nil {
		return nil, err
	}
	return Actions(t, actor, e.clock()), nil
}
