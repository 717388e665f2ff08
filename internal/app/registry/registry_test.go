package registry

import (
	"errors"
	"testing"

	"github.com/taskbay/taskbay/internal/domain"
)

func newTask(title string) *domain.Task {
	return &domain.Task{Title: title, Status: domain.TaskOpen, Assignee: domain.Unassigned}
}

func TestRegistry_CreateAssignsIncreasingIDs(t *testing.T) {
	r := New()
	for want := uint64(1); want <= 3; want++ {
		if got := r.Create(newTask("t")); got != want {
			t.Errorf("Create() = %d, want %d", got, want)
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistry_IDsNeverReused(t *testing.T) {
	r := New()
	r.Create(newTask("a"))
	id := r.Create(newTask("b"))
	if _, err := r.Remove(id); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if got := r.Create(newTask("c")); got != 3 {
		t.Errorf("Create() after remove = %d, want 3", got)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := New()
	if _, err := r.Get(42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(42) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := New()
	id := r.Create(newTask("orig"))

	got, _ := r.Get(id)
	got.Title = "mutated"
	got.Candidates = append(got.Candidates, "0xA")

	again, _ := r.Get(id)
	if again.Title != "orig" || len(again.Candidates) != 0 {
		t.Errorf("registry state leaked through Get(): %+v", again)
	}
}

func TestRegistry_RemoveLeavesGap(t *testing.T) {
	r := New()
	r.Create(newTask("a"))
	id := r.Create(newTask("b"))
	r.Create(newTask("c"))

	removed, err := r.Remove(id)
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if removed.Title != "b" {
		t.Errorf("removed title = %q, want b", removed.Title)
	}

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() = %d tasks, want 2", len(list))
	}
	if list[0].ID != 1 || list[1].ID != 3 {
		t.Errorf("List() ids = [%d %d], want [1 3]", list[0].ID, list[1].ID)
	}
	if _, err := r.Get(3); err != nil {
		t.Errorf("Get(3) after gap error: %v", err)
	}
	if _, err := r.Remove(id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Put(t *testing.T) {
	r := New()
	id := r.Create(newTask("a"))

	task, _ := r.Get(id)
	task.Status = domain.TaskAssigned
	if err := r.Put(task); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, _ := r.Get(id)
	if got.Status != domain.TaskAssigned {
		t.Errorf("Status = %s, want ASSIGNED", got.Status)
	}

	if err := r.Put(&domain.Task{ID: 99}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Put(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Restore(t *testing.T) {
	r := New()
	r.Restore([]domain.Task{{ID: 2, Title: "x"}, {ID: 5, Title: "y"}}, 4)

	if r.NextID() != 6 {
		t.Errorf("NextID() = %d, want 6 (past highest restored id)", r.NextID())
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	r.Restore(nil, 9)
	if r.NextID() != 9 || r.Len() != 0 {
		t.Errorf("after empty restore NextID=%d Len=%d, want 9 and 0", r.NextID(), r.Len())
	}
}
