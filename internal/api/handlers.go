package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskbay/taskbay/internal/app/platform"
	"github.com/taskbay/taskbay/internal/domain"
)

// defaultLedgerLimit bounds /api/ledger responses without ?limit.
const defaultLedgerLimit = 50

func badInput(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, domain.ErrInvalidInput)...)
}

// ─── Request Bodies ─────────────────────────────────────────────────────────

type addTaskRequest struct {
	platform.NewTask
	Value int64 `json:"value"`
}

type assignRequest struct {
	Candidate domain.Address `json:"candidate"`
}

type submitRequest struct {
	Result string `json:"result"`
}

type completeRequest struct {
	Rating *int64 `json:"rating"`
}

type changeRequest struct {
	Message string `json:"message"`
}

type feeRequest struct {
	Percentage *int64 `json:"percentage"`
}

// ─── Platform ───────────────────────────────────────────────────────────────

type platformResponse struct {
	Owner         domain.Address `json:"owner"`
	FeePercentage int64          `json:"fee_percentage"`
	TotalFees     int64          `json:"total_fees"`
	Balance       int64          `json:"balance"`
}

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platformResponse{
		Owner:         s.engine.Owner(),
		FeePercentage: s.engine.FeePercentage(),
		TotalFees:     s.engine.TotalFees(),
		Balance:       s.engine.Balance(),
	})
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Percentage == nil {
		writeError(w, badInput("percentage is required"))
		return
	}
	if err := s.engine.SetPlatformFee(r.Context(), caller(r), *req.Percentage); err != nil {
		writeError(w, err)
		return
	}
	s.handlePlatform(w, r)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	amount, err := s.engine.WithdrawFees(r.Context(), caller(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": amount})
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.engine.GetAllTasks()
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.engine.AddTask(r.Context(), caller(r), req.NewTask, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", task.ID))
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.engine.GetTask(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.engine.GetTask(id)
	if err != nil {
		writeError(w, err)
		return
	}
	who := caller(r)
	actions, err := s.engine.ActionsFor(id, who)
	if err != nil {
		writeError(w, err)
		return
	}
	if actions == nil {
		actions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": id,
		"caller":  who,
		"role":    domain.RoleOf(task, who),
		"actions": actions,
	})
}

// taskOp adapts an engine call that takes only the caller and task id.
func (s *Server) taskOp(op func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		task, err := op(r, caller(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		return s.engine.DeleteTask(r.Context(), actor, id)
	})(w, r)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		return s.engine.ApplyForTask(r.Context(), actor, id)
	})(w, r)
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		return s.engine.UnassignTask(r.Context(), actor, id)
	})(w, r)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		return s.engine.RequestPayment(r.Context(), actor, id)
	})(w, r)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		var req assignRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return s.engine.AssignTask(r.Context(), actor, id, req.Candidate)
	})(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		var req submitRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return s.engine.SubmitResult(r.Context(), actor, id, req.Result)
	})(w, r)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		var req completeRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		if req.Rating == nil {
			return nil, badInput("rating is required")
		}
		return s.engine.CompleteTask(r.Context(), actor, id, *req.Rating)
	})(w, r)
}

func (s *Server) handleRequestChange(w http.ResponseWriter, r *http.Request) {
	s.taskOp(func(r *http.Request, actor domain.Address, id uint64) (*domain.Task, error) {
		var req changeRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return s.engine.RequestChange(r.Context(), actor, id, req.Message)
	})(w, r)
}

// ─── Ratings and Ledger ─────────────────────────────────────────────────────

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(chi.URLParam(r, "address"))
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"rating":  s.engine.GetRating(addr),
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	limit := defaultLedgerLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, badInput("limit %q must be a non-negative integer", raw))
			return
		}
		limit = n
	}

	entries, err := s.engine.History(r.Context(), account, limit)
	if err != nil {
		s.log.Error("ledger query failed", "account", account, "error", err)
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": s.engine.AccountBalance(account),
		"entries": entries,
	})
}
