// Package metrics provides Prometheus metrics for taskbay.
// Counters and gauges for the task lifecycle, escrow custody and fees.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksCreated tracks posted tasks by type.
var TasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskbay",
	Name:      "tasks_created_total",
	Help:      "Total tasks posted.",
}, []string{"type"})

// TasksCompleted tracks completions by path (approved by author, or paid
// out after the review window).
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskbay",
	Name:      "tasks_completed_total",
	Help:      "Total completed tasks.",
}, []string{"path"})

// TasksDeleted tracks tasks deleted and refunded by their author.
var TasksDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "taskbay",
	Name:      "tasks_deleted_total",
	Help:      "Total tasks deleted with refund.",
})

// OperationsRejected tracks failed operations by name and error kind.
var OperationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskbay",
	Name:      "operations_rejected_total",
	Help:      "Total rejected operations.",
}, []string{"op", "kind"})

// ─── Funds ──────────────────────────────────────────────────────────────────

// EscrowHeld tracks funds held for open work.
var EscrowHeld = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "taskbay",
	Name:      "escrow_held",
	Help:      "Funds currently held in task escrow.",
})

// FeesAccrued tracks withdrawable platform fees.
var FeesAccrued = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "taskbay",
	Name:      "fees_accrued",
	Help:      "Platform fees accrued and not yet withdrawn.",
})

// FundsMoved tracks the value of fund movements by kind.
var FundsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskbay",
	Name:      "funds_moved_total",
	Help:      "Total value moved through the ledger by transaction type.",
}, []string{"kind"})
