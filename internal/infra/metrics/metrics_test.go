package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_Registered(t *testing.T) {
	// promauto registers with the default registry; vectors only show up
	// once a label set has been observed.
	TasksCreated.WithLabelValues("FCFS").Inc()
	TasksCompleted.WithLabelValues("approved").Inc()
	TasksDeleted.Inc()
	OperationsRejected.WithLabelValues("apply", "InvalidState").Inc()
	EscrowHeld.Set(100)
	FeesAccrued.Set(1)
	FundsMoved.WithLabelValues("DEPOSIT").Add(100)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"taskbay_tasks_created_total",
		"taskbay_tasks_completed_total",
		"taskbay_tasks_deleted_total",
		"taskbay_operations_rejected_total",
		"taskbay_escrow_held",
		"taskbay_fees_accrued",
		"taskbay_funds_moved_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestGauges_Set(t *testing.T) {
	EscrowHeld.Set(250)

	families, _ := prometheus.DefaultGatherer.Gather()
	for _, f := range families {
		if f.GetName() != "taskbay_escrow_held" {
			continue
		}
		if got := f.GetMetric()[0].GetGauge().GetValue(); got != 250 {
			t.Errorf("escrow_held = %v, want 250", got)
		}
		return
	}
	t.Error("taskbay_escrow_held not gathered")
}
