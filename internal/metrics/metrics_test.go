package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.GoalsPlanned.WithLabelValues("build-on-push").Inc()
	m.StateTransitions.WithLabelValues("planned", "requested").Inc()
	m.SchedulerLaunches.WithLabelValues("subprocess", "success").Inc()
	m.LogFlushFailures.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"sdm_goals_planned_total",
		"sdm_goal_state_transitions_total",
		"sdm_dispatch_duration_seconds",
		"sdm_scheduler_launches_total",
		"sdm_progress_log_flush_failures_total",
	} {
		if !names[want] {
			t.Errorf("missing metric family %q", want)
		}
	}
}
