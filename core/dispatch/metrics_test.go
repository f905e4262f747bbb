package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// touch metrics so they are exported
	jobsSubmitted.WithLabelValues("urgent").Inc()
	jobTransitions.WithLabelValues("broadcasting", "accepted").Inc()
	escalations.WithLabelValues("urgent", "1").Inc()
	reservationConflicts.Inc()
	acceptLatency.WithLabelValues("urgent").Observe(12)
	activeJobs.Set(1)
	notifyFailures.WithLabelValues("offer").Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	expected := []string{
		"jobs_submitted_total",
		"job_transitions_total",
		"escalations_total",
		"reservation_conflicts_total",
		"accept_latency_seconds",
		"active_jobs",
		"notify_failures_total",
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
