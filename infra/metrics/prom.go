package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/techdispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records sink-level observations in Prometheus metrics. The
// per-job counters maintained by the coordinator live in core/dispatch;
// these cover outcomes, broadcast sizes and the technician pool.
type PromSink struct {
	outcomes  *prometheus.CounterVec
	broadcast *prometheus.HistogramVec
	immediate *prometheus.CounterVec
	total     prometheus.Gauge
	available prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_job_outcomes_total",
		Help: "Jobs reaching accepted or a terminal status",
	}, []string{"tier", "status"})
	broadcast := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_broadcast_size",
		Help:    "Number of technicians offered a job in one round",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	}, []string{"tier", "level"})
	immediate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_immediate_escalations_total",
		Help: "Escalations triggered by an empty candidate set",
	}, []string{"tier"})
	total := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "technicians_registered",
		Help: "Technicians known to the directory",
	})
	available := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "technicians_available",
		Help: "Technicians online and not reserved",
	})

	var err error
	if outcomes, err = register(reg, outcomes); err != nil {
		return nil, err
	}
	if broadcast, err = register(reg, broadcast); err != nil {
		return nil, err
	}
	if immediate, err = register(reg, immediate); err != nil {
		return nil, err
	}
	if total, err = register(reg, total); err != nil {
		return nil, err
	}
	if available, err = register(reg, available); err != nil {
		return nil, err
	}
	return &PromSink{outcomes: outcomes, broadcast: broadcast, immediate: immediate, total: total, available: available}, nil
}

// register returns the existing collector when c was already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTransition counts accepted and terminal outcomes.
func (s *PromSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	switch rec.To {
	case "accepted", "completed", "cancelled", "unmatched":
		s.outcomes.WithLabelValues(rec.Tier, rec.To).Inc()
	}
	return nil
}

// RecordBroadcast observes the size of the round.
func (s *PromSink) RecordBroadcast(rec coremetrics.BroadcastRecord) error {
	s.broadcast.WithLabelValues(rec.Tier, strconv.Itoa(rec.Level)).Observe(float64(rec.Candidates))
	return nil
}

// RecordEscalation counts escalations caused by an empty level.
func (s *PromSink) RecordEscalation(rec coremetrics.EscalationRecord) error {
	if rec.Immediate {
		s.immediate.WithLabelValues(rec.Tier).Inc()
	}
	return nil
}

// RecordFleetSize sets the technician gauges.
func (s *PromSink) RecordFleetSize(total, available int) error {
	s.total.Set(float64(total))
	s.available.Set(float64(available))
	return nil
}
