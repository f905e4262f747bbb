package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsSubmitted        *prometheus.CounterVec
	jobTransitions       *prometheus.CounterVec
	escalations          *prometheus.CounterVec
	reservationConflicts prometheus.Counter
	acceptLatency        *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	notifyFailures       *prometheus.CounterVec
)

type collectors struct {
	submitted   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	escalations *prometheus.CounterVec
	conflicts   prometheus.Counter
	latency     *prometheus.HistogramVec
	active      prometheus.Gauge
	notifyFail  *prometheus.CounterVec
}

// newCollectors creates new metric collectors.
func newCollectors() collectors {
	return collectors{
		submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_submitted_total",
				Help: "Number of jobs submitted for dispatch",
			},
			[]string{"tier"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_transitions_total",
				Help: "Number of committed job status transitions",
			},
			[]string{"from", "to"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escalations_total",
				Help: "Number of escalation steps by tier and reached level",
			},
			[]string{"tier", "level"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reservation_conflicts_total",
				Help: "Number of accept attempts rejected because the job or technician was taken",
			},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accept_latency_seconds",
				Help:    "Time from job submission to acceptance",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"tier"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_jobs",
				Help: "Number of jobs not yet in a terminal status",
			},
		),
		notifyFail: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_failures_total",
				Help: "Number of offers or admin alerts that could not be delivered",
			},
			[]string{"channel"},
		),
	}
}

func (c collectors) install() {
	jobsSubmitted = c.submitted
	jobTransitions = c.transitions
	escalations = c.escalations
	reservationConflicts = c.conflicts
	acceptLatency = c.latency
	activeJobs = c.active
	notifyFailures = c.notifyFail
}

func init() {
	newCollectors().install()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(jobsSubmitted, jobTransitions, escalations, reservationConflicts, acceptLatency, activeJobs, notifyFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().install()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
