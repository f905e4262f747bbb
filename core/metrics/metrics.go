package metrics

import "time"

// TransitionRecord is a committed job status change.
type TransitionRecord struct {
	JobID        string
	Tier         string
	From         string
	To           string
	Level        int
	TechnicianID string
	Reason       string
	Latency      time.Duration
	Time         time.Time
}

// MetricsSink records job transitions for observability purposes.
type MetricsSink interface {
	RecordTransition(rec TransitionRecord) error
}

// BroadcastRecord describes one round of offers.
type BroadcastRecord struct {
	JobID      string
	Tier       string
	Level      int
	Candidates int
	NearestKm  float64
	Time       time.Time
}

// BroadcastRecorder records broadcast rounds.
type BroadcastRecorder interface {
	RecordBroadcast(rec BroadcastRecord) error
}

// EscalationRecord captures a job climbing one escalation level.
type EscalationRecord struct {
	JobID     string
	Tier      string
	Level     int
	Immediate bool
	Time      time.Time
}

// EscalationRecorder records escalations.
type EscalationRecorder interface {
	RecordEscalation(rec EscalationRecord) error
}

// NotifyFailureRecord is an offer or alert that could not be delivered.
type NotifyFailureRecord struct {
	JobID   string
	Channel string
	Error   string
	Time    time.Time
}

// NotifyFailureRecorder records delivery failures.
type NotifyFailureRecorder interface {
	RecordNotifyFailure(rec NotifyFailureRecord) error
}

// FleetSizeRecorder records how many technicians are registered and how
// many of them can take work right now.
type FleetSizeRecorder interface {
	RecordFleetSize(total, available int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransition(TransitionRecord) error { return nil }

func (NopSink) RecordBroadcast(BroadcastRecord) error         { return nil }
func (NopSink) RecordEscalation(EscalationRecord) error       { return nil }
func (NopSink) RecordNotifyFailure(NotifyFailureRecord) error { return nil }
func (NopSink) RecordFleetSize(int, int) error                { return nil }
