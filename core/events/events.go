package events

import (
	"time"

	"github.com/kilianp07/techdispatch/core/model"
)

// Event is implemented by every lifecycle event.
type Event interface {
	EventJobID() string
}

// TransitionEvent is published after a status change has been committed.
// Latency is the time elapsed since the job was created.
type TransitionEvent struct {
	JobID        string
	Tier         model.Tier
	From         model.Status
	To           model.Status
	Level        int
	TechnicianID string
	Reason       string
	Latency      time.Duration
	At           time.Time
}

func (e TransitionEvent) EventJobID() string { return e.JobID }

// BroadcastEvent is published when offers go out for a job.
type BroadcastEvent struct {
	JobID      string
	Tier       model.Tier
	Level      int
	Candidates []model.Candidate
	At         time.Time
}

func (e BroadcastEvent) EventJobID() string { return e.JobID }

// EscalationEvent is published each time a job climbs one level.
// Immediate is true when the level had no candidates at all.
type EscalationEvent struct {
	JobID     string
	Tier      model.Tier
	Level     int
	Immediate bool
	At        time.Time
}

func (e EscalationEvent) EventJobID() string { return e.JobID }

// NotifyFailureEvent reports an offer or admin alert that was not delivered.
type NotifyFailureEvent struct {
	JobID   string
	Channel string
	Err     error
	At      time.Time
}

func (e NotifyFailureEvent) EventJobID() string { return e.JobID }
