package model

import (
	"fmt"
	"strings"
	"time"
)

// AnyService is the service type that matches technicians of every skill.
// The marketplace books generic emergency call-outs under this tag.
const AnyService = "emergency"

// IsAnyService reports whether serviceType disables skill filtering.
func IsAnyService(serviceType string) bool {
	s := strings.TrimSpace(serviceType)
	return s == "" || strings.EqualFold(s, AnyService)
}

// Job is the dispatch view of a booking.
type Job struct {
	ID                 string    `json:"id"`
	Location           Location  `json:"location"`
	ServiceType        string    `json:"service_type"`
	Tier               Tier      `json:"tier"`
	Status             Status    `json:"status"`
	EscalationLevel    int       `json:"escalation_level"`
	BroadcastSet       []string  `json:"broadcast_set"`
	AssignedTechnician string    `json:"assigned_technician,omitempty"`
	DeadlineAt         time.Time `json:"deadline_at,omitempty"`
	SurgeMultiplier    float64   `json:"surge_multiplier"`
	CancelReason       string    `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	AcceptedAt         time.Time `json:"accepted_at,omitempty"`
	CompletedAt        time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	c := j
	c.BroadcastSet = append([]string(nil), j.BroadcastSet...)
	return c
}

// HasOffered reports whether technicianID was ever notified for this job.
func (j Job) HasOffered(technicianID string) bool {
	for _, id := range j.BroadcastSet {
		if id == technicianID {
			return true
		}
	}
	return false
}

// Offered returns the broadcast set as a lookup table.
func (j Job) Offered() map[string]struct{} {
	m := make(map[string]struct{}, len(j.BroadcastSet))
	for _, id := range j.BroadcastSet {
		m[id] = struct{}{}
	}
	return m
}

// AddToBroadcast appends the ids not yet present and returns the ones added.
func (j *Job) AddToBroadcast(ids ...string) []string {
	seen := j.Offered()
	var added []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		j.BroadcastSet = append(j.BroadcastSet, id)
		added = append(added, id)
	}
	return added
}

// CheckInvariants verifies the structural invariants of a job record.
func (j Job) CheckInvariants() error {
	if j.Status.HoldsTechnician() != (j.AssignedTechnician != "") {
		return fmt.Errorf("job %s: status %s with assigned technician %q", j.ID, j.Status, j.AssignedTechnician)
	}
	if j.EscalationLevel < 0 {
		return fmt.Errorf("job %s: negative escalation level %d", j.ID, j.EscalationLevel)
	}
	seen := make(map[string]struct{}, len(j.BroadcastSet))
	for _, id := range j.BroadcastSet {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("job %s: technician %s broadcast twice", j.ID, id)
		}
		seen[id] = struct{}{}
	}
	if j.AssignedTechnician != "" {
		if _, ok := seen[j.AssignedTechnician]; !ok {
			return fmt.Errorf("job %s: assigned technician %s was never offered the job", j.ID, j.AssignedTechnician)
		}
	}
	return nil
}
