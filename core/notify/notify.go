// Package notify declares the outbound channels used by dispatch: offers
// to candidate technicians and alerts to operators.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
)

// Kind distinguishes a first broadcast from an escalated rebroadcast.
type Kind string

const (
	KindOffer     Kind = "offer"
	KindEscalated Kind = "escalated"
)

// JobSummary is the part of a job shown to technicians.
type JobSummary struct {
	ID              string         `json:"id"`
	ServiceType     string         `json:"service_type"`
	Tier            model.Tier     `json:"tier"`
	Location        model.Location `json:"location"`
	SurgeMultiplier float64        `json:"surge_multiplier"`
}

// Offer is one broadcast batch for a job.
type Offer struct {
	Job        JobSummary        `json:"job"`
	Kind       Kind              `json:"kind"`
	Level      int               `json:"escalation_level"`
	Candidates []model.Candidate `json:"candidates"`
	DeadlineAt time.Time         `json:"deadline_at"`
}

// Alert is raised once when a job ends unmatched.
type Alert struct {
	Job        JobSummary `json:"job"`
	Level      int        `json:"escalation_level"`
	Broadcasts int        `json:"broadcast_count"`
	Message    string     `json:"message"`
	At         time.Time  `json:"at"`
}

// Notifier delivers offers to candidate technicians.
type Notifier interface {
	NotifyCandidates(ctx context.Context, offer Offer) error
}

// AdminAlerter receives terminal unmatched outcomes.
type AdminAlerter interface {
	AlertUnmatched(ctx context.Context, alert Alert) error
}

// Summarize extracts the technician facing view of a job.
func Summarize(j model.Job) JobSummary {
	return JobSummary{
		ID:              j.ID,
		ServiceType:     j.ServiceType,
		Tier:            j.Tier,
		Location:        j.Location,
		SurgeMultiplier: j.SurgeMultiplier,
	}
}

// NopNotifier drops every offer.
type NopNotifier struct{}

func (NopNotifier) NotifyCandidates(context.Context, Offer) error { return nil }

// NopAlerter drops every alert.
type NopAlerter struct{}

func (NopAlerter) AlertUnmatched(context.Context, Alert) error { return nil }

// MultiAlerter forwards alerts to every wrapped alerter and joins errors.
type MultiAlerter []AdminAlerter

func (m MultiAlerter) AlertUnmatched(ctx context.Context, a Alert) error {
	var errs []error
	for _, al := range m {
		if al == nil {
			continue
		}
		if err := al.AlertUnmatched(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
