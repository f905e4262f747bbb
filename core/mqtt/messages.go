package mqtt

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/notify"
)

// OfferMessage is published to each candidate of a broadcast.
type OfferMessage struct {
	MessageID  string            `json:"message_id"`
	Job        notify.JobSummary `json:"job"`
	Kind       notify.Kind       `json:"kind"`
	Level      int               `json:"escalation_level"`
	DistanceKm float64           `json:"distance_km"`
	DeadlineAt time.Time         `json:"deadline_at"`
	SentAt     time.Time         `json:"sent_at"`
}

// Response actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// ResponseMessage is a technician's answer to an offer.
type ResponseMessage struct {
	JobID  string `json:"job_id"`
	Action string `json:"action"`
}

// Normalize lowercases the action and rejects unknown ones. An empty
// action means accept.
func (r *ResponseMessage) Normalize() error {
	if r.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	a := strings.ToLower(strings.TrimSpace(r.Action))
	switch a {
	case "":
		a = ActionAccept
	case ActionAccept, ActionDecline:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	r.Action = a
	return nil
}

// ResultMessage tells a technician whether the accept went through.
type ResultMessage struct {
	JobID    string `json:"job_id"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// AlertMessage is published when a job exhausts its escalation ladder.
type AlertMessage struct {
	MessageID  string            `json:"message_id"`
	Job        notify.JobSummary `json:"job"`
	Level      int               `json:"escalation_level"`
	Broadcasts int               `json:"broadcast_count"`
	Message    string            `json:"message"`
	At         time.Time         `json:"at"`
}

// LocationMessage is a technician position report. Online is optional.
type LocationMessage struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Online *bool   `json:"online,omitempty"`
}

// Location returns the reported position.
func (l LocationMessage) Location() model.Location {
	return model.Location{Lat: l.Lat, Lng: l.Lng}
}

// JobRequestMessage submits a job over MQTT.
type JobRequestMessage struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ServiceType string  `json:"service_type"`
	Tier        string  `json:"tier"`
}

// Job converts the request into a job record ready for submission.
func (m JobRequestMessage) Job() (model.Job, error) {
	tier, err := model.ParseTier(m.Tier)
	if err != nil {
		return model.Job{}, err
	}
	return model.Job{
		ID:          m.ID,
		Location:    model.Location{Lat: m.Lat, Lng: m.Lng},
		ServiceType: m.ServiceType,
		Tier:        tier,
	}, nil
}
