package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	"github.com/kilianp07/techdispatch/core/notify"
)

// Publisher is the subset of PahoClient used by the notifier.
type Publisher interface {
	PublishJSON(topic, qosKey string, v any) error
}

// Notifier publishes offers to technician/<id>/offer and unmatched
// alerts to admin/alerts/unmatched.
type Notifier struct {
	pub Publisher
	now func() time.Time
}

// NewNotifier wraps a publisher.
func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub, now: time.Now}
}

// NotifyCandidates sends one message per candidate. Every candidate is
// attempted; failures are joined.
func (n *Notifier) NotifyCandidates(ctx context.Context, offer notify.Offer) error {
	var errs []error
	for _, c := range offer.Candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := coremqtt.OfferMessage{
			MessageID:  uuid.NewString(),
			Job:        offer.Job,
			Kind:       offer.Kind,
			Level:      offer.Level,
			DistanceKm: c.DistanceKm,
			DeadlineAt: offer.DeadlineAt,
			SentAt:     n.now(),
		}
		if err := n.pub.PublishJSON(coremqtt.OfferTopic(c.TechnicianID), "offer", msg); err != nil {
			errs = append(errs, fmt.Errorf("offer to %s: %w", c.TechnicianID, err))
		}
	}
	return errors.Join(errs...)
}

// AlertUnmatched publishes the alert on the admin topic.
func (n *Notifier) AlertUnmatched(_ context.Context, alert notify.Alert) error {
	msg := coremqtt.AlertMessage{
		MessageID:  uuid.NewString(),
		Job:        alert.Job,
		Level:      alert.Level,
		Broadcasts: alert.Broadcasts,
		Message:    alert.Message,
		At:         alert.At,
	}
	return n.pub.PublishJSON(coremqtt.AdminAlertTopic, "alert", msg)
}
