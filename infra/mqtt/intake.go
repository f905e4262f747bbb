package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/techdispatch/core/dispatch"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	"github.com/kilianp07/techdispatch/infra/logger"
)

// RequestIntake decodes job requests from jobs/requests and forwards them
// to the coordinator's submission loop.
type RequestIntake struct {
	out     chan<- dispatch.SubmitRequest
	log     logger.Logger
	timeout time.Duration
	ctx     context.Context
}

// NewRequestIntake forwards decoded requests to out until ctx is done.
func NewRequestIntake(ctx context.Context, out chan<- dispatch.SubmitRequest) *RequestIntake {
	return &RequestIntake{out: out, log: logger.New("mqtt-intake"), timeout: 2 * time.Second, ctx: ctx}
}

// Start subscribes to the request topic.
func (r *RequestIntake) Start(sub Subscriber) error {
	return sub.Subscribe(coremqtt.JobRequestTopic, "request", r.Handle)
}

// Handle processes one job request message.
func (r *RequestIntake) Handle(_ string, payload []byte) {
	var msg coremqtt.JobRequestMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.log.Warnf("decode job request: %v", err)
		return
	}
	job, err := msg.Job()
	if err != nil {
		r.log.Warnf("job request %s: %v", msg.ID, err)
		return
	}
	select {
	case r.out <- dispatch.SubmitRequest{Job: job}:
	case <-r.ctx.Done():
	case <-time.After(r.timeout):
		r.log.Errorf("submission queue full, dropping job request %s", msg.ID)
	}
}
