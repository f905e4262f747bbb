package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	"github.com/kilianp07/techdispatch/infra/logger"
)

// Subscriber is the subset of PahoClient used by inbound listeners.
type Subscriber interface {
	Subscribe(topic, qosKey string, h Handler) error
}

// Acceptor is the coordinator operation driven by technician responses.
type Acceptor interface {
	Accept(ctx context.Context, jobID, technicianID string) (model.Job, error)
}

// ResponseListener turns technician/<id>/response messages into Accept
// calls and reports the outcome on technician/<id>/result.
type ResponseListener struct {
	acceptor Acceptor
	pub      Publisher
	log      logger.Logger
	timeout  time.Duration
}

// NewResponseListener builds a listener. pub may be nil when results
// should not be echoed back.
func NewResponseListener(a Acceptor, pub Publisher) *ResponseListener {
	return &ResponseListener{acceptor: a, pub: pub, log: logger.New("mqtt-responses"), timeout: 5 * time.Second}
}

// Start subscribes to the response wildcard.
func (l *ResponseListener) Start(sub Subscriber) error {
	return sub.Subscribe(coremqtt.ResponseWildcard, "response", l.Handle)
}

// Handle processes one response message.
func (l *ResponseListener) Handle(topic string, payload []byte) {
	techID, err := coremqtt.TechnicianFromTopic(topic, "response")
	if err != nil {
		l.log.Warnf("ignoring response: %v", err)
		return
	}
	var msg coremqtt.ResponseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		l.log.Warnf("decode response from %s: %v", techID, err)
		return
	}
	if err := msg.Normalize(); err != nil {
		l.log.Warnf("response from %s: %v", techID, err)
		return
	}
	if msg.Action == coremqtt.ActionDecline {
		l.log.Debugf("technician %s declined job %s", techID, msg.JobID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	res := coremqtt.ResultMessage{JobID: msg.JobID, Accepted: true}
	if _, err := l.acceptor.Accept(ctx, msg.JobID, techID); err != nil {
		l.log.Infof("accept of job %s by %s rejected: %v", msg.JobID, techID, err)
		res.Accepted = false
		res.Error = err.Error()
	}
	if l.pub == nil {
		return
	}
	if err := l.pub.PublishJSON(coremqtt.ResultTopic(techID), "result", res); err != nil {
		l.log.Errorf("publish result to %s: %v", techID, err)
	}
}
