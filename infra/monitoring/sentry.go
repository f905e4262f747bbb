// Package monitoring binds the core monitoring hooks to Sentry.
package monitoring

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/kilianp07/techdispatch/config"
	coremon "github.com/kilianp07/techdispatch/core/monitoring"
	"github.com/kilianp07/techdispatch/core/notify"
)

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) withTags(tags map[string]string, f func(h *sentry.Hub)) {
	if len(tags) == 0 {
		f(s.hub)
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		f(s.hub)
	})
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.withTags(tags, func(h *sentry.Hub) { h.CaptureException(err) })
}

func (s *sentryMonitor) CaptureMessage(msg string, tags map[string]string) {
	s.withTags(tags, func(h *sentry.Hub) { h.CaptureMessage(msg) })
}

func (s *sentryMonitor) ReportPanic(r any) { s.hub.Recover(r) }

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }

// Alerter forwards unmatched jobs to the error tracker as tagged
// messages so operators get paged through the same channel as errors.
type Alerter struct {
	mon coremon.Monitor
}

// NewAlerter creates an Alerter. A nil monitor uses the global one.
func NewAlerter(m coremon.Monitor) *Alerter { return &Alerter{mon: m} }

func (a *Alerter) AlertUnmatched(_ context.Context, al notify.Alert) error {
	m := a.mon
	if m == nil {
		m = coremon.Current()
	}
	msg := al.Message
	if msg == "" {
		msg = fmt.Sprintf("job %s unmatched after escalation level %d", al.Job.ID, al.Level)
	}
	m.CaptureMessage(msg, map[string]string{
		"job_id":           al.Job.ID,
		"tier":             al.Job.Tier.String(),
		"service_type":     al.Job.ServiceType,
		"escalation_level": strconv.Itoa(al.Level),
	})
	return nil
}
