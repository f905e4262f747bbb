package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/techdispatch/core/events"
	coremetrics "github.com/kilianp07/techdispatch/core/metrics"
	"github.com/kilianp07/techdispatch/infra/logger"
	"github.com/kilianp07/techdispatch/internal/eventbus"
)

// FleetCounter reports the technician pool size.
type FleetCounter interface {
	Counts() (total, available int)
}

// StartEventCollector subscribes to the event bus and forwards dispatch
// events to the sink. It stops when the context is canceled or the bus
// is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T for job %s: %v", ev, ev.EventJobID(), err)
				}
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.TransitionEvent:
		return sink.RecordTransition(coremetrics.TransitionRecord{
			JobID:        e.JobID,
			Tier:         e.Tier.String(),
			From:         e.From.String(),
			To:           e.To.String(),
			Level:        e.Level,
			TechnicianID: e.TechnicianID,
			Reason:       e.Reason,
			Latency:      e.Latency,
			Time:         e.At,
		})
	case events.BroadcastEvent:
		r, ok := sink.(coremetrics.BroadcastRecorder)
		if !ok {
			return nil
		}
		rec := coremetrics.BroadcastRecord{
			JobID:      e.JobID,
			Tier:       e.Tier.String(),
			Level:      e.Level,
			Candidates: len(e.Candidates),
			Time:       e.At,
		}
		if len(e.Candidates) > 0 {
			rec.NearestKm = e.Candidates[0].DistanceKm
		}
		return r.RecordBroadcast(rec)
	case events.EscalationEvent:
		if r, ok := sink.(coremetrics.EscalationRecorder); ok {
			return r.RecordEscalation(coremetrics.EscalationRecord{
				JobID:     e.JobID,
				Tier:      e.Tier.String(),
				Level:     e.Level,
				Immediate: e.Immediate,
				Time:      e.At,
			})
		}
	case events.NotifyFailureEvent:
		if r, ok := sink.(coremetrics.NotifyFailureRecorder); ok {
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			return r.RecordNotifyFailure(coremetrics.NotifyFailureRecord{
				JobID:   e.JobID,
				Channel: e.Channel,
				Error:   msg,
				Time:    e.At,
			})
		}
	}
	return nil
}

// StartFleetReporter records the technician pool size every interval
// until ctx is canceled. Sinks without a FleetSizeRecorder are ignored.
func StartFleetReporter(ctx context.Context, fleet FleetCounter, sink coremetrics.MetricsSink, interval time.Duration) {
	r, ok := sink.(coremetrics.FleetSizeRecorder)
	if !ok || fleet == nil || interval <= 0 {
		return
	}
	log := logger.New("fleet-reporter")
	report := func() {
		total, available := fleet.Counts()
		if err := r.RecordFleetSize(total, available); err != nil {
			log.Warnf("record fleet size: %v", err)
		}
	}
	go func() {
		report()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				report()
			}
		}
	}()
}
