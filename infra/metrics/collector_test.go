package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/techdispatch/core/events"
	coremetrics "github.com/kilianp07/techdispatch/core/metrics"
	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/internal/eventbus"
)

type captureSink struct {
	mu          sync.Mutex
	transitions []coremetrics.TransitionRecord
	broadcasts  []coremetrics.BroadcastRecord
	escalations []coremetrics.EscalationRecord
	failures    []coremetrics.NotifyFailureRecord
	fleet       [][2]int
}

func (c *captureSink) RecordTransition(r coremetrics.TransitionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = append(c.transitions, r)
	return nil
}

func (c *captureSink) RecordBroadcast(r coremetrics.BroadcastRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts = append(c.broadcasts, r)
	return nil
}

func (c *captureSink) RecordEscalation(r coremetrics.EscalationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escalations = append(c.escalations, r)
	return nil
}

func (c *captureSink) RecordNotifyFailure(r coremetrics.NotifyFailureRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, r)
	return nil
}

func (c *captureSink) RecordFleetSize(total, available int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fleet = append(c.fleet, [2]int{total, available})
	return nil
}

func (c *captureSink) counts() (int, int, int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transitions), len(c.broadcasts), len(c.escalations), len(c.failures), len(c.fleet)
}

func TestStartEventCollector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.New[events.Event]()
	defer bus.Close()
	sink := &captureSink{}
	StartEventCollector(ctx, bus, sink)

	now := time.Now()
	bus.Publish(events.TransitionEvent{JobID: "j1", Tier: model.TierUrgent, From: model.StatusBroadcasting, To: model.StatusAccepted, TechnicianID: "t1", At: now})
	bus.Publish(events.BroadcastEvent{JobID: "j1", Tier: model.TierUrgent, Candidates: []model.Candidate{{TechnicianID: "t1", DistanceKm: 1.2}, {TechnicianID: "t2", DistanceKm: 3}}, At: now})
	bus.Publish(events.EscalationEvent{JobID: "j1", Tier: model.TierUrgent, Level: 1, Immediate: true, At: now})
	bus.Publish(events.NotifyFailureEvent{JobID: "j1", Channel: "offer", Err: errors.New("broker down"), At: now})

	assert.Eventually(t, func() bool {
		tr, br, es, nf, _ := sink.counts()
		return tr == 1 && br == 1 && es == 1 && nf == 1
	}, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "urgent", sink.transitions[0].Tier)
	assert.Equal(t, "accepted", sink.transitions[0].To)
	assert.Equal(t, 2, sink.broadcasts[0].Candidates)
	assert.InDelta(t, 1.2, sink.broadcasts[0].NearestKm, 1e-9)
	assert.True(t, sink.escalations[0].Immediate)
	assert.Equal(t, "broker down", sink.failures[0].Error)
}

func TestStartEventCollector_TransitionOnlySink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.New[events.Event]()
	defer bus.Close()
	sink := &countingSink{}
	StartEventCollector(ctx, bus, sink)

	bus.Publish(events.EscalationEvent{JobID: "j"})
	bus.Publish(events.TransitionEvent{JobID: "j", To: model.StatusUnmatched})
	assert.Eventually(t, func() bool { return sink.load() == 1 }, time.Second, 5*time.Millisecond)
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (c *countingSink) RecordTransition(coremetrics.TransitionRecord) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingSink) load() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type staticFleet struct{ total, available int }

func (s staticFleet) Counts() (int, int) { return s.total, s.available }

func TestStartFleetReporter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &captureSink{}
	StartFleetReporter(ctx, staticFleet{total: 5, available: 2}, sink, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, _, _, _, f := sink.counts()
		return f >= 2
	}, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	assert.Equal(t, [2]int{5, 2}, sink.fleet[0])
	sink.mu.Unlock()
}
