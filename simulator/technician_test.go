package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/techdispatch/core/model"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	"github.com/kilianp07/techdispatch/core/notify"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
)

type published struct {
	topic string
	body  []byte
}

type fakeClient struct {
	mu       sync.Mutex
	handlers map[string]infmqtt.Handler
	sent     []published
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]infmqtt.Handler)}
}

func (c *fakeClient) Subscribe(topic, _ string, h infmqtt.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = h
	return nil
}

func (c *fakeClient) PublishJSON(topic, _ string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic: topic, body: b})
	return nil
}

func (c *fakeClient) deliver(wildcard, topic string, v any) {
	b, _ := json.Marshal(v)
	c.mu.Lock()
	h := c.handlers[wildcard]
	c.mu.Unlock()
	h(topic, b)
}

func (c *fakeClient) on(topic string) []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []published
	for _, p := range c.sent {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func offer(jobID string) coremqtt.OfferMessage {
	return coremqtt.OfferMessage{Job: notify.JobSummary{ID: jobID, ServiceType: "plumbing"}, Kind: notify.KindOffer}
}

func startFleet(t *testing.T, strategy ResponseStrategy) (*Fleet, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	techs := []model.Technician{
		{ID: "a", Location: model.Location{Lat: 6.92, Lng: 79.86}, Available: true},
		{ID: "b", Location: model.Location{Lat: 6.93, Lng: 79.87}, Available: true},
	}
	f := NewFleet(client, strategy, techs, 0, rand.New(rand.NewSource(1)))
	require.NoError(t, f.Start(context.Background()))
	return f, client
}

func TestFleetReportsInitialLocations(t *testing.T) {
	_, client := startFleet(t, AutoAccept{})
	locs := client.on(coremqtt.LocationTopic("a"))
	require.Len(t, locs, 1)
	var msg coremqtt.LocationMessage
	require.NoError(t, json.Unmarshal(locs[0].body, &msg))
	assert.InDelta(t, 6.92, msg.Lat, 1e-9)
	require.NotNil(t, msg.Online)
	assert.True(t, *msg.Online)
}

func TestFleetAcceptsOffers(t *testing.T) {
	f, client := startFleet(t, AutoAccept{})
	client.deliver(coremqtt.OfferWildcard, coremqtt.OfferTopic("a"), offer("j1"))

	resp := client.on(coremqtt.ResponseTopic("a"))
	require.Len(t, resp, 1)
	var msg coremqtt.ResponseMessage
	require.NoError(t, json.Unmarshal(resp[0].body, &msg))
	assert.Equal(t, coremqtt.ResponseMessage{JobID: "j1", Action: coremqtt.ActionAccept}, msg)
	assert.Equal(t, int64(1), f.Counters().Accepts)
}

func TestFleetBecomesBusyAfterWinning(t *testing.T) {
	f, client := startFleet(t, AutoAccept{})
	client.deliver(coremqtt.ResultWildcard, coremqtt.ResultTopic("a"), coremqtt.ResultMessage{JobID: "j1", Accepted: true})
	client.deliver(coremqtt.ResultWildcard, coremqtt.ResultTopic("b"), coremqtt.ResultMessage{JobID: "j1", Error: "reservation conflict"})
	assert.Equal(t, []string{"a"}, f.Busy())

	client.deliver(coremqtt.OfferWildcard, coremqtt.OfferTopic("a"), offer("j2"))
	assert.Empty(t, client.on(coremqtt.ResponseTopic("a")))

	c := f.Counters()
	assert.Equal(t, int64(1), c.Won)
	assert.Equal(t, int64(1), c.Lost)
	assert.Equal(t, int64(1), c.Dropped)

	f.ReportLocations(true)
	locs := client.on(coremqtt.LocationTopic("a"))
	var msg coremqtt.LocationMessage
	require.NoError(t, json.Unmarshal(locs[len(locs)-1].body, &msg))
	assert.False(t, *msg.Online)
	assert.InDelta(t, 6.92, msg.Lat, 1e-9)
}

func TestFleetIgnoresUnknownTechnicians(t *testing.T) {
	f, client := startFleet(t, AutoAccept{})
	client.deliver(coremqtt.OfferWildcard, coremqtt.OfferTopic("zzz"), offer("j1"))
	client.deliver(coremqtt.OfferWildcard, "technician/a", offer("j1"))
	assert.Zero(t, f.Counters().Offers)
}

func TestFleetDelayedResponse(t *testing.T) {
	f, client := startFleet(t, AutoAccept{Delay: 10 * time.Millisecond})
	client.deliver(coremqtt.OfferWildcard, coremqtt.OfferTopic("b"), offer("j1"))
	assert.Eventually(t, func() bool {
		return len(client.on(coremqtt.ResponseTopic("b"))) == 1
	}, time.Second, 5*time.Millisecond)
	f.Wait()
}

func TestRandomResponseRates(t *testing.T) {
	r := NewRandomResponse(time.Second, 0.2, 0.3, rand.New(rand.NewSource(3)))
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		d := r.Decide(offer("j"))
		counts[d.Action]++
		assert.Less(t, d.Delay, 2*time.Second)
	}
	assert.InDelta(t, 400, counts[""], 80)
	assert.InDelta(t, 600, counts[coremqtt.ActionDecline], 90)
	assert.InDelta(t, 1000, counts[coremqtt.ActionAccept], 100)
}
