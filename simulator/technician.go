package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
	coremon "github.com/kilianp07/techdispatch/core/monitoring"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	"github.com/kilianp07/techdispatch/infra/logger"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
)

// Client is the MQTT surface used by the simulator.
type Client interface {
	infmqtt.Subscriber
	infmqtt.Publisher
}

// Counters summarizes what the simulated fleet did.
type Counters struct {
	Offers   int64 `json:"offers"`
	Accepts  int64 `json:"accepts"`
	Declines int64 `json:"declines"`
	Dropped  int64 `json:"dropped"`
	Won      int64 `json:"won"`
	Lost     int64 `json:"lost"`
}

type simTech struct {
	mu   sync.Mutex
	tech model.Technician
	busy bool
}

// Fleet answers offers on behalf of many technicians over one MQTT
// connection.
type Fleet struct {
	client   Client
	strategy ResponseStrategy
	log      logger.Logger
	interval time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	techs map[string]*simTech
	wg    sync.WaitGroup

	offers, accepts, declines, dropped, won, lost atomic.Int64
}

// NewFleet builds a Fleet for techs.
func NewFleet(client Client, strategy ResponseStrategy, techs []model.Technician, locationInterval time.Duration, rng *rand.Rand) *Fleet {
	f := &Fleet{
		client:   client,
		strategy: strategy,
		log:      logger.New("simulator"),
		interval: locationInterval,
		rng:      rng,
		techs:    make(map[string]*simTech, len(techs)),
	}
	for _, t := range techs {
		f.techs[t.ID] = &simTech{tech: t}
	}
	return f
}

// Start subscribes to offers and accept results, publishes an initial
// location for every technician and keeps reporting until ctx is done.
func (f *Fleet) Start(ctx context.Context) error {
	if err := f.client.Subscribe(coremqtt.OfferWildcard, "offer", func(topic string, payload []byte) {
		f.HandleOffer(ctx, topic, payload)
	}); err != nil {
		return err
	}
	if err := f.client.Subscribe(coremqtt.ResultWildcard, "result", f.HandleResult); err != nil {
		return err
	}
	f.ReportLocations(false)
	if f.interval > 0 {
		f.wg.Add(1)
		go f.locationLoop(ctx)
	}
	return nil
}

// Wait blocks until every pending response and the location loop are done.
func (f *Fleet) Wait() { f.wg.Wait() }

// Counters returns a snapshot of the activity counters.
func (f *Fleet) Counters() Counters {
	return Counters{
		Offers:   f.offers.Load(),
		Accepts:  f.accepts.Load(),
		Declines: f.declines.Load(),
		Dropped:  f.dropped.Load(),
		Won:      f.won.Load(),
		Lost:     f.lost.Load(),
	}
}

// Busy lists the technicians currently assigned to a job.
func (f *Fleet) Busy() []string {
	var ids []string
	for id, st := range f.techs {
		st.mu.Lock()
		if st.busy {
			ids = append(ids, id)
		}
		st.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}

// HandleOffer decides on one offer and schedules the response.
func (f *Fleet) HandleOffer(ctx context.Context, topic string, payload []byte) {
	id, err := coremqtt.TechnicianFromTopic(topic, "offer")
	if err != nil {
		f.log.Warnf("ignoring offer: %v", err)
		return
	}
	st, ok := f.techs[id]
	if !ok {
		return
	}
	var offer coremqtt.OfferMessage
	if err := json.Unmarshal(payload, &offer); err != nil {
		f.log.Warnf("%s: decode offer: %v", id, err)
		return
	}
	f.offers.Add(1)
	st.mu.Lock()
	busy := st.busy
	st.mu.Unlock()
	if busy {
		f.dropped.Add(1)
		return
	}

	d := f.strategy.Decide(offer)
	switch d.Action {
	case coremqtt.ActionAccept:
		f.accepts.Add(1)
	case coremqtt.ActionDecline:
		f.declines.Add(1)
	default:
		f.dropped.Add(1)
		return
	}
	resp := coremqtt.ResponseMessage{JobID: offer.Job.ID, Action: d.Action}
	if d.Delay <= 0 {
		f.respond(id, resp)
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer coremon.Recover()
		select {
		case <-time.After(d.Delay):
			f.respond(id, resp)
		case <-ctx.Done():
		}
	}()
}

func (f *Fleet) respond(id string, resp coremqtt.ResponseMessage) {
	if err := f.client.PublishJSON(coremqtt.ResponseTopic(id), "response", resp); err != nil {
		f.log.Errorf("%s: publish %s for job %s: %v", id, resp.Action, resp.JobID, err)
	}
}

// HandleResult marks a technician busy once the service confirms its
// accept.
func (f *Fleet) HandleResult(topic string, payload []byte) {
	id, err := coremqtt.TechnicianFromTopic(topic, "result")
	if err != nil {
		return
	}
	st, ok := f.techs[id]
	if !ok {
		return
	}
	var res coremqtt.ResultMessage
	if err := json.Unmarshal(payload, &res); err != nil {
		f.log.Warnf("%s: decode result: %v", id, err)
		return
	}
	if !res.Accepted {
		f.lost.Add(1)
		f.log.Debugf("%s lost job %s: %s", id, res.JobID, res.Error)
		return
	}
	f.won.Add(1)
	st.mu.Lock()
	st.busy = true
	st.mu.Unlock()
	f.log.Infof("%s won job %s", id, res.JobID)
}

// ReportLocations publishes the position of every technician, moving each
// one by up to 200 m first when drift is set.
func (f *Fleet) ReportLocations(drift bool) {
	ids := make([]string, 0, len(f.techs))
	for id := range f.techs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := f.techs[id]
		st.mu.Lock()
		if drift && !st.busy {
			f.rngMu.Lock()
			st.tech.Location = Scatter(st.tech.Location, 0.2, f.rng)
			f.rngMu.Unlock()
		}
		online := !st.busy
		msg := coremqtt.LocationMessage{Lat: st.tech.Location.Lat, Lng: st.tech.Location.Lng, Online: &online}
		st.mu.Unlock()
		if err := f.client.PublishJSON(coremqtt.LocationTopic(id), "location", msg); err != nil {
			f.log.Warnf("%s: publish location: %v", id, err)
		}
	}
}

func (f *Fleet) locationLoop(ctx context.Context) {
	defer f.wg.Done()
	defer coremon.Recover()
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.ReportLocations(true)
		}
	}
}
