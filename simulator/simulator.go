// Package simulator drives a fleet of fake technicians over MQTT. They
// report their location and answer job offers, which makes it possible to
// exercise a running dispatch service end to end.
package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
)

// NewRand returns the generator used for a run.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Run generates the fleet described by cfg, answers offers until ctx is
// done and returns the activity counters.
func Run(ctx context.Context, cfg Config, client Client, techs []model.Technician) (Counters, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Counters{}, err
	}
	rng := NewRand(cfg.Seed)
	if techs == nil {
		techs = GenerateFleet(cfg, rng)
	}
	var strategy ResponseStrategy = AutoAccept{Delay: cfg.AckLatency}
	if cfg.DropRate > 0 || cfg.DeclineRate > 0 {
		strategy = NewRandomResponse(cfg.AckLatency, cfg.DropRate, cfg.DeclineRate, rng)
	}
	fleet := NewFleet(client, strategy, techs, cfg.LocationInterval, rng)
	if err := fleet.Start(ctx); err != nil {
		return Counters{}, err
	}
	fleet.log.Infof("simulating %d technicians", len(techs))
	<-ctx.Done()
	fleet.Wait()
	return fleet.Counters(), nil
}
