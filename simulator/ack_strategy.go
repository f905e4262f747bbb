package simulator

import (
	"math/rand"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
)

// Decision is how a simulated technician reacts to one offer. An empty
// Action means the offer is ignored.
type Decision struct {
	Action string
	Delay  time.Duration
}

// ResponseStrategy decides how a technician answers offers.
type ResponseStrategy interface {
	Decide(offer coremqtt.OfferMessage) Decision
}

// AutoAccept accepts every offer after a fixed delay.
type AutoAccept struct {
	Delay time.Duration
}

// Decide implements ResponseStrategy.
func (a AutoAccept) Decide(coremqtt.OfferMessage) Decision {
	return Decision{Action: coremqtt.ActionAccept, Delay: a.Delay}
}

// RandomResponse ignores offers with probability DropRate, declines with
// DeclineRate and accepts otherwise. The delay is drawn uniformly from
// [0, 2*Delay).
type RandomResponse struct {
	Delay       time.Duration
	DropRate    float64
	DeclineRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomResponse seeds a RandomResponse.
func NewRandomResponse(delay time.Duration, dropRate, declineRate float64, rng *rand.Rand) *RandomResponse {
	return &RandomResponse{Delay: delay, DropRate: dropRate, DeclineRate: declineRate, rng: rng}
}

// Decide implements ResponseStrategy.
func (r *RandomResponse) Decide(coremqtt.OfferMessage) Decision {
	r.mu.Lock()
	roll := r.rng.Float64()
	jitter := r.rng.Float64()
	r.mu.Unlock()

	var d Decision
	switch {
	case roll < r.DropRate:
		return d
	case roll < r.DropRate+r.DeclineRate:
		d.Action = coremqtt.ActionDecline
	default:
		d.Action = coremqtt.ActionAccept
	}
	d.Delay = time.Duration(jitter * 2 * float64(r.Delay))
	return d
}
