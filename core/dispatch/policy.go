package dispatch

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
)

// TierPolicy holds every tier-dependent threshold used by dispatch.
type TierPolicy struct {
	Deadline          time.Duration
	BroadcastCount    int
	RadiusKm          float64
	EscalationCeiling int
}

// defaultTiers is the built-in priority table.
var defaultTiers = map[model.Tier]TierPolicy{
	model.TierNormal:    {Deadline: 10 * time.Minute, BroadcastCount: 1, RadiusKm: 10, EscalationCeiling: 3},
	model.TierUrgent:    {Deadline: 5 * time.Minute, BroadcastCount: 3, RadiusKm: 15, EscalationCeiling: 3},
	model.TierEmergency: {Deadline: 2 * time.Minute, BroadcastCount: 5, RadiusKm: 20, EscalationCeiling: 3},
}

// Policy is the priority table plus the escalation growth curve. It is
// immutable once built.
type Policy struct {
	tiers           map[model.Tier]TierPolicy
	radiusGrowth    float64
	broadcastGrowth float64
}

// DefaultPolicy returns the built-in table with the default growth factors.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(Config{})
	return p
}

// NewPolicy builds a Policy from the built-in table and cfg's overrides.
func NewPolicy(cfg Config) (*Policy, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tiers := make(map[model.Tier]TierPolicy, len(defaultTiers))
	for t, tp := range defaultTiers {
		tiers[t] = tp
	}
	for name, o := range cfg.Tiers {
		tier, _ := model.ParseTier(name)
		tp := tiers[tier]
		if o.DeadlineSeconds > 0 {
			tp.Deadline = time.Duration(o.DeadlineSeconds) * time.Second
		}
		if o.BroadcastCount > 0 {
			tp.BroadcastCount = o.BroadcastCount
		}
		if o.RadiusKm > 0 {
			tp.RadiusKm = o.RadiusKm
		}
		if o.EscalationCeiling > 0 {
			tp.EscalationCeiling = o.EscalationCeiling
		}
		tiers[tier] = tp
	}
	return &Policy{tiers: tiers, radiusGrowth: cfg.RadiusGrowth, broadcastGrowth: cfg.BroadcastGrowth}, nil
}

// For returns the base (level 0) parameters of tier.
func (p *Policy) For(tier model.Tier) (TierPolicy, error) {
	tp, ok := p.tiers[tier]
	if !ok {
		return TierPolicy{}, fmt.Errorf("%w: unknown tier %d", ErrInvalidJob, int(tier))
	}
	return tp, nil
}

// AtLevel returns the parameters of tier widened for an escalation level.
// Radius and broadcast count never shrink as level grows.
func (p *Policy) AtLevel(tier model.Tier, level int) (TierPolicy, error) {
	tp, err := p.For(tier)
	if err != nil {
		return TierPolicy{}, err
	}
	if level <= 0 {
		return tp, nil
	}
	l := float64(level)
	tp.RadiusKm *= 1 + p.radiusGrowth*l
	tp.BroadcastCount = int(math.Ceil(float64(tp.BroadcastCount) * (1 + p.broadcastGrowth*l)))
	return tp, nil
}
