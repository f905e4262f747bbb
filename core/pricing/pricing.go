// Package pricing supplies the surge multiplier attached to each tier.
// Prices themselves are computed elsewhere.
package pricing

import (
	"fmt"

	"github.com/kilianp07/techdispatch/core/model"
)

// Service returns the surge multiplier for a tier.
type Service interface {
	SurgeMultiplier(tier model.Tier) float64
}

// DefaultMultipliers are the marketplace's standard surcharges.
var DefaultMultipliers = map[model.Tier]float64{
	model.TierNormal:    1.0,
	model.TierUrgent:    1.5,
	model.TierEmergency: 2.0,
}

// Static is a fixed multiplier table.
type Static struct {
	multipliers map[model.Tier]float64
}

// Config overrides multipliers by tier name.
type Config struct {
	Surge map[string]float64 `json:"surge"`
}

// NewStatic builds a table from the defaults and the overrides in cfg.
func NewStatic(cfg Config) (*Static, error) {
	m := make(map[model.Tier]float64, len(DefaultMultipliers))
	for t, v := range DefaultMultipliers {
		m[t] = v
	}
	for name, v := range cfg.Surge {
		tier, err := model.ParseTier(name)
		if err != nil {
			return nil, err
		}
		if v < 1 {
			return nil, fmt.Errorf("surge multiplier for %s must be >= 1, got %v", tier, v)
		}
		m[tier] = v
	}
	return &Static{multipliers: m}, nil
}

// SurgeMultiplier returns the multiplier for tier, 1 when unknown.
func (s *Static) SurgeMultiplier(tier model.Tier) float64 {
	if s == nil {
		return 1
	}
	if v, ok := s.multipliers[tier]; ok {
		return v
	}
	return 1
}
