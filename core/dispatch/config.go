package dispatch

import (
	"fmt"

	"github.com/kilianp07/techdispatch/core/dispatch/logging"
	"github.com/kilianp07/techdispatch/core/model"
)

const (
	DefaultRadiusGrowth    = 0.5
	DefaultBroadcastGrowth = 1.0
)

// TierConfig overrides one row of the priority table. Zero fields keep the
// built-in value.
type TierConfig struct {
	DeadlineSeconds   int     `json:"deadline_seconds"`
	BroadcastCount    int     `json:"broadcast_count"`
	RadiusKm          float64 `json:"radius_km"`
	EscalationCeiling int     `json:"escalation_ceiling"`
}

// Config defines dispatch-related settings.
type Config struct {
	// RadiusGrowth and BroadcastGrowth are the per-level widening factors:
	// value(level) = base * (1 + growth*level).
	RadiusGrowth    float64               `json:"radius_growth"`
	BroadcastGrowth float64               `json:"broadcast_growth"`
	Tiers           map[string]TierConfig `json:"tiers"`
	Journal         logging.Config        `json:"journal"`
}

// SetDefaults fills unset growth factors and journal settings.
func (c *Config) SetDefaults() {
	if c.RadiusGrowth == 0 {
		c.RadiusGrowth = DefaultRadiusGrowth
	}
	if c.BroadcastGrowth == 0 {
		c.BroadcastGrowth = DefaultBroadcastGrowth
	}
	c.Journal.SetDefaults()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RadiusGrowth < 0 || c.BroadcastGrowth < 0 {
		return fmt.Errorf("dispatch: growth factors must be >= 0 (radius %v, broadcast %v)", c.RadiusGrowth, c.BroadcastGrowth)
	}
	for name, t := range c.Tiers {
		if _, err := model.ParseTier(name); err != nil {
			return fmt.Errorf("dispatch.tiers: %w", err)
		}
		if t.DeadlineSeconds < 0 || t.BroadcastCount < 0 || t.RadiusKm < 0 || t.EscalationCeiling < 0 {
			return fmt.Errorf("dispatch.tiers.%s: values must be >= 0", name)
		}
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("dispatch.journal: %w", err)
	}
	return nil
}
