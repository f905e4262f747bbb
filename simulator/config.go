package simulator

import (
	"fmt"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
)

// Config holds parameters for the simulated fleet.
type Config struct {
	Count    int
	Origin   model.Location
	SpreadKm float64
	Skills   []string

	AckLatency  time.Duration
	DropRate    float64
	DeclineRate float64

	// LocationInterval is how often each technician reports its position.
	// Zero disables location reports.
	LocationInterval time.Duration
	// Seed makes fleet generation and responses reproducible. Zero uses
	// the current time.
	Seed int64
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Count == 0 {
		c.Count = 10
	}
	if c.Origin == (model.Location{}) {
		c.Origin = model.Location{Lat: 6.9271, Lng: 79.8612}
	}
	if c.SpreadKm == 0 {
		c.SpreadKm = 10
	}
	if len(c.Skills) == 0 {
		c.Skills = []string{"plumbing", "electrical", "hvac"}
	}
}

// Validate checks the ranges.
func (c Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count must be >= 0")
	}
	if c.SpreadKm < 0 {
		return fmt.Errorf("spread must be >= 0")
	}
	if c.DropRate < 0 || c.DropRate > 1 || c.DeclineRate < 0 || c.DeclineRate > 1 {
		return fmt.Errorf("drop and decline rates must be within [0,1]")
	}
	if c.DropRate+c.DeclineRate > 1 {
		return fmt.Errorf("drop rate plus decline rate must not exceed 1")
	}
	return c.Origin.Validate()
}
