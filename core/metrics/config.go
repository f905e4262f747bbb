package metrics

import "github.com/kilianp07/techdispatch/core/factory"

// Config defines settings for metrics sinks. PrometheusAddr enables the
// /metrics HTTP endpoint when non-empty.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	PrometheusAddr string                 `json:"prometheus_addr" yaml:"prometheus_addr"`
	FleetInterval  int                    `json:"fleet_interval_seconds" yaml:"fleet_interval_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.FleetInterval == 0 {
		c.FleetInterval = 30
	}
}
