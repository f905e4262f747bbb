package config

import "fmt"

// TelemetryConfig controls how technician location reports are consumed.
type TelemetryConfig struct {
	Enabled              bool `json:"enabled"`
	StaleAfterSeconds    int  `json:"stale_after_seconds"`
	SweepIntervalSeconds int  `json:"sweep_interval_seconds"`
}

// StaleAfter is how long a technician may stay silent before being taken
// offline. Zero disables the sweep.
func (c TelemetryConfig) StaleAfter() int {
	if c.StaleAfterSeconds < 0 {
		return 0
	}
	return c.StaleAfterSeconds
}

// SweepInterval returns the stale sweep period in seconds.
func (c TelemetryConfig) SweepInterval() int {
	if c.SweepIntervalSeconds <= 0 {
		return 30
	}
	return c.SweepIntervalSeconds
}

// Validate checks the telemetry settings.
func (c TelemetryConfig) Validate() error {
	if c.StaleAfterSeconds < 0 {
		return fmt.Errorf("telemetry.stale_after_seconds must not be negative")
	}
	if c.SweepIntervalSeconds < 0 {
		return fmt.Errorf("telemetry.sweep_interval_seconds must not be negative")
	}
	return nil
}
