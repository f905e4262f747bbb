package model

import (
	"fmt"
	"strings"
)

// Tier classifies the urgency of a job.
type Tier int

const (
	TierNormal Tier = iota
	TierUrgent
	TierEmergency
)

// Tiers lists every tier in ascending urgency.
var Tiers = []Tier{TierNormal, TierUrgent, TierEmergency}

// String returns the wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierNormal:
		return "normal"
	case TierUrgent:
		return "urgent"
	case TierEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t >= TierNormal && t <= TierEmergency
}

// ParseTier converts a wire name into a Tier. An empty string is normal.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return TierNormal, nil
	case "urgent":
		return TierUrgent, nil
	case "emergency":
		return TierEmergency, nil
	default:
		return 0, fmt.Errorf("unknown priority tier %q", s)
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
