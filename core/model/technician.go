package model

import (
	"strings"
	"time"
)

// Technician is the dispatch view of a service provider.
type Technician struct {
	ID        string    `json:"id" yaml:"id"`
	Location  Location  `json:"location" yaml:"location"`
	Skills    []string  `json:"skills" yaml:"skills"`
	Available bool      `json:"available" yaml:"available"`
	Rating    float64   `json:"rating" yaml:"rating"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// HasSkill reports whether the technician can serve serviceType.
func (t Technician) HasSkill(serviceType string) bool {
	if IsAnyService(serviceType) {
		return true
	}
	for _, s := range t.Skills {
		if strings.EqualFold(s, serviceType) {
			return true
		}
	}
	return false
}

// Candidate is a technician selected for a broadcast.
type Candidate struct {
	TechnicianID string  `json:"technician_id"`
	DistanceKm   float64 `json:"distance_km"`
	Rating       float64 `json:"rating"`
}
