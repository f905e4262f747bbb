package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidLocation is returned for coordinates that are not finite or
// fall outside the WGS84 ranges.
var ErrInvalidLocation = errors.New("invalid location")

// Location is a point on the globe in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Validate checks that both coordinates are finite and within range.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || math.IsNaN(l.Lng) || math.IsInf(l.Lng, 0) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidLocation, l.Lat, l.Lng)
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, l.Lng)
	}
	return nil
}
