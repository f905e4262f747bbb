// Package geo computes great-circle distances between locations.
package geo

import (
	"math"

	"github.com/kilianp07/techdispatch/core/model"
)

// EarthRadiusKm is the mean Earth radius of the spherical approximation.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned when either point is not a valid location.
var ErrInvalidCoordinate = model.ErrInvalidLocation

// DistanceKm returns the haversine distance between a and b in kilometres.
func DistanceKm(a, b model.Location) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h slightly above 1 for antipodal points
	h = math.Min(1, h)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h)), nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
