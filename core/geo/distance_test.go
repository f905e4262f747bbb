package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/techdispatch/core/model"
)

func TestDistanceKm(t *testing.T) {
	colombo := model.Location{Lat: 6.9271, Lng: 79.8612}
	kandy := model.Location{Lat: 7.2906, Lng: 80.6337}

	d, err := DistanceKm(colombo, kandy)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if math.Abs(d-94.4) > 1 {
		t.Errorf("colombo-kandy expected ~94 km got %.2f", d)
	}

	back, _ := DistanceKm(kandy, colombo)
	if d != back {
		t.Errorf("distance not symmetric: %v vs %v", d, back)
	}

	if z, _ := DistanceKm(colombo, colombo); z != 0 {
		t.Errorf("identical points should be 0, got %v", z)
	}
}

func TestDistanceKmQuarterMeridian(t *testing.T) {
	d, err := DistanceKm(model.Location{Lat: 0, Lng: 0}, model.Location{Lat: 90, Lng: 0})
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	want := EarthRadiusKm * math.Pi / 2
	if math.Abs(d-want) > 1e-6 {
		t.Errorf("expected %.6f got %.6f", want, d)
	}
}

func TestDistanceKmRejectsNonFinite(t *testing.T) {
	_, err := DistanceKm(model.Location{Lat: math.NaN()}, model.Location{})
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	_, err = DistanceKm(model.Location{}, model.Location{Lng: math.Inf(-1)})
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}
