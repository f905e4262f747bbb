package simulator

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/model"
)

const kmPerDegree = 111.32

// GenerateFleet creates cfg.Count technicians with ids tech0001..techNNNN
// spread uniformly over a disc of cfg.SpreadKm around cfg.Origin. Each one
// gets one or two skills and a rating between 3 and 5.
func GenerateFleet(cfg Config, rng *rand.Rand) []model.Technician {
	if cfg.Count <= 0 {
		return nil
	}
	techs := make([]model.Technician, cfg.Count)
	for i := range techs {
		skills := []string{cfg.Skills[rng.Intn(len(cfg.Skills))]}
		if len(cfg.Skills) > 1 && rng.Float64() < 0.3 {
			second := cfg.Skills[rng.Intn(len(cfg.Skills))]
			if second != skills[0] {
				skills = append(skills, second)
			}
		}
		techs[i] = model.Technician{
			ID:        fmt.Sprintf("tech%04d", i+1),
			Location:  Scatter(cfg.Origin, cfg.SpreadKm, rng),
			Skills:    skills,
			Available: true,
			Rating:    math.Round((3+2*rng.Float64())*10) / 10,
		}
	}
	return techs
}

// Scatter returns a point uniformly distributed within radiusKm of origin.
func Scatter(origin model.Location, radiusKm float64, rng *rand.Rand) model.Location {
	r := radiusKm * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	dLat := r * math.Cos(theta) / kmPerDegree
	dLng := r * math.Sin(theta) / (kmPerDegree * math.Cos(origin.Lat*math.Pi/180))
	return model.Location{Lat: origin.Lat + dLat, Lng: origin.Lng + dLng}
}

// WriteSeed encodes the fleet in the directory seed format so the
// dispatch service can be started with the same technicians.
func WriteSeed(w io.Writer, techs []model.Technician) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(directory.SeedFile{Technicians: techs}); err != nil {
		return err
	}
	return enc.Close()
}
