package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/techdispatch/core/model"
)

// Duration accepts Go duration strings such as "90s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

type TechnicianDef struct {
	ID        string   `yaml:"id"`
	Lat       float64  `yaml:"lat"`
	Lng       float64  `yaml:"lng"`
	Skills    []string `yaml:"skills"`
	Available bool     `yaml:"available"`
	Rating    float64  `yaml:"rating"`
}

func (t TechnicianDef) ToModel() model.Technician {
	return model.Technician{
		ID:        t.ID,
		Location:  model.Location{Lat: t.Lat, Lng: t.Lng},
		Skills:    t.Skills,
		Available: t.Available,
		Rating:    t.Rating,
	}
}

type JobDef struct {
	ID          string  `yaml:"id"`
	Lat         float64 `yaml:"lat"`
	Lng         float64 `yaml:"lng"`
	ServiceType string  `yaml:"service_type"`
	Tier        string  `yaml:"tier"`
}

func (j JobDef) ToModel() (model.Job, error) {
	tier, err := model.ParseTier(j.Tier)
	if err != nil {
		return model.Job{}, err
	}
	return model.Job{
		ID:          j.ID,
		Location:    model.Location{Lat: j.Lat, Lng: j.Lng},
		ServiceType: j.ServiceType,
		Tier:        tier,
	}, nil
}

// Step is one action applied to the engine. Action is one of submit,
// accept, start, complete, cancel, advance, offline and online.
type Step struct {
	Action      string   `yaml:"action"`
	Job         string   `yaml:"job,omitempty"`
	Technician  string   `yaml:"technician,omitempty"`
	Reason      string   `yaml:"reason,omitempty"`
	Duration    Duration `yaml:"duration,omitempty"`
	ExpectError string   `yaml:"expect_error,omitempty"`
}

type JobExpectation struct {
	Status     string   `yaml:"status"`
	Technician string   `yaml:"technician,omitempty"`
	Level      *int     `yaml:"level,omitempty"`
	Broadcast  []string `yaml:"broadcast,omitempty"`
}

type Expected struct {
	Jobs      map[string]JobExpectation `yaml:"jobs"`
	Alerts    int                       `yaml:"alerts"`
	Offers    map[string]int            `yaml:"offers,omitempty"`
	Available []string                  `yaml:"available,omitempty"`
}

type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Technicians []TechnicianDef `yaml:"technicians"`
	Jobs        []JobDef        `yaml:"jobs"`
	Steps       []Step          `yaml:"steps"`
	Expected    Expected        `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	return &sc, nil
}
