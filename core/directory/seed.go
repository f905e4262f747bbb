package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/techdispatch/core/model"
)

// SeedFile is the on-disk format of a technician fleet.
type SeedFile struct {
	Technicians []model.Technician `json:"technicians" yaml:"technicians"`
}

// LoadSeed reads technicians from a JSON or YAML file.
func LoadSeed(path string) ([]model.Technician, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeSeed(f, ext)
}

// DecodeSeed reads technicians from r in the given format.
func DecodeSeed(r io.Reader, format string) ([]model.Technician, error) {
	var sf SeedFile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&sf); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&sf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported seed format: %s", format)
	}
	for i, t := range sf.Technicians {
		if t.ID == "" {
			return nil, fmt.Errorf("technician %d: missing id", i)
		}
		if t.Rating == 0 {
			sf.Technicians[i].Rating = 5
		}
	}
	return sf.Technicians, nil
}
