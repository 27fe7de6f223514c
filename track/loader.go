package track

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type markerFile struct {
	Markers []Marker `yaml:"markers" validate:"required,min=1,dive"`
}

// ParseMarkers decodes and validates a YAML marker table:
//
//	markers:
//	  - {id: 1, x: -1200.5, y: 340}
func ParseMarkers(data []byte) ([]Marker, error) {
	var f markerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, err
	}
	return f.Markers, nil
}

// LoadMarkers reads a marker table from path and builds a LinearIndex over it.
func LoadMarkers(path string) (*LinearIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	markers, err := ParseMarkers(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewLinearIndex(markers)
}
