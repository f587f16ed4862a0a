package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/redraft/internal/refiner"
)

// CriteriaFile is the YAML layout of a criteria file:
//
//	criteria:
//	  tone: warm and confident
//	  length: one sentence
//	stop_markers:
//	  - looks good
type CriteriaFile struct {
	Criteria    map[string]string `yaml:"criteria"`
	StopMarkers []string          `yaml:"stop_markers,omitempty"`
}

func LoadCriteriaFile(path string) (*CriteriaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria file: %w", err)
	}

	var f CriteriaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse criteria file %s: %w", path, err)
	}
	for name, desc := range f.Criteria {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(desc) == "" {
			return nil, fmt.Errorf("criteria file %s: criterion %q has an empty name or description", path, name)
		}
	}
	return &f, nil
}

func WriteCriteriaFile(path string, f *CriteriaFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write criteria file: %w", err)
	}
	return nil
}

// ParseCriteria turns "name=description" pairs into Criteria.
func ParseCriteria(pairs []string) (refiner.Criteria, error) {
	c := make(refiner.Criteria, len(pairs))
	for _, p := range pairs {
		name, desc, ok := strings.Cut(p, "=")
		name, desc = strings.TrimSpace(name), strings.TrimSpace(desc)
		if !ok || name == "" || desc == "" {
			return nil, fmt.Errorf("invalid criterion %q (want name=description)", p)
		}
		c[name] = desc
	}
	return c, nil
}

// Merge returns a new Criteria with later sets overriding earlier ones.
func Merge(sets ...map[string]string) refiner.Criteria {
	out := make(refiner.Criteria)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
