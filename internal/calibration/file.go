package calibration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteFile writes cal to a YAML file.
func WriteFile(cal Calibration, path string) error {
	data, err := yaml.Marshal(cal)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a calibration from a YAML file. Fields missing from the file keep their
// Default values.
func ReadFile(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, err
	}

	cal := Default()
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return Calibration{}, fmt.Errorf("calibration: parse %s: %w", path, err)
	}

	return cal, nil
}

// Load returns the built ScopeConfig for the calibration file at path, or for Default
// when path is empty.
func Load(path string) (Calibration, ScopeConfig, error) {
	cal := Default()
	if path != "" {
		var err error
		cal, err = ReadFile(path)
		if err != nil {
			return Calibration{}, ScopeConfig{}, err
		}
	}

	cfg, err := Build(cal)
	if err != nil {
		return Calibration{}, ScopeConfig{}, err
	}
	return cal, cfg, nil
}
