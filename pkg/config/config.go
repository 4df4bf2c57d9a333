// Package config provides configuration loading and management for holorecon.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"holorecon/pkg/field"
	"holorecon/pkg/filter"
	"holorecon/pkg/result"
	"holorecon/pkg/tilt"
	"holorecon/pkg/units"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Reference modes accepted in the reference section.
const (
	ReferenceNone   = "none"
	ReferenceMedian = "median"
	ReferenceSingle = "single"
	ReferenceSelf   = "self"
)

// Sink drivers accepted in the output section.
const (
	SinkFS     = "fs"
	SinkS3     = "s3"
	SinkMemory = "memory"
)

// ZRange is an inclusive range of propagation distances.
type ZRange struct {
	Start units.Distance `yaml:"start"`
	End   units.Distance `yaml:"end"`
	Step  units.Distance `yaml:"step"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Optics describes the recording setup
	Optics struct {
		// Wavelength of the illumination, e.g. "500nm"
		Wavelength units.Distance `yaml:"wavelength"`

		// Width and Height are the physical sensor extent
		Width  units.Distance `yaml:"width"`
		Height units.Distance `yaml:"height"`
	} `yaml:"optics"`

	// Ts lists the 1-based slices to reconstruct; empty means all of them
	Ts []int `yaml:"ts,omitempty"`

	// Zs lists the propagation distances, either explicitly or as a range
	Zs struct {
		Values []units.Distance `yaml:"values,omitempty"`
		Range  *ZRange          `yaml:"range,omitempty"`
	} `yaml:"zs"`

	Filter struct {
		Enabled bool   `yaml:"enabled"`
		Mode    string `yaml:"mode"`

		// ROI is x0, y0, x1, y1 in spectrum pixels, used by the manual mode
		ROI      []int `yaml:"roi,omitempty"`
		DCRadius int   `yaml:"dcRadius"`
		Recenter bool  `yaml:"recenter"`
	} `yaml:"filter"`

	Reference struct {
		// Mode is none, median, single or self
		Mode string `yaml:"mode"`

		// Ts are the slices the median is taken over; empty means the run's
		Ts []int `yaml:"ts,omitempty"`

		// T is the slice used by the single mode
		T int `yaml:"t"`
	} `yaml:"reference"`

	Tilt struct {
		Enabled bool   `yaml:"enabled"`
		Mode    string `yaml:"mode"`
		Degree  int    `yaml:"degree"`
	} `yaml:"tilt"`

	// Output parameters
	Output struct {
		// Kinds selects Amplitude, Phase, Real and Imaginary
		Kinds []string `yaml:"kinds"`

		// Save exports frames instead of keeping them in memory
		Save bool `yaml:"save"`

		// Type is 8bit, 16bit, 32bit or float16
		Type string `yaml:"type"`

		// Sink is fs, s3 or memory
		Sink string `yaml:"sink"`

		// Dir is the root directory of the fs sink
		Dir string `yaml:"dir"`

		S3 struct {
			Bucket          string `yaml:"bucket"`
			Prefix          string `yaml:"prefix"`
			Region          string `yaml:"region"`
			Endpoint        string `yaml:"endpoint"`
			AccessKeyID     string `yaml:"accessKeyId"`
			SecretAccessKey string `yaml:"secretAccessKey"`
			UsePathStyle    bool   `yaml:"usePathStyle"`
		} `yaml:"s3"`
	} `yaml:"output"`

	// Catalog records runs and exported outputs; an empty driver disables it
	Catalog struct {
		// Driver is sqlite or pgx
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"catalog"`

	// Processing parameters
	Processing struct {
		// Backend is the FFT implementation, gonum or dsp
		Backend string `yaml:"backend"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Optics.Wavelength = units.New(500, units.Nano)
	cfg.Optics.Width = units.New(300, units.Micro)
	cfg.Optics.Height = units.New(300, units.Micro)

	cfg.Zs.Range = &ZRange{
		Start: units.New(0, units.Micro),
		End:   units.New(100, units.Micro),
		Step:  units.New(10, units.Micro),
	}

	cfg.Filter.Enabled = true
	cfg.Filter.Mode = string(filter.ModeAuto)
	cfg.Filter.Recenter = true

	cfg.Reference.Mode = ReferenceNone
	cfg.Reference.T = 1

	cfg.Tilt.Enabled = false
	cfg.Tilt.Mode = string(tilt.ModeAuto)
	cfg.Tilt.Degree = 1

	cfg.Output.Kinds = []string{string(result.Amplitude), string(result.Phase)}
	cfg.Output.Save = true
	cfg.Output.Type = string(result.TypeFloat32)
	cfg.Output.Sink = SinkFS
	cfg.Output.Dir = "reconstruction"

	cfg.Processing.Backend = string(field.DefaultBackend)

	return cfg
}

// Distances returns the propagation distances. An explicit list wins over a
// range; a range includes its end when the steps land on it.
func (c *Config) Distances() ([]units.Distance, error) {
	if len(c.Zs.Values) > 0 {
		return append([]units.Distance(nil), c.Zs.Values...), nil
	}
	r := c.Zs.Range
	if r == nil {
		return nil, fmt.Errorf("%w: no propagation distances", ErrInvalid)
	}
	span := r.End.Meters() - r.Start.Meters()
	step := r.Step.Meters()
	if !(step > 0) || span < 0 || math.IsInf(span, 0) {
		return nil, fmt.Errorf("%w: range %v to %v by %v", ErrInvalid, r.Start, r.End, r.Step)
	}
	n := int(math.Floor(span/step+1e-9)) + 1
	step = r.Step.In(r.Start.Unit).Value
	out := make([]units.Distance, n)
	for i := range out {
		out[i] = units.New(r.Start.Value+float64(i)*step, r.Start.Unit)
	}
	return out, nil
}

// ROI returns the manual filter region.
func (c *Config) ROI() (x0, y0, x1, y1 int, ok bool) {
	if len(c.Filter.ROI) != 4 {
		return 0, 0, 0, 0, false
	}
	r := c.Filter.ROI
	return r[0], r[1], r[2], r[3], true
}

// Validate reports the first problem with c, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	optics := []struct {
		name string
		d    units.Distance
	}{
		{"wavelength", c.Optics.Wavelength},
		{"width", c.Optics.Width},
		{"height", c.Optics.Height},
	}
	for _, o := range optics {
		if !(o.d.Meters() > 0) {
			return fmt.Errorf("%w: optics %s must be positive, got %v", ErrInvalid, o.name, o.d)
		}
	}
	if _, err := c.Distances(); err != nil {
		return err
	}
	for _, t := range c.Ts {
		if t < 1 {
			return fmt.Errorf("%w: slice %d is not 1-based", ErrInvalid, t)
		}
	}

	switch filter.Mode(c.Filter.Mode) {
	case filter.ModeAuto:
	case filter.ModeManual:
		if _, _, _, _, ok := c.ROI(); !ok {
			return fmt.Errorf("%w: manual filter needs roi [x0, y0, x1, y1]", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: filter mode %q", ErrInvalid, c.Filter.Mode)
	}

	switch c.Reference.Mode {
	case ReferenceNone, ReferenceMedian, ReferenceSelf:
	case ReferenceSingle:
		if c.Reference.T < 1 {
			return fmt.Errorf("%w: reference slice %d is not 1-based", ErrInvalid, c.Reference.T)
		}
	default:
		return fmt.Errorf("%w: reference mode %q", ErrInvalid, c.Reference.Mode)
	}

	switch tilt.Mode(c.Tilt.Mode) {
	case tilt.ModeAuto, tilt.ModeMiddle:
	default:
		return fmt.Errorf("%w: tilt mode %q", ErrInvalid, c.Tilt.Mode)
	}
	if c.Tilt.Degree < 1 {
		return fmt.Errorf("%w: tilt degree %d", ErrInvalid, c.Tilt.Degree)
	}

	for _, k := range c.Output.Kinds {
		if _, err := result.ParseKind(k); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if _, err := result.ParseType(c.Output.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Output.Sink {
	case SinkFS, SinkMemory:
	case SinkS3:
		if c.Output.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 sink needs a bucket", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: output sink %q", ErrInvalid, c.Output.Sink)
	}

	switch c.Catalog.Driver {
	case "":
	case "sqlite", "pgx":
		if c.Catalog.DSN == "" {
			return fmt.Errorf("%w: catalog driver %s needs a dsn", ErrInvalid, c.Catalog.Driver)
		}
	default:
		return fmt.Errorf("%w: catalog driver %q", ErrInvalid, c.Catalog.Driver)
	}

	if _, err := field.ParseBackend(c.Processing.Backend); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// An explicit list in the file replaces the default range.
	cfg.Zs.Range = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(cfg.Zs.Values) == 0 && cfg.Zs.Range == nil {
		cfg.Zs.Range = DefaultConfig().Zs.Range
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
