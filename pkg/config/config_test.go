package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holorecon/pkg/units"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	zs, err := cfg.Distances()
	require.NoError(t, err)
	require.Len(t, zs, 11)
	assert.Equal(t, units.New(0, units.Micro), zs[0])
	assert.Equal(t, units.New(100, units.Micro), zs[10])
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holorecon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
optics:
  wavelength: 633nm
  width: 0.5 mm
ts: [1, 3]
zs:
  values: [100um, 0.25mm]
reference:
  mode: median
  ts: [1, 2]
output:
  kinds: [phase]
  sink: s3
  s3:
    bucket: holograms
    usePathStyle: true
processing:
  backend: dsp
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, units.New(633, units.Nano), cfg.Optics.Wavelength)
	assert.Equal(t, units.New(0.5, units.Milli), cfg.Optics.Width)
	assert.Equal(t, units.New(300, units.Micro), cfg.Optics.Height, "untouched keys keep defaults")
	assert.Equal(t, []int{1, 3}, cfg.Ts)
	assert.Nil(t, cfg.Zs.Range)

	zs, err := cfg.Distances()
	require.NoError(t, err)
	assert.Equal(t, []units.Distance{units.New(100, units.Micro), units.New(0.25, units.Milli)}, zs)

	assert.Equal(t, ReferenceMedian, cfg.Reference.Mode)
	assert.Equal(t, []int{1, 2}, cfg.Reference.Ts)
	assert.Equal(t, []string{"phase"}, cfg.Output.Kinds)
	assert.Equal(t, "holograms", cfg.Output.S3.Bucket)
	assert.True(t, cfg.Output.S3.UsePathStyle)
	assert.Equal(t, "dsp", cfg.Processing.Backend)
}

func TestLoadConfigKeepsDefaultRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holorecon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tilt:\n  enabled: true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tilt.Enabled)
	assert.Equal(t, DefaultConfig().Zs.Range, cfg.Zs.Range)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("optics:\n  wavelength: 500 furlongs\n"), 0o644))
	_, err := LoadConfig(bad)
	assert.ErrorIs(t, err, units.ErrUnknownUnit)

	_, err = LoadConfig(dir)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "holorecon.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wavelength: 500nm")
	assert.Contains(t, string(data), "step: 10um")
}

func TestDistancesRange(t *testing.T) {
	tests := []struct {
		name  string
		r     ZRange
		want  []units.Distance
		valid bool
	}{
		{
			name:  "mixed units",
			r:     ZRange{Start: units.MustParse("1mm"), End: units.MustParse("1.5mm"), Step: units.MustParse("250um")},
			want:  []units.Distance{units.MustParse("1mm"), units.MustParse("1.25mm"), units.MustParse("1.5mm")},
			valid: true,
		},
		{
			name:  "end between steps",
			r:     ZRange{Start: units.MustParse("0um"), End: units.MustParse("25um"), Step: units.MustParse("10um")},
			want:  []units.Distance{units.MustParse("0um"), units.MustParse("10um"), units.MustParse("20um")},
			valid: true,
		},
		{
			name:  "single point",
			r:     ZRange{Start: units.MustParse("5um"), End: units.MustParse("5um"), Step: units.MustParse("1um")},
			want:  []units.Distance{units.MustParse("5um")},
			valid: true,
		},
		{
			name: "zero step",
			r:    ZRange{Start: units.MustParse("0um"), End: units.MustParse("5um"), Step: units.MustParse("0um")},
		},
		{
			name: "backwards",
			r:    ZRange{Start: units.MustParse("5um"), End: units.MustParse("0um"), Step: units.MustParse("1um")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Zs.Range = &tt.r
			got, err := cfg.Distances()
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.True(t, tt.want[i].Equal(got[i]), "distance %d: want %v, got %v", i, tt.want[i], got[i])
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"zero wavelength", func(c *Config) { c.Optics.Wavelength = units.New(0, units.Nano) }, "wavelength"},
		{"negative height", func(c *Config) { c.Optics.Height = units.New(-1, units.Micro) }, "height"},
		{"no distances", func(c *Config) { c.Zs.Range = nil }, "no propagation distances"},
		{"zero-based slice", func(c *Config) { c.Ts = []int{0} }, "not 1-based"},
		{"filter mode", func(c *Config) { c.Filter.Mode = "magic" }, "filter mode"},
		{"manual without roi", func(c *Config) { c.Filter.Mode = "manual" }, "needs roi"},
		{"reference mode", func(c *Config) { c.Reference.Mode = "dark" }, "reference mode"},
		{"single slice", func(c *Config) { c.Reference.Mode = ReferenceSingle; c.Reference.T = 0 }, "reference slice"},
		{"tilt mode", func(c *Config) { c.Tilt.Mode = "edge" }, "tilt mode"},
		{"tilt degree", func(c *Config) { c.Tilt.Degree = 0 }, "tilt degree"},
		{"kind", func(c *Config) { c.Output.Kinds = []string{"intensity"} }, "unknown kind"},
		{"type", func(c *Config) { c.Output.Type = "12bit" }, "unknown type"},
		{"sink", func(c *Config) { c.Output.Sink = "ftp" }, "output sink"},
		{"s3 bucket", func(c *Config) { c.Output.Sink = SinkS3 }, "bucket"},
		{"catalog driver", func(c *Config) { c.Catalog.Driver = "mysql" }, "catalog driver"},
		{"catalog dsn", func(c *Config) { c.Catalog.Driver = "sqlite" }, "needs a dsn"},
		{"backend", func(c *Config) { c.Processing.Backend = "fftw" }, "fftw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestManualROI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.Mode = "manual"
	cfg.Filter.ROI = []int{1, 2, 3, 4}
	require.NoError(t, cfg.Validate())
	x0, y0, x1, y1, ok := cfg.ROI()
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{x0, y0, x1, y1})
}
