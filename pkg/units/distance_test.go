package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConvert(t *testing.T) {
	assert.Equal(t, 2e-3, New(2, Milli).AsMeter())
	assert.Equal(t, 2e3, New(2, Meter).AsMilli())
	assert.Equal(t, 2e4, New(2, Centi).AsMicro())
	assert.Equal(t, 500.0, New(0.5, Micro).AsNano())
}

func TestEqualAcrossUnits(t *testing.T) {
	tests := []struct {
		a, b Distance
	}{
		{New(500, Nano), New(0.5, Micro)},
		{New(300, Micro), New(0.3, Milli)},
		{New(310, Micro), New(0.031, Centi)},
		{New(100, Micro), New(0.0001, Meter)},
	}
	for _, tt := range tests {
		assert.True(t, tt.a.Equal(tt.b), "%v should equal %v", tt.a, tt.b)
		assert.Equal(t, 0, tt.a.Compare(tt.b))
		assert.InDelta(t, tt.a.Meters(), tt.b.Meters(), 1e-18)
	}
	assert.False(t, New(1, Milli).Equal(New(1, Micro)))
	assert.Equal(t, 1, New(1, Milli).Compare(New(1, Micro)))
	assert.Equal(t, -1, New(1, Nano).Compare(New(1, Meter)))
}

func TestAddSub(t *testing.T) {
	d := New(200, Micro).Sub(New(0.1, Milli))
	assert.Equal(t, Micro, d.Unit)
	assert.InDelta(t, 100, d.Value, 1e-9)

	d = New(1, Milli).Add(New(500, Micro))
	assert.Equal(t, Milli, d.Unit)
	assert.InDelta(t, 1.5, d.Value, 1e-12)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Distance
	}{
		{"500nm", New(500, Nano)},
		{"0.3 mm", New(0.3, Milli)},
		{"300um", New(300, Micro)},
		{"300 µm", New(300, Micro)},
		{"1e-4m", New(1e-4, Meter)},
		{"-100um", New(-100, Micro)},
		{"2 cm", New(2, Centi)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "nm", "12", "12 parsec", "abc um"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
	_, err := Parse("12 parsec")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestStringRoundTrip(t *testing.T) {
	for _, d := range []Distance{New(500, Nano), New(0.031, Centi), New(-2.5, Meter)} {
		back, err := Parse(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
	assert.Equal(t, "500nm", New(500, Nano).String())
}

func TestYAML(t *testing.T) {
	var doc struct {
		Wavelength Distance   `yaml:"wavelength"`
		Zs         []Distance `yaml:"zs"`
	}
	err := yaml.Unmarshal([]byte("wavelength: 633nm\nzs: [0um, 10um, 1.5mm]\n"), &doc)
	require.NoError(t, err)
	assert.Equal(t, New(633, Nano), doc.Wavelength)
	assert.Equal(t, []Distance{New(0, Micro), New(10, Micro), New(1.5, Milli)}, doc.Zs)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "wavelength: 633nm")

	err = yaml.Unmarshal([]byte("wavelength: [1, 2]\n"), &doc)
	assert.Error(t, err)
}

func TestUnitTable(t *testing.T) {
	for _, u := range Units() {
		parsed, err := ParseUnit(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, parsed)
	}
	assert.Equal(t, 1.0, Meter.Factor())
	assert.Equal(t, 1e-9, Nano.Factor())
}
