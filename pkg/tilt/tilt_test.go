package tilt

import (
	"context"
	"image"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holorecon/pkg/field"
	"holorecon/pkg/hologram"
	"holorecon/pkg/pipeline"
	"holorecon/pkg/units"
)

// columns builds a [y][x] grid from its columns.
func columns(cols ...[]float64) [][]float64 {
	grid := make([][]float64, len(cols[0]))
	for y := range grid {
		grid[y] = make([]float64, len(cols))
		for x, col := range cols {
			grid[y][x] = col[y]
		}
	}
	return grid
}

func zeros(w, h int) [][]float64 {
	grid := make([][]float64, h)
	for y := range grid {
		grid[y] = make([]float64, w)
	}
	return grid
}

func TestAutoLineNeverEmpty(t *testing.T) {
	assert.NotZero(t, AutoHLine(zeros(2, 2), 1).Len())
	assert.NotZero(t, AutoVLine(zeros(2, 2), 1).Len())
	assert.Equal(t, 4, AutoHLine(zeros(6, 6), 1).Len())
	assert.Equal(t, 4, AutoVLine(zeros(6, 6), 1).Len())
}

func TestAutoVLine(t *testing.T) {
	noise := []float64{0, 1, 2, 0, 1, 2}
	tests := []struct {
		name   string
		phase  [][]float64
		degree int
		want   Line
	}{
		{
			name: "perfect linear",
			phase: columns(
				[]float64{0, 1, 0, 1, 0},
				[]float64{0, 1, 0, 1, 0},
				[]float64{0, 1, 2, 3, 0},
				[]float64{0, 1, 0, 1, 0},
				[]float64{0, 1, 0, 1, 0},
			),
			degree: 1,
			want:   Line{Vertical: true, Index: 2, Start: 1, End: 4},
		},
		{
			name:   "perfect quadratic",
			phase:  columns(noise, noise, noise, noise, []float64{0, 0.1, 0.4, 0.9, 1.6, 2}, noise),
			degree: 2,
			want:   Line{Vertical: true, Index: 4, Start: 1, End: 5},
		},
		{
			name:   "nonperfect",
			phase:  columns(noise, noise, noise, noise, []float64{0, 0.1, 0.3, 1, 1.5, 2}, noise),
			degree: 2,
			want:   Line{Vertical: true, Index: 4, Start: 1, End: 5},
		},
		{
			name:   "wrapped phase",
			phase:  columns(noise, noise, noise, noise, []float64{0, 0.2, 0.8, 1.8, -3.1, 2}, noise),
			degree: 2,
			want:   Line{Vertical: true, Index: 4, Start: 1, End: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AutoVLine(tt.phase, tt.degree)
			assert.Equal(t, tt.want, got)

			// The same data turned on its side gives the matching row.
			h := AutoHLine(columns(tt.phase...), tt.degree)
			assert.Equal(t, Line{Index: tt.want.Index, Start: tt.want.Start, End: tt.want.End}, h)
		})
	}
}

func TestLinePoints(t *testing.T) {
	v := Line{Vertical: true, Index: 2, Start: 1, End: 4}
	assert.Equal(t, []image.Point{image.Pt(2, 1), image.Pt(2, 2), image.Pt(2, 3)}, v.Points())
	assert.Equal(t, "x=2 y=[1,4)", v.String())

	h := Line{Index: 0, Start: 0, End: 2}
	assert.Equal(t, []image.Point{image.Pt(0, 0), image.Pt(1, 0)}, h.Points())
	assert.Equal(t, []float64{5, 6}, h.Values([][]float64{{5, 6}, {7, 8}}))
}

func TestMiddleLines(t *testing.T) {
	h, v := MiddleLines(6, 5)
	assert.Equal(t, Line{Index: 2, Start: 1, End: 5}, h)
	assert.Equal(t, Line{Vertical: true, Index: 3, Start: 1, End: 4}, v)

	h, v = MiddleLines(2, 1)
	assert.Equal(t, Line{Index: 0, Start: 0, End: 2}, h)
	assert.Equal(t, Line{Vertical: true, Index: 1, Start: 0, End: 1}, v)
}

func TestUnwrap(t *testing.T) {
	got := Unwrap([]float64{3, -3, -2.9, 3.1})
	want := []float64{3, -3 + 2*math.Pi, -2.9 + 2*math.Pi, 3.1}
	assert.InDeltaSlice(t, want, got, 1e-12)
	assert.Empty(t, Unwrap(nil))
}

func TestFit(t *testing.T) {
	coeffs, residual := Fit([]float64{0.1, 0.4, 0.9, 1.6}, 1, 2)
	assert.InDeltaSlice(t, []float64{0, 0, 0.1}, coeffs, 1e-9)
	assert.InDelta(t, 0, residual, 1e-9)
	assert.InDelta(t, 2.5, Eval(coeffs, 5), 1e-9)

	// Two values cannot carry a quadratic; the line through them is exact.
	coeffs, residual = Fit([]float64{1, 3}, 0, 2)
	assert.InDeltaSlice(t, []float64{1, 2}, coeffs, 1e-9)
	assert.InDelta(t, 0, residual, 1e-9)

	_, residual = Fit([]float64{1, 0, 1}, 0, 1)
	assert.InDelta(t, math.Sqrt(2.0/3), residual, 1e-9)

	coeffs, residual = Fit(nil, 0, 1)
	assert.Nil(t, coeffs)
	assert.True(t, math.IsInf(residual, 1))
}

func TestEval(t *testing.T) {
	assert.Equal(t, 0.0, Eval(nil, 3))
	assert.Equal(t, 1.0+2*3+4*9, Eval([]float64{1, 2, 4}, 3))
}

// tilted returns a unit-amplitude field with phase phi(x, y).
func tilted(t *testing.T, w, h int, phi func(x, y float64) float64) *field.ReconstructionField {
	t.Helper()
	samples := make([]complex128, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			samples = append(samples, cmplx.Rect(1, phi(float64(x), float64(y))))
		}
	}
	c, err := field.NewComplexFieldFromSamples(w, h, samples)
	require.NoError(t, err)
	f, err := field.FromField(c)
	require.NoError(t, err)
	return f
}

func assertFlat(t *testing.T, v field.View) {
	t.Helper()
	for y := 0; y < v.Height(); y++ {
		for x := 0; x < v.Width(); x++ {
			assert.InDelta(t, 1, v.Real(x, y), 1e-9, "real at (%d, %d)", x, y)
			assert.InDelta(t, 0, v.Imag(x, y), 1e-9, "imaginary at (%d, %d)", x, y)
		}
	}
}

func TestApplyRemovesTilt(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		phi  func(x, y float64) float64
	}{
		{"linear auto", Options{}, func(x, y float64) float64 { return 0.3*x + 0.2*y + 0.1 }},
		{"linear middle", Options{Mode: ModeMiddle}, func(x, y float64) float64 { return 0.7*x - 0.4*y - 2 }},
		{"quadratic", Options{Degree: 2}, func(x, y float64) float64 { return 0.05*x*x - 0.1*y + 0.03*y*y }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tilted(t, 8, 7, tt.phi)
			tl := New(tt.opts)
			require.NoError(t, tl.Apply(f))
			assertFlat(t, f.Field())
		})
	}
}

func TestApplyUnknownMode(t *testing.T) {
	tl := New(Options{Mode: "diagonal"})
	err := tl.Apply(tilted(t, 3, 3, func(x, y float64) float64 { return 0 }))
	assert.ErrorContains(t, err, "unknown mode")
}

type discard struct{}

func (discard) ShowStatus(string) {}

type collect struct {
	pipeline.Base
	fields []field.View
}

func (c *collect) FilteredField(f *field.ReconstructionField, _ int) {
	c.fields = append(c.fields, f.Copy().Field())
}

func TestPluginRunsAfterOtherCorrections(t *testing.T) {
	grid := make([][]float64, 6)
	for y := range grid {
		grid[y] = make([]float64, 6)
		for x := range grid[y] {
			grid[y][x] = 1
		}
	}
	stack, err := hologram.NewStackFromGrids("flat", grid)
	require.NoError(t, err)

	// The hologram is real; the tilt is added by a plugin at normal
	// priority and removed by the tilt plugin after it.
	add := &addTilt{Base: pipeline.NewBase("add", pipeline.Priorities{})}
	c := &collect{Base: pipeline.NewBase("collect", pipeline.Priorities{Default: pipeline.PriorityLast})}
	tl := New(Options{Mode: ModeMiddle})
	op, err := pipeline.New(pipeline.Params{
		Hologram:   stack,
		Wavelength: units.New(500, units.Nano),
		Width:      units.New(1, units.Milli),
		Height:     units.New(1, units.Milli),
		Ts:         []int{1},
		Zs:         []units.Distance{units.New(0, units.Milli)},
	}, []pipeline.Plugin{c, tl, add}, pipeline.WithStatus(discard{}))
	require.NoError(t, err)
	require.NoError(t, op.Run(context.Background()))

	require.Len(t, c.fields, 1)
	assertFlat(t, c.fields[0])
	h, v := tl.Lines()
	assert.Equal(t, Line{Index: 3, Start: 1, End: 5}, h)
	assert.Equal(t, Line{Vertical: true, Index: 3, Start: 1, End: 5}, v)
}

type addTilt struct {
	pipeline.Base
}

func (a *addTilt) FilteredField(f *field.ReconstructionField, _ int) {
	f.EditField(func(c *field.ComplexField) {
		for y := 0; y < c.Height(); y++ {
			for x := 0; x < c.Width(); x++ {
				c.Set(x, y, c.At(x, y)*cmplx.Rect(1, 0.5*float64(x)-0.25*float64(y)))
			}
		}
	})
}
