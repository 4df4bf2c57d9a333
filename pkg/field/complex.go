// Package field holds the complex wavefield representations used by the
// reconstruction pipeline.
//
// A ComplexField is a plain grid of complex samples. A ReconstructionField
// owns a spatial-domain and a frequency-domain ComplexField for the same grid
// and keeps the two coherent: whichever is missing is computed from the
// other on demand, and every edit of one drops the other.
package field

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

var (
	// ErrEmpty is returned when a grid has a zero dimension.
	ErrEmpty = errors.New("field: empty grid")

	// ErrShape is returned when real and imaginary grids disagree in shape
	// or a grid is ragged.
	ErrShape = errors.New("field: shape mismatch")
)

// ComplexField is a width x height grid of complex samples stored in
// row-major order. Amplitude and phase are always derived from the stored
// (real, imaginary) pairs.
type ComplexField struct {
	width  int
	height int
	data   []complex128
}

// NewComplexField builds a field from same-shaped real and imaginary grids.
// Grids are indexed [y][x]; every row must have the same length. A nil imag
// is treated as all zeros.
func NewComplexField(real, imag [][]float64) (*ComplexField, error) {
	height := len(real)
	if height == 0 || len(real[0]) == 0 {
		return nil, ErrEmpty
	}
	width := len(real[0])
	if imag != nil && len(imag) != height {
		return nil, fmt.Errorf("%w: real has %d rows, imaginary has %d", ErrShape, height, len(imag))
	}

	c := &ComplexField{width: width, height: height, data: make([]complex128, width*height)}
	for y := 0; y < height; y++ {
		if len(real[y]) != width {
			return nil, fmt.Errorf("%w: real row %d has %d samples, want %d", ErrShape, y, len(real[y]), width)
		}
		if imag != nil && len(imag[y]) != width {
			return nil, fmt.Errorf("%w: imaginary row %d has %d samples, want %d", ErrShape, y, len(imag[y]), width)
		}
		for x := 0; x < width; x++ {
			im := 0.0
			if imag != nil {
				im = imag[y][x]
			}
			c.data[y*width+x] = complex(real[y][x], im)
		}
	}
	return c, nil
}

// NewComplexFieldFromSamples wraps a row-major sample slice. The slice is
// copied.
func NewComplexFieldFromSamples(width, height int, samples []complex128) (*ComplexField, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmpty
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("%w: %d samples for a %dx%d grid", ErrShape, len(samples), width, height)
	}
	data := make([]complex128, len(samples))
	copy(data, samples)
	return &ComplexField{width: width, height: height, data: data}, nil
}

// Width returns the number of samples per row.
func (c *ComplexField) Width() int { return c.width }

// Height returns the number of rows.
func (c *ComplexField) Height() int { return c.height }

// Copy returns an independent deep copy of c.
func (c *ComplexField) Copy() *ComplexField {
	data := make([]complex128, len(c.data))
	copy(data, c.data)
	return &ComplexField{width: c.width, height: c.height, data: data}
}

// At returns the sample at (x, y).
func (c *ComplexField) At(x, y int) complex128 {
	return c.data[y*c.width+x]
}

// Set stores v at (x, y).
func (c *ComplexField) Set(x, y int, v complex128) {
	c.data[y*c.width+x] = v
}

func (c *ComplexField) Real(x, y int) float64 { return real(c.data[y*c.width+x]) }
func (c *ComplexField) Imag(x, y int) float64 { return imag(c.data[y*c.width+x]) }

// Amplitude returns sqrt(re² + im²) at (x, y).
func (c *ComplexField) Amplitude(x, y int) float64 {
	return cmplx.Abs(c.data[y*c.width+x])
}

// Phase returns atan2(im, re) at (x, y).
func (c *ComplexField) Phase(x, y int) float64 {
	v := c.data[y*c.width+x]
	return math.Atan2(imag(v), real(v))
}

// Samples returns the row-major backing slice. Callers that only hold a
// View never see it.
func (c *ComplexField) Samples() []complex128 {
	return c.data
}

// Multiply multiplies every sample by the matching entry of factors, which
// must be row-major with the same dimensions.
func (c *ComplexField) Multiply(factors []complex128) error {
	if len(factors) != len(c.data) {
		return fmt.Errorf("%w: %d factors for %d samples", ErrShape, len(factors), len(c.data))
	}
	for i, f := range factors {
		c.data[i] *= f
	}
	return nil
}

// Shift swaps the four quadrants so that the sample at the grid corner moves
// to (width/2, height/2). Top-left trades with bottom-right and top-right
// with bottom-left; for odd dimensions the leading block is the larger one.
// For even dimensions Shift is its own inverse; Unshift undoes it for any
// size.
func (c *ComplexField) Shift() {
	c.roll(c.width/2, c.height/2)
}

// Unshift moves the sample at (width/2, height/2) back to the grid corner.
func (c *ComplexField) Unshift() {
	c.roll((c.width+1)/2, (c.height+1)/2)
}

// roll cyclically moves every sample by (dx, dy).
func (c *ComplexField) roll(dx, dy int) {
	if dx%c.width == 0 && dy%c.height == 0 {
		return
	}
	out := make([]complex128, len(c.data))
	for y := 0; y < c.height; y++ {
		ny := (y + dy) % c.height
		for x := 0; x < c.width; x++ {
			nx := (x + dx) % c.width
			out[ny*c.width+nx] = c.data[y*c.width+x]
		}
	}
	c.data = out
}

// RealGrid, ImagGrid, AmplitudeGrid and PhaseGrid materialise one derived
// view as a [y][x] grid.
func (c *ComplexField) RealGrid() [][]float64 {
	return c.grid(func(v complex128) float64 { return real(v) })
}

func (c *ComplexField) ImagGrid() [][]float64 {
	return c.grid(func(v complex128) float64 { return imag(v) })
}

func (c *ComplexField) AmplitudeGrid() [][]float64 { return c.grid(cmplx.Abs) }

func (c *ComplexField) PhaseGrid() [][]float64 {
	return c.grid(func(v complex128) float64 { return math.Atan2(imag(v), real(v)) })
}

func (c *ComplexField) grid(f func(complex128) float64) [][]float64 {
	out := make([][]float64, c.height)
	for y := range out {
		row := make([]float64, c.width)
		for x := range row {
			row[x] = f(c.data[y*c.width+x])
		}
		out[y] = row
	}
	return out
}

// View is a read-only handle on a ComplexField owned by someone else,
// typically a ReconstructionField. It exposes every accessor except the
// mutators; Copy hands out an independent field that may be edited freely.
type View struct {
	c *ComplexField
}

func (v View) Width() int                 { return v.c.width }
func (v View) Height() int                { return v.c.height }
func (v View) At(x, y int) complex128     { return v.c.At(x, y) }
func (v View) Real(x, y int) float64      { return v.c.Real(x, y) }
func (v View) Imag(x, y int) float64      { return v.c.Imag(x, y) }
func (v View) Amplitude(x, y int) float64 { return v.c.Amplitude(x, y) }
func (v View) Phase(x, y int) float64     { return v.c.Phase(x, y) }
func (v View) RealGrid() [][]float64      { return v.c.RealGrid() }
func (v View) ImagGrid() [][]float64      { return v.c.ImagGrid() }
func (v View) AmplitudeGrid() [][]float64 { return v.c.AmplitudeGrid() }
func (v View) PhaseGrid() [][]float64     { return v.c.PhaseGrid() }
func (v View) Copy() *ComplexField        { return v.c.Copy() }
