package field

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend names a 2-D FFT implementation.
type Backend string

const (
	// BackendGonum runs separable row/column transforms on gonum's
	// mixed-radix complex FFT.
	BackendGonum Backend = "gonum"

	// BackendDSP uses go-dsp's FFT2/IFFT2.
	BackendDSP Backend = "dsp"
)

// DefaultBackend is used when no backend is requested.
const DefaultBackend = BackendGonum

// ParseBackend maps a backend name to a Backend. The empty string selects
// DefaultBackend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultBackend, nil
	case BackendGonum:
		return BackendGonum, nil
	case BackendDSP:
		return BackendDSP, nil
	}
	return "", fmt.Errorf("field: unknown FFT backend %q", s)
}

// Transform is a 2-D discrete Fourier transform sized to one grid.
//
// Forward is unnormalized; Inverse divides by width*height so that
// Inverse(Forward(x)) == x. Both operate in place and panic when handed a
// field of another size. A Transform keeps scratch buffers and is not safe
// for concurrent use.
type Transform interface {
	Forward(c *ComplexField)
	Inverse(c *ComplexField)
	Backend() Backend
}

// NewTransform returns a transform of the given backend for a width x height
// grid.
func NewTransform(b Backend, width, height int) (Transform, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmpty
	}
	switch b {
	case BackendGonum, "":
		return newGonumTransform(width, height), nil
	case BackendDSP:
		return &dspTransform{width: width, height: height}, nil
	}
	return nil, fmt.Errorf("field: unknown FFT backend %q", b)
}

type gonumTransform struct {
	width, height int
	rows          *fourier.CmplxFFT
	cols          *fourier.CmplxFFT
	rowIn, rowOut []complex128
	colIn, colOut []complex128
}

func newGonumTransform(width, height int) *gonumTransform {
	return &gonumTransform{
		width:  width,
		height: height,
		rows:   fourier.NewCmplxFFT(width),
		cols:   fourier.NewCmplxFFT(height),
		rowIn:  make([]complex128, width),
		rowOut: make([]complex128, width),
		colIn:  make([]complex128, height),
		colOut: make([]complex128, height),
	}
}

func (t *gonumTransform) Backend() Backend { return BackendGonum }

func (t *gonumTransform) Forward(c *ComplexField) {
	t.check(c)
	t.apply(c.data, t.rows.Coefficients, t.cols.Coefficients)
}

func (t *gonumTransform) Inverse(c *ComplexField) {
	t.check(c)
	t.apply(c.data, t.rows.Sequence, t.cols.Sequence)

	// gonum's inverse is unnormalized.
	scale := complex(1/float64(t.width*t.height), 0)
	for i := range c.data {
		c.data[i] *= scale
	}
}

// apply runs a 1-D transform over every row and then over every column.
func (t *gonumTransform) apply(data []complex128, row, col func(dst, src []complex128) []complex128) {
	w, h := t.width, t.height
	for y := 0; y < h; y++ {
		copy(t.rowIn, data[y*w:(y+1)*w])
		row(t.rowOut, t.rowIn)
		copy(data[y*w:(y+1)*w], t.rowOut)
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			t.colIn[y] = data[y*w+x]
		}
		col(t.colOut, t.colIn)
		for y := 0; y < h; y++ {
			data[y*w+x] = t.colOut[y]
		}
	}
}

func (t *gonumTransform) check(c *ComplexField) {
	if c.width != t.width || c.height != t.height {
		panic(fmt.Sprintf("field: %dx%d transform applied to %dx%d field", t.width, t.height, c.width, c.height))
	}
}

type dspTransform struct {
	width, height int
}

func (t *dspTransform) Backend() Backend { return BackendDSP }

func (t *dspTransform) Forward(c *ComplexField) {
	t.check(c)
	t.store(c, fft.FFT2(t.load(c)))
}

// Inverse relies on IFFT2 already dividing by the sample count.
func (t *dspTransform) Inverse(c *ComplexField) {
	t.check(c)
	t.store(c, fft.IFFT2(t.load(c)))
}

func (t *dspTransform) load(c *ComplexField) [][]complex128 {
	grid := make([][]complex128, t.height)
	for y := range grid {
		row := make([]complex128, t.width)
		copy(row, c.data[y*t.width:(y+1)*t.width])
		grid[y] = row
	}
	return grid
}

func (t *dspTransform) store(c *ComplexField, grid [][]complex128) {
	for y, row := range grid {
		copy(c.data[y*t.width:(y+1)*t.width], row)
	}
}

func (t *dspTransform) check(c *ComplexField) {
	if c.width != t.width || c.height != t.height {
		panic(fmt.Sprintf("field: %dx%d transform applied to %dx%d field", t.width, t.height, c.width, c.height))
	}
}
