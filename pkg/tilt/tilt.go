// Package tilt removes a polynomial phase tilt from reconstructed fields.
//
// A polynomial is fitted to the unwrapped phase along one horizontal and one
// vertical line of the field. The sum of both fits is then subtracted from
// the phase of every sample.
package tilt

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"holorecon/pkg/field"
	"holorecon/pkg/pipeline"
)

// PluginName is the name the Tilt plugin reports.
const PluginName = "tilt"

// Mode selects the lines the polynomial is fitted along.
type Mode string

const (
	// ModeAuto picks the row and column whose phase the polynomial fits
	// best.
	ModeAuto Mode = "auto"

	// ModeMiddle uses the centre row and column.
	ModeMiddle Mode = "middle"
)

// Options configures a Tilt.
type Options struct {
	Mode Mode

	// Degree of the fitted polynomial. Zero means 1.
	Degree int
}

// Line is a run of samples along one row or column. Start and End are
// half-open positions along the line.
type Line struct {
	Vertical bool
	Index    int
	Start    int
	End      int
}

// Len returns the number of samples on l.
func (l Line) Len() int { return l.End - l.Start }

// Points returns the samples of l in order.
func (l Line) Points() []image.Point {
	pts := make([]image.Point, 0, l.Len())
	for i := l.Start; i < l.End; i++ {
		if l.Vertical {
			pts = append(pts, image.Pt(l.Index, i))
		} else {
			pts = append(pts, image.Pt(i, l.Index))
		}
	}
	return pts
}

// Values returns the samples of grid ([y][x]) along l.
func (l Line) Values(grid [][]float64) []float64 {
	out := make([]float64, 0, l.Len())
	for _, p := range l.Points() {
		out = append(out, grid[p.Y][p.X])
	}
	return out
}

func (l Line) String() string {
	if l.Vertical {
		return fmt.Sprintf("x=%d y=[%d,%d)", l.Index, l.Start, l.End)
	}
	return fmt.Sprintf("y=%d x=[%d,%d)", l.Index, l.Start, l.End)
}

// margin skips the border samples of any dimension longer than two.
func margin(n int) int {
	if n > 2 {
		return 1
	}
	return 0
}

// MiddleLines returns the centre row and column of a w x h field.
func MiddleLines(w, h int) (hline, vline Line) {
	mx, my := margin(w), margin(h)
	hline = Line{Index: h / 2, Start: mx, End: w - mx}
	vline = Line{Vertical: true, Index: w / 2, Start: my, End: h - my}
	return hline, vline
}

// AutoHLine returns the interior row of phase whose unwrapped values are
// best fitted by a polynomial of the given degree.
func AutoHLine(phase [][]float64, degree int) Line {
	h := len(phase)
	w := 0
	if h > 0 {
		w = len(phase[0])
	}
	mx, my := margin(w), margin(h)
	return best(my, h-my, degree, phase, func(i int) Line {
		return Line{Index: i, Start: mx, End: w - mx}
	})
}

// AutoVLine is AutoHLine for columns.
func AutoVLine(phase [][]float64, degree int) Line {
	h := len(phase)
	w := 0
	if h > 0 {
		w = len(phase[0])
	}
	mx, my := margin(w), margin(h)
	return best(mx, w-mx, degree, phase, func(i int) Line {
		return Line{Vertical: true, Index: i, Start: my, End: h - my}
	})
}

func best(from, to, degree int, phase [][]float64, line func(i int) Line) Line {
	chosen := line(from)
	least := math.Inf(1)
	for i := from; i < to; i++ {
		l := line(i)
		_, residual := Fit(Unwrap(l.Values(phase)), l.Start, degree)
		if residual < least {
			chosen, least = l, residual
		}
	}
	return chosen
}

// Unwrap removes 2π jumps between consecutive values.
func Unwrap(values []float64) []float64 {
	out := make([]float64, len(values))
	offset := 0.0
	for i, v := range values {
		if i > 0 {
			d := v - values[i-1]
			offset -= 2 * math.Pi * math.Round(d/(2*math.Pi))
		}
		out[i] = v + offset
	}
	return out
}

// Fit returns the least-squares polynomial coefficients (constant term
// first) for values sampled at positions start, start+1, ... and the
// Euclidean norm of the residual. The degree is lowered when there are too
// few values for it.
func Fit(values []float64, start, degree int) (coeffs []float64, residual float64) {
	n := len(values)
	if n == 0 {
		return nil, math.Inf(1)
	}
	degree = min(degree, n-1)

	a := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		x := float64(start + i)
		p := 1.0
		for k := 0; k <= degree; k++ {
			a.Set(i, k, p)
			p *= x
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), values...))

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		// Condition errors still carry a solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, math.Inf(1)
		}
	}
	var r mat.VecDense
	r.MulVec(a, &c)
	r.SubVec(&r, b)
	return c.RawVector().Data, mat.Norm(&r, 2)
}

// Eval evaluates the polynomial with the given coefficients at x.
func Eval(coeffs []float64, x float64) float64 {
	v := 0.0
	for k := len(coeffs) - 1; k >= 0; k-- {
		v = v*x + coeffs[k]
	}
	return v
}

// Tilt is the pipeline plugin. It runs late in the FilteredField stage so
// that other corrections are already applied.
type Tilt struct {
	pipeline.Base

	opts  Options
	hline Line
	vline Line
}

// New returns a Tilt plugin.
func New(opts Options) *Tilt {
	if opts.Degree <= 0 {
		opts.Degree = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	return &Tilt{
		Base: pipeline.NewBase(PluginName, pipeline.Priorities{Default: pipeline.PriorityLow}),
		opts: opts,
	}
}

// Lines returns the lines used for the last corrected field.
func (tl *Tilt) Lines() (hline, vline Line) { return tl.hline, tl.vline }

func (tl *Tilt) FilteredField(f *field.ReconstructionField, t int) {
	if err := tl.Apply(f); err != nil {
		tl.Fail(err)
		return
	}
	tl.Logger().Debug("tilt removed", "t", t, "hline", tl.hline, "vline", tl.vline)
}

// Apply removes the fitted tilt from f.
func (tl *Tilt) Apply(f *field.ReconstructionField) error {
	phase := f.Field().PhaseGrid()
	w, h := f.Width(), f.Height()

	switch tl.opts.Mode {
	case ModeAuto:
		tl.hline = AutoHLine(phase, tl.opts.Degree)
		tl.vline = AutoVLine(phase, tl.opts.Degree)
	case ModeMiddle:
		tl.hline, tl.vline = MiddleLines(w, h)
	default:
		return fmt.Errorf("tilt: unknown mode %q", tl.opts.Mode)
	}

	px, _ := Fit(Unwrap(tl.hline.Values(phase)), tl.hline.Start, tl.opts.Degree)
	py, _ := Fit(Unwrap(tl.vline.Values(phase)), tl.vline.Start, tl.opts.Degree)
	if px == nil || py == nil {
		return fmt.Errorf("tilt: cannot fit %v and %v", tl.hline, tl.vline)
	}
	// Both fits pass through the sample where the lines cross.
	cross := Eval(py, float64(tl.hline.Index))

	factors := make([]complex128, w*h)
	for y := 0; y < h; y++ {
		ty := Eval(py, float64(y)) - cross
		for x := 0; x < w; x++ {
			factors[y*w+x] = cmplx.Rect(1, -(Eval(px, float64(x)) + ty))
		}
	}
	var err error
	f.EditField(func(c *field.ComplexField) { err = c.Multiply(factors) })
	return err
}
