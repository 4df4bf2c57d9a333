// Package reference removes the background phase of a hologram series by
// dividing every field by the phase of a reference hologram.
//
// The reference is a single slice of the series, the elementwise median of
// several slices, or each slice itself. When the run also has a filter
// plugin the reference is filtered the same way as the slices it corrects;
// a self reference finds its own region on each slice's spectrum.
package reference

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"

	"holorecon/pkg/field"
	"holorecon/pkg/filter"
	"holorecon/pkg/pipeline"
)

// PluginName is the name the Reference plugin reports.
const PluginName = "reference"

// ErrNoSlices is returned when a median is asked for over no slices.
var ErrNoSlices = errors.New("reference: no slices selected")

// Mode selects how the reference hologram is built.
type Mode string

const (
	ModeMedian Mode = "median"
	ModeSingle Mode = "single"
	ModeSelf   Mode = "self"
)

// Reference is the pipeline plugin. It settles the reference when the
// original hologram arrives and corrects every filtered field.
type Reference struct {
	pipeline.Base

	mode Mode
	ts   []int

	hologram pipeline.Hologram
	runTs    []int
	filter   *filter.Filter
	factors  []complex128
}

func priorities() pipeline.Priorities {
	return pipeline.Priorities{Default: pipeline.PriorityNormal}.
		With(pipeline.StageOriginalHologram, pipeline.PriorityLow).
		With(pipeline.StageHologram, pipeline.PriorityFirst)
}

// NewMedian returns a Reference built from the median of the given 1-based
// slices. An empty list uses the slices of the run.
func NewMedian(ts []int) *Reference {
	return &Reference{
		Base: pipeline.NewBase(PluginName, priorities()),
		mode: ModeMedian,
		ts:   ts,
	}
}

// NewSingle returns a Reference built from slice t alone.
func NewSingle(t int) *Reference {
	return &Reference{
		Base: pipeline.NewBase(PluginName, priorities()),
		mode: ModeSingle,
		ts:   []int{t},
	}
}

// NewSelf returns a Reference that corrects every slice by its own phase.
// The slice is captured before the filter runs and masked with a region
// found on its own spectrum.
func NewSelf() *Reference {
	return &Reference{
		Base: pipeline.NewBase(PluginName, priorities()),
		mode: ModeSelf,
	}
}

// Mode reports how the reference is built.
func (r *Reference) Mode() Mode { return r.mode }

func (r *Reference) ReadPlugins(set pipeline.Set) {
	r.filter, _ = pipeline.Find[*filter.Filter](set)
}

func (r *Reference) HologramParam(h pipeline.Hologram) { r.hologram = h }

func (r *Reference) TsParam(ts []int) { r.runTs = ts }

// OriginalHologram builds the reference. It runs after the filter has
// settled its region so the reference can be filtered too.
func (r *Reference) OriginalHologram(original field.ReadOnly) {
	if r.mode == ModeSelf {
		return
	}
	ts := r.ts
	if len(ts) == 0 {
		ts = r.runTs
	}
	grid, err := MedianReference(r.hologram, ts)
	if err != nil {
		r.Fail(err)
		return
	}
	rf, err := field.NewReconstructionField(grid, nil, field.WithBackend(original.Backend()))
	if err != nil {
		r.Fail(fmt.Errorf("reference: %w", err))
		return
	}
	if r.filter != nil {
		if err := r.filter.Apply(rf); err != nil {
			r.Fail(err)
			return
		}
	}
	r.factors = Factors(rf.Field())
	r.Logger().Info("reference ready", "mode", r.mode, "slices", ts, "filtered", r.filter != nil)
}

// Hologram captures the unfiltered slice for a self reference.
func (r *Reference) Hologram(f *field.ReconstructionField, t int) {
	if r.mode != ModeSelf {
		return
	}
	ref := f.Copy()
	if r.filter != nil {
		opts := r.filter.Options()
		roi, err := filter.AutoROI(ref.Fourier(), opts.DCRadius)
		if err != nil {
			r.Fail(fmt.Errorf("reference: slice %d: %w", t, err))
			return
		}
		ref.EditFourier(func(c *field.ComplexField) {
			filter.Mask(c, roi)
			if opts.Recenter {
				filter.Recenter(c, roi)
			}
		})
	}
	r.factors = Factors(ref.Field())
}

func (r *Reference) FilteredField(f *field.ReconstructionField, _ int) {
	f.EditField(func(c *field.ComplexField) {
		if err := c.Multiply(r.factors); err != nil {
			r.Fail(fmt.Errorf("reference: %w", err))
		}
	})
}

// Factors returns exp(-i arg(v)) for every sample of v in row-major order.
// A zero sample gives a factor of one.
func Factors(v field.View) []complex128 {
	out := make([]complex128, 0, v.Width()*v.Height())
	for y := 0; y < v.Height(); y++ {
		for x := 0; x < v.Width(); x++ {
			out = append(out, cmplx.Rect(1, -v.Phase(x, y)))
		}
	}
	return out
}

// MedianReference returns the elementwise median of the 1-based slices ts
// of h.
func MedianReference(h pipeline.Hologram, ts []int) ([][]float64, error) {
	if len(ts) == 0 {
		return nil, ErrNoSlices
	}
	frames := make([][][]float64, len(ts))
	for i, t := range ts {
		frame, err := h.Frame(t)
		if err != nil {
			return nil, fmt.Errorf("reference: slice %d: %w", t, err)
		}
		frames[i] = frame
	}

	out := make([][]float64, h.Height())
	values := make([]float64, len(frames))
	for y := range out {
		out[y] = make([]float64, h.Width())
		for x := range out[y] {
			for i, frame := range frames {
				values[i] = frame[y][x]
			}
			out[y][x] = median(values)
		}
	}
	return out, nil
}

// median sorts values in place; an even count gives the mean of the middle
// pair.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return stat.Mean(values[n/2-1:n/2+1], nil)
	}
	return values[n/2]
}
