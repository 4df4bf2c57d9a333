// Package filter isolates one diffraction order of an off-axis hologram by
// keeping a rectangular region of its centred spectrum.
package filter

import (
	"errors"
	"fmt"
	"image"
	"math"

	"holorecon/pkg/field"
	"holorecon/pkg/pipeline"
)

// PluginName is the name the Filter plugin reports.
const PluginName = "filter"

// ErrROI is returned for a region that is empty or outside the spectrum.
var ErrROI = errors.New("filter: invalid region of interest")

// Mode selects how the region of interest is found.
type Mode string

const (
	// ModeAuto looks for the strongest off-centre peak of the original
	// hologram's spectrum.
	ModeAuto Mode = "auto"

	// ModeManual uses Options.ROI as given.
	ModeManual Mode = "manual"
)

// Options configures a Filter.
type Options struct {
	Mode Mode

	// ROI is the kept region in spectrum coordinates (Max exclusive). Used
	// by ModeManual.
	ROI image.Rectangle

	// DCRadius is the radius around the spectrum centre that ModeAuto
	// ignores. Zero picks min(width, height)/8.
	DCRadius int

	// Recenter moves the centre of the region to the spectrum centre after
	// masking, which removes the carrier fringe.
	Recenter bool
}

// Filter is the pipeline plugin that masks the spectrum of every hologram.
// The region is settled once from the original hologram and then applied
// to each slice at the Hologram stage.
type Filter struct {
	pipeline.Base

	opts Options
	roi  image.Rectangle
}

// New returns a Filter that runs early in the Hologram stage.
func New(opts Options) *Filter {
	return &Filter{
		Base: pipeline.NewBase(PluginName, pipeline.Priorities{Default: pipeline.PriorityHigh}),
		opts: opts,
	}
}

// OriginalHologram settles the region of interest.
func (f *Filter) OriginalHologram(original field.ReadOnly) {
	roi, err := f.findROI(original.Fourier())
	if err != nil {
		f.Fail(err)
		return
	}
	f.roi = roi
	f.Logger().Info("filter region", "roi", roi)
}

func (f *Filter) Hologram(rf *field.ReconstructionField, _ int) {
	if err := f.Apply(rf); err != nil {
		f.Fail(err)
	}
}

// Options returns the options the filter was built with.
func (f *Filter) Options() Options { return f.opts }

// ROI returns the settled region, or the zero rectangle before
// OriginalHologram ran.
func (f *Filter) ROI() image.Rectangle { return f.roi }

// Apply masks rf with the settled region. Other plugins use it to filter
// fields they build themselves, such as a reference hologram.
func (f *Filter) Apply(rf *field.ReconstructionField) error {
	if f.roi.Empty() {
		return fmt.Errorf("%w: region not settled", ErrROI)
	}
	bounds := image.Rect(0, 0, rf.Width(), rf.Height())
	if !f.roi.In(bounds) {
		return fmt.Errorf("%w: %v outside %v", ErrROI, f.roi, bounds)
	}
	rf.EditFourier(func(c *field.ComplexField) {
		Mask(c, f.roi)
		if f.opts.Recenter {
			Recenter(c, f.roi)
		}
	})
	return nil
}

func (f *Filter) findROI(spectrum field.View) (image.Rectangle, error) {
	bounds := image.Rect(0, 0, spectrum.Width(), spectrum.Height())
	switch f.opts.Mode {
	case ModeManual:
		roi := f.opts.ROI.Canon()
		if roi.Empty() || !roi.In(bounds) {
			return image.Rectangle{}, fmt.Errorf("%w: %v outside %v", ErrROI, f.opts.ROI, bounds)
		}
		return roi, nil
	case ModeAuto, "":
		return AutoROI(spectrum, f.opts.DCRadius)
	}
	return image.Rectangle{}, fmt.Errorf("filter: unknown mode %q", f.opts.Mode)
}

// AutoROI finds the strongest spectral peak farther than dcRadius from the
// centre and returns a square around it whose half-size is half the
// peak's distance from the centre, clipped to the spectrum.
func AutoROI(spectrum field.View, dcRadius int) (image.Rectangle, error) {
	w, h := spectrum.Width(), spectrum.Height()
	cx, cy := w/2, h/2
	if dcRadius <= 0 {
		dcRadius = max(1, min(w, h)/8)
	}

	best, px, py := -1.0, -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= dcRadius*dcRadius {
				continue
			}
			if a := spectrum.Amplitude(x, y); a > best {
				best, px, py = a, x, y
			}
		}
	}
	if px < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: no samples outside a DC radius of %d", ErrROI, dcRadius)
	}

	r := int(math.Hypot(float64(px-cx), float64(py-cy)) / 2)
	roi := image.Rect(px-r, py-r, px+r+1, py+r+1).Intersect(image.Rect(0, 0, w, h))
	return roi, nil
}

// Mask zeroes every sample of c outside roi.
func Mask(c *field.ComplexField, roi image.Rectangle) {
	for y := 0; y < c.Height(); y++ {
		for x := 0; x < c.Width(); x++ {
			if !(image.Point{X: x, Y: y}).In(roi) {
				c.Set(x, y, 0)
			}
		}
	}
}

// Recenter cyclically moves the samples of c so that the centre of roi
// lands on the spectrum centre.
func Recenter(c *field.ComplexField, roi image.Rectangle) {
	w, h := c.Width(), c.Height()
	centre := roi.Min.Add(roi.Max.Sub(image.Pt(1, 1))).Div(2)
	dx := ((w/2-centre.X)%w + w) % w
	dy := ((h/2-centre.Y)%h + h) % h
	if dx == 0 && dy == 0 {
		return
	}
	src := append([]complex128(nil), c.Samples()...)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.Set((x+dx)%w, (y+dy)%h, src[y*w+x])
		}
	}
}
