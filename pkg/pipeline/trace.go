package pipeline

import (
	"fmt"
	"io"
	"strings"

	"holorecon/pkg/field"
	"holorecon/pkg/units"
)

// Trace is a plugin that writes one line per hook it receives. It changes
// nothing and is useful to see the dispatch order of a run.
type Trace struct {
	Base
	w io.Writer
}

// NewTrace returns a Trace called name writing to w.
func NewTrace(name string, w io.Writer, p Priorities) *Trace {
	return &Trace{Base: NewBase(name, p), w: w}
}

func (tr *Trace) printf(format string, args ...any) {
	if tr.Err() != nil {
		return
	}
	if _, err := fmt.Fprintf(tr.w, tr.Name()+": "+format+"\n", args...); err != nil {
		tr.Fail(fmt.Errorf("trace: %w", err))
	}
}

func (tr *Trace) ReadPlugins(set Set) {
	tr.printf("read_plugins %s", strings.Join(names(set.plugins), ","))
}

func (tr *Trace) BeforeParams() { tr.printf("before_params") }

func (tr *Trace) HologramParam(h Hologram) {
	tr.printf("hologram_param %q %dx%d slices=%d", h.Title(), h.Width(), h.Height(), h.Len())
}

func (tr *Trace) WavelengthParam(wavelength units.Distance) {
	tr.printf("wavelength_param %v", wavelength)
}

func (tr *Trace) DimensionsParam(width, height units.Distance) {
	tr.printf("dimensions_param %v x %v", width, height)
}

func (tr *Trace) TsParam(ts []int) { tr.printf("ts_param %v", ts) }

func (tr *Trace) ZsParam(zs []units.Distance) { tr.printf("zs_param %v", zs) }

func (tr *Trace) Beginning() { tr.printf("beginning") }

func (tr *Trace) OriginalHologram(original field.ReadOnly) {
	tr.printf("original_hologram %dx%d", original.Width(), original.Height())
}

func (tr *Trace) Hologram(f *field.ReconstructionField, t int) {
	tr.printf("hologram t=%d", t)
}

func (tr *Trace) FilteredField(f *field.ReconstructionField, t int) {
	tr.printf("filtered_field t=%d", t)
}

func (tr *Trace) PropagatedField(_ field.ReadOnly, _ *field.ReconstructionField, t int, zFrom, zTo units.Distance) {
	tr.printf("propagated_field t=%d z=%v->%v", t, zFrom, zTo)
}

func (tr *Trace) Ending() { tr.printf("ending") }
