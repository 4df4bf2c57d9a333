package propagation

import (
	"holorecon/pkg/field"
	"holorecon/pkg/pipeline"
	"holorecon/pkg/units"
)

// PluginName is the name the Propagation plugin reports.
const PluginName = "propagation"

// Propagation is the pipeline plugin that advances the current field to
// each requested distance. The first distance of a slice is reached from the
// hologram plane, every later one from the previous distance, always
// mutating the same field.
type Propagation struct {
	pipeline.Base

	wavelength units.Distance
	width      units.Distance
	height     units.Distance
	spectrum   *AngularSpectrum
}

// NewPlugin returns a Propagation plugin with normal priority.
func NewPlugin() *Propagation {
	return &Propagation{
		Base: pipeline.NewBase(PluginName, pipeline.Priorities{Default: pipeline.PriorityNormal}),
	}
}

func (p *Propagation) WavelengthParam(wavelength units.Distance) { p.wavelength = wavelength }

func (p *Propagation) DimensionsParam(width, height units.Distance) {
	p.width, p.height = width, height
}

// Beginning builds the kernel; bad optics abort the run before any field is
// built.
func (p *Propagation) Beginning() {
	spectrum, err := NewAngularSpectrum(p.wavelength, p.width, p.height)
	if err != nil {
		p.Fail(err)
		return
	}
	p.spectrum = spectrum
}

func (p *Propagation) PropagatedField(_ field.ReadOnly, f *field.ReconstructionField, t int, zFrom, zTo units.Distance) {
	p.spectrum.Propagate(f, zFrom, zTo)
	p.Logger().Debug("propagated", "t", t, "from", zFrom, "to", zTo)
}

// Spectrum returns the kernel built at Beginning, or nil before that.
func (p *Propagation) Spectrum() *AngularSpectrum { return p.spectrum }
