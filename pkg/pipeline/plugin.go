package pipeline

import (
	"log/slog"

	"holorecon/pkg/field"
	"holorecon/pkg/units"
)

// Common priority values. Lower runs earlier within a stage.
const (
	PriorityFirst  = -1000
	PriorityHigh   = -100
	PriorityNormal = 0
	PriorityLow    = 100
	PriorityLast   = 1000
)

// Plugin is a processing step driven by an Op.
//
// The Op calls every hook of every plugin; a plugin that has nothing to do
// for a hook leaves it as a no-op, which embedding Base provides. After each
// hook the Op polls Err and aborts the run on the first non-nil error, so a
// plugin must report its failure to the user before returning it from Err.
//
// Hooks receive the field by reference. The same instance is handed to every
// plugin in turn, so a plugin must not hold on to it past its own call if it
// needs the samples to stay put.
//
// Parameter intake is delivered hook by hook across all plugins, so a plugin
// must not expect another plugin's Beginning to have run before its own
// parameter hooks.
type Plugin interface {
	// Name identifies the plugin in logs, metrics and errors.
	Name() string

	// Priority orders the plugin within stage s.
	Priority(s Stage) int

	// Err reports the error the plugin hit, if any.
	Err() error

	// Parameter intake, delivered in this order before StageBeginning.
	ReadPlugins(set Set)
	BeforeParams()
	HologramParam(h Hologram)
	WavelengthParam(wavelength units.Distance)
	DimensionsParam(width, height units.Distance)
	TsParam(ts []int)
	ZsParam(zs []units.Distance)

	Beginning()
	OriginalHologram(original field.ReadOnly)
	Hologram(f *field.ReconstructionField, t int)
	FilteredField(f *field.ReconstructionField, t int)
	PropagatedField(original field.ReadOnly, f *field.ReconstructionField, t int, zFrom, zTo units.Distance)
	Ending()
}

// Priorities holds a plugin's default priority and per-stage overrides.
type Priorities struct {
	Default int
	Stages  map[Stage]int
}

// For returns the priority for stage s.
func (p Priorities) For(s Stage) int {
	if v, ok := p.Stages[s]; ok {
		return v
	}
	return p.Default
}

// With returns a copy of p with the priority for s set to v.
func (p Priorities) With(s Stage, v int) Priorities {
	stages := make(map[Stage]int, len(p.Stages)+1)
	for k, old := range p.Stages {
		stages[k] = old
	}
	stages[s] = v
	return Priorities{Default: p.Default, Stages: stages}
}

// Base is embedded by plugins. It supplies the name, priority table and
// error state plus a no-op implementation of every hook.
type Base struct {
	name       string
	priorities Priorities
	logger     *slog.Logger
	err        error
}

// NewBase returns a Base for a plugin called name.
func NewBase(name string, p Priorities) Base {
	return Base{name: name, priorities: p}
}

func (b *Base) Name() string           { return b.name }
func (b *Base) Priority(s Stage) int   { return b.priorities.For(s) }
func (b *Base) Err() error             { return b.err }
func (b *Base) Priorities() Priorities { return b.priorities }

// SetPriorities replaces the priority table.
func (b *Base) SetPriorities(p Priorities) { b.priorities = p }

// SetLogger sets the logger Fail reports through. The default is
// slog.Default().
func (b *Base) SetLogger(l *slog.Logger) { b.logger = l }

// Logger returns the plugin's logger, tagged with its name.
func (b *Base) Logger() *slog.Logger {
	l := b.logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("plugin", b.name)
}

// Fail logs err and records it as the plugin's error. Only the first error
// is kept.
func (b *Base) Fail(err error) {
	if err == nil {
		return
	}
	b.Logger().Error("plugin failed", "err", err)
	if b.err == nil {
		b.err = err
	}
}

// ErrResetter is implemented by plugins whose error state can be cleared.
// Op.Run clears it before each run so a plugin instance can be reused.
type ErrResetter interface {
	ResetErr()
}

// ResetErr forgets the recorded error.
func (b *Base) ResetErr() { b.err = nil }

func (b *Base) ReadPlugins(Set)                               {}
func (b *Base) BeforeParams()                                 {}
func (b *Base) HologramParam(Hologram)                        {}
func (b *Base) WavelengthParam(units.Distance)                {}
func (b *Base) DimensionsParam(_, _ units.Distance)           {}
func (b *Base) TsParam([]int)                                 {}
func (b *Base) ZsParam([]units.Distance)                      {}
func (b *Base) Beginning()                                    {}
func (b *Base) OriginalHologram(field.ReadOnly)               {}
func (b *Base) Hologram(*field.ReconstructionField, int)      {}
func (b *Base) FilteredField(*field.ReconstructionField, int) {}
func (b *Base) PropagatedField(_ field.ReadOnly, _ *field.ReconstructionField, _ int, _, _ units.Distance) {
}
func (b *Base) Ending() {}
