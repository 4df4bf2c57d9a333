// Package pipeline drives hologram reconstruction through a fixed sequence
// of stages over a set of plugins.
//
// A run goes Beginning -> OriginalHologram -> {for each time slice:
// Hologram -> FilteredField -> PropagatedField for each distance} -> Ending.
// Before each stage the plugins are stably sorted by their priority for that
// stage. A plugin reporting an error stops the run immediately.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"holorecon/pkg/field"
	"holorecon/pkg/units"
)

var (
	// ErrNoPlugins is returned by New for an empty plugin list.
	ErrNoPlugins = errors.New("pipeline: no plugins")

	// ErrNoHologram is returned by New when the source stack is missing or
	// empty.
	ErrNoHologram = errors.New("pipeline: no hologram")

	// ErrTimeRange is returned by New for a time index outside [1, Len].
	ErrTimeRange = errors.New("pipeline: time index out of range")

	// ErrCanceled is returned by Run after a cancellation was observed.
	ErrCanceled = errors.New("pipeline: canceled")
)

// CanceledStatus is the status text shown when a run is canceled.
const CanceledStatus = "Command canceled"

// AbortError is returned by Run when a plugin reported an error.
type AbortError struct {
	Stage  Stage
	Plugin string
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pipeline: plugin %s failed during %s: %v", e.Plugin, e.Stage, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Params are the global inputs of a run.
type Params struct {
	// Hologram is the source stack.
	Hologram Hologram

	// Wavelength of the illumination.
	Wavelength units.Distance

	// Width and Height are the physical extents of the sensor area covered
	// by one frame.
	Width  units.Distance
	Height units.Distance

	// Ts lists the 1-based time slices to reconstruct, in processing order.
	Ts []int

	// Zs lists the propagation distances, measured from the hologram plane,
	// in processing order.
	Zs []units.Distance
}

// Op runs one reconstruction. It is single-threaded: every hook completes
// before the next one starts.
type Op struct {
	params   Params
	plugins  []Plugin
	canceler Canceler
	status   Status
	observer Observer
	logger   *slog.Logger
	backend  field.Backend
	runID    string
}

// Option configures an Op.
type Option func(*Op)

// WithCanceler sets an extra cancellation signal, polled alongside the
// context passed to Run.
func WithCanceler(c Canceler) Option {
	return func(o *Op) { o.canceler = c }
}

// WithStatus sets the status collaborator. The default is LogStatus.
func WithStatus(s Status) Option {
	return func(o *Op) { o.status = s }
}

// WithObserver sets an observer for hook timings and outcomes.
func WithObserver(obs Observer) Option {
	return func(o *Op) { o.observer = obs }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Op) { o.logger = l }
}

// WithBackend selects the FFT backend of the fields the Op builds.
func WithBackend(b field.Backend) Option {
	return func(o *Op) { o.backend = b }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *Op) { o.runID = id }
}

// New validates params and returns an Op over plugins. The plugin slice is
// copied; Run sorts its own copy.
func New(params Params, plugins []Plugin, opts ...Option) (*Op, error) {
	o := &Op{
		params:   params,
		observer: nopObserver{},
		logger:   slog.Default(),
		backend:  field.DefaultBackend,
		runID:    uuid.NewString(),
	}
	for _, p := range plugins {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.status == nil {
		o.status = LogStatus{Logger: o.logger}
	}

	if len(o.plugins) == 0 {
		return nil, ErrNoPlugins
	}
	h := params.Hologram
	if h == nil || h.Len() == 0 || h.Width() == 0 || h.Height() == 0 {
		return nil, ErrNoHologram
	}
	for _, t := range params.Ts {
		if t < 1 || t > h.Len() {
			return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrTimeRange, t, h.Len())
		}
	}
	return o, nil
}

// RunID identifies the run in logs and exported metadata.
func (o *Op) RunID() string { return o.runID }

// Run executes the stages. It returns nil after the Ending stage completed,
// ErrCanceled when ctx or the Canceler fired at a distance boundary, an
// *AbortError when a plugin reported an error, or a wrapped error when the
// hologram source failed.
func (o *Op) Run(ctx context.Context) (err error) {
	start := time.Now()
	log := o.logger.With("run", o.runID)
	defer func() {
		outcome := OutcomeCompleted
		switch {
		case errors.Is(err, ErrCanceled):
			outcome = OutcomeCanceled
		case err != nil:
			outcome = OutcomeAborted
		}
		o.observer.ObserveRun(outcome, time.Since(start))
		log.Debug("run finished", "outcome", outcome, "elapsed", time.Since(start))
	}()

	r := &run{Op: o, plugins: append([]Plugin(nil), o.plugins...), log: log}
	return r.execute(ctx)
}

// run is the state of one Run call.
type run struct {
	*Op
	plugins []Plugin
	log     *slog.Logger
}

func (r *run) execute(ctx context.Context) error {
	p := r.params

	// Step 1: parameter intake and Beginning. Each hook reaches every plugin
	// before the next hook starts.
	for _, pl := range r.plugins {
		if re, ok := pl.(ErrResetter); ok {
			re.ResetErr()
		}
	}
	r.sort(StageBeginning)
	set := NewSet(r.plugins...)
	intake := []func(pl Plugin){
		func(pl Plugin) { pl.ReadPlugins(set) },
		func(pl Plugin) { pl.BeforeParams() },
		func(pl Plugin) { pl.HologramParam(p.Hologram) },
		func(pl Plugin) { pl.WavelengthParam(p.Wavelength) },
		func(pl Plugin) { pl.DimensionsParam(p.Width, p.Height) },
		func(pl Plugin) { pl.TsParam(append([]int(nil), p.Ts...)) },
		func(pl Plugin) { pl.ZsParam(append([]units.Distance(nil), p.Zs...)) },
		func(pl Plugin) { pl.Beginning() },
	}
	for _, hook := range intake {
		if err := r.each(StageBeginning, hook); err != nil {
			return err
		}
	}

	// Step 2: the unprocessed first slice, read-only.
	r.sort(StageOriginalHologram)
	original, err := r.newField(1)
	if err != nil {
		return err
	}
	ro := original.ReadOnly()
	if err := r.each(StageOriginalHologram, func(pl Plugin) { pl.OriginalHologram(ro) }); err != nil {
		return err
	}

	// Step 3: every requested slice.
	for i, t := range p.Ts {
		r.status.ShowStatus(fmt.Sprintf("Reconstructing slice %d (%d of %d)", t, i+1, len(p.Ts)))

		r.sort(StageHologram)
		f, err := r.newField(t)
		if err != nil {
			return err
		}
		if err := r.each(StageHologram, func(pl Plugin) { pl.Hologram(f, t) }); err != nil {
			return err
		}

		r.sort(StageFilteredField)
		if err := r.each(StageFilteredField, func(pl Plugin) { pl.FilteredField(f, t) }); err != nil {
			return err
		}

		r.sort(StagePropagatedField)
		var zFrom units.Distance
		if len(p.Zs) > 0 {
			zFrom = units.New(0, p.Zs[0].Unit)
		}
		for _, z := range p.Zs {
			if r.canceled(ctx) {
				r.status.ShowStatus(CanceledStatus)
				return ErrCanceled
			}
			from, to := zFrom, z
			if err := r.each(StagePropagatedField, func(pl Plugin) { pl.PropagatedField(ro, f, t, from, to) }); err != nil {
				return err
			}
			zFrom = z
		}
	}

	// Step 4: Ending, only reached when nothing aborted.
	r.sort(StageEnding)
	return r.each(StageEnding, func(pl Plugin) { pl.Ending() })
}

// sort orders the plugins by their priority for s. Ties keep the order left
// by the previous sort.
func (r *run) sort(s Stage) {
	type ranked struct {
		pl   Plugin
		prio int
	}
	rs := make([]ranked, len(r.plugins))
	for i, pl := range r.plugins {
		rs[i] = ranked{pl: pl, prio: pl.Priority(s)}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].prio < rs[j].prio
	})
	for i := range rs {
		r.plugins[i] = rs[i].pl
	}
	r.log.Debug("stage", "stage", s, "order", names(r.plugins))
}

// each invokes hook on every plugin in order and stops at the first plugin
// that reports an error afterwards.
func (r *run) each(s Stage, hook func(pl Plugin)) error {
	for _, pl := range r.plugins {
		start := time.Now()
		hook(pl)
		r.observer.ObserveHook(s, pl.Name(), time.Since(start))
		if err := pl.Err(); err != nil {
			r.log.Debug("plugin reported an error", "stage", s, "plugin", pl.Name(), "err", err)
			return &AbortError{Stage: s, Plugin: pl.Name(), Err: err}
		}
	}
	return nil
}

func (r *run) canceled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return r.canceler != nil && r.canceler.Canceled()
}

func (r *run) newField(t int) (*field.ReconstructionField, error) {
	frame, err := r.params.Hologram.Frame(t)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read slice %d: %w", t, err)
	}
	f, err := field.NewReconstructionField(frame, nil, field.WithBackend(r.backend))
	if err != nil {
		return nil, fmt.Errorf("pipeline: slice %d: %w", t, err)
	}
	return f, nil
}

func names(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, pl := range plugins {
		out[i] = pl.Name()
	}
	return out
}
