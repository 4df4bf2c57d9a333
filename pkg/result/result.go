// Package result captures reconstructed fields at every (time, distance)
// pair, either exporting them through a Store or collecting them into
// in-memory stacks.
package result

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"

	"holorecon/pkg/field"
	"holorecon/pkg/hologram"
	"holorecon/pkg/pipeline"
	"holorecon/pkg/units"
)

// PluginName is the name the Result plugin reports.
const PluginName = "result"

// ErrPrepare is returned when a destination cannot be prepared.
var ErrPrepare = errors.New("result: cannot prepare destination")

// Store receives exported frames. Keys are slash-separated.
type Store interface {
	// Prepare makes sure keys under prefix can be written.
	Prepare(ctx context.Context, prefix string) error
	Put(ctx context.Context, key string, data []byte) error
}

// Output describes one exported frame.
type Output struct {
	RunID string
	Kind  Kind
	T     int
	Z     units.Distance
	Key   string
	Size  int
}

// Recorder catalogs exported frames.
type Recorder interface {
	RecordOutput(ctx context.Context, o Output) error
}

// Callback receives the collected stacks when a run that did not save
// ends.
type Callback func(stacks map[Kind]*hologram.Stack)

// Options configures a Result.
type Options struct {
	// Kinds to capture. Empty means amplitude and phase.
	Kinds []Kind

	// Save exports frames through Store instead of collecting them.
	Save  bool
	Type  Type
	Store Store

	// Recorder, when set, is told about every exported frame.
	Recorder Recorder

	// RunID tags recorded outputs. Empty picks a random one.
	RunID string

	// Context is used for Store and Recorder calls. Nil means
	// context.Background().
	Context context.Context
}

// Result is the pipeline plugin. It runs last in every stage so that it
// sees fields after all other plugins are done with them.
type Result struct {
	pipeline.Base

	opts      Options
	hologram  pipeline.Hologram
	stacks    map[Kind]*hologram.Stack
	callbacks []Callback
	written   int
}

// New validates opts and returns a Result.
func New(opts Options) (*Result, error) {
	if len(opts.Kinds) == 0 {
		opts.Kinds = []Kind{Amplitude, Phase}
	}
	for _, k := range opts.Kinds {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
	}
	if opts.Type == "" {
		opts.Type = TypeFloat32
	}
	if _, err := ParseType(string(opts.Type)); err != nil {
		return nil, err
	}
	if opts.Save && opts.Store == nil {
		return nil, errors.New("result: saving needs a store")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Result{
		Base: pipeline.NewBase(PluginName, pipeline.Priorities{Default: pipeline.PriorityLast}),
		opts: opts,
	}, nil
}

// OnEnding registers cb to receive the collected stacks.
func (r *Result) OnEnding(cb Callback) { r.callbacks = append(r.callbacks, cb) }

// Stacks returns the stacks collected so far, keyed by kind.
func (r *Result) Stacks() map[Kind]*hologram.Stack { return r.stacks }

// Written returns the number of frames exported so far.
func (r *Result) Written() int { return r.written }

// RunID returns the identifier recorded with every output.
func (r *Result) RunID() string { return r.opts.RunID }

// Dir returns the directory that holds frames of kind k at distance z.
func Dir(k Kind, z units.Distance) string {
	return path.Join(string(k), fmt.Sprintf("%.3f%s", z.Value, z.Unit))
}

// Key returns the key of the frame of kind k for slice t at distance z.
func Key(k Kind, z units.Distance, t int, typ Type) string {
	return path.Join(Dir(k, z), fmt.Sprintf("%05d.%s", t, typ.Ext()))
}

func (r *Result) HologramParam(h pipeline.Hologram) { r.hologram = h }

// ZsParam prepares one destination per kind and distance when saving.
func (r *Result) ZsParam(zs []units.Distance) {
	if !r.opts.Save {
		return
	}
	for _, k := range r.opts.Kinds {
		for _, z := range zs {
			dir := Dir(k, z)
			if err := r.opts.Store.Prepare(r.opts.Context, dir); err != nil {
				r.Fail(fmt.Errorf("%w %s: %w", ErrPrepare, dir, err))
				return
			}
		}
	}
}

func (r *Result) Beginning() {
	r.written = 0
	r.stacks = make(map[Kind]*hologram.Stack, len(r.opts.Kinds))
	if r.opts.Save {
		return
	}
	title := ""
	if r.hologram != nil {
		title = r.hologram.Title()
	}
	for _, k := range r.opts.Kinds {
		r.stacks[k], _ = hologram.NewStack(fmt.Sprintf("%s, %s", title, k))
	}
}

func (r *Result) PropagatedField(_ field.ReadOnly, f *field.ReconstructionField, t int, _, z units.Distance) {
	v := f.Field()
	for _, k := range r.opts.Kinds {
		grid := k.Grid(v)
		var err error
		if r.opts.Save {
			err = r.save(k, grid, t, z)
		} else {
			err = r.collect(k, grid, t, z)
		}
		if err != nil {
			r.Fail(err)
			return
		}
	}
}

func (r *Result) save(k Kind, grid [][]float64, t int, z units.Distance) error {
	data, err := EncodeBytes(grid, r.opts.Type)
	if err != nil {
		return err
	}
	key := Key(k, z, t, r.opts.Type)
	if err := r.opts.Store.Put(r.opts.Context, key, data); err != nil {
		return fmt.Errorf("result: write %s: %w", key, err)
	}
	r.written++
	r.Logger().Debug("frame written", "key", key, "bytes", len(data))
	if r.opts.Recorder == nil {
		return nil
	}
	out := Output{RunID: r.opts.RunID, Kind: k, T: t, Z: z, Key: key, Size: len(data)}
	if err := r.opts.Recorder.RecordOutput(r.opts.Context, out); err != nil {
		return fmt.Errorf("result: record %s: %w", key, err)
	}
	return nil
}

func (r *Result) collect(k Kind, grid [][]float64, t int, z units.Distance) error {
	label := fmt.Sprintf("%s, z = %s", pipeline.SliceLabel(r.hologram, t), z)
	frame, err := hologram.NewFrame(grid, label)
	if err != nil {
		return err
	}
	return r.stacks[k].Append(frame)
}

// Ending hands the collected stacks to the registered callbacks.
func (r *Result) Ending() {
	if r.opts.Save {
		r.Logger().Info("results exported", "frames", r.written, "run", r.opts.RunID)
		return
	}
	for _, cb := range r.callbacks {
		cb(r.stacks)
	}
}
