package cli

import (
	"context"
	"image"
	"io"

	"holorecon/pkg/config"
	"holorecon/pkg/filter"
	"holorecon/pkg/pipeline"
	"holorecon/pkg/propagation"
	"holorecon/pkg/reference"
	"holorecon/pkg/result"
	"holorecon/pkg/tilt"
)

// pluginEnv carries the collaborators plugins are wired to.
type pluginEnv struct {
	ctx      context.Context
	runID    string
	store    result.Store
	recorder result.Recorder

	// trace, when set, receives one line per hook.
	trace io.Writer
}

// buildPlugins turns cfg into the plugin list of a run, in the order
// filter, reference, tilt, propagation, result. The Result plugin is also
// returned on its own so the caller can read what it captured.
func buildPlugins(cfg *config.Config, env pluginEnv) ([]pipeline.Plugin, *result.Result, error) {
	var plugins []pipeline.Plugin

	if cfg.Filter.Enabled {
		opts := filter.Options{
			Mode:     filter.Mode(cfg.Filter.Mode),
			DCRadius: cfg.Filter.DCRadius,
			Recenter: cfg.Filter.Recenter,
		}
		if x0, y0, x1, y1, ok := cfg.ROI(); ok {
			opts.ROI = image.Rect(x0, y0, x1, y1)
		}
		plugins = append(plugins, filter.New(opts))
	}

	switch cfg.Reference.Mode {
	case config.ReferenceMedian:
		plugins = append(plugins, reference.NewMedian(cfg.Reference.Ts))
	case config.ReferenceSingle:
		plugins = append(plugins, reference.NewSingle(cfg.Reference.T))
	case config.ReferenceSelf:
		plugins = append(plugins, reference.NewSelf())
	}

	if cfg.Tilt.Enabled {
		plugins = append(plugins, tilt.New(tilt.Options{
			Mode:   tilt.Mode(cfg.Tilt.Mode),
			Degree: cfg.Tilt.Degree,
		}))
	}

	plugins = append(plugins, propagation.NewPlugin())

	kinds := make([]result.Kind, 0, len(cfg.Output.Kinds))
	for _, k := range cfg.Output.Kinds {
		kind, err := result.ParseKind(k)
		if err != nil {
			return nil, nil, err
		}
		kinds = append(kinds, kind)
	}
	opts := result.Options{
		Kinds:    kinds,
		Save:     cfg.Output.Save,
		Type:     result.Type(cfg.Output.Type),
		Store:    env.store,
		Recorder: env.recorder,
		RunID:    env.runID,
		Context:  env.ctx,
	}
	res, err := result.New(opts)
	if err != nil {
		return nil, nil, err
	}
	plugins = append(plugins, res)

	if env.trace != nil {
		plugins = append(plugins, pipeline.NewTrace("trace", env.trace, pipeline.Priorities{Default: pipeline.PriorityFirst}))
	}
	return plugins, res, nil
}
