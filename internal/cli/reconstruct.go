package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"holorecon/internal/catalog"
	"holorecon/internal/sink"
	"holorecon/internal/source"
	"holorecon/pkg/config"
	"holorecon/pkg/field"
	"holorecon/pkg/metrics"
	"holorecon/pkg/pipeline"
	"holorecon/pkg/result"
)

// ReconstructOptions holds flags for the reconstruct command.
type ReconstructOptions struct {
	*RootOptions
	Input       string
	Config      string
	Output      string
	Backend     string
	Trace       bool
	MetricsFile string
}

// NewReconstructCommand creates the reconstruct command.
func NewReconstructCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconstructOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Reconstruct a hologram stack",
		Long: `Reconstruct every selected slice of a hologram stack at every
configured distance.

The input directory holds one PNG, JPEG or GIF file per slice; slices are
ordered by the number in their file name.

Example:
  holorecon reconstruct --input ./holograms --config holorecon.yaml
  holorecon reconstruct --input ./holograms --output ./out --backend dsp --trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconstruct(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "directory of hologram frames (required)")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "holorecon.yaml", "configuration file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (overrides output.dir)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "FFT backend, gonum or dsp (overrides processing.backend)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print every plugin hook to stderr")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func loadConfig(opts *ReconstructOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Output != "" {
		cfg.Output.Dir = opts.Output
	}
	if opts.Backend != "" {
		cfg.Processing.Backend = opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runReconstruct(cmd *cobra.Command, opts *ReconstructOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	backend, err := field.ParseBackend(cfg.Processing.Backend)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	zs, err := cfg.Distances()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	stack, err := source.LoadDir(opts.Input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load hologram", err)
	}
	ts := cfg.Ts
	if len(ts) == 0 {
		ts = make([]int, stack.Len())
		for i := range ts {
			ts[i] = i + 1
		}
	}

	// Setup signal handling: an interrupt cancels at the next distance.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	env := pluginEnv{ctx: ctx, runID: runID}
	if opts.Trace {
		env.trace = cmd.ErrOrStderr()
	}
	if cfg.Output.Save {
		store, err := sink.Open(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open output sink", err)
		}
		env.store = store
	}

	var cat *catalog.Catalog
	if cfg.Catalog.Driver != "" {
		cat, err = catalog.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open catalog", err)
		}
		defer func() {
			if closeErr := cat.Close(); closeErr != nil {
				slog.Error("error closing catalog", "error", closeErr)
			}
		}()
		if err := cat.StartRun(ctx, catalog.Run{ID: runID, Title: stack.Title(), Slices: len(ts), Distances: len(zs)}); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		env.recorder = cat
	}

	plugins, res, err := buildPlugins(cfg, env)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	recorder := metrics.NewRecorder()
	op, err := pipeline.New(pipeline.Params{
		Hologram:   stack,
		Wavelength: cfg.Optics.Wavelength,
		Width:      cfg.Optics.Width,
		Height:     cfg.Optics.Height,
		Ts:         ts,
		Zs:         zs,
	}, plugins,
		pipeline.WithBackend(backend),
		pipeline.WithObserver(recorder),
		pipeline.WithRunID(runID),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot start reconstruction", err)
	}

	slog.Info("reconstruction starting", "run", runID, "slices", len(ts), "distances", len(zs), "backend", backend)
	runErr := op.Run(ctx)

	if cat != nil {
		// The run context may be canceled already; the outcome still gets
		// stored.
		if err := cat.FinishRun(context.WithoutCancel(ctx), runID, outcome(runErr)); err != nil {
			slog.Error("failed to record run outcome", "error", err)
		}
	}
	if opts.MetricsFile != "" {
		if err := recorder.WriteToTextfile(opts.MetricsFile); err != nil {
			slog.Error("failed to write metrics", "path", opts.MetricsFile, "error", err)
		}
	}

	switch {
	case errors.Is(runErr, pipeline.ErrCanceled):
		return WrapExitError(ExitFailure, "reconstruction canceled", runErr)
	case runErr != nil:
		var abort *pipeline.AbortError
		if errors.As(runErr, &abort) {
			return WrapExitError(ExitFailure, "reconstruction aborted", runErr)
		}
		return WrapExitError(ExitCommandError, "reconstruction failed", runErr)
	}

	printSummary(cmd, cfg, res)
	return nil
}

func outcome(err error) pipeline.Outcome {
	switch {
	case err == nil:
		return pipeline.OutcomeCompleted
	case errors.Is(err, pipeline.ErrCanceled):
		return pipeline.OutcomeCanceled
	}
	return pipeline.OutcomeAborted
}

func printSummary(cmd *cobra.Command, cfg *config.Config, res *result.Result) {
	out := cmd.OutOrStdout()
	if cfg.Output.Save {
		fmt.Fprintf(out, "Run %s: exported %d frames (%s) to %s sink\n", res.RunID(), res.Written(), cfg.Output.Type, cfg.Output.Sink)
		return
	}
	stacks := res.Stacks()
	kinds := make([]string, 0, len(stacks))
	for k := range stacks {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		s := stacks[result.Kind(k)]
		fmt.Fprintf(out, "%s: %d frames of %dx%d\n", s.Title(), s.Len(), s.Width(), s.Height())
	}
}
