package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tellus/internal/component"
	"github.com/roach88/tellus/internal/config"
	"github.com/roach88/tellus/internal/engine"
	"github.com/roach88/tellus/internal/output"
	"github.com/roach88/tellus/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Output     string // CSV sample stream path; "-" means stdout
	Provenance string // pool provenance CSV path (optional)
	Database   string // SQLite output database (optional)
}

// runSummary is the payload reported after a completed run.
type runSummary struct {
	Name      string  `json:"name"`
	StartDate float64 `json:"start_date"`
	EndDate   float64 `json:"end_date"`
	Steps     int     `json:"steps"`
}

func (s runSummary) String() string {
	return fmt.Sprintf("run %s complete: %g..%g (%d steps)", s.Name, s.StartDate, s.EndDate, s.Steps)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config-file>",
		Short: "Run a configured simulation",
		Long: `Run a simulation described by a YAML configuration file.

The core assembles the standard components, dispatches the configured
emissions and assignments, spins up to a stable baseline, then steps
year by year to the configured end date. Sampled capability values
stream as CSV; pool provenance and a SQLite record are optional.

Example:
  tellus run scenario.yaml
  tellus run scenario.yaml --output out.csv --db runs.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "sample stream CSV path (- for stdout)")
	cmd.Flags().StringVar(&opts.Provenance, "provenance", "", "pool provenance CSV path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite output database")

	return cmd
}

func runSimulation(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	slog.Info("loading config", "path", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Name == "" {
		cfg.Name = uuid.Must(uuid.NewV7()).String()
	}

	core := engine.New(cfg.Name, cfg.CoreOptions()...)
	for _, comp := range standardComponents() {
		if err := core.AddComponent(comp); err != nil {
			return WrapExitError(ExitCommandError, "failed to assemble core", err)
		}
	}
	if err := core.Init(); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize core", err)
	}
	defer core.ShutDownCore()

	if err := cfg.Apply(core); err != nil {
		return WrapExitError(ExitCommandError, "failed to apply config", err)
	}
	if err := core.PrepareToRun(); err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare core", err)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	cleanup, err := attachObservers(ctx, opts, cfg, core, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("run starting", "name", cfg.Name, "start", cfg.StartDate, "end", cfg.EndDate)
	steps := 0
	for date := cfg.StartDate + 1; date <= cfg.EndDate; date++ {
		if err := ctx.Err(); err != nil {
			slog.Info("run interrupted", "date", date)
			return nil
		}
		// One dispatch-visible step per year, so an embedding can
		// feed inputs between steps the same way this loop could.
		if err := core.Run(date); err != nil {
			return WrapExitError(ExitFailure, "run failed", err)
		}
		steps++
	}
	slog.Info("run complete", "name", cfg.Name, "steps", steps)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.ErrOrStderr()}
	return formatter.Success(runSummary{
		Name:      cfg.Name,
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
		Steps:     steps,
	})
}

// standardComponents assembles the default component set in step order.
func standardComponents() []engine.Component {
	return []engine.Component{
		component.NewCarbonCycle(),
		component.NewCO2Forcing(),
		component.NewTemperature(),
	}
}

// attachObservers wires the configured output destinations into the
// core: the CSV sample stream, the optional provenance CSV, and the
// optional SQLite recorder. The returned cleanup closes whatever was
// opened, in reverse order.
func attachObservers(ctx context.Context, opts *RunOptions, cfg *config.Config, core *engine.Core, stdout io.Writer) (func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				slog.Error("error closing output", "error", err)
			}
		}
	}

	if len(cfg.Outputs) > 0 {
		w := stdout
		if opts.Output != "-" && opts.Output != "" {
			f, err := os.Create(opts.Output)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to create output file", err)
			}
			closers = append(closers, f)
			w = f
		}
		core.AddVisitor(output.NewStreamVisitor(w, cfg.Name, cfg.Outputs))
	}

	if opts.Provenance != "" {
		f, err := os.Create(opts.Provenance)
		if err != nil {
			cleanup()
			return nil, WrapExitError(ExitCommandError, "failed to create provenance file", err)
		}
		closers = append(closers, f)
		core.AddVisitor(output.NewFluxPoolVisitor(f))
	}

	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			cleanup()
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		closers = append(closers, st)
		runID, err := st.BeginRun(ctx, cfg.Name, cfg.StartDate, cfg.EndDate)
		if err != nil {
			cleanup()
			return nil, WrapExitError(ExitCommandError, "failed to record run", err)
		}
		core.AddVisitor(output.NewStoreVisitor(ctx, st, runID, cfg.Outputs))
	}

	return cleanup, nil
}
