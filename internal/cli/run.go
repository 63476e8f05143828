package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vectis-systems/fluxc/internal/compiler"
	"github.com/vectis-systems/fluxc/internal/harness"
	"github.com/vectis-systems/fluxc/internal/registry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Trace string
}

// RunOutput is the JSON/text payload for one produced output.
type RunOutput struct {
	Flow    string      `json:"flow"`
	Instant int64       `json:"instant"`
	Value   interface{} `json:"value"`
}

// NewRunCommand builds the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <trace-file>",
		Short: "Drive one compiled service against a scripted input trace",
		Long: `Loads a trace file (the same YAML shape internal/harness scenarios use,
minus assertions: name, spec_dir, service_id, horizon_ms, inputs), compiles
the named service, and drives it through a virtual-clock Driver the way an
upstream priority-ordering stream would in production. The runtime is a
library, not a standalone process; this command exists to demonstrate and
debug that library against a fixed trace, not to host a long-running
event loop.

Example:
  fluxc run ./examples/speed_limiter/trace.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}
	return cmd
}

func runTrace(opts *RunOptions, traceFile string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	scenario, err := harness.LoadScenario(traceFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load trace file", err)
	}

	specDir := scenario.SpecDir
	if !filepath.IsAbs(specDir) {
		specDir = filepath.Join(filepath.Dir(traceFile), specDir)
	}
	loaded, loadErrs := compiler.LoadServiceSpecs(specDir)
	if len(loadErrs) > 0 {
		return reportLoadError(formatter, loadErrs)
	}

	svcSpec, err := FindService(&LoadResult{Services: loaded.Services}, scenario.ServiceID)
	if err != nil {
		return WrapExitError(ExitCommandError, "service not found", err)
	}

	plan, err := compiler.Plan(*svcSpec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to plan service", err)
	}

	slog.Info("driving trace", "service", scenario.ServiceID, "inputs", len(scenario.Inputs), "horizon_ms", scenario.HorizonMs)

	reg := registry.New()
	d := harness.NewDriver(plan, *svcSpec, reg.StepFuncs(scenario.ServiceID), reg.InitFuncs(scenario.ServiceID))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	outputs, err := d.Run(ctx, scenario)
	if err != nil {
		slog.Error("run failed", "error", err)
		return WrapExitError(ExitFailure, "run failed", err)
	}
	slog.Info("run complete", "outputs", len(outputs))

	rows := make([]RunOutput, len(outputs))
	for i, o := range outputs {
		rows[i] = RunOutput{Flow: o.FlowID, Instant: o.Instant, Value: o.Value.String()}
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}
	for _, r := range rows {
		fmt.Fprintf(formatter.Writer, "t=%-6d %-20s %s\n", r.Instant, r.Flow, r.Value)
	}
	return nil
}
