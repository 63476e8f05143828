package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vectis-systems/fluxc/internal/compiler"
	"github.com/vectis-systems/fluxc/internal/harness"
	"github.com/vectis-systems/fluxc/internal/ir"
	"github.com/vectis-systems/fluxc/internal/registry"
	"github.com/vectis-systems/fluxc/internal/runtime"
)

// ReplayResult is the JSON/text payload for the replay command.
type ReplayResult struct {
	Service       string `json:"service"`
	Outputs       int    `json:"outputs"`
	Deterministic bool   `json:"deterministic"`
}

// NewReplayCommand builds the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <trace-file>",
		Short: "Replay a trace file twice and verify determinism",
		Long: `Loads a trace file, drives the named service against it through two
independent Drivers, and compares the two output traces field for field:
two identical input traces must produce identical output traces, instant
labels included.

Exit codes:
  0 - the two replays matched
  1 - a determinism violation was detected
  2 - command error (trace file not found, spec failed to compile, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}
	return cmd
}

func runReplay(opts *RunOptions, traceFile string, cmd *cobra.Command) error {
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

	reg := registry.New()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	first, err := driveOnce(ctx, plan, *svcSpec, reg, scenario)
	if err != nil {
		return WrapExitError(ExitFailure, "first replay failed", err)
	}
	second, err := driveOnce(ctx, plan, *svcSpec, reg, scenario)
	if err != nil {
		return WrapExitError(ExitFailure, "second replay failed", err)
	}

	deterministic := outputsEqual(first, second)
	result := ReplayResult{Service: scenario.ServiceID, Outputs: len(first), Deterministic: deterministic}

	if formatter.Format == "json" {
		if !deterministic {
			_ = formatter.Error("E_DETERMINISM", "replay produced different output traces", nil)
			return NewExitError(ExitFailure, "determinism verification failed")
		}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "service %s: %d output(s)\n", result.Service, result.Outputs)
	if deterministic {
		fmt.Fprintln(formatter.Writer, "deterministic: replays matched")
		return nil
	}
	fmt.Fprintln(formatter.Writer, "non-deterministic: replays diverged")
	return NewExitError(ExitFailure, "determinism verification failed")
}

func driveOnce(ctx context.Context, plan *ir.ServicePlan, spec ir.ServiceSpec, reg *registry.Registry, scenario *harness.Scenario) ([]runtime.Output, error) {
	d := harness.NewDriver(plan, spec, reg.StepFuncs(scenario.ServiceID), reg.InitFuncs(scenario.ServiceID))
	return d.Run(ctx, scenario)
}

func outputsEqual(a, b []runtime.Output) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ServiceID != b[i].ServiceID || a[i].FlowID != b[i].FlowID || a[i].Instant != b[i].Instant {
			return false
		}
		if !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}
