package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectis-systems/fluxc/internal/compiler"
	"github.com/vectis-systems/fluxc/internal/ir"
)

// PlanSummary is the JSON/text payload for one planned service.
type PlanSummary struct {
	ServiceID      string   `json:"service_id"`
	ConsumedFlows  []string `json:"consumed_flows"`
	Timers         int      `json:"timers"`
	ComponentOrder []string `json:"component_order"`
	SettleSteps    int      `json:"settle_steps"`
}

// NewPlanCommand builds the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <specs-dir>",
		Short: "Compile fixtures and build the runtime dispatch plan",
		Long: `Compiles every service under specs-dir and runs the planner: cycle
detection, consumed-flow inference, timer construction, and settle-order
derivation. Fails with a planner error on any cyclic dependency, unknown
flow reference, or arity mismatch.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runPlan(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if loadResult == nil {
		return reportLoadError(formatter, loadErrors)
	}
	if len(loadErrors) > 0 {
		return reportLoadError(formatter, loadErrors)
	}

	var summaries []PlanSummary
	for _, svc := range loadResult.Services {
		plan, err := compiler.Plan(svc)
		if err != nil {
			return reportPlanError(formatter, svc.ID, err)
		}
		summaries = append(summaries, summarizePlan(plan))
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "service %s\n", s.ServiceID)
		fmt.Fprintf(formatter.Writer, "  consumed flows: %v\n", s.ConsumedFlows)
		fmt.Fprintf(formatter.Writer, "  timers: %d\n", s.Timers)
		fmt.Fprintf(formatter.Writer, "  component order: %v\n", s.ComponentOrder)
		fmt.Fprintf(formatter.Writer, "  settle steps: %d\n", s.SettleSteps)
	}
	return nil
}

func summarizePlan(plan *ir.ServicePlan) PlanSummary {
	return PlanSummary{
		ServiceID:      plan.ServiceID,
		ConsumedFlows:  plan.ConsumedFlows,
		Timers:         len(plan.Timers),
		ComponentOrder: plan.ComponentOrder,
		SettleSteps:    len(plan.SettleOrder),
	}
}

func reportPlanError(formatter *OutputFormatter, serviceID string, err error) error {
	_ = formatter.Error("E_PLAN", err.Error(), map[string]string{"service": serviceID})
	return WrapExitError(ExitCommandError, fmt.Sprintf("planning service %s failed", serviceID), err)
}
