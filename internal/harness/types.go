package harness

import "github.com/vectis-systems/fluxc/internal/runtime"

// Result is the outcome of running one Scenario: the full output trace the
// driver collected plus every assertion failure found against it. Pass is
// true only when Errors is empty.
type Result struct {
	Scenario string
	Outputs  []runtime.Output
	Errors   []string
}

// NewResult builds a Result for a completed run, evaluating every scenario
// assertion against the collected trace.
func NewResult(scenario *Scenario, outputs []runtime.Output) *Result {
	return &Result{
		Scenario: scenario.Name,
		Outputs:  outputs,
		Errors:   EvaluateAssertions(outputs, scenario.Assertions),
	}
}

// Pass reports whether every assertion held.
func (r *Result) Pass() bool { return len(r.Errors) == 0 }
