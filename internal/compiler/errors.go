package compiler

import "fmt"

// PlanError is a compile-time planning failure: a cyclic dependency, an
// unresolved flow reference, or an arity/type mismatch discovered while
// turning a ServiceSpec into a ServicePlan. Planning fails as a whole;
// unlike ir.ValidationError (which accumulates independent field-level
// problems), a PlanError always means the plan as given cannot be built.
type PlanError struct {
	ServiceID string
	Message   string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %s: %s", e.ServiceID, e.Message)
}

// CycleError reports a cyclic dependency among colocated components, found
// by the planner's dependency analysis (cycle.go). The Path names the
// components in the cycle, in traversal order, first and last repeated.
type CycleError struct {
	ServiceID string
	Path      []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("plan %s: cyclic component dependency: %v", e.ServiceID, e.Path)
}
