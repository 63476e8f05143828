package ir

import "fmt"

// PortSpec binds a component's named input or output to a flow.
type PortSpec struct {
	Name     string
	Flow     string
	ElemKind Kind
}

// ComponentSpec is a periodic reactive block: a declared period, settling
// delay, service timeout, and an ordered input/output port list. The step
// function itself is supplied by the caller (StepFunc); component.go only
// carries the declaration the planner needs to schedule and wire it.
type ComponentSpec struct {
	ID string

	Inputs  []PortSpec
	Outputs []PortSpec

	PeriodMs  int64 // P, > 0
	DelayMs   int64 // D (settling delay), 0 < D <= P
	TimeoutMs int64 // T (service timeout), T >> P
}

// Validate checks arity and range invariants, collecting every problem
// rather than returning on the first.
func (c ComponentSpec) Validate() []ValidationError {
	var errs []ValidationError

	if c.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "component id must not be empty"})
	}
	if len(c.Outputs) == 0 {
		errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.outputs", c.ID), Message: "component must declare at least one output"})
	}
	if c.PeriodMs <= 0 {
		errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.period_ms", c.ID), Message: "period must be > 0"})
	}
	if c.DelayMs <= 0 || c.DelayMs > c.PeriodMs {
		errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.delay_ms", c.ID), Message: "settling delay must satisfy 0 < D <= P"})
	}
	if c.TimeoutMs <= c.PeriodMs {
		errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.timeout_ms", c.ID), Message: "service timeout must be much greater than the period"})
	}

	seen := map[string]bool{}
	for i, p := range c.Inputs {
		if p.Name == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.inputs[%d].name", c.ID, i), Message: "input port name must not be empty"})
		}
		if seen[p.Name] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.inputs[%d].name", c.ID, i), Message: fmt.Sprintf("duplicate input port name %q", p.Name)})
		}
		seen[p.Name] = true
		if !ValidKinds[p.ElemKind.String()] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.inputs[%d].elem_kind", c.ID, i), Message: "invalid element kind"})
		}
	}

	seenOut := map[string]bool{}
	for i, p := range c.Outputs {
		if p.Name == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.outputs[%d].name", c.ID, i), Message: "output port name must not be empty"})
		}
		if seenOut[p.Name] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.outputs[%d].name", c.ID, i), Message: fmt.Sprintf("duplicate output port name %q", p.Name)})
		}
		seenOut[p.Name] = true
	}

	return errs
}

// InputNames returns the component's input port names in declaration order.
func (c ComponentSpec) InputNames() []string {
	names := make([]string, len(c.Inputs))
	for i, p := range c.Inputs {
		names[i] = p.Name
	}
	return names
}

// StepInputs is the fixed-width record of input values passed to a
// component's step function for one firing, keyed by port name.
type StepInputs map[string]Value

// StepOutputs is the fixed-width record returned by a component's step
// function, keyed by port name, alongside which outputs actually changed.
type StepOutputs struct {
	Values  map[string]Value
	Changed map[string]bool
}

// StepFunc is a component's pure step function: (previous state, current
// inputs) -> (next state, outputs, output-changed bits). Step must not
// fail at runtime and must not perform I/O or read wall-clock time; any
// precondition is a static invariant the planner guarantees.
type StepFunc func(state any, inputs StepInputs) (nextState any, outputs StepOutputs)

// InitFunc produces a component's initial persistent state.
type InitFunc func() any
