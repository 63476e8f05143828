package ir

import "fmt"

// FlowKind distinguishes continuous signals from discrete events.
type FlowKind int

const (
	// FlowSignal carries a value at every instant; updates are
	// sample-coalesced (only the latest value between reads matters).
	FlowSignal FlowKind = iota + 1
	// FlowEvent carries a value only at discrete instants; absent between
	// emissions.
	FlowEvent
)

func (k FlowKind) String() string {
	switch k {
	case FlowSignal:
		return "signal"
	case FlowEvent:
		return "event"
	default:
		return "unknown"
	}
}

// CombinatorKind enumerates the flow combinators from the flow layer.
type CombinatorKind int

const (
	CombSample CombinatorKind = iota + 1
	CombScan
	CombThrottle
	CombTimeout
	CombOnChange
	CombPersist
	CombMerge
	CombPeriod
	CombSampleOn
	CombScanOn
	CombTime
)

var combinatorNames = map[CombinatorKind]string{
	CombSample:   "sample",
	CombScan:     "scan",
	CombThrottle: "throttle",
	CombTimeout:  "timeout",
	CombOnChange: "on_change",
	CombPersist:  "persist",
	CombMerge:    "merge",
	CombPeriod:   "period",
	CombSampleOn: "sample_on",
	CombScanOn:   "scan_on",
	CombTime:     "time",
}

func (k CombinatorKind) String() string {
	if n, ok := combinatorNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseCombinatorKind resolves a combinator's wire name (as written in a
// resolved-service-model fixture) back to its CombinatorKind.
func ParseCombinatorKind(name string) (CombinatorKind, bool) {
	for k, n := range combinatorNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// ParseKind resolves a type name (as written in a fixture) to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "bool":
		return KindBool, true
	case "int":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "string":
		return KindString, true
	case "array":
		return KindArray, true
	case "object":
		return KindObject, true
	default:
		return 0, false
	}
}

// ParseFlowKind resolves a flow kind name ("signal" or "event") to a
// FlowKind.
func ParseFlowKind(name string) (FlowKind, bool) {
	switch name {
	case "signal":
		return FlowSignal, true
	case "event":
		return FlowEvent, true
	default:
		return 0, false
	}
}

// Expr is a combinator expression node. Expressions may nest arbitrarily
// (e.g. throttle(on_change(scan(s, P)), D)); the planner compiles
// expressions of any depth, not just single-combinator derivations.
type Expr struct {
	Kind CombinatorKind

	// Inputs are the upstream flow identifiers this node reads directly
	// (used when the upstream is a raw/external flow rather than a
	// nested expression).
	Inputs []string

	// Sub is the nested sub-expression for combinators that wrap another
	// derivation (e.g. throttle(on_change(s), D), where on_change(s) is Sub).
	// Nil when the combinator reads Inputs directly.
	Sub *Expr

	// PeriodMs is the period parameter for sample/scan/period (P).
	PeriodMs int64
	// DeltaMs is the throttle interval (Δ).
	DeltaMs int64
	// TimeoutMs is the timeout() combinator's silence duration (D).
	TimeoutMs int64

	// ElemKind is the element type this node produces, needed for
	// persist()'s pre-first-emit ZeroValue and for arity checking.
	ElemKind Kind
}

// LeafInputs returns every raw flow identifier this expression tree reads,
// in declaration order with duplicates removed. Used by the planner to
// compute a service's consumed-flow list.
func (e *Expr) LeafInputs() []string {
	if e == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		for _, in := range n.Inputs {
			if !seen[in] {
				seen[in] = true
				out = append(out, in)
			}
		}
		walk(n.Sub)
	}
	walk(e)
	return out
}

// FlowSpec is a named input or derived stream.
type FlowSpec struct {
	ID         string
	Kind       FlowKind
	ElemKind   Kind
	Derivation *Expr // nil for a raw/external flow
}

// IsExternal reports whether this flow is a raw external input (terminates
// the combinator graph) rather than a value derived from other flows.
func (f FlowSpec) IsExternal() bool {
	return f.Derivation == nil
}

// Validate checks a FlowSpec for internal consistency. Reference
// resolution (that Derivation.Inputs name known flows) is checked by the
// compiler package, which has the full flow set in scope.
func (f FlowSpec) Validate() []ValidationError {
	var errs []ValidationError
	if f.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "flow id must not be empty"})
	}
	if f.Kind != FlowSignal && f.Kind != FlowEvent {
		errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.kind", f.ID), Message: "flow kind must be signal or event"})
	}
	return errs
}
