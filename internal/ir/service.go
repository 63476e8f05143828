package ir

import "fmt"

// ServiceSpec is the compiler's input: one or more component instances to
// colocate in a service, plus the flow graph that feeds them.
type ServiceSpec struct {
	ID         string
	Components []ComponentSpec
	Flows      []FlowSpec
}

// TimerKind distinguishes the three timer families a service can own.
type TimerKind int

const (
	// TimerPeriod fires every component's declared period; reset_on_fire
	// is false; the service reschedules explicitly on firing.
	TimerPeriod TimerKind = iota + 1
	// TimerDelay is the settling-delay timer; reset_on_fire is true.
	TimerDelay
	// TimerTimeout is the service-timeout safety floor; reset_on_fire is true.
	TimerTimeout
)

func (k TimerKind) String() string {
	switch k {
	case TimerPeriod:
		return "period"
	case TimerDelay:
		return "delay"
	case TimerTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TimerDescriptor identifies one timer a service owns. Identity is the
// compile-time constant by which the timer subsystem collapses duplicate
// requests.
type TimerDescriptor struct {
	ID          string
	ServiceID   string
	ComponentID string // set for TimerPeriod; empty otherwise
	Kind        TimerKind
	DurationMs  int64
}

// DurationMS returns the timer's configured duration.
func (t TimerDescriptor) DurationMS() int64 { return t.DurationMs }

// ResetOnFire reports whether firing this timer consumes it (settling
// delay and timeout) or whether the owner reschedules it explicitly
// (periodic timers).
func (t TimerDescriptor) ResetOnFire() bool {
	return t.Kind == TimerDelay || t.Kind == TimerTimeout
}

// DispatchStepKind tags one step of a service's ordered dispatch plan.
type DispatchStepKind int

const (
	// DispatchApplyInput writes one pending store entry into the context.
	DispatchApplyInput DispatchStepKind = iota + 1
	// DispatchDerive evaluates one derived flow's combinator expression
	// and writes its result into the context (every derived flow in a
	// settle chain, only the time-derived ones in a periodic chain).
	DispatchDerive
	// DispatchComponentStep runs one component's step function.
	DispatchComponentStep
)

// DispatchStep is one ordered action in a settling-window close, a
// timeout fire, or a periodic fire. The ordering of a ServicePlan's
// dispatch slices IS the write-order contract: inputs in reverse
// declaration order, then derived flows, then component steps in
// dependency order.
type DispatchStep struct {
	Kind        DispatchStepKind
	FlowID      string // set for DispatchApplyInput / DispatchDerive
	ComponentID string // set for DispatchComponentStep
}

// ServicePlan is the compiler's per-service output: the consumed-flow
// list, the timer set, the external subscriptions, and the dispatch plans
// the runtime Service executes.
type ServicePlan struct {
	ServiceID string

	// ConsumedFlows is the union of input flows of all components and all
	// intermediate combinators, in first-reference order.
	ConsumedFlows []string

	// Timers is one settling-delay timer, one timeout timer, and one
	// periodic timer per distinct component period.
	Timers []TimerDescriptor

	// Subscriptions is the set of external (raw) flow identifiers that
	// terminate the combinator graph, which the runtime composer routes
	// broadcast inputs against.
	Subscriptions []string

	// SettleOrder is the dispatch plan run when the settling-delay timer
	// fires or the timeout fires (full step chain).
	SettleOrder []DispatchStep

	// PeriodicOrder maps a period timer's component to the dispatch steps
	// run on that component's own periodic tick (derived-tick chain only,
	// no settling involved).
	PeriodicOrder map[string][]DispatchStep

	// ComponentOrder is the topological order components' steps run in
	// within SettleOrder/PeriodicOrder, consistent with the flow
	// derivation graph.
	ComponentOrder []string
}

// RuntimeSchema is the compiled contract a downstream code generator
// consumes: timer identifiers, input/output variant tags, and per-service
// dispatch, for every service colocated under one runtime.
type RuntimeSchema struct {
	Version  string
	Services []ServicePlan

	// InputVariants is the tagged sum over every external flow a service
	// subscribes to, across the whole runtime.
	InputVariants []string

	// OutputVariants is the tagged sum over every exported signal/event of
	// every service.
	OutputVariants []string
}

func (s *RuntimeSchema) canonicalForm() ([]byte, error) {
	obj := map[string]Value{
		"version": StringValue(s.Version),
	}

	services := make([]Value, len(s.Services))
	for i, sp := range s.Services {
		services[i] = servicePlanValue(sp)
	}
	obj["services"] = Value{Kind: KindArray, Array: services}

	inputs := make([]Value, len(s.InputVariants))
	for i, v := range s.InputVariants {
		inputs[i] = StringValue(v)
	}
	obj["input_variants"] = Value{Kind: KindArray, Array: inputs}

	outputs := make([]Value, len(s.OutputVariants))
	for i, v := range s.OutputVariants {
		outputs[i] = StringValue(v)
	}
	obj["output_variants"] = Value{Kind: KindArray, Array: outputs}

	return MarshalCanonical(Value{Kind: KindObject, Object: obj})
}

func servicePlanValue(sp ServicePlan) Value {
	consumed := make([]Value, len(sp.ConsumedFlows))
	for i, f := range sp.ConsumedFlows {
		consumed[i] = StringValue(f)
	}
	subs := make([]Value, len(sp.Subscriptions))
	for i, f := range sp.Subscriptions {
		subs[i] = StringValue(f)
	}
	timers := make([]Value, len(sp.Timers))
	for i, t := range sp.Timers {
		timers[i] = Value{Kind: KindObject, Object: map[string]Value{
			"id":       StringValue(t.ID),
			"kind":     StringValue(t.Kind.String()),
			"duration": IntValue(t.DurationMs),
			"reset":    BoolValue(t.ResetOnFire()),
		}}
	}
	order := make([]Value, len(sp.ComponentOrder))
	for i, c := range sp.ComponentOrder {
		order[i] = StringValue(c)
	}
	return Value{Kind: KindObject, Object: map[string]Value{
		"service_id":      StringValue(sp.ServiceID),
		"consumed_flows":  Value{Kind: KindArray, Array: consumed},
		"subscriptions":   Value{Kind: KindArray, Array: subs},
		"timers":          Value{Kind: KindArray, Array: timers},
		"component_order": Value{Kind: KindArray, Array: order},
	}}
}

// LookupComponent finds a component by ID within a ServiceSpec.
func (s ServiceSpec) LookupComponent(id string) (ComponentSpec, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return ComponentSpec{}, false
}

// LookupFlow finds a flow by ID within a ServiceSpec.
func (s ServiceSpec) LookupFlow(id string) (FlowSpec, bool) {
	for _, f := range s.Flows {
		if f.ID == id {
			return f, true
		}
	}
	return FlowSpec{}, false
}

// Validate runs structural checks shared across every ServiceSpec
// consumer; reference resolution and cycle detection are the compiler
// package's job, since they need whole-graph context.
func (s ServiceSpec) Validate() []ValidationError {
	var errs []ValidationError
	if s.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "service id must not be empty"})
	}
	if len(s.Components) == 0 {
		errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.components", s.ID), Message: "service must colocate at least one component"})
	}
	for _, c := range s.Components {
		errs = append(errs, c.Validate()...)
	}
	for _, f := range s.Flows {
		errs = append(errs, f.Validate()...)
	}
	return errs
}
