// Package compiler implements the service planner: given a resolved
// ServiceSpec, it computes the settling delay, timeout, required timers,
// consumed-flow set, and the per-input dispatch plan a runtime Service
// executes. It also loads resolved service models from CUE fixtures
// (load.go) for the CLI's "plan"/"schema" commands.
package compiler

import (
	"fmt"
	"sort"

	"github.com/vectis-systems/fluxc/internal/ir"
)

// timeDerivedKinds are the combinators whose tick is driven by the
// passage of time rather than by an upstream flow update arriving in the
// settling store.
var timeDerivedKinds = map[ir.CombinatorKind]bool{
	ir.CombSample:  true,
	ir.CombScan:    true,
	ir.CombTimeout: true,
	ir.CombPeriod:  true,
}

// Plan computes a ServicePlan for one ServiceSpec. It first runs
// structural validation (ir.ServiceSpec.Validate) and fails with the first
// error found; it then resolves flow references and checks for cyclic component
// dependencies, both of which need whole-graph context the per-type
// Validate methods don't have.
func Plan(spec ir.ServiceSpec) (*ir.ServicePlan, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, &PlanError{ServiceID: spec.ID, Message: errs[0].Error()}
	}

	flowByID := make(map[string]ir.FlowSpec, len(spec.Flows))
	for _, f := range spec.Flows {
		flowByID[f.ID] = f
	}
	for _, c := range spec.Components {
		for _, in := range c.Inputs {
			if _, ok := flowByID[in.Flow]; !ok {
				return nil, &PlanError{ServiceID: spec.ID, Message: fmt.Sprintf("component %s: unknown input flow %q", c.ID, in.Flow)}
			}
		}
	}
	for _, f := range spec.Flows {
		for _, in := range f.Derivation.LeafInputs() {
			if _, ok := flowByID[in]; !ok {
				return nil, &PlanError{ServiceID: spec.ID, Message: fmt.Sprintf("flow %s: unknown derivation input %q", f.ID, in)}
			}
		}
	}

	graph := buildComponentGraph(spec)
	if cycle := detectCycle(graph); cycle != nil {
		return nil, &CycleError{ServiceID: spec.ID, Path: cycle}
	}

	declared := make([]string, len(spec.Components))
	for i, c := range spec.Components {
		declared[i] = c.ID
	}
	componentOrder := topoOrder(declared, graph)

	consumed := consumedFlows(spec)
	subscriptions := externalSubscriptions(spec, flowByID)
	timers := buildTimers(spec)

	settleOrder := buildSettleOrder(spec, flowByID, consumed, componentOrder)
	periodicOrder := buildPeriodicOrders(spec, flowByID, componentOrder)

	return &ir.ServicePlan{
		ServiceID:      spec.ID,
		ConsumedFlows:  consumed,
		Timers:         timers,
		Subscriptions:  subscriptions,
		SettleOrder:    settleOrder,
		PeriodicOrder:  periodicOrder,
		ComponentOrder: componentOrder,
	}, nil
}

// consumedFlows is the union of input flows of all components and all
// intermediate combinators, in first-reference order.
func consumedFlows(spec ir.ServiceSpec) []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	flowByID := make(map[string]ir.FlowSpec, len(spec.Flows))
	for _, f := range spec.Flows {
		flowByID[f.ID] = f
	}
	var walk func(string)
	walk = func(id string) {
		add(id)
		if f, ok := flowByID[id]; ok && f.Derivation != nil {
			for _, in := range f.Derivation.LeafInputs() {
				walk(in)
			}
		}
	}
	for _, c := range spec.Components {
		for _, in := range c.Inputs {
			walk(in.Flow)
		}
	}
	return out
}

// externalSubscriptions is the set of raw flow identifiers that terminate
// the combinator graph, which is what the runtime composer routes
// broadcast inputs against.
func externalSubscriptions(spec ir.ServiceSpec, flowByID map[string]ir.FlowSpec) []string {
	var out []string
	for _, id := range consumedFlows(spec) {
		if f, ok := flowByID[id]; ok && f.IsExternal() {
			out = append(out, id)
		}
	}
	return out
}

// buildTimers produces one settling-delay timer, one timeout timer, and
// one periodic timer per distinct component period. When a service
// colocates several components, the settling delay and timeout used are
// the minimum across components: the Context/InputStore are per-service,
// singular state, so a single delay and timeout must be chosen, and the
// conservative choice is the tightest bound any colocated component
// declared.
func buildTimers(spec ir.ServiceSpec) []ir.TimerDescriptor {
	var timers []ir.TimerDescriptor

	minDelay, minTimeout := spec.Components[0].DelayMs, spec.Components[0].TimeoutMs
	for _, c := range spec.Components[1:] {
		if c.DelayMs < minDelay {
			minDelay = c.DelayMs
		}
		if c.TimeoutMs < minTimeout {
			minTimeout = c.TimeoutMs
		}
	}
	timers = append(timers, ir.TimerDescriptor{
		ID:         spec.ID + ".delay",
		ServiceID:  spec.ID,
		Kind:       ir.TimerDelay,
		DurationMs: minDelay,
	})
	timers = append(timers, ir.TimerDescriptor{
		ID:         spec.ID + ".timeout",
		ServiceID:  spec.ID,
		Kind:       ir.TimerTimeout,
		DurationMs: minTimeout,
	})

	seenPeriod := map[int64]string{}
	var periods []int64
	for _, c := range spec.Components {
		if _, ok := seenPeriod[c.PeriodMs]; !ok {
			seenPeriod[c.PeriodMs] = c.ID
			periods = append(periods, c.PeriodMs)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	for _, p := range periods {
		timers = append(timers, ir.TimerDescriptor{
			ID:          fmt.Sprintf("%s.period.%d", spec.ID, p),
			ServiceID:   spec.ID,
			ComponentID: seenPeriod[p],
			Kind:        ir.TimerPeriod,
			DurationMs:  p,
		})
	}
	return timers
}

// buildSettleOrder produces the dispatch plan run when the settling-delay
// timer fires or the timeout fires: inputs first in reverse declaration
// order, then every derived flow (leaf-first, the time-derived ones
// included), then component steps in dependency order.
func buildSettleOrder(spec ir.ServiceSpec, flowByID map[string]ir.FlowSpec, consumed, componentOrder []string) []ir.DispatchStep {
	var steps []ir.DispatchStep

	subs := externalSubscriptions(spec, flowByID)
	for i := len(subs) - 1; i >= 0; i-- {
		steps = append(steps, ir.DispatchStep{Kind: ir.DispatchApplyInput, FlowID: subs[i]})
	}

	// Every derived flow must be recomputed on a settle close, not only
	// the narrowly time-driven ticks (sample/scan/timeout/period): a
	// nested chain like throttle(on_change(s), D) only produces a value
	// because its upstream was just written by an ApplyInput step above,
	// so on_change/throttle/merge/persist/sample_on/scan_on need the same
	// settle-close recomputation. derivedOrder walks leaf-first so a
	// derived flow referencing another named derived flow sees it already
	// recomputed.
	for _, id := range derivedOrder(consumed, flowByID) {
		steps = append(steps, ir.DispatchStep{Kind: ir.DispatchDerive, FlowID: id})
	}

	for _, cid := range componentOrder {
		steps = append(steps, ir.DispatchStep{Kind: ir.DispatchComponentStep, ComponentID: cid})
	}
	return steps
}

// derivedOrder returns every flow in ids that carries a Derivation,
// leaf-first (a flow that reads another named derived flow as an upstream
// comes after it), preserving first-encounter order as a stable tie-break.
func derivedOrder(ids []string, flowByID map[string]ir.FlowSpec) []string {
	var order []string
	visited := map[string]bool{}
	var visiting map[string]bool = map[string]bool{}
	var visit func(string)
	visit = func(id string) {
		if visited[id] || visiting[id] {
			return
		}
		f, ok := flowByID[id]
		if !ok || f.Derivation == nil {
			return
		}
		visiting[id] = true
		for _, in := range f.Derivation.LeafInputs() {
			visit(in)
		}
		visiting[id] = false
		visited[id] = true
		order = append(order, id)
	}
	for _, id := range ids {
		visit(id)
	}
	return order
}

// buildPeriodicOrders builds, for each component, the derived-tick chain
// run on that component's own periodic tick: only the time-derived flows
// this component reads, followed by the component's own step. No
// settling, no other components.
func buildPeriodicOrders(spec ir.ServiceSpec, flowByID map[string]ir.FlowSpec, componentOrder []string) map[string][]ir.DispatchStep {
	out := make(map[string][]ir.DispatchStep, len(spec.Components))
	byID := make(map[string]ir.ComponentSpec, len(spec.Components))
	for _, c := range spec.Components {
		byID[c.ID] = c
	}
	for _, cid := range componentOrder {
		c := byID[cid]
		var steps []ir.DispatchStep
		seen := map[string]bool{}
		var walk func(string)
		walk = func(id string) {
			if seen[id] {
				return
			}
			seen[id] = true
			f, ok := flowByID[id]
			if !ok || f.Derivation == nil {
				return
			}
			for _, in := range f.Derivation.LeafInputs() {
				walk(in)
			}
			if timeDerivedKinds[f.Derivation.Kind] {
				steps = append(steps, ir.DispatchStep{Kind: ir.DispatchDerive, FlowID: id})
			}
		}
		for _, in := range c.Inputs {
			walk(in.Flow)
		}
		steps = append(steps, ir.DispatchStep{Kind: ir.DispatchComponentStep, ComponentID: cid})
		out[cid] = steps
	}
	return out
}

// PlanRuntime compiles a full RuntimeSchema from multiple ServiceSpecs,
// colocated under one runtime in declaration order.
func PlanRuntime(specs []ir.ServiceSpec) (*ir.RuntimeSchema, error) {
	schema := &ir.RuntimeSchema{Version: ir.RuntimeVersion}

	inputSeen := map[string]bool{}
	outputSeen := map[string]bool{}
	for _, spec := range specs {
		plan, err := Plan(spec)
		if err != nil {
			return nil, err
		}
		schema.Services = append(schema.Services, *plan)

		for _, in := range plan.Subscriptions {
			if !inputSeen[in] {
				inputSeen[in] = true
				schema.InputVariants = append(schema.InputVariants, in)
			}
		}
		for _, c := range spec.Components {
			for _, out := range c.Outputs {
				if !outputSeen[out.Flow] {
					outputSeen[out.Flow] = true
					schema.OutputVariants = append(schema.OutputVariants, out.Flow)
				}
			}
		}
	}
	return schema, nil
}
