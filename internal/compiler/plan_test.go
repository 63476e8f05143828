package compiler

import (
	"errors"
	"testing"

	"github.com/vectis-systems/fluxc/internal/ir"
)

func validSpeedLimiterSpec() ir.ServiceSpec {
	return ir.ServiceSpec{
		ID: "speed_limiter_service",
		Flows: []ir.FlowSpec{
			{ID: "speed_event", Kind: ir.FlowEvent, ElemKind: ir.KindFloat},
			{ID: "speed", Kind: ir.FlowSignal, ElemKind: ir.KindFloat, Derivation: &ir.Expr{
				Kind: ir.CombSample, Inputs: []string{"speed_event"}, PeriodMs: 10, ElemKind: ir.KindFloat,
			}},
			{ID: "activation", Kind: ir.FlowSignal, ElemKind: ir.KindBool},
			{ID: "set_speed", Kind: ir.FlowSignal, ElemKind: ir.KindFloat},
		},
		Components: []ir.ComponentSpec{
			{
				ID: "speed_limiter",
				Inputs: []ir.PortSpec{
					{Name: "activation", Flow: "activation", ElemKind: ir.KindBool},
					{Name: "set_speed", Flow: "set_speed", ElemKind: ir.KindFloat},
					{Name: "speed", Flow: "speed", ElemKind: ir.KindFloat},
				},
				Outputs: []ir.PortSpec{
					{Name: "v_set", Flow: "v_set", ElemKind: ir.KindFloat},
					{Name: "in_regulation", Flow: "in_regulation", ElemKind: ir.KindBool},
				},
				PeriodMs:  10,
				DelayMs:   10,
				TimeoutMs: 500,
			},
		},
	}
}

func TestPlanConsumedFlowsAndSubscriptions(t *testing.T) {
	plan, err := Plan(validSpeedLimiterSpec())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	wantConsumed := []string{"activation", "set_speed", "speed", "speed_event"}
	if len(plan.ConsumedFlows) != len(wantConsumed) {
		t.Fatalf("ConsumedFlows = %v, want %v", plan.ConsumedFlows, wantConsumed)
	}
	for _, w := range wantConsumed {
		found := false
		for _, got := range plan.ConsumedFlows {
			if got == w {
				found = true
			}
		}
		if !found {
			t.Errorf("ConsumedFlows missing %q: %v", w, plan.ConsumedFlows)
		}
	}

	wantSubs := map[string]bool{"activation": true, "set_speed": true, "speed_event": true}
	if len(plan.Subscriptions) != len(wantSubs) {
		t.Fatalf("Subscriptions = %v, want keys of %v", plan.Subscriptions, wantSubs)
	}
	for _, s := range plan.Subscriptions {
		if !wantSubs[s] {
			t.Errorf("unexpected subscription %q (speed is derived, must not subscribe)", s)
		}
	}
}

func TestPlanTimersOneOfEachKind(t *testing.T) {
	plan, err := Plan(validSpeedLimiterSpec())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	var delay, timeout, period int
	for _, timer := range plan.Timers {
		switch timer.Kind {
		case ir.TimerDelay:
			delay++
			if timer.DurationMs != 10 {
				t.Errorf("delay timer duration = %d, want 10", timer.DurationMs)
			}
		case ir.TimerTimeout:
			timeout++
			if timer.DurationMs != 500 {
				t.Errorf("timeout timer duration = %d, want 500", timer.DurationMs)
			}
		case ir.TimerPeriod:
			period++
		}
	}
	if delay != 1 || timeout != 1 || period != 1 {
		t.Fatalf("timer counts = delay:%d timeout:%d period:%d, want 1 each", delay, timeout, period)
	}
}

func TestPlanSettleOrderInputsReversedThenDeriveThenSteps(t *testing.T) {
	plan, err := Plan(validSpeedLimiterSpec())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	var sawDerive, sawStep bool
	lastInputIdx := -1
	for i, step := range plan.SettleOrder {
		switch step.Kind {
		case ir.DispatchApplyInput:
			if sawDerive || sawStep {
				t.Fatalf("ApplyInput step at %d after Derive/ComponentStep: %+v", i, plan.SettleOrder)
			}
			lastInputIdx = i
		case ir.DispatchDerive:
			sawDerive = true
			if sawStep {
				t.Fatalf("Derive step at %d after ComponentStep: %+v", i, plan.SettleOrder)
			}
			if step.FlowID != "speed" {
				t.Errorf("expected derive step for 'speed', got %q", step.FlowID)
			}
		case ir.DispatchComponentStep:
			sawStep = true
		}
	}
	if lastInputIdx < 0 {
		t.Fatal("expected at least one ApplyInput step")
	}
	if !sawDerive {
		t.Error("expected a Derive step for the time-derived 'speed' flow")
	}
	if !sawStep {
		t.Error("expected a ComponentStep for speed_limiter")
	}
}

func TestPlanRejectsUnknownFlowReference(t *testing.T) {
	spec := validSpeedLimiterSpec()
	spec.Components[0].Inputs[0].Flow = "does_not_exist"
	if _, err := Plan(spec); err == nil {
		t.Fatal("expected error for unknown flow reference")
	}
}

func TestPlanRejectsComponentCycle(t *testing.T) {
	spec := ir.ServiceSpec{
		ID: "cyclic_service",
		Flows: []ir.FlowSpec{
			{ID: "a_out", Kind: ir.FlowSignal, ElemKind: ir.KindFloat},
			{ID: "b_out", Kind: ir.FlowSignal, ElemKind: ir.KindFloat},
		},
		Components: []ir.ComponentSpec{
			{
				ID:        "a",
				Inputs:    []ir.PortSpec{{Name: "in", Flow: "b_out", ElemKind: ir.KindFloat}},
				Outputs:   []ir.PortSpec{{Name: "out", Flow: "a_out", ElemKind: ir.KindFloat}},
				PeriodMs:  10, DelayMs: 10, TimeoutMs: 500,
			},
			{
				ID:        "b",
				Inputs:    []ir.PortSpec{{Name: "in", Flow: "a_out", ElemKind: ir.KindFloat}},
				Outputs:   []ir.PortSpec{{Name: "out", Flow: "b_out", ElemKind: ir.KindFloat}},
				PeriodMs:  10, DelayMs: 10, TimeoutMs: 500,
			},
		},
	}
	_, err := Plan(spec)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T: %v", err, err)
	}
}

func TestPlanAllowsPersistBackEdge(t *testing.T) {
	// a consumes b's output, and b consumes persist(a's output as event) -
	// the persist is a legitimate back reference, so the loop it closes
	// must NOT be flagged as a cycle.
	spec := ir.ServiceSpec{
		ID: "persisted_service",
		Flows: []ir.FlowSpec{
			{ID: "a_event", Kind: ir.FlowEvent, ElemKind: ir.KindFloat},
			{ID: "a_persisted", Kind: ir.FlowSignal, ElemKind: ir.KindFloat, Derivation: &ir.Expr{
				Kind: ir.CombPersist, Inputs: []string{"a_event"}, ElemKind: ir.KindFloat,
			}},
		},
		Components: []ir.ComponentSpec{
			{
				ID:        "a",
				Inputs:    []ir.PortSpec{{Name: "in", Flow: "b_out", ElemKind: ir.KindFloat}},
				Outputs:   []ir.PortSpec{{Name: "out", Flow: "a_event", ElemKind: ir.KindFloat}},
				PeriodMs:  10, DelayMs: 10, TimeoutMs: 500,
			},
			{
				ID:        "b",
				Inputs:    []ir.PortSpec{{Name: "in", Flow: "a_persisted", ElemKind: ir.KindFloat}},
				Outputs:   []ir.PortSpec{{Name: "out", Flow: "b_out", ElemKind: ir.KindFloat}},
				PeriodMs:  10, DelayMs: 10, TimeoutMs: 500,
			},
		},
	}
	spec.Flows = append(spec.Flows, ir.FlowSpec{ID: "b_out", Kind: ir.FlowSignal, ElemKind: ir.KindFloat})

	if _, err := Plan(spec); err != nil {
		t.Fatalf("Plan() error = %v, want nil (persist breaks the cycle)", err)
	}
}
