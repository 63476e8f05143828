package runtime

import (
	"context"
	"log/slog"

	"github.com/vectis-systems/fluxc/internal/ir"
)

// Service drives one compiled ServicePlan's context state machine: a
// Context holding last-known values and freshness, an InputStore
// buffering at most one pending write per subscribed flow during a
// settling window, and a Delayed/Open latch deciding whether an arriving
// input opens a new window or is folded into the one already in flight.
//
// States:
//   - Delayed: idle between windows. The next subscribed input applies
//     directly to the context and also takes its own InputStore slot,
//     arms the settling-delay and timeout timers, and moves the service
//     to Open.
//   - Open: a window is in flight. Further inputs are buffered in the
//     InputStore (at most one per flow, counting the input that opened
//     the window; a second write is a FrequencyViolationError); the
//     window closes when the delay timer fires (normal case) or the
//     timeout timer fires (safety floor). A delay fire that finds the
//     store empty returns the service to Delayed.
//
// Component step functions are supplied by the caller rather than carried
// on ir.ComponentSpec, matching the layering ir/component.go already
// documents.
type Service struct {
	plan *ir.ServicePlan
	spec ir.ServiceSpec

	flowByID      map[string]ir.FlowSpec
	componentByID map[string]ir.ComponentSpec

	ctx   *Context
	store *InputStore

	states    map[string]any
	stepFuncs map[string]ir.StepFunc

	deriveStates map[string]*exprState

	delayed bool

	outputs chan<- Output
	timers  chan<- TimerRequest
}

// NewService builds a Service for one compiled plan. stepFuncs and
// initFuncs are keyed by component ID; a component with no entry in
// stepFuncs never produces output (its ComponentStep dispatch steps are
// silently skipped).
func NewService(plan *ir.ServicePlan, spec ir.ServiceSpec, stepFuncs map[string]ir.StepFunc, initFuncs map[string]ir.InitFunc, outputs chan<- Output, timers chan<- TimerRequest) *Service {
	flowByID := make(map[string]ir.FlowSpec, len(spec.Flows))
	for _, f := range spec.Flows {
		flowByID[f.ID] = f
	}
	componentByID := make(map[string]ir.ComponentSpec, len(spec.Components))
	for _, c := range spec.Components {
		componentByID[c.ID] = c
	}

	states := make(map[string]any, len(spec.Components))
	for _, c := range spec.Components {
		if init, ok := initFuncs[c.ID]; ok {
			states[c.ID] = init()
		}
	}

	deriveStates := make(map[string]*exprState, len(spec.Flows))
	for _, f := range spec.Flows {
		if f.Derivation != nil {
			deriveStates[f.ID] = newExprState(f.Derivation)
		}
	}

	return &Service{
		plan:          plan,
		spec:          spec,
		flowByID:      flowByID,
		componentByID: componentByID,
		ctx:           NewContext(plan.ConsumedFlows),
		store:         NewInputStore(plan.Subscriptions),
		states:        states,
		stepFuncs:     stepFuncs,
		deriveStates:  deriveStates,
		delayed:       true,
		outputs:       outputs,
		timers:        timers,
	}
}

// ID returns the service's identifier.
func (s *Service) ID() string { return s.plan.ServiceID }

// Delayed reports whether the service is idle between settling windows.
func (s *Service) Delayed() bool { return s.delayed }

// HandleInput applies an update to one of the service's subscribed flows.
// A flow this service does not subscribe to is ignored: the runtime
// composer is expected to route only to subscribers, but a Service
// tolerates being handed anything.
func (s *Service) HandleInput(ctx context.Context, flowID string, value ir.Value, instant int64) error {
	if !s.store.Has(flowID) {
		return nil
	}

	if s.delayed {
		s.ctx.Reset()
		s.ctx.Set(flowID, value)
		s.store.Write(flowID, value, instant)
		s.delayed = false
		slog.Debug("service window opened", "service", s.plan.ServiceID, "flow", flowID, "instant", instant)

		if dt, ok := s.delayTimer(); ok {
			if err := s.armTimer(ctx, dt, instant); err != nil {
				return err
			}
		}
		if tt, ok := s.timeoutTimer(); ok {
			if err := s.armTimer(ctx, tt, instant); err != nil {
				return err
			}
		}
		return nil
	}

	if !s.store.Write(flowID, value, instant) {
		return &FrequencyViolationError{ServiceID: s.plan.ServiceID, FlowID: flowID}
	}
	return nil
}

// HandleTimerFired advances the state machine on a timer delivery. The
// settling-delay timer and the service timeout timer are NOT
// interchangeable despite both closing a window:
//
//   - Delay fire while Delayed: no window is open, so the delivery is
//     stale. Dropped.
//   - Delay fire while Open, store empty: no input arrived since the
//     window was last rearmed; the service returns to Delayed without
//     stepping.
//   - Delay fire while Open, store nonempty: reset context, apply the
//     pending store entries in declared order, run the step chain, emit,
//     then rearm both delay and timeout; stays Open. The input that
//     opened the window holds its own store slot, so a single-input
//     window is applied fresh here and still emits.
//   - Timeout fire (Open or Delayed): always runs the full step chain on
//     current (possibly stale) context values, emits, rearms both timers,
//     and the service ends up Open regardless of where it started. This
//     is the safety floor on output latency under input silence.
func (s *Service) HandleTimerFired(ctx context.Context, timerID string, instant int64) error {
	t, ok := s.timerByID(timerID)
	if !ok {
		return nil
	}

	switch t.Kind {
	case ir.TimerDelay:
		if s.delayed {
			return nil
		}
		if s.store.Empty() {
			s.delayed = true
			slog.Debug("service window closed empty", "service", s.plan.ServiceID, "timer", t.ID, "instant", instant)
			return nil
		}
		s.ctx.Reset()
		if err := s.runSteps(ctx, s.plan.SettleOrder, instant); err != nil {
			return err
		}
		s.store.Clear()
		if err := s.rearmWindow(ctx, instant); err != nil {
			return err
		}
		slog.Debug("service window settled", "service", s.plan.ServiceID, "timer", t.ID, "instant", instant)
		return nil

	case ir.TimerTimeout:
		s.ctx.Reset()
		if err := s.runSteps(ctx, s.plan.SettleOrder, instant); err != nil {
			return err
		}
		s.store.Clear()
		s.delayed = false
		if err := s.rearmWindow(ctx, instant); err != nil {
			return err
		}
		slog.Debug("service timeout fired", "service", s.plan.ServiceID, "timer", t.ID, "instant", instant)
		return nil

	case ir.TimerPeriod:
		steps := s.plan.PeriodicOrder[t.ComponentID]
		if err := s.runSteps(ctx, steps, instant); err != nil {
			return err
		}
		if err := s.armTimer(ctx, t, instant); err != nil {
			return err
		}
		slog.Debug("periodic timer rearmed", "service", s.plan.ServiceID, "timer", t.ID, "component", t.ComponentID, "instant", instant)
		return nil
	}
	return nil
}

// rearmWindow reschedules the delay and timeout timers after a window
// closes via settle or timeout, keeping the service Open for the next one.
func (s *Service) rearmWindow(ctx context.Context, instant int64) error {
	if dt, ok := s.delayTimer(); ok {
		if err := s.armTimer(ctx, dt, instant); err != nil {
			return err
		}
	}
	if tt, ok := s.timeoutTimer(); ok {
		if err := s.armTimer(ctx, tt, instant); err != nil {
			return err
		}
	}
	return nil
}

// SeedTimers arms this service's timeout timer and every distinct periodic
// timer at the runtime's init instant. The delay timer is deliberately
// left unarmed: delayed==true means no window is open yet, and only the
// first subscribed input arms it.
func (s *Service) SeedTimers(ctx context.Context, instant int64) error {
	if tt, ok := s.timeoutTimer(); ok {
		if err := s.armTimer(ctx, tt, instant); err != nil {
			return err
		}
	}
	for _, t := range s.plan.Timers {
		if t.Kind == ir.TimerPeriod {
			if err := s.armTimer(ctx, t, instant); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) delayTimer() (ir.TimerDescriptor, bool) {
	for _, t := range s.plan.Timers {
		if t.Kind == ir.TimerDelay {
			return t, true
		}
	}
	return ir.TimerDescriptor{}, false
}

func (s *Service) timeoutTimer() (ir.TimerDescriptor, bool) {
	for _, t := range s.plan.Timers {
		if t.Kind == ir.TimerTimeout {
			return t, true
		}
	}
	return ir.TimerDescriptor{}, false
}

func (s *Service) timerByID(id string) (ir.TimerDescriptor, bool) {
	for _, t := range s.plan.Timers {
		if t.ID == id {
			return t, true
		}
	}
	return ir.TimerDescriptor{}, false
}

func (s *Service) armTimer(ctx context.Context, t ir.TimerDescriptor, instant int64) error {
	req := TimerRequest{TimerID: t.ID, DurationMs: t.DurationMs, ResetOnFire: t.ResetOnFire(), RequestedAt: instant}
	select {
	case s.timers <- req:
		return nil
	case <-ctx.Done():
		return &ChannelSendError{ServiceID: s.plan.ServiceID, Channel: "timer", Err: ctx.Err()}
	}
}

func (s *Service) sendOutput(ctx context.Context, out Output) error {
	select {
	case s.outputs <- out:
		return nil
	case <-ctx.Done():
		return &ChannelSendError{ServiceID: s.plan.ServiceID, Channel: "output", Err: ctx.Err()}
	}
}

// runSteps executes one ordered dispatch chain as the compiler laid it
// out: apply buffered inputs into the context, recompute derived flows,
// run component steps.
func (s *Service) runSteps(ctx context.Context, steps []ir.DispatchStep, instant int64) error {
	for _, step := range steps {
		switch step.Kind {
		case ir.DispatchApplyInput:
			if v, _, ok := s.store.Get(step.FlowID); ok {
				s.ctx.Set(step.FlowID, v)
			}

		case ir.DispatchDerive:
			f, ok := s.flowByID[step.FlowID]
			if !ok || f.Derivation == nil {
				continue
			}
			v, present := evalExpr(f.Derivation, s.deriveStates[step.FlowID], s.ctx, instant)
			if present {
				s.ctx.Set(step.FlowID, v)
			}

		case ir.DispatchComponentStep:
			if err := s.runComponentStep(ctx, step.ComponentID, instant); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) runComponentStep(ctx context.Context, componentID string, instant int64) error {
	c, ok := s.componentByID[componentID]
	if !ok {
		return nil
	}
	step, ok := s.stepFuncs[componentID]
	if !ok {
		return nil
	}

	inputs := make(ir.StepInputs, len(c.Inputs))
	for _, p := range c.Inputs {
		v, _ := s.ctx.Get(p.Flow)
		inputs[p.Name] = v
	}

	nextState, outputs := step(s.states[componentID], inputs)
	s.states[componentID] = nextState
	slog.Debug("component step fired", "service", s.plan.ServiceID, "component", componentID, "instant", instant)

	for _, p := range c.Outputs {
		if !outputs.Changed[p.Name] {
			continue
		}
		v, ok := outputs.Values[p.Name]
		if !ok {
			continue
		}
		if s.outputs == nil {
			continue
		}
		if err := s.sendOutput(ctx, Output{ServiceID: s.plan.ServiceID, FlowID: p.Flow, Value: v, Instant: instant}); err != nil {
			return err
		}
	}
	return nil
}
