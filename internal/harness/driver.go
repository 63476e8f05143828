package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/vectis-systems/fluxc/internal/ir"
	"github.com/vectis-systems/fluxc/internal/runtime"
)

// Driver wraps one compiled runtime.Service and plays virtual time
// forward: it drains whatever TimerRequests the service arms, tracks each
// timer's next fire instant, and delivers a HandleTimerFired call exactly
// when virtual time reaches it. This is the contract a production
// priority-ordering stream provides, implemented here so scenarios
// exercise the real state machine end to end.
type Driver struct {
	svc     *runtime.Service
	outputs chan runtime.Output
	timers  chan runtime.TimerRequest
	pending map[string]int64 // timerID -> next fire instant
}

// NewDriver builds a Driver around a freshly constructed Service.
func NewDriver(plan *ir.ServicePlan, spec ir.ServiceSpec, stepFuncs map[string]ir.StepFunc, initFuncs map[string]ir.InitFunc) *Driver {
	outputs := make(chan runtime.Output, 256)
	timers := make(chan runtime.TimerRequest, 256)
	svc := runtime.NewService(plan, spec, stepFuncs, initFuncs, outputs, timers)
	return &Driver{svc: svc, outputs: outputs, timers: timers, pending: map[string]int64{}}
}

func (d *Driver) drainTimers() {
	for {
		select {
		case req := <-d.timers:
			d.pending[req.TimerID] = req.FireAt()
		default:
			return
		}
	}
}

func (d *Driver) collectOutputs(into *[]runtime.Output) {
	for {
		select {
		case out := <-d.outputs:
			*into = append(*into, out)
		default:
			return
		}
	}
}

// advanceTo fires every pending timer due at or before instant, earliest
// first, re-draining newly armed timers after each fire (a periodic timer
// rearms itself on every tick).
func (d *Driver) advanceTo(ctx context.Context, instant int64) error {
	for {
		timerID, fireAt, ok := d.earliestDue(instant)
		if !ok {
			return nil
		}
		if err := d.svc.HandleTimerFired(ctx, timerID, fireAt); err != nil {
			return fmt.Errorf("timer %q at %d: %w", timerID, fireAt, err)
		}
		delete(d.pending, timerID)
		d.drainTimers()
	}
}

func (d *Driver) earliestDue(horizon int64) (string, int64, bool) {
	var bestID string
	var bestAt int64
	found := false
	for id, at := range d.pending {
		if at > horizon {
			continue
		}
		if !found || at < bestAt || (at == bestAt && id < bestID) {
			bestID, bestAt, found = id, at, true
		}
	}
	return bestID, bestAt, found
}

// Run seeds the service's timeout and periodic timers at instant 0 (the
// same contract runtime.Runtime.RunLoop applies to every composed
// service), then drives every scripted input in nondecreasing instant
// order, firing due timers before each one and flushing remaining timers
// up to scenario.HorizonMs at the end, returning every output collected.
func (d *Driver) Run(ctx context.Context, scenario *Scenario) ([]runtime.Output, error) {
	if err := d.svc.SeedTimers(ctx, 0); err != nil {
		return nil, fmt.Errorf("seeding timers: %w", err)
	}
	d.drainTimers()

	inputs := make([]InputStep, len(scenario.Inputs))
	copy(inputs, scenario.Inputs)
	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].At < inputs[j].At })

	var outputs []runtime.Output
	for _, in := range inputs {
		if err := d.advanceTo(ctx, in.At); err != nil {
			return nil, err
		}
		d.collectOutputs(&outputs)

		value, err := convertScenarioValue(in.Value)
		if err != nil {
			return nil, fmt.Errorf("input %q at %d: %w", in.Flow, in.At, err)
		}
		if err := d.svc.HandleInput(ctx, in.Flow, value, in.At); err != nil {
			return nil, fmt.Errorf("input %q at %d: %w", in.Flow, in.At, err)
		}
		d.drainTimers()
		d.collectOutputs(&outputs)
	}

	if err := d.advanceTo(ctx, scenario.HorizonMs); err != nil {
		return nil, err
	}
	d.collectOutputs(&outputs)
	return outputs, nil
}

func convertScenarioValue(v interface{}) (ir.Value, error) {
	switch t := v.(type) {
	case bool:
		return ir.BoolValue(t), nil
	case int:
		return ir.IntValue(int64(t)), nil
	case int64:
		return ir.IntValue(t), nil
	case float64:
		return ir.FloatValue(t), nil
	case string:
		return ir.StringValue(t), nil
	default:
		return ir.Value{}, fmt.Errorf("unsupported scenario value type %T", v)
	}
}
