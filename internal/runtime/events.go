// Package runtime implements the per-service context state machine and
// the runtime composer: the Service owns a Context, an InputStore, and
// the Delayed/Open transition table; the Runtime owns a set of Services
// and routes a caller-supplied ordered event stream to them, broadcasting
// external inputs and routing timers to their owner.
package runtime

import "github.com/vectis-systems/fluxc/internal/ir"

// InputEventKind distinguishes an external flow update from a timer fire
// in the merged input stream.
type InputEventKind int

const (
	// InputExternal carries an update to a raw external flow.
	InputExternal InputEventKind = iota + 1
	// InputTimer carries a timer firing.
	InputTimer
)

// InputEvent is one entry from the priority-ordering stream RunLoop
// consumes: a tagged sum over every declared external flow, plus one
// variant wrapping (timer identity, instant). Producing these in
// nondecreasing Instant order, collapsing reset-on-fire timers by
// identity, is the priority-ordering stream's job; the loop does not
// re-sort.
type InputEvent struct {
	Kind    InputEventKind
	FlowID  string // set when Kind == InputExternal
	Value   ir.Value
	TimerID string // set when Kind == InputTimer
	Instant int64
}

// ExternalInput constructs an InputEvent carrying an update to a raw flow.
func ExternalInput(flowID string, value ir.Value, instant int64) InputEvent {
	return InputEvent{Kind: InputExternal, FlowID: flowID, Value: value, Instant: instant}
}

// TimerFired constructs an InputEvent carrying a timer firing.
func TimerFired(timerID string, instant int64) InputEvent {
	return InputEvent{Kind: InputTimer, TimerID: timerID, Instant: instant}
}

// Output is a tagged sum over every exported signal and event of every
// service, each variant carrying a value and a firing instant. Outputs
// always carry the firing instant, not the arrival instant of whichever
// input triggered the firing.
type Output struct {
	ServiceID string
	FlowID    string
	Value     ir.Value
	Instant   int64
}

// TimerRequest is what a Service emits on its timer channel to arm or
// rearm a timer: the timer subsystem schedules a delivery at
// RequestedAt+DurationMs. ResetOnFire timers (settling delay, timeout)
// replace any pending request for the same ID; period timers are
// explicitly rescheduled by their owner on each fire, so in steady state
// only one request per ID is ever live.
type TimerRequest struct {
	TimerID     string
	DurationMs  int64
	ResetOnFire bool
	RequestedAt int64
}

// FireAt is the instant this request's timer is scheduled to deliver.
func (r TimerRequest) FireAt() int64 { return r.RequestedAt + r.DurationMs }
