// Package combinator implements the flow layer's pure combinator
// semantics: sample, scan, throttle, timeout, on_change, persist, merge,
// period, sample_on, scan_on, and time. Every function here is total, does
// no allocation beyond its return value, and is driven entirely by its
// arguments: no combinator reads wall-clock time or performs I/O, so a
// derivation's output instant is always an explicit input.
package combinator

import "github.com/vectis-systems/fluxc/internal/ir"

// State is one derived flow's small persistent memory between firings.
// A single flat struct serves every stateful combinator, so a firing
// never allocates.
type State struct {
	HasValue    bool
	Value       ir.Value
	LastInstant int64
	HasFired    bool
}

// Sample holds the most recent emitted value of an event flow as a
// signal. Liveness (the periodic tick that guarantees a consumer sees
// this value even under event silence) is scheduled by the planner as a
// TimerPeriod, not by this function.
func Sample(st *State, eventPresent bool, eventValue ir.Value, instant int64) (ir.Value, bool) {
	if eventPresent {
		st.HasValue = true
		st.Value = eventValue
		st.LastInstant = instant
	}
	return st.Value, st.HasValue
}

// Scan resamples a signal's current value; it carries no state of its own
// because a signal always has a current value in the context.
func Scan(currentSignalValue ir.Value, hasValue bool) (ir.Value, bool) {
	return currentSignalValue, hasValue
}

// Throttle forwards at most one update per Δ and drops intervening
// updates.
func Throttle(st *State, deltaMs int64, updatePresent bool, updateValue ir.Value, instant int64) (ir.Value, bool) {
	if !updatePresent {
		return ir.Value{}, false
	}
	if st.HasFired && instant-st.LastInstant < deltaMs {
		return ir.Value{}, false
	}
	st.HasFired = true
	st.LastInstant = instant
	st.Value = updateValue
	st.HasValue = true
	return updateValue, true
}

// Timeout produces a default-valued tick if no update on the watched flow
// arrives for Dms. hasUpdate/updateInstant describe the most recent
// update to the watched flow (if any occurred this firing); nowInstant is
// the instant being evaluated.
func Timeout(st *State, durationMs int64, defaultVal ir.Value, hasUpdate bool, updateInstant, nowInstant int64) (ir.Value, bool) {
	if hasUpdate {
		st.LastInstant = updateInstant
		st.HasFired = true
		return ir.Value{}, false
	}
	if !st.HasFired {
		st.LastInstant = nowInstant
		st.HasFired = true
		return ir.Value{}, false
	}
	if nowInstant-st.LastInstant >= durationMs {
		st.LastInstant = nowInstant
		return defaultVal, true
	}
	return ir.Value{}, false
}

// OnChange emits an event iff the latest signal value differs from the
// previous one.
func OnChange(st *State, newValue ir.Value) (ir.Value, bool) {
	if st.HasValue && st.Value.Equal(newValue) {
		st.Value = newValue
		return ir.Value{}, false
	}
	st.HasValue = true
	st.Value = newValue
	return newValue, true
}

// Persist lifts an event to a signal holding the last emitted value.
// Before the first emit, the element type's ZeroValue is surfaced rather
// than an absent/optional marker.
func Persist(st *State, elemKind ir.Kind, eventPresent bool, eventValue ir.Value) ir.Value {
	if eventPresent {
		st.HasValue = true
		st.Value = eventValue
	}
	if !st.HasValue {
		return ir.ZeroValue(elemKind)
	}
	return st.Value
}

// Merge emits whenever either source emits. Simultaneous emits at
// identical instants fold left-biased.
func Merge(aPresent bool, aValue ir.Value, aInstant int64, bPresent bool, bValue ir.Value, bInstant int64) (ir.Value, bool) {
	switch {
	case aPresent && bPresent:
		if aInstant <= bInstant {
			return aValue, true
		}
		return bValue, true
	case aPresent:
		return aValue, true
	case bPresent:
		return bValue, true
	default:
		return ir.Value{}, false
	}
}

// Period produces a synthetic periodic tick carrying the firing instant.
func Period(instant int64) ir.Value {
	return ir.IntValue(instant)
}

// SampleOn produces a value of s each time e fires.
func SampleOn(signalValue ir.Value, hasSignalValue bool, eventFired bool) (ir.Value, bool) {
	if !eventFired || !hasSignalValue {
		return ir.Value{}, false
	}
	return signalValue, true
}

// ScanOn is like Scan but tick-driven by an event rather than wall time;
// it shares SampleOn's mechanics (the distinction is which upstream flow
// the planner wires as the driving tick) but is kept as a separate,
// named entry point so callers and generated code read with the same
// vocabulary as the flow-combinator contract.
func ScanOn(signalValue ir.Value, hasSignalValue bool, eventFired bool) (ir.Value, bool) {
	return SampleOn(signalValue, hasSignalValue, eventFired)
}

// Time returns the current instant as a flow value.
func Time(instant int64) ir.Value {
	return ir.IntValue(instant)
}
