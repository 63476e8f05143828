package combinator

import (
	"testing"

	"github.com/vectis-systems/fluxc/internal/ir"
)

func TestSampleHoldsLastEventValue(t *testing.T) {
	var st State

	if _, ok := Sample(&st, false, ir.Value{}, 0); ok {
		t.Fatal("expected no value before the first event")
	}

	v, ok := Sample(&st, true, ir.FloatValue(80), 10)
	if !ok || v.Float != 80 {
		t.Fatalf("Sample() = %v, %v; want 80, true", v, ok)
	}

	// Event silence: the sampled signal keeps holding the last value.
	v, ok = Sample(&st, false, ir.Value{}, 20)
	if !ok || v.Float != 80 {
		t.Errorf("Sample() under silence = %v, %v; want the held 80", v, ok)
	}

	v, _ = Sample(&st, true, ir.FloatValue(81), 30)
	if v.Float != 81 {
		t.Errorf("Sample() = %v, want the newer 81", v)
	}
}

func TestThrottleForwardsAtMostOnePerDelta(t *testing.T) {
	var st State

	if v, ok := Throttle(&st, 100, true, ir.IntValue(1), 0); !ok || v.Int != 1 {
		t.Fatalf("Throttle() first update = %v, %v; want 1, true", v, ok)
	}
	if _, ok := Throttle(&st, 100, true, ir.IntValue(2), 50); ok {
		t.Error("expected an update within delta to be dropped")
	}
	if v, ok := Throttle(&st, 100, true, ir.IntValue(3), 100); !ok || v.Int != 3 {
		t.Errorf("Throttle() at exactly delta = %v, %v; want 3, true", v, ok)
	}
	if _, ok := Throttle(&st, 100, false, ir.Value{}, 300); ok {
		t.Error("expected no emit when no update is present")
	}
}

func TestTimeoutEmitsDefaultAfterSilence(t *testing.T) {
	var st State
	def := ir.FloatValue(0)

	// First observation primes the silence clock without emitting.
	if _, ok := Timeout(&st, 100, def, false, 0, 0); ok {
		t.Fatal("expected no emit on the priming observation")
	}
	if _, ok := Timeout(&st, 100, def, false, 0, 99); ok {
		t.Error("expected no emit before the duration elapses")
	}
	if v, ok := Timeout(&st, 100, def, false, 0, 100); !ok || !v.Equal(def) {
		t.Errorf("Timeout() at the deadline = %v, %v; want the default tick", v, ok)
	}

	// An update resets the silence clock and never emits the default.
	if _, ok := Timeout(&st, 100, def, true, 150, 150); ok {
		t.Error("expected no default tick when an update arrived")
	}
	if _, ok := Timeout(&st, 100, def, false, 0, 249); ok {
		t.Error("expected the update at 150 to push the deadline to 250")
	}
	if _, ok := Timeout(&st, 100, def, false, 0, 250); !ok {
		t.Error("expected a default tick once silence reaches the duration again")
	}
}

func TestOnChangeSuppressesRepeats(t *testing.T) {
	var st State

	if v, ok := OnChange(&st, ir.IntValue(1)); !ok || v.Int != 1 {
		t.Fatalf("OnChange() first value = %v, %v; want 1, true", v, ok)
	}
	if _, ok := OnChange(&st, ir.IntValue(1)); ok {
		t.Error("expected a repeated identical value to be suppressed")
	}
	if v, ok := OnChange(&st, ir.IntValue(2)); !ok || v.Int != 2 {
		t.Errorf("OnChange() changed value = %v, %v; want 2, true", v, ok)
	}
}

func TestPersistSurfacesZeroValueBeforeFirstEmit(t *testing.T) {
	var st State

	v := Persist(&st, ir.KindFloat, false, ir.Value{})
	if v.Kind != ir.KindFloat || v.Float != 0 {
		t.Fatalf("Persist() before any emit = %v, want the float zero value", v)
	}

	v = Persist(&st, ir.KindFloat, true, ir.FloatValue(5))
	if v.Float != 5 {
		t.Fatalf("Persist() on emit = %v, want 5", v)
	}

	v = Persist(&st, ir.KindFloat, false, ir.Value{})
	if v.Float != 5 {
		t.Errorf("Persist() after emit = %v, want the held 5", v)
	}
}

func TestMergeIsLeftBiasedAtIdenticalInstants(t *testing.T) {
	v, ok := Merge(true, ir.IntValue(1), 10, true, ir.IntValue(2), 10)
	if !ok || v.Int != 1 {
		t.Fatalf("Merge() on a tie = %v, %v; want the left value 1", v, ok)
	}

	// When instants differ, the earlier emit wins regardless of side.
	v, _ = Merge(true, ir.IntValue(1), 20, true, ir.IntValue(2), 10)
	if v.Int != 2 {
		t.Errorf("Merge() with b earlier = %v, want 2", v)
	}

	if v, ok := Merge(false, ir.Value{}, 0, true, ir.IntValue(2), 10); !ok || v.Int != 2 {
		t.Errorf("Merge() single side = %v, %v; want 2, true", v, ok)
	}
	if _, ok := Merge(false, ir.Value{}, 0, false, ir.Value{}, 0); ok {
		t.Error("expected no emit when neither side emits")
	}
}

func TestSampleOnGatesOnTheDrivingEvent(t *testing.T) {
	if _, ok := SampleOn(ir.FloatValue(50), true, false); ok {
		t.Error("expected no emit when the driving event did not fire")
	}
	if _, ok := SampleOn(ir.Value{}, false, true); ok {
		t.Error("expected no emit when the signal has never held a value")
	}
	if v, ok := SampleOn(ir.FloatValue(50), true, true); !ok || v.Float != 50 {
		t.Errorf("SampleOn() = %v, %v; want 50, true", v, ok)
	}
}

func TestScanPassesThroughCurrentSignalValue(t *testing.T) {
	if _, ok := Scan(ir.Value{}, false); ok {
		t.Error("expected no emit before the signal has a value")
	}
	if v, ok := Scan(ir.FloatValue(7), true); !ok || v.Float != 7 {
		t.Errorf("Scan() = %v, %v; want 7, true", v, ok)
	}
}

func TestPeriodAndTimeCarryTheInstant(t *testing.T) {
	if v := Period(42); v.Int != 42 {
		t.Errorf("Period(42) = %v, want the firing instant", v)
	}
	if v := Time(42); v.Int != 42 {
		t.Errorf("Time(42) = %v, want the current instant", v)
	}
}
