package ir

import "testing"

func TestServiceSpecValidateAggregatesComponentErrors(t *testing.T) {
	spec := ServiceSpec{
		ID: "speed_limiter_service",
		Components: []ComponentSpec{
			{ID: "", PeriodMs: 0, DelayMs: 0, TimeoutMs: 0},
		},
	}
	errs := spec.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation errors to propagate from component")
	}
}

func TestServiceSpecLookupHelpers(t *testing.T) {
	spec := ServiceSpec{
		ID:         "svc",
		Components: []ComponentSpec{{ID: "c1"}},
		Flows:      []FlowSpec{{ID: "speed", Kind: FlowSignal}},
	}

	if _, ok := spec.LookupComponent("c1"); !ok {
		t.Error("expected to find component c1")
	}
	if _, ok := spec.LookupComponent("missing"); ok {
		t.Error("expected missing component to not be found")
	}
	if _, ok := spec.LookupFlow("speed"); !ok {
		t.Error("expected to find flow speed")
	}
}

func TestTimerDescriptorResetOnFire(t *testing.T) {
	cases := []struct {
		kind TimerKind
		want bool
	}{
		{TimerPeriod, false},
		{TimerDelay, true},
		{TimerTimeout, true},
	}
	for _, c := range cases {
		td := TimerDescriptor{Kind: c.kind}
		if got := td.ResetOnFire(); got != c.want {
			t.Errorf("ResetOnFire() for %v = %v, want %v", c.kind, got, c.want)
		}
	}
}
