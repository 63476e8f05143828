package ir

import "testing"

func validSpeedLimiter() ComponentSpec {
	return ComponentSpec{
		ID: "speed_limiter",
		Inputs: []PortSpec{
			{Name: "activation", Flow: "activation", ElemKind: KindBool},
			{Name: "set_speed", Flow: "set_speed", ElemKind: KindFloat},
			{Name: "speed", Flow: "speed", ElemKind: KindFloat},
		},
		Outputs: []PortSpec{
			{Name: "v_set", Flow: "v_set", ElemKind: KindFloat},
			{Name: "in_regulation", Flow: "in_regulation", ElemKind: KindBool},
		},
		PeriodMs:  10,
		DelayMs:   10,
		TimeoutMs: 500,
	}
}

func TestComponentSpecValidateOK(t *testing.T) {
	if errs := validSpeedLimiter().Validate(); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
}

func TestComponentSpecValidateCatchesPeriodDelayOrdering(t *testing.T) {
	c := validSpeedLimiter()
	c.DelayMs = c.PeriodMs + 1
	errs := c.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation error for delay > period")
	}
}

func TestComponentSpecValidateCatchesTimeoutNotMuchGreaterThanPeriod(t *testing.T) {
	c := validSpeedLimiter()
	c.TimeoutMs = c.PeriodMs
	errs := c.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation error for timeout <= period")
	}
}

func TestComponentSpecValidateCatchesDuplicatePortNames(t *testing.T) {
	c := validSpeedLimiter()
	c.Inputs = append(c.Inputs, PortSpec{Name: "speed", Flow: "speed2", ElemKind: KindFloat})
	errs := c.Validate()
	found := false
	for _, e := range errs {
		if e.Field == "speed_limiter.inputs[3].name" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected duplicate input port name error, got %v", errs)
	}
}

func TestComponentSpecValidateRequiresOutputs(t *testing.T) {
	c := validSpeedLimiter()
	c.Outputs = nil
	errs := c.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation error for zero outputs")
	}
}
