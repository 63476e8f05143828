package ir

import "testing"

func TestMarshalCanonicalDeterministic(t *testing.T) {
	v := ObjectValue(map[string]Value{
		"b": FloatValue(90.0),
		"a": StringValue("café"),
	})

	first, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	second, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("canonical encoding not stable: %q vs %q", first, second)
	}

	want := `{"a":"café","b":90}`
	if string(first) != want {
		t.Fatalf("canonical encoding = %q, want %q", first, want)
	}
}

func TestMarshalCanonicalFloatRoundTrips(t *testing.T) {
	got, err := MarshalCanonical(FloatValue(10.0))
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	if string(got) != "10" {
		t.Fatalf("MarshalCanonical(10.0) = %q, want %q", got, "10")
	}
}
