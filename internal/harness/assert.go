package harness

import (
	"fmt"

	"github.com/vectis-systems/fluxc/internal/runtime"
)

// EvaluateAssertions checks every assertion against the collected output
// trace, returning one message per failure (empty when everything held).
func EvaluateAssertions(outputs []runtime.Output, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluateOne(outputs, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluateOne(outputs []runtime.Output, a Assertion) error {
	switch a.Type {
	case AssertOutputAt:
		return assertOutputAt(outputs, a)
	case AssertOutputValue:
		return assertOutputValue(outputs, a)
	case AssertOutputCount:
		return assertOutputCount(outputs, a)
	case AssertNoOutput:
		return assertNoOutput(outputs, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertOutputAt(outputs []runtime.Output, a Assertion) error {
	want, err := convertScenarioValue(a.Value)
	if err != nil {
		return fmt.Errorf("output_at %s@%d: %w", a.Flow, a.At, err)
	}
	for _, o := range outputs {
		if o.FlowID == a.Flow && o.Instant == a.At {
			if !o.Value.Equal(want) {
				return fmt.Errorf("output_at %s@%d: got value %s, want %s", a.Flow, a.At, o.Value, want)
			}
			return nil
		}
	}
	return fmt.Errorf("output_at %s@%d: no output found", a.Flow, a.At)
}

func assertOutputValue(outputs []runtime.Output, a Assertion) error {
	want, err := convertScenarioValue(a.Value)
	if err != nil {
		return fmt.Errorf("output_value %s: %w", a.Flow, err)
	}
	for _, o := range outputs {
		if o.FlowID == a.Flow && o.Value.Equal(want) {
			return nil
		}
	}
	return fmt.Errorf("output_value %s: no output with value %s found", a.Flow, want)
}

func assertOutputCount(outputs []runtime.Output, a Assertion) error {
	n := 0
	for _, o := range outputs {
		if o.FlowID == a.Flow {
			n++
		}
	}
	if n != a.Count {
		return fmt.Errorf("output_count %s: got %d, want %d", a.Flow, n, a.Count)
	}
	return nil
}

func assertNoOutput(outputs []runtime.Output, a Assertion) error {
	for _, o := range outputs {
		if a.Flow == "" || o.FlowID == a.Flow {
			return fmt.Errorf("no_output %s: unexpected output at %d with value %s", a.Flow, o.Instant, o.Value)
		}
	}
	return nil
}
