// Package harness drives a compiled service against a scripted sequence of
// external inputs and virtual-time timer fires, collecting every output the
// runtime produces for assertion or golden comparison.
//
// Unlike a harness that manufactures its expected trace directly (which
// makes a scenario pass by construction, not by exercising real behavior),
// Driver feeds every input through an actual compiler.Plan and
// runtime.Service: timers armed by the service are captured, advanced in
// virtual time, and fired back into it, so scenarios validate the context
// state machine and runtime composer for real.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted exercise of one compiled service.
type Scenario struct {
	// Name uniquely identifies this scenario (used as the golden file key).
	Name string `yaml:"name"`
	// Description explains what behavior this scenario validates.
	Description string `yaml:"description"`

	// SpecDir is the directory of resolved-service-model CUE fixtures to
	// load (compiler.LoadServiceSpecs), relative to the scenario file.
	SpecDir string `yaml:"spec_dir"`
	// ServiceID selects which loaded service this scenario drives.
	ServiceID string `yaml:"service_id"`

	// HorizonMs is the final virtual instant simulated: after the last
	// scripted input, the driver keeps firing any timer due at or before
	// this instant (e.g. the settling delay or timeout following the last
	// input) before collecting results.
	HorizonMs int64 `yaml:"horizon_ms"`

	// Inputs is the scripted sequence of external flow updates.
	Inputs []InputStep `yaml:"inputs"`

	// Assertions validate the collected output trace.
	Assertions []Assertion `yaml:"assertions"`
}

// InputStep is one scripted external input.
type InputStep struct {
	Flow  string      `yaml:"flow"`
	At    int64       `yaml:"at"`
	Value interface{} `yaml:"value"`
}

// Assertion validates the output trace a scenario run collected.
type Assertion struct {
	// Type is one of AssertOutputAt, AssertOutputValue, AssertOutputCount,
	// AssertNoOutput.
	Type string `yaml:"type"`

	Flow  string      `yaml:"flow,omitempty"`
	At    int64       `yaml:"at,omitempty"`
	Value interface{} `yaml:"value,omitempty"`
	Count int         `yaml:"count,omitempty"`
}

const (
	// AssertOutputAt checks a flow emitted Value at exactly instant At.
	AssertOutputAt = "output_at"
	// AssertOutputValue checks a flow emitted Value at any instant.
	AssertOutputValue = "output_value"
	// AssertOutputCount checks a flow emitted exactly Count times.
	AssertOutputCount = "output_count"
	// AssertNoOutput checks a flow never emitted during the run.
	AssertNoOutput = "no_output"
)

// LoadScenario reads and strictly decodes a scenario YAML file, rejecting
// unknown fields so a typo in a fixture fails loudly instead of silently
// dropping an assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	for i, in := range s.Inputs {
		if in.Flow == "" {
			return fmt.Errorf("inputs[%d]: flow is required", i)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertOutputAt, AssertOutputValue, AssertOutputCount, AssertNoOutput:
		case "":
			return fmt.Errorf("assertions[%d]: type is required", i)
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if a.Type != AssertNoOutput && a.Flow == "" {
			return fmt.Errorf("assertions[%d]: flow is required for %s", i, a.Type)
		}
	}
	return nil
}
