package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/vectis-systems/fluxc/internal/ir"
	"github.com/vectis-systems/fluxc/internal/runtime"
)

// outputSnapshot converts a Result's output trace into an ir.Value so it
// can go through the same canonical encoder the compiler uses for schema
// hashing, keeping one notion of "canonical bytes" for the whole module
// rather than a second ad hoc JSON encoder for test fixtures.
func outputSnapshot(name string, outputs []runtime.Output) ir.Value {
	entries := make([]ir.Value, len(outputs))
	for i, o := range outputs {
		entries[i] = ir.ObjectValue(map[string]ir.Value{
			"service": ir.StringValue(o.ServiceID),
			"flow":    ir.StringValue(o.FlowID),
			"instant": ir.IntValue(o.Instant),
			"value":   o.Value,
		})
	}
	return ir.ObjectValue(map[string]ir.Value{
		"scenario": ir.StringValue(name),
		"outputs":  ir.Value{Kind: ir.KindArray, Array: entries},
	})
}

// AssertGolden compares a Result's output trace against a committed golden
// file at testdata/golden/{scenarioName}.golden, regenerable with
// `go test ./internal/harness -update`. Scenario assertions check the
// emissions they name; the golden pins the whole trace byte for byte.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()
	snapshot := outputSnapshot(scenarioName, result.Outputs)
	data, err := ir.MarshalCanonical(snapshot)
	if err != nil {
		t.Fatalf("marshaling golden snapshot: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
}
