package ir

import "testing"

func TestSchemaHashStableAcrossEquivalentSchemas(t *testing.T) {
	schema := &RuntimeSchema{
		Version: RuntimeVersion,
		Services: []ServicePlan{
			{
				ServiceID:     "speed_limiter",
				ConsumedFlows: []string{"set_speed", "speed"},
				Subscriptions: []string{"set_speed", "speed"},
				Timers: []TimerDescriptor{
					{ID: "speed_limiter.delay", ServiceID: "speed_limiter", Kind: TimerDelay, DurationMs: 10},
				},
				ComponentOrder: []string{"speed_limiter"},
			},
		},
		InputVariants:  []string{"set_speed", "speed"},
		OutputVariants: []string{"v_set", "in_regulation"},
	}

	h1, err := SchemaHash(schema)
	if err != nil {
		t.Fatalf("SchemaHash: %v", err)
	}
	h2, err := SchemaHash(schema)
	if err != nil {
		t.Fatalf("SchemaHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("SchemaHash not stable: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("SchemaHash length = %d, want 64 (hex sha256)", len(h1))
	}
}

func TestSchemaHashChangesWithContent(t *testing.T) {
	a := &RuntimeSchema{Version: "v1", InputVariants: []string{"x"}}
	b := &RuntimeSchema{Version: "v1", InputVariants: []string{"y"}}

	ha, _ := SchemaHash(a)
	hb, _ := SchemaHash(b)
	if ha == hb {
		t.Fatalf("expected different hashes for different content")
	}
}
