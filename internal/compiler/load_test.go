package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectis-systems/fluxc/internal/ir"
)

func TestCompileServiceSpeedLimiter(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		service: "speed_limiter_service": {
			flows: {
				speed_event: { kind: "event", elem_kind: "float" }
				speed: {
					kind: "signal"
					elem_kind: "float"
					derivation: { kind: "sample", inputs: ["speed_event"], period_ms: 10, elem_kind: "float" }
				}
				activation: { kind: "signal", elem_kind: "bool" }
				set_speed:  { kind: "signal", elem_kind: "float" }
			}
			components: {
				speed_limiter: {
					period_ms:  10
					delay_ms:   10
					timeout_ms: 500
					inputs: {
						activation: { flow: "activation", elem_kind: "bool" }
						set_speed:  { flow: "set_speed", elem_kind: "float" }
						speed:      { flow: "speed", elem_kind: "float" }
					}
					outputs: {
						v_set:         { flow: "v_set", elem_kind: "float" }
						in_regulation: { flow: "in_regulation", elem_kind: "bool" }
					}
				}
			}
		}
	`)
	require.NoError(t, v.Err())

	serviceVal := v.LookupPath(cue.ParsePath(`service."speed_limiter_service"`))
	spec, err := CompileService(serviceVal)
	require.NoError(t, err)

	assert.Equal(t, "speed_limiter_service", spec.ID)
	require.Len(t, spec.Components, 1)
	assert.Equal(t, "speed_limiter", spec.Components[0].ID)
	assert.EqualValues(t, 10, spec.Components[0].PeriodMs)
	assert.EqualValues(t, 500, spec.Components[0].TimeoutMs)
	require.Len(t, spec.Components[0].Inputs, 3)

	speed, ok := spec.LookupFlow("speed")
	require.True(t, ok)
	require.NotNil(t, speed.Derivation)
	assert.Equal(t, ir.CombSample, speed.Derivation.Kind)
	assert.Equal(t, []string{"speed_event"}, speed.Derivation.Inputs)
	assert.EqualValues(t, 10, speed.Derivation.PeriodMs)

	plan, err := Plan(*spec)
	require.NoError(t, err)
	assert.Equal(t, "speed_limiter_service", plan.ServiceID)
}

func TestCompileExprNestedSub(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		derivation: {
			kind: "throttle"
			delta_ms: 50
			elem_kind: "float"
			sub: {
				kind: "on_change"
				inputs: ["raw"]
				elem_kind: "float"
			}
		}
	`)
	require.NoError(t, v.Err())

	expr, err := compileExpr("flow", v.LookupPath(cue.ParsePath("derivation")))
	require.NoError(t, err)
	assert.Equal(t, ir.CombThrottle, expr.Kind)
	assert.EqualValues(t, 50, expr.DeltaMs)
	require.NotNil(t, expr.Sub)
	assert.Equal(t, ir.CombOnChange, expr.Sub.Kind)
	assert.Equal(t, []string{"raw"}, expr.Sub.Inputs)
}

func TestCompileServiceMissingComponentsIsAnError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		service: "empty_service": {
			flows: {}
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileService(v.LookupPath(cue.ParsePath(`service."empty_service"`)))
	require.Error(t, err)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
}
