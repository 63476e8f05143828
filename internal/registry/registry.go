// Package registry pairs a compiled service's component IDs with the
// hand-written Go step functions that implement them. Step behavior is
// ordinary Go code, not something a CUE fixture can carry, so the CLI's
// run/replay/test surfaces need somewhere to look it up by service ID;
// the same pairing internal/harness's test fixtures do inline, lifted out
// so the CLI commands can drive the bundled example specs end to end.
package registry

import "github.com/vectis-systems/fluxc/internal/ir"

// Registry maps service ID to its components' step and init functions.
type Registry struct {
	steps map[string]map[string]ir.StepFunc
	inits map[string]map[string]ir.InitFunc
}

// New returns a Registry pre-populated with the bundled example services.
func New() *Registry {
	r := &Registry{
		steps: make(map[string]map[string]ir.StepFunc),
		inits: make(map[string]map[string]ir.InitFunc),
	}
	r.Register("speed_limiter_svc", speedLimiterSteps(), nil)
	return r
}

// Register adds or replaces a service's step and init functions. Callers
// embedding this package for their own services call this before handing
// the Registry to the CLI plumbing.
func (r *Registry) Register(serviceID string, steps map[string]ir.StepFunc, inits map[string]ir.InitFunc) {
	r.steps[serviceID] = steps
	if inits != nil {
		r.inits[serviceID] = inits
	}
}

// StepFuncs returns the step functions registered for a service, or nil if
// none are registered. runtime.NewService tolerates a nil map, and a
// component with no entry simply never produces output.
func (r *Registry) StepFuncs(serviceID string) map[string]ir.StepFunc {
	return r.steps[serviceID]
}

// InitFuncs returns the init functions registered for a service, or nil.
func (r *Registry) InitFuncs(serviceID string) map[string]ir.InitFunc {
	return r.inits[serviceID]
}

// speedLimiterSteps implements the bundled speed_limiter_svc example: a
// single component clamping a commanded speed to a hard floor and
// reporting whether the governed speed is within that commanded limit.
func speedLimiterSteps() map[string]ir.StepFunc {
	const threshold = 10.0
	return map[string]ir.StepFunc{
		"speed_limiter": func(_ any, inputs ir.StepInputs) (any, ir.StepOutputs) {
			setSpeed := inputs["set_speed"].Float
			if setSpeed < threshold {
				setSpeed = threshold
			}
			speed := inputs["speed"].Float
			active := inputs["activation"].Bool
			inRegulation := !active || speed <= setSpeed
			return nil, ir.StepOutputs{
				Values: map[string]ir.Value{
					"v_set":         ir.FloatValue(setSpeed),
					"in_regulation": ir.BoolValue(inRegulation),
				},
				Changed: map[string]bool{"v_set": true, "in_regulation": true},
			}
		},
	}
}
