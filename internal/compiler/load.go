package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/vectis-systems/fluxc/internal/ir"
)

// CompileError represents a resolved-service-model fixture compilation
// error, carrying the CUE source position when one is available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// LoadResult is the output of loading a directory of resolved-service-model
// CUE fixtures.
type LoadResult struct {
	Services  []ir.ServiceSpec
	CUEValue  cue.Value
	FileCount int
}

// LoadServiceSpecs loads every "service" struct from the CUE package
// rooted at dir and compiles each into an ir.ServiceSpec.
func LoadServiceSpecs(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if !info.IsDir() {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir, Package: "_"}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&CompileError{Field: "dir", Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(inst.BuildFiles)}

	var errs []error
	servicesVal := value.LookupPath(cue.ParsePath("service"))
	if !servicesVal.Exists() {
		return result, nil
	}
	iter, iterErr := servicesVal.Fields()
	if iterErr != nil {
		return result, []error{formatCUEError(iterErr)}
	}
	for iter.Next() {
		spec, err := CompileService(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Services = append(result.Services, *spec)
	}
	return result, errs
}

// CompileService parses a CUE value into an ir.ServiceSpec. v is expected
// to be the service struct itself, e.g. the value at
// service."speed_limiter_service" in:
//
//	service: "speed_limiter_service": {
//	    flows: { ... }
//	    components: { ... }
//	}
func CompileService(v cue.Value) (*ir.ServiceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ServiceSpec{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.ID = unquoteLabel(labels[len(labels)-1].String())
	}

	flowsVal := v.LookupPath(cue.ParsePath("flows"))
	if flowsVal.Exists() {
		iter, err := flowsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			flow, err := compileFlow(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Flows = append(spec.Flows, *flow)
		}
	}

	componentsVal := v.LookupPath(cue.ParsePath("components"))
	if !componentsVal.Exists() {
		return nil, &CompileError{Field: "components", Message: "service requires at least one component", Pos: v.Pos()}
	}
	iter, err := componentsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		comp, err := compileComponent(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Components = append(spec.Components, *comp)
	}

	return spec, nil
}

func compileFlow(id string, v cue.Value) (*ir.FlowSpec, error) {
	f := &ir.FlowSpec{ID: id}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	kindStr, err := kindVal.String()
	if err != nil {
		return nil, &CompileError{Field: id + ".kind", Message: "flow requires a kind (\"signal\" or \"event\")", Pos: v.Pos()}
	}
	kind, ok := ir.ParseFlowKind(kindStr)
	if !ok {
		return nil, &CompileError{Field: id + ".kind", Message: fmt.Sprintf("invalid flow kind %q", kindStr), Pos: kindVal.Pos()}
	}
	f.Kind = kind

	elemVal := v.LookupPath(cue.ParsePath("elem_kind"))
	elemStr, err := elemVal.String()
	if err != nil {
		return nil, &CompileError{Field: id + ".elem_kind", Message: "flow requires an elem_kind", Pos: v.Pos()}
	}
	elemKind, ok := ir.ParseKind(elemStr)
	if !ok {
		return nil, &CompileError{Field: id + ".elem_kind", Message: fmt.Sprintf("invalid elem_kind %q", elemStr), Pos: elemVal.Pos()}
	}
	f.ElemKind = elemKind

	derivationVal := v.LookupPath(cue.ParsePath("derivation"))
	if derivationVal.Exists() {
		expr, err := compileExpr(id, derivationVal)
		if err != nil {
			return nil, err
		}
		f.Derivation = expr
	}

	return f, nil
}

// compileExpr recursively parses a combinator expression node, following
// the "sub" field into nested derivations the same way ir.Expr.Sub nests
// (e.g. throttle(on_change(s), D)).
func compileExpr(field string, v cue.Value) (*ir.Expr, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	kindStr, err := kindVal.String()
	if err != nil {
		return nil, &CompileError{Field: field + ".kind", Message: "derivation requires a combinator kind", Pos: v.Pos()}
	}
	kind, ok := ir.ParseCombinatorKind(kindStr)
	if !ok {
		return nil, &CompileError{Field: field + ".kind", Message: fmt.Sprintf("unknown combinator %q", kindStr), Pos: kindVal.Pos()}
	}

	e := &ir.Expr{Kind: kind}

	if inputsVal := v.LookupPath(cue.ParsePath("inputs")); inputsVal.Exists() {
		listIter, err := inputsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for listIter.Next() {
			s, err := listIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			e.Inputs = append(e.Inputs, s)
		}
	}

	if subVal := v.LookupPath(cue.ParsePath("sub")); subVal.Exists() {
		sub, err := compileExpr(field+".sub", subVal)
		if err != nil {
			return nil, err
		}
		e.Sub = sub
	}

	e.PeriodMs = optionalInt(v, "period_ms")
	e.DeltaMs = optionalInt(v, "delta_ms")
	e.TimeoutMs = optionalInt(v, "timeout_ms")

	if elemVal := v.LookupPath(cue.ParsePath("elem_kind")); elemVal.Exists() {
		elemStr, err := elemVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		elemKind, ok := ir.ParseKind(elemStr)
		if !ok {
			return nil, &CompileError{Field: field + ".elem_kind", Message: fmt.Sprintf("invalid elem_kind %q", elemStr), Pos: elemVal.Pos()}
		}
		e.ElemKind = elemKind
	}

	return e, nil
}

func compileComponent(id string, v cue.Value) (*ir.ComponentSpec, error) {
	c := &ir.ComponentSpec{ID: id}

	c.PeriodMs = optionalInt(v, "period_ms")
	c.DelayMs = optionalInt(v, "delay_ms")
	c.TimeoutMs = optionalInt(v, "timeout_ms")

	inputs, err := compilePorts(id+".inputs", v.LookupPath(cue.ParsePath("inputs")))
	if err != nil {
		return nil, err
	}
	c.Inputs = inputs

	outputs, err := compilePorts(id+".outputs", v.LookupPath(cue.ParsePath("outputs")))
	if err != nil {
		return nil, err
	}
	c.Outputs = outputs

	return c, nil
}

func compilePorts(field string, v cue.Value) ([]ir.PortSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ports []ir.PortSpec
	for iter.Next() {
		name := iter.Label()
		portVal := iter.Value()

		flowVal := portVal.LookupPath(cue.ParsePath("flow"))
		flow, err := flowVal.String()
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("%s.%s.flow", field, name), Message: "port requires a flow reference", Pos: portVal.Pos()}
		}

		elemVal := portVal.LookupPath(cue.ParsePath("elem_kind"))
		elemStr, err := elemVal.String()
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("%s.%s.elem_kind", field, name), Message: "port requires an elem_kind", Pos: portVal.Pos()}
		}
		elemKind, ok := ir.ParseKind(elemStr)
		if !ok {
			return nil, &CompileError{Field: fmt.Sprintf("%s.%s.elem_kind", field, name), Message: fmt.Sprintf("invalid elem_kind %q", elemStr), Pos: elemVal.Pos()}
		}

		ports = append(ports, ir.PortSpec{Name: name, Flow: flow, ElemKind: elemKind})
	}
	return ports, nil
}

func optionalInt(v cue.Value, field string) int64 {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0
	}
	n, err := fv.Int64()
	if err != nil {
		return 0
	}
	return n
}

func unquoteLabel(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
