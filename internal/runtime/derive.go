package runtime

import (
	"github.com/vectis-systems/fluxc/internal/combinator"
	"github.com/vectis-systems/fluxc/internal/ir"
)

// exprState mirrors the shape of an ir.Expr tree, carrying one
// combinator.State per node that needs persistent memory between firings
// (sample, throttle, timeout, on_change, persist). Stateless combinators
// (scan, merge, period, sample_on, scan_on, time) leave their node's self
// field unused; a single representation is simpler than special-casing
// the stateless kinds.
type exprState struct {
	self combinator.State
	sub  *exprState
}

// newExprState allocates an exprState tree matching e's shape (following
// e.Sub as far as it nests).
func newExprState(e *ir.Expr) *exprState {
	if e == nil {
		return nil
	}
	return &exprState{sub: newExprState(e.Sub)}
}

// evalExpr evaluates one combinator expression node against ctx at
// instant, returning the produced value and whether it fired/applies this
// firing. Binary combinators (merge, sample_on, scan_on) always read both
// operands as named flows via e.Inputs; Sub is only ever consulted for
// unary kinds.
func evalExpr(e *ir.Expr, st *exprState, ctx *Context, instant int64) (ir.Value, bool) {
	switch e.Kind {
	case ir.CombSample:
		v, isNew, _ := upstream(e, st, ctx, instant)
		return combinator.Sample(&st.self, isNew, v, instant)

	case ir.CombScan:
		v, _, hasEver := upstream(e, st, ctx, instant)
		return combinator.Scan(v, hasEver)

	case ir.CombThrottle:
		v, isNew, _ := upstream(e, st, ctx, instant)
		return combinator.Throttle(&st.self, e.DeltaMs, isNew, v, instant)

	case ir.CombTimeout:
		_, isNew, _ := upstream(e, st, ctx, instant)
		return combinator.Timeout(&st.self, e.TimeoutMs, ir.ZeroValue(e.ElemKind), isNew, instant, instant)

	case ir.CombOnChange:
		v, _, hasEver := upstream(e, st, ctx, instant)
		if !hasEver {
			return ir.Value{}, false
		}
		return combinator.OnChange(&st.self, v)

	case ir.CombPersist:
		v, isNew, _ := upstream(e, st, ctx, instant)
		return combinator.Persist(&st.self, e.ElemKind, isNew, v), true

	case ir.CombMerge:
		return evalMerge(e, ctx, instant)

	case ir.CombSampleOn:
		sig, hasSig, evFired := binaryUpstream(e, ctx)
		return combinator.SampleOn(sig, hasSig, evFired)

	case ir.CombScanOn:
		sig, hasSig, evFired := binaryUpstream(e, ctx)
		return combinator.ScanOn(sig, hasSig, evFired)

	case ir.CombPeriod:
		return combinator.Period(instant), true

	case ir.CombTime:
		return combinator.Time(instant), true

	default:
		return ir.Value{}, false
	}
}

// upstream resolves a unary combinator's operand: a nested sub-expression
// if present, otherwise the first raw input read from ctx. It returns the
// value, whether it is fresh this firing (isNew), and whether it has ever
// held a value at all (hasEver): sample/throttle/timeout/persist gate on
// isNew (they are event-driven), while scan/on_change resample whatever
// the upstream currently holds (hasEver).
func upstream(e *ir.Expr, st *exprState, ctx *Context, instant int64) (value ir.Value, isNew bool, hasEver bool) {
	if e.Sub != nil {
		v, present := evalExpr(e.Sub, st.sub, ctx, instant)
		return v, present, present
	}
	if len(e.Inputs) == 0 {
		return ir.Value{}, false, false
	}
	v, hasEver := ctx.Get(e.Inputs[0])
	return v, ctx.IsNew(e.Inputs[0]), hasEver
}

// binaryUpstream resolves sample_on/scan_on's two named operands: the
// sampled signal (Inputs[0]) and the driving event (Inputs[1]).
func binaryUpstream(e *ir.Expr, ctx *Context) (signalValue ir.Value, hasSignal bool, eventFired bool) {
	if len(e.Inputs) < 2 {
		return ir.Value{}, false, false
	}
	signalValue, hasSignal = ctx.Get(e.Inputs[0])
	eventFired = ctx.IsNew(e.Inputs[1])
	return signalValue, hasSignal, eventFired
}

// evalMerge resolves merge's two named operands directly, since
// combinator.Merge needs each side's own presence and instant for its
// left-biased tie-break.
func evalMerge(e *ir.Expr, ctx *Context, instant int64) (ir.Value, bool) {
	if len(e.Inputs) < 2 {
		return ir.Value{}, false
	}
	aVal, _ := ctx.Get(e.Inputs[0])
	aNew := ctx.IsNew(e.Inputs[0])
	bVal, _ := ctx.Get(e.Inputs[1])
	bNew := ctx.IsNew(e.Inputs[1])

	var aInstant, bInstant int64
	if aNew {
		aInstant = instant
	}
	if bNew {
		bInstant = instant
	}
	return combinator.Merge(aNew, aVal, aInstant, bNew, bVal, bInstant)
}
