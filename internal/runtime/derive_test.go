package runtime

import (
	"testing"

	"github.com/vectis-systems/fluxc/internal/ir"
)

func TestEvalExprPersistDefaultsToZeroValueBeforeFirstEmit(t *testing.T) {
	e := &ir.Expr{Kind: ir.CombPersist, Inputs: []string{"ev"}, ElemKind: ir.KindFloat}
	st := newExprState(e)
	ctx := NewContext([]string{"ev"})

	v, present := evalExpr(e, st, ctx, 0)
	if !present {
		t.Fatal("expected persist to always be present")
	}
	if v.Float != 0 {
		t.Errorf("v = %v, want the float zero value before any emit", v)
	}

	ctx.Set("ev", ir.FloatValue(5))
	v, present = evalExpr(e, st, ctx, 10)
	if !present || v.Float != 5 {
		t.Errorf("v, present = %v, %v; want 5, true after an emit", v, present)
	}

	ctx.Reset()
	v, present = evalExpr(e, st, ctx, 20)
	if !present || v.Float != 5 {
		t.Errorf("v, present = %v, %v; want the last emitted value to persist across a Reset", v, present)
	}
}

func TestEvalExprOnChangeOnlyFiresOnDifference(t *testing.T) {
	e := &ir.Expr{Kind: ir.CombOnChange, Inputs: []string{"s"}, ElemKind: ir.KindInt}
	st := newExprState(e)
	ctx := NewContext([]string{"s"})

	if _, present := evalExpr(e, st, ctx, 0); present {
		t.Fatal("expected no emit before the signal ever has a value")
	}

	ctx.Set("s", ir.IntValue(1))
	v, present := evalExpr(e, st, ctx, 1)
	if !present || v.Int != 1 {
		t.Fatalf("expected the first value to always emit, got %v, %v", v, present)
	}

	// Same value again (still fresh, e.g. resampled on a later settle) must
	// not re-fire.
	if _, present := evalExpr(e, st, ctx, 2); present {
		t.Error("expected on_change to suppress a repeated identical value")
	}

	ctx.Set("s", ir.IntValue(2))
	if v, present := evalExpr(e, st, ctx, 3); !present || v.Int != 2 {
		t.Errorf("expected on_change to fire on a genuine change, got %v, %v", v, present)
	}
}

func TestEvalExprMergeIsLeftBiasedOnSimultaneousEmit(t *testing.T) {
	e := &ir.Expr{Kind: ir.CombMerge, Inputs: []string{"a", "b"}, ElemKind: ir.KindInt}
	ctx := NewContext([]string{"a", "b"})
	ctx.Set("a", ir.IntValue(1))
	ctx.Set("b", ir.IntValue(2))

	v, present := evalExpr(e, nil, ctx, 5)
	if !present || v.Int != 1 {
		t.Errorf("expected a left-biased merge to prefer a's value on a tie, got %v, %v", v, present)
	}
}

func TestEvalExprThrottleDropsWithinDelta(t *testing.T) {
	e := &ir.Expr{Kind: ir.CombThrottle, Inputs: []string{"u"}, DeltaMs: 100, ElemKind: ir.KindInt}
	st := newExprState(e)
	ctx := NewContext([]string{"u"})

	ctx.Set("u", ir.IntValue(1))
	if v, present := evalExpr(e, st, ctx, 0); !present || v.Int != 1 {
		t.Fatalf("expected the first update to pass through, got %v, %v", v, present)
	}

	ctx.Reset()
	ctx.Set("u", ir.IntValue(2))
	if _, present := evalExpr(e, st, ctx, 50); present {
		t.Error("expected an update within delta of the last firing to be dropped")
	}

	ctx.Reset()
	ctx.Set("u", ir.IntValue(3))
	if v, present := evalExpr(e, st, ctx, 150); !present || v.Int != 3 {
		t.Errorf("expected an update past delta to pass through, got %v, %v", v, present)
	}
}
