package breakpoint_test

import (
	"errors"
	"testing"

	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/ctx"
)

type stubEval struct {
	result bool
	err    error
}

func (s stubEval) Eval(condition string, thread *ctx.Context) (bool, error) {
	return s.result, s.err
}

func newBI(refs ...*breakpoint.UserBP) *breakpoint.BreakInst {
	bi := &breakpoint.BreakInst{}
	bi.Refs = refs
	return bi
}

func TestShouldStopUnconditionalAlwaysStops(t *testing.T) {
	bp := &breakpoint.UserBP{Enabled: true}
	bi := newBI(bp)

	stop, err := bi.ShouldStop(&ctx.Context{}, nil)
	if err != nil {
		t.Fatalf("ShouldStop: %v", err)
	}
	if !stop {
		t.Error("expected an unconditional breakpoint to always stop")
	}
	if bp.HitCount != 0 {
		t.Errorf("expected HitCount reset to 0 once the hit intercepts, got %d", bp.HitCount)
	}
}

func TestShouldStopFalseConditionSuppresses(t *testing.T) {
	bp := &breakpoint.UserBP{Enabled: true, Condition: "r0 == 0"}
	bi := newBI(bp)

	stop, err := bi.ShouldStop(&ctx.Context{}, stubEval{result: false})
	if err != nil {
		t.Fatalf("ShouldStop: %v", err)
	}
	if stop {
		t.Error("expected a false condition to suppress the stop")
	}
	if bp.HitCount != 0 {
		t.Errorf("expected HitCount unchanged on a false condition, got %d", bp.HitCount)
	}
}

func TestShouldStopIgnoreCountSuppressesThenResets(t *testing.T) {
	bp := &breakpoint.UserBP{Enabled: true, IgnoreCount: 2}
	bi := newBI(bp)

	for i := 0; i < 2; i++ {
		stop, err := bi.ShouldStop(&ctx.Context{}, nil)
		if err != nil {
			t.Fatalf("ShouldStop: %v", err)
		}
		if stop {
			t.Errorf("expected hit %d to be ignored", i)
		}
	}
	if bp.IgnoreCount != 2 {
		t.Errorf("expected IgnoreCount to stay constant at 2, got %d", bp.IgnoreCount)
	}

	stop, err := bi.ShouldStop(&ctx.Context{}, nil)
	if err != nil {
		t.Fatalf("ShouldStop: %v", err)
	}
	if !stop {
		t.Error("expected the third hit to stop once IgnoreCount is exhausted")
	}
	if bp.HitCount != 0 {
		t.Errorf("expected HitCount to reset to 0 once the hit intercepts, got %d", bp.HitCount)
	}
	if bp.IgnoreCount != 2 {
		t.Errorf("expected IgnoreCount to remain unchanged after the intercept, got %d", bp.IgnoreCount)
	}

	// The reset HitCount must suppress the next IgnoreCount hits again.
	for i := 0; i < 2; i++ {
		stop, err := bi.ShouldStop(&ctx.Context{}, nil)
		if err != nil {
			t.Fatalf("ShouldStop: %v", err)
		}
		if stop {
			t.Errorf("expected post-reset hit %d to be ignored", i)
		}
	}
	stop, err = bi.ShouldStop(&ctx.Context{}, nil)
	if err != nil {
		t.Fatalf("ShouldStop: %v", err)
	}
	if !stop {
		t.Error("expected the next cycle's third hit to stop again")
	}
}

func TestShouldStopDisabledNeverStops(t *testing.T) {
	bp := &breakpoint.UserBP{Enabled: false}
	bi := newBI(bp)

	stop, err := bi.ShouldStop(&ctx.Context{}, nil)
	if err != nil {
		t.Fatalf("ShouldStop: %v", err)
	}
	if stop {
		t.Error("expected a disabled breakpoint to never stop")
	}
	if bp.HitCount != 0 {
		t.Errorf("expected HitCount unchanged for a disabled breakpoint, got %d", bp.HitCount)
	}
}

func TestShouldStopEvaluatorErrorSurfaces(t *testing.T) {
	bp := &breakpoint.UserBP{Enabled: true, Condition: "bogus"}
	bi := newBI(bp)

	stop, err := bi.ShouldStop(&ctx.Context{}, stubEval{err: errors.New("bad expression")})
	if err == nil {
		t.Fatal("expected the evaluator error to propagate")
	}
	if !stop {
		t.Error("expected an evaluation error to surface as a stop rather than silently skip")
	}
}

func TestShouldStopNoReferrersStops(t *testing.T) {
	bi := newBI()

	stop, err := bi.ShouldStop(&ctx.Context{}, nil)
	if err != nil {
		t.Fatalf("ShouldStop: %v", err)
	}
	if !stop {
		t.Error("expected an address with no referring breakpoint to stop (hardware/unexpected hit)")
	}
}
