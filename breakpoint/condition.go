package breakpoint

import "github.com/lookbusy1344/tcf-agent/ctx"

// ConditionEvaluator evaluates a breakpoint's Condition expression
// against a stopped thread's registers and memory (spec §4.F
// "Condition"); the agent package supplies the real implementation
// backed by the expr package, so this package never imports regset or
// expr, mirroring the Resolver/StatusEmitter collaborator-interface
// idiom already used here.
type ConditionEvaluator interface {
	Eval(condition string, thread *ctx.Context) (bool, error)
}

// ShouldStop decides whether a genuine hit on bi should surface to
// clients as a stop, applying every referring breakpoint's Condition
// and IgnoreCount. HitCount only advances for a referrer whose
// Condition holds (or has none); IgnoreCount is never mutated, so a
// client reading it back afterward sees exactly what it set. Once
// HitCount exceeds IgnoreCount the hit intercepts and HitCount resets
// to 0, ready to suppress the next IgnoreCount hits the same way (spec
// §4.F "then reset"). The hit surfaces as a real stop if any referrer
// says so, matching the "several breakpoints share one address" case
// in spec §4.E.
func (bi *BreakInst) ShouldStop(thread *ctx.Context, eval ConditionEvaluator) (bool, error) {
	if len(bi.Refs) == 0 {
		return true, nil
	}

	stop := false
	var firstErr error
	for _, bp := range bi.Refs {
		if !bp.Enabled {
			continue
		}
		if bp.Condition != "" && eval != nil {
			ok, err := eval.Eval(bp.Condition, thread)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				stop = true // surface rather than silently skip on a bad expression
				continue
			}
			if !ok {
				continue
			}
		}
		bp.HitCount++
		if bp.HitCount <= bp.IgnoreCount {
			continue
		}
		bp.HitCount = 0
		stop = true
	}
	return stop, firstErr
}
