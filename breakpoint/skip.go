package breakpoint

import "github.com/lookbusy1344/tcf-agent/ctx"

// extKey is the ctx.Context.Ext map key the sequencer uses to stash
// in-flight skip state on a thread.
const extKey = "breakpoint.skip"

type skipState struct {
	bi         *BreakInst
	continuing bool
}

// Stepper issues the single underlying single-step ptrace request; the
// agent package supplies the real implementation over package target.
type Stepper interface {
	SingleStep(thread *ctx.Context) error
}

// SkipSequencer implements the skip-breakpoint sequencer (spec §4.H):
// on resume, a thread stopped on its own planted breakpoint is
// unplanted, single-stepped, and replanted before any real continuation
// proceeds, grounded on the teacher's debugger.SetStepOver/ShouldBreak
// pairing (debugger/debugger.go) but generalized to the asynchronous,
// ptrace-driven resume path.
type SkipSequencer struct {
	Table   *Table
	Stepper Stepper
}

// PC reads the thread's current PC from its cached register snapshot.
// Supplied by the caller to avoid importing regset here.
type PCReader func(thread *ctx.Context) uint64

// Begin inspects thread for a planted, non-errored break instruction at
// its current PC. If found, it unplants the instruction, issues a
// single-step, and records that `continuing` resumption is still owed
// once the step completes; it returns true to tell the caller a skip
// sequence is now in flight and no further resume action should be
// taken this round.
func (s *SkipSequencer) Begin(thread *ctx.Context, pc uint64, continuing bool) (started bool, err error) {
	bi := s.Table.Find(thread.Owner(), pc)
	if bi == nil || !bi.Planted || bi.Err != nil {
		return false, nil
	}

	bi.Skip = true
	if uerr := s.Table.unplant(bi); uerr != nil {
		bi.Err = uerr
		bi.Skip = false
		return false, uerr
	}

	thread.Ext[extKey] = &skipState{bi: bi, continuing: continuing}

	if serr := s.Stepper.SingleStep(thread); serr != nil {
		bi.Err = serr
		return true, serr
	}
	return true, nil
}

// Consume checks whether thread has a skip sequence awaiting completion
// at its latest stop. If so, it unconditionally replants the break
// instruction (per spec §4.H "the break-instruction replant is
// unconditional") and reports whether the original caller still owes a
// continuation, regardless of whether the step landed cleanly, at
// another breakpoint, or on a signal — that disposition is the caller's
// to make.
func (s *SkipSequencer) Consume(thread *ctx.Context) (continuing bool, found bool, err error) {
	v, ok := thread.Ext[extKey]
	if !ok {
		return false, false, nil
	}
	st := v.(*skipState)
	delete(thread.Ext, extKey)

	st.bi.Skip = false
	if perr := s.Table.plant(st.bi); perr != nil {
		st.bi.Err = perr
		return st.continuing, true, perr
	}
	return st.continuing, true, nil
}
