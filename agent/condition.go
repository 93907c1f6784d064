package agent

import (
	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/expr"
	"github.com/lookbusy1344/tcf-agent/regset"
)

// threadRegisters adapts a stopped thread's cached register snapshot to
// expr.Registers.
type threadRegisters struct {
	file   *regset.File
	thread *ctx.Context
}

func (r threadRegisters) Value(name string) (uint64, bool) {
	def, ok := r.file.ByName(name)
	if !ok || r.thread.Regs == nil || def.Offset+def.Size > len(r.thread.Regs) {
		return 0, false
	}
	return readLE(r.thread.Regs, def.Offset, def.Size), true
}

// transparentMemWord adapts the agent's client-visible (breakpoint-bytes
// hidden) memory view to expr.Memory's single-word reads.
type transparentMemWord struct {
	mem    breakpoint.MemIO
	owner  *ctx.Context
	wordSz int
}

func (m transparentMemWord) ReadWord(addr uint64) (uint64, error) {
	buf := make([]byte, m.wordSz)
	if err := m.mem.ReadMem(m.owner, addr, buf); err != nil {
		return 0, err
	}
	return readLE(buf, 0, m.wordSz), nil
}

// ConditionEvaluator implements breakpoint.ConditionEvaluator (spec §4.F
// "Condition"), backed by the expr package, grounded on the teacher's
// debugger/expressions.go entry point (EvaluateExpression/Evaluate).
type ConditionEvaluator struct {
	Regs *regset.File
	Mem  breakpoint.MemIO
}

var _ breakpoint.ConditionEvaluator = (*ConditionEvaluator)(nil)

func (c *ConditionEvaluator) Eval(condition string, thread *ctx.Context) (bool, error) {
	transparent := transparentMemWord{mem: c.Mem, owner: thread.Owner(), wordSz: 4}
	e := expr.NewEvaluator(threadRegisters{file: c.Regs, thread: thread}, transparent)
	return e.EvalCondition(condition)
}

// EvalBreakHit implements the ctx.Hooks collaborator the wait-pid
// listener calls on every planted-breakpoint hit (spec §4.F conditions
// and ignore counts).
func (a *Agent) EvalBreakHit(c *ctx.Context, addr uint64) (bool, error) {
	bi := a.Table.Find(c.Owner(), addr)
	if bi == nil {
		return true, nil
	}
	return bi.ShouldStop(c, a.conditionEval)
}
