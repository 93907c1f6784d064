package agent_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/agent"
	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/regset"
)

type fakeMem struct {
	data map[uint64]byte
}

func (m *fakeMem) ReadMem(owner *ctx.Context, addr uint64, buf []byte) error {
	for i := range buf {
		buf[i] = m.data[addr+uint64(i)]
	}
	return nil
}

func (m *fakeMem) WriteMem(owner *ctx.Context, addr uint64, buf []byte) error {
	if m.data == nil {
		m.data = map[uint64]byte{}
	}
	for i, b := range buf {
		m.data[addr+uint64(i)] = b
	}
	return nil
}

func TestConditionEvaluatorRegisterExpression(t *testing.T) {
	file := regset.BuildARM(regset.Features{})
	eval := &agent.ConditionEvaluator{Regs: file, Mem: &fakeMem{}}

	def, _ := file.ByName("r0")
	regs := make([]byte, file.Size())
	regs[def.Offset] = 1

	thread := &ctx.Context{Regs: regs}

	ok, err := eval.Eval("r0", thread)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !ok {
		t.Error("expected r0==1 to evaluate truthy")
	}
}

func TestConditionEvaluatorEmptyConditionAlwaysHolds(t *testing.T) {
	file := regset.BuildARM(regset.Features{})
	eval := &agent.ConditionEvaluator{Regs: file, Mem: &fakeMem{}}

	thread := &ctx.Context{Regs: make([]byte, file.Size())}

	ok, err := eval.Eval("", thread)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !ok {
		t.Error("expected an empty condition to hold")
	}
}
