package agent_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/agent"
	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/regset"
)

func TestAddressResolverLiteralHex(t *testing.T) {
	r := &agent.AddressResolver{Regs: regset.BuildARM(regset.Features{})}
	bp := &breakpoint.UserBP{Location: "0x1000"}

	addr, err := r.Resolve(bp, &ctx.Context{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr != 0x1000 {
		t.Errorf("expected 0x1000, got 0x%x", addr)
	}
}

func TestAddressResolverRegisterPlusOffset(t *testing.T) {
	file := regset.BuildARM(regset.Features{})
	r := &agent.AddressResolver{Regs: file}

	def, ok := file.ByName("r0")
	if !ok {
		t.Fatal("r0 not found")
	}
	regs := make([]byte, file.Size())
	regs[def.Offset] = 0x34
	regs[def.Offset+1] = 0x12

	c := &ctx.Context{Regs: regs}
	bp := &breakpoint.UserBP{Location: "r0+4"}

	addr, err := r.Resolve(bp, c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr != 0x1234+4 {
		t.Errorf("expected 0x1238, got 0x%x", addr)
	}
}

func TestAddressResolverRejectsFileLineLocation(t *testing.T) {
	r := &agent.AddressResolver{Regs: regset.BuildARM(regset.Features{})}
	bp := &breakpoint.UserBP{}

	if _, err := r.Resolve(bp, &ctx.Context{}); err == nil {
		t.Error("expected error for empty Location")
	}
}
