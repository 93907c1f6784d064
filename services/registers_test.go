package services_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/regset"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

func TestRegistersGetContextDefinition(t *testing.T) {
	file := regset.BuildARM(regset.Features{})
	r := &services.Registers{Store: ctx.NewStore(nil), File: file}

	cmd, err := tcf.NewCommand("1", "Registers", "getContext", "C1.r0")
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result, err := r.Handle(cmd)
	if err != nil {
		t.Fatalf("Handle getContext: %v", err)
	}
	def := result[0].(map[string]any)
	if def["ID"] != "r0" {
		t.Errorf("expected ID=r0, got %v", def["ID"])
	}
	if def["Size"] != 4 {
		t.Errorf("expected Size=4, got %v", def["Size"])
	}
}

func TestRegistersGetUnknownRegisterErrors(t *testing.T) {
	file := regset.BuildARM(regset.Features{})
	r := &services.Registers{Store: ctx.NewStore(nil), File: file}

	cmd, _ := tcf.NewCommand("1", "Registers", "getContext", "C1.notareg")
	if _, err := r.Handle(cmd); err == nil {
		t.Error("expected error for unknown register name")
	}
}

func TestRegistersGetChildrenUnknownContextErrors(t *testing.T) {
	file := regset.BuildARM(regset.Features{})
	store := ctx.NewStore(nil)
	r := &services.Registers{Store: store, File: file}

	// getChildren requires the context to exist.
	cmd, _ := tcf.NewCommand("1", "Registers", "getChildren", "missing")
	if _, err := r.Handle(cmd); err == nil {
		t.Error("expected error for unknown context id")
	}
}
