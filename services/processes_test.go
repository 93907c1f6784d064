package services_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

func TestProcessesGetChildrenEmptyStore(t *testing.T) {
	p := &services.Processes{Store: ctx.NewStore(nil)}

	cmd, err := tcf.NewCommand("1", "Processes", "getChildren")
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result, err := p.Handle(cmd)
	if err != nil {
		t.Fatalf("Handle getChildren: %v", err)
	}
	ids := result[0].([]string)
	if len(ids) != 0 {
		t.Errorf("expected no root processes, got %v", ids)
	}
}

func TestProcessesGetContextUnknownID(t *testing.T) {
	p := &services.Processes{Store: ctx.NewStore(nil)}

	cmd, _ := tcf.NewCommand("1", "Processes", "getContext", "missing")
	if _, err := p.Handle(cmd); err == nil {
		t.Error("expected error for unknown context id")
	}
}
