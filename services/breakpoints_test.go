package services_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

type noopEmitter struct {
	calls []string
}

func (e *noopEmitter) Emit(service, name string, args ...any) {
	e.calls = append(e.calls, service+"."+name)
}

func TestBreakpointsAddAndGetProperties(t *testing.T) {
	reg := breakpoint.NewRegistry()
	events := &noopEmitter{}
	b := &services.Breakpoints{Registry: reg, Replant: func() {}, Events: events}

	cmd, err := tcf.NewCommand("1", "Breakpoints", "add", map[string]any{"Location": "0x8000"})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	result, err := b.Handle("chan1", cmd)
	if err != nil {
		t.Fatalf("Handle add: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected one result (id), got %d", len(result))
	}
	id := result[0].(string)

	getCmd, err := tcf.NewCommand("2", "Breakpoints", "getProperties", id)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	propResult, err := b.Handle("chan1", getCmd)
	if err != nil {
		t.Fatalf("Handle getProperties: %v", err)
	}
	props := propResult[0].(map[string]any)
	if props["Location"] != "0x8000" {
		t.Errorf("expected Location=0x8000, got %v", props["Location"])
	}
}

func TestBreakpointsRemoveDropsChannelRef(t *testing.T) {
	reg := breakpoint.NewRegistry()
	b := &services.Breakpoints{Registry: reg, Replant: func() {}, Events: &noopEmitter{}}

	addCmd, _ := tcf.NewCommand("1", "Breakpoints", "add", map[string]any{"Location": "0x9000"})
	result, err := b.Handle("chan1", addCmd)
	if err != nil {
		t.Fatalf("Handle add: %v", err)
	}
	id := result[0].(string)

	removeCmd, _ := tcf.NewCommand("2", "Breakpoints", "remove", []string{id})
	if _, err := b.Handle("chan1", removeCmd); err != nil {
		t.Fatalf("Handle remove: %v", err)
	}

	if bp, ok := reg.GetProperties(id); ok && !bp.Deleted {
		t.Errorf("expected breakpoint %s to be deleted after its only ref was removed", id)
	}
}

func TestBreakpointsChannelClosedCancelsRefs(t *testing.T) {
	reg := breakpoint.NewRegistry()
	replantCount := 0
	b := &services.Breakpoints{Registry: reg, Replant: func() { replantCount++ }, Events: &noopEmitter{}}

	addCmd, _ := tcf.NewCommand("1", "Breakpoints", "add", map[string]any{"Location": "0xA000"})
	if _, err := b.Handle("chan1", addCmd); err != nil {
		t.Fatalf("Handle add: %v", err)
	}

	b.ChannelClosed("chan1")

	ids := reg.GetBreakpointIDs("chan1")
	if len(ids) != 0 {
		t.Errorf("expected no ids remaining for closed channel, got %v", ids)
	}
	if replantCount < 2 {
		t.Errorf("expected a replant on add and on channel close, got %d", replantCount)
	}
}
