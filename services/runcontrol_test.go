package services_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

type fakeResumer struct {
	resumed, suspended, terminated int
	lastMode                       services.ResumeMode
}

func (f *fakeResumer) Resume(c *ctx.Context, mode services.ResumeMode, count int) error {
	f.resumed++
	f.lastMode = mode
	return nil
}

func (f *fakeResumer) Suspend(c *ctx.Context) error {
	f.suspended++
	return nil
}

func (f *fakeResumer) Terminate(c *ctx.Context) error {
	f.terminated++
	return nil
}

func TestRunControlUnknownContext(t *testing.T) {
	rc := &services.RunControl{Store: ctx.NewStore(nil), Resumer: &fakeResumer{}}

	cmd, _ := tcf.NewCommand("1", "RunControl", "getState", "missing")
	if _, err := rc.Handle(cmd); err == nil {
		t.Error("expected error for unknown context id")
	}
}

func TestRunControlUnknownCommand(t *testing.T) {
	rc := &services.RunControl{Store: ctx.NewStore(nil), Resumer: &fakeResumer{}}

	cmd, _ := tcf.NewCommand("1", "RunControl", "frobnicate")
	if _, err := rc.Handle(cmd); err == nil {
		t.Error("expected error for unknown command")
	}
}
