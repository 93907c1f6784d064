package services

import (
	"fmt"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

// ResumeMode selects how RunControl.resume continues a context (spec §6).
type ResumeMode int

const (
	RMResume ResumeMode = iota
	RMStepInto
	RMTerminate
)

// Resumer performs the actual resume/suspend/terminate mechanics
// (skip-sequencer, single-step prediction, ptrace calls); the dispatch
// loop in package agent supplies the implementation so this service
// never imports breakpoint/target/armstep directly.
type Resumer interface {
	Resume(c *ctx.Context, mode ResumeMode, count int) error
	Suspend(c *ctx.Context) error
	Terminate(c *ctx.Context) error
}

// RunControl implements the RunControl service (spec §6).
type RunControl struct {
	Store   *ctx.Store
	Resumer Resumer
}

func (rc *RunControl) Handle(m tcf.Message) ([]any, error) {
	switch m.Command {
	case "resume":
		var id string
		var mode, count int
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		if err := m.DecodeArg(1, &mode); err != nil {
			return nil, err
		}
		if err := m.DecodeArg(2, &count); err != nil {
			count = 1
		}
		c, err := rc.lookup(id)
		if err != nil {
			return nil, err
		}
		return nil, rc.Resumer.Resume(c, ResumeMode(mode), count)

	case "suspend":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		c, err := rc.lookup(id)
		if err != nil {
			return nil, err
		}
		return nil, rc.Resumer.Suspend(c)

	case "terminate":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		c, err := rc.lookup(id)
		if err != nil {
			return nil, err
		}
		return nil, rc.Resumer.Terminate(c)

	case "getState":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		c, err := rc.lookup(id)
		if err != nil {
			return nil, err
		}
		return []any{statePayload(c)}, nil

	case "getContext":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		c, err := rc.lookup(id)
		if err != nil {
			return nil, err
		}
		return []any{runControlContextPayload(c)}, nil
	}
	return nil, fmt.Errorf("runcontrol: unknown command %q", m.Command)
}

func (rc *RunControl) lookup(id string) (*ctx.Context, error) {
	c, ok := rc.Store.ByID(id)
	if !ok {
		return nil, fmt.Errorf("runcontrol: no such context %q", id)
	}
	return c, nil
}

func statePayload(c *ctx.Context) map[string]any {
	reason := ""
	switch {
	case c.StoppedByBP:
		reason = "breakpoint"
	case c.StoppedByException:
		reason = "exception"
	case c.EndOfStep:
		reason = "step"
	}
	return map[string]any{
		"IsRunning":     !c.Stopped,
		"Suspended":     c.Stopped,
		"SuspendReason": reason,
		"PC":            nil,
	}
}

func runControlContextPayload(c *ctx.Context) map[string]any {
	return map[string]any{
		"ID":          c.ID,
		"IsContainer": !c.IsThread,
		"HasState":    c.IsThread,
		"CanResume":   1<<uint(RMResume) | 1<<uint(RMStepInto),
		"CanSuspend":  true,
		"CanTerminate": c.IsProcess(),
	}
}
