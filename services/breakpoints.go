// Package services implements the TCF service facades exposed to
// clients over the wire protocol (spec §6): Breakpoints, Registers,
// Processes, and RunControl. Each facade translates decoded tcf
// command frames into calls against the underlying engine packages
// (breakpoint, regset, ctx) and builds the reply/event
// payloads the protocol expects.
//
// Grounded in shape on lookbusy1344-arm_emulator's service/debugger_service.go
// (a single facade wrapping the VM for the api layer), split here into
// one facade per TCF service to match the protocol's own service
// boundaries.
package services

import (
	"fmt"

	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

// EventEmitter sends an asynchronous event frame to every interested
// channel; the dispatch loop supplies the real broadcast implementation.
type EventEmitter interface {
	Emit(service, name string, args ...any)
}

// Breakpoints implements the Breakpoints service (spec §4.F, §6).
type Breakpoints struct {
	Registry *breakpoint.Registry
	Replant  func() // requests a safe replant pass; see breakpoint.Replanter.RequestSafeReplant
	Events   EventEmitter
}

// EmitStatus implements breakpoint.StatusEmitter, broadcasting the
// "status" event whenever a breakpoint's (unsupported, error, planted)
// tuple changes (spec §4.G step 3, §6).
func (b *Breakpoints) EmitStatus(bp *breakpoint.UserBP) {
	status, _ := b.Registry.GetStatus(bp.ID)
	b.Events.Emit("Breakpoints", "status", bp.ID, statusPayload(status))
}

func statusPayload(s breakpoint.StatusTuple) map[string]any {
	return map[string]any{
		"Unsupported": s.Unsupported,
		"Error":       s.Error,
		"Planted":     s.Planted,
	}
}

// Handle dispatches one decoded command frame and returns the reply's
// result arguments.
func (b *Breakpoints) Handle(channel string, m tcf.Message) ([]any, error) {
	switch m.Command {
	case "set":
		var propsList []map[string]any
		if err := m.DecodeArg(0, &propsList); err != nil {
			return nil, err
		}
		b.Registry.Set(channel, propsList)
		b.Replant()
		return nil, nil

	case "add":
		var props map[string]any
		if err := m.DecodeArg(0, &props); err != nil {
			return nil, err
		}
		bp := b.Registry.Add(channel, props)
		b.Replant()
		return []any{bp.ID}, nil

	case "change":
		var props map[string]any
		if err := m.DecodeArg(0, &props); err != nil {
			return nil, err
		}
		b.Registry.Change(channel, props)
		b.Replant()
		return nil, nil

	case "enable":
		var ids []string
		if err := m.DecodeArg(0, &ids); err != nil {
			return nil, err
		}
		b.Registry.Enable(ids, true)
		b.Replant()
		return nil, nil

	case "disable":
		var ids []string
		if err := m.DecodeArg(0, &ids); err != nil {
			return nil, err
		}
		b.Registry.Enable(ids, false)
		b.Replant()
		return nil, nil

	case "remove":
		var ids []string
		if err := m.DecodeArg(0, &ids); err != nil {
			return nil, err
		}
		b.Registry.Remove(channel, ids)
		b.Replant()
		return nil, nil

	case "getIDs":
		return []any{b.Registry.GetBreakpointIDs(channel)}, nil

	case "getProperties":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		bp, ok := b.Registry.GetProperties(id)
		if !ok {
			return nil, fmt.Errorf("breakpoints: no such id %q", id)
		}
		return []any{propertiesPayload(bp)}, nil

	case "getStatus":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		status, ok := b.Registry.GetStatus(id)
		if !ok {
			return nil, fmt.Errorf("breakpoints: no such id %q", id)
		}
		return []any{statusPayload(status)}, nil

	case "getCapabilities":
		return []any{breakpoint.Capabilities()}, nil
	}
	return nil, fmt.Errorf("breakpoints: unknown command %q", m.Command)
}

// ChannelClosed cancels channel's breakpoint refs (spec §5) and
// triggers a replant to retire any now-orphaned break instructions.
func (b *Breakpoints) ChannelClosed(channel string) {
	b.Registry.ChannelClosed(channel)
	b.Replant()
}

func propertiesPayload(bp *breakpoint.UserBP) map[string]any {
	return map[string]any{
		"ID":          bp.ID,
		"Location":    bp.Location,
		"File":        bp.File,
		"Line":        bp.Line,
		"Column":      bp.Column,
		"Condition":   bp.Condition,
		"IgnoreCount": bp.IgnoreCount,
		"Enabled":     bp.Enabled,
	}
}
