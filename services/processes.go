package services

import (
	"fmt"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

// Processes implements the Processes service: enumerating attached
// processes and reporting their basic properties (spec §6).
type Processes struct {
	Store *ctx.Store
}

func (p *Processes) Handle(m tcf.Message) ([]any, error) {
	switch m.Command {
	case "getChildren":
		ids := make([]string, 0)
		for _, root := range p.Store.Roots() {
			ids = append(ids, root.ID)
		}
		return []any{ids}, nil

	case "getContext":
		var id string
		if err := m.DecodeArg(0, &id); err != nil {
			return nil, err
		}
		c, ok := p.Store.ByID(id)
		if !ok {
			return nil, fmt.Errorf("processes: no such context %q", id)
		}
		return []any{processPayload(c)}, nil
	}
	return nil, fmt.Errorf("processes: unknown command %q", m.Command)
}

func processPayload(c *ctx.Context) map[string]any {
	return map[string]any{
		"ID":        c.ID,
		"Name":      fmt.Sprintf("pid %d", c.Pid),
		"Pid":       c.Pid,
		"CanTerminate": c.IsProcess(),
	}
}
