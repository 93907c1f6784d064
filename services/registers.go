package services

import (
	"fmt"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/regset"
	"github.com/lookbusy1344/tcf-agent/tcf"
)

// Registers implements the (ini-only, per spec §6) Registers service:
// listing per-context register definitions and reading/writing them by
// id against the thread's cached register snapshot.
type Registers struct {
	Store *ctx.Store
	File  *regset.File
}

func (r *Registers) Handle(m tcf.Message) ([]any, error) {
	switch m.Command {
	case "getChildren":
		var ctxID string
		if err := m.DecodeArg(0, &ctxID); err != nil {
			return nil, err
		}
		if _, ok := r.Store.ByID(ctxID); !ok {
			return nil, fmt.Errorf("registers: no such context %q", ctxID)
		}
		ids := make([]string, 0, len(r.File.All()))
		for _, d := range r.File.All() {
			ids = append(ids, ctxID+"."+d.Name)
		}
		return []any{ids}, nil

	case "getContext":
		var regID string
		if err := m.DecodeArg(0, &regID); err != nil {
			return nil, err
		}
		_, name, err := splitRegID(regID)
		if err != nil {
			return nil, err
		}
		def, ok := r.File.ByName(name)
		if !ok {
			return nil, fmt.Errorf("registers: no such register %q", name)
		}
		return []any{definitionPayload(def)}, nil

	case "get":
		var regID string
		if err := m.DecodeArg(0, &regID); err != nil {
			return nil, err
		}
		c, def, err := r.resolve(regID)
		if err != nil {
			return nil, err
		}
		if c.RegsError != nil {
			return nil, c.RegsError
		}
		if c.Regs == nil {
			return nil, ctx.ErrNotReady
		}
		value := readField(c.Regs, def)
		return []any{tcf.EncodeBlob(value)}, nil

	case "set":
		var regID, blob string
		if err := m.DecodeArg(0, &regID); err != nil {
			return nil, err
		}
		if err := m.DecodeArg(1, &blob); err != nil {
			return nil, err
		}
		c, def, err := r.resolve(regID)
		if err != nil {
			return nil, err
		}
		if !def.Writable {
			return nil, fmt.Errorf("registers: %q is not writable", def.Name)
		}
		raw, err := tcf.DecodeBlob(blob)
		if err != nil {
			return nil, err
		}
		writeField(c.Regs, def, raw)
		c.RegsDirty = true
		return nil, nil
	}
	return nil, fmt.Errorf("registers: unknown command %q", m.Command)
}

func (r *Registers) resolve(regID string) (*ctx.Context, regset.Def, error) {
	ctxID, name, err := splitRegID(regID)
	if err != nil {
		return nil, regset.Def{}, err
	}
	c, ok := r.Store.ByID(ctxID)
	if !ok {
		return nil, regset.Def{}, fmt.Errorf("registers: no such context %q", ctxID)
	}
	def, ok := r.File.ByName(name)
	if !ok {
		return nil, regset.Def{}, fmt.Errorf("registers: no such register %q", name)
	}
	return c, def, nil
}

func splitRegID(regID string) (ctxID, name string, err error) {
	for i := len(regID) - 1; i >= 0; i-- {
		if regID[i] == '.' {
			return regID[:i], regID[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("registers: malformed register id %q", regID)
}

func definitionPayload(def regset.Def) map[string]any {
	return map[string]any{
		"ID":         def.Name,
		"Offset":     def.Offset,
		"Size":       def.Size,
		"Readable":   def.Readable,
		"Writable":   def.Writable,
		"Role":       string(def.Role),
		"FloatPoint": def.FloatPoint,
	}
}

func readField(regs []byte, def regset.Def) []byte {
	if def.Offset+def.Size > len(regs) {
		return make([]byte, def.Size)
	}
	out := make([]byte, def.Size)
	copy(out, regs[def.Offset:def.Offset+def.Size])
	return out
}

func writeField(regs []byte, def regset.Def, value []byte) {
	if def.Offset+def.Size > len(regs) {
		return
	}
	n := def.Size
	if len(value) < n {
		n = len(value)
	}
	copy(regs[def.Offset:def.Offset+n], value[:n])
}
