package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/regset"
)

// AddressResolver implements breakpoint.Resolver for address-expression
// breakpoints: a hex/decimal literal, a register name, or a
// register±offset sum. File+Line breakpoints are rejected with
// ErrInvalidContext, since symbol/line-number resolution is out of
// scope for this agent (spec §1 "Out of scope").
//
// Grounded on the register-token and arithmetic subset of
// lookbusy1344-arm_emulator's debugger/expressions.go, stripped of its
// value-history ($1, $2, ...) and symbol-table lookups.
type AddressResolver struct {
	Regs *regset.File
}

func (r *AddressResolver) Resolve(bp *breakpoint.UserBP, groupCtx *ctx.Context) (uint64, error) {
	if bp.Location == "" {
		return 0, breakpoint.NewInvalidContext("file/line breakpoints require symbol resolution, out of scope")
	}
	return r.evaluate(bp.Location, groupCtx)
}

func (r *AddressResolver) evaluate(expr string, c *ctx.Context) (uint64, error) {
	expr = strings.TrimSpace(expr)

	for _, op := range []byte{'+', '-'} {
		if idx := strings.IndexByte(expr, op); idx > 0 {
			lhs, err := r.evaluate(expr[:idx], c)
			if err != nil {
				return 0, err
			}
			rhs, err := r.evaluateLiteral(strings.TrimSpace(expr[idx+1:]))
			if err != nil {
				return 0, err
			}
			if op == '+' {
				return lhs + rhs, nil
			}
			return lhs - rhs, nil
		}
	}

	if def, ok := r.Regs.ByName(strings.ToLower(expr)); ok {
		return r.readRegister(c, def)
	}
	return r.evaluateLiteral(expr)
}

func (r *AddressResolver) evaluateLiteral(expr string) (uint64, error) {
	if def, ok := r.Regs.ByName(strings.ToLower(expr)); ok {
		return 0, fmt.Errorf("agent: register %q not valid on this side of an expression", def.Name)
	}
	base := 10
	if strings.HasPrefix(expr, "0x") || strings.HasPrefix(expr, "0X") {
		expr = expr[2:]
		base = 16
	}
	v, err := strconv.ParseUint(expr, base, 64)
	if err != nil {
		return 0, fmt.Errorf("agent: invalid address expression %q: %w", expr, err)
	}
	return v, nil
}

func (r *AddressResolver) readRegister(c *ctx.Context, def regset.Def) (uint64, error) {
	if c.RegsError != nil {
		return 0, c.RegsError
	}
	if c.Regs == nil || def.Offset+def.Size > len(c.Regs) {
		return 0, ctx.ErrNotReady
	}
	var v uint64
	for i := 0; i < def.Size; i++ {
		v |= uint64(c.Regs[def.Offset+i]) << (8 * i)
	}
	return v, nil
}
