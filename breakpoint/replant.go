package breakpoint

import "github.com/lookbusy1344/tcf-agent/ctx"

// ErrInvalidContext signals that an address expression is context
// sensitive and must be retried against a different breakpoint-group
// context (spec §4.G).
type ErrInvalidContext struct{ msg string }

func (e *ErrInvalidContext) Error() string { return e.msg }

// NewInvalidContext constructs an ErrInvalidContext.
func NewInvalidContext(msg string) error { return &ErrInvalidContext{msg: msg} }

// Resolver evaluates a breakpoint's location (address expression, or
// file+line via the line-numbers collaborator) against one
// breakpoint-group context. It is the boundary to the out-of-scope
// symbol/line-number services (spec §1 "Out of scope").
type Resolver interface {
	Resolve(bp *UserBP, groupCtx *ctx.Context) (uint64, error)
}

// StatusEmitter is notified once per breakpoint whose status tuple
// changed during a replant pass (spec §4.G step 3).
type StatusEmitter interface {
	EmitStatus(bp *UserBP)
}

// GroupContexts enumerates the live, stopped contexts belonging to the
// breakpoint group, one evaluation target per distinct memory owner.
type GroupContexts interface {
	BreakpointGroupContexts() []*ctx.Context
}

// Replanter is the replant engine (spec §4.G): a batched, deferred
// reconciliation of the breakpoint registry against the break-instruction
// table, grounded on the teacher's debugger/breakpoints.go reconciliation
// shape but generalized to run across many contexts instead of one VM.
type Replanter struct {
	Registry *Registry
	Table    *Table
	Groups   GroupContexts
	Resolve  Resolver
	Emit     StatusEmitter

	// PlantChanged, if set, is called once per replant pass after the
	// break-instruction table is compacted, so callers holding their own
	// view of the planted set (the hardware-BP multiplexer's per-process
	// generation, spec §4.J) know to refresh it on the next resume.
	PlantChanged func()

	pending bool
}

// RequestSafeReplant schedules a replant pass via schedule (the agent's
// safe-event queue, spec §4.G/§5), coalescing concurrent requests into
// at most one in-flight pass.
func (r *Replanter) RequestSafeReplant(schedule func(func())) {
	if r.pending {
		return
	}
	r.pending = true
	schedule(r.run)
}

func (r *Replanter) run() {
	r.pending = false

	r.Table.ClearRefs()

	for _, bp := range r.Registry.All() {
		if bp.Deleted || !bp.Enabled || len(bp.Unsupported) > 0 {
			continue
		}
		r.resolveOne(bp)
	}

	r.Table.Compact()
	if r.PlantChanged != nil {
		r.PlantChanged()
	}

	for _, bp := range r.Registry.All() {
		if bp.Deleted {
			r.Registry.Purge(bp.ID)
			continue
		}
		bp.PlantedCount = r.plantedCount(bp)
		r.maybeEmit(bp)
	}
}

func (r *Replanter) resolveOne(bp *UserBP) {
	groups := r.Groups.BreakpointGroupContexts()
	var lastErr error
	resolvedAny := false
	for _, g := range groups {
		if !g.Live() || !g.Stopped {
			continue
		}
		addr, err := r.Resolve.Resolve(bp, g)
		if err != nil {
			if _, ok := err.(*ErrInvalidContext); ok {
				// Context-sensitive location: try the next context.
				continue
			}
			lastErr = err
			continue
		}
		resolvedAny = true
		r.Table.AddRef(bp, g.Owner(), addr)
	}
	if resolvedAny {
		bp.Error = ""
	} else if lastErr != nil {
		bp.Error = lastErr.Error()
	}
}

func (r *Replanter) plantedCount(bp *UserBP) int {
	n := 0
	for _, bi := range r.Table.All() {
		for _, ref := range bi.Refs {
			if ref == bp && bi.Planted {
				n++
			}
		}
	}
	return n
}

func (r *Replanter) maybeEmit(bp *UserBP) {
	tuple := StatusTuple{
		Unsupported: len(bp.Unsupported) > 0,
		Error:       bp.Error != "",
		Planted:     bp.PlantedCount,
	}
	if tuple.Unsupported == bp.statusUnsupported && tuple.Error == bp.statusError && tuple.Planted == bp.statusPlanted {
		return
	}
	bp.statusUnsupported = tuple.Unsupported
	bp.statusError = tuple.Error
	bp.statusPlanted = tuple.Planted
	if r.Emit != nil {
		r.Emit.EmitStatus(bp)
	}
}
