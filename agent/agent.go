package agent

import (
	"fmt"

	"github.com/lookbusy1344/tcf-agent/breakpoint"
	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/hwbp"
	"github.com/lookbusy1344/tcf-agent/regset"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/target"
)

// passed-through-never signal numbers (spec §4.B "STOP/TRAP never
// passed").
const (
	sigStop = 19
	sigTrap = 5
)

const armBreakInstSize = 4

// armBreakInst is the ARM software break-instruction encoding (spec §6:
// "ARM: 4 bytes F0 01 F0 E7").
var armBreakInst = []byte{0xF0, 0x01, 0xF0, 0xE7}

// Agent is the composition root binding every engine package into one
// cooperative dispatch loop (spec §5). It implements services.Resumer
// and breakpoint.GroupContexts/StatusEmitter's collaborators directly,
// so the services layer never imports target/hwbp/armstep.
type Agent struct {
	Store       *ctx.Store
	RegsFile    *regset.File
	RawMem      breakpoint.MemIO
	Table       *breakpoint.Table
	Registry    *breakpoint.Registry
	Replanter   *breakpoint.Replanter
	SkipSeq     *breakpoint.SkipSequencer
	Broadcaster *Broadcaster

	conditionEval *ConditionEvaluator

	hwbpMux    map[int]*hwbp.Mux         // keyed by process pid
	hwbpState  map[int]*hwbp.ThreadState // keyed by thread tid
	safeEvents chan func()
}

// New wires a fresh agent. mem is the raw (non-transparent) target
// memory accessor; callers wrap it in breakpoint.TransparentMem for
// client-visible reads/writes.
func New(mem breakpoint.MemIO, regsFile *regset.File) *Agent {
	a := &Agent{
		RegsFile:    regsFile,
		RawMem:      mem,
		Broadcaster: NewBroadcaster(),
		hwbpMux:     map[int]*hwbp.Mux{},
		hwbpState:   map[int]*hwbp.ThreadState{},
		safeEvents:  make(chan func(), 256),
	}
	a.Store = ctx.NewStore(&storeSink{a: a})
	a.Table = breakpoint.NewTable(mem, armBreakInst)
	a.Registry = breakpoint.NewRegistry()
	a.SkipSeq = &breakpoint.SkipSequencer{Table: a.Table, Stepper: a}
	a.Replanter = &breakpoint.Replanter{
		Registry: a.Registry,
		Table:    a.Table,
		Groups:   a,
		Resolve:  &AddressResolver{Regs: regsFile},
	}
	a.Replanter.PlantChanged = a.bumpHWBPGenerations
	a.conditionEval = &ConditionEvaluator{
		Regs: regsFile,
		Mem:  &breakpoint.TransparentMem{Raw: mem, Table: a.Table},
	}
	return a
}

// BindEmitter completes the replanter wiring once the owning
// services.Breakpoints facade (which implements breakpoint.StatusEmitter)
// exists; the two are constructed in opposite dependency order, so this
// closes the cycle.
func (a *Agent) BindEmitter(emit breakpoint.StatusEmitter) {
	a.Replanter.Emit = emit
}

// BreakpointGroupContexts implements breakpoint.GroupContexts: one
// representative, live, stopped thread per attached process (spec §4.G
// "one evaluation target per distinct memory owner").
func (a *Agent) BreakpointGroupContexts() []*ctx.Context {
	var out []*ctx.Context
	for _, root := range a.Store.Roots() {
		for _, child := range root.Children {
			if child.IsThread && child.Live() && child.Stopped {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// RequestReplant schedules a safe replant pass via the agent's
// safe-event queue (spec §4.G "coalescing concurrent requests").
func (a *Agent) RequestReplant() {
	a.Replanter.RequestSafeReplant(a.PostSafeEvent)
}

// PostSafeEvent enqueues fn to run on the dispatch thread once the
// current command finishes (spec §5 "safe events").
func (a *Agent) PostSafeEvent(fn func()) {
	a.safeEvents <- fn
}

// RunSafeEvents drains and runs every pending safe event; the dispatch
// loop calls this between servicing client commands.
func (a *Agent) RunSafeEvents() {
	for {
		select {
		case fn := <-a.safeEvents:
			fn()
		default:
			return
		}
	}
}

func (a *Agent) threadOf(c *ctx.Context) *target.Thread {
	return &target.Thread{Tgid: c.Owner().Pid, Tid: c.Tid}
}

// SingleStep implements breakpoint.Stepper, issuing a real OS
// single-step with no signal injected (the skip sequencer's own
// single-step never forwards a pass-through signal; that only happens
// on the resume that follows).
func (a *Agent) SingleStep(thread *ctx.Context) error {
	thread.PendingStep = true
	return a.threadOf(thread).SingleStep(0)
}

// flushRegs writes back a dirty register cache before any resume (spec
// §4.B "regs_dirty must be flushed immediately before any resume").
func (a *Agent) flushRegs(thread *ctx.Context) error {
	if !thread.RegsDirty {
		return nil
	}
	if err := a.threadOf(thread).WriteRegSet(thread.Regs); err != nil {
		return err
	}
	thread.RegsDirty = false
	return nil
}

func (a *Agent) pc(thread *ctx.Context) uint64 {
	def, ok := a.RegsFile.ByRole(regset.RolePC)
	if !ok || thread.Regs == nil {
		return 0
	}
	var v uint64
	for i := 0; i < def.Size; i++ {
		v |= uint64(thread.Regs[def.Offset+i]) << (8 * i)
	}
	return v
}

// passThroughSignal picks the first pending signal not excluded by
// sig_dont_pass and not STOP/TRAP (spec §4.B, §5).
func (a *Agent) passThroughSignal(thread *ctx.Context) int {
	for {
		sig := thread.PendingSignals.First()
		if sig == 0 {
			return 0
		}
		thread.PendingSignals.Clear(sig)
		if sig == sigStop || sig == sigTrap || thread.SigDontPass.Has(sig) {
			continue
		}
		return sig
	}
}

// Resume implements services.Resumer.
func (a *Agent) Resume(c *ctx.Context, mode services.ResumeMode, count int) error {
	if !c.IsThread {
		return fmt.Errorf("agent: resume target %s is not a thread", c.ID)
	}
	if !c.Stopped {
		return target.ErrNotStopped
	}
	if mode == services.RMTerminate {
		return a.Terminate(c)
	}

	if err := a.flushRegs(c); err != nil {
		return err
	}
	if err := a.flushHWBP(c); err != nil {
		return err
	}

	continuing := mode == services.RMResume
	started, err := a.SkipSeq.Begin(c, a.pc(c), continuing)
	if err != nil {
		return err
	}
	if started {
		a.Store.MarkRunning(c)
		return nil
	}

	sig := a.passThroughSignal(c)
	th := a.threadOf(c)
	if mode == services.RMStepInto {
		c.PendingStep = true
		if err := th.SingleStep(sig); err != nil {
			return err
		}
	} else {
		c.PendingStep = false
		if err := th.ContinueWithSignal(sig); err != nil {
			return err
		}
	}
	a.Store.MarkRunning(c)
	return nil
}

// Suspend implements services.Resumer.
func (a *Agent) Suspend(c *ctx.Context) error {
	return a.threadOf(c).Stop()
}

// Terminate implements services.Resumer.
func (a *Agent) Terminate(c *ctx.Context) error {
	return target.Kill(c.Owner().Pid)
}
