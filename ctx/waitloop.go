package ctx

import "github.com/lookbusy1344/tcf-agent/target"

// Hooks supplies the architecture- and register-layout-specific helpers
// the wait-pid listener needs without importing the regset/breakpoint
// packages (which would create an import cycle back into ctx).
type Hooks struct {
	// ReadRegSet fetches the raw register snapshot for tid.
	ReadRegSet func(tid int) ([]byte, error)

	// PC extracts the program counter from a raw register snapshot.
	PC func(regs []byte) uint64

	// SetPC rewrites the program counter in a raw register snapshot.
	SetPC func(regs []byte, pc uint64)

	// BreakInstSize is the architecture's break-instruction width in
	// bytes (spec §6: ARM 4, x86 1).
	BreakInstSize uint64

	// IsPlantedBreakAt reports whether a planted break instruction is
	// registered at addr for the given memory-owning context (§4.E).
	IsPlantedBreakAt func(memOwner *Context, addr uint64) bool

	// ConsumeSkip reports whether c had a skip-breakpoint step in flight
	// (spec §4.H) at this stop. If found, the break instruction has
	// already been replanted and continuing tells the caller whether the
	// resumption that triggered the skip is still owed.
	ConsumeSkip func(c *Context) (continuing bool, found bool)

	// EvalBreakHit decides whether a just-detected planted-breakpoint hit
	// at addr should surface as a real stop, applying the breakpoint's
	// Condition and IgnoreCount (spec §4.F). Called only once
	// StoppedByBP is true.
	EvalBreakHit func(c *Context, addr uint64) (stop bool, err error)

	// DetectCB reports the user breakpoint ids whose hardware slot fired
	// at this stop (spec §4.J "On suspend..."), independent of any
	// software break-instruction trap. Called on every real stop.
	DetectCB func(c *Context) []string
}

// STOP/TRAP signal numbers, named for readability at call sites.
const (
	sigStop = 19
	sigTrap = 5
)

// Listener drives context state transitions from normalized OS wait
// events (spec §4.D). It is not safe for concurrent use; the dispatch
// loop is its only caller (spec §5).
type Listener struct {
	store *Store
	hooks Hooks
}

// NewListener binds a wait-pid listener to store using hooks.
func NewListener(store *Store, hooks Hooks) *Listener {
	return &Listener{store: store, hooks: hooks}
}

// HandleWait processes a single normalized wait event. The returned
// resume flag tells the caller that the stop was swallowed, either by an
// in-flight skip-breakpoint step (spec §4.H) or by a breakpoint hit that
// EvalBreakHit let pass, and that it must reissue the resumption itself;
// no stop event reached subscribers in that case.
func (l *Listener) HandleWait(ev target.WaitEvent) (resume bool, err error) {
	existing, known := l.store.ByTid(ev.Pid)

	if !known {
		return false, l.handleUnknownPid(ev)
	}

	if ev.Exited {
		return false, l.handleExit(existing, ev)
	}

	return l.handleStop(existing, ev)
}

// handleUnknownPid promotes a previously untracked pid into a real
// context pair, per spec §4.D "Unknown pid, pending attach".
func (l *Listener) handleUnknownPid(ev target.WaitEvent) error {
	cb := l.store.onAttach[ev.Pid]

	proc := l.store.createProcess(ev.Pid, nil)
	thread := l.store.createThread(proc, ev.Pid)
	thread.Stopped = true

	if cb != nil {
		delete(l.store.onAttach, ev.Pid)
		cb(proc, thread)
	}
	return nil
}

// handleExit processes an OS exit notification for a known context.
func (l *Listener) handleExit(c *Context, ev target.WaitEvent) error {
	c.Exiting = true

	if c.Stopped {
		// A still-stopped context must observe a started-event before
		// its exit, so clients never see "exited while stopped".
		c.Stopped = false
		l.store.sink.ContextStarted(c)
	}

	for _, child := range append([]*Context(nil), c.Children...) {
		if child.Live() {
			if child.Stopped {
				child.Stopped = false
				l.store.sink.ContextStarted(child)
			}
			child.Exiting = true
			child.Exited = true
			l.store.sink.ContextExited(child)
			l.store.remove(child)
		}
	}

	c.Regs = nil
	c.RegsDirty = false
	c.Exited = true
	l.store.sink.ContextExited(c)
	l.store.remove(c)
	return nil
}

// handleStop processes an OS stop notification for a known context,
// deciding stopped_by_bp / end_of_step per spec §4.D.
func (l *Listener) handleStop(c *Context, ev target.WaitEvent) (resume bool, err error) {
	if ev.Signal != sigStop && ev.Signal != sigTrap {
		c.PendingSignals.Set(ev.Signal)
	}
	if !c.SigDontStop.Has(ev.Signal) {
		c.PendingIntercept = true
		c.StoppedByException = true
	}
	c.Signal = ev.Signal

	if l.hooks.ReadRegSet != nil {
		regs, err := l.hooks.ReadRegSet(c.Tid)
		if err != nil {
			c.RegsError = err
		} else {
			c.Regs = regs
			c.RegsError = nil
		}
	}

	if l.hooks.ConsumeSkip != nil {
		if continuing, found := l.hooks.ConsumeSkip(c); found && continuing {
			// The stop only served to step over the thread's own
			// breakpoint; the resumption that triggered it is still
			// owed and nothing is visible to subscribers yet.
			return true, nil
		}
	}

	c.StoppedByBP = false
	if ev.Signal == sigTrap && ev.EventCode == 0 && !ev.IsSyscall && c.Regs != nil && l.hooks.PC != nil && l.hooks.IsPlantedBreakAt != nil {
		pc := l.hooks.PC(c.Regs)
		candidate := pc - l.hooks.BreakInstSize
		if l.hooks.IsPlantedBreakAt(c.Owner(), candidate) {
			c.StoppedByBP = true
			l.hooks.SetPC(c.Regs, candidate)
			c.RegsDirty = true

			if l.hooks.EvalBreakHit != nil {
				stop, _ := l.hooks.EvalBreakHit(c, candidate)
				if !stop {
					// Every referring breakpoint's Condition/IgnoreCount
					// said to let this hit pass silently (spec §4.F); the
					// thread sits right on the break instruction, so the
					// skip sequencer takes it from here on the next resume.
					return true, nil
				}
			}
		}
	}

	if l.hooks.DetectCB != nil {
		c.StoppedByCB = l.hooks.DetectCB(c)
	}

	c.EndOfStep = c.PendingStep && !c.StoppedByBP
	c.Stopped = true
	l.store.sink.ContextStopped(c)
	return false, nil
}
