package agent

import (
	"fmt"
	"strconv"

	"github.com/lookbusy1344/tcf-agent/ctx"
	"github.com/lookbusy1344/tcf-agent/hwbp"
	"github.com/lookbusy1344/tcf-agent/services"
	"github.com/lookbusy1344/tcf-agent/target"
)

// storeSink forwards ctx.Store lifecycle notifications onto the agent's
// broadcaster as TCF RunControl/Processes events (spec §4.D, §6).
type storeSink struct {
	a *Agent
}

func (s *storeSink) ContextCreated(c *ctx.Context) {
	s.a.Broadcaster.Emit("RunControl", "contextAdded", []map[string]any{runControlContextPayload(c)})
}

func (s *storeSink) ContextChanged(c *ctx.Context) {
	s.a.Broadcaster.Emit("RunControl", "contextChanged", []map[string]any{runControlContextPayload(c)})
}

func (s *storeSink) ContextStopped(c *ctx.Context) {
	s.a.Broadcaster.Emit("RunControl", "contextSuspended", c.ID, stopReason(c), map[string]any{})
}

func (s *storeSink) ContextStarted(c *ctx.Context) {
	s.a.Broadcaster.Emit("RunControl", "contextResumed", c.ID)
}

func (s *storeSink) ContextExited(c *ctx.Context) {
	s.a.Broadcaster.Emit("RunControl", "contextRemoved", []string{c.ID})
}

func stopReason(c *ctx.Context) string {
	switch {
	case c.StoppedByBP:
		return "Breakpoint"
	case c.EndOfStep:
		return "Step"
	case c.StoppedByException:
		return "Exception"
	default:
		return "Suspended"
	}
}

// Hooks wires ctx.Listener's architecture-specific callbacks to this
// agent's register file and break-instruction table.
func (a *Agent) Hooks() ctx.Hooks {
	pcDef, _ := a.RegsFile.ByRole("PC")
	return ctx.Hooks{
		ReadRegSet: func(tid int) ([]byte, error) {
			buf := make([]byte, a.RegsFile.Size())
			err := (&target.Thread{Tid: tid}).ReadRegSet(buf)
			return buf, err
		},
		PC: func(regs []byte) uint64 {
			return readLE(regs, pcDef.Offset, pcDef.Size)
		},
		SetPC: func(regs []byte, pc uint64) {
			writeLE(regs, pcDef.Offset, pcDef.Size, pc)
		},
		BreakInstSize: armBreakInstSize,
		IsPlantedBreakAt: func(memOwner *ctx.Context, addr uint64) bool {
			return a.Table.Find(memOwner, addr) != nil
		},
		ConsumeSkip: func(c *ctx.Context) (bool, bool) {
			continuing, found, _ := a.SkipSeq.Consume(c)
			return continuing, found
		},
		EvalBreakHit: a.EvalBreakHit,
		DetectCB:     a.detectCB,
	}
}

func readLE(buf []byte, off, size int) uint64 {
	var v uint64
	for i := 0; i < size && off+i < len(buf); i++ {
		v |= uint64(buf[off+i]) << (8 * i)
	}
	return v
}

func writeLE(buf []byte, off, size int, v uint64) {
	for i := 0; i < size && off+i < len(buf); i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

// muxFor lazily probes the hardware-breakpoint multiplexer for a
// process the first time any of its threads resumes.
func (a *Agent) muxFor(c *ctx.Context) (*hwbp.Mux, error) {
	pid := c.Owner().Pid
	if m, ok := a.hwbpMux[pid]; ok {
		return m, nil
	}
	m, err := hwbp.Probe(a.threadOf(c))
	if err != nil {
		return nil, err
	}
	a.hwbpMux[pid] = m
	return m, nil
}

func (a *Agent) stateFor(c *ctx.Context) *hwbp.ThreadState {
	st, ok := a.hwbpState[c.Tid]
	if !ok {
		st = hwbp.NewThreadState()
		a.hwbpState[c.Tid] = st
	}
	return st
}

// flushHWBP reencodes a thread's hardware debug registers immediately
// before resume, per spec §4.J ("flush the hardware-breakpoint state
// before the ptrace continue/step"). Every planted software breakpoint
// in the thread's address space is mirrored onto a hardware slot too,
// so a hit is independently reported via stopped_by_cb even though the
// break-instruction trap already detects it by itself. This build
// exposes no client-settable watchpoints over the wire yet (UserBP
// models software instruction breakpoints only), so reqs never
// contains a watch-access entry.
func (a *Agent) flushHWBP(c *ctx.Context) error {
	m, err := a.muxFor(c)
	if err != nil {
		return err
	}
	st := a.stateFor(c)
	if !m.NeedsReencode(st) {
		return nil
	}
	return m.Reencode(a.threadOf(c), st, a.hwRequestsFor(c.Owner()), nil, a.pc(c), "")
}

// bumpHWBPGenerations advances every tracked process's hardware-BP
// generation, forcing every thread to reencode its debug registers on
// its next resume (spec §4.J "hw_bps_generation ahead of ..."). Called
// once per replant pass since that is the only point the planted set
// can change.
func (a *Agent) bumpHWBPGenerations() {
	for _, m := range a.hwbpMux {
		m.Bump()
	}
}

// hwRequestsFor builds one hwbp.Request per planted software breakpoint
// owned by owner, keyed by its hex address so detectCB can map a
// reported hit straight back to the break-instruction table.
func (a *Agent) hwRequestsFor(owner *ctx.Context) []hwbp.Request {
	var reqs []hwbp.Request
	for _, bi := range a.Table.All() {
		if bi.MemOwner != owner || !bi.Planted {
			continue
		}
		reqs = append(reqs, hwbp.Request{Key: fmt.Sprintf("%x", bi.Addr), Addr: bi.Addr, Access: hwbp.AccessExecute})
	}
	return reqs
}

// detectCB implements the ctx.Hooks collaborator that reports which
// user breakpoints' hardware slots fired at this stop (spec §4.J "On
// suspend..."), independent of the break-instruction trap already
// handled by StoppedByBP.
func (a *Agent) detectCB(c *ctx.Context) []string {
	owner := c.Owner()
	st, ok := a.hwbpState[c.Tid]
	if !ok {
		return nil
	}
	sig, err := a.threadOf(c).GetSigInfo()
	if err != nil {
		return nil
	}
	reqByKey := map[string]hwbp.Request{}
	for _, r := range a.hwRequestsFor(owner) {
		reqByKey[r.Key] = r
	}
	hits := hwbp.DetectHit(st, a.pc(c), hwbp.SigInfo{Signo: sig.Signo, Code: sig.Code, Errno: sig.Errno, Addr: sig.Addr}, reqByKey)

	var ids []string
	for _, key := range hits {
		addr, err := strconv.ParseUint(key, 16, 64)
		if err != nil {
			continue
		}
		if bi := a.Table.Find(owner, addr); bi != nil {
			for _, bp := range bi.Refs {
				ids = append(ids, bp.ID)
			}
		}
	}
	return ids
}

// PumpWait runs target.Wait in a loop, feeding every event through
// listener and then through a safe event so store mutation stays
// confined to the dispatch goroutine (spec §5). It blocks; callers run
// it in its own goroutine.
func (a *Agent) PumpWait(listener *ctx.Listener, onEvent func()) error {
	for {
		ev, err := target.Wait()
		if err != nil {
			return err
		}
		done := make(chan struct{})
		a.PostSafeEvent(func() {
			defer close(done)
			resume, herr := listener.HandleWait(ev)
			if herr != nil {
				return
			}
			if resume {
				if c, ok := a.Store.ByTid(ev.Pid); ok {
					c.Stopped = true
					if rerr := a.Resume(c, services.RMResume, 1); rerr != nil {
						c.Stopped = false
					}
				}
				return
			}
			if onEvent != nil {
				onEvent()
			}
		})
		<-done
	}
}
