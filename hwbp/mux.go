package hwbp

import "fmt"

// Prober is the subset of target.Thread's debug-register surface this
// package needs; declared independently (rather than imported) so hwbp
// has no build dependency on package target, matching the
// dependency-injection idiom used by ctx.Hooks and breakpoint.Resolver.
type Prober interface {
	GetHBPInfo() (uint32, error)
	GetHBPSlot(index int) (uint32, error)
	SetHBPSlot(index int, value uint32) error
}

// Mux owns the debug-architecture probe result and a monotonically
// increasing generation counter, bumped whenever the set of armed
// requests changes. One Mux is shared by every thread of a process;
// each thread tracks its own last-applied generation in a ThreadState.
type Mux struct {
	Info       DebugInfo
	generation int
}

// Probe runs the single debug-register probe (spec §4.J "single probe
// of the OS debug-register interface").
func Probe(p Prober) (*Mux, error) {
	word, err := p.GetHBPInfo()
	if err != nil {
		return nil, err
	}
	return &Mux{Info: DecodeInfo(word)}, nil
}

// Bump advances the generation, marking every thread's cached encoding
// stale.
func (m *Mux) Bump() { m.generation++ }

// Generation reports the current generation.
func (m *Mux) Generation() int { return m.generation }

// ThreadState is one thread's hardware-debug-register bookkeeping:
// which requests are currently armed in which slot, and the generation
// at which that encoding was last written.
type ThreadState struct {
	regsGeneration int
	armed          map[int]string // slot index -> Request.Key
	stepSlot       int
}

// NewThreadState creates bookkeeping for a freshly attached thread.
func NewThreadState() *ThreadState {
	return &ThreadState{armed: map[int]string{}, stepSlot: -1, regsGeneration: -1}
}

// NeedsReencode reports whether st's encoding predates m's generation
// (spec §4.J "hw_bps_generation ahead of the thread's
// hw_bps_regs_generation").
func (m *Mux) NeedsReencode(st *ThreadState) bool {
	return st.regsGeneration < m.generation
}

// Reencode rewrites every hardware slot for one resume: planted
// breakpoints/watchpoints not excluded by currentPC or stepOverKey, the
// reserved single-step slot if step is non-nil, and a disabled-but-
// nonzero pattern everywhere else (spec §4.J).
func (m *Mux) Reencode(p Prober, st *ThreadState, reqs []Request, step *StepRequest, currentPC uint64, stepOverKey string) error {
	insnSlots := make([]int, 0, m.Info.BPCount)
	for i := 0; i < m.Info.BPCount; i++ {
		insnSlots = append(insnSlots, i)
	}
	watchSlots := make([]int, 0, m.Info.WPCount)
	for i := 0; i < m.Info.WPCount; i++ {
		watchSlots = append(watchSlots, m.Info.BPCount+i)
	}

	newArmed := map[int]string{}
	stepSlot := -1

	// Reserve the last instruction slot for single-stepping, per the
	// ARM kernel's own mismatch-mode single-step emulation, before
	// allocating user breakpoints into the remaining slots.
	if step != nil && step.Mode != StepNone && len(insnSlots) > 0 {
		stepSlot = insnSlots[len(insnSlots)-1]
		insnSlots = insnSlots[:len(insnSlots)-1]
	}

	nextInsn := 0
	nextWatch := 0
	for _, req := range reqs {
		if req.Key == stepOverKey {
			continue
		}
		if !req.isWatch() {
			if req.Addr == currentPC {
				continue
			}
			if nextInsn >= len(insnSlots) {
				continue // out of instruction slots; spec leaves overflow unreported here
			}
			slot := insnSlots[nextInsn]
			nextInsn++
			if err := p.SetHBPSlot(slot*2, buildValueReg(req.Addr)); err != nil {
				return fmt.Errorf("hwbp: set value slot %d: %w", slot, err)
			}
			if err := p.SetHBPSlot(valueToControlIndex(slot), buildControlReg(req)); err != nil {
				return fmt.Errorf("hwbp: set control slot %d: %w", slot, err)
			}
			newArmed[slot] = req.Key
		} else {
			if nextWatch >= len(watchSlots) {
				continue
			}
			slot := watchSlots[nextWatch]
			nextWatch++
			if err := p.SetHBPSlot(slot*2, buildValueReg(req.Addr)); err != nil {
				return fmt.Errorf("hwbp: set value slot %d: %w", slot, err)
			}
			if err := p.SetHBPSlot(valueToControlIndex(slot), buildControlReg(req)); err != nil {
				return fmt.Errorf("hwbp: set control slot %d: %w", slot, err)
			}
			newArmed[slot] = req.Key
		}
	}

	if stepSlot != -1 {
		ctrl := uint32(ctrlEnable | (0xF << ctrlBASShift) | ctrlMismatch)
		var value uint32
		switch step.Mode {
		case StepTarget:
			value = buildValueReg(step.TargetAddr)
		case StepCurrentMismatch:
			value = buildValueReg(currentPC)
		}
		if err := p.SetHBPSlot(stepSlot*2, value); err != nil {
			return fmt.Errorf("hwbp: set step value slot %d: %w", stepSlot, err)
		}
		if err := p.SetHBPSlot(valueToControlIndex(stepSlot), ctrl); err != nil {
			return fmt.Errorf("hwbp: set step control slot %d: %w", stepSlot, err)
		}
		newArmed[stepSlot] = ""
	}

	for _, slot := range append(append([]int{}, insnSlots...), watchSlots...) {
		if _, used := newArmed[slot]; used {
			continue
		}
		if err := p.SetHBPSlot(valueToControlIndex(slot), disabledPattern); err != nil {
			return fmt.Errorf("hwbp: set disabled pattern slot %d: %w", slot, err)
		}
	}

	st.armed = newArmed
	st.stepSlot = stepSlot
	st.regsGeneration = m.generation
	return nil
}

// valueToControlIndex derives the companion control-register slot
// index for a value-register slot index, assuming the ABI interleaves
// value/control pairs (value at 2*n, control at 2*n+1).
func valueToControlIndex(slot int) int { return slot*2 + 1 }

// SigInfo is the subset of target.SigInfo a watchpoint/single-step hit
// check needs; declared independently to avoid importing package
// target, mirroring Prober above.
type SigInfo struct {
	Signo int32
	Code  int32
	Errno int32
	Addr  uint64
}

const sigTrap = 5

// DetectHit inspects a stop's signal info against st's armed slots,
// returning the Request keys that fired: an instruction slot whose
// address matches pc, or a watchpoint slot whose [addr, addr+length)
// range contains the hardware-reported fault address (spec §4.J "On
// suspend ...").
func DetectHit(st *ThreadState, pc uint64, sig SigInfo, reqByKey map[string]Request) []string {
	if sig.Signo != sigTrap || sig.Code&0xFFFF != 0x0004 || sig.Errno >= 0 {
		return nil
	}
	var hits []string
	for slot, key := range st.armed {
		if slot == st.stepSlot || key == "" {
			continue
		}
		req, ok := reqByKey[key]
		if !ok {
			continue
		}
		if !req.isWatch() {
			if req.Addr == pc {
				hits = append(hits, key)
			}
			continue
		}
		length := req.Length
		if length <= 0 {
			length = 4
		}
		if sig.Addr >= req.Addr && sig.Addr < req.Addr+uint64(length) {
			hits = append(hits, key)
		}
	}
	return hits
}
