// Package hwbp multiplexes a small fixed bank of ARM hardware debug
// registers (instruction breakpoints and data watchpoints) onto an
// arbitrary number of user-visible breakpoints (spec §4.J).
//
// There is no teacher precedent for real hardware debug registers —
// lookbusy1344-arm_emulator emulates ARM2 instruction execution, not a
// host debug-register ABI — so this package is grounded on the
// documented Linux/ARM PTRACE_GETHBPREGS/SETHBPREGS slot model (the
// same ABI package target's ptrace_linux.go talks to) rather than on
// any example file, and follows the teacher's struct-plus-plain-method
// shape (e.g. breakpoint.Table) for its own slot table.
package hwbp

// AccessType selects what a slot traps on: instruction fetch for a
// breakpoint slot, or data read/write for a watchpoint slot.
type AccessType uint8

const (
	AccessExecute AccessType = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

// DebugInfo is the decoded form of the single 32-bit probe word
// returned by GetHBPInfo: instruction-slot count, watchpoint-slot
// count, watchpoint granularity in bytes, and a debug-architecture
// version tag.
type DebugInfo struct {
	BPCount int
	WPCount int
	WPSize  int
	Arch    int
}

// DecodeInfo unpacks the probe word into its four byte-wide fields, per
// the wire format arch<<24 | wp_size<<16 | wp_cnt<<8 | bp_cnt.
func DecodeInfo(word uint32) DebugInfo {
	return DebugInfo{
		BPCount: int(word & 0xFF),
		WPCount: int((word >> 8) & 0xFF),
		WPSize:  int((word >> 16) & 0xFF),
		Arch:    int((word >> 24) & 0xFF),
	}
}

// Request is one user-visible breakpoint or watchpoint asking for a
// hardware slot. Key is an opaque identifier chosen by the caller (the
// agent uses the break instruction's address in hex) so this package
// never needs to import the breakpoint package.
type Request struct {
	Key    string
	Addr   uint64
	Length int
	Access AccessType
}

func (r Request) isWatch() bool { return r.Access != AccessExecute }

// SteppingMode selects how the reserved single-step slot traps.
type SteppingMode int

const (
	StepNone SteppingMode = iota
	// StepTarget arms mismatch mode against the predicted landing
	// address: the CPU traps on every instruction except one at
	// TargetAddr (spec §4.J "mode 1, mismatch stepping").
	StepTarget
	// StepCurrentMismatch arms mismatch mode against the current PC:
	// the CPU traps on every instruction except the one it is already
	// sitting on, i.e. the very next instruction executed (spec §4.J
	// "mode 2, ... current PC ... with the mismatch bit set").
	StepCurrentMismatch
)

// StepRequest describes the reserved single-step slot for one resume.
type StepRequest struct {
	Mode       SteppingMode
	TargetAddr uint64
}

// Control register bit layout (ARM BCR/WCR, simplified to the fields
// this package needs).
const (
	ctrlEnable    = 1 << 0
	ctrlAccessLSB = 3 // bits [4:3]: load/store access type for watchpoints
	ctrlBASShift  = 5 // bits [8:5]: byte address select
	ctrlMismatch  = 1 << 22
)

// byteEnableMask computes the BAS nibble covering [addr, addr+length)
// within its containing aligned word, per spec §4.J "byte-enable mask
// from (addr, length)".
func byteEnableMask(addr uint64, length int) uint32 {
	if length <= 0 || length > 4 {
		length = 4
	}
	lowBits := uint(addr & 0x3)
	mask := (uint32(1)<<uint(length) - 1) << lowBits
	return mask & 0xF
}

func buildValueReg(addr uint64) uint32 {
	return uint32(addr) &^ 0x3
}

func buildControlReg(req Request) uint32 {
	bas := byteEnableMask(req.Addr, req.Length)
	ctrl := ctrlEnable | (bas << ctrlBASShift)
	if req.isWatch() {
		access := uint32(AccessReadWrite)
		switch req.Access {
		case AccessRead:
			access = 1
		case AccessWrite:
			access = 2
		case AccessReadWrite:
			access = 3
		}
		ctrl |= access << ctrlAccessLSB
	}
	return ctrl
}

// disabledPattern is a nonzero-but-disabled control word for slots not
// presently in use (spec §4.J "the OS rejects zero").
const disabledPattern = 0xF << ctrlBASShift
