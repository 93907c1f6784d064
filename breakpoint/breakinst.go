// Package breakpoint implements the break-instruction table (spec §4.E),
// the breakpoint registry (§4.F), the replant engine (§4.G) and the
// skip-breakpoint sequencer (§4.H).
//
// Grounded in shape on lookbusy1344-arm_emulator's debugger/breakpoints.go
// (address-map with reference counting) and debugger/debugger.go's
// ShouldBreak/SetStepOver sequencing idiom, generalized from a
// single-process address space to per-memory-owner instances shared by
// reference-counted user breakpoints.
package breakpoint

import (
	"fmt"

	"github.com/lookbusy1344/tcf-agent/ctx"
)

// MemIO is the raw (non-transparent) memory access a memory-owning
// context exposes; the breakpoint package is the only consumer that is
// allowed to see real code bytes including planted traps.
type MemIO interface {
	ReadMem(owner *ctx.Context, addr uint64, buf []byte) error
	WriteMem(owner *ctx.Context, addr uint64, buf []byte) error
}

// BreakInst is one planted (or pending) software breakpoint instruction,
// address-keyed per memory owner (spec §3 "Break instruction").
type BreakInst struct {
	MemOwner  *ctx.Context
	Addr      uint64
	CtxCnt    int
	SavedCode []byte
	Planted   bool
	Skip      bool
	Err       error
	Refs      []*UserBP
}

func (b *BreakInst) removeRef(bp *UserBP) {
	out := b.Refs[:0]
	for _, r := range b.Refs {
		if r != bp {
			out = append(out, r)
		}
	}
	b.Refs = out
}

// Table is the address-hash-indexed break-instruction set (spec §4.E).
type Table struct {
	entries   map[string]*BreakInst
	io        MemIO
	instBytes []byte // architecture break-instruction bytes, e.g. ARM's F0 01 F0 E7
}

// NewTable creates an empty break-instruction table for one architecture.
func NewTable(io MemIO, instBytes []byte) *Table {
	return &Table{entries: map[string]*BreakInst{}, io: io, instBytes: instBytes}
}

func key(owner *ctx.Context, addr uint64) string {
	return fmt.Sprintf("%s@%x", owner.ID, addr)
}

// Find returns the entry for (ctxMem, addr), re-homing it first if its
// stored owner has died or is running (plant/unplant requires a stopped
// memory owner).
func (t *Table) Find(ctxMem *ctx.Context, addr uint64) *BreakInst {
	bi, ok := t.entries[key(ctxMem, addr)]
	if ok {
		return t.rehomeIfNeeded(bi)
	}
	// The entry may be stored under a different (now-dead) owner that
	// shares this address space; scan for a same-address sibling.
	for _, e := range t.entries {
		if e.Addr == addr && e.MemOwner != ctxMem {
			if e.MemOwner.Exited || !e.MemOwner.Stopped {
				return t.rehome(e, ctxMem)
			}
		}
	}
	return nil
}

func (t *Table) rehomeIfNeeded(bi *BreakInst) *BreakInst {
	if bi.MemOwner.Live() && bi.MemOwner.Stopped {
		return bi
	}
	for _, sibling := range bi.MemOwner.Children {
		if sibling.Live() && sibling.Stopped {
			return t.rehome(bi, sibling)
		}
	}
	return bi
}

func (t *Table) rehome(bi *BreakInst, newOwner *ctx.Context) *BreakInst {
	if bi.Planted {
		_ = t.unplant(bi)
	}
	delete(t.entries, key(bi.MemOwner, bi.Addr))
	bi.MemOwner = newOwner
	t.entries[key(newOwner, bi.Addr)] = bi
	if bi.Err == nil {
		_ = t.plant(bi)
	}
	return bi
}

// AddRef finds or creates the entry at (owner, addr) and registers bp as
// a referrer. Entries are keyed per owner, so each owning context gets
// its own entry; a new entry starts with CtxCnt 1 and AddRef never
// increments it.
func (t *Table) AddRef(bp *UserBP, owner *ctx.Context, addr uint64) *BreakInst {
	k := key(owner, addr)
	bi, ok := t.entries[k]
	if !ok {
		bi = &BreakInst{MemOwner: owner, Addr: addr, CtxCnt: 1}
		t.entries[k] = bi
	}
	for _, r := range bi.Refs {
		if r == bp {
			return bi
		}
	}
	bi.Refs = append(bi.Refs, bp)
	return bi
}

// ClearRefs empties every entry's referrer list in preparation for a
// replant pass (spec §4.G step 1).
func (t *Table) ClearRefs() {
	for _, bi := range t.entries {
		bi.Refs = bi.Refs[:0]
	}
}

// Compact removes zero-ref entries (unplanting first), plants newly
// introduced entries, and re-plants entries whose ownership changed,
// per spec §4.E "clear_refs() + compact()".
func (t *Table) Compact() {
	for k, bi := range t.entries {
		if len(bi.Refs) == 0 {
			if bi.Planted {
				_ = t.unplant(bi)
			}
			delete(t.entries, k)
			continue
		}
		if !bi.Planted && !bi.Skip {
			_ = t.plant(bi)
		}
	}
}

// plant reads break_inst_size bytes at addr, saves them, and writes the
// architecture break-instruction bytes. Errors are captured on the
// entry, never raised, per spec §4.E "Plant contract".
func (t *Table) plant(bi *BreakInst) error {
	if !bi.MemOwner.Live() || !bi.MemOwner.Stopped {
		bi.Err = fmt.Errorf("breakpoint: memory owner %s not stopped", bi.MemOwner.ID)
		return bi.Err
	}
	saved := make([]byte, len(t.instBytes))
	if err := t.io.ReadMem(bi.MemOwner, bi.Addr, saved); err != nil {
		bi.Err = err
		return err
	}
	if err := t.io.WriteMem(bi.MemOwner, bi.Addr, t.instBytes); err != nil {
		bi.Err = err
		return err
	}
	bi.SavedCode = saved
	bi.Planted = true
	bi.Err = nil
	return nil
}

// unplant restores the saved original bytes.
func (t *Table) unplant(bi *BreakInst) error {
	if !bi.Planted {
		return nil
	}
	if err := t.io.WriteMem(bi.MemOwner, bi.Addr, bi.SavedCode); err != nil {
		bi.Err = err
		return err
	}
	bi.Planted = false
	return nil
}

// All returns every entry currently in the table; used by tests and the
// hardware-BP multiplexer's armed-slot bookkeeping.
func (t *Table) All() []*BreakInst {
	out := make([]*BreakInst, 0, len(t.entries))
	for _, bi := range t.entries {
		out = append(out, bi)
	}
	return out
}

// TransparentMem wraps a raw MemIO and a break-instruction table to
// implement the §4.B memory-read/write transparency invariant: clients
// never observe or clobber planted breakpoint bytes.
type TransparentMem struct {
	Raw   MemIO
	Table *Table
}

// ReadMem reads [addr, addr+len(buf)) and overwrites any bytes covered
// by a planted break instruction with its saved original bytes.
func (m *TransparentMem) ReadMem(owner *ctx.Context, addr uint64, buf []byte) error {
	if err := m.Raw.ReadMem(owner, addr, buf); err != nil {
		return err
	}
	end := addr + uint64(len(buf))
	for _, bi := range m.Table.entries {
		if bi.MemOwner != owner || !bi.Planted {
			continue
		}
		biEnd := bi.Addr + uint64(len(bi.SavedCode))
		if bi.Addr >= end || biEnd <= addr {
			continue
		}
		lo := max64(bi.Addr, addr)
		hi := min64(biEnd, end)
		copy(buf[lo-addr:hi-addr], bi.SavedCode[lo-bi.Addr:hi-bi.Addr])
	}
	return nil
}

// WriteMem updates any intersecting break instruction's saved_code with
// the incoming bytes, splices the real break-instruction bytes back into
// the outgoing write, then performs the write.
func (m *TransparentMem) WriteMem(owner *ctx.Context, addr uint64, buf []byte) error {
	out := append([]byte(nil), buf...)
	end := addr + uint64(len(buf))
	for _, bi := range m.Table.entries {
		if bi.MemOwner != owner || !bi.Planted {
			continue
		}
		biEnd := bi.Addr + uint64(len(bi.SavedCode))
		if bi.Addr >= end || biEnd <= addr {
			continue
		}
		lo := max64(bi.Addr, addr)
		hi := min64(biEnd, end)
		copy(bi.SavedCode[lo-bi.Addr:hi-bi.Addr], buf[lo-addr:hi-addr])
		copy(out[lo-addr:hi-addr], m.Table.instBytes[lo-bi.Addr:hi-bi.Addr])
	}
	return m.Raw.WriteMem(owner, addr, out)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
