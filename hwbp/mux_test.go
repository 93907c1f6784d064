package hwbp_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/hwbp"
)

type fakeProber struct {
	info  uint32
	slots map[int]uint32
}

func newFakeProber(bpCount, wpCount int) *fakeProber {
	info := uint32(bpCount) | uint32(wpCount)<<8
	return &fakeProber{info: info, slots: map[int]uint32{}}
}

func (f *fakeProber) GetHBPInfo() (uint32, error) { return f.info, nil }
func (f *fakeProber) GetHBPSlot(index int) (uint32, error) {
	return f.slots[index], nil
}
func (f *fakeProber) SetHBPSlot(index int, value uint32) error {
	f.slots[index] = value
	return nil
}

func TestDecodeInfo(t *testing.T) {
	info := hwbp.DecodeInfo(uint32(2) | uint32(1)<<8)
	if info.BPCount != 2 || info.WPCount != 1 {
		t.Fatalf("unexpected decode: %+v", info)
	}
}

func TestReencodeArmsInstructionBreakpoint(t *testing.T) {
	p := newFakeProber(2, 1)
	mux, err := hwbp.Probe(p)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	mux.Bump()

	st := hwbp.NewThreadState()
	if !mux.NeedsReencode(st) {
		t.Fatal("freshly created thread state should need reencoding")
	}

	reqs := []hwbp.Request{{Key: "bp-1", Addr: 0x8100, Access: hwbp.AccessExecute}}
	if err := mux.Reencode(p, st, reqs, nil, 0x8000, ""); err != nil {
		t.Fatalf("reencode: %v", err)
	}
	if mux.NeedsReencode(st) {
		t.Fatal("reencode should clear staleness")
	}

	sig := hwbp.SigInfo{Signo: 5, Code: 0x0004, Errno: -1}
	hits := hwbp.DetectHit(st, 0x8100, sig, map[string]hwbp.Request{"bp-1": reqs[0]})
	if len(hits) != 1 || hits[0] != "bp-1" {
		t.Fatalf("expected hit on bp-1, got %v", hits)
	}
}

func TestReencodeSkipsBreakpointAtCurrentPC(t *testing.T) {
	p := newFakeProber(2, 0)
	mux, _ := hwbp.Probe(p)
	mux.Bump()
	st := hwbp.NewThreadState()

	reqs := []hwbp.Request{{Key: "bp-1", Addr: 0x8000, Access: hwbp.AccessExecute}}
	if err := mux.Reencode(p, st, reqs, nil, 0x8000, ""); err != nil {
		t.Fatalf("reencode: %v", err)
	}

	sig := hwbp.SigInfo{Signo: 5, Code: 0x0004, Errno: -1}
	hits := hwbp.DetectHit(st, 0x8000, sig, map[string]hwbp.Request{"bp-1": reqs[0]})
	if len(hits) != 0 {
		t.Fatalf("breakpoint at current PC should not be armed, got hits %v", hits)
	}
}

func TestReencodeArmsWatchpointRange(t *testing.T) {
	p := newFakeProber(2, 2)
	mux, _ := hwbp.Probe(p)
	mux.Bump()
	st := hwbp.NewThreadState()

	reqs := []hwbp.Request{{Key: "wp-1", Addr: 0x9000, Length: 4, Access: hwbp.AccessWrite}}
	if err := mux.Reencode(p, st, reqs, nil, 0x8000, ""); err != nil {
		t.Fatalf("reencode: %v", err)
	}

	sig := hwbp.SigInfo{Signo: 5, Code: 0x0004, Errno: -1, Addr: 0x9002}
	hits := hwbp.DetectHit(st, 0x8000, sig, map[string]hwbp.Request{"wp-1": reqs[0]})
	if len(hits) != 1 || hits[0] != "wp-1" {
		t.Fatalf("expected hit on wp-1, got %v", hits)
	}
}

func TestReencodeStepSlotReservedFromInstructionBank(t *testing.T) {
	p := newFakeProber(1, 0)
	mux, _ := hwbp.Probe(p)
	mux.Bump()
	st := hwbp.NewThreadState()

	step := &hwbp.StepRequest{Mode: hwbp.StepTarget, TargetAddr: 0x8104}
	if err := mux.Reencode(p, st, nil, step, 0x8100, ""); err != nil {
		t.Fatalf("reencode: %v", err)
	}
	// With only one instruction slot, it must be consumed by stepping,
	// leaving no room for a simultaneous user breakpoint in that bank.
	reqs := []hwbp.Request{{Key: "bp-1", Addr: 0x9000, Access: hwbp.AccessExecute}}
	if err := mux.Reencode(p, st, reqs, step, 0x8100, ""); err != nil {
		t.Fatalf("reencode: %v", err)
	}
	sig := hwbp.SigInfo{Signo: 5, Code: 0x0004, Errno: -1}
	hits := hwbp.DetectHit(st, 0x9000, sig, map[string]hwbp.Request{"bp-1": reqs[0]})
	if len(hits) != 0 {
		t.Fatalf("user breakpoint should not be armed while stepping holds the only slot, got hits %v", hits)
	}
}
