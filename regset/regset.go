// Package regset declares the per-architecture register map: byte offset
// into the raw register-snapshot blob, size, DWARF numbering, and role.
//
// Grounded on the register aliases and role accessors of
// lookbusy1344-arm_emulator's vm/cpu.go, generalized from a fixed ARM2
// array into a discovered, ordered vector that can grow with detected
// CPU features (VFP).
package regset

// Role names a well-known register purpose resolved to a concrete
// definition. Only one register per architecture may claim a given role.
type Role string

const (
	RolePC   Role = "PC"
	RoleSP   Role = "SP"
	RoleFP   Role = "FP"
	RoleLR   Role = "LR"
	RoleCPSR Role = "CPSR"
)

// Def is a single register definition.
type Def struct {
	Name       string
	Offset     int // byte offset into the raw register-snapshot blob
	Size       int
	DWARFID    int
	EHFrameID  int
	BigEndian  bool
	Role       Role   // "" if this register has no well-known role
	Parent     string // parent group name, "" for top-level registers
	Readable   bool
	Writable   bool
	FloatPoint bool
}

// File is the immutable, ordered register set for one architecture,
// discovered once at startup.
type File struct {
	defs   []Def
	byName map[string]int
	byRole map[Role]int
}

// Features describes CPU extensions detected at startup that influence
// which registers are exposed.
type Features struct {
	VFP         bool
	VFPDoubles  int // number of 64-bit D registers
	VFPQuads    int // number of 128-bit Q registers (0 if not Advanced SIMD)
}

// ARMUserRegsOffset is the byte offset of uregs[i] within the Linux ARM
// `user_regs` ptrace snapshot (18 32-bit slots: r0..r15, cpsr, orig_r0).
func armUserRegsOffset(i int) int { return i * 4 }

// BuildARM constructs the register file for 32-bit ARM, appending VFP
// register groups when the probe reports them present.
func BuildARM(features Features) *File {
	f := &File{byName: map[string]int{}, byRole: map[Role]int{}}

	names := [16]string{
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
		"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
	}
	roles := map[int]Role{11: RoleFP, 13: RoleSP, 14: RoleLR, 15: RolePC}
	// DWARF register numbers for ARM match the core register index 0..15.
	for i, name := range names {
		f.add(Def{
			Name:      name,
			Offset:    armUserRegsOffset(i),
			Size:      4,
			DWARFID:   i,
			EHFrameID: i,
			Role:      roles[i],
			Readable:  true,
			Writable:  i != 15, // PC is written via a dedicated path (§4.H/§4.J), not raw poke
		})
	}
	f.add(Def{
		Name:      "cpsr",
		Offset:    armUserRegsOffset(16),
		Size:      4,
		DWARFID:   128, // ARM DWARF assigns CPSR no canonical low number; use the EABI extension slot
		EHFrameID: 128,
		Role:      RoleCPSR,
		Readable:  true,
		Writable:  true,
	})

	if features.VFP {
		f.appendVFP(features)
	}

	return f
}

// appendVFP appends floating-point registers grouped under synthetic
// parent nodes reflecting the detected vector widths, mirroring the
// teacher's CPSR/flags grouping but generalized to FP register banks.
func (f *File) appendVFP(features Features) {
	const vfpBase = 0x100 // VFP state lives in a separate ptrace regset; offsets are relative to it

	doubles := features.VFPDoubles
	if doubles == 0 {
		doubles = 32
	}
	for i := 0; i < doubles; i++ {
		f.add(Def{
			Name:       fmtReg("d", i),
			Offset:     vfpBase + i*8,
			Size:       8,
			DWARFID:    256 + i,
			EHFrameID:  256 + i,
			Parent:     "64-bit",
			Readable:   true,
			Writable:   true,
			FloatPoint: true,
		})
		if i%2 == 0 {
			f.add(Def{
				Name:       fmtReg("s", i*2),
				Offset:     vfpBase + i*8,
				Size:       4,
				DWARFID:    64 + i*2,
				EHFrameID:  64 + i*2,
				Parent:     "32-bit",
				Readable:   true,
				Writable:   true,
				FloatPoint: true,
			})
			f.add(Def{
				Name:       fmtReg("s", i*2+1),
				Offset:     vfpBase + i*8 + 4,
				Size:       4,
				DWARFID:    64 + i*2 + 1,
				EHFrameID:  64 + i*2 + 1,
				Parent:     "32-bit",
				Readable:   true,
				Writable:   true,
				FloatPoint: true,
			})
		}
	}
	if features.VFPQuads > 0 {
		for i := 0; i < features.VFPQuads; i++ {
			f.add(Def{
				Name:       fmtReg("q", i),
				Offset:     vfpBase + i*16,
				Size:       16,
				DWARFID:    512 + i,
				EHFrameID:  512 + i,
				Parent:     "128-bit",
				Readable:   true,
				Writable:   true,
				FloatPoint: true,
			})
		}
	}
}

func (f *File) add(d Def) {
	idx := len(f.defs)
	f.defs = append(f.defs, d)
	f.byName[d.Name] = idx
	if d.Role != "" {
		f.byRole[d.Role] = idx
	}
}

// All returns the ordered register definitions.
func (f *File) All() []Def { return f.defs }

// Size returns the byte length of the raw core-register snapshot
// (PTRACE_GETREGSET/NT_PRSTATUS), i.e. excluding any floating-point
// register group appended by appendVFP, which lives in a separate
// ptrace regset and is not part of this buffer.
func (f *File) Size() int {
	size := 0
	for _, d := range f.defs {
		if d.FloatPoint {
			continue
		}
		if end := d.Offset + d.Size; end > size {
			size = end
		}
	}
	return size
}

// ByName looks up a register definition by name.
func (f *File) ByName(name string) (Def, bool) {
	idx, ok := f.byName[name]
	if !ok {
		return Def{}, false
	}
	return f.defs[idx], true
}

// ByRole resolves a well-known role ("PC", "SP", "FP", "LR") to its
// concrete definition.
func (f *File) ByRole(role Role) (Def, bool) {
	idx, ok := f.byRole[role]
	if !ok {
		return Def{}, false
	}
	return f.defs[idx], true
}

func fmtReg(prefix string, n int) string {
	const digits = "0123456789"
	if n < 10 {
		return prefix + string(digits[n])
	}
	return prefix + string(digits[n/10]) + string(digits[n%10])
}
