package armstep

// MemReader reads target memory for instructions that load into PC;
// the hook exists so this package never depends on ctx or target
// directly, matching the dependency-injection idiom used by ctx.Hooks.
type MemReader interface {
	ReadWord(addr uint32) (uint32, error)
}

const (
	kernelHelperBase = 0xFFFF0000
	bxMask           = 0x0FFFFFF0
	bxPattern        = 0x012FFF10 // 0x012FFF1_ with Rm in bits 3:0
)

// Predict computes the address the CPU will execute after the
// instruction currently at regs.PC(), without executing it (spec §4.I).
// It is used to plant a transient one-shot breakpoint emulating
// single-step on hosts whose OS interface offers none.
func Predict(inst uint32, regs *Regs, mem MemReader) (uint64, error) {
	cond := Cond((inst >> 28) & 0xF)
	if !Evaluate(cond, FlagsFromCPSR(regs.CPSR)) {
		return uint64(regs.PC() + 4), nil
	}

	pc := regs.PC()
	fallback := uint64(pc + 4)

	top3 := (inst >> 25) & 0x7
	var (
		predicted uint64
		has       bool
		err       error
	)

	switch top3 {
	case 0, 1:
		predicted, has, err = predictDataProcessing(inst, regs)
	case 2, 3:
		predicted, has, err = predictLoad(inst, regs, mem)
	case 4:
		predicted, has, err = predictLDM(inst, regs, mem)
	case 5:
		predicted, has = predictBranch(inst, pc), true
	}
	if err != nil {
		return 0, err
	}
	if !has {
		return fallback, nil
	}

	if predicted >= kernelHelperBase {
		return uint64(regs.R[14]), nil
	}
	return predicted, nil
}

// predictDataProcessing handles bits[27:25] == 000/001: data processing
// and BX, the only two encodings in that space able to alter the PC.
func predictDataProcessing(inst uint32, regs *Regs) (uint64, bool, error) {
	if inst&bxMask == bxPattern {
		rm := int(inst & 0xF)
		return uint64(regs.R[rm] &^ 1), true, nil
	}

	immediate := (inst >> 25) & 0x1
	rd := int((inst >> 12) & 0xF)
	if rd != 15 {
		return 0, false, nil
	}
	rn := int((inst >> 16) & 0xF)
	opcode := (inst >> 21) & 0xF

	op1 := regs.Get(rn, false)

	var op2 uint32
	if immediate == 1 {
		imm := inst & 0xFF
		rotation := ((inst >> 8) & 0xF) * 2
		if rotation == 0 {
			op2 = imm
		} else {
			op2 = (imm >> rotation) | (imm << (32 - rotation))
		}
	} else {
		regShift := (inst>>4)&0x1 == 1
		// Rn's pre-fetch adjustment also depends on whether *this*
		// instruction uses a register shift, independent of op2's Rm.
		op1 = regs.Get(rn, regShift)
		op2 = shifterOperand(inst&0xFFF, regs)
	}

	const (
		opAND = 0x0
		opEOR = 0x1
		opSUB = 0x2
		opRSB = 0x3
		opADD = 0x4
		opADC = 0x5
		opSBC = 0x6
		opRSC = 0x7
		opORR = 0xC
		opMOV = 0xD
		opBIC = 0xE
		opMVN = 0xF
	)

	f := FlagsFromCPSR(regs.CPSR)
	carryIn := uint32(0)
	if f.C {
		carryIn = 1
	}

	var result uint32
	switch opcode {
	case opAND:
		result = op1 & op2
	case opEOR:
		result = op1 ^ op2
	case opSUB:
		result = op1 - op2
	case opRSB:
		result = op2 - op1
	case opADD:
		result = op1 + op2
	case opADC:
		result = op1 + op2 + carryIn
	case opSBC:
		result = op1 - op2 - (1 - carryIn)
	case opRSC:
		result = op2 - op1 - (1 - carryIn)
	case opORR:
		result = op1 | op2
	case opMOV:
		result = op2
	case opBIC:
		result = op1 &^ op2
	case opMVN:
		result = ^op2
	default:
		// TST/TEQ/CMP/CMN never write Rd, so Rd can't legally be 15 here.
		return 0, false, nil
	}
	return uint64(result), true, nil
}

// predictLoad handles bits[27:25] == 010/011: single load/store,
// predicting only a word/byte load into PC.
func predictLoad(inst uint32, regs *Regs, mem MemReader) (uint64, bool, error) {
	load := (inst >> 20) & 0x1
	rd := int((inst >> 12) & 0xF)
	if load != 1 || rd != 15 {
		return 0, false, nil
	}

	byteTransfer := (inst >> 22) & 0x1
	writeBack := (inst >> 21) & 0x1
	preIndexed := (inst >> 24) & 0x1
	addOffset := (inst >> 23) & 0x1
	immediate := (inst>>25)&0x1 == 0

	rn := int((inst >> 16) & 0xF)
	baseAddr := regs.Get(rn, false)

	var offset uint32
	if immediate {
		offset = inst & 0xFFF
	} else {
		rm := int(inst & 0xF)
		shiftType := ShiftType((inst >> 5) & 0x3)
		shiftAmount := int((inst >> 7) & 0x1F)
		if shiftType == ShiftROR && shiftAmount == 0 {
			shiftType = ShiftRRX
		}
		offset = PerformShift(regs.Get(rm, false), shiftAmount, shiftType, FlagsFromCPSR(regs.CPSR).C)
	}

	var effectiveAddr uint32
	if addOffset == 1 {
		effectiveAddr = baseAddr + offset
	} else {
		effectiveAddr = baseAddr - offset
	}

	var accessAddr uint32
	if preIndexed == 1 {
		accessAddr = effectiveAddr
	} else {
		accessAddr = baseAddr
	}
	_ = writeBack

	value, err := mem.ReadWord(accessAddr &^ 0x3)
	if err != nil {
		return 0, false, err
	}
	if byteTransfer == 1 {
		value &= 0xFF
	}
	return uint64(value), true, nil
}

// predictLDM handles bits[27:25] == 100: load/store multiple,
// predicting only an LDM that restores PC (bit 15 of the register
// list), computing the memory slot holding it from the U/P addressing
// mode.
func predictLDM(inst uint32, regs *Regs, mem MemReader) (uint64, bool, error) {
	load := (inst >> 20) & 0x1
	psr := (inst >> 22) & 0x1
	increment := (inst >> 23) & 0x1
	preIndex := (inst >> 24) & 0x1
	rn := int((inst >> 16) & 0xF)
	regList := inst & 0xFFFF

	if load != 1 || psr != 0 || rn == 15 || regList&(1<<15) == 0 {
		return 0, false, nil
	}

	numRegs := 0
	for i := 0; i < 16; i++ {
		if regList&(1<<i) != 0 {
			numRegs++
		}
	}

	baseAddr := regs.R[rn]
	var start uint32
	if increment == 1 {
		if preIndex == 1 {
			start = baseAddr + 4
		} else {
			start = baseAddr
		}
	} else {
		offset := uint32(numRegs * 4)
		if preIndex == 1 {
			start = baseAddr - offset
		} else {
			start = baseAddr - offset + 4
		}
	}

	slot := 0
	for i := 0; i < 15; i++ {
		if regList&(1<<i) != 0 {
			slot++
		}
	}
	pcAddr := start + uint32(slot*4)

	value, err := mem.ReadWord(pcAddr &^ 0x3)
	if err != nil {
		return 0, false, err
	}
	return uint64(value), true, nil
}

// predictBranch handles bits[27:25] == 101: B/BL, a sign-extended
// 24-bit word offset relative to PC+8.
func predictBranch(inst uint32, pc uint32) uint64 {
	offset := inst & 0x00FFFFFF
	if offset&0x00800000 != 0 {
		offset |= 0xFF000000
	}
	return uint64(pc + 8 + (offset << 2))
}
