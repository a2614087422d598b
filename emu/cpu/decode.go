package cpu

import "github.com/ev6sim/alphacore/emu/grain"

// Memory-format opcodes (Ra/Rb/disp16). Mirrored here rather than
// exported from emu/grain, since decode is the pipeline's job and the
// grain registry only needs the already-decoded Form.
const (
	opLDBU = 0x0a
	opLDWU = 0x0c
	opSTW  = 0x0d
	opSTB  = 0x0e
	opLDL  = 0x28
	opLDQ  = 0x29
	opSTL  = 0x2c
	opSTQ  = 0x2d
	opJMP  = 0x1a
	opMisc = 0x18
	opCall = 0x00

	opBR  = 0x30
	opBSR = 0x34
	opBEQ = 0x39
	opBNE = 0x3d
	opBLT = 0x3a
	opBLE = 0x3b
	opBGT = 0x3f
	opBGE = 0x3e

	// opFloatT is the IEEE T_floating operate format: Fa/Fb/Fc register
	// fields identical in position to the integer operate format, but an
	// 11-bit function code (bits 15:5) rather than 7, and no literal
	// operand — FP ops never take an immediate.
	opFloatT = 0x16
)

func isOperateOpcode(op uint8) bool { return op >= 0x10 && op <= 0x13 }

func isBranchOpcode(op uint8) bool {
	switch op {
	case opBR, opBSR, opBEQ, opBNE, opBLT, opBLE, opBGT, opBGE:
		return true
	default:
		return false
	}
}

func isLoadOpcode(op uint8) bool {
	switch op {
	case opLDL, opLDQ, opLDBU, opLDWU:
		return true
	default:
		return false
	}
}

func isMemoryOpcode(op uint8) bool {
	switch op {
	case opLDL, opLDQ, opLDBU, opLDWU, opSTL, opSTQ, opSTB, opSTW:
		return true
	default:
		return false
	}
}

func sext(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Decode exposes the instruction decoder to callers outside the
// package — the disassembler and the operator shell's "examine"
// verb both need to turn a raw word into a Form without duplicating
// this field layout.
func Decode(raw uint32) grain.Form { return decode(raw) }

// decode implements the memory-format field mapping from §4.2: opcode
// in bits 31:26, Ra in 25:21, Rb in 20:16, a 16-bit signed displacement
// in 15:0 — generalized per format family (operate, memory, branch,
// misc, CALL_PAL).
func decode(raw uint32) grain.Form {
	f := grain.Form{Raw: raw, Opcode: uint8(raw >> 26)}

	switch {
	case f.Opcode == opCall:
		// CALL_PAL dispatches on opcode alone (one grain handles every
		// function code); Func still carries the 26-bit payload the
		// grain hands to Context.CallPAL.
		f.Func = raw & 0x03ffffff

	case isOperateOpcode(f.Opcode):
		f.Ra = uint8((raw >> 21) & 0x1f)
		f.IsLit = (raw>>12)&1 != 0
		if f.IsLit {
			f.Literal = uint8((raw >> 13) & 0xff)
		} else {
			f.Rb = uint8((raw >> 16) & 0x1f)
		}
		f.HasFunc = true
		f.Func = (raw >> 5) & 0x7f
		f.Rc = uint8(raw & 0x1f)

	case f.Opcode == opFloatT:
		f.Ra = uint8((raw >> 21) & 0x1f) // Fa
		f.Rb = uint8((raw >> 16) & 0x1f) // Fb
		f.HasFunc = true
		f.Func = (raw >> 5) & 0x7ff // 11-bit FP function code
		f.Rc = uint8(raw & 0x1f)    // Fc

	case f.Opcode == opMisc:
		f.Ra = uint8((raw >> 21) & 0x1f)
		f.Rb = uint8((raw >> 16) & 0x1f)
		f.HasFunc = true
		f.Func = raw & 0xffff

	case f.Opcode == opJMP:
		f.Ra = uint8((raw >> 21) & 0x1f)
		f.Rb = uint8((raw >> 16) & 0x1f)
		f.Disp16 = int16(raw & 0xffff)

	case isMemoryOpcode(f.Opcode):
		reg := uint8((raw >> 21) & 0x1f)
		f.Ra = reg // load destination
		f.Rc = reg // store data source — same bit field, different semantic role
		f.Rb = uint8((raw >> 16) & 0x1f)
		f.Disp16 = int16(raw & 0xffff)

	case isBranchOpcode(f.Opcode):
		f.Ra = uint8((raw >> 21) & 0x1f)
		f.Disp21 = sext(raw&0x1fffff, 21)

	default:
		// Unrecognized opcode: leave the Form otherwise zeroed: Lookup
		// will miss and DE raises an illegal-instruction fault.
	}
	return f
}

// destOf reports which register, if any, a decoded Form commits at WB,
// independent of the grain's own bookkeeping (grains only know how to
// produce a Result; knowing where it's ultimately written is part of
// the pipeline's retire contract).
func destOf(f grain.Form, cat grain.Category) (reg uint8, has bool) {
	switch cat {
	case grain.CategoryALUInt, grain.CategoryALUFloat:
		return f.Rc, true
	case grain.CategoryMemory:
		if isLoadOpcode(f.Opcode) {
			return f.Ra, true
		}
		return 0, false
	case grain.CategoryBranch:
		if f.Opcode == opBSR || f.Opcode == opJMP {
			return f.Ra, true
		}
		return 0, false
	default:
		return 0, false
	}
}
