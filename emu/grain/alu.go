package grain

import "github.com/ev6sim/alphacore/emu/event"

// Operate-format (opcode 0x10-0x13) function codes, the subset this
// registry implements. Real silicon defines many more; these cover the
// representative integer ALU ops the spec names explicitly (ADDL/ADDQ,
// SUBL/SUBQ, logical, shifts, CMOV) plus their /V overflow-trapping
// variants.
const (
	fnAddL  = 0x00
	fnAddLV = 0x40
	fnSubL  = 0x09
	fnSubLV = 0x49
	fnAddQ  = 0x20
	fnSubQ  = 0x29
	fnAnd   = 0x00 // opcode 0x11
	fnBic   = 0x08
	fnBis   = 0x20 // OR
	fnOrnot = 0x28
	fnXor   = 0x40
	fnEqv   = 0x48
	fnSll   = 0x39 // opcode 0x12
	fnSrl   = 0x34
	fnSra   = 0x3c
	fnCmoveq  = 0x24 // opcode 0x11
	fnCmovne  = 0x26
	fnCmovlt  = 0x44
	fnCmovge  = 0x46
	fnCmovle  = 0x64
	fnCmovgt  = 0x66
)

func sext32(v uint32) uint64 { return uint64(int64(int32(v))) }

func registerALU(r *Registry) {
	intOp := func(opcode uint8, fn uint32, mnemonic string, overflow bool,
		op func(a, b uint64) uint64) {
		r.addFunc(opcode, fn, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryALUInt,
			Exec: func(ctx Context, s *Slot) Outcome {
				a := operandA(ctx, s)
				b := operandB(ctx, s)
				result := op(a, b)
				s.Result, s.HasResult = result, true
				if overflow && ctx.IV() && overflowed32(a, b, result, mnemonic) {
					ctx.RaiseFault(event.Pending{Kind: event.KindException, Class: event.ClassArithmetic})
					return Fault
				}
				return Continue
			},
		})
	}

	intOp(0x10, fnAddL, "ADDL", false, func(a, b uint64) uint64 { return sext32(uint32(a) + uint32(b)) })
	intOp(0x10, fnAddLV, "ADDL/V", true, func(a, b uint64) uint64 { return sext32(uint32(a) + uint32(b)) })
	intOp(0x10, fnSubL, "SUBL", false, func(a, b uint64) uint64 { return sext32(uint32(a) - uint32(b)) })
	intOp(0x10, fnSubLV, "SUBL/V", true, func(a, b uint64) uint64 { return sext32(uint32(a) - uint32(b)) })
	intOp(0x10, fnAddQ, "ADDQ", false, func(a, b uint64) uint64 { return a + b })
	intOp(0x10, fnSubQ, "SUBQ", false, func(a, b uint64) uint64 { return a - b })

	intOp(0x11, fnAnd, "AND", false, func(a, b uint64) uint64 { return a & b })
	intOp(0x11, fnBic, "BIC", false, func(a, b uint64) uint64 { return a &^ b })
	intOp(0x11, fnBis, "BIS", false, func(a, b uint64) uint64 { return a | b })
	intOp(0x11, fnOrnot, "ORNOT", false, func(a, b uint64) uint64 { return a | ^b })
	intOp(0x11, fnXor, "XOR", false, func(a, b uint64) uint64 { return a ^ b })
	intOp(0x11, fnEqv, "EQV", false, func(a, b uint64) uint64 { return ^(a ^ b) })

	intOp(0x12, fnSll, "SLL", false, func(a, b uint64) uint64 { return a << (b & 0x3f) })
	intOp(0x12, fnSrl, "SRL", false, func(a, b uint64) uint64 { return a >> (b & 0x3f) })
	intOp(0x12, fnSra, "SRA", false, func(a, b uint64) uint64 { return uint64(int64(a) >> (b & 0x3f)) })

	cmov := func(fn uint32, mnemonic string, keep func(v uint64) bool) {
		r.addFunc(0x11, fn, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryALUInt,
			Exec: func(ctx Context, s *Slot) Outcome {
				a := operandA(ctx, s)
				if keep(a) {
					s.Result, s.HasResult = operandB(ctx, s), true
				} else {
					s.Result, s.HasResult = ctx.GetInt(s.Form.Rc), true
				}
				return Continue
			},
		})
	}
	cmov(fnCmoveq, "CMOVEQ", func(v uint64) bool { return v == 0 })
	cmov(fnCmovne, "CMOVNE", func(v uint64) bool { return v != 0 })
	cmov(fnCmovlt, "CMOVLT", func(v uint64) bool { return int64(v) < 0 })
	cmov(fnCmovge, "CMOVGE", func(v uint64) bool { return int64(v) >= 0 })
	cmov(fnCmovle, "CMOVLE", func(v uint64) bool { return int64(v) <= 0 })
	cmov(fnCmovgt, "CMOVGT", func(v uint64) bool { return int64(v) > 0 })
}

func operandA(ctx Context, s *Slot) uint64 { return ctx.GetInt(s.Form.Ra) }

func operandB(ctx Context, s *Slot) uint64 {
	if s.Form.IsLit {
		return uint64(s.Form.Literal)
	}
	return ctx.GetInt(s.Form.Rb)
}

// overflowed32 reports 32-bit signed overflow for the /V ADDL and SUBL
// forms, the only two wired here; a full implementation extends this
// per mnemonic, but the detection rule (sign of inputs vs. sign of
// result) is the same shape for every /V integer op.
func overflowed32(a, b, result uint64, mnemonic string) bool {
	sa, sb, sr := int32(a) < 0, int32(b) < 0, int32(result) < 0
	switch mnemonic {
	case "ADDL/V":
		return sa == sb && sr != sa
	case "SUBL/V":
		return sa != sb && sr != sa
	default:
		return false
	}
}
