package grain

import (
	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/ipr"
)

// Memory-format opcodes this registry wires: LDQ/LDL/STQ/STL and the
// byte/word variants, per §4.2's named category. EA = R[Rb] +
// sign_extend16(disp); loads write Ra, stores read Rc as the data
// source — the exact field mapping the spec calls out as part of the
// decode contract.
const (
	opLDL  = 0x28
	opLDQ  = 0x29
	opLDBU = 0x0a
	opLDWU = 0x0c
	opSTL  = 0x2c
	opSTQ  = 0x2d
	opSTB  = 0x0e
	opSTW  = 0x0d
)

func registerMemory(r *Registry) {
	load := func(opcode uint8, mnemonic string, width uint8, signExtend bool) {
		r.addOpcode(opcode, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryMemory,
			Exec: func(ctx Context, s *Slot) Outcome {
				s.EA = ctx.GetInt(s.Form.Rb) + uint64(s.Form.Disp16)
				pa, ok := ctx.TranslateData(s.EA, ipr.Read, width)
				if !ok {
					return Fault
				}
				v, ok := ctx.ReadMem(pa, width)
				if !ok {
					ctx.RaiseFault(event.Pending{Kind: event.KindException, Class: event.ClassBusError, FaultPA: pa})
					return Fault
				}
				if signExtend {
					v = signExtendWidth(v, width)
				}
				s.LoadData = v
				s.Result, s.HasResult = v, true
				return Continue
			},
		})
	}

	store := func(opcode uint8, mnemonic string, width uint8) {
		r.addOpcode(opcode, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryMemory,
			Exec: func(ctx Context, s *Slot) Outcome {
				s.EA = ctx.GetInt(s.Form.Rb) + uint64(s.Form.Disp16)
				s.StoreVal = ctx.GetInt(s.Form.Rc)
				pa, ok := ctx.TranslateData(s.EA, ipr.Write, width)
				if !ok {
					return Fault
				}
				if !ctx.WriteMem(pa, width, s.StoreVal) {
					ctx.RaiseFault(event.Pending{Kind: event.KindException, Class: event.ClassBusError, FaultPA: pa, IsWrite: true})
					return Fault
				}
				return Continue
			},
		})
	}

	load(opLDL, "LDL", 4, true)
	load(opLDQ, "LDQ", 8, false)
	load(opLDBU, "LDBU", 1, false)
	load(opLDWU, "LDWU", 2, false)
	store(opSTL, "STL", 4)
	store(opSTQ, "STQ", 8)
	store(opSTB, "STB", 1)
	store(opSTW, "STW", 2)
}

func signExtendWidth(v uint64, width uint8) uint64 {
	switch width {
	case 4:
		return uint64(int64(int32(v)))
	case 2:
		return uint64(int64(int16(v)))
	case 1:
		return uint64(int64(int8(v)))
	default:
		return v
	}
}
