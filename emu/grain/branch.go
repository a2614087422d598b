package grain

// Branch-format opcodes: target = PC + 4 + sign_extend21(disp) * 4.
// Conditional branches test Ra against the named predicate; BR/BSR are
// unconditional; JMP/JSR/RET use R[Rb] &^ 3 instead of a displacement.
const (
	opBR  = 0x30
	opBSR = 0x34
	opBEQ = 0x39
	opBNE = 0x3d
	opBLT = 0x3a
	opBLE = 0x3b
	opBGT = 0x3f
	opBGE = 0x3e
	opJMP = 0x1a // Ra/Rb/Rc distinguished by the low 2 bits of disp (hint only)
)

func registerBranch(r *Registry) {
	dispTarget := func(s *Slot, pc uint64) uint64 {
		return pc + 4 + uint64(int64(s.Form.Disp21)*4)
	}

	uncond := func(opcode uint8, mnemonic string, saveLink bool) {
		r.addOpcode(opcode, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryBranch,
			Exec: func(ctx Context, s *Slot) Outcome {
				pc := ctx.PC()
				if saveLink {
					s.Result, s.HasResult = pc+4, true
				}
				s.BranchTaken = true
				s.BranchTarget = dispTarget(s, pc)
				return Continue
			},
		})
	}
	uncond(opBR, "BR", false)
	uncond(opBSR, "BSR", true)

	cond := func(opcode uint8, mnemonic string, taken func(v uint64) bool) {
		r.addOpcode(opcode, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryBranch,
			Exec: func(ctx Context, s *Slot) Outcome {
				pc := ctx.PC()
				v := ctx.GetInt(s.Form.Ra)
				if taken(v) {
					s.BranchTaken = true
					s.BranchTarget = dispTarget(s, pc)
				} else {
					s.BranchTaken = false
					s.BranchTarget = pc + 4
				}
				return Continue
			},
		})
	}
	cond(opBEQ, "BEQ", func(v uint64) bool { return v == 0 })
	cond(opBNE, "BNE", func(v uint64) bool { return v != 0 })
	cond(opBLT, "BLT", func(v uint64) bool { return int64(v) < 0 })
	cond(opBLE, "BLE", func(v uint64) bool { return int64(v) <= 0 })
	cond(opBGT, "BGT", func(v uint64) bool { return int64(v) > 0 })
	cond(opBGE, "BGE", func(v uint64) bool { return int64(v) >= 0 })

	r.addOpcode(opJMP, &Grain{
		Mnemonic: "JMP",
		Category: CategoryBranch,
		Exec: func(ctx Context, s *Slot) Outcome {
			pc := ctx.PC()
			s.Result, s.HasResult = pc+4, true // JSR/JSR_COROUTINE/RET all link Ra the same way
			s.BranchTaken = true
			s.BranchTarget = ctx.GetInt(s.Form.Rb) &^ 3
			return Continue
		},
	})
}
