package grain

// CALL_PAL is decoded as opcode 0 with the 26-bit function code in bits
// 25:0; it vectors to PAL_BASE + func*entry_size. The grain itself does
// no PAL work — it hands the function code to the owning CPU, which
// looks up the routine in emu/pal's vector table. Keeping the PAL
// routines out of this package keeps grains a leaf below emu/pal in the
// dependency order.
const opCallPAL = 0x00

func registerPAL(r *Registry) {
	r.addOpcode(opCallPAL, &Grain{
		Mnemonic: "CALL_PAL",
		Category: CategoryPAL,
		Exec: func(ctx Context, s *Slot) Outcome {
			ctx.CallPAL(s.Form.Func)
			return EnterPAL
		},
	})
}
