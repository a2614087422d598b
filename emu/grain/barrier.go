package grain

// Barrier opcodes, decoded as function codes under the misc opcode
// 0x18. Strength ordering PAL > MB/MB2 > EXCB > WMB > TRAPB > cache
// hints is encoded only in which BarrierKind each mnemonic maps to;
// emu/smp.Coherence.Drain is what actually enforces ordering (today a
// no-op, since this model has no store buffer to drain — see its doc).
const (
	opMisc  = 0x18
	fnTrapB = 0x0000
	fnExcB  = 0x0400
	fnMB    = 0x4000
	fnWMB   = 0x4400
	fnFetch = 0x8000
)

// Kind values mirror emu/smp.BarrierKind without importing emu/smp,
// keeping grains below the CPU/SMP layer in the dependency order;
// Context.Barrier takes the raw kind and the CPU translates it.
const (
	KindMB uint8 = iota
	KindWMB
	KindTrapB
	KindExcB
	KindCacheHint
)

func registerBarrier(r *Registry) {
	barrier := func(fn uint32, mnemonic string, kind uint8) {
		r.addFunc(opMisc, fn, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryBarrier,
			Exec: func(ctx Context, s *Slot) Outcome {
				ctx.Barrier(kind)
				return Continue
			},
		})
	}
	barrier(fnTrapB, "TRAPB", KindTrapB)
	barrier(fnExcB, "EXCB", KindExcB)
	barrier(fnMB, "MB", KindMB)
	barrier(fnWMB, "WMB", KindWMB)
	barrier(fnFetch, "FETCH", KindCacheHint)
}
