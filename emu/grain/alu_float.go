package grain

import "math"

// T_floating (opcode 0x16) function codes: the IEEE double-precision
// subset the spec names. Go's float64 already is IEEE 754 binary64, so
// T_floating arithmetic needs no software emulation — math.Float64bits
// and math.Float64frombits move bit patterns between the integer-shaped
// Fa/Fb/Fc register file (Slot.Result is always uint64) and Go's native
// float64 math, one reinterpretation rather than a format conversion.
const (
	// opFloatT is the IEEE T_floating operate-format opcode; decode.go
	// in emu/cpu maps Fa/Fb/Fc and the 11-bit function field into the
	// same Form shape the integer operate format uses.
	opFloatT = 0x16

	fnAddT   = 0x0a0
	fnSubT   = 0x0a1
	fnMulT   = 0x0a2
	fnDivT   = 0x0a3
	fnCmpTeq = 0x0a5
	fnCmpTlt = 0x0a6
	fnCmpTle = 0x0a7
	fnCvtTq  = 0x0af
	fnCvtQt  = 0x0bc
)

func asFloat(bits uint64) float64 { return math.Float64frombits(bits) }
func asBits(f float64) uint64     { return math.Float64bits(f) }

func registerALUFloat(r *Registry) {
	floatOp := func(fn uint32, mnemonic string, op func(a, b float64) float64) {
		r.addFunc(opFloatT, fn, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryALUFloat,
			Exec: func(ctx Context, s *Slot) Outcome {
				a := asFloat(ctx.GetFP(s.Form.Ra))
				b := asFloat(ctx.GetFP(s.Form.Rb))
				result := op(a, b)
				s.Result, s.HasResult = asBits(result), true
				// FPCR trap-enable gating (invalid/overflow/underflow/
				// div-by-zero/inexact) is not implemented: it needs a
				// Context hook into ipr.Cold.FPCR that would widen
				// grain.Context beyond what every other category needs.
				// A NaN or Inf result is produced and committed untrapped
				// rather than silently suppressed.
				return Continue
			},
		})
	}
	floatOp(fnAddT, "ADDT", func(a, b float64) float64 { return a + b })
	floatOp(fnSubT, "SUBT", func(a, b float64) float64 { return a - b })
	floatOp(fnMulT, "MULT", func(a, b float64) float64 { return a * b })
	floatOp(fnDivT, "DIVT", func(a, b float64) float64 {
		if b == 0 {
			return math.Inf(int(math.Copysign(1, a)))
		}
		return a / b
	})

	cmp := func(fn uint32, mnemonic string, ok func(a, b float64) bool) {
		r.addFunc(opFloatT, fn, &Grain{
			Mnemonic: mnemonic,
			Category: CategoryALUFloat,
			Exec: func(ctx Context, s *Slot) Outcome {
				a := asFloat(ctx.GetFP(s.Form.Ra))
				b := asFloat(ctx.GetFP(s.Form.Rb))
				if ok(a, b) {
					s.Result = asBits(2.0) // Alpha FP compares produce 2.0 (true) or 0.0 (false)
				} else {
					s.Result = 0
				}
				s.HasResult = true
				return Continue
			},
		})
	}
	cmp(fnCmpTeq, "CMPTEQ", func(a, b float64) bool { return a == b })
	cmp(fnCmpTlt, "CMPTLT", func(a, b float64) bool { return a < b })
	cmp(fnCmpTle, "CMPTLE", func(a, b float64) bool { return a <= b })

	r.addFunc(opFloatT, fnCvtTq, &Grain{
		Mnemonic: "CVTTQ",
		Category: CategoryALUFloat,
		Exec: func(ctx Context, s *Slot) Outcome {
			f := asFloat(ctx.GetFP(s.Form.Rb))
			s.Result, s.HasResult = uint64(int64(math.Round(f))), true
			return Continue
		},
	})
	r.addFunc(opFloatT, fnCvtQt, &Grain{
		Mnemonic: "CVTQT",
		Category: CategoryALUFloat,
		Exec: func(ctx Context, s *Slot) Outcome {
			i := int64(ctx.GetFP(s.Form.Rb))
			s.Result, s.HasResult = asBits(float64(i)), true
			return Continue
		},
	})
}
