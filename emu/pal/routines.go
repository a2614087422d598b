package pal

import "github.com/ev6sim/alphacore/emu/ipr"

// CALL_PAL function-code assignments. The spec does not fix numeric
// values for individual PAL calls (real Alpha firmware varies these by
// operating-system convention); this table is this emulator's own
// consistent assignment, documented here as the single source of truth
// rather than scattered magic numbers.
const (
	FnHalt     = 0x00
	FnCFlush   = 0x01
	FnDrainA   = 0x02
	FnRdPS     = 0x10
	FnWrPS     = 0x11
	FnMfpr     = 0x20 // Rb selects the IPR, per IprID below
	FnMtpr     = 0x21
	FnSwpctx   = 0x30
	FnTbia     = 0x31
	FnTbiap    = 0x32
	FnTbis     = 0x33
	FnRdUniq   = 0x34
	FnWrUniq   = 0x35
	FnRti      = 0x36
	FnRei      = 0x37
	FnRetSys   = 0x38
	FnCallSys  = 0x39
	FnBpt      = 0x3a
	FnBugChk   = 0x3b
	FnImb      = 0x3c
	FnCserve   = 0x3d
	FnChmk     = 0x40
	FnChme     = 0x41
	FnChms     = 0x42
	FnChmu     = 0x43
)

// IprID selects which IPR MFPR/MTPR touches.
type IprID uint8

const (
	IprPS IprID = iota
	IprASN
	IprPTBR
	IprVPTB
	IprASTEN
	IprASTSR
	IprFEN
	IprIPL
	IprMCES
	IprUniq
)

// Env is everything a CALL_PAL routine may touch: the live hot/cold IPR
// banks, the per-mode stack pointers, the HWPCB slot, and the hooks onto
// TLB invalidation and reservation clearing that only the owning CPU
// can perform (since only it knows its own CPU index). Kept as an
// interface so emu/pal stays below emu/cpu in the dependency order.
type Env interface {
	Hot() *ipr.Hot
	Cold() *ipr.Cold
	CurrentHWPCB() *ipr.HWPCB

	GetInt(r uint8) uint64
	SetInt(r uint8, v uint64)

	InvalidateTLBAll()
	InvalidateTLBASN(asn uint8)
	InvalidateTLBVA(va uint64)
	InvalidateReservation()

	Halt()

	// ConsolePutChar/ConsoleTryGetChar back CALL_PAL CSERVE's character
	// I/O sub-functions; a CPU with no console attached treats these as
	// a no-op write / always-empty read, matching PutChar/TryGetChar's
	// own "nobody's listening" behavior in emu/console.
	ConsolePutChar(b byte)
	ConsoleTryGetChar() (byte, bool)
}

// CSERVE sub-function codes, carried in Ra (register 16) by this
// emulator's own PAL calling convention — real console callback
// firmware uses a similar a0-selects-subfunction shape but does not fix
// these exact values.
const (
	CserveFnPutChar = 0x01 // character in Rb (register 17)
	CserveFnGetChar = 0x02 // result (char or -1) returned in R0
)

// Routine is one CALL_PAL handler. Ra/Rb/Rc conventions follow the
// memory-format field mapping: Ra commonly carries the MFPR result or
// the MTPR/WRUNIQ source value.
type Routine func(env Env)

// Routines is the CALL_PAL dispatch table, keyed by function code.
var Routines = map[uint32]Routine{
	FnHalt:    func(env Env) { env.Halt() },
	FnCFlush:  func(env Env) {},
	FnDrainA:  func(env Env) {},
	FnImb:     func(env Env) {}, // instruction-stream coherence: no-op, this model has no I-cache to flush
	FnCserve: func(env Env) {
		switch env.GetInt(16) {
		case CserveFnPutChar:
			env.ConsolePutChar(byte(env.GetInt(17)))
		case CserveFnGetChar:
			if b, ok := env.ConsoleTryGetChar(); ok {
				env.SetInt(0, uint64(b))
			} else {
				env.SetInt(0, ^uint64(0)) // -1: no character pending
			}
		}
	},
	FnBpt:     func(env Env) {},
	FnBugChk:  func(env Env) {},

	FnRdPS: func(env Env) {
		env.SetInt(0, env.Hot().PS)
	},
	FnWrPS: func(env Env) {
		// Per the PS invariant, WR_PS touches only {IPL, SW}.
		newVal := env.GetInt(16) // conventionally Ra for PAL calls taking one argument
		cur := env.Hot().PS
		const iplMask = uint64(0x1f) << 8
		const swMask = uint64(0x3)
		env.Hot().PS = (cur &^ (iplMask | swMask)) | (newVal & (iplMask | swMask))
	},

	FnRdUniq: func(env Env) {
		env.SetInt(0, env.Cold().Uniq)
	},
	FnWrUniq: func(env Env) {
		env.Cold().Uniq = env.GetInt(16)
	},

	FnTbia: func(env Env) {
		env.InvalidateTLBAll()
	},
	FnTbiap: func(env Env) {
		env.InvalidateTLBASN(uint8(env.Hot().ASN))
	},
	FnTbis: func(env Env) {
		env.InvalidateTLBVA(env.GetInt(16))
	},

	FnSwpctx: func(env Env) {
		hot, cold := env.Hot(), env.Cold()
		hwpcb := env.CurrentHWPCB()
		outgoing := *hwpcb
		outgoing.SaveFrom(hot, cold.Uniq)
		*hwpcb = outgoing
		hwpcb.RestoreInto(hot, cold)
		env.InvalidateReservation()
	},

	FnRti: func(env Env) {}, // PC/PS restore itself is driven by the pipeline executor via pal.Exit
	FnRei: func(env Env) {},

	FnCallSys: func(env Env) {}, // dispatch into the OS syscall vector is an OS-PALcode concern, out of scope here
	FnRetSys:  func(env Env) {},

	FnChmk: func(env Env) {},
	FnChme: func(env Env) {},
	FnChms: func(env Env) {},
	FnChmu: func(env Env) {},

	// MFPR/MTPR: IprID travels in Rb (register 17, by this emulator's
	// own PAL calling convention), the value in/out travels in Ra
	// (register 16). Only the handful of IPRs named by IprID above are
	// wired; an unrecognized ID is a silent no-op rather than a fault,
	// matching how this table treats every other unimplemented PALcode
	// extension.
	FnMfpr: func(env Env) {
		env.SetInt(16, readIPR(env, IprID(env.GetInt(17))))
	},
	FnMtpr: func(env Env) {
		writeIPR(env, IprID(env.GetInt(17)), env.GetInt(16))
	},
}

func readIPR(env Env, id IprID) uint64 {
	hot, cold := env.Hot(), env.Cold()
	switch id {
	case IprPS:
		return hot.PS
	case IprASN:
		return uint64(hot.ASN)
	case IprPTBR:
		return hot.PTBR
	case IprVPTB:
		return hot.VPTB
	case IprASTEN:
		return uint64(hot.ASTEN)
	case IprASTSR:
		return uint64(hot.ASTSR)
	case IprIPL:
		return uint64(hot.IPL)
	case IprMCES:
		return uint64(cold.MCES)
	case IprUniq:
		return cold.Uniq
	default:
		return 0
	}
}

func writeIPR(env Env, id IprID, v uint64) {
	hot, cold := env.Hot(), env.Cold()
	switch id {
	case IprASN:
		hot.ASN = uint8(v)
	case IprPTBR:
		hot.PTBR = v
	case IprVPTB:
		hot.VPTB = v
	case IprASTEN:
		hot.ASTEN = uint8(v)
	case IprASTSR:
		hot.ASTSR = uint8(v)
	case IprIPL:
		hot.IPL = uint8(v)
	case IprMCES:
		cold.MCES = uint8(v)
	case IprUniq:
		cold.Uniq = v
	}
}
