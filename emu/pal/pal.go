/*
   PAL vector table and CALL_PAL routines: exception entry-offset
   assignment, the state-save sequence, and the privileged operations
   CALL_PAL dispatches to.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package pal is grounded on the teacher's storePSW/loadPSW state-save
// sequence in emu/cpu/cpu.go (capture the interrupted PSW into fixed
// save locations, then load a new one from a fixed vector) generalized
// to the full CALL_PAL set and HWPCB-based context switch the spec
// requires.
package pal

import (
	"errors"
	"log/slog"

	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/ipr"
	"github.com/ev6sim/alphacore/emu/psw"
)

var trace bool

// Debug enables or validates a pal debug category. "DELIVER" traces
// every Deliver call (trap/PAL-call/async-event entry); config/debugconfig
// dispatches the generic "debug pal" directive here.
func Debug(category string) error {
	switch category {
	case "DELIVER", "PAL":
		trace = true
		return nil
	default:
		return errors.New("pal: unknown debug category: " + category)
	}
}

// entrySize is the spacing between CALL_PAL vector slots; PAL_BASE's
// low 14 bits hold the offset, matching real Alpha's per-opcode-sized
// PALcode entry points.
const entrySize = 0x40

// EntryOffset returns PAL_BASE's entry offset for a synchronous
// exception class, interrupt, AST, machine check, or reset.
func EntryOffset(kind event.Kind, class event.Class) uint64 {
	switch kind {
	case event.KindMachineCheck:
		return 0x0000
	case event.KindReset:
		return 0x0040
	case event.KindInterrupt:
		return 0x0080
	case event.KindAST:
		return 0x00c0
	case event.KindSoftware:
		return 0x0100
	case event.KindPalCall:
		return 0 // handled by CallPalOffset instead
	case event.KindException:
		switch class {
		case event.ClassItbMiss:
			return 0x0200
		case event.ClassDtbMiss:
			return 0x0240
		case event.ClassAccessViolation, event.ClassFaultOnRead, event.ClassFaultOnWrite, event.ClassFaultOnExecute:
			return 0x0280
		case event.ClassUnaligned:
			return 0x02c0
		case event.ClassArithmetic:
			return 0x0300
		case event.ClassOpcodeReserved, event.ClassIllegalInstruction:
			return 0x0340
		case event.ClassBusError:
			return 0x0380
		default:
			return 0x03c0
		}
	default:
		return 0x03c0
	}
}

// CallPalOffset implements "CALL_PAL vectors to PAL_BASE +
// (func_code × entry_size)".
func CallPalOffset(func26 uint32) uint64 {
	return uint64(func26) * entrySize
}

// exceptionClassBit maps a Class onto the EXC_SUM bit it sets, per the
// state-save sequence's step 3.
func exceptionClassBit(c event.Class) uint64 {
	switch c {
	case event.ClassItbMiss, event.ClassDtbMiss, event.ClassTlbMiss:
		return ipr.ExcSumTBMiss
	case event.ClassAccessViolation, event.ClassFaultOnRead, event.ClassFaultOnWrite, event.ClassFaultOnExecute:
		return ipr.ExcSumACV
	case event.ClassUnaligned:
		return ipr.ExcSumUnaligned
	case event.ClassBusError:
		return ipr.ExcSumDStream
	case event.ClassOpcodeReserved, event.ClassIllegalInstruction:
		return ipr.ExcSumOpcode
	default:
		return 0
	}
}

func faultTypeCode(c event.Class) uint64 {
	switch c {
	case event.ClassTlbMiss:
		return 1
	case event.ClassAccessViolation:
		return 2
	case event.ClassFaultOnRead:
		return 3
	case event.ClassFaultOnWrite:
		return 4
	case event.ClassFaultOnExecute:
		return 5
	case event.ClassPageNotPresent:
		return 6
	case event.ClassUnaligned:
		return 7
	case event.ClassBusError:
		return 8
	default:
		return 0
	}
}

// Deliver runs the state-save sequence (steps 1-8; pipeline flush and
// event-sink clearing are the pipeline executor's job, step 9-10) and
// returns the PS/PC the CPU must adopt. offendingPC is the PC to save —
// the faulting instruction's PC for synchronous faults, the next
// instruction's PC for interrupts/ASTs taken between retirements.
func Deliver(hot *ipr.Hot, hwpcb *ipr.HWPCB, curPS psw.PS, offendingPC psw.PC, ev event.Pending) (psw.PS, psw.PC) {
	hot.ExcAddr = uint64(offendingPC)
	hwpcb.PC = uint64(offendingPC)
	hwpcb.PS = uint64(curPS)

	hot.ExcSum |= exceptionClassBit(ev.Class)

	if ev.Kind == event.KindException && isMemoryFault(ev.Class) {
		ftc := faultTypeCode(ev.Class)
		mmstat := ftc << ipr.MMStatFaultShift
		if ev.IsWrite {
			mmstat |= ipr.MMStatWrite
		}
		if ev.IsExec {
			mmstat |= ipr.MMStatExecute
		}
		if ev.Class == event.ClassItbMiss {
			mmstat |= ipr.MMStatITB
		}
		hot.MMStat = mmstat
	}

	if ev.FaultVA != 0 {
		hot.VA = ev.FaultVA
	}

	newPS := curPS.WithCM(psw.Kernel).WithIPL(deliveryIPL(ev)).WithVMM(false).WithIP(false)

	// Stack switch to KSP happens in the pipeline executor, which owns
	// the live stack-pointer selection logic shared with normal mode
	// transitions.
	offset := EntryOffset(ev.Kind, ev.Class)
	if ev.Kind == event.KindPalCall {
		offset = CallPalOffset(uint32(ev.ExtraInfo))
	}
	newPC := psw.PC(offset).EnterPAL()

	if trace {
		slog.Debug("pal deliver", "kind", ev.Kind, "class", ev.Class, "offendingPC", offendingPC, "vector", newPC)
	}

	return newPS, newPC
}

func isMemoryFault(c event.Class) bool {
	switch c {
	case event.ClassTlbMiss, event.ClassDtbMiss, event.ClassItbMiss, event.ClassAccessViolation,
		event.ClassFaultOnRead, event.ClassFaultOnWrite, event.ClassFaultOnExecute,
		event.ClassPageNotPresent, event.ClassUnaligned, event.ClassBusError:
		return true
	default:
		return false
	}
}

func deliveryIPL(ev event.Pending) uint8 {
	switch ev.Kind {
	case event.KindMachineCheck:
		return 31
	case event.KindReset:
		return 31
	case event.KindAST:
		return 2
	case event.KindInterrupt, event.KindSoftware:
		return ev.IPL
	default:
		return 31 // synchronous faults and CALL_PAL run at IPL 31, the highest IPL
	}
}

// Exit implements REI/RTI/RETSYS: restore PS/PC from the saved-context
// slot, clear PAL mode, and hand back control. Reservation invalidation
// and pending-event re-evaluation at the new IPL are the pipeline
// executor's responsibility, since they touch state (SMP coherence, the
// fault sink) this package does not own.
func Exit(hwpcb *ipr.HWPCB) (psw.PS, psw.PC) {
	return psw.PS(hwpcb.PS), psw.PC(hwpcb.PC).ExitPAL()
}
