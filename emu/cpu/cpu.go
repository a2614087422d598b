/*
   Processor Context and the six-stage pipeline executor.

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

// Package cpu replaces the teacher's S/370 register-and-channel
// CycleCPU loop (emu/cpu/cpu.go: one big per-instruction switch over
// EBCDIC/decimal/floating opcodes) with an Alpha six-stage pipeline
// (IF/DE/IS/EX/MEM/WB) built from the lower layers: emu/grain for
// dispatch, emu/mmu for translation, emu/pal for privileged delivery,
// emu/event for the fault sink, emu/smp for cross-CPU coherence. The
// per-tick driver shape — one exported step function advancing
// architectural state by a fixed unit of work, called from a
// goroutine-per-CPU loop — is the teacher's; everything it now does is
// not.
package cpu

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/ev6sim/alphacore/emu/console"
	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/grain"
	"github.com/ev6sim/alphacore/emu/ipr"
	"github.com/ev6sim/alphacore/emu/memory"
	"github.com/ev6sim/alphacore/emu/mmu"
	"github.com/ev6sim/alphacore/emu/pal"
	"github.com/ev6sim/alphacore/emu/psw"
	"github.com/ev6sim/alphacore/emu/smp"
	"github.com/ev6sim/alphacore/emu/tlb"
)

// tracePipeline gates per-retirement debug logging in doWB — off by
// default, since logging every WB at simulation speed would dominate
// the trace. config/debugconfig turns it on via Debug below.
var tracePipeline atomic.Bool

// Debug enables or validates a cpu debug category. "PIPELINE" traces
// instruction retirement; config/debugconfig dispatches the generic
// "debug pipeline"/"debug cpu" directive here.
func Debug(category string) error {
	switch category {
	case "PIPELINE", "CPU", "RETIRE":
		tracePipeline.Store(true)
		return nil
	default:
		return errors.New("cpu: unknown debug category: " + category)
	}
}

// Context is one emulated CPU's full architectural state: the register
// file, PS/PC, IPR bank, and the shared subsystems it reaches into
// (TLB, memory, PAL table, SMP coherence). It implements grain.Context
// and pal.Env so the grain and PAL packages never need to know its
// concrete type.
type Context struct {
	id int

	intRegs [32]uint64
	fpRegs  [32]uint64
	ps      psw.PS
	pc      psw.PC

	iprBank ipr.Bank
	hwpcb   ipr.HWPCB // the currently active process's saved-context slot

	grains *grain.Registry
	tlbMgr *tlb.Manager
	mmuTr  *mmu.Translator
	mem    *memory.Memory
	coh    *smp.Coherence
	sink   *event.Sink
	con    *console.Device // nil if this CPU has no attached operator console

	halted bool

	// KSEG identity-map regions and canonical-address width, supplied at
	// construction since they are a configuration choice (Open Question
	// in the design ledger), not an architectural constant.
	kseg []mmu.KsegRegion
	va48 bool

	bht branchTable
}

// NewContext builds one CPU's architectural state bound to shared
// system resources. PAL_BASE starts at 0 and PC starts at PAL offset 0,
// per the reset contract.
func NewContext(id int, grains *grain.Registry, tlbMgr *tlb.Manager, mem *memory.Memory, coh *smp.Coherence) *Context {
	c := &Context{
		id:     id,
		grains: grains,
		tlbMgr: tlbMgr,
		mem:    mem,
		coh:    coh,
		sink:   event.NewSink(8),
	}
	c.mmuTr = &mmu.Translator{CPU: id, TLB: tlbMgr, Mem: mem}
	c.Reset()
	return c
}

// Reset restores the architectural reset state: PAL_BASE = 0, PC at PAL
// offset 0 in PAL mode, kernel mode, IPL 31 (nothing can interrupt reset
// delivery itself).
func (c *Context) Reset() {
	c.intRegs = [32]uint64{}
	c.fpRegs = [32]uint64{}
	c.iprBank = ipr.Bank{}
	c.hwpcb = ipr.HWPCB{}
	c.ps = psw.PS(0).WithCM(psw.Kernel).WithIPL(31)
	c.pc = psw.PC(0).EnterPAL()
	c.halted = false
	c.bht = newBranchTable()
}

// --- grain.Context ---

func (c *Context) GetInt(r uint8) uint64 {
	if r == 31 {
		return 0
	}
	return c.intRegs[r]
}

func (c *Context) SetInt(r uint8, v uint64) {
	if r == 31 {
		return
	}
	c.intRegs[r] = v
}

func (c *Context) GetFP(r uint8) uint64 {
	if r == 31 {
		return 0
	}
	return c.fpRegs[r]
}

func (c *Context) SetFP(r uint8, v uint64) {
	if r == 31 {
		return
	}
	c.fpRegs[r] = v
}

// PC returns the address-only part of the architectural PC — callers
// doing fetch/branch-target arithmetic never want the PAL-mode tag bit
// mixed into the integer. Use c.pc.PalMode() directly where the mode
// bit itself is needed (TranslateData's MMU request).
func (c *Context) PC() uint64     { return c.pc.Address() }
func (c *Context) SetPC(v uint64) { c.pc = psw.PC(v) }
func (c *Context) IV() bool       { return c.ps.IV() }

// PS and SetPS expose the raw processor status for the operator shell's
// "examine psw"/"deposit psw" verbs; architectural code reads individual
// fields off c.ps directly rather than going through this round trip.
func (c *Context) PS() uint64     { return uint64(c.ps) }
func (c *Context) SetPS(v uint64) { c.ps = psw.PS(v) }

// IsHalted reports whether this CPU has executed CALL_PAL HALT and
// stopped advancing; exported for callers outside the package (the SMP
// driver, the operator shell) that need to observe CPU state without
// reaching into Pipeline internals.
func (c *Context) IsHalted() bool { return c.halted }

func (c *Context) TranslateData(va uint64, access ipr.Access, size uint8) (uint64, bool) {
	req := mmu.Request{
		VA: va, Access: access, Mode: modeOf(c.ps), Realm: tlb.Data, Size: size,
		ASN: c.iprBank.Hot.ASN, PTBR: c.iprBank.Hot.PTBR, VACtl: c.iprBank.Hot.VACtl,
		PalMode: c.pc.PalMode(), Kseg: c.kseg, VA48: c.va48,
	}
	out := c.mmuTr.Translate(req, nil)
	if out.Fault != mmu.Success {
		c.queueFault(out.Fault, va, access)
		return 0, false
	}
	return out.PA, true
}

func (c *Context) ReadMem(pa uint64, width uint8) (uint64, bool) {
	v, status := c.mem.Read(pa, width)
	return v, status == memory.Ok
}

func (c *Context) WriteMem(pa uint64, width uint8, v uint64) bool {
	c.coh.InvalidateLine(pa)
	return c.mem.Write(pa, width, v) == memory.Ok
}

func (c *Context) RaiseFault(p event.Pending) { c.sink.Raise(p) }

// PendingEvents reports every fault/interrupt currently queued on this
// CPU, for the operator shell's "show pending" verb.
func (c *Context) PendingEvents() []event.Pending { return c.sink.Pending() }

func (c *Context) CallPAL(func26 uint32) {
	c.sink.Raise(event.Pending{Kind: event.KindPalCall, ExtraInfo: uint64(func26)})
	if routine, ok := pal.Routines[func26]; ok {
		routine(c)
	} else {
		slog.Debug("unimplemented CALL_PAL function", "func", func26)
	}
}

func (c *Context) Barrier(kind uint8) {
	switch kind {
	case grain.KindMB, grain.KindWMB:
		c.coh.Drain(smp.BarrierMB)
	case grain.KindExcB:
		c.coh.Drain(smp.BarrierExcB)
	case grain.KindTrapB:
		c.coh.Drain(smp.BarrierTrapB)
	default:
		c.coh.Drain(smp.BarrierCacheHint)
	}
}

// --- pal.Env ---

func (c *Context) Hot() *ipr.Hot            { return &c.iprBank.Hot }
func (c *Context) Cold() *ipr.Cold          { return &c.iprBank.Cold }
func (c *Context) CurrentHWPCB() *ipr.HWPCB { return &c.hwpcb }

func (c *Context) InvalidateTLBAll()          { c.tlbMgr.InvalidateAll(c.id) }
func (c *Context) InvalidateTLBASN(asn uint8) { c.tlbMgr.InvalidateASN(c.id, asn) }
func (c *Context) InvalidateTLBVA(va uint64) {
	c.tlbMgr.InvalidateVA(c.id, tlb.Data, va)
	c.tlbMgr.InvalidateVA(c.id, tlb.Inst, va)
}
func (c *Context) InvalidateReservation() { c.coh.InvalidateCPU(c.id) }
func (c *Context) Halt()                  { c.halted = true }

// AttachConsole binds the operator console CALL_PAL CSERVE reaches;
// call with nil to detach (CSERVE then behaves as in routines.go's
// "nobody's listening" default).
func (c *Context) AttachConsole(con *console.Device) { c.con = con }

func (c *Context) ConsolePutChar(b byte) {
	if c.con != nil {
		c.con.PutChar(b)
	}
}

func (c *Context) ConsoleTryGetChar() (byte, bool) {
	if c.con == nil {
		return 0, false
	}
	return c.con.TryGetChar()
}

func modeOf(ps psw.PS) ipr.Mode { return ipr.Mode(uint8(ps.CM())) }

// astEnabled reports whether an AST is currently deliverable to the
// CPU's current mode: both the per-mode enable bit (ASTEN) and the
// per-mode pending/summary bit (ASTSR) must be set.
func (c *Context) astEnabled() bool {
	bit := ipr.ModeBit(uint8(c.ps.CM()))
	return c.iprBank.Hot.ASTEN&bit != 0 && c.iprBank.Hot.ASTSR&bit != 0
}

func (c *Context) queueFault(f mmu.Fault, va uint64, access ipr.Access) {
	class := faultToClass(f)
	c.sink.Raise(event.Pending{
		Kind: event.KindException, Class: class, FaultVA: va,
		Mode: uint8(c.ps.CM()), IsWrite: access == ipr.Write, IsExec: access == ipr.Execute,
	})
}

func faultToClass(f mmu.Fault) event.Class {
	switch f {
	case mmu.NonCanonical:
		return event.ClassNonCanonical
	case mmu.NotKseg:
		return event.ClassNotKseg
	case mmu.TlbMiss:
		return event.ClassTlbMiss
	case mmu.DtbMiss:
		return event.ClassDtbMiss
	case mmu.ItbMiss:
		return event.ClassItbMiss
	case mmu.AccessViolation:
		return event.ClassAccessViolation
	case mmu.FaultOnRead:
		return event.ClassFaultOnRead
	case mmu.FaultOnWrite:
		return event.ClassFaultOnWrite
	case mmu.FaultOnExecute:
		return event.ClassFaultOnExecute
	case mmu.PageNotPresent:
		return event.ClassPageNotPresent
	case mmu.Unaligned:
		return event.ClassUnaligned
	case mmu.BusError:
		return event.ClassBusError
	default:
		return event.ClassNone
	}
}
