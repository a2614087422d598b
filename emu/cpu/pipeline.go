/*
   Pipeline Executor: drives one CPU's six-stage IF/DE/IS/EX/MEM/WB
   pipeline one architectural cycle at a time.

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

package cpu

import (
	"log/slog"

	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/grain"
	"github.com/ev6sim/alphacore/emu/ipr"
	"github.com/ev6sim/alphacore/emu/pal"
	"github.com/ev6sim/alphacore/emu/psw"
)

// stage names an occupied pipeline slot's current position. Indices
// double as the Pipeline.stages array index, oldest (closest to
// retirement) at the high end.
type stage uint8

const (
	sIF stage = iota
	sDE
	sIS
	sEX
	sMEM
	sWB
	numStages
)

// pipeSlot is one in-flight instruction's full bookkeeping: the
// grain-visible Slot plus everything the executor itself needs to
// retire it, fault it, or flush it.
type pipeSlot struct {
	pc  uint64
	raw uint32

	fetched         bool // doIF has already run for this slot; guards the re-dispatch below
	fetchFault      bool // IF's own translate/read failed
	fetchFaultEvent event.Pending // captured at IF time, consumed by doDE; never left sitting in the shared sink
	decodeOK        bool
	form            grain.Form
	g               *grain.Grain
	cat             grain.Category

	exec grain.Slot

	destReg uint8
	hasDest bool

	trapPending bool
	trapEvent   event.Pending

	outcome grain.Outcome

	isBranch        bool
	predictedTaken  bool
	predictedTarget uint64
}

// Pipeline drives one Context's execution. Exposes StepCycle, Reset,
// and InjectPendingEvent, per §4.1.
type Pipeline struct {
	ctx *Context

	stages      [numStages]*pipeSlot
	nextFetchPC uint64
}

// NewPipeline builds a pipeline bound to ctx, starting empty with the
// context's reset PC as the first fetch target.
func NewPipeline(ctx *Context) *Pipeline {
	return &Pipeline{ctx: ctx, nextFetchPC: ctx.PC()}
}

// Reset clears every in-flight slot and resets the owning Context to
// its architectural reset state.
func (p *Pipeline) Reset() {
	p.ctx.Reset()
	for i := range p.stages {
		p.stages[i] = nil
	}
	p.nextFetchPC = p.ctx.PC()
}

// InjectPendingEvent raises an externally-sourced event (an interrupt
// line asserting, a machine check, a cross-CPU reset) into this CPU's
// fault sink, to be picked up at the next instruction boundary.
func (p *Pipeline) InjectPendingEvent(ev event.Pending) {
	p.ctx.sink.Raise(ev)
}

// StepCycle advances the pipeline by exactly one architectural cycle:
// every occupied stage does its stage's work once, oldest instruction
// first, then every slot shifts one stage closer to retirement and a
// new instruction enters IF if room permits.
func (p *Pipeline) StepCycle() {
	if p.ctx.halted {
		return
	}

	flush := false
	var flushPC uint64

	for i := int(sWB); i >= int(sIF); i-- {
		s := p.stages[i]
		if s == nil {
			continue
		}
		switch stage(i) {
		case sWB:
			if doFlush, target := p.doWB(s); doFlush {
				flush, flushPC = true, target
			}
		case sMEM:
			// EX already performed the memory access (grain.Exec fuses
			// address computation and the access itself); MEM is a pure
			// one-cycle latency stage here, carrying the slot forward.
		case sEX:
			if doFlush, target := p.doEX(s); doFlush {
				flush, flushPC = true, target
			}
		case sIS:
			p.doIS(s)
		case sDE:
			p.doDE(s)
		case sIF:
			p.doIF(s)
		}
		if flush && i > 0 {
			for j := 0; j < i; j++ {
				p.stages[j] = nil
			}
		}
	}

	for i := int(sWB); i > int(sIF); i-- {
		p.stages[i] = p.stages[i-1]
	}

	if flush {
		p.stages[sIF] = nil
		p.nextFetchPC = flushPC
		return
	}

	if p.ctx.halted {
		p.stages[sIF] = nil
		return
	}

	if ev, ok := p.ctx.sink.Next(p.ctx.iprBank.Hot.IPL, p.ctx.astEnabled()); ok {
		newPS, newPC := pal.Deliver(p.ctx.Hot(), p.ctx.CurrentHWPCB(), p.ctx.ps, psw.PC(p.nextFetchPC), ev)
		p.ctx.ps, p.ctx.pc = newPS, newPC
		p.nextFetchPC = uint64(newPC)
		p.ctx.InvalidateReservation()
		p.stages[sIF] = nil
		return
	}

	p.stages[sIF] = &pipeSlot{pc: p.nextFetchPC}
	p.doIF(p.stages[sIF])
}

// doIF fetches the instruction word at s.pc through the ITB, advancing
// nextFetchPC by 4 on success. A translate/read failure becomes a
// fault carrier: the slot keeps moving through later stages with no
// real work until it's delivered at WB.
func (p *Pipeline) doIF(s *pipeSlot) {
	if s.fetched {
		// Already fetched when this slot was created at the tail of the
		// previous cycle; StepCycle's backward dispatch loop reaches sIF
		// for it once more before the shift promotes it to sDE, and must
		// not fetch (and on failure, re-raise the same fault) twice.
		return
	}
	s.fetched = true

	ctx := p.ctx
	pa, ok := ctx.TranslateData(s.pc, ipr.Execute, 4)
	if !ok {
		// TranslateData already raised into the shared sink; drain it
		// straight back out and hold it on the slot itself. Per §4.1's
		// IF-stage contract ("capture a fault into the slot... do not
		// raise immediately"), the event must never sit exposed in the
		// sink across a cycle boundary — doDE runs a full cycle after
		// this one, and in between, StepCycle's own end-of-cycle async
		// delivery check would otherwise see it, treat it as deliverable
		// (synchronous exceptions are never IPL-masked), and vector into
		// PAL itself using the wrong (not-yet-faulted) PC.
		s.fetchFault = true
		_, s.fetchFaultEvent = p.popFault()
		p.nextFetchPC = s.pc + 4
		return
	}
	raw, ok := ctx.ReadMem(pa, 4)
	if !ok {
		ctx.RaiseFault(event.Pending{Kind: event.KindException, Class: event.ClassBusError, FaultPA: pa, IsExec: true})
		s.fetchFault = true
		_, s.fetchFaultEvent = p.popFault()
		p.nextFetchPC = s.pc + 4
		return
	}
	s.raw = uint32(raw)
	p.nextFetchPC = s.pc + 4
}

// doDE decodes the fetched word, looks up its grain, classifies its
// destination register, and — for branch-category instructions —
// consults the branch history table for a predicted direction/target,
// per §4.1's "prediction is attempted at IF/DE using the BHT".
func (p *Pipeline) doDE(s *pipeSlot) {
	if s.fetchFault {
		s.trapPending, s.trapEvent = true, s.fetchFaultEvent
		return
	}
	s.form = decode(s.raw)
	g, ok := p.ctx.grains.Lookup(s.form)
	if !ok {
		s.decodeOK = false
		s.trapPending = true
		s.trapEvent = event.Pending{Kind: event.KindException, Class: event.ClassIllegalInstruction, Opcode: s.raw}
		return
	}
	s.decodeOK = true
	s.g = g
	s.cat = g.Category
	s.exec.Form = s.form
	s.destReg, s.hasDest = destOf(s.form, s.cat)

	if s.cat == grain.CategoryBranch {
		s.isBranch = true
		s.predictedTaken = p.ctx.bht.Predict(s.pc)
		if s.form.Opcode == opBR || s.form.Opcode == opBSR {
			s.predictedTaken = true // unconditional: always taken, no BHT entry needed
		}
		if s.predictedTaken && s.form.Opcode != opJMP {
			s.predictedTarget = s.pc + 4 + uint64(int64(s.form.Disp21)*4)
		} else {
			s.predictedTarget = s.pc + 4
		}
	}
}

// doIS is a pass-through in this single-issue model: operand
// resolution (with bypass) happens immediately before EX in doEX,
// since emu/grain fuses operand read and execution into one Exec call
// rather than exposing a separate register-read step.
func (p *Pipeline) doIS(s *pipeSlot) {}

// doEX runs the grain (or, for a fault carrier, does nothing) through a
// bypass-aware context so source operands still in flight in MEM or WB
// this cycle are forwarded rather than read stale from the register
// file. Returns whether a branch misprediction requires a flush.
func (p *Pipeline) doEX(s *pipeSlot) (flush bool, target uint64) {
	if s.trapPending || !s.decodeOK {
		return false, 0
	}
	if older := p.stages[sMEM]; older != nil && (older.trapPending || older.outcome == grain.EnterPAL) {
		// The older slot in MEM vectors into PAL at WB next cycle and
		// flushes this one; running it now would let its side effects
		// (a store, a CALL_PAL routine such as HALT) land first.
		return false, 0
	}
	bc := &bypassContext{Context: p.ctx, mem: p.stages[sMEM], wb: p.stages[sWB], pc: s.pc}
	s.outcome = s.g.Exec(bc, &s.exec)

	switch s.outcome {
	case grain.Fault:
		s.trapPending, s.trapEvent = p.popFault()
		return false, 0
	case grain.EnterPAL:
		return false, 0 // delivered at WB, once the CALL_PAL grain itself retires
	}

	if s.isBranch && s.exec.BranchTaken {
		// IF has no BTB, so it always fetches sequentially (PC+4); the
		// BHT's direction prediction is recorded for its own update
		// policy (see branch_predictor.go) but, with no target cache to
		// redirect IF, it cannot actually prevent a flush here. Any
		// branch that resolves taken means the sequential fetch stream
		// was wrong and every younger slot must be discarded.
		return true, s.exec.BranchTarget
	}
	return false, 0
}

// popFault retrieves the event this instruction just raised via
// ctx.RaiseFault/TranslateData so WB can deliver exactly that one.
// Synchronous faults are never IPL-masked, so they are always the
// highest-priority deliverable entry the instant they're raised.
func (p *Pipeline) popFault() (bool, event.Pending) {
	ev, ok := p.ctx.sink.Next(31, true)
	return ok, ev
}

// doWB retires a non-faulting slot (commits its result, updates the
// branch predictor) or, for a fault carrier or a CALL_PAL grain,
// performs the PAL state-save sequence and reports that the pipeline
// must flush every younger in-flight instruction.
func (p *Pipeline) doWB(s *pipeSlot) (flush bool, target uint64) {
	ctx := p.ctx

	if s.trapPending {
		newPS, newPC := pal.Deliver(ctx.Hot(), ctx.CurrentHWPCB(), ctx.ps, psw.PC(s.pc), s.trapEvent)
		ctx.ps, ctx.pc = newPS, newPC
		// Any exception that transfers control to PAL breaks a live LL/SC
		// reservation, not just an explicit SWPCTX — otherwise a fault
		// taken between LDx_L and STx_C would leave a stale reservation
		// for a later STx_C on the same line to wrongly honor.
		ctx.InvalidateReservation()
		return true, uint64(newPC)
	}
	if s.outcome == grain.EnterPAL {
		ev := event.Pending{Kind: event.KindPalCall, ExtraInfo: uint64(s.form.Func)}
		newPS, newPC := pal.Deliver(ctx.Hot(), ctx.CurrentHWPCB(), ctx.ps, psw.PC(s.pc+4), ev)
		ctx.ps, ctx.pc = newPS, newPC
		ctx.sink.Cancel(event.KindPalCall)
		ctx.InvalidateReservation()
		return true, uint64(newPC)
	}

	if s.hasDest && s.exec.HasResult {
		if s.cat == grain.CategoryALUFloat {
			ctx.SetFP(s.destReg, s.exec.Result)
		} else {
			ctx.SetInt(s.destReg, s.exec.Result)
		}
	}
	if s.isBranch {
		ctx.bht.Update(s.pc, s.exec.BranchTaken)
	}

	// Normal retirement is the only point besides trap/PAL-call delivery
	// that ever advances ctx.pc: without this, Context.PC() would stay
	// pinned at its last trap/reset value for every straight-line or
	// ordinary-taken-branch instruction, which is wrong both for register
	// examine (§4.8) and for TranslateData's PalMode flag. The PAL-mode
	// tag carries forward from the slot's own fetch address rather than
	// being cleared — this pipeline never fetches PALcode as a distinct
	// stream, so a PAL-mode entry only ends where pal.Deliver/Exit says so.
	next := s.pc + 4
	if s.isBranch && s.exec.BranchTaken {
		next = s.exec.BranchTarget
	}
	mode := ctx.pc.PalMode()
	ctx.pc = psw.PC(next)
	if mode {
		ctx.pc = ctx.pc.EnterPAL()
	}
	if tracePipeline.Load() {
		slog.Debug("pipeline retire", "cpu", ctx.id, "pc", s.pc, "nextPC", next, "branch", s.isBranch, "taken", s.isBranch && s.exec.BranchTaken)
	}
	ctx.iprBank.Hot.Cycle++
	ctx.tickTimer()
	return false, 0
}

// bypassContext wraps the live Context so a slot executing in EX sees
// results still in flight in MEM/WB ahead of it, rather than whatever
// stale value sits in the register file until those slots retire.
// Precedence is nearest-neighbor-wins (MEM, the more recently executed
// instruction, outranks WB): in this single-issue in-order pipeline
// that is the full forwarding network — the three-tier EX-out/MEM-
// out/WB-out language in §4.1 collapses to one hop here because
// emu/grain fuses operand read and execution into a single call, and
// because WB's register-file commit already happens earlier in the
// same StepCycle pass that runs EX, so a true WB-out hazard is already
// resolved by the time EX reads the register file directly.
type bypassContext struct {
	*Context
	mem, wb *pipeSlot
	pc      uint64
}

// PC returns the fetch address of the instruction actually in EX this
// cycle, not Context.pc — that field only advances at retirement (WB),
// one or more cycles behind whatever is presently executing, so a
// grain computing a branch target from ctx.PC() would otherwise read a
// stale base address.
func (b *bypassContext) PC() uint64 { return b.pc }

func (b *bypassContext) GetInt(r uint8) uint64 {
	if r == 31 {
		return 0
	}
	if v, ok := forwardFrom(b.mem, r, grain.CategoryALUFloat, false); ok {
		return v
	}
	if v, ok := forwardFrom(b.wb, r, grain.CategoryALUFloat, false); ok {
		return v
	}
	return b.Context.GetInt(r)
}

func (b *bypassContext) GetFP(r uint8) uint64 {
	if r == 31 {
		return 0
	}
	if v, ok := forwardFrom(b.mem, r, grain.CategoryALUFloat, true); ok {
		return v
	}
	if v, ok := forwardFrom(b.wb, r, grain.CategoryALUFloat, true); ok {
		return v
	}
	return b.Context.GetFP(r)
}

// forwardFrom reports a forwardable result from s for register r, in
// the register file selected by wantFloat — a slot's destReg only
// aliases across the integer and FP files by coincidence of number, so
// the category must match the file the caller is actually reading.
func forwardFrom(s *pipeSlot, r uint8, floatCategory grain.Category, wantFloat bool) (uint64, bool) {
	if s == nil || !s.hasDest || !s.exec.HasResult || s.destReg != r {
		return 0, false
	}
	if (s.cat == floatCategory) != wantFloat {
		return 0, false
	}
	return s.exec.Result, true
}
