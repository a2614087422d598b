package grain

import (
	"math"
	"testing"

	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/ipr"
)

type fakeCtx struct {
	regs   [32]uint64
	fpRegs [32]uint64
	pc     uint64
	iv   bool
	mem  map[uint64]uint64
	pal  uint32
	palCalled bool
	barrierKind uint8
	barrierCalled bool
	raised []event.Pending
}

func newFakeCtx() *fakeCtx { return &fakeCtx{mem: map[uint64]uint64{}} }

func (f *fakeCtx) GetInt(r uint8) uint64 {
	if r == 31 {
		return 0
	}
	return f.regs[r]
}
func (f *fakeCtx) SetInt(r uint8, v uint64) {
	if r == 31 {
		return
	}
	f.regs[r] = v
}
func (f *fakeCtx) GetFP(r uint8) uint64 {
	if r == 31 {
		return 0
	}
	return f.fpRegs[r]
}
func (f *fakeCtx) SetFP(r uint8, v uint64) {
	if r == 31 {
		return
	}
	f.fpRegs[r] = v
}
func (f *fakeCtx) PC() uint64              { return f.pc }
func (f *fakeCtx) SetPC(v uint64)          { f.pc = v }
func (f *fakeCtx) IV() bool                { return f.iv }
func (f *fakeCtx) TranslateData(va uint64, access ipr.Access, size uint8) (uint64, bool) {
	return va, true
}
func (f *fakeCtx) ReadMem(pa uint64, width uint8) (uint64, bool) { return f.mem[pa], true }
func (f *fakeCtx) WriteMem(pa uint64, width uint8, v uint64) bool {
	f.mem[pa] = v
	return true
}
func (f *fakeCtx) RaiseFault(p event.Pending) { f.raised = append(f.raised, p) }
func (f *fakeCtx) CallPAL(fn uint32)          { f.pal, f.palCalled = fn, true }
func (f *fakeCtx) Barrier(kind uint8)         { f.barrierKind, f.barrierCalled = kind, true }

func TestAddLRoundTrip(t *testing.T) {
	reg := NewRegistry()
	g, ok := reg.Lookup(Form{Opcode: 0x10, HasFunc: true, Func: fnAddL, Ra: 1, Rb: 2})
	if !ok {
		t.Fatal("ADDL grain not found")
	}
	ctx := newFakeCtx()
	ctx.regs[1], ctx.regs[2] = 3, 4
	s := &Slot{Form: Form{Opcode: 0x10, HasFunc: true, Func: fnAddL, Ra: 1, Rb: 2}}
	if out := g.Exec(ctx, s); out != Continue {
		t.Fatalf("unexpected outcome %v", out)
	}
	if s.Result != 7 {
		t.Fatalf("expected 7, got %d", s.Result)
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	reg := NewRegistry()
	st, ok := reg.Lookup(Form{Opcode: opSTQ})
	if !ok {
		t.Fatal("STQ grain not found")
	}
	ld, ok := reg.Lookup(Form{Opcode: opLDQ})
	if !ok {
		t.Fatal("LDQ grain not found")
	}

	ctx := newFakeCtx()
	ctx.regs[5] = 0x1000 // base
	ctx.regs[6] = 0xcafef00d

	sStore := &Slot{Form: Form{Opcode: opSTQ, Rb: 5, Rc: 6, Disp16: 8}}
	if out := st.Exec(ctx, sStore); out != Continue {
		t.Fatalf("store failed: %v", out)
	}

	sLoad := &Slot{Form: Form{Opcode: opLDQ, Ra: 7, Rb: 5, Disp16: 8}}
	if out := ld.Exec(ctx, sLoad); out != Continue {
		t.Fatalf("load failed: %v", out)
	}
	if sLoad.LoadData != 0xcafef00d {
		t.Fatalf("expected round trip, got %#x", sLoad.LoadData)
	}
}

func TestBranchTarget(t *testing.T) {
	reg := NewRegistry()
	g, ok := reg.Lookup(Form{Opcode: opBEQ})
	if !ok {
		t.Fatal("BEQ grain not found")
	}
	ctx := newFakeCtx()
	ctx.pc = 0x2000
	ctx.regs[1] = 0
	s := &Slot{Form: Form{Opcode: opBEQ, Ra: 1, Disp21: 4}}
	g.Exec(ctx, s)
	want := uint64(0x2000 + 4 + 4*4)
	if !s.BranchTaken || s.BranchTarget != want {
		t.Fatalf("expected taken target %#x, got taken=%v target=%#x", want, s.BranchTaken, s.BranchTarget)
	}
}

func TestCallPALRoutesThroughContext(t *testing.T) {
	reg := NewRegistry()
	g, ok := reg.Lookup(Form{Opcode: opCallPAL})
	if !ok {
		t.Fatal("CALL_PAL grain not found")
	}
	ctx := newFakeCtx()
	s := &Slot{Form: Form{Opcode: opCallPAL, Func: 0x36}}
	if out := g.Exec(ctx, s); out != EnterPAL {
		t.Fatalf("expected EnterPAL, got %v", out)
	}
	if !ctx.palCalled || ctx.pal != 0x36 {
		t.Fatalf("expected PAL function 0x36 dispatched, got %#x called=%v", ctx.pal, ctx.palCalled)
	}
}

func TestAddTRoundTrip(t *testing.T) {
	reg := NewRegistry()
	g, ok := reg.Lookup(Form{Opcode: opFloatT, HasFunc: true, Func: fnAddT, Ra: 1, Rb: 2, Rc: 3})
	if !ok {
		t.Fatal("ADDT grain not found")
	}
	ctx := newFakeCtx()
	ctx.fpRegs[1] = asBits(1.5)
	ctx.fpRegs[2] = asBits(2.25)
	s := &Slot{Form: Form{Opcode: opFloatT, HasFunc: true, Func: fnAddT, Ra: 1, Rb: 2, Rc: 3}}
	if out := g.Exec(ctx, s); out != Continue {
		t.Fatalf("unexpected outcome %v", out)
	}
	if got := asFloat(s.Result); got != 3.75 {
		t.Fatalf("expected 3.75, got %v", got)
	}
}

func TestDivTByZeroProducesInf(t *testing.T) {
	reg := NewRegistry()
	g, ok := reg.Lookup(Form{Opcode: opFloatT, HasFunc: true, Func: fnDivT})
	if !ok {
		t.Fatal("DIVT grain not found")
	}
	ctx := newFakeCtx()
	ctx.fpRegs[1] = asBits(1.0)
	ctx.fpRegs[2] = asBits(0.0)
	s := &Slot{Form: Form{Opcode: opFloatT, HasFunc: true, Func: fnDivT, Ra: 1, Rb: 2}}
	g.Exec(ctx, s)
	if !math.IsInf(asFloat(s.Result), 1) {
		t.Fatalf("expected +Inf, got %v", asFloat(s.Result))
	}
}

func TestCmpTltProducesAlphaBoolean(t *testing.T) {
	reg := NewRegistry()
	g, ok := reg.Lookup(Form{Opcode: opFloatT, HasFunc: true, Func: fnCmpTlt})
	if !ok {
		t.Fatal("CMPTLT grain not found")
	}
	ctx := newFakeCtx()
	ctx.fpRegs[1] = asBits(1.0)
	ctx.fpRegs[2] = asBits(2.0)
	s := &Slot{Form: Form{Opcode: opFloatT, HasFunc: true, Func: fnCmpTlt, Ra: 1, Rb: 2}}
	g.Exec(ctx, s)
	if asFloat(s.Result) != 2.0 {
		t.Fatalf("expected Alpha true (2.0), got %v", asFloat(s.Result))
	}
}

func TestCvtQtAndCvtTqRoundTrip(t *testing.T) {
	reg := NewRegistry()
	toFloat, ok := reg.Lookup(Form{Opcode: opFloatT, HasFunc: true, Func: fnCvtQt})
	if !ok {
		t.Fatal("CVTQT grain not found")
	}
	toInt, ok := reg.Lookup(Form{Opcode: opFloatT, HasFunc: true, Func: fnCvtTq})
	if !ok {
		t.Fatal("CVTTQ grain not found")
	}
	ctx := newFakeCtx()
	ctx.fpRegs[1] = uint64(42) // integer payload staged in an FP register, as CVTQT expects

	s1 := &Slot{Form: Form{Opcode: opFloatT, HasFunc: true, Func: fnCvtQt, Rb: 1}}
	toFloat.Exec(ctx, s1)
	if asFloat(s1.Result) != 42.0 {
		t.Fatalf("expected 42.0, got %v", asFloat(s1.Result))
	}

	ctx.fpRegs[2] = s1.Result
	s2 := &Slot{Form: Form{Opcode: opFloatT, HasFunc: true, Func: fnCvtTq, Rb: 2}}
	toInt.Exec(ctx, s2)
	if s2.Result != 42 {
		t.Fatalf("expected round trip to 42, got %d", s2.Result)
	}
}

func TestR31AlwaysZero(t *testing.T) {
	reg := NewRegistry()
	g, _ := reg.Lookup(Form{Opcode: 0x10, HasFunc: true, Func: fnAddQ})
	ctx := newFakeCtx()
	ctx.regs[1] = 99
	s := &Slot{Form: Form{Opcode: 0x10, HasFunc: true, Func: fnAddQ, Ra: 31, Rb: 1}}
	g.Exec(ctx, s)
	if s.Result != 99 {
		t.Fatalf("expected R31 operand to read zero, got result %d", s.Result)
	}
}
