package pal

import (
	"testing"

	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/ipr"
	"github.com/ev6sim/alphacore/emu/psw"
)

func TestDeliverSetsKernelModeAndEntersPAL(t *testing.T) {
	hot := &ipr.Hot{}
	hwpcb := &ipr.HWPCB{}
	ps := psw.PS(0).WithCM(psw.User).WithIPL(3)

	newPS, newPC := Deliver(hot, hwpcb, ps, psw.PC(0x4000), event.Pending{
		Kind: event.KindException, Class: event.ClassAccessViolation, FaultVA: 0x9000,
	})

	if newPS.CM() != psw.Kernel {
		t.Fatalf("expected kernel mode after delivery, got %v", newPS.CM())
	}
	if !newPC.PalMode() {
		t.Fatal("expected PAL mode bit set on entry")
	}
	if hot.ExcAddr != 0x4000 {
		t.Fatalf("expected EXC_ADDR saved, got %#x", hot.ExcAddr)
	}
	if hot.VA != 0x9000 {
		t.Fatalf("expected fault VA recorded, got %#x", hot.VA)
	}
	if hot.ExcSum&ipr.ExcSumACV == 0 {
		t.Fatal("expected ACV bit set in EXC_SUM")
	}
	if hwpcb.PC != 0x4000 || hwpcb.PS != uint64(ps) {
		t.Fatal("expected outbound HWPCB to capture the interrupted PC/PS")
	}
}

func TestExitRestoresAndClearsPALMode(t *testing.T) {
	hwpcb := &ipr.HWPCB{PC: 0x4004, PS: uint64(psw.PS(0).WithCM(psw.User))}
	ps, pc := Exit(hwpcb)
	if pc.PalMode() {
		t.Fatal("expected PAL mode cleared on exit")
	}
	if ps.CM() != psw.User {
		t.Fatalf("expected restored user mode, got %v", ps.CM())
	}
}

type fakeEnv struct {
	hot    ipr.Hot
	cold   ipr.Cold
	hwpcb  ipr.HWPCB
	regs   [32]uint64
	halted  bool
	invAll  bool
	outChar byte
	inChar  byte
	inReady bool
}

func (f *fakeEnv) Hot() *ipr.Hot            { return &f.hot }
func (f *fakeEnv) Cold() *ipr.Cold          { return &f.cold }
func (f *fakeEnv) CurrentHWPCB() *ipr.HWPCB { return &f.hwpcb }
func (f *fakeEnv) GetInt(r uint8) uint64    { return f.regs[r] }
func (f *fakeEnv) SetInt(r uint8, v uint64) { f.regs[r] = v }
func (f *fakeEnv) InvalidateTLBAll()        { f.invAll = true }
func (f *fakeEnv) InvalidateTLBASN(asn uint8) {}
func (f *fakeEnv) InvalidateTLBVA(va uint64)  {}
func (f *fakeEnv) InvalidateReservation()     {}
func (f *fakeEnv) Halt()                      { f.halted = true }
func (f *fakeEnv) ConsolePutChar(b byte)      { f.outChar = b }
func (f *fakeEnv) ConsoleTryGetChar() (byte, bool) {
	if !f.inReady {
		return 0, false
	}
	f.inReady = false
	return f.inChar, true
}

func TestCserveGetCharReturnsMinusOneWhenEmpty(t *testing.T) {
	env := &fakeEnv{}
	env.regs[16] = CserveFnGetChar
	Routines[FnCserve](env)
	if env.regs[0] != ^uint64(0) {
		t.Fatalf("expected -1 with no pending input, got %#x", env.regs[0])
	}
}

func TestCservePutCharForwardsByte(t *testing.T) {
	env := &fakeEnv{}
	env.regs[16] = CserveFnPutChar
	env.regs[17] = 'A'
	Routines[FnCserve](env)
	if env.outChar != 'A' {
		t.Fatalf("expected 'A' forwarded, got %q", env.outChar)
	}
}

func TestHaltRoutine(t *testing.T) {
	env := &fakeEnv{}
	Routines[FnHalt](env)
	if !env.halted {
		t.Fatal("expected HALT to call env.Halt()")
	}
}

func TestWrUniqRdUniqRoundTrip(t *testing.T) {
	env := &fakeEnv{}
	env.regs[16] = 0x1234
	Routines[FnWrUniq](env)
	Routines[FnRdUniq](env)
	if env.regs[0] != 0x1234 {
		t.Fatalf("expected UNIQ round trip, got %#x", env.regs[0])
	}
}

func TestTbiaInvokesInvalidateAll(t *testing.T) {
	env := &fakeEnv{}
	Routines[FnTbia](env)
	if !env.invAll {
		t.Fatal("expected TBIA to invalidate all")
	}
}
