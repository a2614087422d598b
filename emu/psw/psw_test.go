package psw

import "testing"

func TestFieldIndependence(t *testing.T) {
	// ps_set_IPL(ps_set_CM(p, c), i) == ps_set_CM(ps_set_IPL(p, i), c)
	var p PS = 0x1234_5678_9abc_def0
	for c := Kernel; c <= User; c++ {
		for i := uint8(0); i < 32; i++ {
			left := p.WithCM(c).WithIPL(i)
			right := p.WithIPL(i).WithCM(c)
			if left != right {
				t.Fatalf("field independence violated for c=%v i=%d: %#x != %#x", c, i, left, right)
			}
		}
	}
}

func TestWrPSOnlyTouchesIPLAndSW(t *testing.T) {
	orig := PS(0).WithCM(Supervisor).WithIPL(3).WithSW(1).WithIV(true).WithVMM(true).WithSPAlign(7)
	want := orig.WithIPL(20).WithSW(2)

	got := WrPS(orig, PS(0).WithIPL(20).WithSW(2))
	if got != want {
		t.Fatalf("WrPS mutated more than IPL/SW: got %#x want %#x", got, want)
	}
	if got.CM() != orig.CM() || got.IV() != orig.IV() || got.VMM() != orig.VMM() || got.SPAlign() != orig.SPAlign() {
		t.Fatalf("WrPS changed a field outside {IPL,SW}: got=%#x orig=%#x", got, orig)
	}
}

func TestReservedBitsDetected(t *testing.T) {
	clean := PS(0).WithCM(User).WithIPL(31).WithSW(3).WithIV(true).WithVMM(true).WithIP(true).WithSPAlign(63)
	if clean.Reserved() {
		t.Fatalf("well-formed PS flagged as reserved: %#x", clean)
	}
	dirty := clean | PS(1<<5)
	if !dirty.Reserved() {
		t.Fatalf("PS with reserved bit set not flagged: %#x", dirty)
	}
}

func TestPCPalModeAndNext(t *testing.T) {
	pc := PC(0x10000)
	if pc.PalMode() {
		t.Fatal("PC with low bit clear reported PalMode")
	}
	entered := pc.EnterPAL()
	if !entered.PalMode() {
		t.Fatal("EnterPAL did not set the PAL-mode bit")
	}
	if entered.Address() != 0x10000 {
		t.Fatalf("EnterPAL Address mismatch: %#x", entered.Address())
	}
	nxt := entered.Next()
	if !nxt.PalMode() {
		t.Fatal("Next lost PAL-mode bit")
	}
	if nxt.Address() != 0x10004 {
		t.Fatalf("Next address mismatch: %#x", nxt.Address())
	}
}
