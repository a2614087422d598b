package event

import "testing"

func TestMachineCheckOutranksEverything(t *testing.T) {
	s := NewSink(8)
	s.Raise(Pending{Kind: KindInterrupt, IPL: 20})
	s.Raise(Pending{Kind: KindMachineCheck})

	p, ok := s.Next(0, false)
	if !ok || p.Kind != KindMachineCheck {
		t.Fatalf("expected machine check first, got %+v ok=%v", p, ok)
	}
}

func TestInterruptMaskedByIPL(t *testing.T) {
	s := NewSink(8)
	s.Raise(Pending{Kind: KindInterrupt, IPL: 4})

	if _, ok := s.Next(4, false); ok {
		t.Fatal("interrupt at IPL 4 must not deliver when current IPL is already 4")
	}
	if p, ok := s.Next(3, false); !ok || p.Kind != KindInterrupt {
		t.Fatal("interrupt at IPL 4 must deliver when current IPL is 3")
	}
}

func TestASTGatedByEnableAndIPL(t *testing.T) {
	s := NewSink(8)
	s.Raise(Pending{Kind: KindAST, IPL: 2})

	if _, ok := s.Next(0, false); ok {
		t.Fatal("AST must not deliver when ASTs are disabled")
	}
	if p, ok := s.Next(0, true); !ok || p.Kind != KindAST {
		t.Fatal("AST must deliver once enabled and IPL permits it")
	}
}

func TestSynchronousExceptionNeverMasked(t *testing.T) {
	s := NewSink(8)
	s.Raise(Pending{Kind: KindException, Class: ClassAccessViolation})

	if p, ok := s.Next(31, false); !ok || p.Kind != KindException {
		t.Fatal("synchronous faults must deliver regardless of IPL")
	}
}

func TestExceptionOutranksInterruptAndAST(t *testing.T) {
	s := NewSink(8)
	s.Raise(Pending{Kind: KindInterrupt, IPL: 20})
	s.Raise(Pending{Kind: KindAST, IPL: 2})
	s.Raise(Pending{Kind: KindException, Class: ClassUnaligned})

	p, ok := s.Next(0, true)
	if !ok || p.Kind != KindException {
		t.Fatalf("exception must win priority over interrupt/AST, got %+v", p)
	}
}

func TestFullSinkEvictsLowestPriority(t *testing.T) {
	s := NewSink(2)
	s.Raise(Pending{Kind: KindSoftware, IPL: 1})
	s.Raise(Pending{Kind: KindInterrupt, IPL: 10})
	s.Raise(Pending{Kind: KindMachineCheck}) // should bump the software interrupt, not the hardware one

	if len(s.pending) != 2 {
		t.Fatalf("expected sink capacity held at 2, got %d", len(s.pending))
	}
	p, ok := s.Next(0, false)
	if !ok || p.Kind != KindMachineCheck {
		t.Fatalf("expected machine check to survive eviction, got %+v", p)
	}
}

func TestCancelRemovesMatchingKindOnly(t *testing.T) {
	s := NewSink(8)
	s.Raise(Pending{Kind: KindInterrupt, IPL: 10})
	s.Raise(Pending{Kind: KindSoftware, IPL: 1})

	s.Cancel(KindInterrupt)

	if p, ok := s.Next(0, false); !ok || p.Kind != KindSoftware {
		t.Fatalf("expected software interrupt to remain after cancel, got %+v ok=%v", p, ok)
	}
	if !s.Empty() {
		t.Fatal("sink should be empty after draining the remaining event")
	}
}
