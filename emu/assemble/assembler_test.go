package assembler

import "testing"

func TestAssembleOperateRegisterForm(t *testing.T) {
	raw, err := Assemble("ADDQ R1,R2,R3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x10)<<26 | uint32(1)<<21 | uint32(2)<<16 | uint32(0x20)<<5 | uint32(3)
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleOperateLiteralForm(t *testing.T) {
	raw, err := Assemble("ADDQ R1,#0x5,R3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x10)<<26 | uint32(1)<<21 | 1<<12 | uint32(5)<<13 | uint32(0x20)<<5 | uint32(3)
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleFloatOperate(t *testing.T) {
	raw, err := Assemble("ADDT F1,F2,F3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x16)<<26 | uint32(1)<<21 | uint32(2)<<16 | uint32(0x0a0)<<5 | uint32(3)
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleMemoryWithBase(t *testing.T) {
	raw, err := Assemble("LDQ R4,16(R3)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x29)<<26 | uint32(4)<<21 | uint32(3)<<16 | uint32(16)
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleMemoryDefaultsBaseToR31(t *testing.T) {
	raw, err := Assemble("LDQ R4,16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x29)<<26 | uint32(4)<<21 | uint32(31)<<16 | uint32(16)
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleBranchNegativeDisplacement(t *testing.T) {
	raw, err := Assemble("BEQ R5,-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x39)<<26 | uint32(5)<<21 | uint32(-2&0x1fffff)
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleJMP(t *testing.T) {
	raw, err := Assemble("JMP R1,(R2)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(0x1a)<<26 | uint32(1)<<21 | uint32(2)<<16
	if raw != want {
		t.Fatalf("got %#08x, want %#08x", raw, want)
	}
}

func TestAssembleCallPalByName(t *testing.T) {
	raw, err := Assemble("CALL_PAL CSERVE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 0x3d {
		t.Fatalf("got %#08x, want %#08x", raw, 0x3d)
	}
}

func TestAssembleBarrierNoOperand(t *testing.T) {
	raw, err := Assemble("MB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != uint32(0x18)<<26|0x4000 {
		t.Fatalf("got %#08x", raw)
	}
}

func TestAssembleUndefinedOpcode(t *testing.T) {
	if _, err := Assemble("NOTREAL R1,R2,R3"); err == nil {
		t.Fatal("expected an error for an undefined mnemonic")
	}
}

func TestAssembleADDQUsesOperateOpcode(t *testing.T) {
	raw, err := Assemble("ADDQ R1,R2,R3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw>>26 != 0x10 {
		t.Fatalf("expected operate opcode, got %#x", raw>>26)
	}
}
