package disassembler

import (
	"strings"
	"testing"
)

func encodeOperate(opcode, ra, rb, fn, rc uint8) uint32 {
	return uint32(opcode)<<26 | uint32(ra)<<21 | uint32(rb)<<16 | uint32(fn)<<5 | uint32(rc)
}

func encodeMem(opcode, reg, rb uint8, disp16 int16) uint32 {
	return uint32(opcode)<<26 | uint32(reg)<<21 | uint32(rb)<<16 | uint32(uint16(disp16))
}

func encodeBranch(opcode, ra uint8, disp21 int32) uint32 {
	return uint32(opcode)<<26 | uint32(ra)<<21 | (uint32(disp21) & 0x1fffff)
}

func TestDisassembleOperate(t *testing.T) {
	raw := encodeOperate(0x10, 1, 2, 0x20, 3) // ADDQ R1,R2,R3
	s, n := Disassemble(raw)
	if n != 4 {
		t.Fatalf("expected length 4, got %d", n)
	}
	if !strings.Contains(s, "ADDQ") || !strings.Contains(s, "R1,R2,R3") {
		t.Fatalf("unexpected disassembly: %q", s)
	}
}

func TestDisassembleOperateLiteral(t *testing.T) {
	raw := uint32(0x10)<<26 | uint32(1)<<21 | (1 << 12) | (5 << 13) | uint32(0x20)<<5 | uint32(3)
	s, _ := Disassemble(raw)
	if !strings.Contains(s, "ADDQ") || !strings.Contains(s, "#0x5") {
		t.Fatalf("expected literal operand form, got %q", s)
	}
}

func TestDisassembleMemory(t *testing.T) {
	raw := encodeMem(0x29, 4, 3, 16) // LDQ R4,16(R3)
	s, _ := Disassemble(raw)
	if !strings.Contains(s, "LDQ") || !strings.Contains(s, "R4,16(R3)") {
		t.Fatalf("unexpected disassembly: %q", s)
	}
}

func TestDisassembleBranch(t *testing.T) {
	raw := encodeBranch(0x39, 5, -2) // BEQ R5,-2
	s, _ := Disassemble(raw)
	if !strings.Contains(s, "BEQ") || !strings.Contains(s, "R5,-2") {
		t.Fatalf("unexpected disassembly: %q", s)
	}
}

func TestDisassembleCallPalKnownFunction(t *testing.T) {
	raw := uint32(0x00)<<26 | 0x3d // CALL_PAL CSERVE
	s, _ := Disassemble(raw)
	if !strings.Contains(s, "CALL_PAL") || !strings.Contains(s, "CSERVE") {
		t.Fatalf("unexpected disassembly: %q", s)
	}
}

func TestDisassembleBarrierNoOperand(t *testing.T) {
	raw := uint32(0x18)<<26 | 0x4000 // MB
	s, _ := Disassemble(raw)
	if strings.TrimSpace(s) != "MB" {
		t.Fatalf("expected bare mnemonic MB, got %q", s)
	}
}

func TestDisassembleUnknownOpcodeFallsBackToWord(t *testing.T) {
	raw := uint32(0x01) << 26
	s, _ := Disassemble(raw)
	if !strings.HasPrefix(s, ".WORD") {
		t.Fatalf("expected .WORD fallback, got %q", s)
	}
}
