package parser

import (
	"testing"

	"github.com/ev6sim/alphacore/emu/core"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	return &Session{Sys: core.NewSystem(2, 0x4000)}
}

func TestProcessCommandDepositAndExamineRegister(t *testing.T) {
	sess := newSession(t)

	if _, err := ProcessCommand("deposit reg[3] 2a", sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := sess.Sys.Cpus[0].Ctx.GetInt(3); v != 0x2a {
		t.Fatalf("got %#x", v)
	}
}

func TestProcessCommandDepositAndExaminePC(t *testing.T) {
	sess := newSession(t)

	if _, err := ProcessCommand("deposit pc 1000", sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Sys.Cpus[0].Ctx.PC() != 0x1000 {
		t.Fatalf("got %#x", sess.Sys.Cpus[0].Ctx.PC())
	}
}

func TestProcessCommandCPUSelect(t *testing.T) {
	sess := newSession(t)

	if _, err := ProcessCommand("cpu 1", sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.CPU != 1 {
		t.Fatalf("got %d", sess.CPU)
	}
	if _, err := ProcessCommand("cpu 7", sess); err == nil {
		t.Fatal("expected an error selecting an out-of-range cpu")
	}
}

func TestProcessCommandShowTLB(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand("show tlb", sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessCommandTooShortAbbreviationRejected(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand("s tlb", sess); err == nil {
		t.Fatal("expected an error for an abbreviation below every verb's minimum length")
	}
}

func TestProcessCommandUnknownVerb(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand("frobnicate", sess); err == nil {
		t.Fatal("expected an error for an unknown verb")
	}
}

func TestProcessCommandQuit(t *testing.T) {
	sess := newSession(t)
	quit, err := ProcessCommand("quit", sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quit {
		t.Fatal("expected quit to request shell exit")
	}
}

func TestParseRangeSingleAndSpan(t *testing.T) {
	line := &cmdLine{line: "[2:5] rest"}
	lo, hi, err := line.parseRange()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lo != 2 || hi != 5 {
		t.Fatalf("got lo=%d hi=%d", lo, hi)
	}
}

func TestGetIdentStopsAtBracket(t *testing.T) {
	line := &cmdLine{line: "reg[5]"}
	if ident := line.getIdent(); ident != "reg" {
		t.Fatalf("got %q", ident)
	}
	lo, hi, err := line.parseRange()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lo != 5 || hi != 5 {
		t.Fatalf("got lo=%d hi=%d", lo, hi)
	}
}

func TestCompleteCmdVerbPrefix(t *testing.T) {
	matches := CompleteCmd("ex")
	if len(matches) != 1 || matches[0] != "examine" {
		t.Fatalf("got %v", matches)
	}
}
