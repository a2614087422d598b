package parser

import (
	"testing"

	"github.com/ev6sim/alphacore/emu/memory"
)

func TestAttachConsoleTelnetBindsTransport(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand(`attach console telnet ":0"`, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAttachUnknownTargetRejected(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand("attach disk foo", sess); err == nil {
		t.Fatal("expected an error attaching a non-console target")
	}
}

func TestExamineUnknownTargetRejected(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand("examine bogus", sess); err == nil {
		t.Fatal("expected an error for an unknown examine target")
	}
}

func TestExamineMemoryRange(t *testing.T) {
	sess := newSession(t)
	sess.Sys.Mem.Write32(0x100, 0xdeadbeef)
	if _, err := ProcessCommand("examine mem 100", sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDepositMemoryThenExamine(t *testing.T) {
	sess := newSession(t)
	if _, err := ProcessCommand("deposit mem 200 cafebabe", sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, st := sess.Sys.Mem.Read(0x200, 4)
	if st != memory.Ok || v != 0xcafebabe {
		t.Fatalf("got %#x status=%v", v, st)
	}
}
