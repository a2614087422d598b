package console

import (
	"testing"

	"github.com/ev6sim/alphacore/emu/memory"
)

type fakeTransport struct {
	sink    func(b byte)
	written []byte
	closed  bool
}

func (f *fakeTransport) Start(sink func(b byte)) error { f.sink = sink; return nil }
func (f *fakeTransport) WriteByte(b byte) error        { f.written = append(f.written, b); return nil }
func (f *fakeTransport) Close() error                  { f.closed = true; return nil }

func TestPutCharForwardsToTransport(t *testing.T) {
	d := NewDevice()
	tr := &fakeTransport{}
	if err := d.Attach(tr); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	d.PutChar('X')
	if len(tr.written) != 1 || tr.written[0] != 'X' {
		t.Fatalf("expected 'X' written, got %v", tr.written)
	}
}

func TestTryGetCharDrainsReceivedBytes(t *testing.T) {
	d := NewDevice()
	tr := &fakeTransport{}
	_ = d.Attach(tr)
	tr.sink('H')
	tr.sink('I')

	b, ok := d.TryGetChar()
	if !ok || b != 'H' {
		t.Fatalf("expected 'H', got %q ok=%v", b, ok)
	}
	b, ok = d.TryGetChar()
	if !ok || b != 'I' {
		t.Fatalf("expected 'I', got %q ok=%v", b, ok)
	}
	if _, ok := d.TryGetChar(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestAttachReplacesAndClosesPreviousTransport(t *testing.T) {
	d := NewDevice()
	first := &fakeTransport{}
	second := &fakeTransport{}
	_ = d.Attach(first)
	_ = d.Attach(second)
	if !first.closed {
		t.Fatal("expected first transport closed on replacement")
	}
	d.PutChar('Z')
	if len(second.written) != 1 {
		t.Fatal("expected byte routed to the newly attached transport")
	}
}

func TestMMIORegisterRoundTrip(t *testing.T) {
	d := NewDevice()
	tr := &fakeTransport{}
	_ = d.Attach(tr)

	mem := memory.New(0x1000)
	mem.RegisterRegion(0x800, 2, 1)
	mem.SetDeviceHandlers(1, d)

	if v, st := mem.Read(0x800, 1); st != memory.Ok || v&statusOutReady == 0 {
		t.Fatalf("expected output-ready status bit set, got %#x status=%v", v, st)
	}
	if st := mem.Write(0x801, 1, 'Q'); st != memory.Ok {
		t.Fatalf("write failed: %v", st)
	}
	if len(tr.written) != 1 || tr.written[0] != 'Q' {
		t.Fatalf("expected 'Q' reaching transport via MMIO, got %v", tr.written)
	}

	tr.sink('R')
	if v, st := mem.Read(0x800, 1); st != memory.Ok || v&statusInputReady == 0 {
		t.Fatalf("expected input-ready status bit set after receive, got %#x", v)
	}
	if v, st := mem.Read(0x801, 1); st != memory.Ok || v != uint64('R') {
		t.Fatalf("expected data register to drain 'R', got %#x", v)
	}
}
