/*
   Console: the operator typewriter device, reachable two ways guest
   software actually uses on real Alpha firmware — MMIO register poll
   and CALL_PAL CSERVE — backed by the same byte queues either way.

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

// Package console replaces the teacher's model1052 (a channel-attached,
// CCW-driven IBM 1052 typewriter keyed to sys_channel) with the single
// character-at-a-time console Alpha firmware actually exposes: a small
// MMIO register pair (data/status) and the CALL_PAL CSERVE put_char/
// try_get_char convention, both fed by the same input/output queues so
// either access path sees the same stream.
package console

import (
	"sync"

	"github.com/ev6sim/alphacore/emu/memory"
)

// MMIO register layout, relative to the region base: byte 0 is the
// status register (bit 0: input available; bit 1: output ready — this
// model's output queue is unbounded so bit 1 is always set), byte 1 is
// the data register (a read drains the next input byte, a write
// enqueues one output byte).
const (
	regStatus = 0
	regData   = 1

	statusInputReady = 1 << 0
	statusOutReady   = 1 << 1
)

// Transport is how bytes actually reach and leave the outside world —
// a telnet session, a real serial port, or a test double. Device owns
// the queues; Transport owns the wire.
type Transport interface {
	// Start begins delivering received bytes to sink and returns
	// immediately; bytes written via WriteByte go out over the wire.
	Start(sink func(b byte)) error
	WriteByte(b byte) error
	Close() error
}

// Device is one console's input/output byte queues plus whichever
// Transport is currently attached. Safe for concurrent use: the CPU
// goroutine calls PutChar/TryGetChar and the MMIO handlers, while the
// transport's own goroutine calls Receive.
type Device struct {
	mu        sync.Mutex
	input     []byte
	transport Transport
}

// NewDevice builds an unattached console; Attach binds a Transport.
func NewDevice() *Device {
	return &Device{}
}

// Attach starts delivering bytes from t into this device's input queue,
// replacing any previously attached transport.
func (d *Device) Attach(t Transport) error {
	d.mu.Lock()
	prev := d.transport
	d.transport = t
	d.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return t.Start(d.receive)
}

func (d *Device) receive(b byte) {
	d.mu.Lock()
	d.input = append(d.input, b)
	d.mu.Unlock()
}

// PutChar writes one byte out over the attached transport; with no
// transport attached it is silently dropped, the same "nobody's
// listening" behavior a disconnected terminal has on real hardware.
func (d *Device) PutChar(b byte) {
	d.mu.Lock()
	t := d.transport
	d.mu.Unlock()
	if t != nil {
		_ = t.WriteByte(b)
	}
}

// TryGetChar drains one byte from the input queue, reporting false if
// none is pending.
func (d *Device) TryGetChar() (byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.input) == 0 {
		return 0, false
	}
	b := d.input[0]
	d.input = d.input[1:]
	return b, true
}

// --- memory.MMIOHandler ---

func (d *Device) OnRead(offset uint64, width uint8) (uint64, memory.Status) {
	if width != 1 {
		return 0, memory.WidthFault
	}
	switch offset {
	case regStatus:
		d.mu.Lock()
		ready := len(d.input) > 0
		d.mu.Unlock()
		st := uint64(statusOutReady)
		if ready {
			st |= statusInputReady
		}
		return st, memory.Ok
	case regData:
		b, ok := d.TryGetChar()
		if !ok {
			return 0, memory.Ok
		}
		return uint64(b), memory.Ok
	default:
		return 0, memory.OutOfRange
	}
}

func (d *Device) OnWrite(offset uint64, width uint8, value uint64) memory.Status {
	if width != 1 {
		return memory.WidthFault
	}
	if offset != regData {
		return memory.OutOfRange
	}
	d.PutChar(byte(value))
	return memory.Ok
}

func (d *Device) OnReset() {
	d.mu.Lock()
	d.input = nil
	d.mu.Unlock()
}

func (d *Device) OnFence(kind uint8) {}
