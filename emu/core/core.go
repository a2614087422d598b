/*
   System: the SMP aggregate tying one shared guest physical address
   space and TLB/coherence fabric to N per-CPU drivers.

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

// Package core replaces the teacher's single-CPU emu/core.core (one
// goroutine, a package-global cpu.CycleCPU, a master-channel select
// loop reading master.Packet) with a System owning N per-CPU drivers
// sharing one memory/TLB/coherence fabric — the same Start/Stop/
// packet-channel shape generalized from one CPU to SMP.
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ev6sim/alphacore/emu/console"
	"github.com/ev6sim/alphacore/emu/cpu"
	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/grain"
	"github.com/ev6sim/alphacore/emu/memory"
	"github.com/ev6sim/alphacore/emu/smp"
	"github.com/ev6sim/alphacore/emu/tlb"
)

// PacketKind names the operator/external commands a System routes to
// one or all of its Cpu drivers, the generalized successor to the
// teacher's master.Packet.Msg enum (TelConnect/TelReceive/Start/Stop/
// IPLdevice) — this port has no 3270/channel traffic to carry, but the
// same start/stop/deliver-an-event shape still applies.
type PacketKind uint8

const (
	PacketStart     PacketKind = iota // resume running
	PacketStop                        // pause
	PacketReset                       // architectural reset
	PacketIPI                         // inter-processor interrupt: deliver Event to the target CPU
	PacketBroadcast                   // deliver Event to every CPU (e.g. a global TLB shootdown line)
)

// Packet is one command routed to a single CPU (TargetCPU) or every
// CPU (TargetCPU == BroadcastCPU).
type Packet struct {
	Kind      PacketKind
	TargetCPU int
	Event     event.Pending
}

// BroadcastCPU, used as Packet.TargetCPU, delivers to every Cpu.
const BroadcastCPU = -1

// Cpu is one emulated processor's driver: its Context+Pipeline plus the
// goroutine loop that steps it, grounded on the teacher's core.Start (a
// `done` channel to stop, a packet channel for commands, a default
// case running one unit of work when `running`).
type Cpu struct {
	ID       int
	Ctx      *cpu.Context
	Pipeline *cpu.Pipeline

	wg      sync.WaitGroup
	done    chan struct{}
	packets chan Packet
	running bool
}

func newCPU(id int, ctx *cpu.Context) *Cpu {
	return &Cpu{
		ID:       id,
		Ctx:      ctx,
		Pipeline: cpu.NewPipeline(ctx),
		done:     make(chan struct{}),
		packets:  make(chan Packet, 16),
	}
}

// Start runs this CPU's loop until Stop is called: one StepCycle per
// iteration while running, otherwise idle-polling the packet channel —
// the teacher's core.Start loop shape, generalized from a package-global
// CycleCPU call to this Cpu's own Pipeline.
func (c *Cpu) Start() {
	c.wg.Add(1)
	defer c.wg.Done()
	for {
		if c.running {
			c.Pipeline.StepCycle()
		}
		select {
		case <-c.done:
			return
		case p := <-c.packets:
			c.handlePacket(p)
		default:
		}
	}
}

func (c *Cpu) handlePacket(p Packet) {
	switch p.Kind {
	case PacketStart:
		c.running = true
	case PacketStop:
		c.running = false
	case PacketReset:
		c.Pipeline.Reset()
	case PacketIPI, PacketBroadcast:
		c.Pipeline.InjectPendingEvent(p.Event)
	}
}

// SetRunning directly toggles this CPU's run state, for callers driving
// it cooperatively (System.StepAllCooperative) rather than through its
// own goroutine and packet channel.
func (c *Cpu) SetRunning(running bool) { c.running = running }

// Stop signals this CPU's goroutine to exit and waits, with a timeout
// matching the teacher's core.Stop behavior (log and give up rather
// than hang forever if the goroutine is wedged).
func (c *Cpu) Stop() {
	close(c.done)
	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for CPU to stop", "cpu", c.ID)
	}
}

// System is the SMP aggregate: shared memory/TLB/coherence fabric plus
// N Cpu drivers and the one shared console any of them can reach via
// CALL_PAL CSERVE.
type System struct {
	Mem     *memory.Memory
	TLB     *tlb.Manager
	Coh     *smp.Coherence
	Grains  *grain.Registry
	Console *console.Device

	Cpus []*Cpu
}

// NewSystem builds a System with numCPU processors sharing one guest
// physical address space, TLB shard manager, coherence fabric, and
// instruction grain registry.
func NewSystem(numCPU int, memSize uint64) *System {
	s := &System{
		Mem:     memory.New(memSize),
		TLB:     tlb.NewManager(numCPU),
		Coh:     smp.NewCoherence(numCPU),
		Grains:  grain.NewRegistry(),
		Console: console.NewDevice(),
	}
	s.Cpus = make([]*Cpu, numCPU)
	for i := 0; i < numCPU; i++ {
		ctx := cpu.NewContext(i, s.Grains, s.TLB, s.Mem, s.Coh)
		ctx.AttachConsole(s.Console)
		s.Cpus[i] = newCPU(i, ctx)
	}
	return s
}

// Start launches one goroutine per Cpu — "one native thread per
// emulated CPU", the default SMP driver mode.
func (s *System) Start() {
	for _, c := range s.Cpus {
		go c.Start()
	}
}

// Stop halts every Cpu, waiting (with the per-CPU timeout) for each.
func (s *System) Stop() {
	for _, c := range s.Cpus {
		c.Stop()
	}
}

// Send routes a Packet to its target CPU, or every CPU for
// BroadcastCPU/PacketBroadcast.
func (s *System) Send(p Packet) {
	if p.TargetCPU == BroadcastCPU || p.Kind == PacketBroadcast {
		for _, c := range s.Cpus {
			c.packets <- p
		}
		return
	}
	if p.TargetCPU >= 0 && p.TargetCPU < len(s.Cpus) {
		s.Cpus[p.TargetCPU].packets <- p
	}
}

// StepAllCooperative round-robins one StepCycle per running CPU without
// goroutines — the single-threaded cooperative mode the concurrency
// model allows as an alternative to one native thread per CPU. It
// drives the identical Pipeline.StepCycle each Cpu.Start would
// otherwise call from its own goroutine.
func (s *System) StepAllCooperative() {
	for _, c := range s.Cpus {
		if c.running {
			c.Pipeline.StepCycle()
		}
	}
}
