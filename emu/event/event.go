/*
   Pending Event model: per-CPU fault sink and exception/PAL delivery
   priority ordering.

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

// Package event replaces the teacher's ordered linked-list device-timer
// scheduler (AddEvent/CancelEvent/Advance, relative delays chained off a
// shared head/tail list) with a per-CPU bounded array of Pending Events,
// ordered not by time-to-fire but by a fixed delivery priority: a timer
// has exactly one thing it can become (its callback); a CPU cycle can
// have a machine check, a page fault, and an external interrupt all
// pending at once, and only the priority table says which one actually
// gets delivered. The insert/cancel naming is kept; the storage and
// selection rule underneath are not the teacher's.
package event

// Kind classifies a Pending Event.
type Kind uint8

const (
	KindNone Kind = iota
	KindMachineCheck
	KindReset
	KindException // synchronous fault: access violation, TLB/TB miss, unaligned, arithmetic trap
	KindInterrupt // external hardware interrupt, gated by IPL
	KindAST       // asynchronous system trap, delivered at IPL 2
	KindSoftware  // software interrupt request, gated by IPL
	KindPalCall   // CALL_PAL vectoring
)

// Class refines KindException into the fault taxonomy the MMU and the
// arithmetic/PAL grains report.
type Class uint8

const (
	ClassNone Class = iota
	ClassNonCanonical
	ClassNotKseg
	ClassTlbMiss
	ClassDtbMiss
	ClassItbMiss
	ClassAccessViolation
	ClassFaultOnRead
	ClassFaultOnWrite
	ClassFaultOnExecute
	ClassPageNotPresent
	ClassUnaligned
	ClassBusError
	ClassArithmetic
	ClassOpcodeReserved
	ClassIllegalInstruction
)

// Pending is one outstanding event awaiting delivery on a CPU. Multiple
// Pending events may be live at once (a CPU can take a page fault on the
// instruction that would have serviced a pending interrupt); Next picks
// exactly one per cycle according to the priority table.
type Pending struct {
	Kind  Kind
	Class Class

	IPL uint8 // requested delivery IPL, for Interrupt/Software/AST kinds

	FaultVA   uint64
	FaultPA   uint64
	Mode      uint8 // psw.Mode ordinal at time of fault
	IsWrite   bool
	IsExec    bool
	Opcode    uint32 // raw instruction word, for PAL CALL_PAL/illegal-instruction delivery
	ExtraInfo uint64
}

// priority orders Kind values from highest to lowest delivery priority,
// matching the state-save sequence's table: machine check, then
// reset/hardware error, then synchronous faults, then external
// interrupts (gated by current IPL), then ASTs at IPL 2 (gated by
// ASTEN/ASTSR), then software interrupts (gated by IPL). Lower number
// wins.
var priority = map[Kind]int{
	KindMachineCheck: 0,
	KindReset:        1,
	KindException:    2,
	KindPalCall:      2, // CALL_PAL shares the synchronous slot: both vector from IF/DE
	KindInterrupt:    3,
	KindAST:          4,
	KindSoftware:     5,
}

// Sink is a per-CPU bounded fault/interrupt queue. Its capacity is fixed
// at construction; Raise on a full Sink drops the lowest-priority entry
// to make room rather than grow unboundedly, since a real CPU can only
// ever have a handful of events genuinely outstanding at once.
type Sink struct {
	cap     int
	pending []Pending
}

// Pending returns a copy of every event currently queued, in no
// particular order; for the operator shell's "show pending" verb,
// which only observes the sink rather than draining it.
func (s *Sink) Pending() []Pending {
	out := make([]Pending, len(s.pending))
	copy(out, s.pending)
	return out
}

// NewSink builds a Sink holding up to capacity simultaneous events.
func NewSink(capacity int) *Sink {
	return &Sink{cap: capacity, pending: make([]Pending, 0, capacity)}
}

// Raise enqueues a new Pending event, evicting the current
// lowest-priority occupant if the sink is already full.
func (s *Sink) Raise(p Pending) {
	if len(s.pending) >= s.cap {
		worst := 0
		for i := 1; i < len(s.pending); i++ {
			if priority[s.pending[i].Kind] > priority[s.pending[worst].Kind] {
				worst = i
			}
		}
		if priority[p.Kind] >= priority[s.pending[worst].Kind] {
			return // new event is no more urgent than the one we'd evict
		}
		s.pending[worst] = p
		return
	}
	s.pending = append(s.pending, p)
}

// Next selects the single highest-priority deliverable event given the
// CPU's current IPL and AST enable/summary state, removes it from the
// sink, and returns it. It returns ok=false when nothing is currently
// deliverable (lower-priority events may still be pending but masked).
func (s *Sink) Next(curIPL uint8, astEnabled bool) (Pending, bool) {
	best := -1
	for i := range s.pending {
		p := &s.pending[i]
		if !s.deliverable(p, curIPL, astEnabled) {
			continue
		}
		if best == -1 || priority[p.Kind] < priority[s.pending[best].Kind] {
			best = i
		}
	}
	if best == -1 {
		return Pending{}, false
	}
	p := s.pending[best]
	s.pending = append(s.pending[:best], s.pending[best+1:]...)
	return p, true
}

func (s *Sink) deliverable(p *Pending, curIPL uint8, astEnabled bool) bool {
	switch p.Kind {
	case KindMachineCheck, KindReset, KindException, KindPalCall:
		return true // synchronous and fatal events are never IPL-masked
	case KindInterrupt, KindSoftware:
		return p.IPL > curIPL
	case KindAST:
		return astEnabled && p.IPL > curIPL
	default:
		return false
	}
}

// Cancel removes every pending event of the given kind, used when a
// condition that raised an event (e.g. a device deasserting its
// interrupt line) no longer holds.
func (s *Sink) Cancel(kind Kind) {
	out := s.pending[:0]
	for _, p := range s.pending {
		if p.Kind != kind {
			out = append(out, p)
		}
	}
	s.pending = out
}

// Empty reports whether the sink currently holds no events at all.
func (s *Sink) Empty() bool { return len(s.pending) == 0 }
