/*
   Instruction Grain Set: dense, opcode-indexed dispatch over a fixed set
   of execution-unit categories.

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

// Package grain replaces runtime polymorphism over instructions (a
// virtual Execute() per opcode object, the shape the redesign flags call
// out) with a table of function pointers keyed by opcode (and, for
// opcodes that have one, by function code), held in Go maps rather than
// a dense array, the way
// the teacher's emu/cpu/cpu_standard.go and cpu_decimal.go dispatch one
// Go function per instruction class from a big switch rather than a
// type hierarchy: this package just makes that dispatch table an
// explicit, inspectable registry instead of a switch statement.
package grain

import (
	"github.com/ev6sim/alphacore/emu/event"
	"github.com/ev6sim/alphacore/emu/ipr"
)

// Category names the six execution-unit families.
type Category uint8

const (
	CategoryALUInt Category = iota
	CategoryALUFloat
	CategoryMemory
	CategoryBranch
	CategoryBarrier
	CategoryPAL
)

// Outcome is the per-stage result every grain's Exec hook returns,
// matching the pipeline executor's {Continue, Stall, Fault, EnterPAL,
// Complete} stage contract.
type Outcome uint8

const (
	Continue Outcome = iota
	Stall
	Fault
	EnterPAL
	Complete
)

// Form is a decoded instruction: the stable (opcode, function-code)
// decode key plus the register/immediate fields every format shares a
// superset of. Not every field is meaningful for every opcode — DE fills
// in only what that opcode's format defines.
type Form struct {
	Opcode     uint8
	HasFunc    bool
	Func       uint32 // operate-format function code, or CALL_PAL's 26-bit function
	Ra, Rb, Rc uint8
	Disp16  int16 // memory-format displacement
	Disp21  int32 // branch-format displacement
	Literal uint8
	IsLit   bool
	Raw     uint32
}

// Slot is one pipeline slot's grain-visible working state: the fields
// EX/MEM/WB need to communicate across stages for a single in-flight
// instruction. The pipeline executor (emu/cpu) embeds this in its own,
// larger per-slot bookkeeping (stage, bypass tags, micro-cache).
type Slot struct {
	Form Form

	EA       uint64 // effective address, computed at EX for memory grains
	LoadData uint64 // value read at MEM, for loads
	StoreVal uint64 // value to write at MEM, for stores

	BranchTarget uint64
	BranchTaken  bool

	Result   uint64 // ALU/PAL result destined for Rc/Ra at WB
	HasResult bool
}

// Context is the minimal surface a grain's Exec hook needs from the
// owning CPU. emu/cpu's pipeline executor implements it; keeping it as
// an interface here (rather than importing emu/cpu) preserves the
// spec's leaf-to-root package order: grains sit below the pipeline
// executor, so they cannot import it.
type Context interface {
	GetInt(r uint8) uint64
	SetInt(r uint8, v uint64)
	GetFP(r uint8) uint64
	SetFP(r uint8, v uint64)
	PC() uint64
	SetPC(v uint64)
	IV() bool // PS.IV — integer overflow trap enable

	TranslateData(va uint64, access ipr.Access, size uint8) (pa uint64, ok bool)
	ReadMem(pa uint64, width uint8) (uint64, bool)
	WriteMem(pa uint64, width uint8, v uint64) bool

	RaiseFault(p event.Pending)
	CallPAL(func26 uint32)
	Barrier(kind uint8)
}

// Grain is one immutable, registered execution unit.
type Grain struct {
	Mnemonic string
	Category Category
	Exec     func(ctx Context, slot *Slot) Outcome
}

// Registry is the global immutable grain table, built once at startup
// and never mutated afterward — exactly the "global immutable grain
// registry" the ownership model calls for.
type Registry struct {
	byOpcode map[uint8]*Grain            // opcodes with no function-code discriminator
	byFunc   map[uint8]map[uint32]*Grain // opcodes whose function code selects the grain
}

// NewRegistry builds and populates the standard grain set.
func NewRegistry() *Registry {
	r := &Registry{
		byOpcode: make(map[uint8]*Grain),
		byFunc:   make(map[uint8]map[uint32]*Grain),
	}
	registerALU(r)
	registerALUFloat(r)
	registerMemory(r)
	registerBranch(r)
	registerBarrier(r)
	registerPAL(r)
	return r
}

func (r *Registry) addOpcode(opcode uint8, g *Grain) {
	r.byOpcode[opcode] = g
}

func (r *Registry) addFunc(opcode uint8, fn uint32, g *Grain) {
	m, ok := r.byFunc[opcode]
	if !ok {
		m = make(map[uint32]*Grain)
		r.byFunc[opcode] = m
	}
	m[fn] = g
}

// Lookup resolves a decoded Form to its grain with one or two map
// probes, performed by the decode stage every cycle.
func (r *Registry) Lookup(f Form) (*Grain, bool) {
	if f.HasFunc {
		if m, ok := r.byFunc[f.Opcode]; ok {
			if g, ok := m[f.Func]; ok {
				return g, true
			}
		}
		return nil, false
	}
	g, ok := r.byOpcode[f.Opcode]
	return g, ok
}
