/*
   Page Table Entry: canonical in-memory layout and the adapter that
   turns raw memory-format quadwords into it and back.

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

// Package ipr holds the per-CPU Internal Processor Register bank, the
// canonical Page Table Entry type, and the Hardware Privileged Context
// Block — the architectural state that sits below the TLB and MMU.
package ipr

// Access is one of the three access kinds the MMU checks a PTE against.
type Access uint8

const (
	Read Access = iota
	Write
	Execute
)

// Pte is the canonical, decoded form of a page table entry. The source
// format packs all of this into one 64-bit memory word (see FromRaw /
// ToRaw); keeping a concrete decoded struct instead of a templated
// bit-view type is the "collapse templates into concrete types"
// direction from the design notes.
type Pte struct {
	Valid bool
	FOR   bool // Fault On Read
	FOW   bool // Fault On Write
	FOE   bool // Fault On Execute
	ASM   bool // Address Space Match (global)
	GH    uint8 // Granularity Hint, 0-3

	KRE, ERE, SRE, URE bool // read-enable per mode
	KWE, EWE, SWE, UWE bool // write-enable per mode

	PFN uint64 // Page Frame Number (bits 32:52 of the raw word)
}

// Raw bit positions, per the canonical 64-bit PTE memory layout.
const (
	bitValid = 1 << 0
	bitFOR   = 1 << 1
	bitFOW   = 1 << 2
	bitFOE   = 1 << 3
	bitASM   = 1 << 4
	shiftGH  = 5
	maskGH   = 0x3

	bitKRE = 1 << 8
	bitERE = 1 << 9
	bitSRE = 1 << 10
	bitURE = 1 << 11
	bitKWE = 1 << 12
	bitEWE = 1 << 13
	bitSWE = 1 << 14
	bitUWE = 1 << 15

	shiftPFN = 32
	maskPFN  = 0x1fffff // 21 bits, bits 52:32
)

// FromRaw decodes a 64-bit memory-format PTE word into its canonical
// form.
func FromRaw(raw uint64) Pte {
	return Pte{
		Valid: raw&bitValid != 0,
		FOR:   raw&bitFOR != 0,
		FOW:   raw&bitFOW != 0,
		FOE:   raw&bitFOE != 0,
		ASM:   raw&bitASM != 0,
		GH:    uint8((raw >> shiftGH) & maskGH),
		KRE:   raw&bitKRE != 0,
		ERE:   raw&bitERE != 0,
		SRE:   raw&bitSRE != 0,
		URE:   raw&bitURE != 0,
		KWE:   raw&bitKWE != 0,
		EWE:   raw&bitEWE != 0,
		SWE:   raw&bitSWE != 0,
		UWE:   raw&bitUWE != 0,
		PFN:   (raw >> shiftPFN) & maskPFN,
	}
}

// ToRaw encodes the canonical form back into a 64-bit memory-format word.
func (p Pte) ToRaw() uint64 {
	var raw uint64
	setBit := func(v bool, bit uint64) {
		if v {
			raw |= bit
		}
	}
	setBit(p.Valid, bitValid)
	setBit(p.FOR, bitFOR)
	setBit(p.FOW, bitFOW)
	setBit(p.FOE, bitFOE)
	setBit(p.ASM, bitASM)
	raw |= uint64(p.GH&maskGH) << shiftGH
	setBit(p.KRE, bitKRE)
	setBit(p.ERE, bitERE)
	setBit(p.SRE, bitSRE)
	setBit(p.URE, bitURE)
	setBit(p.KWE, bitKWE)
	setBit(p.EWE, bitEWE)
	setBit(p.SWE, bitSWE)
	setBit(p.UWE, bitUWE)
	raw |= (p.PFN & maskPFN) << shiftPFN
	return raw
}

// PageShift returns the page-size shift for the PTE's granularity hint:
// 8KB * 8^GH, i.e. shifts of 13, 16, 19, 22.
func (p Pte) PageShift() uint {
	return 13 + 3*uint(p.GH)
}

// ReadEnable reports whether mode m may read through this PTE, ignoring
// the fault-on-read bit (callers check FOR separately; fault bits take
// precedence over missing enable bits per the access-rights matrix).
func (p Pte) ReadEnable(m Mode) bool {
	switch m {
	case ModeKernel:
		return p.KRE
	case ModeExecutive:
		return p.ERE
	case ModeSupervisor:
		return p.SRE
	default:
		return p.URE
	}
}

// WriteEnable reports whether mode m may write through this PTE.
func (p Pte) WriteEnable(m Mode) bool {
	switch m {
	case ModeKernel:
		return p.KWE
	case ModeExecutive:
		return p.EWE
	case ModeSupervisor:
		return p.SWE
	default:
		return p.UWE
	}
}

// Mode mirrors psw.Mode without importing it, to keep this leaf package
// dependency-free (per the spec's "leaves first" dependency order:
// ipr sits below psw's consumers but must not import cpu/psw back).
type Mode uint8

const (
	ModeKernel Mode = iota
	ModeExecutive
	ModeSupervisor
	ModeUser
)

// CheckAccess evaluates the access-rights matrix: permission is granted
// iff the mode's read/write-enable bit is set AND the corresponding
// fault bit is clear. Returns (allowed, faultOnThisAccess).
func (p Pte) CheckAccess(m Mode, a Access) (allowed bool, fault bool) {
	switch a {
	case Read:
		return p.ReadEnable(m) && !p.FOR, p.FOR
	case Write:
		return p.WriteEnable(m) && !p.FOW, p.FOW
	default:
		return p.ReadEnable(m) && !p.FOE, p.FOE
	}
}
