/*
   Processor Status word: field layout and accessors.

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

// Package psw defines the Alpha Processor Status word layout and the
// bit-field primitives the rest of the core builds on.
package psw

// Mode is the CM (current mode) field of PS.
type Mode uint8

const (
	Kernel Mode = iota
	Executive
	Supervisor
	User
)

func (m Mode) String() string {
	switch m {
	case Kernel:
		return "K"
	case Executive:
		return "E"
	case Supervisor:
		return "S"
	case User:
		return "U"
	default:
		return "?"
	}
}

// Bit field positions and masks, per the immutable PS contract.
const (
	shiftSPAlign = 56
	maskSPAlign  = 0x3f

	shiftIPL = 8
	maskIPL  = 0x1f

	bitVMM = 1 << 7
	bitIV  = 1 << 6

	shiftCM = 3
	maskCM  = 0x3

	bitIP = 1 << 2

	maskSW = 0x3

	// reservedMask covers every bit not named in the PS contract; a PS
	// value must never have a reserved bit set.
	reservedMask = ^uint64((maskSPAlign << shiftSPAlign) |
		(maskIPL << shiftIPL) | bitVMM | bitIV |
		(maskCM << shiftCM) | bitIP | maskSW)
)

// PS is the 64-bit Processor Status word.
type PS uint64

// SPAlign returns the stack-alignment field (bits 61:56).
func (p PS) SPAlign() uint8 { return uint8((uint64(p) >> shiftSPAlign) & maskSPAlign) }

// WithSPAlign returns p with SP_ALIGN replaced.
func (p PS) WithSPAlign(v uint8) PS {
	return PS(uint64(p)&^(maskSPAlign<<shiftSPAlign) | (uint64(v&maskSPAlign) << shiftSPAlign))
}

// IPL returns the Interrupt Priority Level field (bits 12:8).
func (p PS) IPL() uint8 { return uint8((uint64(p) >> shiftIPL) & maskIPL) }

// WithIPL returns p with IPL replaced; all other bits are preserved.
func (p PS) WithIPL(v uint8) PS {
	return PS(uint64(p)&^(maskIPL<<shiftIPL) | (uint64(v&maskIPL) << shiftIPL))
}

// VMM reports the virtual-machine-monitor bit.
func (p PS) VMM() bool { return uint64(p)&bitVMM != 0 }

func (p PS) WithVMM(v bool) PS { return p.withBit(bitVMM, v) }

// IV reports the integer-overflow trap enable bit.
func (p PS) IV() bool { return uint64(p)&bitIV != 0 }

func (p PS) WithIV(v bool) PS { return p.withBit(bitIV, v) }

// CM returns the current-mode field (bits 4:3).
func (p PS) CM() Mode { return Mode((uint64(p) >> shiftCM) & maskCM) }

// WithCM returns p with CM replaced; all other bits are preserved. This
// is the field-independence law tested in §8: ps_set_IPL and ps_set_CM
// must commute.
func (p PS) WithCM(m Mode) PS {
	return PS(uint64(p)&^(maskCM<<shiftCM) | (uint64(m&maskCM) << shiftCM))
}

// IP reports the interrupt-pending mirror bit.
func (p PS) IP() bool { return uint64(p)&bitIP != 0 }

func (p PS) WithIP(v bool) PS { return p.withBit(bitIP, v) }

// SW returns the software-defined field (bits 1:0).
func (p PS) SW() uint8 { return uint8(uint64(p) & maskSW) }

func (p PS) WithSW(v uint8) PS {
	return PS(uint64(p)&^maskSW | uint64(v&maskSW))
}

func (p PS) withBit(bit uint64, v bool) PS {
	if v {
		return PS(uint64(p) | bit)
	}
	return PS(uint64(p) &^ bit)
}

// Reserved reports whether any bit outside the documented field set is
// non-zero. A well-formed PS always has Reserved() == false.
func (p PS) Reserved() bool { return uint64(p)&reservedMask != 0 }

// WrPS applies a WR_PS PAL call: only IPL and SW may change, every other
// field of p is carried forward from cur untouched. This is the
// quantified invariant from §8: "for all WR_PS operations, only bits in
// {IPL, SW} may differ in the resulting PS".
func WrPS(cur PS, newIPLAndSW PS) PS {
	return cur.WithIPL(newIPLAndSW.IPL()).WithSW(newIPLAndSW.SW())
}

// PC is the Alpha program counter. Bit 0 is the PAL-mode indicator; all
// other bits are longword aligned (low 2 bits zero) in non-PAL mode.
type PC uint64

const palModeBit PC = 1

// PalMode reports whether the low bit (PAL-mode indicator) is set.
func (pc PC) PalMode() bool { return pc&palModeBit != 0 }

// EnterPAL returns pc with the PAL-mode bit set, masking off the low two
// address bits first (PAL entry addresses are longword aligned before
// the mode bit is OR'd in).
func (pc PC) EnterPAL() PC { return (pc &^ 3) | palModeBit }

// ExitPAL returns pc with the PAL-mode bit cleared.
func (pc PC) ExitPAL() PC { return pc &^ palModeBit }

// Address returns the longword-aligned instruction address, stripping
// the PAL-mode bit.
func (pc PC) Address() uint64 { return uint64(pc) &^ 3 }

// Next returns the sequential-fetch successor (PC + 4), preserving the
// PAL-mode bit.
func (pc PC) Next() PC {
	mode := pc & palModeBit
	return PC((uint64(pc)&^3)+4) | mode
}
