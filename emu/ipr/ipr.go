/*
   Internal Processor Register bank: the per-CPU hot/cold IPR partition.

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

package ipr

// Hot holds the IPRs touched on every instruction. Its 18 fields (14
// uint64, four uint8) come to 128 bytes with padding, two cache lines
// on a 64-byte-line host; the fields that travel together (PC/PS/
// cycle/VA) sit at the front so the common case — fetch, translate,
// retire — touches only the first line.
type Hot struct {
	PC    uint64 // Program counter (bit 0 = PAL mode)
	PS    uint64 // Processor status
	Cycle uint64 // Monotonic cycle counter, advances per retired instruction

	VA    uint64 // Last fault virtual address
	VACtl uint64 // VA_CTL: bit 1 = virtual-addressing enable, bit 0 = VA_48
	VPTB  uint64 // Virtual Page Table Base

	ASN  uint8
	PTBR uint64 // Page Table Base Register (physical)

	ASTEN uint8 // AST enable, per mode (bits 3:0 = K,E,S,U)
	ASTSR uint8 // AST summary/pending, per mode

	IPL uint8 // mirrors PS.IPL but cached for fast masking checks

	// Per-mode kernel/executive/supervisor/user stack pointers.
	KSP, ESP, SSP, USP uint64

	ExcAddr uint64 // EXC_ADDR: faulting/interrupted PC
	ExcSum  uint64 // EXC_SUM: exception-class summary bits
	MMStat  uint64 // MM_STAT: memory-fault detail
}

// Cold holds IPRs accessed rarely: machine-check state, performance
// counters, cache control bits. Kept in a separate struct so the hot
// path never has to load this cache line.
type Cold struct {
	PalBase uint64 // PAL_BASE, relocatable via MTPR

	MCES uint8 // Machine-check enable/status

	PerfCounters [4]uint64
	PerfControl  uint64

	CacheCtl uint64
	Uniq     uint64 // per-thread UNIQ value (RDUNIQ/WRUNIQ)

	// Interval timer: TimerInterval retired instructions between
	// interrupts. TimerCountdown drops by one per retired instruction and
	// is reloaded from TimerInterval each time the interrupt is raised.
	// TimerEnable false means the timer is disarmed.
	TimerInterval  uint64
	TimerCountdown uint64
	TimerEnable    bool

	FPCR uint64 // Floating-Point Control Register: trap enables, rounding mode, status
}

// FPCR bit assignments: status (sticky) bits occupy 63:58, trap-enable
// bits occupy 5:0, mirroring where real Alpha firmware documents them
// (high status/low enable) even though this emulator does not implement
// the intervening rounding-mode bits.
const (
	FPCRInvalidEnable  = 1 << 0
	FPCRDivZeroEnable  = 1 << 1
	FPCROverflowEnable = 1 << 2
	FPCRUnderflowEnable = 1 << 3
	FPCRInexactEnable  = 1 << 4

	FPCRInvalidStatus  = 1 << 58
	FPCRDivZeroStatus  = 1 << 59
	FPCROverflowStatus = 1 << 60
	FPCRUnderflowStatus = 1 << 61
	FPCRInexactStatus  = 1 << 62
)

// Bank is the complete per-CPU IPR set.
type Bank struct {
	Hot  Hot
	Cold Cold
}

// VA_CTL bit layout.
const (
	VACtlVA48  = 1 << 0
	VACtlPhys  = 1 << 1 // clear = physical addressing mode
)

// ASTEN / ASTSR mode bits, one per psw.Mode ordinal.
func ModeBit(mode uint8) uint8 { return 1 << mode }

// EXC_SUM bit assignments (§4.5 state-save sequence step 3).
const (
	ExcSumTBMiss     = 1 << 0
	ExcSumACV        = 1 << 1
	ExcSumUnaligned  = 1 << 2
	ExcSumDStream    = 1 << 3
	ExcSumOpcode     = 1 << 4
	// Arithmetic traps set none of these bits: pal.Deliver maps
	// ClassArithmetic to no EXC_SUM bit, and no FP trap summary is
	// recorded in EXC_SUM.
)

// MM_STAT bit assignments (§4.5 state-save sequence step 4).
const (
	MMStatWrite   = 1 << 0
	MMStatExecute = 1 << 1
	// bits 7:4 hold the fault-type code, bit 8 ITB(1)-vs-DTB(0).
	MMStatFaultShift = 4
	MMStatFaultMask  = 0xf
	MMStatITB        = 1 << 8
)

// HWPCB is the Hardware Privileged Context Block: the in-memory process
// context saved/restored atomically by SWPCTX.
type HWPCB struct {
	PTBR uint64
	ASN  uint8

	KSP, ESP, SSP, USP uint64

	PC uint64
	PS uint64

	Uniq uint64

	FaultVA uint64 // fault-save VA, preserved across the switch
}

// SaveFrom captures the live hot-bank architectural state that SWPCTX
// must persist into the outbound HWPCB.
func (h *HWPCB) SaveFrom(hot *Hot, uniq uint64) {
	h.PTBR = hot.PTBR
	h.ASN = hot.ASN
	h.KSP, h.ESP, h.SSP, h.USP = hot.KSP, hot.ESP, hot.SSP, hot.USP
	h.PC = hot.PC
	h.PS = hot.PS
	h.Uniq = uniq
	h.FaultVA = hot.VA
}

// RestoreInto loads this HWPCB's state into the live hot bank, as the
// inbound half of SWPCTX.
func (h *HWPCB) RestoreInto(hot *Hot, cold *Cold) {
	hot.PTBR = h.PTBR
	hot.ASN = h.ASN
	hot.KSP, hot.ESP, hot.SSP, hot.USP = h.KSP, h.ESP, h.SSP, h.USP
	hot.PC = h.PC
	hot.PS = h.PS
	hot.VA = h.FaultVA
	cold.Uniq = h.Uniq
}
