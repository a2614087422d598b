/*
	   Alpha Disassembler

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
		RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
		IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
		CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package disassembler replaces the teacher's opcode-byte-keyed table
// (emu/disassemble/disassemble.go: one map[int]opcode keyed by a single
// leading byte, since every S/370 instruction's type is implied by its
// opcode alone) with a table keyed by (opcode, function code) the way
// Alpha actually discriminates instructions — format and mnemonic still
// come from one lookup table, fixed-width 4-byte mnemonic+operand
// formatting still happens in one function per format family, just
// against Alpha's operate/memory/branch/PAL/misc-barrier shapes instead
// of RR/RX/RS/SI/SS/S.
package disassembler

import (
	"fmt"

	"github.com/ev6sim/alphacore/emu/cpu"
	"github.com/ev6sim/alphacore/emu/grain"
)

// fmtKind names which operand syntax a mnemonic uses, independent of
// grain.Category (CALL_PAL and the misc-barrier opcode both decode as
// CategoryPAL/CategoryBarrier but need their own operand shape).
type fmtKind int

const (
	fmtOperate fmtKind = iota
	fmtOperateLitOnly // FP ops: never take a literal, Fa/Fb/Fc only
	fmtMemory
	fmtBranch
	fmtJMP
	fmtPALCall
	fmtNoOperand
)

type opcodeInfo struct {
	mnemonic string
	kind     fmtKind
}

// byOpcode holds opcodes with no function-code discriminator (memory,
// branch, JMP, CALL_PAL); byFunc holds the operate/misc opcodes keyed
// additionally by function code. Duplicated here rather than imported
// from emu/grain, which intentionally does not export its dispatch
// table — decode/disassembly ownership is this package's job, the same
// boundary emu/cpu/decode.go draws for its own opcode constants.
var byOpcode = map[uint8]opcodeInfo{
	0x28: {"LDL", fmtMemory},
	0x29: {"LDQ", fmtMemory},
	0x0a: {"LDBU", fmtMemory},
	0x0c: {"LDWU", fmtMemory},
	0x2c: {"STL", fmtMemory},
	0x2d: {"STQ", fmtMemory},
	0x0e: {"STB", fmtMemory},
	0x0d: {"STW", fmtMemory},

	0x30: {"BR", fmtBranch},
	0x34: {"BSR", fmtBranch},
	0x39: {"BEQ", fmtBranch},
	0x3d: {"BNE", fmtBranch},
	0x3a: {"BLT", fmtBranch},
	0x3b: {"BLE", fmtBranch},
	0x3f: {"BGT", fmtBranch},
	0x3e: {"BGE", fmtBranch},
	0x1a: {"JMP", fmtJMP},

	0x00: {"CALL_PAL", fmtPALCall},
}

var byFunc = map[uint8]map[uint32]opcodeInfo{
	0x10: {
		0x00: {"ADDL", fmtOperate},
		0x40: {"ADDL/V", fmtOperate},
		0x09: {"SUBL", fmtOperate},
		0x49: {"SUBL/V", fmtOperate},
		0x20: {"ADDQ", fmtOperate},
		0x29: {"SUBQ", fmtOperate},
	},
	0x11: {
		0x00: {"AND", fmtOperate},
		0x08: {"BIC", fmtOperate},
		0x20: {"BIS", fmtOperate},
		0x28: {"ORNOT", fmtOperate},
		0x40: {"XOR", fmtOperate},
		0x48: {"EQV", fmtOperate},
		0x24: {"CMOVEQ", fmtOperate},
		0x26: {"CMOVNE", fmtOperate},
		0x44: {"CMOVLT", fmtOperate},
		0x46: {"CMOVGE", fmtOperate},
		0x64: {"CMOVLE", fmtOperate},
		0x66: {"CMOVGT", fmtOperate},
	},
	0x12: {
		0x39: {"SLL", fmtOperate},
		0x34: {"SRL", fmtOperate},
		0x3c: {"SRA", fmtOperate},
	},
	0x16: { // opFloatT, the T_floating operate format
		0x0a0: {"ADDT", fmtOperateLitOnly},
		0x0a1: {"SUBT", fmtOperateLitOnly},
		0x0a2: {"MULT", fmtOperateLitOnly},
		0x0a3: {"DIVT", fmtOperateLitOnly},
		0x0a5: {"CMPTEQ", fmtOperateLitOnly},
		0x0a6: {"CMPTLT", fmtOperateLitOnly},
		0x0a7: {"CMPTLE", fmtOperateLitOnly},
		0x0af: {"CVTTQ", fmtOperateLitOnly},
		0x0bc: {"CVTQT", fmtOperateLitOnly},
	},
	0x18: { // misc opcode: barriers, function-code discriminated
		0x0000: {"TRAPB", fmtNoOperand},
		0x0400: {"EXCB", fmtNoOperand},
		0x4000: {"MB", fmtNoOperand},
		0x4400: {"WMB", fmtNoOperand},
		0x8000: {"FETCH", fmtNoOperand},
	},
}

// palNames maps this emulator's own CALL_PAL function-code assignment
// (emu/pal/routines.go's FnXxx constants) back to a mnemonic, so
// CALL_PAL disassembles to a name instead of a bare function number
// whenever the function is one this emulator actually implements.
var palNames = map[uint32]string{
	0x00: "HALT",
	0x01: "CFLUSH",
	0x02: "DRAINA",
	0x10: "RDPS",
	0x11: "WRPS",
	0x20: "MFPR",
	0x21: "MTPR",
	0x30: "SWPCTX",
	0x31: "TBIA",
	0x32: "TBIAP",
	0x33: "TBIS",
	0x34: "RDUNIQ",
	0x35: "WRUNIQ",
	0x36: "RTI",
	0x37: "REI",
	0x38: "RETSYS",
	0x39: "CALLSYS",
	0x3a: "BPT",
	0x3b: "BUGCHK",
	0x3c: "IMB",
	0x3d: "CSERVE",
	0x40: "CHMK",
	0x41: "CHME",
	0x42: "CHMS",
	0x43: "CHMU",
}

// Disassemble decodes one 4-byte-aligned instruction word and returns
// its mnemonic/operand text plus its length in bytes — always 4, since
// unlike the teacher's variable-length S/370 formats every Alpha
// instruction is one fixed-width word.
func Disassemble(raw uint32) (string, int) {
	f := cpu.Decode(raw)

	if info, ok := byOpcode[f.Opcode]; ok {
		return format(info, f), 4
	}
	if m, ok := byFunc[f.Opcode]; ok {
		if info, ok := m[f.Func]; ok {
			return format(info, f), 4
		}
	}
	return fmt.Sprintf(".WORD  0x%08x", raw), 4
}

func format(info opcodeInfo, f grain.Form) string {
	mnemonic := fmt.Sprintf("%-6s ", info.mnemonic)

	switch info.kind {
	case fmtOperate:
		if f.IsLit {
			return fmt.Sprintf("%sR%d,#%#x,R%d", mnemonic, f.Ra, f.Literal, f.Rc)
		}
		return fmt.Sprintf("%sR%d,R%d,R%d", mnemonic, f.Ra, f.Rb, f.Rc)
	case fmtOperateLitOnly:
		return fmt.Sprintf("%sF%d,F%d,F%d", mnemonic, f.Ra, f.Rb, f.Rc)
	case fmtMemory:
		return fmt.Sprintf("%sR%d,%d(R%d)", mnemonic, f.Ra, f.Disp16, f.Rb)
	case fmtBranch:
		return fmt.Sprintf("%sR%d,%d", mnemonic, f.Ra, f.Disp21)
	case fmtJMP:
		return fmt.Sprintf("%sR%d,(R%d)", mnemonic, f.Ra, f.Rb)
	case fmtPALCall:
		if name, ok := palNames[f.Func]; ok {
			return mnemonic + name
		}
		return fmt.Sprintf("%s%#x", mnemonic, f.Func)
	case fmtNoOperand:
		return info.mnemonic
	default:
		return info.mnemonic
	}
}
