/*
	   Alpha Assembler

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

// Package assembler replaces the teacher's variable-length RR/RX/RS/
// SI/SS/S line assembler (emu/assemble/assemble.go: one mnemonic table
// plus a hand-rolled recursive-descent-ish operand reader, getAddr's
// d(x,b) syntax) with the same shape of table-driven, one-line-at-a-time
// text parser retargeted at Alpha's fixed-width word and its five
// operand syntaxes (operate, memory, branch, JMP, CALL_PAL/bare).
package assembler

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

type asmKind int

const (
	asmOperate asmKind = iota
	asmOperateFloat
	asmMemory
	asmBranch
	asmJMP
	asmPALCall
	asmNoOperand
)

type mnemonicInfo struct {
	opcode  uint8
	fn      uint32
	hasFunc bool
	kind    asmKind
}

// mnemonics is the assembler's name -> encoding table, the mirror image
// of emu/disassemble's opcode -> name tables; kept as a separate literal
// here rather than shared, matching the pack's own precedent of letting
// decode/encode tables duplicate rather than reach into an unexported
// registry (emu/cpu/cpu_test.go's fnAddQTest comment documents the same
// choice for test code).
var mnemonics = map[string]mnemonicInfo{
	"ADDL":   {0x10, 0x00, true, asmOperate},
	"ADDL/V": {0x10, 0x40, true, asmOperate},
	"SUBL":   {0x10, 0x09, true, asmOperate},
	"SUBL/V": {0x10, 0x49, true, asmOperate},
	"ADDQ":   {0x10, 0x20, true, asmOperate},
	"SUBQ":   {0x10, 0x29, true, asmOperate},

	"AND":    {0x11, 0x00, true, asmOperate},
	"BIC":    {0x11, 0x08, true, asmOperate},
	"BIS":    {0x11, 0x20, true, asmOperate},
	"ORNOT":  {0x11, 0x28, true, asmOperate},
	"XOR":    {0x11, 0x40, true, asmOperate},
	"EQV":    {0x11, 0x48, true, asmOperate},
	"CMOVEQ": {0x11, 0x24, true, asmOperate},
	"CMOVNE": {0x11, 0x26, true, asmOperate},
	"CMOVLT": {0x11, 0x44, true, asmOperate},
	"CMOVGE": {0x11, 0x46, true, asmOperate},
	"CMOVLE": {0x11, 0x64, true, asmOperate},
	"CMOVGT": {0x11, 0x66, true, asmOperate},

	"SLL": {0x12, 0x39, true, asmOperate},
	"SRL": {0x12, 0x34, true, asmOperate},
	"SRA": {0x12, 0x3c, true, asmOperate},

	"ADDT":   {0x16, 0x0a0, true, asmOperateFloat},
	"SUBT":   {0x16, 0x0a1, true, asmOperateFloat},
	"MULT":   {0x16, 0x0a2, true, asmOperateFloat},
	"DIVT":   {0x16, 0x0a3, true, asmOperateFloat},
	"CMPTEQ": {0x16, 0x0a5, true, asmOperateFloat},
	"CMPTLT": {0x16, 0x0a6, true, asmOperateFloat},
	"CMPTLE": {0x16, 0x0a7, true, asmOperateFloat},
	"CVTTQ":  {0x16, 0x0af, true, asmOperateFloat},
	"CVTQT":  {0x16, 0x0bc, true, asmOperateFloat},

	"LDL":  {0x28, 0, false, asmMemory},
	"LDQ":  {0x29, 0, false, asmMemory},
	"LDBU": {0x0a, 0, false, asmMemory},
	"LDWU": {0x0c, 0, false, asmMemory},
	"STL":  {0x2c, 0, false, asmMemory},
	"STQ":  {0x2d, 0, false, asmMemory},
	"STB":  {0x0e, 0, false, asmMemory},
	"STW":  {0x0d, 0, false, asmMemory},

	"BR":  {0x30, 0, false, asmBranch},
	"BSR": {0x34, 0, false, asmBranch},
	"BEQ": {0x39, 0, false, asmBranch},
	"BNE": {0x3d, 0, false, asmBranch},
	"BLT": {0x3a, 0, false, asmBranch},
	"BLE": {0x3b, 0, false, asmBranch},
	"BGT": {0x3f, 0, false, asmBranch},
	"BGE": {0x3e, 0, false, asmBranch},
	"JMP": {0x1a, 0, false, asmJMP},

	"CALL_PAL": {0x00, 0, false, asmPALCall},

	"TRAPB": {0x18, 0x0000, true, asmNoOperand},
	"EXCB":  {0x18, 0x0400, true, asmNoOperand},
	"MB":    {0x18, 0x4000, true, asmNoOperand},
	"WMB":   {0x18, 0x4400, true, asmNoOperand},
	"FETCH": {0x18, 0x8000, true, asmNoOperand},
}

// palNames is the name -> function-code half of emu/disassemble's
// palNames map, for "CALL_PAL <name>" syntax.
var palNames = map[string]uint32{
	"HALT": 0x00, "CFLUSH": 0x01, "DRAINA": 0x02,
	"RDPS": 0x10, "WRPS": 0x11,
	"MFPR": 0x20, "MTPR": 0x21,
	"SWPCTX": 0x30, "TBIA": 0x31, "TBIAP": 0x32, "TBIS": 0x33,
	"RDUNIQ": 0x34, "WRUNIQ": 0x35, "RTI": 0x36, "REI": 0x37,
	"RETSYS": 0x38, "CALLSYS": 0x39, "BPT": 0x3a, "BUGCHK": 0x3b,
	"IMB": 0x3c, "CSERVE": 0x3d,
	"CHMK": 0x40, "CHME": 0x41, "CHMS": 0x42, "CHMU": 0x43,
}

// Assemble parses one line of Alpha assembly text into its 32-bit
// instruction word.
func Assemble(line string) (uint32, error) {
	name, rest := getName(line)
	info, ok := mnemonics[strings.ToUpper(name)]
	if !ok {
		return 0, errors.New("undefined opcode " + name)
	}

	switch info.kind {
	case asmOperate, asmOperateFloat:
		regPrefix := byte('R')
		if info.kind == asmOperateFloat {
			regPrefix = 'F'
		}
		ra, rest, err := getReg(rest, regPrefix)
		if err != nil {
			return 0, err
		}
		rest, err = expect(rest, ',')
		if err != nil {
			return 0, err
		}
		rest = skipSpace(rest)
		if info.kind == asmOperate && strings.HasPrefix(rest, "#") {
			lit, rest2, err := getImmediate(rest[1:])
			if err != nil {
				return 0, err
			}
			rest2, err = expect(rest2, ',')
			if err != nil {
				return 0, err
			}
			rc, rest2, err := getReg(rest2, 'R')
			if err != nil {
				return 0, err
			}
			if err := expectEnd(rest2); err != nil {
				return 0, err
			}
			return uint32(info.opcode)<<26 | uint32(ra)<<21 | 1<<12 | uint32(lit)<<13 |
				info.fn<<5 | uint32(rc), nil
		}
		rb, rest, err := getReg(rest, regPrefix)
		if err != nil {
			return 0, err
		}
		rest, err = expect(rest, ',')
		if err != nil {
			return 0, err
		}
		rc, rest, err := getReg(rest, regPrefix)
		if err != nil {
			return 0, err
		}
		if err := expectEnd(rest); err != nil {
			return 0, err
		}
		return uint32(info.opcode)<<26 | uint32(ra)<<21 | uint32(rb)<<16 |
			info.fn<<5 | uint32(rc), nil

	case asmMemory:
		ra, rest, err := getReg(rest, 'R')
		if err != nil {
			return 0, err
		}
		rest, err = expect(rest, ',')
		if err != nil {
			return 0, err
		}
		disp, rb, rest, err := getDisp(rest)
		if err != nil {
			return 0, err
		}
		if err := expectEnd(rest); err != nil {
			return 0, err
		}
		return uint32(info.opcode)<<26 | uint32(ra)<<21 | uint32(rb)<<16 | uint32(uint16(disp)), nil

	case asmBranch:
		ra, rest, err := getReg(rest, 'R')
		if err != nil {
			return 0, err
		}
		rest, err = expect(rest, ',')
		if err != nil {
			return 0, err
		}
		disp, rest, err := getSignedDecimal(rest)
		if err != nil {
			return 0, err
		}
		if err := expectEnd(rest); err != nil {
			return 0, err
		}
		return uint32(info.opcode)<<26 | uint32(ra)<<21 | (uint32(disp) & 0x1fffff), nil

	case asmJMP:
		ra, rest, err := getReg(rest, 'R')
		if err != nil {
			return 0, err
		}
		rest, err = expect(rest, ',')
		if err != nil {
			return 0, err
		}
		rest, err = expect(skipSpace(rest), '(')
		if err != nil {
			return 0, err
		}
		rb, rest, err := getReg(rest, 'R')
		if err != nil {
			return 0, err
		}
		rest, err = expect(rest, ')')
		if err != nil {
			return 0, err
		}
		if err := expectEnd(rest); err != nil {
			return 0, err
		}
		return uint32(info.opcode)<<26 | uint32(ra)<<21 | uint32(rb)<<16, nil

	case asmPALCall:
		rest = skipSpace(rest)
		fnName, rest := getName(rest)
		if err := expectEnd(rest); err != nil {
			return 0, err
		}
		if fn, ok := palNames[strings.ToUpper(fnName)]; ok {
			return uint32(info.opcode)<<26 | fn, nil
		}
		fn, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(fnName), "0x"), 16, 26)
		if err != nil {
			return 0, errors.New("undefined CALL_PAL function " + fnName)
		}
		return uint32(info.opcode)<<26 | uint32(fn), nil

	case asmNoOperand:
		if err := expectEnd(rest); err != nil {
			return 0, err
		}
		return uint32(info.opcode)<<26 | info.fn, nil

	default:
		return 0, errors.New("unhandled opcode kind for " + name)
	}
}

func skipSpace(s string) string {
	for i, r := range s {
		if !unicode.IsSpace(r) {
			return s[i:]
		}
	}
	return ""
}

func getName(s string) (string, string) {
	s = skipSpace(s)
	for i, r := range s {
		if unicode.IsSpace(r) || r == ',' || r == '(' {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func expect(s string, c byte) (string, error) {
	s = skipSpace(s)
	if s == "" || s[0] != c {
		return s, errors.New("expected '" + string(c) + "'")
	}
	return s[1:], nil
}

func expectEnd(s string) error {
	if skipSpace(s) != "" {
		return errors.New("unexpected trailing text: " + s)
	}
	return nil
}

// getReg parses a register reference like "R3" or "F12" (prefix case
// insensitive), returning its number.
func getReg(s string, prefix byte) (uint8, string, error) {
	s = skipSpace(s)
	if s == "" || (s[0]|0x20) != (prefix|0x20) {
		return 0, s, errors.New("expected register operand")
	}
	s = s[1:]
	digits := 0
	for digits < len(s) && unicode.IsDigit(rune(s[digits])) {
		digits++
	}
	if digits == 0 {
		return 0, s, errors.New("malformed register operand")
	}
	n, err := strconv.Atoi(s[:digits])
	if err != nil || n > 31 {
		return 0, s, errors.New("register number out of range")
	}
	return uint8(n), s[digits:], nil
}

// getImmediate parses a literal operand after '#': "0x1f" or "31".
func getImmediate(s string) (uint8, string, error) {
	s = skipSpace(s)
	end := 0
	for end < len(s) && s[end] != ',' && s[end] != ')' && !unicode.IsSpace(rune(s[end])) {
		end++
	}
	if end == 0 {
		return 0, s, errors.New("malformed immediate operand")
	}
	tok := s[:end]
	base := 10
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		base, tok = 16, tok[2:]
	}
	n, err := strconv.ParseUint(tok, base, 8)
	if err != nil {
		return 0, s, errors.New("immediate out of range")
	}
	return uint8(n), s[end:], nil
}

// getSignedDecimal parses an optionally-negative base-10 displacement,
// the branch-format operand syntax.
func getSignedDecimal(s string) (int32, string, error) {
	s = skipSpace(s)
	start := 0
	if start < len(s) && (s[start] == '-' || s[start] == '+') {
		start++
	}
	digits := start
	for digits < len(s) && unicode.IsDigit(rune(s[digits])) {
		digits++
	}
	if digits == start {
		return 0, s, errors.New("malformed displacement")
	}
	n, err := strconv.ParseInt(s[:digits], 10, 32)
	if err != nil {
		return 0, s, errors.New("displacement out of range")
	}
	return int32(n), s[digits:], nil
}

// getDisp parses the memory-format "disp(Rb)" or bare "disp" operand
// (base register defaults to R31, the hardwired-zero register).
func getDisp(s string) (int16, uint8, string, error) {
	s = skipSpace(s)
	disp, rest, err := getSignedDecimal(s)
	if err != nil {
		return 0, 0, s, err
	}
	if disp < -32768 || disp > 32767 {
		return 0, 0, rest, errors.New("displacement out of range")
	}
	rest = skipSpace(rest)
	if !strings.HasPrefix(rest, "(") {
		return int16(disp), 31, rest, nil
	}
	rest, err = expect(rest, '(')
	if err != nil {
		return 0, 0, rest, err
	}
	rb, rest, err := getReg(rest, 'R')
	if err != nil {
		return 0, 0, rest, err
	}
	rest, err = expect(rest, ')')
	if err != nil {
		return 0, 0, rest, err
	}
	return int16(disp), rb, rest, nil
}
