/*
 * Operator command parser.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package parser replaces the teacher's device/channel command set
// (attach, detach, ipl, device examine/deposit keyed by hex address)
// with the verb set an SMP register machine actually needs: examine/
// deposit targeting registers, the PSW, PC, or physical memory on one
// CPU, step/continue/halt/reset to drive it, show to inspect the TLB/
// PAL/pending-event state, and attach to bind a console transport.
// The cmdLine scanner below (skipSpace/isEOL/getNext/getPeek/
// parseQuoteString/getWord) is carried over from the teacher's
// command/parser almost unchanged; only the per-verb processing and
// the device-address concept are replaced.
package parser

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/ev6sim/alphacore/emu/core"
)

// Session holds operator-shell state that outlives a single command
// line: which CPU subsequent bare verbs apply to. The teacher has no
// analogue — it only ever has one CPU to target.
type Session struct {
	Sys *core.System
	CPU int
}

type cmd struct {
	name     string
	min      int
	process  func(*cmdLine, *Session) (bool, error)
	complete func(*cmdLine) []string
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "examine", min: 2, process: examine},
	{name: "deposit", min: 2, process: deposit},
	{name: "step", min: 2, process: step},
	{name: "continue", min: 1, process: cont},
	{name: "halt", min: 2, process: halt},
	{name: "reset", min: 3, process: reset},
	{name: "cpu", min: 3, process: cpuSelect},
	{name: "show", min: 2, process: show, complete: showComplete},
	{name: "attach", min: 2, process: attach, complete: attachComplete},
	{name: "quit", min: 1, process: quit},
}

// ProcessCommand dispatches one command line against sess, returning
// true when the shell should exit (the "quit" verb).
func ProcessCommand(commandLine string, sess *Session) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	match := matchList(name)
	switch len(match) {
	case 0:
		return false, errors.New("command not found: " + name)
	case 1:
		return match[0].process(&line, sess)
	default:
		return false, errors.New("ambiguous command: " + name)
	}
}

// CompleteCmd offers verb-name and per-verb completions for liner.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	if !line.isEOL() && line.line[line.pos] == ' ' {
		line.skipSpace()
		match := matchList(name)
		if len(match) != 1 || match[0].complete == nil {
			return nil
		}
		return match[0].complete(&line)
	}

	matches := make([]string, 0, len(cmdList))
	for _, m := range cmdList {
		if strings.HasPrefix(m.name, strings.ToLower(name)) {
			matches = append(matches, m.name)
		}
	}
	return matches
}

func matchCommand(m cmd, command string) bool {
	if len(command) > len(m.name) {
		return false
	}
	for i := range command {
		if m.name[i] != command[i] {
			return false
		}
	}
	return len(command) >= m.min
}

func matchList(command string) []cmd {
	if command == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, strings.ToLower(command)) {
			match = append(match, m)
		}
	}
	return match
}

func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

func (line *cmdLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

func (line *cmdLine) getNext() byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	return line.line[line.pos]
}

func (line *cmdLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// parseQuoteString scans a "quoted string" or a bare space-terminated
// token, exactly as the teacher's version does.
func (line *cmdLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext()
	}

	for {
		by := line.getNext()
		if by == '"' && inQuote {
			by = line.getNext()
			if by != '"' {
				return value, true
			}
		}
		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0) {
			return value, true
		}
		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// getWord scans one whitespace-delimited token, lower-cased.
func (line *cmdLine) getWord() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}
	value := ""
	for !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		value += string(line.line[line.pos])
		line.pos++
	}
	return strings.ToLower(value)
}

// getIdent scans a letters-only token, stopping at the first non-letter
// (space, '[', digit) rather than at whitespace alone — target names
// like "reg" are immediately followed by an optional "[n]" range with
// no separating space, which getWord would otherwise swallow whole.
func (line *cmdLine) getIdent() string {
	line.skipSpace()
	value := ""
	for !line.isEOL() && unicode.IsLetter(rune(line.line[line.pos])) {
		value += string(line.line[line.pos])
		line.pos++
	}
	return strings.ToLower(value)
}

// getNumber parses a decimal integer token.
func (line *cmdLine) getNumber() (int, error) {
	word := line.getWord()
	if word == "" {
		return 0, errors.New("expected a number")
	}
	n, err := strconv.Atoi(word)
	if err != nil {
		return 0, errors.New("invalid number: " + word)
	}
	return n, nil
}

// getHex parses a hexadecimal token, with or without a leading "0x".
func (line *cmdLine) getHex() (uint64, error) {
	word := strings.TrimPrefix(line.getWord(), "0x")
	if word == "" {
		return 0, errors.New("expected a hex value")
	}
	v, err := strconv.ParseUint(word, 16, 64)
	if err != nil {
		return 0, errors.New("invalid hex value: " + word)
	}
	return v, nil
}

// parseRange parses an optional "[n]" or "[lo:hi]" suffix on a register
// name, defaulting to the single register 0 when absent.
func (line *cmdLine) parseRange() (lo int, hi int, err error) {
	line.skipSpace()
	if line.isEOL() || line.line[line.pos] != '[' {
		return 0, 0, nil
	}
	line.pos++
	start := line.pos
	for !line.isEOL() && line.line[line.pos] != ']' {
		line.pos++
	}
	if line.isEOL() {
		return 0, 0, errors.New("unterminated range, expected ]")
	}
	body := line.line[start:line.pos]
	line.pos++ // consume ']'

	parts := strings.SplitN(body, ":", 2)
	lo, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.New("invalid register number: " + parts[0])
	}
	if len(parts) == 1 {
		return lo, lo, nil
	}
	hi, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.New("invalid register number: " + parts[1])
	}
	return lo, hi, nil
}

func cpuOf(sess *Session) (*core.Cpu, error) {
	if sess.CPU < 0 || sess.CPU >= len(sess.Sys.Cpus) {
		return nil, errors.New("no such cpu")
	}
	return sess.Sys.Cpus[sess.CPU], nil
}
