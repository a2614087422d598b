/*
 * Configuration file parser
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

// Package configparser replaces the teacher's device-address-oriented
// grammar (every line names a channel device at a hex address, e.g.
// "2540R 00C eof") with a flatter one: this emulator has no I/O bus, so
// every directive is just a name followed by a comma-separated option
// list, e.g. "cpu count=4", "memory size=1G", "debug tlb,pal". The
// line-scanning machinery below (skipSpace/getName/parseQuoteString/
// parseOption) is carried over close to verbatim from the teacher; only
// the per-line dispatch (parseLine, the model/device address concept)
// is cut down to match the simpler grammar.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Option is one name[=value][,value...] token on a directive's line.
type Option struct {
	Name     string   // Name of option.
	EqualOpt string   // Value of string after =.
	Value    []string // Comma-separated trailing values.
}

// Directive kinds a registrant can ask for.
const (
	KindOptions = 1 + iota // Directive followed by an option list.
	KindSwitch             // Directive takes no arguments, a bare flag.
)

type directiveDef struct {
	create func([]Option) error
	kind   int
}

var directives = map[string]directiveDef{}

var lineNumber int

// RegisterDirective should be called from package init functions for a
// directive that takes an option list (e.g. "cpu count=4,pal=v1").
func RegisterDirective(name string, fn func([]Option) error) {
	name = strings.ToUpper(name)
	directives[name] = directiveDef{create: fn, kind: KindOptions}
}

// RegisterSwitch should be called from package init functions for a
// directive that takes no arguments (e.g. a bare "cold" flag).
func RegisterSwitch(name string, fn func([]Option) error) {
	name = strings.ToUpper(name)
	directives[name] = directiveDef{create: fn, kind: KindSwitch}
}

// LoadConfigFile reads and dispatches every directive line in name.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		var err error
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := line.parseLine(); err != nil {
			return err
		}
	}
	return nil
}

// Current directive line being parsed.
type optionLine struct {
	line string // Current option line.
	pos  int    // Current position in line.
}

// Parse one directive line from the file.
func (line *optionLine) parseLine() error {
	name := line.parseDirectiveName()
	if name == "" {
		return nil
	}
	def, ok := directives[name]
	if !ok {
		return fmt.Errorf("no directive %q registered, line: %d", name, lineNumber)
	}

	switch def.kind {
	case KindOptions:
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return def.create(options)
	case KindSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return fmt.Errorf("switch directive %q followed by options, line: %d", name, lineNumber)
		}
		return def.create(nil)
	}
	return nil
}

// Skip forward over line until a non-whitespace character is found.
func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Check if at end of line, or at a comment.
func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

// Return next letter or digit in line, or 0 at EOL/space; inQuote keeps
// any character (used while scanning a quoted string).
func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || inQuote {
		return by
	}
	return 0
}

// Peek at next character without consuming it.
func (line *optionLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// parseDirectiveName scans the leading directive name (e.g. "cpu",
// "memory", "debug") and leaves pos positioned at the first option.
func (line *optionLine) parseDirectiveName() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}

	name := ""
	for !line.isEOL() {
		by := line.line[line.pos]
		if !unicode.IsLetter(rune(by)) && !unicode.IsNumber(rune(by)) {
			break
		}
		name += string(by)
		line.pos++
	}
	return strings.ToUpper(name)
}

// Parse a string that is either "quoted text" or a bare token.
func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext(true)
	}

	for {
		by := line.getNext(inQuote)
		if by == '"' && inQuote {
			by = line.getNext(inQuote)
			if by != '"' {
				return value, true
			}
		}

		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0 || by == ',') {
			return value, true
		}

		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// Parse an option name: a letter followed by letters/digits.
func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}

	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) {
		return "", fmt.Errorf("invalid option at line %d [%d]", lineNumber, line.pos)
	}

	value := ""
	for {
		value += string(by)
		by = line.getNext(false)
		if by == 0 {
			break
		}
	}
	return value, nil
}

// Parse one name[=value][,value...] option.
func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()

	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}

	if line.isEOL() {
		return &option, nil
	}

	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, fmt.Errorf("invalid quoted string at line %d [%d]", lineNumber, line.pos)
		}
		option.EqualOpt = v
	}

	line.skipSpace()

	for !line.isEOL() && line.line[line.pos] == ',' {
		line.pos++
		line.skipSpace()
		v, err := line.getName()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, v)
		}
		line.skipSpace()
	}

	return &option, nil
}

// Collect every option on the remainder of the line.
func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
		line.skipSpace()
	}
	return options, nil
}
