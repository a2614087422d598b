/*
   System configuration directives: cpu count, memory size, PAL image
   path, and console transport selection.

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

// Package systemconfig has no single teacher analogue — the teacher
// never configures CPU count or memory size at all, since S/370 in
// this emulator is always one fixed CPU with a fixed memory map wired
// straight into main.go. It follows the registration idiom the
// teacher's own model packages use (config.RegisterDirective called
// from init, a package-level struct the callback fills in) applied to
// the handful of directives an N-way Alpha system needs before
// emu/core.NewSystem can be built: "cpu count=N", "memory size=N[K|M|G]",
// "pal image=path", "console telnet|serial port=N|device=/dev/ttyXX".
package systemconfig

import (
	"errors"
	"strconv"
	"strings"

	config "github.com/ev6sim/alphacore/config/configparser"
)

// Settings accumulates every directive LoadConfigFile dispatches here.
// Zero-value fields mean "use the default" — main.go fills in defaults
// for anything the config file left unset.
type Settings struct {
	CPUCount      int
	MemorySize    uint64
	PALImage      string
	TimerInterval uint64 // retired instructions between clock interrupts; 0 disarms it.

	ConsoleKind string // "telnet" or "serial", empty if unconfigured.
	ConsolePort int    // telnet listen port.
	ConsoleDev  string // serial device path.
	ConsoleBaud int
}

var current Settings

// Current returns the settings accumulated so far. Call only after
// config.LoadConfigFile has run.
func Current() Settings { return current }

func init() {
	config.RegisterDirective("CPU", setCPU)
	config.RegisterDirective("MEMORY", setMemory)
	config.RegisterDirective("PAL", setPAL)
	config.RegisterDirective("CONSOLE", setConsole)
}

func setCPU(options []config.Option) error {
	for _, opt := range options {
		switch strings.ToLower(opt.Name) {
		case "count":
			n, err := strconv.Atoi(opt.EqualOpt)
			if err != nil || n < 1 {
				return errors.New("cpu count must be a positive integer: " + opt.EqualOpt)
			}
			current.CPUCount = n
		case "timer":
			n, err := strconv.ParseUint(opt.EqualOpt, 10, 64)
			if err != nil {
				return errors.New("cpu timer must be a non-negative integer: " + opt.EqualOpt)
			}
			current.TimerInterval = n
		default:
			return errors.New("cpu: unknown option: " + opt.Name)
		}
	}
	return nil
}

func setMemory(options []config.Option) error {
	for _, opt := range options {
		switch strings.ToLower(opt.Name) {
		case "size":
			n, err := parseByteSize(opt.EqualOpt)
			if err != nil {
				return err
			}
			current.MemorySize = n
		default:
			return errors.New("memory: unknown option: " + opt.Name)
		}
	}
	return nil
}

func setPAL(options []config.Option) error {
	for _, opt := range options {
		switch strings.ToLower(opt.Name) {
		case "image":
			current.PALImage = opt.EqualOpt
		default:
			return errors.New("pal: unknown option: " + opt.Name)
		}
	}
	return nil
}

func setConsole(options []config.Option) error {
	for _, opt := range options {
		switch strings.ToLower(opt.Name) {
		case "telnet":
			current.ConsoleKind = "telnet"
		case "serial":
			current.ConsoleKind = "serial"
		case "port":
			n, err := strconv.Atoi(opt.EqualOpt)
			if err != nil {
				return errors.New("console: port must be numeric: " + opt.EqualOpt)
			}
			current.ConsolePort = n
		case "device":
			current.ConsoleDev = opt.EqualOpt
		case "baud":
			n, err := strconv.Atoi(opt.EqualOpt)
			if err != nil {
				return errors.New("console: baud must be numeric: " + opt.EqualOpt)
			}
			current.ConsoleBaud = n
		default:
			return errors.New("console: unknown option: " + opt.Name)
		}
	}
	return nil
}

// parseByteSize parses a plain byte count or a count suffixed with
// K/M/G (1024-based), the same shorthand the spec's config examples use
// ("memory size=1G").
func parseByteSize(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("memory size requires a value")
	}
	mult := uint64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1024
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("memory size must be numeric, with an optional K/M/G suffix: " + s)
	}
	return n * mult, nil
}
