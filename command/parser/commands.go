/*
 * Operator command verbs.
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

package parser

import (
	"errors"
	"fmt"

	"github.com/ev6sim/alphacore/emu/console"
	"github.com/ev6sim/alphacore/emu/core"
)

// examine prints the current value of a register range, the PSW, the
// PC, or a physical memory range. Grounded on the teacher's examine
// command (command/parser/mem_commands.go), generalized from device/
// channel targets to CPU/register/memory targets.
func examine(line *cmdLine, sess *Session) (bool, error) {
	cpu, err := cpuOf(sess)
	if err != nil {
		return false, err
	}

	target := line.getIdent()
	switch target {
	case "reg", "r":
		lo, hi, err := line.parseRange()
		if err != nil {
			return false, err
		}
		for r := lo; r <= hi; r++ {
			if r < 0 || r > 31 {
				return false, fmt.Errorf("register number out of range: %d", r)
			}
			fmt.Printf("R%d = %016X\n", r, cpu.Ctx.GetInt(uint8(r)))
		}
		return false, nil

	case "fp", "f":
		lo, hi, err := line.parseRange()
		if err != nil {
			return false, err
		}
		for r := lo; r <= hi; r++ {
			if r < 0 || r > 31 {
				return false, fmt.Errorf("register number out of range: %d", r)
			}
			fmt.Printf("F%d = %016X\n", r, cpu.Ctx.GetFP(uint8(r)))
		}
		return false, nil

	case "psw":
		fmt.Printf("PSW = %016X\n", cpu.Ctx.PS())
		return false, nil

	case "pc":
		fmt.Printf("PC = %016X\n", cpu.Ctx.PC())
		return false, nil

	case "ipr":
		return false, examineIPR(line, cpu)

	case "mem", "m":
		return false, examineMemory(line, sess)

	default:
		return false, errors.New("unknown examine target: " + target)
	}
}

func examineIPR(line *cmdLine, cpu *core.Cpu) error {
	switch line.getIdent() {
	case "hot":
		fmt.Printf("Hot: %+v\n", *cpu.Ctx.Hot())
	case "cold":
		fmt.Printf("Cold: %+v\n", *cpu.Ctx.Cold())
	case "hwpcb":
		fmt.Printf("HWPCB: %+v\n", *cpu.Ctx.CurrentHWPCB())
	default:
		return errors.New("ipr target must be hot, cold, or hwpcb")
	}
	return nil
}

func examineMemory(line *cmdLine, sess *Session) error {
	lo, err := line.getHex()
	if err != nil {
		return err
	}
	hi := lo
	line.skipSpace()
	if !line.isEOL() && line.line[line.pos] == ':' {
		line.pos++
		hi, err = line.getHex()
		if err != nil {
			return err
		}
	}
	if hi < lo {
		return errors.New("high address below low address")
	}
	for pa := lo; pa <= hi; pa += 4 {
		v, ok := sess.Sys.Cpus[sess.CPU].Ctx.ReadMem(pa, 4)
		if !ok {
			return fmt.Errorf("memory fault reading %08X", pa)
		}
		fmt.Printf("%08X: %08X\n", pa, v)
	}
	return nil
}

// deposit writes a value into a register, the PSW, the PC, or a
// physical memory location. The teacher refuses to deposit into the
// PSW; this port allows it since Context.SetPS gives the operator a
// legitimate way to force a processor mode for debugging.
func deposit(line *cmdLine, sess *Session) (bool, error) {
	cpu, err := cpuOf(sess)
	if err != nil {
		return false, err
	}

	target := line.getIdent()
	switch target {
	case "reg", "r":
		lo, _, err := line.parseRange()
		if err != nil {
			return false, err
		}
		v, err := line.getHex()
		if err != nil {
			return false, err
		}
		if lo < 0 || lo > 31 {
			return false, fmt.Errorf("register number out of range: %d", lo)
		}
		cpu.Ctx.SetInt(uint8(lo), v)
		return false, nil

	case "fp", "f":
		lo, _, err := line.parseRange()
		if err != nil {
			return false, err
		}
		v, err := line.getHex()
		if err != nil {
			return false, err
		}
		if lo < 0 || lo > 31 {
			return false, fmt.Errorf("register number out of range: %d", lo)
		}
		cpu.Ctx.SetFP(uint8(lo), v)
		return false, nil

	case "psw":
		v, err := line.getHex()
		if err != nil {
			return false, err
		}
		cpu.Ctx.SetPS(v)
		return false, nil

	case "pc":
		v, err := line.getHex()
		if err != nil {
			return false, err
		}
		cpu.Ctx.SetPC(v)
		return false, nil

	case "mem", "m":
		pa, err := line.getHex()
		if err != nil {
			return false, err
		}
		v, err := line.getHex()
		if err != nil {
			return false, err
		}
		if ok := cpu.Ctx.WriteMem(pa, 4, v); !ok {
			return false, fmt.Errorf("memory fault writing %08X", pa)
		}
		return false, nil

	default:
		return false, errors.New("unknown deposit target: " + target)
	}
}

// step single-steps the current CPU n cycles (default 1) directly
// through its Pipeline, bypassing the packet channel — the same
// direct-drive path System.StepAllCooperative uses, narrowed to one
// CPU. Refuses while the CPU's own goroutine has it running, since the
// two drivers stepping the same Pipeline concurrently would race.
func step(line *cmdLine, sess *Session) (bool, error) {
	cpu, err := cpuOf(sess)
	if err != nil {
		return false, err
	}
	n := 1
	line.skipSpace()
	if !line.isEOL() {
		n, err = line.getNumber()
		if err != nil {
			return false, err
		}
	}
	for i := 0; i < n; i++ {
		cpu.Pipeline.StepCycle()
	}
	fmt.Printf("cpu %d: stepped %d cycle(s), PC=%016X\n", sess.CPU, n, cpu.Ctx.PC())
	return false, nil
}

func cont(_ *cmdLine, sess *Session) (bool, error) {
	sess.Sys.Send(core.Packet{Kind: core.PacketStart, TargetCPU: sess.CPU})
	return false, nil
}

func halt(_ *cmdLine, sess *Session) (bool, error) {
	sess.Sys.Send(core.Packet{Kind: core.PacketStop, TargetCPU: sess.CPU})
	return false, nil
}

func reset(_ *cmdLine, sess *Session) (bool, error) {
	sess.Sys.Send(core.Packet{Kind: core.PacketReset, TargetCPU: sess.CPU})
	return false, nil
}

// cpuSelect switches which CPU subsequent bare verbs target.
func cpuSelect(line *cmdLine, sess *Session) (bool, error) {
	n, err := line.getNumber()
	if err != nil {
		return false, err
	}
	if n < 0 || n >= len(sess.Sys.Cpus) {
		return false, fmt.Errorf("no such cpu: %d", n)
	}
	sess.CPU = n
	return false, nil
}

var showTargets = []string{"tlb", "pal", "pending"}

func showComplete(line *cmdLine) []string {
	word := line.getWord()
	matches := []string{}
	for _, t := range showTargets {
		if len(word) <= len(t) && t[:len(word)] == word {
			matches = append(matches, t)
		}
	}
	return matches
}

// show reports live state the operator cannot get at with a plain
// examine: TLB shard occupancy, the PAL base and current HWPCB, or the
// current CPU's pending fault/interrupt queue.
func show(line *cmdLine, sess *Session) (bool, error) {
	cpu, err := cpuOf(sess)
	if err != nil {
		return false, err
	}

	switch line.getIdent() {
	case "tlb":
		valid, total := sess.Sys.TLB.Stats(sess.CPU)
		fmt.Printf("cpu %d tlb: %d/%d ways occupied\n", sess.CPU, valid, total)

	case "pal":
		fmt.Printf("PAL base: %016X\n", cpu.Ctx.Cold().PalBase)
		fmt.Printf("HWPCB: %+v\n", *cpu.Ctx.CurrentHWPCB())

	case "pending":
		pending := cpu.Ctx.PendingEvents()
		if len(pending) == 0 {
			fmt.Println("no pending events")
		}
		for _, p := range pending {
			fmt.Printf("kind=%d class=%d ipl=%d va=%016X\n", p.Kind, p.Class, p.IPL, p.FaultVA)
		}

	default:
		return false, errors.New("show target must be tlb, pal, or pending")
	}
	return false, nil
}

var attachTargets = []string{"telnet", "serial"}

func attachComplete(line *cmdLine) []string {
	if line.getIdent() != "console" {
		return nil
	}
	word := line.getIdent()
	matches := []string{}
	for _, t := range attachTargets {
		if len(word) <= len(t) && t[:len(word)] == word {
			matches = append(matches, t)
		}
	}
	return matches
}

// attach binds a console transport to the System's shared console
// device — "attach console telnet :2323" or "attach console serial
// /dev/ttyUSB0 baud=9600". Grounded on the teacher's attach verb
// (command/parser/commands.go), narrowed from arbitrary devices to the
// one console this port has.
func attach(line *cmdLine, sess *Session) (bool, error) {
	if line.getIdent() != "console" {
		return false, errors.New("attach target must be console")
	}

	switch line.getIdent() {
	case "telnet":
		addr, ok := line.parseQuoteString()
		if !ok || addr == "" {
			return false, errors.New("attach console telnet requires an address")
		}
		t, err := console.NewTelnetTransport(addr)
		if err != nil {
			return false, err
		}
		return false, sess.Sys.Console.Attach(t)

	case "serial":
		dev, ok := line.parseQuoteString()
		if !ok || dev == "" {
			return false, errors.New("attach console serial requires a device path")
		}
		baud := 9600
		line.skipSpace()
		if !line.isEOL() {
			var err error
			baud, err = line.getNumber()
			if err != nil {
				return false, err
			}
		}
		t, err := console.NewSerialTransport(dev, baud)
		if err != nil {
			return false, err
		}
		return false, sess.Sys.Console.Attach(t)

	default:
		return false, errors.New("attach console target must be telnet or serial")
	}
}

func quit(_ *cmdLine, _ *Session) (bool, error) {
	return true, nil
}
