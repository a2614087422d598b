/*
 * Debug options configuration.
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

// Package debugconfig replaces the teacher's per-device/per-channel
// debug dispatch (emu/sys_channel.Debug(number, category), dev.Debug)
// with one over this emulator's own subsystems: pipeline, mmu, tlb,
// pal, smp. "debug pipeline,tlb,pal" turns on a trace category per
// package the same way the teacher's "debug channel 0 data" turns on
// one channel's trace — register-on-init, dispatch-by-name, each
// package owning its own Debug(category string) error.
package debugconfig

import (
	"errors"
	"strings"

	config "github.com/ev6sim/alphacore/config/configparser"
	"github.com/ev6sim/alphacore/emu/cpu"
	"github.com/ev6sim/alphacore/emu/mmu"
	"github.com/ev6sim/alphacore/emu/pal"
	"github.com/ev6sim/alphacore/emu/smp"
	"github.com/ev6sim/alphacore/emu/tlb"
)

func init() {
	config.RegisterDirective("DEBUG", setDebug)
}

// subsystems maps a debug category name to the package whose Debug
// function understands it. Several names alias the same package
// (PIPELINE/CPU/RETIRE all reach emu/cpu) since a user is as likely to
// write "debug cpu" as "debug pipeline".
var subsystems = map[string]func(string) error{
	"PIPELINE":  cpu.Debug,
	"CPU":       cpu.Debug,
	"RETIRE":    cpu.Debug,
	"MMU":       mmu.Debug,
	"WALK":      mmu.Debug,
	"TLB":       tlb.Debug,
	"SHARD":     tlb.Debug,
	"PAL":       pal.Debug,
	"DELIVER":   pal.Debug,
	"SMP":       smp.Debug,
	"COHERENCE": smp.Debug,
}

// setDebug dispatches every category named on a "debug ..." line. The
// configparser grammar folds a comma list into one Option's Name plus
// Value slice ("debug tlb,pal,smp" -> one Option{Name:"tlb",
// Value:["pal","smp"]}), so each option contributes its Name and every
// entry in Value as its own category.
func setDebug(options []config.Option) error {
	for _, opt := range options {
		categories := append([]string{opt.Name}, opt.Value...)
		for _, cat := range categories {
			cat = strings.ToUpper(cat)
			fn, ok := subsystems[cat]
			if !ok {
				return errors.New("debug: unknown category: " + cat)
			}
			if err := fn(cat); err != nil {
				return err
			}
		}
	}
	return nil
}
