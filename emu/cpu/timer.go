/*
   Interval timer: per-CPU clock-interrupt source.

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

// The teacher's emu/timer/emu/cpu/cpu_timer.go decrement-a-countdown,
// raise-a-flag-on-underflow, reload-from-interval shape (updateClock)
// is kept here verbatim in spirit, retargeted from a 300Hz real-time
// tick plus a separate TOD clock onto a single retired-instruction-
// counted interval feeding the Pending Event queue instead of a
// package-global intIrq/clkIrq flag pair.
package cpu

import "github.com/ev6sim/alphacore/emu/event"

// ClockIPL is the delivery IPL for the interval-timer interrupt: device
// interrupts occupy IPL 20-23 on real Alpha hardware, and the system
// clock conventionally sits at 22.
const ClockIPL = 22

// EnableTimer arms the interval timer to raise a clock interrupt every
// intervalCycles retired instructions; intervalCycles == 0 disarms it.
func (c *Context) EnableTimer(intervalCycles uint64) {
	c.iprBank.Cold.TimerInterval = intervalCycles
	c.iprBank.Cold.TimerCountdown = intervalCycles
	c.iprBank.Cold.TimerEnable = intervalCycles != 0
}

// tickTimer runs once per retired instruction (called from doWB,
// alongside the Hot.Cycle increment it rides along with). Grounded on
// cpu_timer.go's updateClock: decrement, and when the countdown reaches
// zero raise the interrupt and reload from the configured interval.
func (c *Context) tickTimer() {
	cold := &c.iprBank.Cold
	if !cold.TimerEnable {
		return
	}
	if cold.TimerCountdown > 0 {
		cold.TimerCountdown--
	}
	if cold.TimerCountdown == 0 {
		cold.TimerCountdown = cold.TimerInterval
		c.sink.Raise(event.Pending{Kind: event.KindInterrupt, IPL: ClockIPL})
	}
}
