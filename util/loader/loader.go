/*
 * PAL image loader.
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

// Package loader reads a flat PAL firmware image off disk into guest
// physical memory, the one boot-image step the teacher's card/tape deck
// readers never needed (S/370 boots off an IPL device, not a fixed
// memory image). Grounded on the flat-file-to-memory copy every example
// kernel loader does (gokvm's kvm.Load reading a bzImage straight into
// its guest memory slice at a fixed offset) rather than anything in the
// teacher itself.
package loader

import (
	"fmt"
	"os"

	"github.com/ev6sim/alphacore/emu/memory"
)

// LoadPAL reads the file at path and copies it verbatim into mem
// starting at base, returning the number of bytes loaded. The caller
// sets each CPU's Cold().PalBase and initial PC to base once every CPU
// in the System has been constructed.
func LoadPAL(mem *memory.Memory, base uint64, path string) (int, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("loading PAL image %q: %w", path, err)
	}
	if st := mem.WriteBytes(base, image); st != memory.Ok {
		return 0, fmt.Errorf("PAL image %q (%d bytes) does not fit at base %#x: %v", path, len(image), base, st)
	}
	return len(image), nil
}
