/*
   Serial-port console transport.

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

package console

import "go.bug.st/serial"

// SerialTransport drives a real serial port as the operator console —
// the teacher has no analog for this (S/370 terminals are always
// channel-attached), so this is grounded instead on the gmofishsauce-wut4
// example pack's go.bug.st/serial usage for talking to a physical device
// over USB-serial: open with an explicit Mode, then blocking Read/Write
// in a dedicated goroutine per direction.
type SerialTransport struct {
	port serial.Port
}

// NewSerialTransport opens device (e.g. "/dev/ttyUSB0", "COM3") at
// baudRate, 8N1 — the conventional console-port framing.
func NewSerialTransport(device string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	return &SerialTransport{port: p}, nil
}

// Start reads the port in a background goroutine, delivering each byte
// read to sink until the port is closed.
func (s *SerialTransport) Start(sink func(b byte)) error {
	go s.readLoop(sink)
	return nil
}

func (s *SerialTransport) readLoop(sink func(b byte)) {
	buf := make([]byte, 64)
	for {
		n, err := s.port.Read(buf)
		for i := 0; i < n; i++ {
			sink(buf[i])
		}
		if err != nil {
			return // port closed
		}
	}
}

// WriteByte writes one byte to the port.
func (s *SerialTransport) WriteByte(b byte) error {
	_, err := s.port.Write([]byte{b})
	return err
}

// Close releases the underlying port.
func (s *SerialTransport) Close() error {
	return s.port.Close()
}
