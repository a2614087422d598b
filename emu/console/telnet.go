/*
   Telnet console transport.

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

import (
	"log/slog"
	"net"
)

// Telnet protocol bytes this transport needs to recognize well enough
// to stay in binary/character mode with a plain client — adapted from
// the teacher's telnet package's option negotiation, trimmed to what an
// Alpha operator console needs (no 3270 terminal-type/model detection,
// since this is a character-mode PAL console, not a 3270 session).
const (
	tnIAC  byte = 255
	tnWILL byte = 251
	tnWONT byte = 252
	tnDO   byte = 253
	tnDONT byte = 254
	tnSB   byte = 250
	tnSE   byte = 240

	tnOptionBinary byte = 0
	tnOptionEcho   byte = 1
	tnOptionSGA    byte = 3
)

// negotiation is sent once per accepted connection, putting a plain
// telnet client into character-at-a-time binary mode: server echoes,
// suppresses go-ahead, and both ends speak raw bytes.
var negotiation = []byte{
	tnIAC, tnWILL, tnOptionEcho,
	tnIAC, tnWILL, tnOptionSGA,
	tnIAC, tnWILL, tnOptionBinary,
	tnIAC, tnDO, tnOptionBinary,
}

// TelnetTransport listens on one TCP port and serves the most recently
// accepted connection as the console; only one session at a time is
// meaningful for an operator console, so a new connection replaces the
// previous one rather than queuing behind it.
type TelnetTransport struct {
	listener net.Listener
	conn     net.Conn
}

// NewTelnetTransport binds addr (host:port, or ":port" for all
// interfaces) without yet accepting connections; call Start to begin.
func NewTelnetTransport(addr string) (*TelnetTransport, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TelnetTransport{listener: l}, nil
}

// Start accepts connections in a background goroutine for the
// listener's lifetime, streaming received bytes (with IAC sequences
// filtered out) to sink.
func (t *TelnetTransport) Start(sink func(b byte)) error {
	go t.acceptLoop(sink)
	return nil
}

func (t *TelnetTransport) acceptLoop(sink func(b byte)) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return // listener closed
		}
		t.conn = conn
		if _, err := conn.Write(negotiation); err != nil {
			slog.Debug("telnet negotiation write failed", "error", err)
		}
		go t.readLoop(conn, sink)
	}
}

func (t *TelnetTransport) readLoop(conn net.Conn, sink func(b byte)) {
	buf := make([]byte, 256)
	state := 0 // 0: data, 1: IAC seen, 2: WILL/WONT/DO/DONT option byte, 3: subnegotiation
	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			b := buf[i]
			switch state {
			case 0:
				if b == tnIAC {
					state = 1
				} else {
					sink(b)
				}
			case 1:
				switch b {
				case tnWILL, tnWONT, tnDO, tnDONT:
					state = 2
				case tnSB:
					state = 3
				case tnIAC:
					sink(tnIAC) // escaped 0xff literal
					state = 0
				default:
					state = 0
				}
			case 2:
				state = 0 // option byte consumed; this transport never replies per-option
			case 3:
				if b == tnSE {
					state = 0
				}
			}
		}
		if err != nil {
			if t.conn == conn {
				t.conn = nil
			}
			return
		}
	}
}

// WriteByte sends one byte to the currently connected client, if any;
// with nobody connected it is silently dropped.
func (t *TelnetTransport) WriteByte(b byte) error {
	conn := t.conn
	if conn == nil {
		return nil
	}
	if b == tnIAC {
		_, err := conn.Write([]byte{tnIAC, tnIAC})
		return err
	}
	_, err := conn.Write([]byte{b})
	return err
}

// Close shuts down the listener and any active connection.
func (t *TelnetTransport) Close() error {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	return t.listener.Close()
}
