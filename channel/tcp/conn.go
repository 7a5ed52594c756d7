// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package tcp implements the channel interface for TCP (spec.md §4.B):
// a non-blocking socket wrapper with explicit recv/send readiness
// tracking, partial-I/O semantics and transient-error recovery.
package tcp

// Level distinguishes a data socket from a listening socket.
type Level int

const (
	LevelBase Level = iota // a data socket
	LevelMeta               // a listening socket
)

// State is one of the enumerated connection states (spec.md §3.1).
type State int

const (
	Unknown State = iota
	Connect
	Connected
	EOF
	Closing
	Listen
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Connect:
		return "CONNECT"
	case Connected:
		return "CONNECTED"
	case EOF:
		return "EOF"
	case Closing:
		return "CLOSING"
	case Listen:
		return "LISTEN"
	default:
		return "?"
	}
}

// Conn represents one socket and its bookkeeping (spec.md §3.1). A
// borrowed Conn has Free == false; a pooled one has Free == true and
// Sd == -1.
type Conn struct {
	Sd    int // OS socket descriptor; -1 when reset
	Level Level
	State State

	RecvReady bool
	SendReady bool

	RecvNByte uint64
	SendNByte uint64

	Err   error
	Flags uint16
	Free  bool
}

// NewConn allocates a connection record in Unknown state with Sd=-1,
// Free=true (conn_create).
func NewConn() *Conn {
	c := &Conn{}
	c.Reset()
	c.Free = true
	return c
}

// Reset zeros all fields except the pool-ownership flag: Sd=-1,
// State=Unknown (conn_reset).
func (c *Conn) Reset() {
	c.Sd = -1
	c.Level = LevelBase
	c.State = Unknown
	c.RecvReady = false
	c.SendReady = false
	c.RecvNByte = 0
	c.SendNByte = 0
	c.Err = nil
	c.Flags = 0
}

// ID returns the connection's socket descriptor (conn_id).
func (c *Conn) ID() int { return c.Sd }
