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

// Package event implements the platform-neutral, edge-triggered readiness
// multiplexer (spec.md §4.C): one kernel readiness object, a fixed-size
// per-wait return array, and a single dispatch callback invoked once per
// ready descriptor. The edge-triggered contract means callers must drain
// a descriptor until EAGAIN before expecting another notification -- see
// spec.md §4.C "Edge-triggered contract".
package event

import "errors"

// Mask is an OR of Read/Write/Err bits, stable across platforms
// (spec.md §6).
type Mask uint32

const (
	Read  Mask = 0x0000FF
	Write Mask = 0x00FF00
	Err   Mask = 0xFF0000
)

// DefaultSize is the default number of readiness records a Base returns
// per Wait call (spec.md §3.2 "typically 1024").
const DefaultSize = 1024

// Callback is invoked once per ready descriptor per Wait call.
type Callback func(data interface{}, mask Mask)

// ready is one translated readiness record returned by a backend's wait.
type ready struct {
	data interface{}
	mask Mask
}

// backend is the platform-specific half of Base: register/deregister a
// descriptor and block for readiness, returning already-translated
// abstract masks. One concrete implementation exists per platform
// (epoll_linux.go, kqueue_bsd.go), selected at build time via file name
// suffix / build tags, per spec.md §9's "platform-conditional event
// backend" design note.
type backend interface {
	add(fd int, data interface{}, read, write bool) error
	del(fd int) error
	wait(timeoutMs int, out []ready) (int, error)
	close() error
}

// Base owns the kernel readiness object, the per-wait return buffer, and
// the dispatch callback (spec.md §3.2).
type Base struct {
	cb  Callback
	be  backend
	buf []ready
}

// ErrClosed is returned by operations on an already-destroyed Base.
var ErrClosed = errors.New("event: base is closed")

// Create constructs a readiness multiplexer sized to return up to size
// ready descriptors per Wait call, dispatching to cb.
func Create(size int, cb Callback) (*Base, error) {
	if size <= 0 {
		size = DefaultSize
	}
	be, err := newBackend(size)
	if err != nil {
		return nil, err
	}
	return &Base{cb: cb, be: be, buf: make([]ready, size)}, nil
}

// Destroy releases the kernel handle and arrays. Idempotent: destroying
// an already-destroyed (nil-backend) Base, or a nil *Base, is a no-op.
func (b *Base) Destroy() {
	if b == nil || b.be == nil {
		return
	}
	b.be.close()
	b.be = nil
}

// AddRead registers fd for edge-triggered read readiness, attaching data
// as the opaque user-data payload dispatched back through cb.
func (b *Base) AddRead(fd int, data interface{}) error {
	if b.be == nil {
		return ErrClosed
	}
	return b.be.add(fd, data, true, false)
}

// AddWrite registers fd for edge-triggered write readiness.
func (b *Base) AddWrite(fd int, data interface{}) error {
	if b.be == nil {
		return ErrClosed
	}
	return b.be.add(fd, data, false, true)
}

// Register is a convenience that registers fd for both directions.
func (b *Base) Register(fd int, data interface{}) error {
	if b.be == nil {
		return ErrClosed
	}
	return b.be.add(fd, data, true, true)
}

// Deregister removes fd from the set. Registering the same fd twice
// without an intervening Deregister is undefined (spec.md §4.C).
func (b *Base) Deregister(fd int) error {
	if b.be == nil {
		return ErrClosed
	}
	return b.be.del(fd)
}

// Wait blocks up to timeoutMs (-1 = indefinite), dispatching cb once per
// ready descriptor returned by the underlying multiplexer. It returns the
// number of dispatches: 0 on an ordinary timeout, -1 if the multiplexer
// returns an error after exhausting EINTR retries (spec.md §4.C).
func (b *Base) Wait(timeoutMs int) int {
	if b.be == nil {
		return -1
	}

	n, err := b.be.wait(timeoutMs, b.buf)
	if err != nil {
		return -1
	}

	for i := 0; i < n; i++ {
		b.cb(b.buf[i].data, b.buf[i].mask)
	}
	return n
}
