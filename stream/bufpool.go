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

package stream

import (
	"github.com/xtaci/ccommon/mbuf"
	"github.com/xtaci/ccommon/pool"
)

// BufPool is pool.Pool[*mbuf.Buf] specialized for the rbuf/wbuf a Stream
// borrows on creation (spec.md §3.3, §4.E "stream_create").
type BufPool struct {
	p *pool.Pool[*mbuf.Buf]
}

// NewBufPool creates a buffer pool bounded to max buffers (0 =
// unbounded), each sized bufSize bytes.
func NewBufPool(max uint32, bufSize int) *BufPool {
	create := func() (*mbuf.Buf, error) { return mbuf.New(bufSize), nil }
	reset := func(b *mbuf.Buf) { b.Reset() }
	return &BufPool{p: pool.New(max, create, reset)}
}

// Borrow returns a reset buffer.
func (bp *BufPool) Borrow() (*mbuf.Buf, error) { return bp.p.Borrow() }

// Return pushes b back onto the free list.
func (bp *BufPool) Return(b *mbuf.Buf) { bp.p.Return(b) }

// Destroy drains the free list.
func (bp *BufPool) Destroy() { bp.p.Destroy(func(*mbuf.Buf) {}) }

// NFree, NUsed and Max expose the underlying pool's bookkeeping.
func (bp *BufPool) NFree() uint32 { return bp.p.NFree() }
func (bp *BufPool) NUsed() uint32 { return bp.p.NUsed() }
func (bp *BufPool) Max() uint32   { return bp.p.Max() }
