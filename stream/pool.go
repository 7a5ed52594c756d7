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

//go:build unix

package stream

import (
	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/pool"
)

// Pool is §4.A specialized over streams (spec.md §4.F): a free-list of
// *Stream shells, each carrying its own rbuf/wbuf for the shell's whole
// lifetime in the pool. Unlike Destroy, returning a stream to the pool
// does NOT release its buffers back to bufPool -- they stay affiliated
// with the shell so the next Borrow can reuse them without allocation.
type Pool struct {
	p       *pool.Pool[*Stream]
	bufPool *BufPool
}

// NewPool creates a stream pool bounded to max shells (0 = unbounded),
// each shell's rbuf/wbuf drawn from bufPool on first allocation.
func NewPool(max uint32, bufPool *BufPool) *Pool {
	create := func() (*Stream, error) {
		rbuf, err := bufPool.Borrow()
		if err != nil {
			return nil, err
		}
		wbuf, err := bufPool.Borrow()
		if err != nil {
			bufPool.Return(rbuf)
			return nil, err
		}
		return &Stream{RBuf: rbuf, WBuf: wbuf}, nil
	}
	reset := func(s *Stream) {
		s.Transport = nil
		s.Conn = nil
		s.Handler = nil
		s.Data = nil
		s.Free = false
		if s.RBuf != nil {
			s.RBuf.Reset()
		}
		if s.WBuf != nil {
			s.WBuf.Reset()
		}
	}
	return &Pool{p: pool.New(max, create, reset), bufPool: bufPool}
}

// Borrow detaches a reset shell from the pool and binds it to conn/h
// (stream_pool_borrow followed by the caller's own bind step).
func (sp *Pool) Borrow(transport *tcp.Transport, conn *tcp.Conn, h *Handler) (*Stream, error) {
	s, err := sp.p.Borrow()
	if err != nil {
		return nil, err
	}
	s.Transport = transport
	s.Conn = conn
	s.Handler = h
	if h != nil && h.Open != nil {
		h.Open(s)
	}
	return s, nil
}

// Return runs handler.Close and pushes s back onto the free list
// (stream_pool_return). s's buffers remain affiliated with it; they are
// only released back to the buffer pool when the stream pool itself is
// destroyed.
func (sp *Pool) Return(s *Stream) error {
	if s.Data != nil {
		return ErrHasScratch
	}
	if s.Handler != nil && s.Handler.Close != nil {
		s.Handler.Close(s.Conn)
	}
	s.Free = true
	sp.p.Return(s)
	return nil
}

// Destroy drains the free list, finally releasing every shell's buffers
// back to bufPool (stream_pool_destroy). Outstanding borrowed streams
// are the caller's responsibility.
func (sp *Pool) Destroy() {
	sp.p.Destroy(func(s *Stream) {
		if s.RBuf != nil {
			sp.bufPool.Return(s.RBuf)
		}
		if s.WBuf != nil {
			sp.bufPool.Return(s.WBuf)
		}
	})
}

// NFree, NUsed and Max expose the underlying pool's bookkeeping.
func (sp *Pool) NFree() uint32 { return sp.p.NFree() }
func (sp *Pool) NUsed() uint32 { return sp.p.NUsed() }
func (sp *Pool) Max() uint32   { return sp.p.Max() }
