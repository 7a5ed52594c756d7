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

package tcp

import "github.com/xtaci/ccommon/pool"

// ConnPool is pool.Pool[*Conn] specialized with conn_create/conn_reset as
// the create/reset pair (spec.md §4.D). A borrowed *Conn always has
// Free == false; Return resets it to the free state.
type ConnPool struct {
	p *pool.Pool[*Conn]
}

// NewConnPool creates a connection pool bounded to max conns (0 =
// unbounded), pre-allocating nothing (conn_pool_create).
func NewConnPool(max uint32) *ConnPool {
	create := func() (*Conn, error) { return NewConn(), nil }
	reset := func(c *Conn) {
		c.Reset()
		c.Free = false
	}
	return &ConnPool{p: pool.New(max, create, reset)}
}

// Borrow returns a reset, ready-to-use *Conn (conn_borrow).
func (cp *ConnPool) Borrow() (*Conn, error) {
	return cp.p.Borrow()
}

// Return resets c and pushes it back onto the free list (conn_return).
func (cp *ConnPool) Return(c *Conn) {
	c.Reset()
	c.Free = true
	cp.p.Return(c)
}

// Destroy drains the free list (conn_pool_destroy). Outstanding borrowed
// connections are the caller's responsibility.
func (cp *ConnPool) Destroy() {
	cp.p.Destroy(func(c *Conn) {
		if c.Sd >= 0 {
			c.Sd = -1
		}
	})
}

// NFree, NUsed and Max expose the underlying pool's bookkeeping.
func (cp *ConnPool) NFree() uint32 { return cp.p.NFree() }
func (cp *ConnPool) NUsed() uint32 { return cp.p.NUsed() }
func (cp *ConnPool) Max() uint32   { return cp.p.Max() }
