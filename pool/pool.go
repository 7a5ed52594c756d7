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

// Package pool implements the generic free-list object recycler shared by
// the TCP connection pool and the stream pool: a LIFO stack of spare
// objects bounded by an optional capacity, with lazy creation on miss.
package pool

import "errors"

// ErrExhausted is returned by Borrow when the pool is bounded, already at
// capacity, and the free list is empty.
var ErrExhausted = errors.New("pool: exhausted")

// Pool is a fixed-capacity free-list of *T. It is not safe for concurrent
// use: the whole reactor this pool feeds is single-threaded (spec §5).
type Pool[T any] struct {
	max    uint32 // 0 == unbounded
	free   []T
	nfree  uint32
	nused  uint32
	create func() (T, error)
	reset  func(T)
}

// New creates an empty pool with capacity max (0 = unlimited). create
// allocates a fresh element on a free-list miss; reset, if non-nil, is
// applied to every element handed out by Borrow (including freshly
// created ones), mirroring conn_borrow's "reset on borrow" contract.
func New[T any](max uint32, create func() (T, error), reset func(T)) *Pool[T] {
	return &Pool[T]{
		max:    max,
		create: create,
		reset:  reset,
	}
}

// Borrow detaches the head of the free list if non-empty; otherwise, if
// unbounded or still under capacity, it calls create to allocate a fresh
// element. Returns ErrExhausted when bounded and capacity is exhausted.
func (p *Pool[T]) Borrow() (T, error) {
	var zero T

	if p.nfree > 0 {
		n := len(p.free) - 1
		obj := p.free[n]
		p.free = p.free[:n]
		p.nfree--
		p.nused++
		if p.reset != nil {
			p.reset(obj)
		}
		return obj, nil
	}

	if p.max > 0 && p.nused >= p.max {
		return zero, ErrExhausted
	}

	obj, err := p.create()
	if err != nil {
		return zero, err
	}
	p.nused++
	if p.reset != nil {
		p.reset(obj)
	}
	return obj, nil
}

// Return pushes obj back onto the head of the free list. Returning an
// object not originally borrowed from this pool is undefined behavior.
func (p *Pool[T]) Return(obj T) {
	p.free = append(p.free, obj)
	p.nfree++
	p.nused--
}

// Destroy drains the free list, calling destroy on each element, and
// resets the pool's counters. Outstanding borrowed elements are the
// caller's responsibility (spec.md §4.A).
func (p *Pool[T]) Destroy(destroy func(T)) {
	for _, obj := range p.free {
		destroy(obj)
	}
	p.free = nil
	p.nfree = 0
	p.nused = 0
}

// NFree returns the current free-list length.
func (p *Pool[T]) NFree() uint32 { return p.nfree }

// NUsed returns the number of objects currently borrowed.
func (p *Pool[T]) NUsed() uint32 { return p.nused }

// Max returns the pool's capacity (0 = unlimited).
func (p *Pool[T]) Max() uint32 { return p.max }
