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

// Package mbuf is the narrow external-collaborator surface the stream
// layer consumes: a contiguous byte buffer with a read cursor and a write
// cursor. The core treats mbuf as opaque outside of this surface; no
// zero-copy buffering layer is implemented here (spec.md non-goals).
package mbuf

// Buf is a contiguous byte buffer with independent read/write cursors.
// readable_size = wpos-rpos; writable_size = capacity-wpos.
type Buf struct {
	data []byte
	rpos int
	wpos int
}

// New allocates a buffer with the given capacity.
func New(capacity int) *Buf {
	return &Buf{data: make([]byte, capacity)}
}

// ReadableSize returns the number of unread bytes available.
func (b *Buf) ReadableSize() int { return b.wpos - b.rpos }

// WritableSize returns the remaining capacity for new writes.
func (b *Buf) WritableSize() int { return len(b.data) - b.wpos }

// Cap returns the buffer's total capacity.
func (b *Buf) Cap() int { return len(b.data) }

// RPos returns the current read cursor.
func (b *Buf) RPos() int { return b.rpos }

// WPos returns the current write cursor.
func (b *Buf) WPos() int { return b.wpos }

// AdvanceRPos moves the read cursor forward by n bytes.
func (b *Buf) AdvanceRPos(n int) { b.rpos += n }

// AdvanceWPos moves the write cursor forward by n bytes.
func (b *Buf) AdvanceWPos(n int) { b.wpos += n }

// WriteSlice returns the unwritten tail of the buffer, i.e. where the next
// recv() should land its bytes.
func (b *Buf) WriteSlice() []byte { return b.data[b.wpos:] }

// ReadSlice returns the unread portion of the buffer, i.e. what the next
// send() should drain.
func (b *Buf) ReadSlice() []byte { return b.data[b.rpos:b.wpos] }

// Reset rewinds both cursors to the start, discarding any data; compaction
// of partially-consumed bytes is left to the caller (out of scope here).
func (b *Buf) Reset() {
	b.rpos = 0
	b.wpos = 0
}
