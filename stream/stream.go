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

// Package stream implements the central user-facing abstraction of
// spec.md §4.E: a channel paired with a read buffer and a write buffer,
// plumbed through a handler vtable whose pre/post hooks run around every
// Read/Write.
//go:build unix

package stream

import (
	"errors"

	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/mbuf"
	"github.com/xtaci/ccommon/status"
)

// Handler is the vtable a Stream dispatches its lifecycle and hook
// points through (spec.md §3.3). Any entry may be nil, meaning "no-op".
type Handler struct {
	Open      func(s *Stream)
	Close     func(c *tcp.Conn)
	FD        func(c *tcp.Conn) int
	PreRead   func(s *Stream, n int)
	PostRead  func(s *Stream, k int)
	PreWrite  func(s *Stream, n int)
	PostWrite func(s *Stream, k int)
}

// ErrHasScratch is returned by destroy-time checks when s.Data is still
// set, meaning the higher layer has not drained its own scratch state
// (spec.md §4.E "stream_destroy precondition").
var ErrHasScratch = errors.New("stream: destroy precondition violated: s.Data != nil")

// Stream binds one TCP connection to a read buffer, a write buffer and a
// Handler (spec.md §3.3).
type Stream struct {
	Transport *tcp.Transport
	Conn      *tcp.Conn
	RBuf      *mbuf.Buf
	WBuf      *mbuf.Buf
	Handler   *Handler

	// Data is higher-layer scratch state; stream_destroy requires it be
	// nil, i.e. drained by the caller before the stream is torn down.
	Data interface{}

	Free bool
}

// New creates a stream over conn, borrowing one rbuf and one wbuf from
// bufPool (stream_create). On buffer-pool exhaustion, anything already
// acquired is released and an error is returned.
func New(transport *tcp.Transport, conn *tcp.Conn, h *Handler, bufPool *BufPool) (*Stream, error) {
	rbuf, err := bufPool.Borrow()
	if err != nil {
		return nil, err
	}
	wbuf, err := bufPool.Borrow()
	if err != nil {
		bufPool.Return(rbuf)
		return nil, err
	}

	s := &Stream{
		Transport: transport,
		Conn:      conn,
		RBuf:      rbuf,
		WBuf:      wbuf,
		Handler:   h,
	}
	if h != nil && h.Open != nil {
		h.Open(s)
	}
	return s, nil
}

// Destroy invokes handler.Close, returns both buffers to bufPool and
// clears the stream (stream_destroy). It is an error to destroy a stream
// whose Data scratch field is still set.
func (s *Stream) Destroy(bufPool *BufPool) error {
	if s.Data != nil {
		return ErrHasScratch
	}
	if s.Handler != nil && s.Handler.Close != nil {
		s.Handler.Close(s.Conn)
	}
	bufPool.Return(s.RBuf)
	bufPool.Return(s.WBuf)
	s.RBuf = nil
	s.WBuf = nil
	return nil
}

// Read implements stream_read(s, n): the caller offers to accept up to n
// bytes into rbuf (spec.md §4.E steps 1-5).
func (s *Stream) Read(n int) status.Status {
	if s.Handler != nil && s.Handler.PreRead != nil {
		s.Handler.PreRead(s, n)
	}

	if s.RBuf.WritableSize() < n {
		return status.ENoMem
	}

	k, st := s.Transport.Recv(s.Conn, s.RBuf.WriteSlice()[:n])
	result := mapReadStatus(k, n, st)

	if k > 0 {
		s.RBuf.AdvanceWPos(k)
		if s.Handler != nil && s.Handler.PostRead != nil {
			s.Handler.PostRead(s, k)
		}
	}
	return result
}

// mapReadStatus implements spec.md §4.E step 4's k-to-status mapping.
func mapReadStatus(k, n int, st status.Status) status.Status {
	switch st {
	case status.EAgain:
		return status.OK // try later
	case status.Error:
		return status.Error
	case status.ERdhup:
		return status.ERdhup
	}
	if k == n {
		return status.ERetry // buffer may hold more; caller should re-invoke
	}
	return status.OK
}

// Write implements stream_write(s, n): n is advisory only (passed to the
// hooks); the actual send always drains whatever is pending in wbuf, not
// n (spec.md §4.E's adopted "drain available" interpretation of the
// stream_write/conn_send discrepancy -- do not "fix" this to use n).
func (s *Stream) Write(n int) status.Status {
	if s.Handler != nil && s.Handler.PreWrite != nil {
		s.Handler.PreWrite(s, n)
	}

	content := s.WBuf.ReadableSize()
	if content == 0 {
		return status.EEmpty
	}

	k, st := s.Transport.Send(s.Conn, s.WBuf.ReadSlice())
	result := mapWriteStatus(k, content, st)

	if k > 0 {
		s.WBuf.AdvanceRPos(k)
		if s.Handler != nil && s.Handler.PostWrite != nil {
			s.Handler.PostWrite(s, k)
		}
	}
	return result
}

// mapWriteStatus implements spec.md §4.E step 3's k-to-status mapping.
func mapWriteStatus(k, content int, st status.Status) status.Status {
	switch st {
	case status.EAgain:
		return status.EAgain
	case status.Error:
		return status.Error
	}
	if k < content {
		return status.ERetry
	}
	return status.OK
}
