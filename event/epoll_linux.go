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

//go:build linux
// +build linux

package event

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollBackend wraps an epoll instance in edge-triggered mode. The epoll
// event's data field only holds 4-8 bytes, not enough for an arbitrary Go
// interface{}, so opaque user data is kept in a side table keyed by fd --
// the same trick the pack's hand-rolled netpoll reference
// (other_examples gnet.go) avoids needing because it stores connections
// in its own table; we do the same here, one level up.
type epollBackend struct {
	epfd int

	mu   sync.Mutex
	data map[int]interface{}
}

func newBackend(size int) (backend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: fd, data: make(map[int]interface{})}, nil
}

func (e *epollBackend) add(fd int, data interface{}, read, write bool) error {
	var events uint32 = unix.EPOLLET
	if read {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if write {
		events |= unix.EPOLLOUT
	}

	e.mu.Lock()
	_, exists := e.data[fd]
	e.data[fd] = data
	e.mu.Unlock()

	op := unix.EPOLL_CTL_ADD
	if exists {
		op = unix.EPOLL_CTL_MOD
	}

	return unix.EpollCtl(e.epfd, op, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (e *epollBackend) del(fd int) error {
	e.mu.Lock()
	delete(e.data, fd)
	e.mu.Unlock()

	err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (e *epollBackend) wait(timeoutMs int, out []ready) (int, error) {
	raw := make([]unix.EpollEvent, len(out))

	var n int
	var err error
	for {
		n, err = unix.EpollWait(e.epfd, raw, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for i := 0; i < n; i++ {
		ev := raw[i]
		data, ok := e.data[int(ev.Fd)]
		if !ok {
			continue
		}

		var mask Mask
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			mask |= Err
		}
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			mask |= Read
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			mask |= Write
		}

		out[count] = ready{data: data, mask: mask}
		count++
	}
	return count, nil
}

func (e *epollBackend) close() error {
	return unix.Close(e.epfd)
}
