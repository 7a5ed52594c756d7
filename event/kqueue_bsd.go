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

//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

package event

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend wraps a kqueue instance using EV_CLEAR for edge-triggered
// semantics, the BSD-family counterpart to epollBackend.
type kqueueBackend struct {
	kqfd int

	mu   sync.Mutex
	data map[int]interface{}
}

func newBackend(size int) (backend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueBackend{kqfd: fd, data: make(map[int]interface{})}, nil
}

func (k *kqueueBackend) add(fd int, data interface{}, read, write bool) error {
	k.mu.Lock()
	k.data[fd] = data
	k.mu.Unlock()

	var changes []unix.Kevent_t
	if read {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR,
		})
	}
	if write {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR,
		})
	}

	_, err := unix.Kevent(k.kqfd, changes, nil, nil)
	return err
}

func (k *kqueueBackend) del(fd int) error {
	k.mu.Lock()
	delete(k.data, fd)
	k.mu.Unlock()

	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// best-effort: a filter that was never added returns ENOENT, ignored
	unix.Kevent(k.kqfd, changes, nil, nil)
	return nil
}

func (k *kqueueBackend) wait(timeoutMs int, out []ready) (int, error) {
	raw := make([]unix.Kevent_t, len(out))

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		d := time.Duration(timeoutMs) * time.Millisecond
		t := unix.NsecToTimespec(d.Nanoseconds())
		ts = &t
	}

	var n int
	var err error
	for {
		n, err = unix.Kevent(k.kqfd, nil, raw, ts)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		return 0, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// kqueue may return one event per filter per fd; coalesce by fd so the
	// callback is invoked at most once per descriptor per Wait, matching
	// the epoll backend's shape (spec.md §4.C: "cb invoked once per ready
	// descriptor").
	merged := make(map[int]Mask)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Ident)
		if _, ok := merged[fd]; !ok {
			order = append(order, fd)
		}

		var mask Mask
		if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
			mask |= Err
		}
		switch ev.Filter {
		case unix.EVFILT_READ:
			mask |= Read
		case unix.EVFILT_WRITE:
			mask |= Write
		}
		merged[fd] |= mask
	}

	count := 0
	for _, fd := range order {
		data, ok := k.data[fd]
		if !ok {
			continue
		}
		out[count] = ready{data: data, mask: merged[fd]}
		count++
	}
	return count, nil
}

func (k *kqueueBackend) close() error {
	return unix.Close(k.kqfd)
}
