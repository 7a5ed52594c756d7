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

package clog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// rotator is an append-only *os.File that, once it crosses maxBytes,
// renames itself aside and starts a fresh file -- the one detail
// log_reopen() in cc_log.h leaves to the caller. The just-rotated file is
// gzip-compressed in the background, mirroring how a backup tool
// compresses an artifact right after closing it.
type rotator struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	f        *os.File
	written  int64
}

func newRotator(path string, maxBytes int64) (*rotator, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rotator{path: path, maxBytes: maxBytes, f: f, written: stat.Size()}, nil
}

func (r *rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.f.Write(p)
	r.written += int64(n)
	if err != nil {
		return n, err
	}

	if r.maxBytes > 0 && r.written >= r.maxBytes {
		if rerr := r.rotateLocked(); rerr != nil {
			return n, rerr
		}
	}
	return n, nil
}

func (r *rotator) rotateLocked() error {
	if err := r.f.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", r.path, time.Now().Format("20060102T150405"))
	if err := os.Rename(r.path, rotated); err != nil {
		return err
	}
	go compressAndRemove(rotated)

	f, err := os.OpenFile(r.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	r.f = f
	r.written = 0
	return nil
}

func compressAndRemove(path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return
	}
	if err := gw.Close(); err != nil {
		return
	}
	os.Remove(path)
}

func (r *rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
