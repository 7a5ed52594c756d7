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

package tcp

import "golang.org/x/sys/unix"

// SetNonblocking puts sd in non-blocking mode.
func SetNonblocking(sd int) error {
	return unix.SetNonblock(sd, true)
}

// SetReuseAddr sets SO_REUSEADDR.
func SetReuseAddr(sd int) error {
	return unix.SetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// SetTCPNoDelay sets TCP_NODELAY.
func SetTCPNoDelay(sd int) error {
	return unix.SetsockoptInt(sd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// SetKeepAlive sets SO_KEEPALIVE.
func SetKeepAlive(sd int) error {
	return unix.SetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
}

// SetLinger configures SO_LINGER with the given timeout in seconds.
func SetLinger(sd int, timeout int) error {
	return unix.SetsockoptLinger(sd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{
		Onoff:  1,
		Linger: int32(timeout),
	})
}

// UnsetLinger disables SO_LINGER, restoring the default close behavior.
func UnsetLinger(sd int) error {
	return unix.SetsockoptLinger(sd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 0})
}

// SetSndBuf sets SO_SNDBUF.
func SetSndBuf(sd, size int) error {
	return unix.SetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_SNDBUF, size)
}

// SetRcvBuf sets SO_RCVBUF.
func SetRcvBuf(sd, size int) error {
	return unix.SetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_RCVBUF, size)
}

// GetSndBuf reads SO_SNDBUF.
func GetSndBuf(sd int) (int, error) {
	return unix.GetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_SNDBUF)
}

// GetRcvBuf reads SO_RCVBUF.
func GetRcvBuf(sd int) (int, error) {
	return unix.GetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_RCVBUF)
}

// GetSoError reads and clears SO_ERROR, used to confirm a non-blocking
// connect that returned EINPROGRESS.
func GetSoError(sd int) (int, error) {
	return unix.GetsockoptInt(sd, unix.SOL_SOCKET, unix.SO_ERROR)
}

// MaximizeSndBuf doubles SO_SNDBUF repeatedly until setsockopt refuses,
// returning the last value the kernel accepted.
func MaximizeSndBuf(sd int) int {
	size, err := GetSndBuf(sd)
	if err != nil || size <= 0 {
		size = 4096
	}

	for {
		next := size * 2
		if err := SetSndBuf(sd, next); err != nil {
			break
		}
		got, err := GetSndBuf(sd)
		if err != nil || got <= size {
			break
		}
		size = got
	}
	return size
}
