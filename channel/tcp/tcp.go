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

import (
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/xtaci/ccommon/metric"
	"github.com/xtaci/ccommon/status"
)

// ListenOptions configures the back-pressure policy of a listening
// Transport (SPEC_FULL.md §4.B "Connection-capped listener" /
// "Accept-loop backpressure").
type ListenOptions struct {
	// Backlog is the kernel listen() backlog.
	Backlog int
	// MaxConns caps concurrently accepted connections; 0 means
	// unbounded. Once reached, Accept hands new sockets to Reject
	// instead.
	MaxConns int
	// AcceptLimiter, if non-nil, throttles how fast Accept hands out
	// new connections, independent of MaxConns.
	AcceptLimiter *rate.Limiter
}

// Transport owns a listening socket and the bookkeeping needed to apply
// spec.md §4.B's tcp_setup/tcp_listen/tcp_accept/tcp_reject contract.
// It is the explicit, non-global collaborator spec.md §9 calls for in
// place of process-wide state.
type Transport struct {
	opts ListenOptions
	m    *metrics

	mu       sync.Mutex
	listenSd int
	curr     int // connections currently accepted and not yet Closed
}

// Setup constructs a Transport bound to reg for metrics (tcp_setup).
// reg may be nil, in which case a private registry is used.
func Setup(opts ListenOptions, reg *metric.Registry) *Transport {
	return &Transport{opts: opts, m: newMetrics(reg), listenSd: -1}
}

// Teardown closes the listening socket, if any (tcp_teardown).
func (t *Transport) Teardown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listenSd < 0 {
		return nil
	}
	err := unix.Close(t.listenSd)
	t.listenSd = -1
	return err
}

// Listen creates, binds and listens on addr (e.g. "0.0.0.0:7900"),
// returning the *Conn representing the listening socket (tcp_listen).
func (t *Transport) Listen(addr string) (*Conn, error) {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		return nil, errors.Wrap(err, "tcp: resolve listen address")
	}

	sd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "tcp: socket")
	}
	if err := SetReuseAddr(sd); err != nil {
		unix.Close(sd)
		return nil, errors.Wrap(err, "tcp: SO_REUSEADDR")
	}
	if err := unix.Bind(sd, sa); err != nil {
		unix.Close(sd)
		return nil, errors.Wrap(err, "tcp: bind")
	}
	backlog := t.opts.Backlog
	if backlog <= 0 {
		backlog = 128
	}
	if err := unix.Listen(sd, backlog); err != nil {
		unix.Close(sd)
		return nil, errors.Wrap(err, "tcp: listen")
	}
	if err := SetNonblocking(sd); err != nil {
		unix.Close(sd)
		return nil, errors.Wrap(err, "tcp: set nonblocking")
	}

	t.mu.Lock()
	t.listenSd = sd
	t.mu.Unlock()

	c := NewConn()
	c.Sd = sd
	c.Level = LevelMeta
	c.State = Listen
	c.Free = false
	return c, nil
}

// LocalAddr returns the local "host:port" a Conn's socket is bound to,
// useful after Listen("...:0") to discover the OS-assigned port.
func LocalAddr(c *Conn) (string, error) {
	sa, err := unix.Getsockname(c.Sd)
	if err != nil {
		return "", errors.Wrap(err, "tcp: getsockname")
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", errors.New("tcp: unsupported sockaddr family")
	}
	ip := net.IPv4(sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3])
	return net.JoinHostPort(ip.String(), strconv.Itoa(sa4.Port)), nil
}

// Connect creates a non-blocking outbound socket to addr (tcp_connect).
// It returns a Conn in the Connect state; the caller must poll
// writability (e.g. via event.Base) and confirm success with GetSoError.
func (t *Transport) Connect(addr string) (*Conn, error) {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		t.m.connectEx.Incr(1)
		return nil, errors.Wrap(err, "tcp: resolve connect address")
	}

	sd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		t.m.connectEx.Incr(1)
		return nil, errors.Wrap(err, "tcp: socket")
	}
	if err := SetNonblocking(sd); err != nil {
		unix.Close(sd)
		t.m.connectEx.Incr(1)
		return nil, errors.Wrap(err, "tcp: set nonblocking")
	}
	if err := SetTCPNoDelay(sd); err != nil {
		unix.Close(sd)
		t.m.connectEx.Incr(1)
		return nil, errors.Wrap(err, "tcp: TCP_NODELAY")
	}

	c := NewConn()
	c.Sd = sd
	c.Level = LevelBase
	c.Free = false

	err = unix.Connect(sd, sa)
	if err == nil {
		c.State = Connected
		t.m.connect.Incr(1)
		t.bumpCurr(1)
		return c, nil
	}
	if err == unix.EINPROGRESS {
		c.State = Connect
		t.m.connect.Incr(1)
		t.bumpCurr(1)
		return c, nil
	}

	unix.Close(sd)
	t.m.connectEx.Incr(1)
	return nil, errors.Wrap(err, "tcp: connect")
}

// Accept accepts one pending connection from listener (tcp_accept). If
// MaxConns is saturated or the accept limiter denies the event, the
// socket is accepted and immediately Reject-ed (spec.md §7
// back-pressure), and Accept returns (nil, false, nil).
func (t *Transport) Accept(listener *Conn) (*Conn, bool, error) {
	sd, _, err := unix.Accept(listener.Sd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		t.m.acceptEx.Incr(1)
		return nil, false, errors.Wrap(err, "tcp: accept")
	}

	if t.overCapacity() || !t.allowByRate() {
		t.m.rejectOverAcceptLimit.Incr(1)
		unix.Close(sd)
		t.m.reject.Incr(1)
		return nil, false, nil
	}

	if err := SetNonblocking(sd); err != nil {
		unix.Close(sd)
		t.m.acceptEx.Incr(1)
		return nil, false, errors.Wrap(err, "tcp: set nonblocking")
	}
	SetTCPNoDelay(sd)

	c := NewConn()
	c.Sd = sd
	c.Level = LevelBase
	c.State = Connected
	c.Free = false

	t.m.accept.Incr(1)
	t.bumpCurr(1)
	return c, true, nil
}

// Reject accepts and immediately closes one pending connection
// (tcp_reject), used directly by callers that want to shed load without
// going through Accept's capacity check.
func (t *Transport) Reject(listener *Conn) error {
	sd, _, err := unix.Accept(listener.Sd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		t.m.rejectEx.Incr(1)
		return errors.Wrap(err, "tcp: reject-accept")
	}
	unix.Close(sd)
	t.m.reject.Incr(1)
	return nil
}

// Close closes c's socket, sets its State to Closing and its Sd to -1
// (tcp_close). It does not return c to any pool.
func (t *Transport) Close(c *Conn) error {
	if c.Sd < 0 {
		return nil
	}
	err := unix.Close(c.Sd)
	c.State = Closing
	c.Sd = -1
	t.m.close.Incr(1)
	t.bumpCurr(-1)
	if err != nil {
		return errors.Wrap(err, "tcp: close")
	}
	return nil
}

// Recv reads into buf, returning the number of bytes read and a status
// (tcp_recv): status.OK on any read >0, status.EAgain if the socket
// would block, status.ERdhup on EOF (spec.md §4.B/§6). A short read
// (k<len(buf)) clears recv_ready since the kernel told us less data was
// ready than we asked for; EOF always clears it (cc_nio.c:63-71).
func (t *Transport) Recv(c *Conn, buf []byte) (int, status.Status) {
	n, err := readRetryEINTR(c.Sd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.RecvReady = false
			return 0, status.EAgain
		}
		t.m.connErrEx.Incr(1)
		c.Err = err
		return 0, status.Error
	}
	if n == 0 {
		c.State = EOF
		c.RecvReady = false
		t.m.eof.Incr(1)
		return 0, status.ERdhup
	}
	if n < len(buf) {
		c.RecvReady = false
	}

	t.m.recv.Incr(1)
	t.m.recvByte.Incr(int64(n))
	c.RecvNByte += uint64(n)
	return n, status.OK
}

// Send writes buf to c (tcp_send), mapping status the same way as Recv.
// A short write (k<len(buf)) clears send_ready (cc_nio.c:63-65).
func (t *Transport) Send(c *Conn, buf []byte) (int, status.Status) {
	n, err := writeRetryEINTR(c.Sd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.SendReady = false
			return 0, status.EAgain
		}
		t.m.connErrEx.Incr(1)
		c.Err = err
		return 0, status.Error
	}
	if n < len(buf) {
		c.SendReady = false
	}

	t.m.send.Incr(1)
	t.m.sendByte.Incr(int64(n))
	c.SendNByte += uint64(n)
	return n, status.OK
}

// Recvv is the vectorized counterpart of Recv (tcp_recvv), using readv
// to fill multiple buffers in one syscall.
func (t *Transport) Recvv(c *Conn, bufs [][]byte) (int, status.Status) {
	n, err := readvRetryEINTR(c.Sd, bufs)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.RecvReady = false
			return 0, status.EAgain
		}
		t.m.connErrEx.Incr(1)
		c.Err = err
		return 0, status.Error
	}
	if n == 0 {
		c.State = EOF
		c.RecvReady = false
		t.m.eof.Incr(1)
		return 0, status.ERdhup
	}
	if n < iovecLen(bufs) {
		c.RecvReady = false
	}

	t.m.recv.Incr(1)
	t.m.recvvByte.Incr(int64(n))
	c.RecvNByte += uint64(n)
	return n, status.OK
}

// Sendv is the vectorized counterpart of Send (tcp_sendv), using writev
// to drain multiple buffers in one syscall.
func (t *Transport) Sendv(c *Conn, bufs [][]byte) (int, status.Status) {
	n, err := writevRetryEINTR(c.Sd, bufs)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.SendReady = false
			return 0, status.EAgain
		}
		t.m.connErrEx.Incr(1)
		c.Err = err
		return 0, status.Error
	}
	if n < iovecLen(bufs) {
		c.SendReady = false
	}

	t.m.send.Incr(1)
	t.m.sendvByte.Incr(int64(n))
	c.SendNByte += uint64(n)
	return n, status.OK
}

// iovecLen sums the lengths of a readv/writev buffer list, used to
// detect short vectorized transfers the same way a plain length
// comparison detects a short Read/Write.
func iovecLen(bufs [][]byte) int {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	return total
}

// sysRead/sysWrite/sysReadv/sysWritev indirect the raw syscalls so tests
// can simulate EINTR without racing a real signal against a real
// blocking syscall (golang.org/x/sys/unix.Read et al. otherwise).
var (
	sysRead   = unix.Read
	sysWrite  = unix.Write
	sysReadv  = unix.Readv
	sysWritev = unix.Writev
)

// readRetryEINTR, writeRetryEINTR, readvRetryEINTR and writevRetryEINTR
// retry transparently on EINTR (spec.md §4.B "On EINTR: retry without
// yielding"; cc_nio.c:79-81 loops the same way). Every other error,
// including EAGAIN/EWOULDBLOCK, is returned to the caller unchanged.
func readRetryEINTR(fd int, buf []byte) (int, error) {
	for {
		n, err := sysRead(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func writeRetryEINTR(fd int, buf []byte) (int, error) {
	for {
		n, err := sysWrite(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func readvRetryEINTR(fd int, bufs [][]byte) (int, error) {
	for {
		n, err := sysReadv(fd, bufs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func writevRetryEINTR(fd int, bufs [][]byte) (int, error) {
	for {
		n, err := sysWritev(fd, bufs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (t *Transport) bumpCurr(delta int) {
	t.mu.Lock()
	t.curr += delta
	t.mu.Unlock()
	t.m.connectCurr.Set(int64(t.curr))
	t.m.openSd.Set(int64(t.curr))
}

func (t *Transport) overCapacity() bool {
	if t.opts.MaxConns <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.curr >= t.opts.MaxConns
}

// allowByRate reports whether the accept-rate limiter (if configured)
// currently permits handing out one more connection. It never blocks:
// an accept loop must stay responsive to other ready descriptors, so a
// denied token rejects this connection rather than stalling the caller.
func (t *Transport) allowByRate() bool {
	if t.opts.AcceptLimiter == nil {
		return true
	}
	return t.opts.AcceptLimiter.Allow()
}

// resolveSockaddr resolves a "host:port" string to a raw IPv4
// unix.Sockaddr. The core's wire protocol is IPv4-only, matching the
// AF_INET sockets created by Listen/Connect.
func resolveSockaddr(addr string) (unix.Sockaddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}

	var a [4]byte
	ip4 := tcpAddr.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	copy(a[:], ip4)
	return &unix.SockaddrInet4{Port: tcpAddr.Port, Addr: a}, nil
}
