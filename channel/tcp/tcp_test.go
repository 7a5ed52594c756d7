//go:build unix

package tcp

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/xtaci/ccommon/status"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestListenConnectAcceptRoundTrip(t *testing.T) {
	srv := Setup(ListenOptions{Backlog: 16}, nil)
	listener, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Teardown()

	addr, err := LocalAddr(listener)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}

	cli := Setup(ListenOptions{}, nil)
	clientConn, err := cli.Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var serverConn *Conn
	waitUntil(t, time.Second, func() bool {
		c, ok, err := srv.Accept(listener)
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			serverConn = c
			return true
		}
		return false
	})

	payload := []byte("hello, ccommon")
	waitUntil(t, time.Second, func() bool {
		n, st := cli.Send(clientConn, payload)
		return st == status.OK && n == len(payload)
	})

	buf := make([]byte, 64)
	var n int
	var st status.Status
	waitUntil(t, time.Second, func() bool {
		n, st = srv.Recv(serverConn, buf)
		return st == status.OK
	})
	if string(buf[:n]) != string(payload) {
		t.Fatalf("got %q, want %q", buf[:n], payload)
	}

	if err := srv.Close(serverConn); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cli.Close(clientConn); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAcceptRejectsOverMaxConns(t *testing.T) {
	srv := Setup(ListenOptions{Backlog: 16, MaxConns: 0}, nil)
	listener, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Teardown()

	// Force the capacity check to reject by allowing one connection and
	// counting one as already accepted (current usage 1 >= 1 is true).
	srv.opts.MaxConns = 1
	srv.curr = 1

	addr, _ := LocalAddr(listener)
	cli := Setup(ListenOptions{}, nil)
	if _, err := cli.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		_, ok, err := srv.Accept(listener)
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		return !ok
	})

	if got := srv.m.reject.Value(); got != 1 {
		t.Fatalf("expected one rejected connection recorded, got %d", got)
	}
}

func TestRecvReturnsERdhupOnPeerClose(t *testing.T) {
	srv := Setup(ListenOptions{Backlog: 16}, nil)
	listener, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Teardown()

	addr, _ := LocalAddr(listener)
	cli := Setup(ListenOptions{}, nil)
	clientConn, err := cli.Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var serverConn *Conn
	waitUntil(t, time.Second, func() bool {
		c, ok, err := srv.Accept(listener)
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			serverConn = c
			return true
		}
		return false
	})

	if err := cli.Close(clientConn); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf := make([]byte, 16)
	var st status.Status
	waitUntil(t, time.Second, func() bool {
		_, st = srv.Recv(serverConn, buf)
		return st != status.EAgain
	})
	if st != status.ERdhup {
		t.Fatalf("expected ERdhup, got %v", st)
	}
	if serverConn.State != EOF {
		t.Fatalf("expected conn state EOF, got %v", serverConn.State)
	}
	if serverConn.RecvReady {
		t.Fatalf("expected recv_ready cleared on EOF")
	}
}

// TestShortRecvClearsRecvReady verifies property 3: a short tcp_recv
// (k<n) clears recv_ready, while a full tcp_recv (k==n) leaves it set
// (spec.md §4.B, cc_nio.c:63-65).
func TestShortRecvClearsRecvReady(t *testing.T) {
	a, b, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(b)

	if err := unix.SetNonblock(a, true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}
	srv := Setup(ListenOptions{}, nil)
	conn := NewConn()
	conn.Sd = a
	conn.Free = false
	conn.State = Connected

	payload := []byte("hello")
	if _, err := unix.Write(b, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A full read (len(buf) == len(payload)) must leave recv_ready set.
	conn.RecvReady = true
	fullBuf := make([]byte, len(payload))
	waitUntil(t, time.Second, func() bool {
		n, st := srv.Recv(conn, fullBuf)
		return st == status.OK && n == len(payload)
	})
	if !conn.RecvReady {
		t.Fatalf("expected recv_ready to remain set after a full read")
	}

	if _, err := unix.Write(b, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A short read (requested buffer bigger than what arrived) must
	// clear recv_ready.
	conn.RecvReady = true
	shortBuf := make([]byte, len(payload)+16)
	waitUntil(t, time.Second, func() bool {
		n, st := srv.Recv(conn, shortBuf)
		return st == status.OK && n == len(payload)
	})
	if conn.RecvReady {
		t.Fatalf("expected recv_ready cleared after a short read")
	}
	unix.Close(a)
}

// TestShortSendClearsSendReady mirrors TestShortRecvClearsRecvReady for
// tcp_send's send_ready bookkeeping.
func TestShortSendClearsSendReady(t *testing.T) {
	a, b, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(a)
	defer unix.Close(b)

	if err := unix.SetNonblock(a, true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}
	if err := SetSndBuf(a, 4096); err != nil {
		t.Fatalf("SetSndBuf: %v", err)
	}

	srv := Setup(ListenOptions{}, nil)
	conn := NewConn()
	conn.Sd = a
	conn.Free = false
	conn.State = Connected
	conn.SendReady = true

	payload := []byte("hi")
	n, st := srv.Send(conn, payload)
	if st != status.OK || n != len(payload) {
		t.Fatalf("Send: n=%d st=%v", n, st)
	}
	if !conn.SendReady {
		t.Fatalf("expected send_ready to remain set after a full write")
	}

	// Force a short write: ask to send more than the socket can accept
	// in one call by oversizing the buffer relative to its rcv/snd
	// windows without draining the peer, using a tiny SNDBUF plus a
	// payload that exceeds it.
	huge := make([]byte, 1<<20)
	n, st = srv.Send(conn, huge)
	if st != status.OK {
		t.Fatalf("expected a short but successful write, got status %v", st)
	}
	if n >= len(huge) {
		t.Skip("kernel accepted the full oversized write; short-write condition not reproduced on this platform")
	}
	if conn.SendReady {
		t.Fatalf("expected send_ready cleared after a short write")
	}
}

// TestEINTRTransparentRetry verifies property 9: Recv/Send retry
// transparently on EINTR instead of surfacing it as status.Error
// (spec.md §4.B, §7; cc_nio.c:79-81).
func TestEINTRTransparentRetry(t *testing.T) {
	origRead := sysRead
	origWrite := sysWrite
	defer func() { sysRead = origRead; sysWrite = origWrite }()

	calls := 0
	sysRead = func(fd int, buf []byte) (int, error) {
		calls++
		if calls == 1 {
			return 0, unix.EINTR
		}
		return origRead(fd, buf)
	}

	a, b, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(a)
	defer unix.Close(b)
	if err := unix.SetNonblock(a, true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}

	payload := []byte("retry me")
	if _, err := unix.Write(b, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	srv := Setup(ListenOptions{}, nil)
	conn := NewConn()
	conn.Sd = a
	conn.Free = false
	conn.State = Connected

	buf := make([]byte, len(payload))
	n, st := srv.Recv(conn, buf)
	if st != status.OK {
		t.Fatalf("expected EINTR to be retried transparently, got status %v", st)
	}
	if n != len(payload) || string(buf[:n]) != string(payload) {
		t.Fatalf("got %q, want %q", buf[:n], payload)
	}
	if calls < 2 {
		t.Fatalf("expected sysRead to be called at least twice (EINTR then success), got %d", calls)
	}

	calls = 0
	sysWrite = func(fd int, buf []byte) (int, error) {
		calls++
		if calls == 1 {
			return 0, unix.EINTR
		}
		return origWrite(fd, buf)
	}
	n, st = srv.Send(conn, payload)
	if st != status.OK || n != len(payload) {
		t.Fatalf("Send after EINTR: n=%d st=%v", n, st)
	}
	if calls < 2 {
		t.Fatalf("expected sysWrite to be called at least twice (EINTR then success), got %d", calls)
	}
}

func TestSockoptHelpersRoundTrip(t *testing.T) {
	sd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer unix.Close(sd)

	if err := SetNonblocking(sd); err != nil {
		t.Fatalf("SetNonblocking: %v", err)
	}
	if err := SetReuseAddr(sd); err != nil {
		t.Fatalf("SetReuseAddr: %v", err)
	}
	if err := SetTCPNoDelay(sd); err != nil {
		t.Fatalf("SetTCPNoDelay: %v", err)
	}
	if err := SetKeepAlive(sd); err != nil {
		t.Fatalf("SetKeepAlive: %v", err)
	}
	if err := SetSndBuf(sd, 8192); err != nil {
		t.Fatalf("SetSndBuf: %v", err)
	}
	if got, err := GetSndBuf(sd); err != nil || got <= 0 {
		t.Fatalf("GetSndBuf: got %d, err %v", got, err)
	}
	if err := SetLinger(sd, 0); err != nil {
		t.Fatalf("SetLinger: %v", err)
	}
	if err := UnsetLinger(sd); err != nil {
		t.Fatalf("UnsetLinger: %v", err)
	}
	if _, err := GetSoError(sd); err != nil {
		t.Fatalf("GetSoError: %v", err)
	}
}
