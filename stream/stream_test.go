//go:build unix

package stream

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/xtaci/ccommon/channel/tcp"
	"github.com/xtaci/ccommon/status"
)

// pipePair returns two *tcp.Conn wrapping a connected AF_UNIX socket
// pair, standing in for two ends of a TCP connection the way
// other_examples' syscall.Socketpair-based tests do, without depending
// on a real network stack.
func pipePair(t *testing.T) (a, b *tcp.Conn, transport *tcp.Transport) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("set nonblock: %v", err)
		}
	}

	ca := tcp.NewConn()
	ca.Sd = fds[0]
	ca.Free = false
	cb := tcp.NewConn()
	cb.Sd = fds[1]
	cb.Free = false

	transport = tcp.Setup(tcp.ListenOptions{}, nil)
	t.Cleanup(func() {
		transport.Close(ca)
		transport.Close(cb)
	})
	return ca, cb, transport
}

func newTestStream(t *testing.T, transport *tcp.Transport, conn *tcp.Conn) *Stream {
	t.Helper()
	bufPool := NewBufPool(0, 64)
	s, err := New(transport, conn, nil, bufPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Destroy(bufPool) })
	return s
}

// TestEchoOneByte implements scenario S2: write one byte into A's wbuf,
// Read on B's stream should surface it with status OK.
func TestEchoOneByte(t *testing.T) {
	a, b, transport := pipePair(t)
	sa := newTestStream(t, transport, a)
	sb := newTestStream(t, transport, b)

	sa.WBuf.WriteSlice()[0] = 'x'
	sa.WBuf.AdvanceWPos(1)

	if st := sa.Write(64); st != status.OK {
		t.Fatalf("Write: got %v, want OK", st)
	}

	if st := sb.Read(64); st != status.OK {
		t.Fatalf("Read: got %v, want OK", st)
	}
	if sb.RBuf.ReadableSize() != 1 {
		t.Fatalf("expected 1 byte readable, got %d", sb.RBuf.ReadableSize())
	}
	if sb.RBuf.ReadSlice()[0] != 'x' {
		t.Fatalf("unexpected byte %q", sb.RBuf.ReadSlice()[0])
	}
}

// TestPartialSendReturnsERetry implements scenario S3: shrink SNDBUF so
// a single send may drain only part of wbuf; Write must report ERetry
// when it did (OK when the kernel took the whole payload) and advance
// rpos by exactly what the peer received.
func TestPartialSendReturnsERetry(t *testing.T) {
	a, b, transport := pipePair(t)
	_ = b

	if err := tcp.SetSndBuf(a.Sd, 1024); err != nil {
		t.Fatalf("SetSndBuf: %v", err)
	}

	bufPool := NewBufPool(0, 4096)
	sa, err := New(transport, a, nil, bufPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sa.Destroy(bufPool) })

	payload := make([]byte, 4000)
	copy(sa.WBuf.WriteSlice(), payload)
	sa.WBuf.AdvanceWPos(len(payload))

	st := sa.Write(len(payload))
	if st != status.ERetry && st != status.OK {
		t.Fatalf("Write: got %v, want ERetry or OK (kernel-dependent partial send)", st)
	}
	if sa.WBuf.RPos() == 0 {
		t.Fatalf("expected rpos to advance past at least some bytes")
	}
	if (st == status.ERetry) != (sa.WBuf.RPos() < len(payload)) {
		t.Fatalf("Write: status %v does not match rpos %d of %d", st, sa.WBuf.RPos(), len(payload))
	}

	received := 0
	peer := make([]byte, 8192)
	for {
		n, err := unix.Read(b.Sd, peer)
		if err != nil || n <= 0 {
			break
		}
		received += n
	}
	if sa.WBuf.RPos() != received {
		t.Fatalf("rpos advanced by %d, peer received %d", sa.WBuf.RPos(), received)
	}
}

// TestReadERdhupOnPeerClose implements scenario S5: after the peer
// closes having sent a few bytes, Read first drains them with OK, then
// the next Read reports ERdhup.
func TestReadERdhupOnPeerClose(t *testing.T) {
	a, b, transport := pipePair(t)

	sb := newTestStream(t, transport, b)

	if _, err := unix.Write(a.Sd, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	unix.Close(a.Sd)
	a.Sd = -1

	if st := sb.Read(64); st != status.OK {
		t.Fatalf("first Read: got %v, want OK", st)
	}
	if sb.RBuf.ReadableSize() != 3 {
		t.Fatalf("expected 3 bytes readable, got %d", sb.RBuf.ReadableSize())
	}

	if st := sb.Read(64); st != status.ERdhup {
		t.Fatalf("second Read: got %v, want ERdhup", st)
	}
	if b.State != tcp.EOF {
		t.Fatalf("expected conn state EOF, got %v", b.State)
	}
}

// TestWriteEmptyShortCircuits implements the spec's "empty-write
// short-circuit" edge case: Write on a stream with nothing in wbuf
// returns EEmpty without touching the socket.
func TestWriteEmptyShortCircuits(t *testing.T) {
	a, _, transport := pipePair(t)
	sa := newTestStream(t, transport, a)

	if st := sa.Write(64); st != status.EEmpty {
		t.Fatalf("Write: got %v, want EEmpty", st)
	}
}

// TestReadReportsENoMemWhenRequestExceedsWritable covers stream_read
// step 2's bounds check.
func TestReadReportsENoMemWhenRequestExceedsWritable(t *testing.T) {
	a, _, transport := pipePair(t)
	bufPool := NewBufPool(0, 8)
	sa, err := New(transport, a, nil, bufPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sa.Destroy(bufPool) })

	if st := sa.Read(9); st != status.ENoMem {
		t.Fatalf("Read: got %v, want ENoMem", st)
	}
}

// TestDestroyRejectsNonNilScratch covers stream_destroy's precondition.
func TestDestroyRejectsNonNilScratch(t *testing.T) {
	a, _, transport := pipePair(t)
	bufPool := NewBufPool(0, 64)
	sa, err := New(transport, a, nil, bufPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sa.Data = "scratch"

	if err := sa.Destroy(bufPool); err != ErrHasScratch {
		t.Fatalf("Destroy: got %v, want ErrHasScratch", err)
	}
	sa.Data = nil
	if err := sa.Destroy(bufPool); err != nil {
		t.Fatalf("Destroy after clearing scratch: %v", err)
	}
}

// TestHooksFireInOrder exercises pre/post read and write hooks.
func TestHooksFireInOrder(t *testing.T) {
	a, b, transport := pipePair(t)

	var events []string
	h := &Handler{
		PreRead:   func(s *Stream, n int) { events = append(events, "pre_read") },
		PostRead:  func(s *Stream, k int) { events = append(events, "post_read") },
		PreWrite:  func(s *Stream, n int) { events = append(events, "pre_write") },
		PostWrite: func(s *Stream, k int) { events = append(events, "post_write") },
	}

	bufPool := NewBufPool(0, 64)
	sa, err := New(transport, a, h, bufPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sa.Destroy(bufPool) })
	sb, err := New(transport, b, h, bufPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sb.Destroy(bufPool) })

	sa.WBuf.WriteSlice()[0] = 'z'
	sa.WBuf.AdvanceWPos(1)
	sa.Write(64)
	sb.Read(64)

	want := []string{"pre_write", "post_write", "pre_read", "post_read"}
	if len(events) != len(want) {
		t.Fatalf("got events %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("got events %v, want %v", events, want)
		}
	}
}
