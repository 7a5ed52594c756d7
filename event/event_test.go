package event

import "testing"

// fakeBackend lets us test Base's dispatch/translation contract without
// a real kernel readiness object, independent of platform.
type fakeBackend struct {
	addCalls  []int
	addDirs   [][2]bool // {read, write} per add() call
	delCalls  []int
	waitCalls int

	// script is consumed one entry per wait() call.
	script []waitStep
}

type waitStep struct {
	events []ready
	err    error
}

func (f *fakeBackend) add(fd int, data interface{}, read, write bool) error {
	f.addCalls = append(f.addCalls, fd)
	f.addDirs = append(f.addDirs, [2]bool{read, write})
	return nil
}

func (f *fakeBackend) del(fd int) error {
	f.delCalls = append(f.delCalls, fd)
	return nil
}

func (f *fakeBackend) wait(timeoutMs int, out []ready) (int, error) {
	step := f.script[f.waitCalls]
	f.waitCalls++
	if step.err != nil {
		return 0, step.err
	}
	n := copy(out, step.events)
	return n, nil
}

func (f *fakeBackend) close() error { return nil }

func TestWaitDispatchesOncePerReadyDescriptor(t *testing.T) {
	var dispatched []Mask
	cb := func(data interface{}, mask Mask) {
		dispatched = append(dispatched, mask)
	}

	fb := &fakeBackend{script: []waitStep{
		{events: []ready{{data: "a", mask: Read}, {data: "b", mask: Write | Err}}},
	}}
	b := &Base{cb: cb, be: fb, buf: make([]ready, 4)}

	n := b.Wait(100)
	if n != 2 {
		t.Fatalf("expected 2 dispatches, got %d", n)
	}
	if len(dispatched) != 2 || dispatched[0] != Read || dispatched[1] != (Write|Err) {
		t.Fatalf("unexpected dispatch sequence: %v", dispatched)
	}
}

func TestWaitReturnsZeroOnOrdinaryTimeout(t *testing.T) {
	fb := &fakeBackend{script: []waitStep{{events: nil}}}
	b := &Base{cb: func(interface{}, Mask) {}, be: fb, buf: make([]ready, 4)}

	if n := b.Wait(10); n != 0 {
		t.Fatalf("expected 0 on timeout, got %d", n)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	fb := &fakeBackend{}
	b := &Base{cb: func(interface{}, Mask) {}, be: fb}

	b.Destroy()
	b.Destroy() // must not panic

	var nilBase *Base
	nilBase.Destroy() // must not panic
}

func TestRegisterAddsBothDirections(t *testing.T) {
	fb := &fakeBackend{}
	b := &Base{cb: func(interface{}, Mask) {}, be: fb}

	if err := b.Register(7, "x"); err != nil {
		t.Fatal(err)
	}
	if len(fb.addCalls) != 1 || fb.addCalls[0] != 7 {
		t.Fatalf("expected a single add() call for fd 7, got %v", fb.addCalls)
	}
	if fb.addDirs[0] != [2]bool{true, true} {
		t.Fatalf("expected add() for both read and write, got %v", fb.addDirs[0])
	}
}

func TestOperationsOnClosedBaseReturnErrClosed(t *testing.T) {
	b := &Base{cb: func(interface{}, Mask) {}}
	b.Destroy() // be is already nil

	if err := b.AddRead(1, nil); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := b.Deregister(1); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if n := b.Wait(0); n != -1 {
		t.Fatalf("expected -1 from Wait on closed base, got %d", n)
	}
}
