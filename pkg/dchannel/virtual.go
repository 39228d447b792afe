package dchannel

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Write/Read on a closed Virtual framer.
var ErrClosed = errors.New("dchannel: virtual framer closed")

// Virtual is an in-memory Framer that stands in for a real D-channel
// device. Frames written on one side of
// a pair appear, whole, on the other side's Read.
type Virtual struct {
	mu     sync.Mutex
	peer   *Virtual
	inbox  chan []byte
	closed bool
}

// NewVirtualPair creates two Virtual framers wired to each other, the
// direct analog of the teacher's NewVirtualCanBus loopback pair.
func NewVirtualPair() (a, b *Virtual) {
	a = &Virtual{inbox: make(chan []byte, 32)}
	b = &Virtual{inbox: make(chan []byte, 32)}
	a.peer = b
	b.peer = a
	return a, b
}

func (v *Virtual) Write(p []byte) error {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return ErrClosed
	}
	cp := append([]byte(nil), p...)
	select {
	case v.peer.inbox <- cp:
		return nil
	default:
		return errors.New("dchannel: virtual peer inbox full")
	}
}

// Read returns the next queued frame without blocking. It returns
// (0, nil) if none is pending, matching the non-blocking contract
// check_event() relies on.
func (v *Virtual) Read(buf []byte) (int, error) {
	select {
	case frame, ok := <-v.inbox:
		if !ok {
			return 0, ErrClosed
		}
		n := copy(buf, frame)
		return n, nil
	default:
		return 0, nil
	}
}

// Fd reports no real descriptor; callers must poll Read directly
// instead of select()-ing on it.
func (v *Virtual) Fd() int {
	return -1
}

func (v *Virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	close(v.inbox)
	return nil
}
