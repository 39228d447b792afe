package dchannel

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RawSocket wraps an already-open D-channel device descriptor (a
// DAHDI or mISDN character device, opened by the caller) in
// non-blocking mode. It is grounded on the teacher's socketcanv2 Bus:
// a raw fd, unix.Read/unix.Write, EAGAIN treated as "nothing pending"
// rather than an error.
type RawSocket struct {
	f  *os.File
	fd int
}

// OpenRawSocket puts fd into non-blocking mode and wraps it. The
// caller retains ownership of closing fd via Close.
func OpenRawSocket(fd int) (*RawSocket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("dchannel: set nonblocking: %w", err)
	}
	return &RawSocket{
		f:  os.NewFile(uintptr(fd), fmt.Sprintf("dchannel-fd-%d", fd)),
		fd: fd,
	}, nil
}

func (r *RawSocket) Write(p []byte) error {
	n, err := unix.Write(r.fd, p)
	if err != nil {
		return fmt.Errorf("dchannel: write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("dchannel: short write (%d of %d bytes)", n, len(p))
	}
	return nil
}

// fcsLen is the trailing FCS octet count a real D-channel device
// includes in the byte count of every frame it delivers (§6); the
// device's HDLC layer only strips the flag/bit-stuffing framing, not
// the checksum itself, matching q921_receive's len -= 2.
const fcsLen = 2

func (r *RawSocket) Read(buf []byte) (int, error) {
	n, err := unix.Read(r.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("dchannel: read: %w", err)
	}
	if n < fcsLen {
		return 0, fmt.Errorf("dchannel: read: frame too short (%d bytes)", n)
	}
	return n - fcsLen, nil
}

func (r *RawSocket) Fd() int {
	return r.fd
}

func (r *RawSocket) Close() error {
	if err := r.f.Close(); err != nil {
		log.Warnf("[DCHANNEL] close fd %d: %v", r.fd, err)
		return err
	}
	return nil
}
