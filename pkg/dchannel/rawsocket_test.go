package dchannel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newSocketPair gives RawSocket a real non-blocking-capable descriptor
// to wrap without needing an actual D-channel device, the way the
// teacher's socketcanv2 tests exercise Bus.Read/Write over a loopback
// interface instead of real CAN hardware.
func newSocketPair(t *testing.T) (send int, recv int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestRawSocketReadDiscardsTrailingFCS(t *testing.T) {
	send, recv := newSocketPair(t)

	sock, err := OpenRawSocket(recv)
	require.NoError(t, err)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	onWire := append(append([]byte(nil), payload...), 0xAA, 0xBB) // trailing FCS
	_, err = unix.Write(send, onWire)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := sock.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
}

func TestRawSocketReadRejectsFrameShorterThanFCS(t *testing.T) {
	send, recv := newSocketPair(t)

	sock, err := OpenRawSocket(recv)
	require.NoError(t, err)

	_, err = unix.Write(send, []byte{0x01})
	require.NoError(t, err)

	buf := make([]byte, 16)
	_, err = sock.Read(buf)
	require.Error(t, err)
}
