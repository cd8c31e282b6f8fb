// Package netpoll provides a non-consuming readiness check on top of
// net.Conn, used everywhere this transport's spec calls for "poll for
// readability" before a recv/handshake step: wait_for_frame (spec §4.3),
// the handshake driver's 1-second poll slices (§4.6), and the async
// connect engine's progress check (§4.7.1).
//
// Go's net.Conn has no poll(2)-without-reading primitive, so this package
// drops to the raw file descriptor via syscall.Conn.SyscallConn and calls
// golang.org/x/sys/unix.Poll directly — the same "reach below net for a
// raw socket primitive" pattern this module uses for SO_ERROR and
// TCP_USER_TIMEOUT (see /DESIGN.md).
package netpoll

import (
	"errors"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ErrUnsupportedConn is returned when conn does not expose a raw file
// descriptor (e.g. it is not backed by a real socket).
var ErrUnsupportedConn = errors.New("netpoll: connection does not support raw fd polling")

// Readable polls conn's underlying socket for read-readiness, waiting at
// most timeout. A timeout <= 0 polls without blocking at all.
func Readable(conn net.Conn, timeout time.Duration) (bool, error) {
	return wait(conn, unix.POLLIN, timeout)
}

// Writable polls conn's underlying socket for write-readiness.
func Writable(conn net.Conn, timeout time.Duration) (bool, error) {
	return wait(conn, unix.POLLOUT, timeout)
}

func wait(conn net.Conn, events int16, timeout time.Duration) (bool, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return false, ErrUnsupportedConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, err
	}

	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout <= 0 {
		ms = 0
	}

	var ready bool
	var pollErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
		for {
			n, err := unix.Poll(fds, ms)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				pollErr = err
				return
			}
			ready = n > 0 && (fds[0].Revents&(events|unix.POLLHUP|unix.POLLERR) != 0)
			return
		}
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	return ready, pollErr
}
