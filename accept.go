package remotenet

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// WatchdogTimeoutFunc is the spec's get_sbd_timeout() collaborator: it
// returns the configured external watchdog timeout, or 0 if none is
// configured. AcceptConnection halves it and applies the result as
// TCP_USER_TIMEOUT so TCP retransmit exhaustion is detected well before the
// watchdog would fire (spec §4.8).
type WatchdogTimeoutFunc func() time.Duration

// AcceptConnection implements spec §4.8: accept one connection off ln, set
// the new socket non-blocking (already true for anything returned by
// net.Listener.Accept, since Go's runtime-integrated netpoller is
// non-blocking internally — the explicit step is TCP_USER_TIMEOUT), and
// apply TCP_USER_TIMEOUT when getWatchdogTimeout is non-nil and reports a
// positive value.
func AcceptConnection(ln net.Listener, log *LoggerFunc, getWatchdogTimeout WatchdogTimeoutFunc) (net.Conn, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("%w: accept: %v", ErrDisconnected, err)
	}
	if log != nil {
		(*log)("accepted connection from %s", conn.RemoteAddr())
	}

	if getWatchdogTimeout != nil {
		if wd := getWatchdogTimeout(); wd > 0 {
			if err := setTCPUserTimeout(conn, wd/2); err != nil {
				if log != nil {
					(*log)("TCP_USER_TIMEOUT not applied: %v", err)
				}
			}
		}
	}

	return conn, nil
}

// LoggerFunc is a minimal printf-shaped logging hook, letting AcceptConnection
// avoid depending on internal/logctx's concrete type in its signature.
type LoggerFunc func(format string, args ...any)

// setTCPUserTimeout applies TCP_USER_TIMEOUT (milliseconds) to conn's
// underlying socket via golang.org/x/sys/unix, since the standard library's
// net package exposes no portable way to set this option.
func setTCPUserTimeout(conn net.Conn, d time.Duration) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return fmt.Errorf("connection has no raw fd")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(d/time.Millisecond))
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return setErr
}
