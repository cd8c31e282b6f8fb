package remotenet

import (
	"context"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pacemaker-go/remotenet/internal/netpoll"
)

// ConnectCallback is delivered once an asynchronous connect resolves,
// successfully or not (spec §4.7's callback collaborator). err is non-nil
// exactly when conn is nil.
type ConnectCallback func(userData any, conn net.Conn, err error)

// ConnectAsync implements spec §4.7's connect_async: resolve host
// (address-family-agnostic), try each candidate address in order with a
// non-blocking connect, and deliver exactly one result to callback — either
// the first successfully connected net.Conn, or ErrNotConnected once every
// candidate has failed. The blocking work runs on a background goroutine;
// this is the Go-idiomatic substitute for the spec's "create a context,
// schedule the first progress check on the external timer" machinery, which
// has no analogue without an externally supplied event loop.
func ConnectAsync(ctx context.Context, host string, port int, timeout time.Duration, userData any, callback ConnectCallback) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	go func() {
		conn, err := dialAsync(ctx, host, port, timeout)
		callback(userData, conn, err)
	}()
}

// dialAsync resolves host and tries each resulting address in turn,
// matching §4.7 step 2's "iterate the result list in order" rule.
func dialAsync(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	start := time.Now()
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %w: resolving %q: %v", ErrNotConnected, ErrNameResolution, host, err)
	}

	var lastErr error
	for _, ip := range addrs {
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, ErrTimeout)
		}
		conn, err := connectOneAsync(ip.IP, port, remaining)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNotConnected
	}
	return nil, fmt.Errorf("%w: %w", ErrNotConnected, lastErr)
}

// connectOneAsync drives one candidate address through a non-blocking
// connect(2), polling for write-readiness at connectScheduler's fixed
// intervals and checking SO_ERROR once the socket is writable (spec
// §4.7.1). It owns the raw file descriptor for the lifetime of this call;
// on success, ownership transfers to the returned net.Conn.
func connectOneAsync(ip net.IP, port int, timeout time.Duration) (net.Conn, error) {
	domain := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := ip.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		domain = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: port}
		copy(sa6.Addr[:], ip.To16())
		sa = sa6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	start := time.Now()
	sched := newConnectScheduler(connectPollFast, connectPollSteady)

	connErr := unix.Connect(fd, sa)
	immediateSuccess := connErr == nil
	if connErr != nil && connErr != unix.EINPROGRESS && connErr != unix.EAGAIN {
		unix.Close(fd)
		return nil, connErr
	}

	file := os.NewFile(uintptr(fd), "")
	conn, cerr := net.FileConn(file)
	file.Close() // net.FileConn dup'd the fd; this copy is no longer needed
	if cerr != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, cerr)
	}

	if immediateSuccess {
		// Spec §4.7.1: a synchronous success still schedules the first
		// progress check at the fast interval before delivering the
		// callback; here that is simply a fixed short pause before the
		// connection is handed back, preserving the observable timing.
		time.Sleep(sched.interval(true))
		return conn, nil
	}

	for {
		elapsed := time.Since(start)
		if elapsed >= timeout {
			conn.Close()
			return nil, ErrTimeout
		}

		ready, perr := netpoll.Writable(conn, 0)
		if perr != nil {
			conn.Close()
			return nil, perr
		}
		if !ready {
			slice := sched.interval(false)
			if remaining := timeout - elapsed; remaining < slice {
				slice = remaining
			}
			time.Sleep(slice)
			continue
		}

		soErr, gerr := soError(conn)
		if gerr != nil {
			conn.Close()
			return nil, gerr
		}
		if soErr != 0 {
			conn.Close()
			return nil, unix.Errno(soErr)
		}
		return conn, nil
	}
}

// soError reads SO_ERROR off conn's underlying socket, the standard way to
// discover whether a non-blocking connect(2) actually succeeded once the fd
// reports writable.
func soError(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("%w: connection has no raw fd", ErrNotConnected)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var soErr int
	var getErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		soErr, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return soErr, getErr
}
