package remotenet

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pacemaker-go/remotenet/internal/netpoll"
	"github.com/pacemaker-go/remotenet/secure"
)

// sendBytes writes data to the session's active transport mode (plaintext
// socket or secure.Transport), looping on partial writes exactly as the
// teacher's Conn.flush retries a partial net.Conn.Write (spec §4.2
// send_bytes). A nil payload is rejected up front, matching the C source's
// EINVAL-on-null-buffer check.
func (s *Session) sendBytes(data []byte) (int, error) {
	if data == nil {
		return 0, ErrInvalidArgument
	}
	if s.sec != nil {
		n, err := s.sec.Send(data)
		if err != nil {
			return n, translateSecureErr(err)
		}
		return n, nil
	}

	total := len(data)
	for len(data) > 0 {
		n, err := s.conn.Write(data)
		if err != nil {
			return total - len(data), fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		data = data[n:]
	}
	return total, nil
}

// recvNonblocking performs at most one non-consuming readiness check
// followed by at most one read, appending whatever bytes arrived to the
// session's receive buffer and growing it first if needed (spec §4.2). It
// never blocks: a not-yet-ready socket returns (0, ErrWouldBlock).
func (s *Session) recvNonblocking() (int, error) {
	ready, err := netpoll.Readable(s.conn, 0)
	if err != nil && !errors.Is(err, netpoll.ErrUnsupportedConn) {
		return 0, fmt.Errorf("%w: poll: %v", ErrDisconnected, err)
	}
	if err == nil && !ready {
		return 0, ErrWouldBlock
	}

	if h, ok, herr := readHeader(s.buf[:s.bufOff]); herr == nil && ok && int(h.SizeTotal) > s.bufCap() {
		s.ensureCapacity(int(h.SizeTotal))
	}
	s.ensureCapacity(s.bufOff + readChunkSize)

	if s.sec != nil {
		// No read deadline: readiness was confirmed above, so the one
		// Read inside Recv returns whatever is available without blocking.
		grown, ok, serr := s.sec.Recv(s.buf[:s.bufOff], time.Time{})
		if serr != nil {
			return 0, translateSecureErr(serr)
		}
		n := len(grown) - s.bufOff
		s.buf = append(grown, 0)
		s.bufOff = len(grown)
		if !ok {
			return 0, ErrWouldBlock
		}
		return n, nil
	}

	n, rerr := s.conn.Read(s.buf[s.bufOff : s.bufCap()])
	if n > 0 {
		s.bufOff += n
		s.buf[s.bufOff] = 0
	}
	if rerr != nil {
		if rerr == io.EOF {
			return n, ErrDisconnected
		}
		if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
			return n, ErrWouldBlock
		}
		return n, fmt.Errorf("%w: %v", ErrDisconnected, rerr)
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return n, nil
}

// readChunkSize is the minimum growth increment recvNonblocking guarantees
// before attempting a read, avoiding a 1-byte-at-a-time ensureCapacity churn
// for sessions that haven't yet seen a frame header telling them how large
// to grow (spec §4.2's 2×size_total+1 rule only applies once size_total is
// known from a parsed header).
const readChunkSize = 4096

// translateSecureErr maps the secure package's package-scoped sentinels
// (defined separately to avoid an import cycle, see secure/secure.go) onto
// this package's own error taxonomy.
func translateSecureErr(err error) error {
	switch {
	case errors.Is(err, secure.ErrTimeout):
		return ErrTimeout
	case errors.Is(err, secure.ErrDisconnected):
		return ErrDisconnected
	case errors.Is(err, secure.ErrInvalidArgument):
		return ErrInvalidArgument
	default:
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
}
