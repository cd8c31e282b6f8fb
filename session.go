package remotenet

import (
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pacemaker-go/remotenet/internal/logctx"
	"github.com/pacemaker-go/remotenet/secure"
)

// Codec is the tree-shaped-message serializer/parser this package treats as
// an external collaborator (spec §1, "out of scope"). Marshal must return a
// NUL-terminated byte string whose length includes the trailing NUL;
// Unmarshal receives that same NUL-terminated slice back. A nil, nil return
// from Unmarshal is the "absent" outcome the spec uses for forward-compat
// skips and unparseable payloads.
type Codec interface {
	Marshal(tree any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// Session is the stateful handle for one peer connection (spec §3). Exactly
// one of its transport modes is active for the session's lifetime: a plain
// net.Conn, or the same net.Conn wrapped in a secure.Transport.
type Session struct {
	id   string
	conn net.Conn
	sec  *secure.Transport // nil in plaintext mode

	codec Codec
	log   *logctx.Logger

	buf    []byte // capacity buf_cap+1; buf_off tracks the fill watermark
	bufOff int

	sendID  atomic.Uint64
	metrics Metrics
}

const initialBufCap = 4096

// newSession wraps conn (and, when sec is non-nil, a completed secure
// session bound to it) into a Session ready for SendMessage/ReceiveMessage.
func newSession(conn net.Conn, sec *secure.Transport, codec Codec, log *logctx.Logger) *Session {
	if log == nil {
		log = logctx.Default()
	}
	return &Session{
		id:    uuid.New().String(),
		conn:  conn,
		sec:   sec,
		codec: codec,
		log:   log,
		buf:   make([]byte, initialBufCap+1),
	}
}

// withMetrics attaches m (which may be nil) so SendMessage/extractMessage
// can report traffic counts; called by the Dial/Listen constructors from
// their resolved Config.
func (s *Session) withMetrics(m Metrics) *Session {
	s.metrics = m
	return s
}

// ID returns the session's process-local identifier, for callers' log lines
// and session tables (this package does not log it itself). It is
// independent of the wire-level Header.ID
// counter (see DESIGN.md "per-session send id" open-question decision).
func (s *Session) ID() string { return s.id }

// LocalAddr and RemoteAddr expose the underlying socket addresses.
func (s *Session) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Close tears down the secure session (if any) then the socket, per
// DESIGN.md's "session exclusively owns transport; destroy order is session
// then socket" decision.
func (s *Session) Close() error {
	if s.sec != nil {
		_ = s.sec.Close()
	}
	return s.conn.Close()
}

// bufCap returns the usable capacity (excluding the trailing NUL sentinel
// slot), matching the C source's buffer_size.
func (s *Session) bufCap() int { return len(s.buf) - 1 }

// ensureCapacity grows buf in place to at least 2*want+1 bytes when the
// current capacity is smaller than want, preserving the filled prefix. This
// realizes the spec's "reallocated to 2 x size_total + 1" rule (§4.2).
func (s *Session) ensureCapacity(want int) {
	if s.bufCap() >= want {
		return
	}
	newCap := 2 * want
	grown := make([]byte, newCap+1)
	copy(grown, s.buf[:s.bufOff])
	s.buf = grown
}

// resetBuffer discards the current frame, returning the session to an
// empty receive buffer (spec §4.3, "single-frame-at-a-time consumption").
func (s *Session) resetBuffer() {
	s.bufOff = 0
	s.buf[0] = 0
}
