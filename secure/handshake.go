package secure

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pacemaker-go/remotenet/internal/netpoll"
)

// pollSlice is the granularity at which RunHandshake re-checks the
// deadline while waiting for the peer's next message, matching spec
// §4.6's "poll the session socket for readiness with a 1-second slice".
const pollSlice = 1 * time.Second

// maxHandshakeMessage bounds a single handshake message's on-wire length.
// Noise handshake messages for NN/NNpsk0 over Curve25519 are under 200
// bytes; this is a generous ceiling against a malicious or corrupt peer.
const maxHandshakeMessage = 4096

// writeHandshakeMessage frames msg with a 2-byte big-endian length prefix
// and writes it to conn. Noise handshake messages need explicit framing
// since, unlike TLS's record layer, Noise itself defines no message
// boundary on the wire.
func writeHandshakeMessage(conn net.Conn, msg []byte) error {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(msg)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(msg)
	return err
}

// readHandshakeMessage blocks (the caller has already confirmed
// readability) until one length-prefixed handshake message has been read
// in full.
func readHandshakeMessage(conn net.Conn) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if int(n) > maxHandshakeMessage {
		return nil, fmt.Errorf("%w: handshake message too large (%d bytes)", ErrHandshake, n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// RunHandshake drives h to completion over conn, blocking the calling
// goroutine. It mirrors spec §4.6's pump-under-deadline loop: each
// iteration either sends the next message (if it's this side's turn) or
// polls for readability in pollSlice increments before reading the next
// message, until deadline elapses.
//
// deadline <= 0 is treated as "no deadline" (blocks until completion or a
// non-recoverable error); otherwise the overall elapsed wall-clock time
// must stay under deadline, matching the C source's whole-second-rounding
// behavior: the C code computes (now-start) < deadline_ms/1000 using
// time_t (1-second resolution). This implementation checks against the
// full sub-second deadline for correctness but documents the original's
// granularity here per spec §9's "preserve or document" instruction: a
// deadline under 1 second may, on the original, round down to zero.
func RunHandshake(conn net.Conn, h *Handshake, deadline time.Duration) (*Transport, error) {
	start := time.Now()

	for {
		if h.isWriteStep() {
			msg, cs1, cs2, err := h.hs.WriteMessage(nil, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
			}
			if err := writeHandshakeMessage(conn, msg); err != nil {
				return nil, fmt.Errorf("%w: write: %v", ErrHandshake, err)
			}
			h.step++
			if cs1 != nil && cs2 != nil {
				return newTransport(conn, cs1, cs2, h.role), nil
			}
			continue
		}

		for {
			if deadline > 0 && time.Since(start) >= deadline {
				return nil, ErrTimeout
			}
			slice := pollSlice
			if deadline > 0 {
				if remaining := deadline - time.Since(start); remaining < slice {
					slice = remaining
				}
			}
			ready, err := netpoll.Readable(conn, slice)
			if err != nil {
				return nil, fmt.Errorf("%w: poll: %v", ErrHandshake, err)
			}
			if ready {
				break
			}
		}

		msg, err := readHandshakeMessage(conn)
		if err != nil {
			return nil, fmt.Errorf("%w: read: %v", ErrHandshake, err)
		}
		_, cs1, cs2, err := h.hs.ReadMessage(nil, msg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		h.step++
		if cs1 != nil && cs2 != nil {
			return newTransport(conn, cs1, cs2, h.role), nil
		}
	}
}

// ReadResult is the outcome of one event-driven StepServer call.
type ReadResult int

const (
	// ResultNeedMore means no complete message was available; call
	// again once the socket signals readability.
	ResultNeedMore ReadResult = iota
	// ResultDone means the handshake completed on this call.
	ResultDone
)

// StepServer pumps the handshake exactly once without blocking: it
// performs at most one write (if it is this side's turn) or one
// non-blocking read attempt, returning ResultNeedMore if no message is yet
// available. This is the event-driven counterpart to RunHandshake, for
// servers integrated into an external event loop (spec §4.6,
// "read_handshake_data ... to be re-entered when the socket signals
// readability").
func StepServer(conn net.Conn, h *Handshake) (ReadResult, *Transport, error) {
	if h.isWriteStep() {
		msg, cs1, cs2, err := h.hs.WriteMessage(nil, nil)
		if err != nil {
			return ResultNeedMore, nil, fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		if err := writeHandshakeMessage(conn, msg); err != nil {
			return ResultNeedMore, nil, fmt.Errorf("%w: write: %v", ErrHandshake, err)
		}
		h.step++
		if cs1 != nil && cs2 != nil {
			return ResultDone, newTransport(conn, cs1, cs2, h.role), nil
		}
		return StepServer(conn, h)
	}

	ready, err := netpoll.Readable(conn, 0)
	if err != nil {
		return ResultNeedMore, nil, fmt.Errorf("%w: poll: %v", ErrHandshake, err)
	}
	if !ready {
		return ResultNeedMore, nil, nil
	}

	msg, err := readHandshakeMessage(conn)
	if err != nil {
		return ResultNeedMore, nil, fmt.Errorf("%w: read: %v", ErrHandshake, err)
	}
	_, cs1, cs2, err := h.hs.ReadMessage(nil, msg)
	if err != nil {
		return ResultNeedMore, nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	h.step++
	if cs1 != nil && cs2 != nil {
		return ResultDone, newTransport(conn, cs1, cs2, h.role), nil
	}
	return ResultNeedMore, nil, nil
}
