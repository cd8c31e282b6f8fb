package remotenet

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"time"

	"github.com/pacemaker-go/remotenet/internal/netpoll"
)

// waitForFrame blocks (cooperatively, via netpoll polling) until a complete
// frame has arrived, totalTimeout elapses, or the peer disconnects (spec
// §4.3). A zero totalTimeout substitutes DefaultWaitTimeout; a negative one
// substitutes DefaultWaitTimeoutNegative.
func (s *Session) waitForFrame(totalTimeout time.Duration) (ok bool, disconnected bool, err error) {
	if totalTimeout == 0 {
		totalTimeout = DefaultWaitTimeout
	} else if totalTimeout < 0 {
		totalTimeout = DefaultWaitTimeoutNegative
	}

	start := time.Now()
	for {
		remaining := totalTimeout - time.Since(start)
		if remaining <= 0 {
			return false, false, nil
		}

		ready, perr := netpoll.Readable(s.conn, remaining)
		if perr != nil {
			s.log.Warn("wait_for_frame: poll error: %v", perr)
			continue
		}
		if !ready {
			return false, false, nil
		}

		_, rerr := s.recvNonblocking()
		switch {
		case rerr == nil:
			if s.frameReady() {
				return true, false, nil
			}
		case rerr == ErrWouldBlock:
			// keep looping; budget is recomputed above
		case rerr == ErrDisconnected:
			return false, true, nil
		default:
			return false, false, rerr
		}
	}
}

// frameReady reports whether the session's receive buffer currently holds a
// complete header plus its full advertised payload.
func (s *Session) frameReady() bool {
	h, ok, err := readHeader(s.buf[:s.bufOff])
	if err != nil || !ok {
		return false
	}
	return uint32(s.bufOff) >= h.SizeTotal
}

// extractMessage implements spec §4.3's extract_message: it assumes
// frameReady() is true, decompresses the payload if advertised, hands the
// plaintext payload to codec.Unmarshal, and resets the receive buffer for
// the next frame (single-frame-at-a-time consumption).
func (s *Session) extractMessage() (any, error) {
	h, ok, err := readHeader(s.buf[:s.bufOff])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: extract_message called without a complete header", ErrInvalidFrame)
	}

	payload := s.buf[h.PayloadOffset:s.bufOff]

	if h.PayloadCompressed > 0 {
		decompressed := make([]byte, h.PayloadUncompressed)
		r := bzip2.NewReader(bytes.NewReader(payload[:h.PayloadCompressed]))
		n, derr := io.ReadFull(r, decompressed)
		if derr != nil || uint32(n) != h.PayloadUncompressed {
			if h.Version > ProtocolVersion {
				s.log.Warn("extract_message: decompression failed on version %d frame, skipping", h.Version)
				s.resetBuffer()
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrDecompression, derr)
		}
		payload = decompressed
	}

	tree, perr := s.codec.Unmarshal(payload)
	s.resetBuffer()
	if perr != nil {
		if h.Version > ProtocolVersion {
			s.log.Warn("extract_message: parse failed on version %d frame, skipping", h.Version)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, perr)
	}
	if tree == nil && h.Version > ProtocolVersion {
		s.log.Warn("extract_message: parser returned nothing for version %d frame, skipping", h.Version)
		return nil, nil
	}
	if s.metrics != nil {
		s.metrics.IncrementMessagesReceived()
		s.metrics.IncrementBytesReceived(int64(h.SizeTotal))
	}
	return tree, nil
}

// ReceiveMessage is the public entry point combining waitForFrame and
// extractMessage: it blocks up to totalTimeout for one complete frame and
// returns the decoded tree, or an error/Disconnected as appropriate. A frame
// that an earlier read already buffered is returned without waiting.
func (s *Session) ReceiveMessage(totalTimeout time.Duration) (any, error) {
	if !s.frameReady() {
		ok, disconnected, err := s.waitForFrame(totalTimeout)
		if err != nil {
			return nil, err
		}
		if disconnected {
			return nil, ErrDisconnected
		}
		if !ok {
			return nil, ErrTimeout
		}
	}
	// Bytes past this frame's SizeTotal belong to the following frame(s):
	// hold them aside while extractMessage consumes and resets the buffer,
	// then put them back for the next call.
	h, _, _ := readHeader(s.buf[:s.bufOff])
	rest := append([]byte(nil), s.buf[h.SizeTotal:s.bufOff]...)
	s.bufOff = int(h.SizeTotal)
	tree, err := s.extractMessage()
	s.bufOff = copy(s.buf, rest)
	s.buf[s.bufOff] = 0
	return tree, err
}
