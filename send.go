package remotenet

import "fmt"

// SendMessage implements spec §4.4's send_message: serialize tree via the
// session's codec, build the frame header (monotonic per-session id, no
// compression in v1), and gather-write header+payload through sendBytes.
func (s *Session) SendMessage(tree any) error {
	payload, err := s.codec.Marshal(tree)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrParse, err)
	}

	id := s.sendID.Add(1)
	h := Header{
		Endian:              LocalMagic,
		Version:             ProtocolVersion,
		ID:                  id,
		Flags:               0,
		SizeTotal:           uint32(HeaderSize) + uint32(len(payload)),
		PayloadOffset:       uint32(HeaderSize),
		PayloadCompressed:   0,
		PayloadUncompressed: uint32(len(payload)),
	}

	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, h.Encode()...)
	frame = append(frame, payload...)

	_, err = s.sendBytes(frame)
	if err == nil && s.metrics != nil {
		s.metrics.IncrementMessagesSent()
		s.metrics.IncrementBytesSent(int64(len(frame)))
	}
	return err
}
