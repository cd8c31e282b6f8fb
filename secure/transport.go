package secure

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/flynn/noise"
)

// sealOverhead is the per-record cost of Noise's AES-GCM tag plus this
// package's 4-byte length prefix, mirroring the teacher's NoiseOverhead
// constant in crypto.go.
const sealOverhead = 4 + 16

// Transport is a completed secure session: every byte handed to Send is
// sealed as one length-prefixed AEAD record before hitting the wire, and
// Recv reassembles and opens records from whatever raw bytes arrive,
// exactly mirroring the teacher's SealData/UnsealData pair in crypto.go
// (itself now used for arbitrary frame bytes rather than a fixed message
// type enum).
type Transport struct {
	conn        net.Conn
	sendCipher  *noise.CipherState
	recvCipher  *noise.CipherState
	recvPending bytes.Buffer // raw bytes read but not yet fully unsealed
}

func newTransport(conn net.Conn, cs1, cs2 *noise.CipherState, role Role) *Transport {
	t := &Transport{conn: conn}
	if role == RoleClient {
		t.sendCipher, t.recvCipher = cs1, cs2
	} else {
		t.sendCipher, t.recvCipher = cs2, cs1
	}
	return t
}

// Close ends the secure session. It holds nothing that needs releasing and
// does not close the underlying connection: per DESIGN.md's "session
// exclusively owns transport" decision the caller (remotenet.Session) calls
// this before closing its own socket handle, not the reverse.
func (t *Transport) Close() error { return nil }

// Send seals data as one AEAD record and writes it to the wire, looping
// until every byte is written or a fatal error occurs (spec §4.2
// send_bytes). On success it returns len(data), the plaintext byte count,
// not the sealed record's length. Returns ErrInvalidArgument for a nil
// payload, mirroring the plaintext path's same check.
func (t *Transport) Send(data []byte) (int, error) {
	if data == nil {
		return 0, ErrInvalidArgument
	}

	sealed, err := t.sendCipher.Encrypt(nil, nil, data)
	if err != nil {
		return 0, fmt.Errorf("%w: seal: %v", ErrHandshake, err)
	}

	record := make([]byte, 4+len(sealed))
	binary.BigEndian.PutUint32(record[:4], uint32(len(sealed)))
	copy(record[4:], sealed)

	for len(record) > 0 {
		n, werr := t.conn.Write(record)
		if werr != nil {
			return 0, fmt.Errorf("%w: %v", ErrConnectionAborted, werr)
		}
		record = record[n:]
	}
	return len(data), nil
}

// Recv reads whatever raw bytes are currently available (non-blocking: the
// caller is expected to have already confirmed readability, as
// transport.go's recvNonblocking does for the plaintext path) and returns
// any newly decrypted plaintext appended to dst. It returns
// (dst, false, nil) if a read would need to block for more data to
// complete the next record, and (dst, true, nil) once at least one record
// was opened.
func (t *Transport) Recv(dst []byte, deadline time.Time) ([]byte, bool, error) {
	_ = t.conn.SetReadDeadline(deadline)
	var chunk [4096]byte
	n, err := t.conn.Read(chunk[:])
	if n > 0 {
		t.recvPending.Write(chunk[:n])
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// fall through to attempt unsealing whatever is pending
		} else if err == io.EOF {
			return dst, false, ErrDisconnected
		} else {
			return dst, false, fmt.Errorf("%w: %v", ErrConnectionAborted, err)
		}
	}

	opened := false
	for {
		raw := t.recvPending.Bytes()
		if len(raw) < 4 {
			break
		}
		recLen := int(binary.BigEndian.Uint32(raw[:4]))
		if len(raw) < 4+recLen {
			break
		}
		plaintext, derr := t.recvCipher.Decrypt(nil, nil, raw[4:4+recLen])
		if derr != nil {
			return dst, opened, fmt.Errorf("%w: unseal: %v", ErrConnectionAborted, derr)
		}
		dst = append(dst, plaintext...)
		t.recvPending.Next(4 + recLen)
		opened = true
	}
	return dst, opened, nil
}
