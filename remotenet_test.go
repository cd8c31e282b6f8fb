package remotenet

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/pacemaker-go/remotenet/internal/logctx"
)

// jsonCodec is a minimal Codec used across this package's tests: it
// marshals/unmarshals a map[string]any tree as NUL-terminated JSON, matching
// the wire contract's "payload ends in 0x00" invariant.
type jsonCodec struct{}

func (jsonCodec) Marshal(tree any) ([]byte, error) {
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	return append(b, 0), nil
}

func (jsonCodec) Unmarshal(data []byte) (any, error) {
	data = bytes.TrimRight(data, "\x00")
	if len(data) == 0 {
		return nil, errors.New("jsonCodec: empty payload")
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// failCodec always fails Unmarshal, used to exercise the forward-compat skip
// and DecompressionError/ParseError paths.
type failCodec struct{}

func (failCodec) Marshal(tree any) ([]byte, error)   { return []byte("x\x00"), nil }
func (failCodec) Unmarshal(data []byte) (any, error) { return nil, errors.New("always fails") }

// marshalFailCodec always fails Marshal, used to exercise SendMessage's
// serialization-error path.
type marshalFailCodec struct{}

func (marshalFailCodec) Marshal(tree any) ([]byte, error) {
	return nil, errors.New("marshal always fails")
}
func (marshalFailCodec) Unmarshal(data []byte) (any, error) { return nil, nil }

// loopbackConnPair returns two connected TCP sockets over real loopback, used
// by every test needing a genuine net.Conn (netpoll needs a raw fd).
func loopbackConnPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server = <-accepted
	return client, server
}

func newTestSession(conn net.Conn, codec Codec) *Session {
	return newSession(conn, nil, codec, logctx.Default())
}
