package remotenet

import (
	"bytes"
	"testing"
	"time"
)

func TestSendBytesRejectsNilPayload(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	if _, err := s.sendBytes(nil); err != ErrInvalidArgument {
		t.Fatalf("sendBytes(nil) = %v, want ErrInvalidArgument", err)
	}
}

func TestSendBytesWritesEverything(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	payload := bytes.Repeat([]byte{0xAB}, 8192)
	n, err := s.sendBytes(payload)
	if err != nil {
		t.Fatalf("sendBytes: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("sendBytes returned %d, want %d", n, len(payload))
	}

	got := make([]byte, 0, len(payload))
	buf := make([]byte, 4096)
	for len(got) < len(payload) {
		server.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := server.Read(buf)
		if err != nil {
			t.Fatalf("server read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("received bytes do not match sent bytes")
	}
}

func TestRecvNonblockingWouldBlock(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(server, jsonCodec{})
	_, err := s.recvNonblocking()
	if err != ErrWouldBlock {
		t.Fatalf("recvNonblocking on idle socket = %v, want ErrWouldBlock", err)
	}
}

func TestRecvNonblockingReadsAvailableData(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	s := newTestSession(server, jsonCodec{})
	deadline := time.Now().Add(2 * time.Second)
	var n int
	var err error
	for time.Now().Before(deadline) {
		n, err = s.recvNonblocking()
		if err == nil {
			break
		}
		if err != ErrWouldBlock {
			t.Fatalf("recvNonblocking: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("recvNonblocking never succeeded: %v", err)
	}
	if n != 5 {
		t.Fatalf("recvNonblocking read %d bytes, want 5", n)
	}
	if string(s.buf[:s.bufOff]) != "hello" {
		t.Fatalf("session buffer = %q, want %q", s.buf[:s.bufOff], "hello")
	}
	if s.buf[s.bufOff] != 0 {
		t.Fatal("trailing NUL sentinel not written")
	}
}

func TestRecvNonblockingDisconnected(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer server.Close()
	client.Close()

	s := newTestSession(server, jsonCodec{})
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		_, err = s.recvNonblocking()
		if err != ErrWouldBlock {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != ErrDisconnected {
		t.Fatalf("recvNonblocking after peer close = %v, want ErrDisconnected", err)
	}
}
