package remotenet

import "testing"

func TestSessionBufferGrowthPreservesPrefix(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	initialCap := s.bufCap()
	copy(s.buf, []byte("abc"))
	s.bufOff = 3

	s.ensureCapacity(initialCap * 4)
	if s.bufCap() < initialCap*4 {
		t.Fatalf("bufCap after ensureCapacity = %d, want >= %d", s.bufCap(), initialCap*4)
	}
	if string(s.buf[:3]) != "abc" {
		t.Fatalf("ensureCapacity did not preserve the filled prefix: got %q", s.buf[:3])
	}
}

func TestSessionEnsureCapacityNoOpWhenAlreadyLargeEnough(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	before := s.buf
	s.ensureCapacity(s.bufCap() - 1)
	if &s.buf[0] != &before[0] {
		t.Fatal("ensureCapacity reallocated when the existing buffer already had enough room")
	}
}

func TestSessionResetBuffer(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	s.bufOff = 10
	s.resetBuffer()
	if s.bufOff != 0 {
		t.Fatalf("bufOff after resetBuffer = %d, want 0", s.bufOff)
	}
	if s.buf[0] != 0 {
		t.Fatal("resetBuffer did not clear the sentinel byte")
	}
}

func TestSessionIDIsStableAndAddressesExposed(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	if s.ID() == "" {
		t.Fatal("Session.ID() returned empty string")
	}
	if s.LocalAddr() == nil || s.RemoteAddr() == nil {
		t.Fatal("Session Local/RemoteAddr returned nil")
	}
}

func TestSessionClose(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer server.Close()

	s := newTestSession(client, jsonCodec{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := client.Write([]byte("x")); err == nil {
		t.Fatal("expected writing to a closed session's socket to fail")
	}
}
