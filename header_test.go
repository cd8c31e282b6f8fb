package remotenet

import (
	"reflect"
	"testing"
)

func sampleHeader() Header {
	return Header{
		Endian:              LocalMagic,
		Version:             1,
		ID:                  42,
		Flags:               0,
		SizeTotal:           45,
		PayloadOffset:       HeaderSize,
		PayloadCompressed:   0,
		PayloadUncompressed: 5,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	buf := h.Encode()

	got, ok, err := readHeader(buf)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if !ok {
		t.Fatal("readHeader reported incomplete header")
	}
	if !reflect.DeepEqual(got, h) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeaderTooShort(t *testing.T) {
	buf := sampleHeader().Encode()
	_, ok, err := readHeader(buf[:HeaderSize-1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for truncated header")
	}
}

func TestHeaderEndianSwap(t *testing.T) {
	h := sampleHeader()
	buf := h.Encode()

	// Construct what an opposite-endian sender would have put on the
	// wire: every multi-byte field byte-reversed, including Endian
	// itself (so the receiver must detect the swap, not see LocalMagic
	// directly).
	swappedBuf := make([]byte, HeaderSize)
	binSwapInto(swappedBuf, h)

	got, ok, err := readHeader(swappedBuf)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !reflect.DeepEqual(got, h) {
		t.Fatalf("swapped header mismatch: got %+v, want %+v", got, h)
	}

	// In-place swap means a second read of the same buffer now finds a
	// native-order header.
	got2, ok2, err2 := readHeader(swappedBuf)
	if err2 != nil || !ok2 {
		t.Fatalf("second read failed: ok=%v err=%v", ok2, err2)
	}
	if !reflect.DeepEqual(got2, h) {
		t.Fatalf("post-swap buffer not normalized: got %+v", got2)
	}
}

func TestHeaderInvalidEndian(t *testing.T) {
	h := sampleHeader()
	buf := h.Encode()
	// Corrupt Endian so neither it nor its swap equals LocalMagic.
	buf[0], buf[1], buf[2], buf[3] = 0x01, 0x02, 0x03, 0x04

	_, ok, err := readHeader(buf)
	if err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame, got ok=%v err=%v", ok, err)
	}
}

// binSwapInto writes h's fields into dst byte-reversed field by field,
// simulating bytes produced by a sender with opposite endianness.
func binSwapInto(dst []byte, h Header) {
	s := h.swapped()
	copy(dst, s.Encode())
}
