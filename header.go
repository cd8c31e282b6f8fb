package remotenet

import "encoding/binary"

// LocalMagic is the sender's view of its own byte order, written into every
// outgoing frame's Endian field. Its byte-swap differs from itself, which is
// what makes a byte-order mismatch detectable on receipt.
const LocalMagic uint32 = 0xBADADBBD

// ProtocolVersion is the version this package writes and fully understands.
// Frames with a higher version still parse, but unparseable payloads at
// higher versions are silently skipped rather than treated as errors (see
// Session.extractMessage).
const ProtocolVersion uint32 = 1

// HeaderSize is the packed, fixed size of Header on the wire: six uint32
// fields, two uint64 fields, no padding.
const HeaderSize = 4 + 4 + 8 + 8 + 4 + 4 + 4 + 4

// Header is the fixed-layout record at offset 0 of every frame. Field widths
// and order are part of the wire contract and must not change.
type Header struct {
	Endian              uint32
	Version             uint32
	ID                  uint64
	Flags               uint64
	SizeTotal           uint32
	PayloadOffset       uint32
	PayloadCompressed   uint32
	PayloadUncompressed uint32
}

// Encode writes h to a HeaderSize-byte buffer in little-endian layout,
// whatever the host's byte order (callers always write LocalMagic into
// Endian, so a receiver decoding the same layout needs no swap).
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Endian)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.ID)
	binary.LittleEndian.PutUint64(buf[16:24], h.Flags)
	binary.LittleEndian.PutUint32(buf[24:28], h.SizeTotal)
	binary.LittleEndian.PutUint32(buf[28:32], h.PayloadOffset)
	binary.LittleEndian.PutUint32(buf[32:36], h.PayloadCompressed)
	binary.LittleEndian.PutUint32(buf[36:40], h.PayloadUncompressed)
	return buf
}

// decodeRaw reads a Header out of buf in the little-endian layout Encode
// writes, without checking the Endian field.
func decodeRaw(buf []byte) Header {
	return Header{
		Endian:              binary.LittleEndian.Uint32(buf[0:4]),
		Version:             binary.LittleEndian.Uint32(buf[4:8]),
		ID:                  binary.LittleEndian.Uint64(buf[8:16]),
		Flags:               binary.LittleEndian.Uint64(buf[16:24]),
		SizeTotal:           binary.LittleEndian.Uint32(buf[24:28]),
		PayloadOffset:       binary.LittleEndian.Uint32(buf[28:32]),
		PayloadCompressed:   binary.LittleEndian.Uint32(buf[32:36]),
		PayloadUncompressed: binary.LittleEndian.Uint32(buf[36:40]),
	}
}

func swap32(v uint32) uint32 {
	return (v&0x000000ff)<<24 | (v&0x0000ff00)<<8 | (v&0x00ff0000)>>8 | (v&0xff000000)>>24
}

func swap64(v uint64) uint64 {
	return (v&0x00000000000000ff)<<56 |
		(v&0x000000000000ff00)<<40 |
		(v&0x0000000000ff0000)<<24 |
		(v&0x00000000ff000000)<<8 |
		(v&0x000000ff00000000)>>8 |
		(v&0x0000ff0000000000)>>24 |
		(v&0x00ff000000000000)>>40 |
		(v&0xff00000000000000)>>56
}

// swapped returns a copy of h with every multi-byte field byte-reversed.
func (h Header) swapped() Header {
	return Header{
		Endian:              swap32(h.Endian),
		Version:             swap32(h.Version),
		ID:                  swap64(h.ID),
		Flags:               swap64(h.Flags),
		SizeTotal:           swap32(h.SizeTotal),
		PayloadOffset:       swap32(h.PayloadOffset),
		PayloadCompressed:   swap32(h.PayloadCompressed),
		PayloadUncompressed: swap32(h.PayloadUncompressed),
	}
}

// readHeader implements the Header Codec (spec §4.1). It returns the header
// normalized to host order, performing an in-place byte-swap on buf exactly
// once if the sender's endianness was reversed. ok is false if buf does not
// yet contain a full header (buf too short).
func readHeader(buf []byte) (h Header, ok bool, err error) {
	if len(buf) < HeaderSize {
		return Header{}, false, nil
	}

	raw := decodeRaw(buf)
	if raw.Endian == LocalMagic {
		return raw, true, nil
	}

	swappedEndian := swap32(raw.Endian)
	if swappedEndian != LocalMagic {
		return Header{}, false, ErrInvalidFrame
	}

	h = raw.swapped()
	copy(buf[:HeaderSize], h.Encode())
	return h, true, nil
}
