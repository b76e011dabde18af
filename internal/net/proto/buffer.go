package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the fixed length of the CommonHeader prefix on every packet.
const HeaderSize = 12

// Codec errors. The dispatcher matches on these to classify framing failures;
// none of them is ever fatal to the server.
var (
	// ErrShortBuffer is returned by Read* when fewer bytes remain than the
	// primitive requires.
	ErrShortBuffer = errors.New("proto: read past end of buffer")
	// ErrTooSmall is returned by DecodePacket when the input cannot hold a
	// complete header.
	ErrTooSmall = errors.New("proto: packet smaller than header")
	// ErrPayloadMismatch is returned when a header declares more payload
	// bytes than the buffer actually carries.
	ErrPayloadMismatch = errors.New("proto: declared payload exceeds buffer")
)

// UnknownOpcodeError carries the raw opcode byte of an unrecognized packet.
type UnknownOpcodeError struct {
	Opcode uint8
}

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("proto: unknown opcode 0x%02X", e.Opcode)
}

// CommonHeader is the 12-byte little-endian prefix shared by every packet on
// both channels.
//
//	opcode:u8 payload_size:u16 fragment_index:u8 tick_id:u32
//	fragment_count:u8 reserved:u8[3]
//
// TickID is zero for reliable-channel packets. FragmentIndex/FragmentCount
// describe splitting of oversized unreliable payloads; every packet this
// server emits fits in one fragment.
type CommonHeader struct {
	Opcode        Opcode
	PayloadSize   uint16
	FragmentIndex uint8
	TickID        uint32
	FragmentCount uint8
	Reserved      [3]uint8
}

// NewHeader builds a single-fragment header for the given opcode and payload.
func NewHeader(op Opcode, payloadSize uint16, tickID uint32) CommonHeader {
	return CommonHeader{
		Opcode:        op,
		PayloadSize:   payloadSize,
		TickID:        tickID,
		FragmentCount: 1,
	}
}

// Buffer is a growable byte buffer with a read cursor. All primitives are
// encoded little-endian regardless of host order. Reads never panic; they
// return ErrShortBuffer when the remaining bytes cannot satisfy the request.
type Buffer struct {
	data []byte
	off  int
}

// NewBuffer returns an empty write buffer.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 256)}
}

// NewReadBuffer wraps raw bytes for decoding. The buffer does not copy; the
// caller must not mutate data while decoding.
func NewReadBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the full encoded contents.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the total number of bytes held.
func (b *Buffer) Len() int { return len(b.data) }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.off }

// Reset clears the contents and rewinds the read cursor.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

func (b *Buffer) WriteU8(v uint8) {
	b.data = append(b.data, v)
}

func (b *Buffer) WriteU16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

func (b *Buffer) WriteU32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

func (b *Buffer) WriteU64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

func (b *Buffer) WriteFloat(v float32) {
	b.WriteU32(math.Float32bits(v))
}

func (b *Buffer) ReadU8() (uint8, error) {
	if b.Remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := b.data[b.off]
	b.off++
	return v, nil
}

func (b *Buffer) ReadU16() (uint16, error) {
	if b.Remaining() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint16(b.data[b.off:])
	b.off += 2
	return v, nil
}

func (b *Buffer) ReadU32() (uint32, error) {
	if b.Remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(b.data[b.off:])
	b.off += 4
	return v, nil
}

func (b *Buffer) ReadU64() (uint64, error) {
	if b.Remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(b.data[b.off:])
	b.off += 8
	return v, nil
}

func (b *Buffer) ReadFloat() (float32, error) {
	bits, err := b.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// ReadBytes copies the next n bytes out of the buffer.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if b.Remaining() < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, b.data[b.off:])
	b.off += n
	return out, nil
}

// WriteHeader appends the 12-byte header.
func (b *Buffer) WriteHeader(h CommonHeader) {
	b.WriteU8(uint8(h.Opcode))
	b.WriteU16(h.PayloadSize)
	b.WriteU8(h.FragmentIndex)
	b.WriteU32(h.TickID)
	b.WriteU8(h.FragmentCount)
	b.WriteU8(h.Reserved[0])
	b.WriteU8(h.Reserved[1])
	b.WriteU8(h.Reserved[2])
}

// ReadHeader consumes and returns the 12-byte header.
func (b *Buffer) ReadHeader() (CommonHeader, error) {
	var h CommonHeader
	if b.Remaining() < HeaderSize {
		return h, ErrShortBuffer
	}
	op, _ := b.ReadU8()
	h.Opcode = Opcode(op)
	h.PayloadSize, _ = b.ReadU16()
	h.FragmentIndex, _ = b.ReadU8()
	h.TickID, _ = b.ReadU32()
	h.FragmentCount, _ = b.ReadU8()
	h.Reserved[0], _ = b.ReadU8()
	h.Reserved[1], _ = b.ReadU8()
	h.Reserved[2], _ = b.ReadU8()
	return h, nil
}
