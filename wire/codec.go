// Package wire implements Samizdat's on-the-wire binary encoding: a small,
// explicit, deterministic binary layout in the spirit of go-ethereum's RLP
// package — hand-rolled field writers over encoding/binary rather than a
// generic reflection-based codec — serving the role Rust's bincode plays in
// the original implementation. Every message type owns its own Marshal and
// Unmarshal methods built from the primitives here, so wire layout is fixed
// and auditable rather than derived by reflection.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned when a Decoder runs out of bytes mid-field.
var ErrTruncated = errors.New("wire: truncated message")

// ErrTooLarge is returned when a length-prefixed field declares a size
// larger than the configured bound, guarding against a peer driving an
// unbounded allocation.
var ErrTooLarge = errors.New("wire: field exceeds maximum size")

// MaxFieldSize bounds any single length-prefixed field (matches the file
// transfer protocol's 256 KiB header ceiling with headroom for other
// messages; chunk payloads are framed separately and checked against their
// own bound by the caller).
const MaxFieldSize = 1 << 20

// Encoder appends fields to an internal buffer in call order.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteRaw appends b verbatim, with no length prefix. Use only for
// fixed-size fields whose length is implied by the type (hashes, nonces).
func (e *Encoder) WriteRaw(b []byte) { e.buf = append(e.buf, b...) }

// WriteBytes appends a uint32 length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	e.buf = append(e.buf, l[:]...)
	e.buf = append(e.buf, b...)
}

// WriteString appends s as a length-prefixed byte string.
func (e *Encoder) WriteString(s string) { e.WriteBytes([]byte(s)) }

// WriteUint32 appends a big-endian uint32.
func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteUint64 appends a big-endian uint64.
func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteInt64 appends a big-endian int64.
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

// WriteBool appends a single byte: 1 for true, 0 for false.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// Decoder reads fields sequentially from a fixed byte slice.
type Decoder struct {
	b   []byte
	pos int
}

// NewDecoder wraps b for sequential reads.
func NewDecoder(b []byte) *Decoder { return &Decoder{b: b} }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.b) - d.pos }

// ReadRaw reads exactly n bytes verbatim.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, ErrTruncated
	}
	out := d.b[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// ReadBytes reads a uint32-length-prefixed byte string.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxFieldSize {
		return nil, ErrTooLarge
	}
	return d.ReadRaw(int(n))
}

// ReadString reads a length-prefixed byte string as a string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadUint32 reads a big-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	raw, err := d.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

// ReadUint64 reads a big-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	raw, err := d.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// ReadInt64 reads a big-endian int64.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadBool reads a single boolean byte.
func (d *Decoder) ReadBool() (bool, error) {
	raw, err := d.ReadRaw(1)
	if err != nil {
		return false, err
	}
	return raw[0] == 1, nil
}
