package codec

import (
	"encoding/binary"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Reader is a cursor over SCALE encoded bytes. Reads never panic; a short
// input yields ErrUnexpectedEOF.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed so far
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) ReadByte() (byte, error) {
	if r.Len() < 1 {
		return 0, ErrUnexpectedEOF
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// ReadN returns the next n bytes. The slice aliases the underlying buffer.
func (r *Reader) ReadN(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, errors.Wrapf(ErrUnexpectedEOF, "need %d bytes, have %d", n, r.Len())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.Wrapf(ErrInvalidDiscriminant, "bool byte %d", b)
}

// ReadOption reads an Option discriminant and reports whether a value follows
func (r *Reader) ReadOption() (bool, error) {
	return r.ReadBool()
}

func (r *Reader) ReadCompact() (*big.Int, error) {
	v, n, err := DecodeCompact(r.buf[r.off:])
	if err != nil {
		return nil, err
	}
	r.off += n
	return v, nil
}

func (r *Reader) ReadCompactUint64() (uint64, error) {
	v, err := r.ReadCompact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, errors.Wrapf(ErrOverflow, "compact %s exceeds u64", v)
	}
	return v.Uint64(), nil
}

// ReadCompactUint32 reads a compact integer that must fit in a u32, the width
// used for type ids and lengths
func (r *Reader) ReadCompactUint32() (uint32, error) {
	v, err := r.ReadCompactUint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, errors.Wrapf(ErrOverflow, "compact %d exceeds u32", v)
	}
	return uint32(v), nil
}

// ReadLength reads a compact length prefix
func (r *Reader) ReadLength() (int, error) {
	v, err := r.ReadCompactUint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, errors.Wrapf(ErrOverflow, "length %d", v)
	}
	return int(v), nil
}

// ReadBytes reads a length prefixed byte vector and returns a copy
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadN(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	b, err := r.ReadN(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}
