package codec

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
)

const (
	compactSingleMax = 1<<6 - 1
	compactTwoMax    = 1<<14 - 1
	compactFourMax   = 1<<30 - 1

	// big integer mode carries between 4 and 67 bytes
	compactMaxBytes = 67
)

// AppendCompact appends the compact encoding of v to dst
func AppendCompact(dst []byte, v uint64) []byte {
	switch {
	case v <= compactSingleMax:
		return append(dst, byte(v<<2))
	case v <= compactTwoMax:
		return binary.LittleEndian.AppendUint16(dst, uint16(v<<2)|0b01)
	case v <= compactFourMax:
		return binary.LittleEndian.AppendUint32(dst, uint32(v<<2)|0b10)
	}

	n := 8
	for n > 4 && v>>(8*(n-1)) == 0 {
		n--
	}
	dst = append(dst, byte(n-4)<<2|0b11)
	for i := 0; i < n; i++ {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// AppendCompactBig appends the compact encoding of a non-negative big integer
func AppendCompactBig(dst []byte, v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 {
		return dst, errors.Wrap(ErrOverflow, "compact integers are unsigned")
	}
	if v.IsUint64() {
		return AppendCompact(dst, v.Uint64()), nil
	}

	be := v.Bytes()
	if len(be) > compactMaxBytes {
		return dst, errors.Wrapf(ErrOverflow, "compact integer needs %d bytes", len(be))
	}
	dst = append(dst, byte(len(be)-4)<<2|0b11)
	for i := len(be) - 1; i >= 0; i-- {
		dst = append(dst, be[i])
	}
	return dst, nil
}

// EncodeCompact returns the compact encoding of v
func EncodeCompact(v uint64) []byte {
	return AppendCompact(nil, v)
}

// DecodeCompact decodes a compact integer from the head of b and returns the
// number of bytes it occupied. Non-minimal encodings are rejected.
func DecodeCompact(b []byte) (*big.Int, int, error) {
	if len(b) == 0 {
		return nil, 0, errors.Wrap(ErrUnexpectedEOF, "compact prefix")
	}

	switch b[0] & 0b11 {
	case 0b00:
		return new(big.Int).SetUint64(uint64(b[0] >> 2)), 1, nil
	case 0b01:
		if len(b) < 2 {
			return nil, 0, errors.Wrap(ErrUnexpectedEOF, "two byte compact")
		}
		v := uint64(binary.LittleEndian.Uint16(b) >> 2)
		if v <= compactSingleMax {
			return nil, 0, errors.Wrapf(ErrNonCanonical, "%d in two byte mode", v)
		}
		return new(big.Int).SetUint64(v), 2, nil
	case 0b10:
		if len(b) < 4 {
			return nil, 0, errors.Wrap(ErrUnexpectedEOF, "four byte compact")
		}
		v := uint64(binary.LittleEndian.Uint32(b) >> 2)
		if v <= compactTwoMax {
			return nil, 0, errors.Wrapf(ErrNonCanonical, "%d in four byte mode", v)
		}
		return new(big.Int).SetUint64(v), 4, nil
	}

	n := int(b[0]>>2) + 4
	if len(b) < 1+n {
		return nil, 0, errors.Wrapf(ErrUnexpectedEOF, "compact of %d bytes", n)
	}
	if b[n] == 0 {
		return nil, 0, errors.Wrap(ErrNonCanonical, "leading zero byte in big integer mode")
	}

	be := make([]byte, n)
	for i := 0; i < n; i++ {
		be[n-1-i] = b[1+i]
	}
	v := new(big.Int).SetBytes(be)
	if n == 4 && v.Uint64() <= compactFourMax {
		return nil, 0, errors.Wrapf(ErrNonCanonical, "%d in big integer mode", v.Uint64())
	}
	return v, 1 + n, nil
}
