package codec

import "github.com/pkg/errors"

var (
	ErrUnexpectedEOF       = errors.New("codec: unexpected end of input")
	ErrInvalidDiscriminant = errors.New("codec: invalid discriminant")
	ErrTrailingBytes       = errors.New("codec: trailing bytes")
	ErrNonCanonical        = errors.New("codec: non-canonical compact encoding")
	ErrOverflow            = errors.New("codec: integer out of range")
	ErrTypeMismatch        = errors.New("codec: value does not match type")
	ErrInvalidUTF8         = errors.New("codec: invalid utf-8")
	ErrDepthExceeded       = errors.New("codec: maximum nesting depth exceeded")
	ErrUnsupportedType     = errors.New("codec: unsupported type")
)
