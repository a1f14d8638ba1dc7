package codec

import (
	"math/big"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	// maxDepth bounds descriptor recursion while encoding and decoding
	maxDepth = 256

	// maxZeroSized bounds the element count of sequences whose elements
	// occupy no bytes, since the input size cannot bound them
	maxZeroSized = 1 << 16
)

// Decode decodes a single value of type t that must span all of b. It
// returns the number of bytes consumed.
func Decode(b []byte, t *TypeDescriptor) (Value, int, error) {
	r := NewReader(b)
	v, err := DecodeFrom(r, t)
	if err != nil {
		return Value{}, r.Offset(), err
	}
	if r.Len() != 0 {
		return Value{}, r.Offset(), errors.Wrapf(ErrTrailingBytes, "%d bytes after %s", r.Len(), t.Name())
	}
	return v, r.Offset(), nil
}

// DecodeFrom decodes one value of type t from the reader's position
func DecodeFrom(r *Reader, t *TypeDescriptor) (Value, error) {
	return decodeValue(r, t, 0)
}

func decodeValue(r *Reader, t *TypeDescriptor, depth int) (Value, error) {
	if t == nil {
		return Value{}, errors.Wrap(ErrUnsupportedType, "nil type")
	}
	if depth > maxDepth {
		return Value{}, ErrDepthExceeded
	}

	switch t.Kind {
	case TypePrimitive:
		return decodePrimitive(r, t.Primitive)
	case TypeCompact:
		return decodeCompact(r, t)
	case TypeSequence:
		n, err := r.ReadLength()
		if err != nil {
			return Value{}, err
		}
		return decodeItems(r, t.Elem, n, depth)
	case TypeArray:
		return decodeItems(r, t.Elem, int(t.Len), depth)
	case TypeTuple:
		items := make([]Value, 0, len(t.Tuple))
		for i, elem := range t.Tuple {
			item, err := decodeValue(r, elem, depth+1)
			if err != nil {
				return Value{}, errors.Wrapf(err, "tuple element %d", i)
			}
			items = append(items, item)
		}
		return Tuple(items...), nil
	case TypeComposite:
		fields, err := decodeFields(r, t.Fields, depth)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindComposite, Fields: fields}, nil
	case TypeVariant:
		index, err := r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		variant, ok := t.VariantByIndex(index)
		if !ok {
			return Value{}, errors.Wrapf(ErrInvalidDiscriminant, "%s has no variant %d", t.Name(), index)
		}
		fields, err := decodeFields(r, variant.Fields, depth)
		if err != nil {
			return Value{}, errors.Wrapf(err, "variant %s", variant.Name)
		}
		return Value{Kind: KindVariant, Variant: variant.Name, Index: variant.Index, Fields: fields}, nil
	case TypeBitSequence:
		return decodeBits(r, t)
	}
	return Value{}, errors.Wrapf(ErrUnsupportedType, "kind %s", t.Kind)
}

func decodePrimitive(r *Reader, p Primitive) (Value, error) {
	switch p {
	case PrimBool:
		b, err := r.ReadBool()
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case PrimChar:
		c, err := r.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		if c > utf8.MaxRune || !utf8.ValidRune(rune(c)) {
			return Value{}, errors.Wrapf(ErrInvalidUTF8, "char %#x", c)
		}
		return Char(rune(c)), nil
	case PrimStr:
		s, err := r.ReadString()
		if err != nil {
			return Value{}, err
		}
		return Str(s), nil
	}

	if !p.IsInteger() {
		return Value{}, errors.Wrapf(ErrUnsupportedType, "primitive %d", uint8(p))
	}
	b, err := r.ReadN(p.Width())
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindInt, Int: intFromBytes(p, b)}, nil
}

// intFromBytes reads a little endian two's complement integer
func intFromBytes(p Primitive, le []byte) *big.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	n := new(big.Int).SetBytes(be)
	if p.Signed() && len(be) > 0 && be[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(le)*8)))
	}
	return n
}

func decodeCompact(r *Reader, t *TypeDescriptor) (Value, error) {
	target, err := compactTarget(t)
	if err != nil {
		return Value{}, err
	}
	if target == nil {
		return Tuple(), nil
	}

	n, err := r.ReadCompact()
	if err != nil {
		return Value{}, err
	}
	if _, max := intRange(target.Primitive); n.Cmp(max) > 0 {
		return Value{}, errors.Wrapf(ErrOverflow, "%s exceeds %s", n, target.Primitive)
	}
	return rewrapCompact(t.Elem, Value{Kind: KindInt, Int: n}), nil
}

// rewrapCompact restores the newtype composites a compact integer was
// unwrapped from
func rewrapCompact(inner *TypeDescriptor, v Value) Value {
	if inner.Kind == TypeComposite && len(inner.Fields) == 1 {
		return Value{Kind: KindComposite, Fields: []NamedValue{{
			Name:  inner.Fields[0].Name,
			Value: rewrapCompact(inner.Fields[0].Type, v),
		}}}
	}
	return v
}

func decodeItems(r *Reader, elem *TypeDescriptor, n int, depth int) (Value, error) {
	if elem.IsU8() {
		b, err := r.ReadN(n)
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil
	}

	if elem.IsEmpty() {
		if n > maxZeroSized {
			return Value{}, errors.Wrapf(ErrOverflow, "%d zero sized elements", n)
		}
	} else if n > r.Len() {
		// every element occupies at least one byte
		return Value{}, errors.Wrapf(ErrUnexpectedEOF, "%d elements in %d bytes", n, r.Len())
	}

	items := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		item, err := decodeValue(r, elem, depth+1)
		if err != nil {
			return Value{}, errors.Wrapf(err, "element %d", i)
		}
		items = append(items, item)
	}
	return Seq(items...), nil
}

func decodeFields(r *Reader, fields []Field, depth int) ([]NamedValue, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]NamedValue, 0, len(fields))
	for i, field := range fields {
		v, err := decodeValue(r, field.Type, depth+1)
		if err != nil {
			if field.Name != "" {
				return nil, errors.Wrapf(err, "field %s", field.Name)
			}
			return nil, errors.Wrapf(err, "field %d", i)
		}
		out = append(out, NamedValue{Name: field.Name, Value: v})
	}
	return out, nil
}

func decodeBits(r *Reader, t *TypeDescriptor) (Value, error) {
	width, msb, err := bitLayout(t)
	if err != nil {
		return Value{}, err
	}
	n, err := r.ReadLength()
	if err != nil {
		return Value{}, err
	}

	storeBits := width * 8
	words := (n + storeBits - 1) / storeBits
	packed, err := r.ReadN(words * width)
	if err != nil {
		return Value{}, err
	}

	bits := make([]bool, n)
	for i := range bits {
		pos := i % storeBits
		if msb {
			pos = storeBits - 1 - pos
		}
		word := i / storeBits
		bits[i] = packed[word*width+pos/8]&(1<<(pos%8)) != 0
	}
	return BitsOf(bits...), nil
}
