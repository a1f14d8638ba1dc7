package codec

import (
	"math/big"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Encode returns the SCALE encoding of v as a value of type t
func Encode(t *TypeDescriptor, v Value) ([]byte, error) {
	w := NewWriter()
	if err := EncodeTo(w, t, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo appends the SCALE encoding of v to w. On error w may hold a
// partial encoding.
func EncodeTo(w *Writer, t *TypeDescriptor, v Value) error {
	return encodeValue(w, t, v, 0)
}

func encodeValue(w *Writer, t *TypeDescriptor, v Value, depth int) error {
	if t == nil {
		return errors.Wrap(ErrUnsupportedType, "nil type")
	}
	if depth > maxDepth {
		return ErrDepthExceeded
	}

	switch t.Kind {
	case TypePrimitive:
		return encodePrimitive(w, t.Primitive, v)
	case TypeCompact:
		return encodeCompact(w, t, v)
	case TypeSequence:
		return encodeSequence(w, t, v, depth)
	case TypeArray:
		return encodeArray(w, t, v, depth)
	case TypeTuple:
		return encodeTuple(w, t, v, depth)
	case TypeComposite:
		return encodeFields(w, t, t.Fields, v, depth)
	case TypeVariant:
		return encodeVariant(w, t, v, depth)
	case TypeBitSequence:
		return encodeBits(w, t, v)
	}
	return errors.Wrapf(ErrUnsupportedType, "kind %s", t.Kind)
}

func mismatch(t *TypeDescriptor, v Value) error {
	return errors.Wrapf(ErrTypeMismatch, "cannot encode %s as %s", v, t.Name())
}

func encodePrimitive(w *Writer, p Primitive, v Value) error {
	v = v.Unwrap()
	switch p {
	case PrimBool:
		if v.Kind != KindBool {
			return errors.Wrapf(ErrTypeMismatch, "expected bool, got %s", v)
		}
		w.WriteBool(v.Bool)
		return nil
	case PrimChar:
		if v.Kind != KindChar || utf8.RuneCountInString(v.Str) != 1 {
			return errors.Wrapf(ErrTypeMismatch, "expected char, got %s", v)
		}
		r, _ := utf8.DecodeRuneInString(v.Str)
		w.WriteUint32(uint32(r))
		return nil
	case PrimStr:
		if v.Kind != KindStr {
			return errors.Wrapf(ErrTypeMismatch, "expected str, got %s", v)
		}
		if !utf8.ValidString(v.Str) {
			return ErrInvalidUTF8
		}
		w.WriteString(v.Str)
		return nil
	}

	if !p.IsInteger() {
		return errors.Wrapf(ErrUnsupportedType, "primitive %d", uint8(p))
	}
	if v.Kind != KindInt || v.Int == nil {
		return errors.Wrapf(ErrTypeMismatch, "expected %s, got %s", p, v)
	}
	b, err := intBytes(p, v.Int)
	if err != nil {
		return err
	}
	_, _ = w.Write(b)
	return nil
}

// intBytes renders i as a little endian two's complement integer of p's width
func intBytes(p Primitive, i *big.Int) ([]byte, error) {
	width := p.Width()
	bits := uint(width * 8)

	min, max := intRange(p)
	if i.Cmp(min) < 0 || i.Cmp(max) > 0 {
		return nil, errors.Wrapf(ErrOverflow, "%s out of range for %s", i, p)
	}

	n := new(big.Int).Set(i)
	if n.Sign() < 0 {
		n.Add(n, new(big.Int).Lsh(big.NewInt(1), bits))
	}

	be := n.Bytes()
	out := make([]byte, width)
	for j := 0; j < len(be); j++ {
		out[j] = be[len(be)-1-j]
	}
	return out, nil
}

func intRange(p Primitive) (*big.Int, *big.Int) {
	bits := uint(p.Width() * 8)
	one := big.NewInt(1)
	if p.Signed() {
		max := new(big.Int).Lsh(one, bits-1)
		min := new(big.Int).Neg(max)
		return min, max.Sub(max, one)
	}
	max := new(big.Int).Lsh(one, bits)
	return new(big.Int), max.Sub(max, one)
}

// compactTarget follows single field composites down to the unsigned integer
// a compact wraps. It returns nil when the inner type is zero sized.
func compactTarget(t *TypeDescriptor) (*TypeDescriptor, error) {
	inner := t.Elem
	for depth := 0; inner != nil && depth <= maxDepth; depth++ {
		switch {
		case inner.Kind == TypePrimitive && inner.Primitive.IsInteger() && !inner.Primitive.Signed():
			return inner, nil
		case inner.Kind == TypeComposite && len(inner.Fields) == 1:
			inner = inner.Fields[0].Type
		case inner.IsEmpty():
			return nil, nil
		default:
			return nil, errors.Wrapf(ErrUnsupportedType, "compact of %s", inner.Name())
		}
	}
	return nil, errors.Wrap(ErrUnsupportedType, "compact without an integer")
}

func encodeCompact(w *Writer, t *TypeDescriptor, v Value) error {
	target, err := compactTarget(t)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}

	i, ok := v.BigInt()
	if !ok {
		return mismatch(t, v)
	}
	if _, max := intRange(target.Primitive); i.Sign() < 0 || i.Cmp(max) > 0 {
		return errors.Wrapf(ErrOverflow, "%s out of range for Compact<%s>", i, target.Primitive)
	}
	return w.WriteCompactBig(i)
}

func encodeSequence(w *Writer, t *TypeDescriptor, v Value, depth int) error {
	v = unwrapFor(v, KindSequence)
	if t.Elem.IsU8() {
		if b, ok := v.AsBytes(); ok {
			w.WriteBytes(b)
			return nil
		}
	}
	if v.Kind != KindSequence {
		return mismatch(t, v)
	}
	w.WriteCompact(uint64(len(v.Items)))
	for i, item := range v.Items {
		if err := encodeValue(w, t.Elem, item, depth+1); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
	}
	return nil
}

func encodeArray(w *Writer, t *TypeDescriptor, v Value, depth int) error {
	v = unwrapFor(v, KindSequence)
	if t.Elem.IsU8() {
		if b, ok := v.AsBytes(); ok {
			if len(b) != int(t.Len) {
				return errors.Wrapf(ErrTypeMismatch, "array of %d bytes given %d", t.Len, len(b))
			}
			_, _ = w.Write(b)
			return nil
		}
	}
	if v.Kind != KindSequence && v.Kind != KindTuple {
		return mismatch(t, v)
	}
	if len(v.Items) != int(t.Len) {
		return errors.Wrapf(ErrTypeMismatch, "array of %d given %d items", t.Len, len(v.Items))
	}
	for i, item := range v.Items {
		if err := encodeValue(w, t.Elem, item, depth+1); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
	}
	return nil
}

func encodeTuple(w *Writer, t *TypeDescriptor, v Value, depth int) error {
	if len(t.Tuple) == 0 && (v.Kind == KindInvalid || v.Len() == 0) {
		return nil
	}
	if len(t.Tuple) == 1 && v.Kind != KindTuple {
		return encodeValue(w, t.Tuple[0], v, depth+1)
	}
	if v.Kind != KindTuple && v.Kind != KindSequence {
		return mismatch(t, v)
	}
	if len(v.Items) != len(t.Tuple) {
		return errors.Wrapf(ErrTypeMismatch, "tuple of %d given %d items", len(t.Tuple), len(v.Items))
	}
	for i, item := range v.Items {
		if err := encodeValue(w, t.Tuple[i], item, depth+1); err != nil {
			return errors.Wrapf(err, "tuple element %d", i)
		}
	}
	return nil
}

// encodeFields writes the fields of a composite or of a selected variant.
// Named values are matched by name, unnamed ones by position. A lone field
// also accepts the bare inner value.
func encodeFields(w *Writer, t *TypeDescriptor, fields []Field, v Value, depth int) error {
	if len(fields) == 0 {
		if v.Len() != 0 {
			return mismatch(t, v)
		}
		return nil
	}

	if v.Kind != KindComposite && v.Kind != KindVariant {
		if len(fields) == 1 {
			return encodeValue(w, fields[0].Type, v, depth+1)
		}
		if v.Kind == KindTuple || v.Kind == KindSequence {
			v = Unnamed(v.Items...)
		} else {
			return mismatch(t, v)
		}
	}

	if len(v.Fields) != len(fields) {
		if len(fields) == 1 {
			return encodeValue(w, fields[0].Type, v, depth+1)
		}
		return errors.Wrapf(ErrTypeMismatch, "%s has %d fields, given %d", t.Name(), len(fields), len(v.Fields))
	}

	byName := fields[0].Name != "" && v.Fields[0].Name != ""
	for i, field := range fields {
		fv := v.Fields[i].Value
		if byName {
			var ok bool
			if fv, ok = v.Field(field.Name); !ok {
				return errors.Wrapf(ErrTypeMismatch, "%s missing field %s", t.Name(), field.Name)
			}
		}
		if err := encodeValue(w, field.Type, fv, depth+1); err != nil {
			if field.Name != "" {
				return errors.Wrapf(err, "field %s", field.Name)
			}
			return errors.Wrapf(err, "field %d", i)
		}
	}
	return nil
}

func encodeVariant(w *Writer, t *TypeDescriptor, v Value, depth int) error {
	v = unwrapFor(v, KindVariant)
	if v.Kind != KindVariant {
		return mismatch(t, v)
	}

	var (
		variant *Variant
		ok      bool
	)
	if v.Variant != "" {
		variant, ok = t.VariantByName(v.Variant)
	} else {
		variant, ok = t.VariantByIndex(v.Index)
	}
	if !ok {
		return errors.Wrapf(ErrInvalidDiscriminant, "%s has no variant %q (index %d)", t.Name(), v.Variant, v.Index)
	}

	_ = w.WriteByte(variant.Index)
	fields := Value{Kind: KindComposite, Fields: v.Fields}
	return encodeFields(w, t, variant.Fields, fields, depth)
}

func encodeBits(w *Writer, t *TypeDescriptor, v Value) error {
	v = unwrapFor(v, KindBits)
	if v.Kind != KindBits {
		return mismatch(t, v)
	}
	width, msb, err := bitLayout(t)
	if err != nil {
		return err
	}

	storeBits := width * 8
	words := (len(v.Bits) + storeBits - 1) / storeBits
	packed := make([]byte, words*width)
	for i, set := range v.Bits {
		if !set {
			continue
		}
		pos := i % storeBits
		if msb {
			pos = storeBits - 1 - pos
		}
		word := i / storeBits
		packed[word*width+pos/8] |= 1 << (pos % 8)
	}

	w.WriteCompact(uint64(len(v.Bits)))
	_, _ = w.Write(packed)
	return nil
}

// bitLayout returns the store word width in bytes and whether bits are
// numbered from the most significant end
func bitLayout(t *TypeDescriptor) (int, bool, error) {
	store := t.BitStore
	if store == nil || store.Kind != TypePrimitive {
		return 0, false, errors.Wrap(ErrUnsupportedType, "bit sequence store")
	}
	switch store.Primitive {
	case PrimU8, PrimU16, PrimU32, PrimU64:
	default:
		return 0, false, errors.Wrapf(ErrUnsupportedType, "bit sequence store %s", store.Primitive)
	}

	order := ""
	if t.BitOrder != nil && len(t.BitOrder.Path) > 0 {
		order = t.BitOrder.Path[len(t.BitOrder.Path)-1]
	}
	switch order {
	case "Lsb0":
		return store.Primitive.Width(), false, nil
	case "Msb0":
		return store.Primitive.Width(), true, nil
	}
	return 0, false, errors.Wrapf(ErrUnsupportedType, "bit order %q", order)
}

// unwrapFor strips newtype composites until v has the wanted kind
func unwrapFor(v Value, kind ValueKind) Value {
	for v.Kind == KindComposite && len(v.Fields) == 1 && v.Kind != kind {
		v = v.Fields[0].Value
	}
	return v
}
