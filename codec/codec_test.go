package codec

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	u8Type   = NewPrimitive(PrimU8)
	u32Type  = NewPrimitive(PrimU32)
	u128Type = NewPrimitive(PrimU128)
	i16Type  = NewPrimitive(PrimI16)
	strType  = NewPrimitive(PrimStr)
	boolType = NewPrimitive(PrimBool)
)

func optionOf(inner *TypeDescriptor) *TypeDescriptor {
	return NewVariant(
		Variant{Name: "None", Index: 0},
		Variant{Name: "Some", Index: 1, Fields: []Field{{Type: inner}}},
	).WithPath("Option")
}

func roundTrip(t *testing.T, typ *TypeDescriptor, v Value, expected []byte) {
	t.Helper()

	encoded, err := Encode(typ, v)
	require.NoError(t, err)
	if expected != nil {
		assert.Equal(t, expected, encoded)
	}

	decoded, n, err := Decode(encoded, typ)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.True(t, v.Equal(decoded), "want %s, got %s", v, decoded)
}

func TestFixedWidthIntegers(t *testing.T) {
	roundTrip(t, u8Type, Uint(7), []byte{0x07})
	roundTrip(t, u32Type, Uint(0x01020304), []byte{0x04, 0x03, 0x02, 0x01})
	roundTrip(t, NewPrimitive(PrimU64), Uint(1), []byte{1, 0, 0, 0, 0, 0, 0, 0})
	roundTrip(t, i16Type, Int(-2), []byte{0xfe, 0xff})
	roundTrip(t, NewPrimitive(PrimI8), Int(-128), []byte{0x80})

	big128, _ := new(big.Int).SetString("1000000000000000000000", 10)
	roundTrip(t, u128Type, BigInt(big128), nil)

	min256 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	roundTrip(t, NewPrimitive(PrimI256), BigInt(min256), nil)
}

func TestIntegerRange(t *testing.T) {
	_, err := Encode(u8Type, Uint(256))
	assert.True(t, errors.Is(err, ErrOverflow))

	_, err = Encode(u8Type, Int(-1))
	assert.True(t, errors.Is(err, ErrOverflow))

	_, err = Encode(NewPrimitive(PrimI8), Int(128))
	assert.True(t, errors.Is(err, ErrOverflow))

	_, err = Encode(u32Type, Str("1"))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestStringsAndChars(t *testing.T) {
	roundTrip(t, strType, Str("hello"), []byte{0x14, 'h', 'e', 'l', 'l', 'o'})
	roundTrip(t, NewPrimitive(PrimChar), Char('é'), []byte{0xe9, 0, 0, 0})

	_, _, err := Decode([]byte{0x04, 0xff}, strType)
	assert.True(t, errors.Is(err, ErrInvalidUTF8))

	_, _, err = Decode([]byte{0x00, 0xd8, 0, 0}, NewPrimitive(PrimChar))
	assert.True(t, errors.Is(err, ErrInvalidUTF8))
}

func TestBool(t *testing.T) {
	roundTrip(t, boolType, Bool(true), []byte{1})
	roundTrip(t, boolType, Bool(false), []byte{0})

	_, _, err := Decode([]byte{2}, boolType)
	assert.True(t, errors.Is(err, ErrInvalidDiscriminant))
}

func TestByteSequences(t *testing.T) {
	bytesType := NewSequence(u8Type)
	roundTrip(t, bytesType, Bytes([]byte{1, 2, 3}), []byte{0x0c, 1, 2, 3})

	// a sequence of u8 values encodes the same as raw bytes
	encoded, err := Encode(bytesType, Seq(Uint(1), Uint(2), Uint(3)))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0c, 1, 2, 3}, encoded)

	decoded, _, err := Decode(encoded, bytesType)
	require.NoError(t, err)
	assert.Equal(t, KindBytes, decoded.Kind)

	hash := NewComposite(Field{Type: NewArray(4, u8Type)}).WithPath("primitive_types", "H32")
	roundTrip(t, hash, Unnamed(Bytes([]byte{9, 8, 7, 6})), []byte{9, 8, 7, 6})

	_, err = Encode(hash, Bytes([]byte{1, 2, 3}))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestSequencesAndTuples(t *testing.T) {
	roundTrip(t, NewSequence(u32Type), Seq(Uint(1), Uint(2)), []byte{0x08, 1, 0, 0, 0, 2, 0, 0, 0})
	roundTrip(t, NewArray(2, i16Type), Seq(Int(-1), Int(1)), []byte{0xff, 0xff, 1, 0})
	roundTrip(t, NewTuple(u8Type, boolType), Tuple(Uint(3), Bool(true)), []byte{3, 1})
	roundTrip(t, NewTuple(), Tuple(), []byte{})
}

func TestCompositesAndVariants(t *testing.T) {
	accountData := NewComposite(
		Field{Name: "free", Type: u128Type},
		Field{Name: "reserved", Type: u128Type},
	)
	v := Composite(Named("free", Uint(10)), Named("reserved", Uint(0)))
	roundTrip(t, accountData, v, nil)

	// named fields may be given out of order
	swapped := Composite(Named("reserved", Uint(0)), Named("free", Uint(10)))
	a, err := Encode(accountData, v)
	require.NoError(t, err)
	b, err := Encode(accountData, swapped)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	option := optionOf(u32Type)
	roundTrip(t, option, VariantOf("None"), []byte{0})
	roundTrip(t, option, VariantOf("Some", Named("", Uint(5))), []byte{1, 5, 0, 0, 0})

	decoded, _, err := Decode([]byte{1, 5, 0, 0, 0}, option)
	require.NoError(t, err)
	assert.Equal(t, "Some", decoded.Variant)
	assert.Equal(t, uint8(1), decoded.Index)

	_, _, err = Decode([]byte{2}, option)
	assert.True(t, errors.Is(err, ErrInvalidDiscriminant))

	_, err = Encode(option, VariantOf("Maybe"))
	assert.True(t, errors.Is(err, ErrInvalidDiscriminant))
}

func TestNewtypeUnwrapping(t *testing.T) {
	balance := NewComposite(Field{Type: u128Type}).WithPath("Balance")
	encoded, err := Encode(balance, Uint(100))
	require.NoError(t, err)

	decoded, _, err := Decode(encoded, balance)
	require.NoError(t, err)
	assert.Equal(t, KindComposite, decoded.Kind)
	n, ok := decoded.Uint64()
	assert.True(t, ok)
	assert.Equal(t, uint64(100), n)

	compactBalance := NewCompact(balance)
	encoded, err = Encode(compactBalance, Uint(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04}, encoded)

	decoded, _, err = Decode(encoded, compactBalance)
	require.NoError(t, err)
	assert.Equal(t, KindComposite, decoded.Kind)
}

func TestBitSequences(t *testing.T) {
	lsb := NewComposite().WithPath("bitvec", "order", "Lsb0")
	msb := NewComposite().WithPath("bitvec", "order", "Msb0")

	bits := BitsOf(true, false, true, true, false, false, false, false, true)

	roundTrip(t, NewBitSequence(u8Type, lsb), bits, []byte{0x24, 0x0d, 0x01})
	roundTrip(t, NewBitSequence(u8Type, msb), bits, []byte{0x24, 0xb0, 0x80})
	roundTrip(t, NewBitSequence(NewPrimitive(PrimU16), lsb), bits, []byte{0x24, 0x0d, 0x01})

	_, _, err := Decode([]byte{0x24, 0x0d}, NewBitSequence(u8Type, lsb))
	assert.True(t, errors.Is(err, ErrUnexpectedEOF))
}

func TestTrailingBytes(t *testing.T) {
	v, n, err := Decode([]byte{1, 0, 0, 0, 9}, u32Type)
	assert.True(t, errors.Is(err, ErrTrailingBytes))
	assert.Equal(t, 4, n)
	assert.Equal(t, KindInvalid, v.Kind)
}

func TestTruncatedInput(t *testing.T) {
	cases := []struct {
		name  string
		typ   *TypeDescriptor
		input []byte
	}{
		{"u32", u32Type, []byte{1, 2}},
		{"string", strType, []byte{0x14, 'h'}},
		{"sequence", NewSequence(u32Type), []byte{0x08, 1, 0, 0, 0}},
		{"huge sequence", NewSequence(u32Type), []byte{0xfe, 0xff, 0xff, 0xff}},
		{"variant", optionOf(u32Type), []byte{1, 5}},
		{"empty", boolType, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := Decode(c.input, c.typ)
			assert.True(t, errors.Is(err, ErrUnexpectedEOF), "%v", err)
		})
	}
}

func TestRecursiveDescriptor(t *testing.T) {
	// enum Call { Batch(Vec<Call>), Remark(Vec<u8>) }
	call := NewVariant().WithPath("RuntimeCall")
	call.Variants = []Variant{
		{Name: "Batch", Index: 0, Fields: []Field{{Name: "calls", Type: NewSequence(call)}}},
		{Name: "Remark", Index: 1, Fields: []Field{{Name: "remark", Type: NewSequence(u8Type)}}},
	}

	v := VariantOf("Batch", Named("calls", Seq(
		VariantOf("Remark", Named("remark", Bytes([]byte("hi")))),
		VariantOf("Batch", Named("calls", Seq())),
	)))
	roundTrip(t, call, v, []byte{0, 0x08, 1, 0x08, 'h', 'i', 0, 0})
	assert.Equal(t, "RuntimeCall", call.Name())

	// nesting deeper than the recursion guard fails cleanly
	deep := make([]byte, 0, 2*maxDepth+2)
	for i := 0; i <= maxDepth; i++ {
		deep = append(deep, 0, 0x04)
	}
	_, _, err := Decode(deep, call)
	assert.True(t, errors.Is(err, ErrDepthExceeded))
}

func TestValueAccessors(t *testing.T) {
	v := Composite(
		Named("who", Unnamed(Bytes([]byte{1, 2}))),
		Named("amount", Uint(5)),
	)

	who, ok := v.Field("who")
	require.True(t, ok)
	b, ok := who.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)

	amount, ok := v.At(1)
	require.True(t, ok)
	n, ok := amount.Uint64()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), n)

	_, ok = v.Field("missing")
	assert.False(t, ok)
	assert.Equal(t, `{who: {0x0102}, amount: 5}`, v.String())
}

func TestFieldOrAt(t *testing.T) {
	tuple := VariantOf("Transfer", Named("", Uint(1)), Named("", Uint(2)))
	v, ok := tuple.FieldOrAt("to", 1)
	require.True(t, ok)
	assert.True(t, Uint(2).Equal(v))
	_, ok = tuple.FieldOrAt("amount", 2)
	assert.False(t, ok)

	named := Composite(Named("from", Uint(1)), Named("to", Uint(2)))
	v, ok = named.FieldOrAt("to", 0)
	require.True(t, ok)
	assert.True(t, Uint(2).Equal(v))
	_, ok = named.FieldOrAt("amount", 1)
	assert.False(t, ok)

	v, ok = Tuple(Str("a"), Str("b")).FieldOrAt("x", 1)
	require.True(t, ok)
	assert.Equal(t, "b", v.Str)
}

func TestClone(t *testing.T) {
	v := Composite(
		Named("amount", Uint(7)),
		Named("data", Bytes([]byte{1, 2})),
		Named("items", Seq(Uint(1))),
	)
	c := v.Clone()
	v.Fields[0].Value.Int.SetInt64(8)
	v.Fields[1].Value.Raw[0] = 9
	v.Fields[2].Value.Items[0] = Uint(5)

	assert.True(t, Composite(
		Named("amount", Uint(7)),
		Named("data", Bytes([]byte{1, 2})),
		Named("items", Seq(Uint(1))),
	).Equal(c))
}
