package codec

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
)

type (
	// ValueKind tags the active member of a Value
	ValueKind uint8

	// Value is a dynamically typed runtime value. It is the decoded form of any
	// TypeDescriptor and the input to Encode.
	Value struct {
		Kind    ValueKind
		Bool    bool
		Int     *big.Int
		Str     string // str, and the single rune of a char
		Raw     []byte // u8 sequences and arrays
		Items   []Value
		Fields  []NamedValue
		Variant string
		Index   uint8
		Bits    []bool
	}

	NamedValue struct {
		Name  string
		Value Value
	}
)

const (
	KindInvalid ValueKind = iota
	KindBool
	KindChar
	KindStr
	KindInt
	KindBytes
	KindSequence
	KindTuple
	KindComposite
	KindVariant
	KindBits
)

func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func Char(r rune) Value {
	return Value{Kind: KindChar, Str: string(r)}
}

func Str(s string) Value {
	return Value{Kind: KindStr, Str: s}
}

func Uint(v uint64) Value {
	return Value{Kind: KindInt, Int: new(big.Int).SetUint64(v)}
}

func Int(v int64) Value {
	return Value{Kind: KindInt, Int: big.NewInt(v)}
}

func BigInt(v *big.Int) Value {
	return Value{Kind: KindInt, Int: new(big.Int).Set(v)}
}

func Bytes(b []byte) Value {
	raw := make([]byte, len(b))
	copy(raw, b)
	return Value{Kind: KindBytes, Raw: raw}
}

func Seq(items ...Value) Value {
	return Value{Kind: KindSequence, Items: items}
}

func Tuple(items ...Value) Value {
	return Value{Kind: KindTuple, Items: items}
}

func Named(name string, v Value) NamedValue {
	return NamedValue{Name: name, Value: v}
}

func Composite(fields ...NamedValue) Value {
	return Value{Kind: KindComposite, Fields: fields}
}

// Unnamed builds a composite whose fields have no names
func Unnamed(values ...Value) Value {
	fields := make([]NamedValue, len(values))
	for i, v := range values {
		fields[i] = NamedValue{Value: v}
	}
	return Value{Kind: KindComposite, Fields: fields}
}

// VariantOf selects a variant by name
func VariantOf(name string, fields ...NamedValue) Value {
	return Value{Kind: KindVariant, Variant: name, Fields: fields}
}

func BitsOf(bits ...bool) Value {
	return Value{Kind: KindBits, Bits: bits}
}

// Field returns the named field of a composite or variant
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// FieldOrAt returns the named field, or the i-th member when v carries no
// field names, as events declared with tuple fields do
func (v Value) FieldOrAt(name string, i int) (Value, bool) {
	if f, ok := v.Field(name); ok {
		return f, true
	}
	if !v.positional() {
		return Value{}, false
	}
	return v.At(i)
}

func (v Value) positional() bool {
	switch v.Kind {
	case KindTuple:
		return true
	case KindComposite, KindVariant:
		for _, f := range v.Fields {
			if f.Name != "" {
				return false
			}
		}
		return len(v.Fields) > 0
	}
	return false
}

// At returns the i-th positional member of a composite, variant, tuple or sequence
func (v Value) At(i int) (Value, bool) {
	switch v.Kind {
	case KindComposite, KindVariant:
		if i >= 0 && i < len(v.Fields) {
			return v.Fields[i].Value, true
		}
	case KindSequence, KindTuple:
		if i >= 0 && i < len(v.Items) {
			return v.Items[i], true
		}
	case KindBytes:
		if i >= 0 && i < len(v.Raw) {
			return Uint(uint64(v.Raw[i])), true
		}
	}
	return Value{}, false
}

// Len returns the number of positional members
func (v Value) Len() int {
	switch v.Kind {
	case KindComposite, KindVariant:
		return len(v.Fields)
	case KindSequence, KindTuple:
		return len(v.Items)
	case KindBytes:
		return len(v.Raw)
	case KindBits:
		return len(v.Bits)
	}
	return 0
}

// Unwrap strips single field composites, the shape of runtime newtypes such
// as AccountId32 or H256
func (v Value) Unwrap() Value {
	for v.Kind == KindComposite && len(v.Fields) == 1 {
		v = v.Fields[0].Value
	}
	return v
}

func (v Value) BigInt() (*big.Int, bool) {
	v = v.Unwrap()
	if v.Kind != KindInt || v.Int == nil {
		return nil, false
	}
	return new(big.Int).Set(v.Int), true
}

func (v Value) Uint64() (uint64, bool) {
	i, ok := v.BigInt()
	if !ok || !i.IsUint64() {
		return 0, false
	}
	return i.Uint64(), true
}

// AsBytes returns the bytes of a u8 sequence or array, unwrapping newtypes
func (v Value) AsBytes() ([]byte, bool) {
	v = v.Unwrap()
	switch v.Kind {
	case KindBytes:
		out := make([]byte, len(v.Raw))
		copy(out, v.Raw)
		return out, true
	case KindSequence:
		out := make([]byte, 0, len(v.Items))
		for _, item := range v.Items {
			b, ok := item.Uint64()
			if !ok || b > 0xff {
				return nil, false
			}
			out = append(out, byte(b))
		}
		return out, true
	}
	return nil, false
}

// Clone returns a deep copy sharing no memory with v
func (v Value) Clone() Value {
	out := v
	if v.Int != nil {
		out.Int = new(big.Int).Set(v.Int)
	}
	if v.Raw != nil {
		out.Raw = append([]byte{}, v.Raw...)
	}
	if v.Bits != nil {
		out.Bits = append([]bool{}, v.Bits...)
	}
	if v.Items != nil {
		out.Items = make([]Value, len(v.Items))
		for i, item := range v.Items {
			out.Items[i] = item.Clone()
		}
	}
	if v.Fields != nil {
		out.Fields = make([]NamedValue, len(v.Fields))
		for i, f := range v.Fields {
			out.Fields[i] = NamedValue{Name: f.Name, Value: f.Value.Clone()}
		}
	}
	return out
}

// Equal reports deep equality. Integers compare by value, u8 sequences
// compare equal whether held as Raw or as Items, and variants compare by name
// when one is set.
func (v Value) Equal(o Value) bool {
	if v.Kind == KindBytes || o.Kind == KindBytes {
		a, okA := v.AsBytes()
		b, okB := o.AsBytes()
		return okA && okB && v.Kind != KindComposite && o.Kind != KindComposite && bytes.Equal(a, b)
	}
	if v.Kind != o.Kind {
		return false
	}

	switch v.Kind {
	case KindInvalid:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindChar, KindStr:
		return v.Str == o.Str
	case KindInt:
		if v.Int == nil || o.Int == nil {
			return v.Int == o.Int
		}
		return v.Int.Cmp(o.Int) == 0
	case KindSequence, KindTuple:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindVariant:
		if v.Variant != o.Variant || (v.Variant == "" && v.Index != o.Index) {
			return false
		}
		return fieldsEqual(v.Fields, o.Fields)
	case KindComposite:
		return fieldsEqual(v.Fields, o.Fields)
	case KindBits:
		if len(v.Bits) != len(o.Bits) {
			return false
		}
		for i := range v.Bits {
			if v.Bits[i] != o.Bits[i] {
				return false
			}
		}
		return true
	}
	return false
}

func fieldsEqual(a, b []NamedValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.Kind {
	case KindBool:
		fmt.Fprintf(sb, "%t", v.Bool)
	case KindChar:
		fmt.Fprintf(sb, "'%s'", v.Str)
	case KindStr:
		fmt.Fprintf(sb, "%q", v.Str)
	case KindInt:
		sb.WriteString(v.Int.String())
	case KindBytes:
		fmt.Fprintf(sb, "0x%x", v.Raw)
	case KindSequence, KindTuple:
		open, close := "[", "]"
		if v.Kind == KindTuple {
			open, close = "(", ")"
		}
		sb.WriteString(open)
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.format(sb)
		}
		sb.WriteString(close)
	case KindComposite, KindVariant:
		if v.Kind == KindVariant {
			sb.WriteString(v.Variant)
		}
		sb.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			if f.Name != "" {
				sb.WriteString(f.Name + ": ")
			}
			f.Value.format(sb)
		}
		sb.WriteString("}")
	case KindBits:
		sb.WriteString("bits[")
		for _, b := range v.Bits {
			if b {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteString("]")
	default:
		sb.WriteString("<invalid>")
	}
}
