package codec

import (
	"fmt"
	"strings"
)

type (
	// TypeKind is the shape class of a TypeDescriptor
	TypeKind uint8

	// Primitive enumerates the fixed primitives in the order used by the metadata type registry
	Primitive uint8

	// TypeDescriptor describes how a value of a runtime type is laid out on the wire.
	// Descriptors coming from metadata reference each other through pointers, so
	// recursive runtime types (a call that carries other calls) form cycles.
	TypeDescriptor struct {
		ID        uint32
		Path      []string
		Params    []TypeParam
		Kind      TypeKind
		Primitive Primitive
		Elem      *TypeDescriptor // compact, sequence and array element
		Len       uint32          // array length
		Fields    []Field
		Variants  []Variant
		Tuple     []*TypeDescriptor
		BitStore  *TypeDescriptor
		BitOrder  *TypeDescriptor
		Docs      []string
	}

	TypeParam struct {
		Name string
		Type *TypeDescriptor // nil when the parameter is unused
	}

	Field struct {
		Name     string
		TypeName string
		Type     *TypeDescriptor
		Docs     []string
	}

	Variant struct {
		Name   string
		Index  uint8
		Fields []Field
		Docs   []string
	}
)

const (
	TypeComposite TypeKind = iota
	TypeVariant
	TypeSequence
	TypeArray
	TypeTuple
	TypePrimitive
	TypeCompact
	TypeBitSequence
)

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

var (
	typeKindNames = map[TypeKind]string{
		TypeComposite:   "composite",
		TypeVariant:     "variant",
		TypeSequence:    "sequence",
		TypeArray:       "array",
		TypeTuple:       "tuple",
		TypePrimitive:   "primitive",
		TypeCompact:     "compact",
		TypeBitSequence: "bitsequence",
	}

	primitiveNames = []string{
		"bool", "char", "str",
		"u8", "u16", "u32", "u64", "u128", "u256",
		"i8", "i16", "i32", "i64", "i128", "i256",
	}

	primitiveWidths = []int{1, 4, 0, 1, 2, 4, 8, 16, 32, 1, 2, 4, 8, 16, 32}
)

func (k TypeKind) String() string {
	if name, ok := typeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("primitive(%d)", uint8(p))
}

// Valid reports whether p is one of the known primitives
func (p Primitive) Valid() bool {
	return int(p) < len(primitiveNames)
}

// IsInteger reports whether p is a fixed width integer
func (p Primitive) IsInteger() bool {
	return p >= PrimU8 && p <= PrimI256
}

// Signed reports whether p is a signed integer
func (p Primitive) Signed() bool {
	return p >= PrimI8 && p <= PrimI256
}

// Width returns the encoded width in bytes of a fixed size primitive, 0 for str
func (p Primitive) Width() int {
	if int(p) < len(primitiveWidths) {
		return primitiveWidths[p]
	}
	return 0
}

func NewPrimitive(p Primitive) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypePrimitive, Primitive: p}
}

func NewCompact(inner *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeCompact, Elem: inner}
}

func NewSequence(elem *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeSequence, Elem: elem}
}

func NewArray(length uint32, elem *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeArray, Len: length, Elem: elem}
}

func NewComposite(fields ...Field) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeComposite, Fields: fields}
}

func NewVariant(variants ...Variant) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeVariant, Variants: variants}
}

func NewTuple(elems ...*TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeTuple, Tuple: elems}
}

// NewBitSequence builds a bit sequence descriptor; order must be a type whose
// path ends in Lsb0 or Msb0.
func NewBitSequence(store, order *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: TypeBitSequence, BitStore: store, BitOrder: order}
}

// WithPath sets the descriptor path and returns the descriptor
func (t *TypeDescriptor) WithPath(path ...string) *TypeDescriptor {
	t.Path = path
	return t
}

// Name returns a short human readable name. It never recurses more than one level
// so it is safe on cyclic descriptors.
func (t *TypeDescriptor) Name() string {
	if t == nil {
		return "<nil>"
	}
	if len(t.Path) > 0 {
		return strings.Join(t.Path, "::")
	}
	switch t.Kind {
	case TypePrimitive:
		return t.Primitive.String()
	case TypeCompact:
		return "Compact<" + shallowName(t.Elem) + ">"
	case TypeSequence:
		return "Vec<" + shallowName(t.Elem) + ">"
	case TypeArray:
		return fmt.Sprintf("[%s; %d]", shallowName(t.Elem), t.Len)
	case TypeTuple:
		names := make([]string, 0, len(t.Tuple))
		for _, elem := range t.Tuple {
			names = append(names, shallowName(elem))
		}
		return "(" + strings.Join(names, ", ") + ")"
	}
	return t.Kind.String()
}

func shallowName(t *TypeDescriptor) string {
	if t == nil {
		return "<nil>"
	}
	if len(t.Path) > 0 {
		return t.Path[len(t.Path)-1]
	}
	if t.Kind == TypePrimitive {
		return t.Primitive.String()
	}
	return t.Kind.String()
}

// VariantByIndex returns the variant whose discriminant is index
func (t *TypeDescriptor) VariantByIndex(index uint8) (*Variant, bool) {
	for i := range t.Variants {
		if t.Variants[i].Index == index {
			return &t.Variants[i], true
		}
	}
	return nil, false
}

// VariantByName returns the variant called name
func (t *TypeDescriptor) VariantByName(name string) (*Variant, bool) {
	for i := range t.Variants {
		if t.Variants[i].Name == name {
			return &t.Variants[i], true
		}
	}
	return nil, false
}

// Param returns the type bound to the generic parameter called name
func (t *TypeDescriptor) Param(name string) (*TypeDescriptor, bool) {
	for _, p := range t.Params {
		if p.Name == name && p.Type != nil {
			return p.Type, true
		}
	}
	return nil, false
}

// IsU8 reports whether t is the u8 primitive
func (t *TypeDescriptor) IsU8() bool {
	return t != nil && t.Kind == TypePrimitive && t.Primitive == PrimU8
}

// IsEmpty reports whether values of t always encode to zero bytes
func (t *TypeDescriptor) IsEmpty() bool {
	return isZeroSized(t, 0)
}

func isZeroSized(t *TypeDescriptor, depth int) bool {
	if t == nil || depth > maxDepth {
		return false
	}
	switch t.Kind {
	case TypeTuple:
		for _, elem := range t.Tuple {
			if !isZeroSized(elem, depth+1) {
				return false
			}
		}
		return true
	case TypeComposite:
		for _, field := range t.Fields {
			if !isZeroSized(field.Type, depth+1) {
				return false
			}
		}
		return true
	case TypeArray:
		return t.Len == 0 || isZeroSized(t.Elem, depth+1)
	}
	return false
}
