// Package metadatatest builds V14 metadata blobs for tests
package metadatatest

import (
	"sort"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"
)

type (
	// TypeDef writes the definition part of a registry type
	TypeDef func(w *codec.Writer)

	Param struct {
		Name string
		Type *uint32
	}

	Field struct {
		Name     string
		Type     uint32
		TypeName string
		Docs     []string
	}

	Variant struct {
		Name   string
		Index  uint8
		Fields []Field
		Docs   []string
	}

	StorageEntry struct {
		Name     string
		Modifier metadata.StorageModifier
		Hashers  []metadata.Hasher // empty for plain entries
		Key      uint32
		Value    uint32
		Default  []byte
		Docs     []string
	}

	Constant struct {
		Name  string
		Type  uint32
		Value []byte
		Docs  []string
	}

	Pallet struct {
		Name          string
		Index         uint8
		StoragePrefix string // no storage section when empty
		Storage       []StorageEntry
		Calls         *uint32
		Events        *uint32
		Errors        *uint32
		Constants     []Constant
	}

	SignedExtension struct {
		Identifier string
		Type       uint32
		Additional uint32
	}

	// Builder accumulates a type registry, pallets and extrinsic information
	// and serializes them as a metadata blob
	Builder struct {
		Version          uint8
		Pallets          []Pallet
		ExtrinsicType    uint32
		ExtrinsicVersion uint8
		SignedExtensions []SignedExtension
		RuntimeType      uint32

		types  map[uint32][]byte
		nextID uint32
	}
)

func NewBuilder() *Builder {
	return &Builder{
		Version:          metadata.SupportedVersion,
		ExtrinsicVersion: 4,
		types:            make(map[uint32][]byte),
	}
}

// Ref returns a pointer to id, for optional type references
func Ref(id uint32) *uint32 {
	return &id
}

// Reserve allocates an id whose definition is supplied later with Define
func (b *Builder) Reserve() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// Type registers a new type and returns its id
func (b *Builder) Type(path []string, def TypeDef, params ...Param) uint32 {
	id := b.Reserve()
	b.Define(id, path, def, params...)
	return id
}

// Define sets the definition of a reserved id
func (b *Builder) Define(id uint32, path []string, def TypeDef, params ...Param) {
	w := codec.NewWriter()
	writeStrings(w, path)
	w.WriteCompact(uint64(len(params)))
	for _, p := range params {
		w.WriteString(p.Name)
		writeOptionalID(w, p.Type)
	}
	def(w)
	writeStrings(w, nil)
	b.types[id] = w.Bytes()
}

func Primitive(p codec.Primitive) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypePrimitive))
		_ = w.WriteByte(byte(p))
	}
}

func Compact(inner uint32) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeCompact))
		w.WriteCompact(uint64(inner))
	}
}

func Sequence(elem uint32) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeSequence))
		w.WriteCompact(uint64(elem))
	}
}

func Array(length uint32, elem uint32) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeArray))
		w.WriteUint32(length)
		w.WriteCompact(uint64(elem))
	}
}

func Tuple(elems ...uint32) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeTuple))
		w.WriteCompact(uint64(len(elems)))
		for _, e := range elems {
			w.WriteCompact(uint64(e))
		}
	}
}

func BitSequence(store, order uint32) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeBitSequence))
		w.WriteCompact(uint64(store))
		w.WriteCompact(uint64(order))
	}
}

func Composite(fields ...Field) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeComposite))
		writeFields(w, fields)
	}
}

func Variants(variants ...Variant) TypeDef {
	return func(w *codec.Writer) {
		_ = w.WriteByte(byte(codec.TypeVariant))
		w.WriteCompact(uint64(len(variants)))
		for _, v := range variants {
			w.WriteString(v.Name)
			writeFields(w, v.Fields)
			_ = w.WriteByte(v.Index)
			writeStrings(w, v.Docs)
		}
	}
}

// Build serializes the builder as a metadata blob
func (b *Builder) Build() []byte {
	w := codec.NewWriter()
	_, _ = w.Write([]byte("meta"))
	_ = w.WriteByte(b.Version)

	ids := make([]uint32, 0, len(b.types))
	for id := range b.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w.WriteCompact(uint64(len(ids)))
	for _, id := range ids {
		w.WriteCompact(uint64(id))
		_, _ = w.Write(b.types[id])
	}

	w.WriteCompact(uint64(len(b.Pallets)))
	for _, p := range b.Pallets {
		writePallet(w, p)
	}

	w.WriteCompact(uint64(b.ExtrinsicType))
	_ = w.WriteByte(b.ExtrinsicVersion)
	w.WriteCompact(uint64(len(b.SignedExtensions)))
	for _, se := range b.SignedExtensions {
		w.WriteString(se.Identifier)
		w.WriteCompact(uint64(se.Type))
		w.WriteCompact(uint64(se.Additional))
	}
	w.WriteCompact(uint64(b.RuntimeType))
	return w.Bytes()
}

func writePallet(w *codec.Writer, p Pallet) {
	w.WriteString(p.Name)

	if p.StoragePrefix == "" {
		w.WriteBool(false)
	} else {
		w.WriteBool(true)
		w.WriteString(p.StoragePrefix)
		w.WriteCompact(uint64(len(p.Storage)))
		for _, e := range p.Storage {
			w.WriteString(e.Name)
			_ = w.WriteByte(byte(e.Modifier))
			if len(e.Hashers) == 0 {
				_ = w.WriteByte(byte(metadata.StoragePlain))
				w.WriteCompact(uint64(e.Value))
			} else {
				_ = w.WriteByte(byte(metadata.StorageMap))
				w.WriteCompact(uint64(len(e.Hashers)))
				for _, h := range e.Hashers {
					_ = w.WriteByte(byte(h))
				}
				w.WriteCompact(uint64(e.Key))
				w.WriteCompact(uint64(e.Value))
			}
			w.WriteBytes(e.Default)
			writeStrings(w, e.Docs)
		}
	}

	writeOptionalID(w, p.Calls)
	writeOptionalID(w, p.Events)

	w.WriteCompact(uint64(len(p.Constants)))
	for _, c := range p.Constants {
		w.WriteString(c.Name)
		w.WriteCompact(uint64(c.Type))
		w.WriteBytes(c.Value)
		writeStrings(w, c.Docs)
	}

	writeOptionalID(w, p.Errors)
	_ = w.WriteByte(p.Index)
}

func writeFields(w *codec.Writer, fields []Field) {
	w.WriteCompact(uint64(len(fields)))
	for _, f := range fields {
		writeOptionalString(w, f.Name)
		w.WriteCompact(uint64(f.Type))
		writeOptionalString(w, f.TypeName)
		writeStrings(w, f.Docs)
	}
}

func writeStrings(w *codec.Writer, ss []string) {
	w.WriteCompact(uint64(len(ss)))
	for _, s := range ss {
		w.WriteString(s)
	}
}

func writeOptionalString(w *codec.Writer, s string) {
	if s == "" {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	w.WriteString(s)
}

func writeOptionalID(w *codec.Writer, id *uint32) {
	if id == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	w.WriteCompact(uint64(*id))
}
