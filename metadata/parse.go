package metadata

import (
	"go-substrate-client/codec"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

// parser resolves type ids to descriptors while reading. A referenced id gets
// a placeholder that is filled in when its definition is read, so forward and
// recursive references both resolve to the same pointer.
type parser struct {
	r       *codec.Reader
	types   map[uint32]*codec.TypeDescriptor
	defined map[uint32]bool
}

// Parse decodes a V14 metadata blob prefixed with the "meta" magic
func Parse(raw []byte) (*Metadata, error) {
	p := &parser{
		r:       codec.NewReader(raw),
		types:   make(map[uint32]*codec.TypeDescriptor),
		defined: make(map[uint32]bool),
	}

	m, err := p.parse()
	if err != nil {
		if errors.Is(err, ErrVersionUnsupported) || errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	m.Fingerprint = types.Blake2_256(raw)
	return m, nil
}

func (p *parser) parse() (*Metadata, error) {
	prefix, err := p.r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if prefix != magic {
		return nil, errors.Wrapf(ErrMalformed, "magic %#x", prefix)
	}
	version, err := p.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != SupportedVersion {
		return nil, errors.Wrapf(ErrVersionUnsupported, "version %d", version)
	}

	if err := p.parseTypes(); err != nil {
		return nil, errors.Wrap(err, "type registry")
	}

	m := &Metadata{
		Version:        version,
		types:          p.types,
		palletsByName:  make(map[string]*Pallet),
		palletsByIndex: make(map[uint8]*Pallet),
	}

	count, err := p.r.ReadLength()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		pallet, err := p.parsePallet()
		if err != nil {
			return nil, errors.Wrapf(err, "pallet %d", i)
		}
		if _, ok := m.palletsByName[pallet.Name]; ok {
			return nil, errors.Wrapf(ErrMalformed, "duplicate pallet %s", pallet.Name)
		}
		if _, ok := m.palletsByIndex[pallet.Index]; ok {
			return nil, errors.Wrapf(ErrMalformed, "duplicate pallet index %d", pallet.Index)
		}
		m.Pallets = append(m.Pallets, pallet)
		m.palletsByName[pallet.Name] = pallet
		m.palletsByIndex[pallet.Index] = pallet
	}

	if m.Extrinsic, err = p.parseExtrinsic(); err != nil {
		return nil, errors.Wrap(err, "extrinsic")
	}
	if m.RuntimeType, err = p.typeRef(); err != nil {
		return nil, err
	}

	if p.r.Len() != 0 {
		return nil, errors.Wrapf(ErrMalformed, "%d trailing bytes", p.r.Len())
	}
	for id := range p.types {
		if !p.defined[id] {
			return nil, errors.Wrapf(ErrMalformed, "type %d referenced but not defined", id)
		}
	}
	return m, nil
}

func (p *parser) desc(id uint32) *codec.TypeDescriptor {
	t, ok := p.types[id]
	if !ok {
		t = &codec.TypeDescriptor{ID: id}
		p.types[id] = t
	}
	return t
}

func (p *parser) typeRef() (*codec.TypeDescriptor, error) {
	id, err := p.r.ReadCompactUint32()
	if err != nil {
		return nil, err
	}
	return p.desc(id), nil
}

func (p *parser) optionalTypeRef() (*codec.TypeDescriptor, error) {
	some, err := p.r.ReadOption()
	if err != nil || !some {
		return nil, err
	}
	return p.typeRef()
}

func (p *parser) optionalString() (string, error) {
	some, err := p.r.ReadOption()
	if err != nil || !some {
		return "", err
	}
	return p.r.ReadString()
}

func (p *parser) strings() ([]string, error) {
	n, err := p.r.ReadLength()
	if err != nil {
		return nil, err
	}
	if n > p.r.Len() {
		return nil, codec.ErrUnexpectedEOF
	}
	var out []string
	for i := 0; i < n; i++ {
		s, err := p.r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// count reads a vector length; every element occupies at least one byte
func (p *parser) count() (int, error) {
	n, err := p.r.ReadLength()
	if err != nil {
		return 0, err
	}
	if n > p.r.Len() {
		return 0, errors.Wrapf(codec.ErrUnexpectedEOF, "%d elements in %d bytes", n, p.r.Len())
	}
	return n, nil
}

func (p *parser) parseTypes() error {
	n, err := p.count()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		id, err := p.r.ReadCompactUint32()
		if err != nil {
			return err
		}
		if p.defined[id] {
			return errors.Wrapf(ErrMalformed, "type %d defined twice", id)
		}
		if err := p.parseType(p.desc(id)); err != nil {
			return errors.Wrapf(err, "type %d", id)
		}
		p.defined[id] = true
	}
	return nil
}

func (p *parser) parseType(t *codec.TypeDescriptor) error {
	var err error
	if t.Path, err = p.strings(); err != nil {
		return err
	}

	params, err := p.count()
	if err != nil {
		return err
	}
	for i := 0; i < params; i++ {
		name, err := p.r.ReadString()
		if err != nil {
			return err
		}
		ty, err := p.optionalTypeRef()
		if err != nil {
			return err
		}
		t.Params = append(t.Params, codec.TypeParam{Name: name, Type: ty})
	}

	if err := p.parseDef(t); err != nil {
		return err
	}
	t.Docs, err = p.strings()
	return err
}

func (p *parser) parseDef(t *codec.TypeDescriptor) error {
	tag, err := p.r.ReadByte()
	if err != nil {
		return err
	}
	t.Kind = codec.TypeKind(tag)

	switch t.Kind {
	case codec.TypeComposite:
		t.Fields, err = p.parseFields()
	case codec.TypeVariant:
		t.Variants, err = p.parseVariants()
	case codec.TypeSequence, codec.TypeCompact:
		t.Elem, err = p.typeRef()
	case codec.TypeArray:
		if t.Len, err = p.r.ReadUint32(); err == nil {
			t.Elem, err = p.typeRef()
		}
	case codec.TypeTuple:
		var n int
		if n, err = p.count(); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			elem, err := p.typeRef()
			if err != nil {
				return err
			}
			t.Tuple = append(t.Tuple, elem)
		}
	case codec.TypePrimitive:
		var prim byte
		if prim, err = p.r.ReadByte(); err != nil {
			return err
		}
		t.Primitive = codec.Primitive(prim)
		if !t.Primitive.Valid() {
			return errors.Wrapf(ErrMalformed, "primitive %d", prim)
		}
	case codec.TypeBitSequence:
		if t.BitStore, err = p.typeRef(); err == nil {
			t.BitOrder, err = p.typeRef()
		}
	default:
		return errors.Wrapf(ErrMalformed, "type definition tag %d", tag)
	}
	return err
}

func (p *parser) parseFields() ([]codec.Field, error) {
	n, err := p.count()
	if err != nil {
		return nil, err
	}
	fields := make([]codec.Field, 0, n)
	for i := 0; i < n; i++ {
		var f codec.Field
		if f.Name, err = p.optionalString(); err != nil {
			return nil, err
		}
		if f.Type, err = p.typeRef(); err != nil {
			return nil, err
		}
		if f.TypeName, err = p.optionalString(); err != nil {
			return nil, err
		}
		if f.Docs, err = p.strings(); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (p *parser) parseVariants() ([]codec.Variant, error) {
	n, err := p.count()
	if err != nil {
		return nil, err
	}
	variants := make([]codec.Variant, 0, n)
	seen := make(map[uint8]bool, n)
	for i := 0; i < n; i++ {
		var v codec.Variant
		if v.Name, err = p.r.ReadString(); err != nil {
			return nil, err
		}
		if v.Fields, err = p.parseFields(); err != nil {
			return nil, err
		}
		if v.Index, err = p.r.ReadByte(); err != nil {
			return nil, err
		}
		if v.Docs, err = p.strings(); err != nil {
			return nil, err
		}
		if seen[v.Index] {
			return nil, errors.Wrapf(ErrMalformed, "duplicate variant index %d", v.Index)
		}
		seen[v.Index] = true
		variants = append(variants, v)
	}
	return variants, nil
}

func (p *parser) parsePallet() (*Pallet, error) {
	var (
		pallet = &Pallet{}
		err    error
	)
	if pallet.Name, err = p.r.ReadString(); err != nil {
		return nil, err
	}

	hasStorage, err := p.r.ReadOption()
	if err != nil {
		return nil, err
	}
	if hasStorage {
		if pallet.StoragePrefix, err = p.r.ReadString(); err != nil {
			return nil, err
		}
		n, err := p.count()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			entry, err := p.parseStorageEntry(pallet.StoragePrefix)
			if err != nil {
				return nil, errors.Wrapf(err, "storage entry %d", i)
			}
			pallet.Storage = append(pallet.Storage, entry)
		}
	}

	if pallet.Calls, err = p.optionalTypeRef(); err != nil {
		return nil, err
	}
	if pallet.Events, err = p.optionalTypeRef(); err != nil {
		return nil, err
	}

	n, err := p.count()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		c := &Constant{}
		if c.Name, err = p.r.ReadString(); err != nil {
			return nil, err
		}
		if c.Type, err = p.typeRef(); err != nil {
			return nil, err
		}
		if c.Value, err = p.r.ReadBytes(); err != nil {
			return nil, err
		}
		if c.Docs, err = p.strings(); err != nil {
			return nil, err
		}
		pallet.Constants = append(pallet.Constants, c)
	}

	if pallet.Errors, err = p.optionalTypeRef(); err != nil {
		return nil, err
	}
	if pallet.Index, err = p.r.ReadByte(); err != nil {
		return nil, err
	}
	return pallet, nil
}

func (p *parser) parseStorageEntry(prefix string) (*StorageEntry, error) {
	var (
		entry = &StorageEntry{Prefix: prefix}
		err   error
	)
	if entry.Name, err = p.r.ReadString(); err != nil {
		return nil, err
	}
	modifier, err := p.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if modifier > uint8(Default) {
		return nil, errors.Wrapf(ErrMalformed, "storage modifier %d", modifier)
	}
	entry.Modifier = StorageModifier(modifier)

	kind, err := p.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch StorageKind(kind) {
	case StoragePlain:
		entry.Kind = StoragePlain
		if entry.Value, err = p.typeRef(); err != nil {
			return nil, err
		}
	case StorageMap:
		entry.Kind = StorageMap
		n, err := p.count()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			h, err := p.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if h > uint8(Identity) {
				return nil, errors.Wrapf(ErrMalformed, "storage hasher %d", h)
			}
			entry.Hashers = append(entry.Hashers, Hasher(h))
		}
		if entry.Key, err = p.typeRef(); err != nil {
			return nil, err
		}
		if entry.Value, err = p.typeRef(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(ErrMalformed, "storage entry kind %d", kind)
	}

	if entry.Default, err = p.r.ReadBytes(); err != nil {
		return nil, err
	}
	if entry.Docs, err = p.strings(); err != nil {
		return nil, err
	}
	return entry, nil
}

func (p *parser) parseExtrinsic() (ExtrinsicInfo, error) {
	var (
		info ExtrinsicInfo
		err  error
	)
	if info.Type, err = p.typeRef(); err != nil {
		return info, err
	}
	if info.Version, err = p.r.ReadByte(); err != nil {
		return info, err
	}

	n, err := p.count()
	if err != nil {
		return info, err
	}
	for i := 0; i < n; i++ {
		var ext SignedExtension
		if ext.Identifier, err = p.r.ReadString(); err != nil {
			return info, err
		}
		if ext.Type, err = p.typeRef(); err != nil {
			return info, err
		}
		if ext.AdditionalSigned, err = p.typeRef(); err != nil {
			return info, err
		}
		info.SignedExtensions = append(info.SignedExtensions, ext)
	}

	info.Address, _ = info.Type.Param("Address")
	info.Call, _ = info.Type.Param("Call")
	info.Signature, _ = info.Type.Param("Signature")
	info.Extra, _ = info.Type.Param("Extra")
	return info, nil
}
