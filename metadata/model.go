package metadata

import (
	"go-substrate-client/codec"
	"go-substrate-client/types"
)

type (
	// Metadata is an immutable, indexed view of a runtime's V14 metadata
	Metadata struct {
		Version     uint8
		Pallets     []*Pallet
		Extrinsic   ExtrinsicInfo
		RuntimeType *codec.TypeDescriptor
		Fingerprint types.Hash

		types          map[uint32]*codec.TypeDescriptor
		palletsByName  map[string]*Pallet
		palletsByIndex map[uint8]*Pallet
	}

	Pallet struct {
		Name          string
		Index         uint8
		StoragePrefix string
		Storage       []*StorageEntry
		Calls         *codec.TypeDescriptor
		Events        *codec.TypeDescriptor
		Errors        *codec.TypeDescriptor
		Constants     []*Constant
	}

	StorageEntry struct {
		Prefix   string
		Name     string
		Modifier StorageModifier
		Kind     StorageKind
		Hashers  []Hasher
		Key      *codec.TypeDescriptor // nil for plain entries
		Value    *codec.TypeDescriptor
		Default  []byte
		Docs     []string
	}

	Constant struct {
		Name  string
		Type  *codec.TypeDescriptor
		Value []byte
		Docs  []string
	}

	ExtrinsicInfo struct {
		Type             *codec.TypeDescriptor
		Version          uint8
		SignedExtensions []SignedExtension

		// generic parameters of the extrinsic type, nil when not declared
		Address   *codec.TypeDescriptor
		Call      *codec.TypeDescriptor
		Signature *codec.TypeDescriptor
		Extra     *codec.TypeDescriptor
	}

	SignedExtension struct {
		Identifier       string
		Type             *codec.TypeDescriptor
		AdditionalSigned *codec.TypeDescriptor
	}

	// PalletVariant is a call, event or error of a pallet
	PalletVariant struct {
		Pallet  *Pallet
		Variant *codec.Variant
	}

	StorageModifier uint8
	StorageKind     uint8
	Hasher          uint8
)

const (
	Optional StorageModifier = iota
	Default
)

const (
	StoragePlain StorageKind = iota
	StorageMap
)

const (
	Blake2_128 Hasher = iota
	Blake2_256
	Blake2_128Concat
	Twox128
	Twox256
	Twox64Concat
	Identity
)

const (
	magic            uint32 = 0x6174656d // "meta" little endian
	SupportedVersion uint8  = 14
)

var hasherNames = []string{
	"Blake2_128", "Blake2_256", "Blake2_128Concat",
	"Twox128", "Twox256", "Twox64Concat", "Identity",
}

func (h Hasher) String() string {
	if int(h) < len(hasherNames) {
		return hasherNames[h]
	}
	return "Unknown"
}

func (m StorageModifier) String() string {
	if m == Default {
		return "Default"
	}
	return "Optional"
}

func (v PalletVariant) Name() string {
	return v.Variant.Name
}

func (v PalletVariant) Index() uint8 {
	return v.Variant.Index
}

func (v PalletVariant) Fields() []codec.Field {
	return v.Variant.Fields
}

func (v PalletVariant) Docs() []string {
	return v.Variant.Docs
}
