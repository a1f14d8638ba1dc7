package metadata

import (
	"go-substrate-client/codec"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

// Hash applies the hasher to an encoded key
func (h Hasher) Hash(encoded []byte) []byte {
	switch h {
	case Blake2_128:
		return types.Blake2_128(encoded)
	case Blake2_256:
		sum := types.Blake2_256(encoded)
		return sum[:]
	case Blake2_128Concat:
		return append(types.Blake2_128(encoded), encoded...)
	case Twox128:
		return types.Twox128(encoded)
	case Twox256:
		return types.Twox256(encoded)
	case Twox64Concat:
		return append(types.Twox64(encoded), encoded...)
	}
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return out
}

// KeyPrefix returns twox128(pallet prefix) ++ twox128(item name)
func (e *StorageEntry) KeyPrefix() []byte {
	return append(types.Twox128([]byte(e.Prefix)), types.Twox128([]byte(e.Name))...)
}

// keyTypes returns the descriptor of each map key, in hasher order
func (e *StorageEntry) keyTypes() []*codec.TypeDescriptor {
	if e.Kind != StorageMap {
		return nil
	}
	if len(e.Hashers) == 1 {
		return []*codec.TypeDescriptor{e.Key}
	}
	if e.Key.Kind == codec.TypeTuple && len(e.Key.Tuple) == len(e.Hashers) {
		return e.Key.Tuple
	}
	return nil
}

// StorageKey computes the storage key for the entry. A map entry given fewer
// keys than it has hashers yields the prefix shared by all matching keys.
func (e *StorageEntry) StorageKey(keys ...codec.Value) ([]byte, error) {
	key := e.KeyPrefix()
	if e.Kind == StoragePlain {
		if len(keys) != 0 {
			return nil, errors.Wrapf(ErrStorageKeyMismatch, "%s.%s is a plain value", e.Prefix, e.Name)
		}
		return key, nil
	}

	keyTypes := e.keyTypes()
	if keyTypes == nil {
		return nil, errors.Wrapf(ErrMalformed, "%s.%s has %d hashers for key %s", e.Prefix, e.Name, len(e.Hashers), e.Key.Name())
	}
	if len(keys) > len(keyTypes) {
		return nil, errors.Wrapf(ErrStorageKeyMismatch, "%s.%s takes %d keys, given %d", e.Prefix, e.Name, len(keyTypes), len(keys))
	}

	for i, k := range keys {
		encoded, err := codec.Encode(keyTypes[i], k)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s key %d", e.Prefix, e.Name, i)
		}
		key = append(key, e.Hashers[i].Hash(encoded)...)
	}
	return key, nil
}

// Decode decodes a stored value. A missing value (nil raw) decodes the
// entry's default when the modifier is Default and reports false otherwise.
func (e *StorageEntry) Decode(raw []byte) (codec.Value, bool, error) {
	if raw == nil {
		if e.Modifier != Default {
			return codec.Value{}, false, nil
		}
		raw = e.Default
	}
	v, _, err := codec.Decode(raw, e.Value)
	if err != nil {
		return codec.Value{}, false, errors.Wrapf(err, "%s.%s", e.Prefix, e.Name)
	}
	return v, true, nil
}
