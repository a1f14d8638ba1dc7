// Package frame holds helpers shared by the typed pallet packages under it
package frame

import (
	"context"
	"math/big"

	"go-substrate-client/codec"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

type (
	// StorageReader reads decoded storage items, as client.Client does
	StorageReader interface {
		Storage(ctx context.Context, pallet, item string, keys ...codec.Value) (codec.Value, bool, error)
	}

	// ConstantReader decodes pallet constants, as client.Client does
	ConstantReader interface {
		Constant(pallet, name string) (codec.Value, error)
	}

	// FieldReader copies named fields of a decoded value into Go values. When
	// the value has unnamed fields, reads take them in order instead. The
	// first failure sticks and later reads are skipped.
	FieldReader struct {
		v   codec.Value
		pos int
		err error
	}
)

// AccountValue is the value of an AccountId32 key or field
func AccountValue(id types.AccountID) codec.Value {
	return codec.Unnamed(codec.Bytes(id[:]))
}

// MultiAddress is the MultiAddress::Id value of id, the dest of most calls
func MultiAddress(id types.AccountID) codec.Value {
	return codec.VariantOf("Id", codec.Named("", AccountValue(id)))
}

// Balance is the value of a balance argument
func Balance(amount *big.Int) codec.Value {
	if amount == nil {
		amount = new(big.Int)
	}
	return codec.BigInt(amount)
}

func Fields(v codec.Value) *FieldReader {
	return &FieldReader{v: v}
}

func (f *FieldReader) field(name string) (codec.Value, bool) {
	if f.err != nil {
		return codec.Value{}, false
	}
	v, ok := f.v.FieldOrAt(name, f.pos)
	f.pos++
	if !ok {
		f.err = errors.Wrapf(codec.ErrTypeMismatch, "missing field %s", name)
	}
	return v, ok
}

func (f *FieldReader) Account(name string, dst *types.AccountID) *FieldReader {
	if v, ok := f.field(name); ok {
		*dst, f.err = ToAccount(v)
		f.err = errors.Wrap(f.err, name)
	}
	return f
}

func (f *FieldReader) Hash(name string, dst *types.Hash) *FieldReader {
	if v, ok := f.field(name); ok {
		b, isBytes := v.AsBytes()
		if !isBytes {
			f.err = errors.Wrapf(codec.ErrTypeMismatch, "%s is %s", name, v)
			return f
		}
		*dst, f.err = types.NewHash(b)
		f.err = errors.Wrap(f.err, name)
	}
	return f
}

func (f *FieldReader) Balance(name string, dst **big.Int) *FieldReader {
	if v, ok := f.field(name); ok {
		*dst, f.err = ToBalance(v)
		f.err = errors.Wrap(f.err, name)
	}
	return f
}

func (f *FieldReader) Uint32(name string, dst *uint32) *FieldReader {
	if v, ok := f.field(name); ok {
		n, isUint := v.Uint64()
		if !isUint || n > 1<<32-1 {
			f.err = errors.Wrapf(codec.ErrTypeMismatch, "%s is %s", name, v)
			return f
		}
		*dst = uint32(n)
	}
	return f
}

// Value copies the field as is
func (f *FieldReader) Value(name string, dst *codec.Value) *FieldReader {
	if v, ok := f.field(name); ok {
		*dst = v
	}
	return f
}

func (f *FieldReader) Err() error {
	return f.err
}

// ToAccount reads an AccountId32 value
func ToAccount(v codec.Value) (types.AccountID, error) {
	b, ok := v.AsBytes()
	if !ok {
		return types.AccountID{}, errors.Wrapf(codec.ErrTypeMismatch, "account is %s", v)
	}
	return types.NewAccountID(b)
}

// ToBalance reads an unsigned integer of any width
func ToBalance(v codec.Value) (*big.Int, error) {
	i, ok := v.BigInt()
	if !ok || i.Sign() < 0 {
		return nil, errors.Wrapf(codec.ErrTypeMismatch, "balance is %s", v)
	}
	return i, nil
}
