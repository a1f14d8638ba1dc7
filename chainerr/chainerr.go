// Package chainerr maps module and error indices reported by the chain to
// named pallet errors
package chainerr

import (
	"fmt"
	"strings"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"

	"github.com/pkg/errors"
)

type (
	// PalletError is a named pallet error. It is a plain value and keeps no
	// reference to the metadata it was resolved from.
	PalletError struct {
		Pallet      string
		Error       string
		Description []string
	}

	// RuntimeError is a dispatch failure reported by the chain. Module is set
	// for pallet errors; any other dispatch error is described by Kind and,
	// for nested errors such as Token, Detail.
	RuntimeError struct {
		Module *PalletError
		Kind   string
		Detail string
	}
)

// Decode resolves a module and error index against md. It fails with
// metadata.ErrUnknownError when either index is absent.
func Decode(moduleIndex, errorIndex uint8, md *metadata.Metadata) (PalletError, error) {
	if md == nil {
		return PalletError{}, errors.Wrap(metadata.ErrUnknownError, "no metadata")
	}
	v, ok := md.Error(moduleIndex, errorIndex)
	if !ok {
		return PalletError{}, errors.Wrapf(metadata.ErrUnknownError, "module %d error %d", moduleIndex, errorIndex)
	}
	return PalletError{
		Pallet:      v.Pallet.Name,
		Error:       v.Name(),
		Description: append([]string{}, v.Docs()...),
	}, nil
}

// FromDispatchError converts a decoded DispatchError value. The module
// error index may be a single byte or the leading byte of a fixed array.
func FromDispatchError(v codec.Value, md *metadata.Metadata) (*RuntimeError, error) {
	if v.Kind != codec.KindVariant {
		return nil, errors.Wrapf(codec.ErrTypeMismatch, "dispatch error is a %d value", v.Kind)
	}
	if v.Variant != "Module" {
		re := &RuntimeError{Kind: v.Variant}
		if len(v.Fields) == 1 {
			if inner := v.Fields[0].Value.Unwrap(); inner.Kind == codec.KindVariant {
				re.Detail = inner.Variant
			}
		}
		return re, nil
	}

	module := v
	if _, ok := v.Field("index"); !ok && len(v.Fields) == 1 {
		module = v.Fields[0].Value
	}
	moduleIndex, err := indexByte(module, "index")
	if err != nil {
		return nil, err
	}
	errorIndex, err := indexByte(module, "error")
	if err != nil {
		return nil, err
	}

	pe, err := Decode(moduleIndex, errorIndex, md)
	if err != nil {
		return nil, err
	}
	return &RuntimeError{Module: &pe, Kind: "Module"}, nil
}

func indexByte(module codec.Value, name string) (uint8, error) {
	field, ok := module.Field(name)
	if !ok {
		return 0, errors.Wrapf(codec.ErrTypeMismatch, "module error without %s", name)
	}
	if raw, ok := field.AsBytes(); ok {
		if len(raw) == 0 {
			return 0, errors.Wrapf(codec.ErrTypeMismatch, "empty module error %s", name)
		}
		return raw[0], nil
	}
	n, ok := field.Uint64()
	if !ok || n > 0xff {
		return 0, errors.Wrapf(codec.ErrTypeMismatch, "module error %s is not a byte", name)
	}
	return uint8(n), nil
}

func (e PalletError) String() string {
	s := e.Pallet + "." + e.Error
	if len(e.Description) > 0 {
		s += ": " + strings.TrimSpace(strings.Join(e.Description, " "))
	}
	return s
}

func (e *RuntimeError) Error() string {
	if e.Module != nil {
		return "runtime error: " + e.Module.String()
	}
	if e.Detail != "" {
		return fmt.Sprintf("runtime error: %s(%s)", e.Kind, e.Detail)
	}
	return "runtime error: " + e.Kind
}

// Is matches another RuntimeError naming the same pallet error or kind
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	if e.Module != nil || t.Module != nil {
		return e.Module != nil && t.Module != nil &&
			e.Module.Pallet == t.Module.Pallet && e.Module.Error == t.Module.Error
	}
	return e.Kind == t.Kind && (t.Detail == "" || e.Detail == t.Detail)
}
