package extrinsic

import (
	"go-substrate-client/codec"
	"go-substrate-client/metadata"

	"github.com/pkg/errors"
)

// Call is an encoded pallet call, bound to the metadata generation it was
// encoded against. It is read only once built.
type Call struct {
	pallet      string
	name        string
	palletIndex uint8
	callIndex   uint8
	args        []codec.Value
	generation  uint64

	data []byte
}

// EncodeCall resolves pallet and call in the snapshot and encodes args in
// declaration order
func EncodeCall(s *metadata.Snapshot, pallet, call string, args ...codec.Value) (*Call, error) {
	p, ok := s.Metadata.Pallet(pallet)
	if !ok {
		return nil, errors.Wrapf(metadata.ErrUnknownModule, "%s", pallet)
	}
	variant, ok := s.Metadata.Call(pallet, call)
	if !ok {
		return nil, errors.Wrapf(metadata.ErrUnknownCall, "%s.%s", pallet, call)
	}

	fields := variant.Fields()
	if len(args) != len(fields) {
		return nil, errors.Wrapf(ErrArgCountMismatch, "%s.%s takes %d arguments, given %d", pallet, call, len(fields), len(args))
	}

	w := codec.NewWriter()
	_ = w.WriteByte(p.Index)
	_ = w.WriteByte(variant.Index())
	for i, field := range fields {
		if err := codec.EncodeTo(w, field.Type, args[i]); err != nil {
			return nil, &ArgError{Call: pallet + "." + call, Index: i, Name: field.Name, Err: err}
		}
	}

	return &Call{
		pallet:      pallet,
		name:        call,
		palletIndex: p.Index,
		callIndex:   variant.Index(),
		args:        cloneValues(args),
		generation:  s.Generation,
		data:        w.Bytes(),
	}, nil
}

// DecodeCall decodes call bytes produced by EncodeCall or taken from a block
func DecodeCall(s *metadata.Snapshot, data []byte) (*Call, error) {
	r := codec.NewReader(data)
	palletIndex, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	callIndex, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	p, ok := s.Metadata.PalletByIndex(palletIndex)
	if !ok || p.Calls == nil {
		return nil, errors.Wrapf(metadata.ErrUnknownModule, "pallet index %d", palletIndex)
	}
	variant, ok := p.Calls.VariantByIndex(callIndex)
	if !ok {
		return nil, errors.Wrapf(metadata.ErrUnknownCall, "%s call index %d", p.Name, callIndex)
	}

	args := make([]codec.Value, 0, len(variant.Fields))
	for _, field := range variant.Fields {
		v, err := codec.DecodeFrom(r, field.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s %s", p.Name, variant.Name, field.Name)
		}
		args = append(args, v)
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(codec.ErrTrailingBytes, "%d bytes after %s.%s", r.Len(), p.Name, variant.Name)
	}

	return &Call{
		pallet:      p.Name,
		name:        variant.Name,
		palletIndex: palletIndex,
		callIndex:   callIndex,
		args:        args,
		generation:  s.Generation,
		data:        append([]byte{}, data...),
	}, nil
}

func cloneValues(values []codec.Value) []codec.Value {
	out := make([]codec.Value, len(values))
	for i, v := range values {
		out[i] = v.Clone()
	}
	return out
}

func (c *Call) Pallet() string { return c.pallet }
func (c *Call) Name() string { return c.name }
func (c *Call) PalletIndex() uint8 { return c.palletIndex }
func (c *Call) CallIndex() uint8 { return c.callIndex }

// Generation is the metadata generation the call was encoded against
func (c *Call) Generation() uint64 { return c.generation }

// Args returns a copy of the call arguments in declaration order
func (c *Call) Args() []codec.Value {
	return cloneValues(c.args)
}

// Bytes returns the encoded call: pallet index, call index, arguments
func (c *Call) Bytes() []byte {
	return append([]byte{}, c.data...)
}
