package chainerr

import (
	"testing"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"
	"go-substrate-client/metadata/metadatatest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchError(t *testing.T, md *metadata.Metadata, raw []byte) codec.Value {
	failed, ok := md.EventByName("System", "ExtrinsicFailed")
	require.True(t, ok)
	v, _, err := codec.Decode(raw, failed.Fields()[0].Type)
	require.NoError(t, err)
	return v
}

func TestDecode(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())

	pe, err := Decode(metadatatest.BalancesIndex, 2, md)
	require.NoError(t, err)
	assert.Equal(t, PalletError{
		Pallet:      "Balances",
		Error:       "InsufficientBalance",
		Description: []string{"Balance too low to send value"},
	}, pe)
	assert.Equal(t, "Balances.InsufficientBalance: Balance too low to send value", pe.String())

	_, err = Decode(metadatatest.BalancesIndex, 200, md)
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))
	_, err = Decode(77, 0, md)
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))
	_, err = Decode(0, 0, nil)
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))
}

func TestDecodeFollowsCurrentIndices(t *testing.T) {
	opts := metadatatest.DefaultOptions()
	opts.BalancesIndex = 9
	md := metadatatest.Parsed(t, opts)

	_, err := Decode(metadatatest.BalancesIndex, 2, md)
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))

	pe, err := Decode(9, 2, md)
	require.NoError(t, err)
	assert.Equal(t, "InsufficientBalance", pe.Error)
}

func TestFromDispatchErrorModule(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())

	v := dispatchError(t, md, []byte{3, metadatatest.BalancesIndex, 2, 0, 0, 0})
	re, err := FromDispatchError(v, md)
	require.NoError(t, err)
	require.NotNil(t, re.Module)
	assert.Equal(t, "Balances", re.Module.Pallet)
	assert.Equal(t, "InsufficientBalance", re.Module.Error)
	assert.Equal(t, "runtime error: Balances.InsufficientBalance: Balance too low to send value", re.Error())

	target := &RuntimeError{Module: &PalletError{Pallet: "Balances", Error: "InsufficientBalance"}}
	assert.True(t, errors.Is(errors.Wrap(re, "transfer"), target))
	assert.False(t, errors.Is(re, &RuntimeError{Kind: "BadOrigin"}))
}

func TestFromDispatchErrorLegacyModule(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())

	v := codec.VariantOf("Module",
		codec.Named("index", codec.Uint(uint64(metadatatest.SystemIndex))),
		codec.Named("error", codec.Uint(0)),
	)
	re, err := FromDispatchError(v, md)
	require.NoError(t, err)
	assert.Equal(t, "System", re.Module.Pallet)
}

func TestFromDispatchErrorOther(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())

	re, err := FromDispatchError(dispatchError(t, md, []byte{2}), md)
	require.NoError(t, err)
	assert.Nil(t, re.Module)
	assert.Equal(t, "BadOrigin", re.Kind)
	assert.Equal(t, "runtime error: BadOrigin", re.Error())

	re, err = FromDispatchError(dispatchError(t, md, []byte{7, 0}), md)
	require.NoError(t, err)
	assert.Equal(t, "Token", re.Kind)
	assert.Equal(t, "FundsUnavailable", re.Detail)
	assert.Equal(t, "runtime error: Token(FundsUnavailable)", re.Error())
	assert.True(t, errors.Is(re, &RuntimeError{Kind: "Token"}))
}

func TestFromDispatchErrorUnknownModule(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())

	_, err := FromDispatchError(dispatchError(t, md, []byte{3, 77, 0, 0, 0, 0}), md)
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))

	_, err = FromDispatchError(codec.Uint(1), md)
	assert.True(t, errors.Is(err, codec.ErrTypeMismatch))
}
