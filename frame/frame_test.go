package frame

import (
	"math/big"
	"testing"

	"go-substrate-client/codec"
	"go-substrate-client/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldReader(t *testing.T) {
	who := types.AccountID{1, 2, 3}
	v := codec.VariantOf("Deposit",
		codec.Named("who", AccountValue(who)),
		codec.Named("amount", codec.Uint(42)),
		codec.Named("count", codec.Uint(7)),
	)

	var (
		account types.AccountID
		amount  *big.Int
		count   uint32
	)
	require.NoError(t, Fields(v).Account("who", &account).Balance("amount", &amount).Uint32("count", &count).Err())
	assert.Equal(t, who, account)
	assert.Equal(t, int64(42), amount.Int64())
	assert.Equal(t, uint32(7), count)
}

func TestFieldReaderTupleFields(t *testing.T) {
	from, to := types.AccountID{1}, types.AccountID{2}
	v := codec.VariantOf("Transfer",
		codec.Named("", AccountValue(from)),
		codec.Named("", AccountValue(to)),
		codec.Named("", codec.Uint(5)),
	)

	var (
		a, b   types.AccountID
		amount *big.Int
	)
	require.NoError(t, Fields(v).Account("from", &a).Account("to", &b).Balance("amount", &amount).Err())
	assert.Equal(t, from, a)
	assert.Equal(t, to, b)
	assert.Equal(t, int64(5), amount.Int64())

	err := Fields(codec.Unnamed(AccountValue(from))).Account("from", &a).Account("to", &b).Err()
	assert.Contains(t, err.Error(), "missing field to")

	// named values never fall back to position
	err = Fields(codec.Composite(codec.Named("who", AccountValue(from)))).Account("from", &a).Err()
	assert.Contains(t, err.Error(), "missing field from")
}

func TestFieldReaderStopsAtFirstFailure(t *testing.T) {
	v := codec.Composite(codec.Named("amount", codec.Str("lots")))

	var (
		amount  *big.Int
		account types.AccountID
	)
	err := Fields(v).Balance("amount", &amount).Account("who", &account).Err()
	assert.True(t, errors.Is(err, codec.ErrTypeMismatch))
	assert.Contains(t, err.Error(), "amount")

	err = Fields(v).Account("who", &account).Err()
	assert.Contains(t, err.Error(), "missing field who")

	var hash types.Hash
	err = Fields(codec.Composite(codec.Named("hash", codec.Bytes([]byte{1, 2})))).Hash("hash", &hash).Err()
	assert.True(t, errors.Is(err, types.ErrInvalidHash))
}

func TestValues(t *testing.T) {
	id := types.AccountID{0xbb}
	dest := MultiAddress(id)
	assert.Equal(t, "Id", dest.Variant)
	b, ok := dest.Fields[0].Value.AsBytes()
	require.True(t, ok)
	assert.Equal(t, id[:], b)

	zero, ok := Balance(nil).BigInt()
	require.True(t, ok)
	assert.Equal(t, 0, zero.Sign())

	_, err := ToBalance(codec.Int(-1))
	assert.True(t, errors.Is(err, codec.ErrTypeMismatch))
}
