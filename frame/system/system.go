// Package system provides typed access to the System pallet
package system

import (
	"context"
	"math/big"

	"go-substrate-client/codec"
	"go-substrate-client/extrinsic"
	"go-substrate-client/frame"
	"go-substrate-client/metadata"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

const Pallet = "System"

type (
	AccountData struct {
		Free     *big.Int
		Reserved *big.Int
		Frozen   *big.Int
		Flags    *big.Int
	}

	AccountInfo struct {
		Nonce       uint32
		Consumers   uint32
		Providers   uint32
		Sufficients uint32
		Data        AccountData
	}
)

// Account reads System.Account for id. Unknown accounts read as the zero
// account info.
func Account(ctx context.Context, r frame.StorageReader, id types.AccountID) (AccountInfo, error) {
	v, _, err := r.Storage(ctx, Pallet, "Account", frame.AccountValue(id))
	if err != nil {
		return AccountInfo{}, err
	}

	var (
		info AccountInfo
		data codec.Value
	)
	err = frame.Fields(v).
		Uint32("nonce", &info.Nonce).
		Uint32("consumers", &info.Consumers).
		Uint32("providers", &info.Providers).
		Uint32("sufficients", &info.Sufficients).
		Value("data", &data).
		Err()
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "System.Account")
	}

	// Flags is absent before the balances holds and freezes rework
	fields := frame.Fields(data).Balance("free", &info.Data.Free).Balance("reserved", &info.Data.Reserved)
	if _, ok := data.Field("frozen"); ok {
		fields.Balance("frozen", &info.Data.Frozen)
	}
	if _, ok := data.Field("flags"); ok {
		fields.Balance("flags", &info.Data.Flags)
	}
	if err := fields.Err(); err != nil {
		return AccountInfo{}, errors.Wrap(err, "System.Account data")
	}
	return info, nil
}

// Number reads the current block number
func Number(ctx context.Context, r frame.StorageReader) (uint32, error) {
	v, _, err := r.Storage(ctx, Pallet, "Number")
	if err != nil {
		return 0, err
	}
	n, ok := v.Uint64()
	if !ok {
		return 0, errors.Wrapf(codec.ErrTypeMismatch, "System.Number is %s", v)
	}
	return uint32(n), nil
}

// BlockHash reads the hash of a recent block from System.BlockHash
func BlockHash(ctx context.Context, r frame.StorageReader, number uint32) (types.Hash, error) {
	v, _, err := r.Storage(ctx, Pallet, "BlockHash", codec.Uint(uint64(number)))
	if err != nil {
		return types.Hash{}, err
	}
	b, ok := v.AsBytes()
	if !ok {
		return types.Hash{}, errors.Wrapf(codec.ErrTypeMismatch, "System.BlockHash is %s", v)
	}
	return types.NewHash(b)
}

// BlockHashCount is the number of recent block hashes the runtime keeps, the
// upper bound of an era period
func BlockHashCount(r frame.ConstantReader) (uint32, error) {
	v, err := r.Constant(Pallet, "BlockHashCount")
	if err != nil {
		return 0, err
	}
	n, ok := v.Uint64()
	if !ok {
		return 0, errors.Wrapf(codec.ErrTypeMismatch, "System.BlockHashCount is %s", v)
	}
	return uint32(n), nil
}

// SS58Prefix is the address prefix the chain declares
func SS58Prefix(r frame.ConstantReader) (types.SS58Prefix, error) {
	v, err := r.Constant(Pallet, "SS58Prefix")
	if err != nil {
		return 0, err
	}
	n, ok := v.Uint64()
	if !ok || n > 1<<14-1 {
		return 0, errors.Wrapf(codec.ErrTypeMismatch, "System.SS58Prefix is %s", v)
	}
	return types.SS58Prefix(n), nil
}

func Remark(s *metadata.Snapshot, data []byte) (*extrinsic.Call, error) {
	return extrinsic.EncodeCall(s, Pallet, "remark", codec.Bytes(data))
}

// RemarkWithEvent is a remark that emits Remarked
func RemarkWithEvent(s *metadata.Snapshot, data []byte) (*extrinsic.Call, error) {
	return extrinsic.EncodeCall(s, Pallet, "remark_with_event", codec.Bytes(data))
}
