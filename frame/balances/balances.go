// Package balances provides typed access to the Balances pallet
package balances

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

const Pallet = "Balances"

// BalanceLock is a lock on part of an account's balance
type BalanceLock struct {
	ID      [8]byte
	Amount  *big.Int
	Reasons string
}

// TransferCall moves amount to dest. Runtimes that renamed the call to
// transfer_allow_death get that call.
func TransferCall(s *metadata.Snapshot, dest types.AccountID, amount *big.Int) (*extrinsic.Call, error) {
	name := "transfer"
	if _, ok := s.Metadata.Call(Pallet, "transfer_allow_death"); ok {
		name = "transfer_allow_death"
	}
	return extrinsic.EncodeCall(s, Pallet, name, frame.MultiAddress(dest), frame.Balance(amount))
}

// TransferKeepAliveCall is TransferCall that fails rather than reaping the sender
func TransferKeepAliveCall(s *metadata.Snapshot, dest types.AccountID, amount *big.Int) (*extrinsic.Call, error) {
	return extrinsic.EncodeCall(s, Pallet, "transfer_keep_alive", frame.MultiAddress(dest), frame.Balance(amount))
}

func TransferAllCall(s *metadata.Snapshot, dest types.AccountID, keepAlive bool) (*extrinsic.Call, error) {
	return extrinsic.EncodeCall(s, Pallet, "transfer_all", frame.MultiAddress(dest), codec.Bool(keepAlive))
}

func TotalIssuance(ctx context.Context, r frame.StorageReader) (*big.Int, error) {
	v, _, err := r.Storage(ctx, Pallet, "TotalIssuance")
	if err != nil {
		return nil, err
	}
	total, err := frame.ToBalance(v)
	return total, errors.Wrap(err, "Balances.TotalIssuance")
}

// Locks reads the balance locks of who, in storage order
func Locks(ctx context.Context, r frame.StorageReader, who types.AccountID) ([]BalanceLock, error) {
	v, _, err := r.Storage(ctx, Pallet, "Locks", frame.AccountValue(who))
	if err != nil {
		return nil, err
	}

	v = v.Unwrap()
	locks := make([]BalanceLock, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item, _ := v.At(i)
		var (
			lock    BalanceLock
			reasons codec.Value
		)
		if err := frame.Fields(item).Balance("amount", &lock.Amount).Value("reasons", &reasons).Err(); err != nil {
			return nil, errors.Wrapf(err, "Balances.Locks %d", i)
		}
		id, _ := item.Field("id")
		b, ok := id.AsBytes()
		if !ok || len(b) != len(lock.ID) {
			return nil, errors.Wrapf(codec.ErrTypeMismatch, "Balances.Locks %d id is %s", i, id)
		}
		copy(lock.ID[:], b)
		lock.Reasons = reasons.Variant
		locks = append(locks, lock)
	}
	return locks, nil
}

// ExistentialDeposit is the minimum balance that keeps an account alive
func ExistentialDeposit(r frame.ConstantReader) (*big.Int, error) {
	v, err := r.Constant(Pallet, "ExistentialDeposit")
	if err != nil {
		return nil, err
	}
	amount, err := frame.ToBalance(v)
	return amount, errors.Wrap(err, "Balances.ExistentialDeposit")
}
