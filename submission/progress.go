// Package submission submits signed extrinsics and follows them through the
// node's transaction pool until inclusion and finality
package submission

import (
	"context"
	"sync"

	"go-substrate-client/chainerr"
	"go-substrate-client/events"
	"go-substrate-client/extrinsic"
	"go-substrate-client/metadata"
	"go-substrate-client/rpc"
	"go-substrate-client/signer"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

type State uint8

const (
	Built State = iota
	Submitted
	InBlock
	Finalized
	Failed
	Dropped
	Invalid
)

var stateNames = []string{"built", "submitted", "in block", "finalized", "failed", "dropped", "invalid"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s >= Finalized
}

type (
	// TxProgress follows one submitted extrinsic. Its methods are not safe for
	// concurrent use, except State.
	TxProgress struct {
		node     rpc.Node
		registry *metadata.Registry
		xt       *extrinsic.Extrinsic
		watch    *rpc.Subscription[rpc.TransactionStatus]

		mu      sync.Mutex
		state   State
		inBlock *TxInBlock
		err     error
	}

	// TxInBlock is an extrinsic included in a block, with the events it emitted
	TxInBlock struct {
		BlockHash     types.Hash
		ExtrinsicHash types.Hash
		Index         uint32
		Events        []events.Record
		Metadata      *metadata.Metadata

		// Failure is set when the extrinsic was included but failed to dispatch
		Failure *chainerr.RuntimeError

		progress *TxProgress
	}
)

// Submit hands xt to the node and returns once the node accepted the watch.
// A pool rejection is returned as a *RejectedError.
func Submit(ctx context.Context, node rpc.Node, registry *metadata.Registry, xt *extrinsic.Extrinsic) (*TxProgress, error) {
	p := &TxProgress{node: node, registry: registry, xt: xt, state: Built}

	watch, err := node.SubmitAndWatchExtrinsic(ctx, xt.Bytes())
	if err != nil {
		return nil, rejection(err)
	}
	p.watch = watch
	p.setState(Submitted)
	return p, nil
}

// SignSubmitAndWatch builds and signs call, submits it and waits until it is
// in a block. When the extrinsic fails to dispatch it returns the TxInBlock
// together with a *chainerr.RuntimeError. The watch is released whenever an
// error is returned, including a cancelled ctx.
func SignSubmitAndWatch(ctx context.Context, node rpc.Node, registry *metadata.Registry, b *extrinsic.Builder, call *extrinsic.Call, s signer.Signer, params extrinsic.Params) (*TxInBlock, error) {
	if err := registry.Check(b.Snapshot()); err != nil {
		return nil, err
	}
	xt, err := b.Build(call, s, params)
	if err != nil {
		return nil, err
	}
	p, err := Submit(ctx, node, registry, xt)
	if err != nil {
		return nil, err
	}
	tx, err := p.WaitInBlock(ctx)
	if err != nil {
		_ = p.Unsubscribe()
	}
	return tx, err
}

func (p *TxProgress) Extrinsic() *extrinsic.Extrinsic {
	return p.xt
}

func (p *TxProgress) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *TxProgress) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Next waits for the next status notification and applies it. After a
// terminal state it returns the terminal error, or ErrWatchEnded.
func (p *TxProgress) Next(ctx context.Context) (rpc.TransactionStatus, error) {
	if p.State().Terminal() || p.err != nil {
		if p.err != nil {
			return rpc.TransactionStatus{}, p.err
		}
		return rpc.TransactionStatus{}, ErrWatchEnded
	}

	status, err := p.watch.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return status, err
		}
		p.err = errors.Wrapf(ErrWatchEnded, "last state %s: %v", p.State(), err)
		return status, p.err
	}
	return status, p.apply(ctx, status)
}

func (p *TxProgress) apply(ctx context.Context, status rpc.TransactionStatus) error {
	switch status.Kind {
	case rpc.StatusFuture, rpc.StatusReady, rpc.StatusBroadcast:
		return nil

	case rpc.StatusInBlock:
		tx, err := p.resolve(ctx, status.Block)
		if err != nil {
			return p.abort(err)
		}
		p.inBlock = tx
		if tx.Failure != nil {
			return p.terminate(Failed, tx.Failure)
		}
		p.setState(InBlock)
		return nil

	case rpc.StatusRetracted:
		p.inBlock = nil
		p.setState(Submitted)
		return nil

	case rpc.StatusFinalized:
		if p.inBlock == nil || p.inBlock.BlockHash != status.Block {
			tx, err := p.resolve(ctx, status.Block)
			if err != nil {
				return p.abort(err)
			}
			p.inBlock = tx
		}
		if p.inBlock.Failure != nil {
			return p.terminate(Failed, p.inBlock.Failure)
		}
		return p.terminate(Finalized, nil)

	case rpc.StatusInvalid:
		return p.terminate(Invalid, &RejectedError{State: Invalid, Reason: status.Kind.String()})
	}

	// usurped, dropped and finalityTimeout
	return p.terminate(Dropped, &RejectedError{State: Dropped, Reason: status.String()})
}

// terminate moves to a final state and releases the watch
func (p *TxProgress) terminate(s State, err error) error {
	p.setState(s)
	p.err = err
	_ = p.watch.Unsubscribe()
	return err
}

// abort stops following the extrinsic after err without a final state;
// later calls to Next return err
func (p *TxProgress) abort(err error) error {
	p.err = err
	_ = p.watch.Unsubscribe()
	return err
}

// resolve locates the extrinsic in block hash and isolates its events
func (p *TxProgress) resolve(ctx context.Context, hash types.Hash) (*TxInBlock, error) {
	snapshot := p.registry.Load()
	block, err := p.node.Block(ctx, hash)
	if err != nil {
		return nil, err
	}

	index := -1
	want := p.xt.Hash()
	for i, raw := range block.Extrinsics {
		if types.Hash(types.Blake2_256(raw)) == want {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, errors.Wrapf(ErrNotInBlock, "%s in %s", want.Hex(), hash.Hex())
	}

	records, err := events.Fetch(ctx, p.node, snapshot.Metadata, hash)
	if err != nil {
		return nil, p.registry.Classify(snapshot, err)
	}

	tx := &TxInBlock{
		BlockHash:     hash,
		ExtrinsicHash: want,
		Index:         uint32(index),
		Metadata:      snapshot.Metadata,
		progress:      p,
	}
	for _, r := range records {
		if !r.IsExtrinsic(tx.Index) {
			continue
		}
		tx.Events = append(tx.Events, r)
		if r.Pallet != "System" || r.Name != "ExtrinsicFailed" {
			continue
		}
		dispatchError, ok := r.Value.FieldOrAt("dispatch_error", 0)
		if !ok {
			return nil, errors.Wrap(metadata.ErrMalformed, "ExtrinsicFailed without dispatch_error")
		}
		if tx.Failure, err = chainerr.FromDispatchError(dispatchError, snapshot.Metadata); err != nil {
			return nil, p.registry.Classify(snapshot, err)
		}
	}
	return tx, nil
}

// WaitInBlock waits until the extrinsic is in a block
func (p *TxProgress) WaitInBlock(ctx context.Context) (*TxInBlock, error) {
	for {
		switch p.State() {
		case InBlock, Finalized:
			return p.inBlock, nil
		case Failed:
			return p.inBlock, p.err
		case Dropped, Invalid:
			return nil, p.err
		}
		if _, err := p.Next(ctx); err != nil && !p.State().Terminal() {
			return nil, err
		}
	}
}

// WaitFinalized waits until the block holding the extrinsic is finalized
func (p *TxProgress) WaitFinalized(ctx context.Context) (*TxInBlock, error) {
	for {
		switch p.State() {
		case Finalized:
			return p.inBlock, nil
		case Failed:
			return p.inBlock, p.err
		case Dropped, Invalid:
			return nil, p.err
		}
		if _, err := p.Next(ctx); err != nil && !p.State().Terminal() {
			return nil, err
		}
	}
}

// Unsubscribe stops watching the extrinsic at the node
func (p *TxProgress) Unsubscribe() error {
	return p.watch.Unsubscribe()
}

// WaitFinalized continues following the extrinsic until its block is final
func (t *TxInBlock) WaitFinalized(ctx context.Context) (*TxInBlock, error) {
	return t.progress.WaitFinalized(ctx)
}

// Unsubscribe stops watching the extrinsic at the node. Call it when
// WaitFinalized will not be used.
func (t *TxInBlock) Unsubscribe() error {
	return t.progress.Unsubscribe()
}

// Success returns the dispatch failure, if any
func (t *TxInBlock) Success() error {
	if t.Failure != nil {
		return t.Failure
	}
	return nil
}

// FindEvent returns the first event of type T emitted by the extrinsic. It
// returns false when there is none, and an error when a matching event does
// not decode as T.
func FindEvent[T any, P events.Decoder[T]](t *TxInBlock) (T, bool, error) {
	for _, r := range t.Events {
		v, ok, err := events.As[T, P](t.Metadata, r)
		if ok || err != nil {
			return v, ok, err
		}
	}
	var zero T
	return zero, false, nil
}

// FindEvents returns every event of type T emitted by the extrinsic
func FindEvents[T any, P events.Decoder[T]](t *TxInBlock) ([]T, error) {
	var out []T
	for _, r := range t.Events {
		v, ok, err := events.As[T, P](t.Metadata, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}
