// Package rpctest provides an in-memory rpc.Node for tests
package rpctest

import (
	"context"
	"encoding/hex"
	"sync"

	"go-substrate-client/rpc"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

const subscriptionBuffer = 64

// Node is a scripted rpc.Node. Fields are read under the node's lock, so tests
// configure them before use or through the setter methods.
type Node struct {
	mu sync.Mutex

	Genesis   types.Hash
	Version   rpc.RuntimeVersion
	Blob      []byte
	Finalized types.Hash
	Nonces    map[types.AccountID]uint64

	// OnSubmit decides how the node reacts to a submitted extrinsic: the
	// statuses it sends, in order, or an error returned from the submit call
	OnSubmit func(extrinsic []byte) ([]rpc.TransactionStatus, error)
	// CloseWatch ends status streams after the scripted statuses
	CloseWatch bool

	// Err, when set, fails every call with a transport error
	Err error

	storage      map[string][]byte
	blocks       map[types.Hash]*rpc.Block
	hashes       map[uint64]types.Hash
	submitted    [][]byte
	unsubscribed map[string]int

	storageSubs []*rpc.Subscription[rpc.StorageChangeSet]
	versionSubs []*rpc.Subscription[rpc.RuntimeVersion]
}

var _ rpc.Node = (*Node)(nil)

func New() *Node {
	return &Node{
		Nonces:       make(map[types.AccountID]uint64),
		storage:      make(map[string][]byte),
		blocks:       make(map[types.Hash]*rpc.Block),
		hashes:       make(map[uint64]types.Hash),
		unsubscribed: make(map[string]int),
	}
}

func storageKey(key []byte, at *types.Hash) string {
	if at == nil {
		return hex.EncodeToString(key)
	}
	return at.Hex() + "/" + hex.EncodeToString(key)
}

// SetStorage stores value under key at block at, or at the best block when at is nil
func (n *Node) SetStorage(at *types.Hash, key, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.storage[storageKey(key, at)] = value
}

// AddBlock registers a block under hash
func (n *Node) AddBlock(hash types.Hash, block *rpc.Block) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocks[hash] = block
	n.hashes[block.Header.Number] = hash
}

// SetMetadata replaces the published metadata and runtime version
func (n *Node) SetMetadata(blob []byte, version rpc.RuntimeVersion) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Blob = blob
	n.Version = version
}

// Submitted returns the extrinsics handed to SubmitAndWatchExtrinsic
func (n *Node) Submitted() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte{}, n.submitted...)
}

// Unsubscribed counts the remote unsubscribe calls per method
func (n *Node) Unsubscribed(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unsubscribed[method]
}

// StorageSubscriptions counts the storage subscriptions opened so far
func (n *Node) StorageSubscriptions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.storageSubs)
}

// PushStorage sends a change set to every open storage subscription
func (n *Node) PushStorage(ctx context.Context, changes rpc.StorageChangeSet) error {
	n.mu.Lock()
	subs := append([]*rpc.Subscription[rpc.StorageChangeSet]{}, n.storageSubs...)
	n.mu.Unlock()
	for _, sub := range subs {
		if err := sub.Send(ctx, changes); err != nil && !errors.Is(err, rpc.ErrSubscriptionClosed) {
			return err
		}
	}
	return nil
}

// PushRuntimeVersion sends a version to every open runtime version subscription
func (n *Node) PushRuntimeVersion(ctx context.Context, version rpc.RuntimeVersion) error {
	n.mu.Lock()
	subs := append([]*rpc.Subscription[rpc.RuntimeVersion]{}, n.versionSubs...)
	n.mu.Unlock()
	for _, sub := range subs {
		if err := sub.Send(ctx, version); err != nil && !errors.Is(err, rpc.ErrSubscriptionClosed) {
			return err
		}
	}
	return nil
}

// CloseSubscriptions ends every open stream from the node side
func (n *Node) CloseSubscriptions(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.storageSubs {
		sub.Close(err)
	}
	for _, sub := range n.versionSubs {
		sub.Close(err)
	}
}

func (n *Node) fail(method string) error {
	if n.Err != nil {
		return &rpc.TransportError{Method: method, Err: n.Err}
	}
	return nil
}

func (n *Node) countUnsubscribe(method string) func() error {
	return func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.unsubscribed[method]++
		return nil
	}
}

func (n *Node) GenesisHash(ctx context.Context) (types.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("chain_getBlockHash"); err != nil {
		return types.Hash{}, err
	}
	return n.Genesis, nil
}

func (n *Node) BlockHash(ctx context.Context, number uint64) (types.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("chain_getBlockHash"); err != nil {
		return types.Hash{}, err
	}
	if number == 0 {
		return n.Genesis, nil
	}
	hash, ok := n.hashes[number]
	if !ok {
		return types.Hash{}, &rpc.Error{Code: -32602, Message: "unknown block"}
	}
	return hash, nil
}

func (n *Node) FinalizedHead(ctx context.Context) (types.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("chain_getFinalizedHead"); err != nil {
		return types.Hash{}, err
	}
	return n.Finalized, nil
}

func (n *Node) Header(ctx context.Context, hash *types.Hash) (*rpc.Header, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("chain_getHeader"); err != nil {
		return nil, err
	}
	at := n.Finalized
	if hash != nil {
		at = *hash
	}
	block, ok := n.blocks[at]
	if !ok {
		return nil, &rpc.Error{Code: -32602, Message: "unknown block"}
	}
	header := block.Header
	return &header, nil
}

func (n *Node) Block(ctx context.Context, hash types.Hash) (*rpc.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("chain_getBlock"); err != nil {
		return nil, err
	}
	block, ok := n.blocks[hash]
	if !ok {
		return nil, &rpc.Error{Code: -32602, Message: "unknown block"}
	}
	return block, nil
}

func (n *Node) RuntimeVersion(ctx context.Context, at *types.Hash) (rpc.RuntimeVersion, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("state_getRuntimeVersion"); err != nil {
		return rpc.RuntimeVersion{}, err
	}
	return n.Version, nil
}

func (n *Node) Metadata(ctx context.Context, at *types.Hash) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("state_getMetadata"); err != nil {
		return nil, err
	}
	return append([]byte{}, n.Blob...), nil
}

func (n *Node) Storage(ctx context.Context, key []byte, at *types.Hash) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("state_getStorage"); err != nil {
		return nil, err
	}
	if value, ok := n.storage[storageKey(key, at)]; ok {
		return value, nil
	}
	return n.storage[storageKey(key, nil)], nil
}

func (n *Node) AccountNextIndex(ctx context.Context, account types.AccountID) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("system_accountNextIndex"); err != nil {
		return 0, err
	}
	return n.Nonces[account], nil
}

func (n *Node) SubmitAndWatchExtrinsic(ctx context.Context, extrinsic []byte) (*rpc.Subscription[rpc.TransactionStatus], error) {
	n.mu.Lock()
	if err := n.fail("author_submitAndWatchExtrinsic"); err != nil {
		n.mu.Unlock()
		return nil, err
	}
	n.submitted = append(n.submitted, append([]byte{}, extrinsic...))
	onSubmit, closeWatch := n.OnSubmit, n.CloseWatch
	n.mu.Unlock()

	var statuses []rpc.TransactionStatus
	if onSubmit != nil {
		var err error
		if statuses, err = onSubmit(extrinsic); err != nil {
			return nil, err
		}
	}

	sub := rpc.NewSubscription[rpc.TransactionStatus](len(statuses)+1, n.countUnsubscribe("author_unwatchExtrinsic"))
	for _, status := range statuses {
		_ = sub.Send(ctx, status)
	}
	if closeWatch {
		sub.Close(nil)
	}
	return sub, nil
}

func (n *Node) SubscribeStorage(ctx context.Context, keys [][]byte) (*rpc.Subscription[rpc.StorageChangeSet], error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("state_subscribeStorage"); err != nil {
		return nil, err
	}
	sub := rpc.NewSubscription[rpc.StorageChangeSet](subscriptionBuffer, n.countUnsubscribe("state_unsubscribeStorage"))
	n.storageSubs = append(n.storageSubs, sub)
	return sub, nil
}

func (n *Node) SubscribeRuntimeVersion(ctx context.Context) (*rpc.Subscription[rpc.RuntimeVersion], error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail("state_subscribeRuntimeVersion"); err != nil {
		return nil, err
	}
	sub := rpc.NewSubscription[rpc.RuntimeVersion](subscriptionBuffer, n.countUnsubscribe("state_unsubscribeRuntimeVersion"))
	n.versionSubs = append(n.versionSubs, sub)
	return sub, nil
}

// Include returns an OnSubmit hook that places each submitted extrinsic at
// index of block number under hash, stores eventsRaw under eventsKey at that
// block and reports statuses. Lower indices hold filler extrinsics.
func Include(n *Node, hash types.Hash, number uint64, index int, eventsKey, eventsRaw []byte, statuses ...rpc.TransactionStatus) func([]byte) ([]rpc.TransactionStatus, error) {
	return func(extrinsic []byte) ([]rpc.TransactionStatus, error) {
		block := &rpc.Block{Header: rpc.Header{Number: number}}
		for i := 0; i < index; i++ {
			block.Extrinsics = append(block.Extrinsics, []byte{0x04, byte(i)})
		}
		block.Extrinsics = append(block.Extrinsics, append([]byte{}, extrinsic...))
		n.AddBlock(hash, block)
		n.SetStorage(&hash, eventsKey, eventsRaw)
		return statuses, nil
	}
}

// Status is a status notification about block hash
func Status(kind rpc.StatusKind, hash types.Hash) rpc.TransactionStatus {
	return rpc.TransactionStatus{Kind: kind, Block: hash}
}
