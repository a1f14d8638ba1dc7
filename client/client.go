// Package client ties the node connection, the metadata registry and the
// extrinsic, submission and event packages together
package client

import (
	"bytes"
	"context"
	"sync"

	"go-substrate-client/codec"
	"go-substrate-client/events"
	"go-substrate-client/extrinsic"
	"go-substrate-client/internal/messages"
	"go-substrate-client/metadata"
	"go-substrate-client/rpc"
	"go-substrate-client/signer"
	"go-substrate-client/submission"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

const component = "client"

var ErrGenesisMismatch = errors.New("client: node genesis does not match the expected chain")

type (
	// MetadataCache stores metadata blobs by spec version. Get returns nil
	// when the version is not cached.
	MetadataCache interface {
		GetMetadata(specVersion uint32) ([]byte, error)
		PutMetadata(specVersion uint32, blob []byte) error
	}

	Options struct {
		// Cache, when set, is consulted before fetching metadata from the node
		Cache MetadataCache
		// Genesis, when set, must match the node's genesis hash
		Genesis []byte
		// Mortality is the era period of extrinsics signed by
		// SignSubmitAndWatch, 0 for immortal extrinsics
		Mortality uint64
	}

	Client struct {
		node      rpc.Node
		registry  *metadata.Registry
		cache     MetadataCache
		genesis   types.Hash
		mortality uint64

		mu      sync.Mutex // serializes metadata updates
		version rpc.RuntimeVersion
	}
)

// New connects the client to node: it reads the genesis hash and loads the
// metadata of the current runtime
func New(ctx context.Context, node rpc.Node, opts Options) (*Client, error) {
	genesis, err := node.GenesisHash(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Genesis != nil && !bytes.Equal(opts.Genesis, genesis[:]) {
		return nil, errors.Wrapf(ErrGenesisMismatch, "node genesis %s", genesis.Hex())
	}

	c := &Client{
		node:      node,
		registry:  metadata.NewRegistry(),
		cache:     opts.Cache,
		genesis:   genesis,
		mortality: opts.Mortality,
	}
	if _, err := c.UpdateMetadata(ctx); err != nil {
		return nil, err
	}

	messages.NewMessage(messages.LOG_LEVEL_SUCCESS, "", nil, messages.CLIENT_BOOTSTRAPPED, c.RuntimeVersion().SpecName, genesis.Hex()).ConsoleLog()
	return c, nil
}

func (c *Client) Node() rpc.Node {
	return c.node
}

func (c *Client) Registry() *metadata.Registry {
	return c.registry
}

func (c *Client) Genesis() types.Hash {
	return c.genesis
}

// Metadata returns the current metadata
func (c *Client) Metadata() *metadata.Metadata {
	return c.registry.Load().Metadata
}

func (c *Client) RuntimeVersion() rpc.RuntimeVersion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// UpdateMetadata reads the node's runtime version and installs its metadata
// when it differs from the current snapshot
func (c *Client) UpdateMetadata(ctx context.Context) (*metadata.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	version, err := c.node.RuntimeVersion(ctx, nil)
	if err != nil {
		return nil, err
	}
	return c.load(ctx, version)
}

// load installs the metadata of version. Callers hold c.mu.
func (c *Client) load(ctx context.Context, version rpc.RuntimeVersion) (*metadata.Snapshot, error) {
	want := metadata.Version{SpecVersion: version.SpecVersion, TransactionVersion: version.TransactionVersion}
	if current := c.registry.Load(); current != nil && current.Version == want {
		c.version = version
		return current, nil
	}

	if blob := c.cached(version.SpecVersion); blob != nil {
		snapshot, err := c.registry.Replace(blob, want)
		if err == nil {
			c.version = version
			messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CLIENT_METADATA_CACHE_HIT, version.SpecVersion).ConsoleLog()
			return snapshot, nil
		}
		messages.NewMessage(messages.LOG_LEVEL_WARNING, component, err, messages.CLIENT_METADATA_CACHE_FAILED, version.SpecVersion).ConsoleLog()
	}

	blob, err := c.node.Metadata(ctx, nil)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.registry.Replace(blob, want)
	if err != nil {
		return nil, err
	}
	c.version = version

	if c.cache != nil {
		if err := c.cache.PutMetadata(version.SpecVersion, blob); err != nil {
			messages.NewMessage(messages.LOG_LEVEL_WARNING, component, err, messages.ROCKSDB_FAILED_TO_PUT, version.SpecVersion).ConsoleLog()
		}
	}
	messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CLIENT_METADATA_LOADED, version.SpecVersion, snapshot.Generation).ConsoleLog()
	return snapshot, nil
}

func (c *Client) cached(specVersion uint32) []byte {
	if c.cache == nil {
		return nil
	}
	blob, err := c.cache.GetMetadata(specVersion)
	if err != nil {
		messages.NewMessage(messages.LOG_LEVEL_WARNING, component, err, messages.CLIENT_METADATA_CACHE_FAILED, specVersion).ConsoleLog()
		return nil
	}
	return blob
}

// WatchRuntimeUpgrades follows runtime version notifications and installs
// the new metadata on every upgrade. It blocks until ctx ends or the node
// closes the stream.
func (c *Client) WatchRuntimeUpgrades(ctx context.Context) error {
	sub, err := c.node.SubscribeRuntimeVersion(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			messages.NewMessage(messages.LOG_LEVEL_WARNING, component, err, messages.CONNECTION_FAILED_UNSUBSCRIBE, "runtime version").ConsoleLog()
		}
	}()

	for {
		version, err := sub.Next(ctx)
		if err != nil {
			messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CLIENT_UPGRADE_WATCH_ENDED).ConsoleLog()
			return err
		}

		c.mu.Lock()
		previous := c.version
		if previous.SpecVersion != version.SpecVersion || previous.TransactionVersion != version.TransactionVersion {
			messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CLIENT_RUNTIME_UPGRADE, previous.SpecVersion, version.SpecVersion).ConsoleLog()
			if _, err := c.load(ctx, version); err != nil {
				messages.NewMessage(messages.LOG_LEVEL_ERROR, component, err, messages.CLIENT_FAILED_TO_UPDATE_META, version.SpecVersion).ConsoleLog()
			}
		}
		c.mu.Unlock()
	}
}

// Storage reads a storage item at the best block. Map items take one key per
// hasher. The returned bool is false when an optional item holds no value.
func (c *Client) Storage(ctx context.Context, pallet, item string, keys ...codec.Value) (codec.Value, bool, error) {
	return c.StorageAt(ctx, nil, pallet, item, keys...)
}

func (c *Client) StorageAt(ctx context.Context, at *types.Hash, pallet, item string, keys ...codec.Value) (codec.Value, bool, error) {
	snapshot := c.registry.Load()
	entry, ok := snapshot.Metadata.Storage(pallet, item)
	if !ok {
		return codec.Value{}, false, c.registry.Classify(snapshot, errors.Wrapf(metadata.ErrUnknownStorage, "%s.%s", pallet, item))
	}
	if len(keys) != len(entry.Hashers) {
		return codec.Value{}, false, errors.Wrapf(metadata.ErrStorageKeyMismatch, "%s.%s takes %d keys, given %d", pallet, item, len(entry.Hashers), len(keys))
	}
	key, err := entry.StorageKey(keys...)
	if err != nil {
		return codec.Value{}, false, c.registry.Classify(snapshot, err)
	}

	raw, err := c.node.Storage(ctx, key, at)
	if err != nil {
		return codec.Value{}, false, err
	}
	v, ok, err := entry.Decode(raw)
	if err != nil {
		return codec.Value{}, false, c.registry.Classify(snapshot, err)
	}
	return v, ok, nil
}

// Constant decodes a pallet constant of the current metadata
func (c *Client) Constant(pallet, name string) (codec.Value, error) {
	constant, ok := c.Metadata().Constant(pallet, name)
	if !ok {
		return codec.Value{}, errors.Wrapf(metadata.ErrUnknownConstant, "%s.%s", pallet, name)
	}
	v, err := constant.Decode()
	if err != nil {
		return codec.Value{}, errors.Wrapf(err, "%s.%s", pallet, name)
	}
	return v, nil
}

func (c *Client) AccountNonce(ctx context.Context, account types.AccountID) (uint64, error) {
	return c.node.AccountNextIndex(ctx, account)
}

// Call encodes a call against the current metadata
func (c *Client) Call(pallet, name string, args ...codec.Value) (*extrinsic.Call, error) {
	return extrinsic.EncodeCall(c.registry.Load(), pallet, name, args...)
}

// Builder returns an extrinsic builder for the current metadata
func (c *Client) Builder() *extrinsic.Builder {
	return extrinsic.NewBuilder(c.registry.Load(), c.genesis)
}

// Params returns signing parameters for account: its next nonce and, when
// mortality is not 0, an era anchored at the finalized head
func (c *Client) Params(ctx context.Context, account types.AccountID, mortality uint64) (extrinsic.Params, error) {
	nonce, err := c.AccountNonce(ctx, account)
	if err != nil {
		return extrinsic.Params{}, err
	}
	params := extrinsic.Params{Nonce: nonce}
	if mortality == 0 {
		return params, nil
	}

	head, err := c.node.FinalizedHead(ctx)
	if err != nil {
		return extrinsic.Params{}, err
	}
	header, err := c.node.Header(ctx, &head)
	if err != nil {
		return extrinsic.Params{}, err
	}
	params.Era = extrinsic.NewMortalEra(header.Number, mortality)
	params.BlockHash = head
	return params, nil
}

// SubmitAndWatch submits a signed extrinsic and returns its progress
func (c *Client) SubmitAndWatch(ctx context.Context, xt *extrinsic.Extrinsic) (*submission.TxProgress, error) {
	progress, err := submission.Submit(ctx, c.node, c.registry, xt)
	if err != nil {
		return nil, err
	}
	messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CLIENT_EXTRINSIC_SUBMITTED, xt.Hash().Hex()).ConsoleLog()
	return progress, nil
}

// SignSubmitAndWatch signs call with the account's next nonce, submits it
// and waits until it is in a block. A dispatch failure is returned as a
// *chainerr.RuntimeError together with the TxInBlock.
func (c *Client) SignSubmitAndWatch(ctx context.Context, call *extrinsic.Call, s signer.Signer) (*submission.TxInBlock, error) {
	params, err := c.Params(ctx, s.AccountID(), c.mortality)
	if err != nil {
		return nil, err
	}
	tx, err := submission.SignSubmitAndWatch(ctx, c.node, c.registry, c.Builder(), call, s, params)
	if tx != nil {
		if tx.Failure != nil {
			messages.NewMessage(messages.LOG_LEVEL_WARNING, component, tx.Failure, messages.CLIENT_EXTRINSIC_DISPATCH_ERROR, tx.ExtrinsicHash.Hex()).ConsoleLog()
		} else {
			messages.NewMessage(messages.LOG_LEVEL_SUCCESS, "", nil, messages.CLIENT_EXTRINSIC_IN_BLOCK, tx.ExtrinsicHash.Hex(), tx.BlockHash.Hex(), tx.Index).ConsoleLog()
		}
	}
	return tx, err
}

// SubscribeEvents streams the events of every new block
func (c *Client) SubscribeEvents(ctx context.Context) (*events.Subscription, error) {
	return events.Subscribe(ctx, c.node, c.registry)
}

// Events returns the events emitted in block hash
func (c *Client) Events(ctx context.Context, hash types.Hash) ([]events.Record, error) {
	snapshot := c.registry.Load()
	records, err := events.Fetch(ctx, c.node, snapshot.Metadata, hash)
	if err != nil {
		return nil, c.registry.Classify(snapshot, err)
	}
	return records, nil
}
