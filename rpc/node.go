// Package rpc defines the boundary with a Substrate node. The connection that
// implements Node is an external collaborator; internal/connection provides a
// websocket one and rpctest an in-memory one.
package rpc

import (
	"context"

	"go-substrate-client/types"
)

type (
	// Node is the set of node calls the client needs. Every call blocks until
	// the node answers or ctx ends; none imposes its own timeout. A nil at
	// means the best block.
	Node interface {
		GenesisHash(ctx context.Context) (types.Hash, error)
		BlockHash(ctx context.Context, number uint64) (types.Hash, error)
		FinalizedHead(ctx context.Context) (types.Hash, error)
		Header(ctx context.Context, hash *types.Hash) (*Header, error)
		Block(ctx context.Context, hash types.Hash) (*Block, error)

		RuntimeVersion(ctx context.Context, at *types.Hash) (RuntimeVersion, error)
		Metadata(ctx context.Context, at *types.Hash) ([]byte, error)

		// Storage returns nil when no value is stored under key
		Storage(ctx context.Context, key []byte, at *types.Hash) ([]byte, error)
		AccountNextIndex(ctx context.Context, account types.AccountID) (uint64, error)

		// SubmitAndWatchExtrinsic hands the encoded extrinsic to the node and
		// returns as soon as the node accepted the watch, without waiting for
		// inclusion
		SubmitAndWatchExtrinsic(ctx context.Context, extrinsic []byte) (*Subscription[TransactionStatus], error)
		SubscribeStorage(ctx context.Context, keys [][]byte) (*Subscription[StorageChangeSet], error)
		SubscribeRuntimeVersion(ctx context.Context) (*Subscription[RuntimeVersion], error)
	}

	RuntimeVersion struct {
		SpecName           string `json:"specName"`
		ImplName           string `json:"implName"`
		AuthoringVersion   uint32 `json:"authoringVersion"`
		SpecVersion        uint32 `json:"specVersion"`
		ImplVersion        uint32 `json:"implVersion"`
		TransactionVersion uint32 `json:"transactionVersion"`
	}

	Header struct {
		ParentHash     types.Hash
		Number         uint64
		StateRoot      types.Hash
		ExtrinsicsRoot types.Hash
	}

	Block struct {
		Header     Header
		Extrinsics [][]byte
	}

	StorageChange struct {
		Key  []byte
		Data []byte // nil when the key was removed
	}

	StorageChangeSet struct {
		Block   types.Hash
		Changes []StorageChange
	}
)
