package connection

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go-substrate-client/rpc"
	"go-substrate-client/types"

	"github.com/itering/scale.go/utiles"
	subrpc "github.com/itering/substrate-api-rpc/rpc"
	"github.com/pkg/errors"
)

var _ rpc.Node = (*WsClient)(nil)

type (
	header struct {
		ParentHash     types.Hash `json:"parentHash"`
		Number         string     `json:"number"`
		StateRoot      types.Hash `json:"stateRoot"`
		ExtrinsicsRoot types.Hash `json:"extrinsicsRoot"`
	}

	signedBlock struct {
		Block struct {
			Header     header   `json:"header"`
			Extrinsics []string `json:"extrinsics"`
		} `json:"block"`
	}

	changeSet struct {
		Block   types.Hash  `json:"block"`
		Changes [][]*string `json:"changes"`
	}
)

func (c *WsClient) GenesisHash(ctx context.Context) (types.Hash, error) {
	return c.BlockHash(ctx, 0)
}

func (c *WsClient) BlockHash(ctx context.Context, number uint64) (types.Hash, error) {
	id := c.nextId()
	resp, err := c.send(ctx, id, "chain_getBlockHash", subrpc.ChainGetBlockHash(id, int(number)), nil)
	if err != nil {
		return types.Hash{}, err
	}
	var hash *types.Hash
	if err := decodeResult(resp, "chain_getBlockHash", &hash); err != nil {
		return types.Hash{}, err
	}
	if hash == nil {
		return types.Hash{}, errors.Errorf("connection: no block at height %d", number)
	}
	return *hash, nil
}

func (c *WsClient) FinalizedHead(ctx context.Context) (types.Hash, error) {
	resp, err := c.call(ctx, "chain_getFinalizedHead")
	if err != nil {
		return types.Hash{}, err
	}
	var hash types.Hash
	return hash, decodeResult(resp, "chain_getFinalizedHead", &hash)
}

func (c *WsClient) Header(ctx context.Context, hash *types.Hash) (*rpc.Header, error) {
	resp, err := c.call(ctx, "chain_getHeader", atParams(hash)...)
	if err != nil {
		return nil, err
	}
	var h *header
	if err := decodeResult(resp, "chain_getHeader", &h); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.New("connection: unknown block header")
	}
	return h.toHeader()
}

func (c *WsClient) Block(ctx context.Context, hash types.Hash) (*rpc.Block, error) {
	resp, err := c.call(ctx, "chain_getBlock", hash.Hex())
	if err != nil {
		return nil, err
	}
	var b *signedBlock
	if err := decodeResult(resp, "chain_getBlock", &b); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.Errorf("connection: unknown block %s", hash.Hex())
	}

	h, err := b.Block.Header.toHeader()
	if err != nil {
		return nil, err
	}
	block := &rpc.Block{Header: *h}
	for _, xt := range b.Block.Extrinsics {
		block.Extrinsics = append(block.Extrinsics, utiles.HexToBytes(xt))
	}
	return block, nil
}

func (c *WsClient) RuntimeVersion(ctx context.Context, at *types.Hash) (rpc.RuntimeVersion, error) {
	var (
		resp *response
		err  error
	)
	if at != nil {
		id := c.nextId()
		resp, err = c.send(ctx, id, "chain_getRuntimeVersion", subrpc.ChainGetRuntimeVersion(id, at.Hex()), nil)
	} else {
		resp, err = c.call(ctx, "state_getRuntimeVersion")
	}
	if err != nil {
		return rpc.RuntimeVersion{}, err
	}
	var v rpc.RuntimeVersion
	return v, decodeResult(resp, "state_getRuntimeVersion", &v)
}

func (c *WsClient) Metadata(ctx context.Context, at *types.Hash) ([]byte, error) {
	var (
		resp *response
		err  error
	)
	if at != nil {
		id := c.nextId()
		resp, err = c.send(ctx, id, "state_getMetadata", subrpc.StateGetMetadata(id, at.Hex()), nil)
	} else {
		resp, err = c.call(ctx, "state_getMetadata")
	}
	if err != nil {
		return nil, err
	}

	v := &subrpc.JsonRpcResult{}
	if err := json.Unmarshal(resp.raw, v); err != nil {
		return nil, &rpc.TransportError{Method: "state_getMetadata", Err: err}
	}
	blob, err := v.ToString()
	if err != nil {
		return nil, &rpc.TransportError{Method: "state_getMetadata", Err: err}
	}
	return utiles.HexToBytes(blob), nil
}

func (c *WsClient) Storage(ctx context.Context, key []byte, at *types.Hash) ([]byte, error) {
	resp, err := c.call(ctx, "state_getStorage", append([]interface{}{toHex(key)}, atParams(at)...)...)
	if err != nil {
		return nil, err
	}
	var data *string
	if err := decodeResult(resp, "state_getStorage", &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return utiles.HexToBytes(*data), nil
}

func (c *WsClient) AccountNextIndex(ctx context.Context, account types.AccountID) (uint64, error) {
	resp, err := c.call(ctx, "system_accountNextIndex", account.SS58(c.prefix))
	if err != nil {
		return 0, err
	}
	var nonce uint64
	return nonce, decodeResult(resp, "system_accountNextIndex", &nonce)
}

func (c *WsClient) SubmitAndWatchExtrinsic(ctx context.Context, extrinsic []byte) (*rpc.Subscription[rpc.TransactionStatus], error) {
	return subscribe(ctx, c, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", decodeStatus, toHex(extrinsic))
}

func (c *WsClient) SubscribeStorage(ctx context.Context, keys [][]byte) (*rpc.Subscription[rpc.StorageChangeSet], error) {
	hexKeys := make([]string, len(keys))
	for i, k := range keys {
		hexKeys[i] = toHex(k)
	}
	return subscribe(ctx, c, "state_subscribeStorage", "state_unsubscribeStorage", decodeChangeSet, hexKeys)
}

func (c *WsClient) SubscribeRuntimeVersion(ctx context.Context) (*rpc.Subscription[rpc.RuntimeVersion], error) {
	return subscribe(ctx, c, "state_subscribeRuntimeVersion", "state_unsubscribeRuntimeVersion", func(raw json.RawMessage) (rpc.RuntimeVersion, error) {
		var v rpc.RuntimeVersion
		return v, json.Unmarshal(raw, &v)
	})
}

func decodeResult(resp *response, method string, v interface{}) error {
	if err := json.Unmarshal(resp.Result, v); err != nil {
		return &rpc.TransportError{Method: method, Err: errors.Wrap(err, "decode result")}
	}
	return nil
}

func atParams(at *types.Hash) []interface{} {
	if at == nil {
		return nil
	}
	return []interface{}{at.Hex()}
}

func toHex(b []byte) string {
	return utiles.AddHex(utiles.BytesToHex(b))
}

func (h *header) toHeader() (*rpc.Header, error) {
	number, err := strconv.ParseUint(strings.TrimPrefix(h.Number, "0x"), 16, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "connection: block number %q", h.Number)
	}
	return &rpc.Header{
		ParentHash:     h.ParentHash,
		Number:         number,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
	}, nil
}

// decodeStatus reads a pool status, either a bare name such as "ready" or a
// single keyed object such as {"inBlock": "0x.."}
func decodeStatus(raw json.RawMessage) (rpc.TransactionStatus, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		kind, ok := rpc.ParseStatusKind(name)
		if !ok {
			return rpc.TransactionStatus{}, errors.Errorf("unknown transaction status %q", name)
		}
		return rpc.TransactionStatus{Kind: kind}, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return rpc.TransactionStatus{}, err
	}
	if len(keyed) != 1 {
		return rpc.TransactionStatus{}, errors.Errorf("malformed transaction status %s", string(raw))
	}
	for name, value := range keyed {
		kind, ok := rpc.ParseStatusKind(name)
		if !ok {
			return rpc.TransactionStatus{}, errors.Errorf("unknown transaction status %q", name)
		}
		status := rpc.TransactionStatus{Kind: kind}
		if kind == rpc.StatusBroadcast {
			return status, json.Unmarshal(value, &status.Broadcast)
		}
		return status, json.Unmarshal(value, &status.Block)
	}
	return rpc.TransactionStatus{}, nil
}

func decodeChangeSet(raw json.RawMessage) (rpc.StorageChangeSet, error) {
	var cs changeSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return rpc.StorageChangeSet{}, err
	}
	out := rpc.StorageChangeSet{Block: cs.Block}
	for _, change := range cs.Changes {
		if len(change) != 2 || change[0] == nil {
			return rpc.StorageChangeSet{}, errors.Errorf("malformed storage change in %s", cs.Block.Hex())
		}
		sc := rpc.StorageChange{Key: utiles.HexToBytes(*change[0])}
		if change[1] != nil {
			sc.Data = utiles.HexToBytes(*change[1])
		}
		out.Changes = append(out.Changes, sc)
	}
	return out, nil
}
