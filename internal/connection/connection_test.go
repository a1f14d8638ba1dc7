package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-substrate-client/rpc"
	"go-substrate-client/types"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var blockHash = "0x" + strings.Repeat("ab", 32)

type (
	incoming struct {
		Id     int               `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}

	// fakeNode answers requests with canned results. A handler returns the
	// result, or an error object, plus notifications to push afterwards.
	fakeNode struct {
		t        *testing.T
		mu       sync.Mutex
		conn     *websocket.Conn
		requests []incoming
		handlers map[string]func(incoming) (interface{}, *rpc.Error, []interface{})
	}
)

func newFakeNode(t *testing.T) (*fakeNode, *WsClient) {
	node := &fakeNode{t: t, handlers: map[string]func(incoming) (interface{}, *rpc.Error, []interface{}){}}
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		node.mu.Lock()
		node.conn = conn
		node.mu.Unlock()
		node.serve(conn)
	}))
	t.Cleanup(server.Close)

	c, err := Dial(testContext(t), "ws"+strings.TrimPrefix(server.URL, "http"), 42)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return node, c
}

func (n *fakeNode) handle(method string, h func(incoming) (interface{}, *rpc.Error, []interface{})) {
	n.mu.Lock()
	n.handlers[method] = h
	n.mu.Unlock()
}

func (n *fakeNode) result(method string, v interface{}) {
	n.handle(method, func(incoming) (interface{}, *rpc.Error, []interface{}) { return v, nil, nil })
}

func (n *fakeNode) serve(conn *websocket.Conn) {
	for {
		var req incoming
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		n.mu.Lock()
		n.requests = append(n.requests, req)
		h, ok := n.handlers[req.Method]
		n.mu.Unlock()

		answer := map[string]interface{}{"jsonrpc": "2.0", "id": req.Id}
		var notifications []interface{}
		if !ok {
			answer["error"] = &rpc.Error{Code: -32601, Message: "Method not found"}
		} else {
			result, rpcErr, pushed := h(req)
			if rpcErr != nil {
				answer["error"] = rpcErr
			} else {
				answer["result"] = result
			}
			notifications = pushed
		}
		if err := conn.WriteJSON(answer); err != nil {
			return
		}
		for _, msg := range notifications {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (n *fakeNode) calls(method string) []incoming {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []incoming
	for _, r := range n.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func notify(method, subscription string, result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  map[string]interface{}{"subscription": subscription, "result": result},
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCalls(t *testing.T) {
	ctx := testContext(t)
	node, c := newFakeNode(t)
	node.result("chain_getBlockHash", blockHash)
	node.result("chain_getFinalizedHead", blockHash)
	node.result("state_getMetadata", "0x6d657461")
	node.result("state_getRuntimeVersion", map[string]interface{}{"specName": "node", "specVersion": 100, "transactionVersion": 2})
	node.result("system_accountNextIndex", 7)
	node.result("chain_getHeader", map[string]interface{}{"parentHash": blockHash, "number": "0x3e8", "stateRoot": blockHash, "extrinsicsRoot": blockHash})
	node.result("chain_getBlock", map[string]interface{}{"block": map[string]interface{}{
		"header":     map[string]interface{}{"parentHash": blockHash, "number": "0x10", "stateRoot": blockHash, "extrinsicsRoot": blockHash},
		"extrinsics": []string{"0x0401", "0x0402"},
	}})

	genesis, err := c.GenesisHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, blockHash, genesis.Hex())
	require.Len(t, node.calls("chain_getBlockHash"), 1)
	assert.Equal(t, "0", string(node.calls("chain_getBlockHash")[0].Params[0]))

	head, err := c.FinalizedHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, genesis, head)

	blob, err := c.Metadata(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("meta"), blob)

	version, err := c.RuntimeVersion(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), version.SpecVersion)
	assert.Equal(t, uint32(2), version.TransactionVersion)

	nonce, err := c.AccountNextIndex(ctx, types.AccountID{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)

	header, err := c.Header(ctx, &head)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), header.Number)
	assert.Equal(t, `"`+blockHash+`"`, string(node.calls("chain_getHeader")[0].Params[0]))

	block, err := c.Block(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block.Header.Number)
	assert.Equal(t, [][]byte{{0x04, 0x01}, {0x04, 0x02}}, block.Extrinsics)
}

func TestStorage(t *testing.T) {
	ctx := testContext(t)
	node, c := newFakeNode(t)
	node.handle("state_getStorage", func(req incoming) (interface{}, *rpc.Error, []interface{}) {
		if string(req.Params[0]) == `"0x0102"` {
			return "0xff00", nil, nil
		}
		return nil, nil, nil
	})

	v, err := c.Storage(ctx, []byte{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x00}, v)

	v, err = c.Storage(ctx, []byte{3}, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestErrorObject(t *testing.T) {
	node, c := newFakeNode(t)
	node.handle("author_submitAndWatchExtrinsic", func(incoming) (interface{}, *rpc.Error, []interface{}) {
		return nil, &rpc.Error{Code: 1010, Message: "Invalid Transaction", Data: "Inability to pay some fees"}, nil
	})

	_, err := c.SubmitAndWatchExtrinsic(testContext(t), []byte{1})
	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, 1010, rpcErr.Code)
	assert.Equal(t, "Inability to pay some fees", rpcErr.Data)

	_, err = c.FinalizedHead(testContext(t))
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestSubmitAndWatch(t *testing.T) {
	ctx := testContext(t)
	node, c := newFakeNode(t)
	node.handle("author_submitAndWatchExtrinsic", func(incoming) (interface{}, *rpc.Error, []interface{}) {
		method := "author_extrinsicUpdate"
		return "sub-1", nil, []interface{}{
			notify(method, "sub-1", "ready"),
			notify(method, "sub-1", map[string]interface{}{"broadcast": []string{"peer"}}),
			notify(method, "sub-1", map[string]interface{}{"inBlock": blockHash}),
			notify(method, "sub-1", map[string]interface{}{"finalized": blockHash}),
		}
	})
	node.result("author_unwatchExtrinsic", true)

	sub, err := c.SubmitAndWatchExtrinsic(ctx, []byte{0x2a})
	require.NoError(t, err)
	assert.Equal(t, `"0x2a"`, string(node.calls("author_submitAndWatchExtrinsic")[0].Params[0]))

	var kinds []rpc.StatusKind
	for i := 0; i < 4; i++ {
		status, err := sub.Next(ctx)
		require.NoError(t, err)
		kinds = append(kinds, status.Kind)
		if status.Kind == rpc.StatusInBlock {
			assert.Equal(t, blockHash, status.Block.Hex())
		}
		if status.Kind == rpc.StatusBroadcast {
			assert.Equal(t, []string{"peer"}, status.Broadcast)
		}
	}
	assert.Equal(t, []rpc.StatusKind{rpc.StatusReady, rpc.StatusBroadcast, rpc.StatusInBlock, rpc.StatusFinalized}, kinds)

	require.NoError(t, sub.Unsubscribe())
	unwatch := node.calls("author_unwatchExtrinsic")
	require.Len(t, unwatch, 1)
	assert.Equal(t, `"sub-1"`, string(unwatch[0].Params[0]))
}

func TestSubscribeStorage(t *testing.T) {
	ctx := testContext(t)
	node, c := newFakeNode(t)
	node.handle("state_subscribeStorage", func(incoming) (interface{}, *rpc.Error, []interface{}) {
		return "sub-2", nil, []interface{}{
			notify("state_storage", "sub-2", map[string]interface{}{
				"block":   blockHash,
				"changes": [][]interface{}{{"0x01", "0x0203"}, {"0x04", nil}},
			}),
		}
	})

	sub, err := c.SubscribeStorage(ctx, [][]byte{{1}, {4}})
	require.NoError(t, err)
	assert.Equal(t, `["0x01","0x04"]`, string(node.calls("state_subscribeStorage")[0].Params[0]))

	set, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, blockHash, set.Block.Hex())
	require.Len(t, set.Changes, 2)
	assert.Equal(t, []byte{2, 3}, set.Changes[0].Data)
	assert.Nil(t, set.Changes[1].Data)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	ctx := testContext(t)
	node, c := newFakeNode(t)
	node.result("state_subscribeRuntimeVersion", "sub-3")

	sub, err := c.SubscribeRuntimeVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = sub.Next(ctx)
	var transport *rpc.TransportError
	require.True(t, errors.As(err, &transport))
	assert.True(t, errors.Is(err, ErrClosed))

	_, err = c.FinalizedHead(ctx)
	assert.True(t, errors.As(err, &transport))
}

func TestAbandonedSubscribeIsReleased(t *testing.T) {
	node, c := newFakeNode(t)
	node.handle("author_submitAndWatchExtrinsic", func(incoming) (interface{}, *rpc.Error, []interface{}) {
		time.Sleep(200 * time.Millisecond)
		return "sub-late", nil, nil
	})
	node.result("author_unwatchExtrinsic", true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.SubmitAndWatchExtrinsic(ctx, []byte{0x2a})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.Eventually(t, func() bool { return len(node.calls("author_unwatchExtrinsic")) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `"sub-late"`, string(node.calls("author_unwatchExtrinsic")[0].Params[0]))
	_, registered := c.subs.Load("sub-late")
	assert.False(t, registered)
}

func TestCancelledCallForgetsAnswer(t *testing.T) {
	node, c := newFakeNode(t)
	node.handle("chain_getFinalizedHead", func(incoming) (interface{}, *rpc.Error, []interface{}) {
		time.Sleep(100 * time.Millisecond)
		return blockHash, nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.FinalizedHead(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	pending := 0
	c.callers.Range(func(interface{}, interface{}) bool {
		pending++
		return true
	})
	assert.Equal(t, 0, pending)
}

func TestUndecodableNotificationReleasesSubscription(t *testing.T) {
	ctx := testContext(t)
	node, c := newFakeNode(t)
	node.handle("author_submitAndWatchExtrinsic", func(incoming) (interface{}, *rpc.Error, []interface{}) {
		return "sub-4", nil, []interface{}{notify("author_extrinsicUpdate", "sub-4", "exploded")}
	})
	node.result("author_unwatchExtrinsic", true)

	sub, err := c.SubmitAndWatchExtrinsic(ctx, []byte{0x2a})
	require.NoError(t, err)

	_, err = sub.Next(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, rpc.ErrSubscriptionClosed))
	require.Eventually(t, func() bool { return len(node.calls("author_unwatchExtrinsic")) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `"sub-4"`, string(node.calls("author_unwatchExtrinsic")[0].Params[0]))

	require.NoError(t, sub.Unsubscribe())
	assert.Len(t, node.calls("author_unwatchExtrinsic"), 1)
}

func TestDecodeStatus(t *testing.T) {
	status, err := decodeStatus(json.RawMessage(`{"usurped":"` + blockHash + `"}`))
	require.NoError(t, err)
	assert.Equal(t, rpc.StatusUsurped, status.Kind)

	status, err = decodeStatus(json.RawMessage(`"dropped"`))
	require.NoError(t, err)
	assert.Equal(t, rpc.StatusDropped, status.Kind)

	_, err = decodeStatus(json.RawMessage(`"exploded"`))
	assert.Error(t, err)
}
