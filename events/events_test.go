package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"
	"go-substrate-client/metadata/metadatatest"
	"go-substrate-client/rpc"
	"go-substrate-client/rpc/rpctest"
	"go-substrate-client/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = bytes.Repeat([]byte{0xaa}, 32)
	bob     = bytes.Repeat([]byte{0xbb}, 32)
	charlie = bytes.Repeat([]byte{0xcc}, 32)
)

type transfer struct {
	From, To types.AccountID
	Amount   uint64
}

func (transfer) EventIdentity() Identity {
	return Identity{Pallet: "Balances", Name: "Transfer"}
}

func (t *transfer) DecodeEvent(v codec.Value) error {
	for name, dst := range map[string]*types.AccountID{"from": &t.From, "to": &t.To} {
		field, ok := v.Field(name)
		if !ok {
			return errors.Errorf("missing %s", name)
		}
		b, ok := field.AsBytes()
		if !ok || len(b) != len(dst) {
			return errors.Errorf("bad %s", name)
		}
		copy(dst[:], b)
	}
	amount, ok := v.Field("amount")
	if !ok {
		return errors.New("missing amount")
	}
	if t.Amount, ok = amount.Uint64(); !ok {
		return errors.New("bad amount")
	}
	return nil
}

// strictTransfer expects a field the runtime does not declare
type strictTransfer struct{}

func (strictTransfer) EventIdentity() Identity {
	return Identity{Pallet: "Balances", Name: "Transfer"}
}

func (*strictTransfer) DecodeEvent(v codec.Value) error {
	if _, ok := v.Field("memo"); !ok {
		return errors.New("missing memo")
	}
	return nil
}

func account(b []byte) types.AccountID {
	var id types.AccountID
	copy(id[:], b)
	return id
}

func deposit(phase codec.Value, who []byte) metadatatest.EventRecord {
	return metadatatest.EventRecord{
		Phase: phase, Pallet: "Balances", Event: "Deposit",
		Fields: []codec.NamedValue{
			codec.Named("who", metadatatest.Account(who)),
			codec.Named("amount", codec.Uint(1)),
		},
	}
}

func TestDecodeRecords(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())
	topic := bytes.Repeat([]byte{0x11}, 32)

	transferRecord := metadatatest.Transfer(metadatatest.ApplyExtrinsic(1), alice, bob, 10000)
	transferRecord.Topics = [][]byte{topic}
	raw := metadatatest.EncodeEvents(t, md,
		metadatatest.EventRecord{Phase: metadatatest.Initialization(), Pallet: "System", Event: "CodeUpdated"},
		metadatatest.ExtrinsicSuccess(0),
		transferRecord,
		deposit(metadatatest.Finalization(), charlie),
	)

	records, err := Decode(md, raw)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, Phase{Kind: PhaseInitialization}, records[0].Phase)
	assert.Equal(t, "System.CodeUpdated [Initialization]", records[0].String())
	assert.Empty(t, records[0].Fields)

	assert.True(t, records[1].IsExtrinsic(0))
	assert.Equal(t, "ExtrinsicSuccess", records[1].Name)

	tr := records[2]
	assert.Equal(t, metadatatest.BalancesIndex, tr.PalletIndex)
	assert.Equal(t, uint8(2), tr.EventIndex)
	assert.Equal(t, "Balances", tr.Pallet)
	assert.True(t, tr.IsExtrinsic(1))
	assert.False(t, tr.IsExtrinsic(0))
	require.Len(t, tr.Topics, 1)
	assert.Equal(t, topic, tr.Topics[0][:])

	wantFields := append(append([]byte{}, alice...), bob...)
	wantFields = append(wantFields, 0x10, 0x27)
	wantFields = append(wantFields, make([]byte, 14)...)
	assert.Equal(t, wantFields, tr.Fields)

	decoded, ok, err := As[transfer](md, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, transfer{From: account(alice), To: account(bob), Amount: 10000}, decoded)

	_, ok, err = As[transfer](md, records[3])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, PhaseFinalization, records[3].Phase.Kind)
}

func TestDecodeUnknownEvent(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())

	// one record at ApplyExtrinsic(0) for Balances event 3, which the runtime lacks
	raw := []byte{0x04, 0x00, 0, 0, 0, 0, metadatatest.BalancesIndex, 3, 0xde, 0xad, 0x00}
	_, err := Decode(md, raw)
	assert.True(t, errors.Is(err, metadata.ErrUnknownEvent))
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))

	raw[6] = 99
	_, err = Decode(md, raw)
	assert.True(t, errors.Is(err, metadata.ErrUnknownError))
}

func TestDecodeMalformed(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())
	raw := metadatatest.EncodeEvents(t, md, metadatatest.ExtrinsicSuccess(0))

	_, err := Decode(md, raw[:len(raw)-1])
	assert.True(t, errors.Is(err, codec.ErrUnexpectedEOF))

	_, err = Decode(md, append(raw, 0))
	assert.True(t, errors.Is(err, codec.ErrTrailingBytes))

	_, err = Decode(md, []byte{0x08})
	assert.True(t, errors.Is(err, codec.ErrUnexpectedEOF))

	records, err := Decode(md, []byte{0})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAsReportsDecodeFailure(t *testing.T) {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())
	records, err := Decode(md, metadatatest.EncodeEvents(t, md,
		metadatatest.Transfer(metadatatest.ApplyExtrinsic(0), alice, bob, 1)))
	require.NoError(t, err)

	_, ok, err := As[strictTransfer](md, records[0])
	assert.True(t, ok)
	assert.True(t, errors.Is(err, ErrDecodeEvent))
}

func TestIdentityFollowsMetadata(t *testing.T) {
	opts := metadatatest.DefaultOptions()
	opts.BalancesIndex = 12
	md := metadatatest.Parsed(t, opts)

	pallet, event, err := transfer{}.EventIdentity().Resolve(md)
	require.NoError(t, err)
	assert.Equal(t, uint8(12), pallet)
	assert.Equal(t, uint8(2), event)

	_, _, err = Identity{Pallet: "Balances", Name: "Minted"}.Resolve(md)
	assert.True(t, errors.Is(err, metadata.ErrUnknownEvent))
}

type fixture struct {
	node     *rpctest.Node
	registry *metadata.Registry
	md       *metadata.Metadata
	key      []byte
}

func newFixture(t *testing.T) *fixture {
	md := metadatatest.Parsed(t, metadatatest.DefaultOptions())
	registry := metadata.NewRegistry()
	registry.Store(md, metadata.Version{SpecVersion: 1, TransactionVersion: 1})
	key, err := StorageKey(md)
	require.NoError(t, err)
	return &fixture{node: rpctest.New(), registry: registry, md: md, key: key}
}

func (f *fixture) push(t *testing.T, block byte, records ...metadatatest.EventRecord) {
	err := f.node.PushStorage(context.Background(), rpc.StorageChangeSet{
		Block:   types.Hash{block},
		Changes: []rpc.StorageChange{{Key: f.key, Data: metadatatest.EncodeEvents(t, f.md, records...)}},
	})
	require.NoError(t, err)
}

func TestFilterYieldsTransfersInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)

	sub, err := Subscribe(ctx, f.node, f.registry)
	require.NoError(t, err)
	transfers := Filter[transfer](sub)

	f.push(t, 1,
		deposit(metadatatest.ApplyExtrinsic(0), alice),
		metadatatest.Transfer(metadatatest.ApplyExtrinsic(1), alice, bob, 10),
		metadatatest.ExtrinsicSuccess(1),
	)
	f.push(t, 2,
		deposit(metadatatest.ApplyExtrinsic(0), bob),
		metadatatest.Transfer(metadatatest.ApplyExtrinsic(1), bob, charlie, 20),
		deposit(metadatatest.Finalization(), charlie),
	)
	require.NoError(t, f.node.PushStorage(ctx, rpc.StorageChangeSet{
		Block:   types.Hash{3},
		Changes: []rpc.StorageChange{{Key: []byte("other"), Data: []byte{1}}, {Key: f.key}},
	}))
	f.node.CloseSubscriptions(nil)

	first, err := transfers.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, transfer{From: account(alice), To: account(bob), Amount: 10}, first)

	second, err := transfers.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, transfer{From: account(bob), To: account(charlie), Amount: 20}, second)

	_, err = transfers.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
	_, err = transfers.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
	assert.NoError(t, sub.Err())
}

func TestNextBatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)

	sub, err := Subscribe(ctx, f.node, f.registry)
	require.NoError(t, err)

	f.push(t, 7, metadatatest.ExtrinsicSuccess(0), deposit(metadatatest.Finalization(), alice))
	batch, err := sub.NextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Hash{7}, batch.Block)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, "ExtrinsicSuccess", batch.Records[0].Name)
	assert.Same(t, f.md, sub.Metadata())

	sub.FilterEvent("Balances", "Deposit")
	f.push(t, 8, metadatatest.ExtrinsicSuccess(0), deposit(metadatatest.Finalization(), bob))
	batch, err = sub.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "Deposit", batch.Records[0].Name)
}

func TestCloseUnsubscribes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)

	sub, err := Subscribe(ctx, f.node, f.registry)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(ctx)
		done <- err
	}()

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 1, f.node.Unsubscribed("state_unsubscribeStorage"))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrEndOfStream))
	case <-ctx.Done():
		t.Fatal("pending read was not released")
	}

	f.push(t, 1, metadatatest.ExtrinsicSuccess(0))
	_, err = sub.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
}

func TestRemoteFailureEndsStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)

	sub, err := Subscribe(ctx, f.node, f.registry)
	require.NoError(t, err)

	failure := errors.New("socket closed")
	f.node.CloseSubscriptions(failure)

	_, err = sub.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
	assert.Equal(t, failure, sub.Err())
}

func TestDecodeFailureAfterUpgradeIsStale(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)

	sub, err := Subscribe(ctx, f.node, f.registry)
	require.NoError(t, err)

	// a block encoded by a runtime the registry does not know yet
	opts := metadatatest.DefaultOptions()
	opts.BalancesIndex = 40
	upgraded := metadatatest.Parsed(t, opts)
	require.NoError(t, f.node.PushStorage(ctx, rpc.StorageChangeSet{
		Block: types.Hash{9},
		Changes: []rpc.StorageChange{{Key: f.key, Data: metadatatest.EncodeEvents(t, upgraded,
			metadatatest.Transfer(metadatatest.ApplyExtrinsic(0), alice, bob, 1))}},
	}))

	_, err = sub.Next(ctx)
	assert.True(t, errors.Is(err, metadata.ErrUnknownEvent))
	assert.False(t, errors.Is(err, metadata.ErrStaleMetadata))

	// the undecodable block ends the stream and releases it at the node
	assert.Equal(t, 1, f.node.Unsubscribed("state_unsubscribeStorage"))
	assert.True(t, errors.Is(sub.Err(), metadata.ErrUnknownEvent))
	_, err = sub.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
	require.NoError(t, sub.Close())
	assert.Equal(t, 1, f.node.Unsubscribed("state_unsubscribeStorage"))
}
