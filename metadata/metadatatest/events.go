package metadatatest

import (
	"testing"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"

	"github.com/stretchr/testify/require"
)

// EventRecord describes one System.Events entry to encode
type EventRecord struct {
	Phase  codec.Value
	Pallet string
	Event  string
	Fields []codec.NamedValue
	Topics [][]byte
}

func ApplyExtrinsic(index uint32) codec.Value {
	return codec.VariantOf("ApplyExtrinsic", codec.Named("", codec.Uint(uint64(index))))
}

func Finalization() codec.Value {
	return codec.VariantOf("Finalization")
}

func Initialization() codec.Value {
	return codec.VariantOf("Initialization")
}

// Account wraps a 32 byte id in the AccountId32 newtype shape
func Account(id []byte) codec.Value {
	return codec.Unnamed(codec.Bytes(id))
}

// DispatchInfo is a minimal DispatchInfo value
func DispatchInfo() codec.Value {
	return codec.Composite(
		codec.Named("weight", codec.Composite(
			codec.Named("ref_time", codec.Uint(1000)),
			codec.Named("proof_size", codec.Uint(0)),
		)),
		codec.Named("class", codec.VariantOf("Normal")),
		codec.Named("pays_fee", codec.VariantOf("Yes")),
	)
}

// ExtrinsicSuccess is the System.ExtrinsicSuccess record of extrinsic index
func ExtrinsicSuccess(index uint32) EventRecord {
	return EventRecord{
		Phase: ApplyExtrinsic(index), Pallet: "System", Event: "ExtrinsicSuccess",
		Fields: []codec.NamedValue{codec.Named("dispatch_info", DispatchInfo())},
	}
}

// ExtrinsicFailed is a System.ExtrinsicFailed record carrying a module error
func ExtrinsicFailed(index uint32, module, errIndex uint8) EventRecord {
	dispatchError := codec.VariantOf("Module", codec.Named("", codec.Composite(
		codec.Named("index", codec.Uint(uint64(module))),
		codec.Named("error", codec.Bytes([]byte{errIndex, 0, 0, 0})),
	)))
	return EventRecord{
		Phase: ApplyExtrinsic(index), Pallet: "System", Event: "ExtrinsicFailed",
		Fields: []codec.NamedValue{
			codec.Named("dispatch_error", dispatchError),
			codec.Named("dispatch_info", DispatchInfo()),
		},
	}
}

// Transfer is a Balances.Transfer record
func Transfer(phase codec.Value, from, to []byte, amount uint64) EventRecord {
	return EventRecord{
		Phase: phase, Pallet: "Balances", Event: "Transfer",
		Fields: []codec.NamedValue{
			codec.Named("from", Account(from)),
			codec.Named("to", Account(to)),
			codec.Named("amount", codec.Uint(amount)),
		},
	}
}

// EncodeEvents encodes records as the System.Events value of md
func EncodeEvents(t testing.TB, md *metadata.Metadata, records ...EventRecord) []byte {
	t.Helper()
	entry, ok := md.Storage("System", "Events")
	require.True(t, ok)

	items := make([]codec.Value, 0, len(records))
	for _, r := range records {
		topics := make([]codec.Value, 0, len(r.Topics))
		for _, topic := range r.Topics {
			topics = append(topics, codec.Unnamed(codec.Bytes(topic)))
		}
		items = append(items, codec.Composite(
			codec.Named("phase", r.Phase),
			codec.Named("event", codec.VariantOf(r.Pallet, codec.Named("", codec.VariantOf(r.Event, r.Fields...)))),
			codec.Named("topics", codec.Seq(topics...)),
		))
	}

	raw, err := codec.Encode(entry.Value, codec.Seq(items...))
	require.NoError(t, err)
	return raw
}
