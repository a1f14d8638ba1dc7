// Package events decodes System.Events records through metadata and streams
// them per block
package events

import (
	"context"
	"fmt"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"
	"go-substrate-client/rpc"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

type (
	PhaseKind uint8

	// Phase is the point of block execution an event was emitted in
	Phase struct {
		Kind      PhaseKind
		Extrinsic uint32 // index within the block for PhaseApplyExtrinsic
	}

	// Record is one decoded event record
	Record struct {
		Phase       Phase
		PalletIndex uint8
		EventIndex  uint8
		Pallet      string
		Name        string
		Fields      []byte      // raw encoded fields
		Value       codec.Value // fields decoded as a composite
		Topics      []types.Hash
	}
)

const (
	PhaseApplyExtrinsic PhaseKind = iota
	PhaseFinalization
	PhaseInitialization
)

func (p Phase) String() string {
	switch p.Kind {
	case PhaseApplyExtrinsic:
		return fmt.Sprintf("ApplyExtrinsic(%d)", p.Extrinsic)
	case PhaseFinalization:
		return "Finalization"
	}
	return "Initialization"
}

// IsExtrinsic reports whether the record was emitted while applying the
// extrinsic at index
func (r Record) IsExtrinsic(index uint32) bool {
	return r.Phase.Kind == PhaseApplyExtrinsic && r.Phase.Extrinsic == index
}

func (r Record) String() string {
	return fmt.Sprintf("%s.%s [%s]", r.Pallet, r.Name, r.Phase)
}

// StorageKey returns the System.Events key of md
func StorageKey(md *metadata.Metadata) ([]byte, error) {
	entry, ok := md.Storage("System", "Events")
	if !ok {
		return nil, errors.Wrap(metadata.ErrUnknownStorage, "System.Events")
	}
	return entry.StorageKey()
}

// recordLayout holds the phase and topics types of the EventRecord
type recordLayout struct {
	phase  *codec.TypeDescriptor
	topics *codec.TypeDescriptor
}

func layout(md *metadata.Metadata) (recordLayout, error) {
	entry, ok := md.Storage("System", "Events")
	if !ok {
		return recordLayout{}, errors.Wrap(metadata.ErrUnknownStorage, "System.Events")
	}
	seq := entry.Value
	for seq != nil && seq.Kind == codec.TypeComposite && len(seq.Fields) == 1 {
		seq = seq.Fields[0].Type
	}
	if seq == nil || seq.Kind != codec.TypeSequence || seq.Elem == nil || seq.Elem.Kind != codec.TypeComposite {
		return recordLayout{}, errors.Wrap(metadata.ErrMalformed, "System.Events is not a sequence of records")
	}

	var l recordLayout
	for _, f := range seq.Elem.Fields {
		switch f.Name {
		case "phase":
			l.phase = f.Type
		case "topics":
			l.topics = f.Type
		}
	}
	if l.phase == nil || l.topics == nil {
		return recordLayout{}, errors.Wrap(metadata.ErrMalformed, "event record without phase or topics")
	}
	return l, nil
}

// Decode decodes the System.Events value raw. A record whose pallet or event
// index is not in md fails with metadata.ErrUnknownEvent rather than being
// skipped, since its field length is unknown.
func Decode(md *metadata.Metadata, raw []byte) ([]Record, error) {
	l, err := layout(md)
	if err != nil {
		return nil, err
	}

	r := codec.NewReader(raw)
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	if n > r.Len() {
		return nil, errors.Wrapf(codec.ErrUnexpectedEOF, "%d records in %d bytes", n, r.Len())
	}

	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		record, err := decodeRecord(r, raw, md, l)
		if err != nil {
			return nil, errors.Wrapf(err, "event record %d", i)
		}
		records = append(records, record)
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(codec.ErrTrailingBytes, "%d bytes after events", r.Len())
	}
	return records, nil
}

func decodeRecord(r *codec.Reader, raw []byte, md *metadata.Metadata, l recordLayout) (Record, error) {
	var record Record

	phase, err := codec.DecodeFrom(r, l.phase)
	if err != nil {
		return record, errors.Wrap(err, "phase")
	}
	if record.Phase, err = toPhase(phase); err != nil {
		return record, err
	}

	if record.PalletIndex, err = r.ReadByte(); err != nil {
		return record, err
	}
	if record.EventIndex, err = r.ReadByte(); err != nil {
		return record, err
	}
	event, ok := md.Event(record.PalletIndex, record.EventIndex)
	if !ok {
		return record, errors.Wrapf(metadata.ErrUnknownEvent, "pallet %d event %d", record.PalletIndex, record.EventIndex)
	}
	record.Pallet = event.Pallet.Name
	record.Name = event.Name()

	start := r.Offset()
	fields := make([]codec.NamedValue, 0, len(event.Fields()))
	for _, f := range event.Fields() {
		v, err := codec.DecodeFrom(r, f.Type)
		if err != nil {
			return record, errors.Wrapf(err, "%s.%s %s", record.Pallet, record.Name, f.Name)
		}
		fields = append(fields, codec.Named(f.Name, v))
	}
	record.Value = codec.Composite(fields...)
	record.Fields = append([]byte{}, raw[start:r.Offset()]...)

	topics, err := codec.DecodeFrom(r, l.topics)
	if err != nil {
		return record, errors.Wrap(err, "topics")
	}
	for i := 0; i < topics.Len(); i++ {
		topic, _ := topics.At(i)
		b, ok := topic.AsBytes()
		if !ok || len(b) != len(types.Hash{}) {
			return record, errors.Wrap(codec.ErrTypeMismatch, "topic is not a 32 byte hash")
		}
		var h types.Hash
		copy(h[:], b)
		record.Topics = append(record.Topics, h)
	}
	return record, nil
}

func toPhase(v codec.Value) (Phase, error) {
	if v.Kind != codec.KindVariant {
		return Phase{}, errors.Wrap(codec.ErrTypeMismatch, "phase is not an enum")
	}
	switch v.Variant {
	case "ApplyExtrinsic":
		index, ok := v.At(0)
		if !ok {
			return Phase{}, errors.Wrap(codec.ErrTypeMismatch, "ApplyExtrinsic without index")
		}
		n, ok := index.Uint64()
		if !ok || n > 0xffffffff {
			return Phase{}, errors.Wrap(codec.ErrTypeMismatch, "extrinsic index is not a u32")
		}
		return Phase{Kind: PhaseApplyExtrinsic, Extrinsic: uint32(n)}, nil
	case "Finalization":
		return Phase{Kind: PhaseFinalization}, nil
	case "Initialization":
		return Phase{Kind: PhaseInitialization}, nil
	}
	return Phase{}, errors.Wrapf(codec.ErrInvalidDiscriminant, "phase %s", v.Variant)
}

// Fetch reads and decodes the events of the block at hash
func Fetch(ctx context.Context, node rpc.Node, md *metadata.Metadata, hash types.Hash) ([]Record, error) {
	key, err := StorageKey(md)
	if err != nil {
		return nil, err
	}
	raw, err := node.Storage(ctx, key, &hash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return Decode(md, raw)
}
