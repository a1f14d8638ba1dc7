package events

import (
	"go-substrate-client/codec"
	"go-substrate-client/metadata"

	"github.com/pkg/errors"
)

type (
	// Identity names an event. It resolves to a pallet and event index only
	// against a given metadata, since indices move between runtimes.
	Identity struct {
		Pallet string
		Name   string
	}

	// Event is implemented by typed events
	Event interface {
		EventIdentity() Identity
	}

	// Decoder is the pointer constraint of typed events: *T fills itself in
	// from the decoded fields of a matching record
	Decoder[T any] interface {
		*T
		Event
		DecodeEvent(fields codec.Value) error
	}
)

var ErrDecodeEvent = errors.New("events: event does not decode as the requested type")

// Resolve returns the pallet and event index of id in md
func (id Identity) Resolve(md *metadata.Metadata) (pallet, event uint8, err error) {
	v, ok := md.EventByName(id.Pallet, id.Name)
	if !ok {
		return 0, 0, errors.Wrapf(metadata.ErrUnknownEvent, "%s.%s", id.Pallet, id.Name)
	}
	return v.Pallet.Index, v.Index(), nil
}

// Matches reports whether r carries the event id resolves to in md
func (id Identity) Matches(md *metadata.Metadata, r Record) bool {
	pallet, event, err := id.Resolve(md)
	return err == nil && r.PalletIndex == pallet && r.EventIndex == event
}

func (id Identity) String() string {
	return id.Pallet + "." + id.Name
}

// As decodes r into T when r matches T's identity. It returns false when r is
// another event, and an error matching ErrDecodeEvent when r matches but its
// fields do not fit T.
func As[T any, P Decoder[T]](md *metadata.Metadata, r Record) (T, bool, error) {
	var out T
	id := P(&out).EventIdentity()
	if !id.Matches(md, r) {
		return out, false, nil
	}
	if err := P(&out).DecodeEvent(r.Value); err != nil {
		return out, true, errors.Wrapf(ErrDecodeEvent, "%s: %v", id, err)
	}
	return out, true, nil
}
