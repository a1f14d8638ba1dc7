package events

import (
	"bytes"
	"context"
	"sync"

	"go-substrate-client/metadata"
	"go-substrate-client/rpc"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

// ErrEndOfStream is returned by every read once the stream was closed by the
// node, released with Close or ended by a block that failed to decode
var ErrEndOfStream = errors.New("events: end of stream")

type (
	// Batch is the events of one block, in emission order
	Batch struct {
		Block   types.Hash
		Records []Record
	}

	// Subscription streams the events of every new block. Reads are not safe
	// for concurrent use; Close may be called from any goroutine.
	Subscription struct {
		sub      *rpc.Subscription[rpc.StorageChangeSet]
		registry *metadata.Registry
		key      []byte

		filter  func(*metadata.Metadata, Record) bool
		block   types.Hash
		pending []Record
		md      *metadata.Metadata

		mu     sync.Mutex
		closed bool
		cause  error
	}

	// Typed is a subscription narrowed to one event type
	Typed[T any, P Decoder[T]] struct {
		s *Subscription
	}
)

// Subscribe opens a System.Events storage subscription. Records are decoded
// with the registry's snapshot current when each block arrives.
func Subscribe(ctx context.Context, node rpc.Node, registry *metadata.Registry) (*Subscription, error) {
	snapshot := registry.Load()
	if snapshot == nil {
		return nil, errors.Wrap(metadata.ErrStaleMetadata, "events: no metadata loaded")
	}
	key, err := StorageKey(snapshot.Metadata)
	if err != nil {
		return nil, err
	}
	sub, err := node.SubscribeStorage(ctx, [][]byte{key})
	if err != nil {
		return nil, err
	}
	return &Subscription{sub: sub, registry: registry, key: key}, nil
}

// FilterEvent narrows later reads to records of pallet.name. Other records,
// including the rest of the current block, are discarded.
func (s *Subscription) FilterEvent(pallet, name string) *Subscription {
	id := Identity{Pallet: pallet, Name: name}
	s.filter = func(md *metadata.Metadata, r Record) bool {
		return id.Matches(md, r)
	}
	return s
}

// Filter narrows s to events of type T
func Filter[T any, P Decoder[T]](s *Subscription) *Typed[T, P] {
	var zero T
	id := P(&zero).EventIdentity()
	s.FilterEvent(id.Pallet, id.Name)
	return &Typed[T, P]{s: s}
}

// Next waits for the next matching event and decodes it
func (t *Typed[T, P]) Next(ctx context.Context) (T, error) {
	var zero T
	r, err := t.s.Next(ctx)
	if err != nil {
		return zero, err
	}
	v, _, err := As[T, P](t.s.md, r)
	return v, err
}

func (t *Typed[T, P]) Close() error {
	return t.s.Close()
}

// Next returns the next record passing the filter, waiting for new blocks
// as needed
func (s *Subscription) Next(ctx context.Context) (Record, error) {
	for {
		if s.isClosed() {
			return Record{}, ErrEndOfStream
		}
		for len(s.pending) > 0 {
			r := s.pending[0]
			s.pending = s.pending[1:]
			if s.filter == nil || s.filter(s.md, r) {
				return r, nil
			}
		}
		if err := s.fill(ctx); err != nil {
			return Record{}, err
		}
	}
}

// NextBatch returns the remaining records of the current block, or the
// records of the next block. The filter applies.
func (s *Subscription) NextBatch(ctx context.Context) (Batch, error) {
	if s.isClosed() {
		return Batch{}, ErrEndOfStream
	}
	if len(s.pending) == 0 {
		if err := s.fill(ctx); err != nil {
			return Batch{}, err
		}
	}
	batch := Batch{Block: s.block}
	for _, r := range s.pending {
		if s.filter == nil || s.filter(s.md, r) {
			batch.Records = append(batch.Records, r)
		}
	}
	s.pending = nil
	return batch, nil
}

// Metadata returns the metadata the current block was decoded with
func (s *Subscription) Metadata() *metadata.Metadata {
	return s.md
}

// fill reads change sets until one carries events
func (s *Subscription) fill(ctx context.Context) error {
	for {
		if s.isClosed() {
			return ErrEndOfStream
		}
		changes, err := s.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.end(err)
			return ErrEndOfStream
		}

		for _, change := range changes.Changes {
			if !bytes.Equal(change.Key, s.key) || change.Data == nil {
				continue
			}
			snapshot := s.registry.Load()
			records, err := Decode(snapshot.Metadata, change.Data)
			if err != nil {
				err = s.registry.Classify(snapshot, err)
				s.release(err)
				return err
			}
			s.md = snapshot.Metadata
			s.block = changes.Block
			s.pending = records
			return nil
		}
	}
}

// Close releases the subscription and unsubscribes at the node. Pending and
// later reads return ErrEndOfStream.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Err returns why the stream ended, nil after a local Close
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(s.cause, rpc.ErrSubscriptionClosed) {
		return nil
	}
	return s.cause
}

func (s *Subscription) end(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cause == nil {
		s.cause = cause
	}
}

// release ends the stream after a block that cannot be decoded and
// unsubscribes at the node
func (s *Subscription) release(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cause = cause
	s.mu.Unlock()
	_ = s.sub.Unsubscribe()
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
