package metadata

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go-substrate-client/codec"

	"github.com/pkg/errors"
)

type (
	// Version identifies the runtime a metadata blob was published by
	Version struct {
		SpecVersion        uint32
		TransactionVersion uint32
	}

	// Snapshot pairs parsed metadata with the runtime version it belongs to.
	// Snapshots are never mutated; an upgrade installs a new one.
	Snapshot struct {
		Metadata   *Metadata
		Version    Version
		Generation uint64
	}

	// Registry holds the current Snapshot. Readers load it without locking and
	// observe either the old or the new snapshot across a replacement.
	Registry struct {
		current atomic.Pointer[Snapshot]
		mu      sync.Mutex // serializes writers
	}

	// StaleError reports that an operation used a snapshot that has since
	// been replaced. It matches ErrStaleMetadata and unwraps to the failure
	// observed against the old snapshot, if any.
	StaleError struct {
		Generation uint64
		Current    uint64
		Err        error
	}
)

func NewRegistry() *Registry {
	return &Registry{}
}

// Load returns the current snapshot, nil before the first Store
func (r *Registry) Load() *Snapshot {
	return r.current.Load()
}

// Replace parses raw and installs it as the current snapshot. Replacing with
// an identical blob for the same version keeps the current snapshot.
func (r *Registry) Replace(raw []byte, version Version) (*Snapshot, error) {
	m, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return r.Store(m, version), nil
}

// Store installs already parsed metadata as the current snapshot
func (r *Registry) Store(m *Metadata, version Version) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if prev != nil && prev.Version == version && prev.Metadata.Fingerprint == m.Fingerprint {
		return prev
	}

	next := &Snapshot{Metadata: m, Version: version, Generation: 1}
	if prev != nil {
		next.Generation = prev.Generation + 1
	}
	r.current.Store(next)
	return next
}

// Check returns a StaleError when s is no longer the current snapshot
func (r *Registry) Check(s *Snapshot) error {
	current := r.current.Load()
	if s == nil || current == nil || s.Generation != current.Generation {
		return newStaleError(s, current, nil)
	}
	return nil
}

// Classify wraps a lookup or decode failure observed against s in a
// StaleError when s has been replaced, so callers can refresh and retry.
// Any other error is returned unchanged.
func (r *Registry) Classify(s *Snapshot, err error) error {
	if err == nil || !isLookupFailure(err) {
		return err
	}
	current := r.current.Load()
	if s != nil && current != nil && s.Generation == current.Generation {
		return err
	}
	return newStaleError(s, current, err)
}

func newStaleError(s, current *Snapshot, err error) error {
	stale := &StaleError{Err: err}
	if s != nil {
		stale.Generation = s.Generation
	}
	if current != nil {
		stale.Current = current.Generation
	}
	return stale
}

func isLookupFailure(err error) bool {
	for _, target := range []error{
		ErrUnknownModule, ErrUnknownCall, ErrUnknownStorage, ErrUnknownConstant, ErrUnknownError,
		codec.ErrInvalidDiscriminant, codec.ErrUnexpectedEOF, codec.ErrTrailingBytes, codec.ErrTypeMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *StaleError) Error() string {
	msg := fmt.Sprintf("metadata: stale metadata (generation %d, current %d)", e.Generation, e.Current)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StaleError) Unwrap() error {
	return e.Err
}

func (e *StaleError) Is(target error) bool {
	return target == ErrStaleMetadata
}
