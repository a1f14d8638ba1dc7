package metadata

import "github.com/pkg/errors"

var (
	ErrVersionUnsupported = errors.New("metadata: unsupported version")
	ErrMalformed          = errors.New("metadata: malformed blob")
	ErrStaleMetadata      = errors.New("metadata: stale metadata")

	ErrUnknownModule   = errors.New("metadata: unknown module")
	ErrUnknownCall     = errors.New("metadata: unknown call")
	ErrUnknownStorage  = errors.New("metadata: unknown storage item")
	ErrUnknownConstant = errors.New("metadata: unknown constant")
	ErrUnknownError    = errors.New("metadata: unknown error")

	// ErrUnknownEvent also matches ErrUnknownError
	ErrUnknownEvent = errors.Wrap(ErrUnknownError, "unknown event")

	ErrStorageKeyMismatch = errors.New("metadata: storage key count mismatch")
)
