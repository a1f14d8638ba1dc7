package extrinsic

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrArgCountMismatch     = errors.New("extrinsic: argument count mismatch")
	ErrArgEncode            = errors.New("extrinsic: argument encoding failed")
	ErrUnsupportedExtension = errors.New("extrinsic: unsupported signed extension")
	ErrInvalidEra           = errors.New("extrinsic: invalid era")
	ErrMissingAnchor        = errors.New("extrinsic: mortal era without anchor block hash")
)

// ArgError reports which call argument failed to encode. It matches
// ErrArgEncode and unwraps to the codec error.
type ArgError struct {
	Call  string
	Index int
	Name  string
	Err   error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("extrinsic: %s argument %d (%s): %v", e.Call, e.Index, e.Name, e.Err)
}

func (e *ArgError) Unwrap() error {
	return e.Err
}

func (e *ArgError) Is(target error) bool {
	return target == ErrArgEncode
}
