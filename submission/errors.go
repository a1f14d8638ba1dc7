package submission

import (
	"fmt"

	"go-substrate-client/rpc"

	"github.com/pkg/errors"
)

var (
	ErrWatchEnded = errors.New("submission: watch ended before a final status")
	ErrNotInBlock = errors.New("submission: extrinsic not found in reported block")
)

// rpc error codes of the node's transaction pool
const (
	codeInvalidTransaction = 1010
	codeUnknownValidity    = 1011
	codeTemporarilyBanned  = 1012
	codeAlreadyImported    = 1013
	codePriorityTooLow     = 1014
	codeCycleDetected      = 1015
	codeImmediatelyDropped = 1016
)

// RejectedError reports a transaction the node refused before inclusion or
// dropped from its pool. It is terminal; nothing resubmits the transaction.
type RejectedError struct {
	State  State
	Code   int    // rpc error code, 0 when reported by a status notification
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("submission: transaction %s", e.State)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (%d)", e.Code)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// rejection classifies an error returned by the submit call. Pool errors
// become a RejectedError; anything else is returned as is.
func rejection(err error) error {
	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}

	reason := rpcErr.Message
	if rpcErr.Data != "" {
		reason += ": " + rpcErr.Data
	}
	switch rpcErr.Code {
	case codeInvalidTransaction, codeUnknownValidity:
		return &RejectedError{State: Invalid, Code: rpcErr.Code, Reason: reason, Err: err}
	case codeTemporarilyBanned, codeAlreadyImported, codePriorityTooLow, codeCycleDetected, codeImmediatelyDropped:
		return &RejectedError{State: Dropped, Code: rpcErr.Code, Reason: reason, Err: err}
	}
	return err
}
