package rpc

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrSubscriptionClosed = errors.New("rpc: subscription closed")

type (
	// Error is a JSON-RPC error object returned by the node
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data,omitempty"`
	}

	// TransportError reports that a call could not reach the node or its
	// answer could not be read
	TransportError struct {
		Method string
		Err    error
	}
)

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc transport %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
