package rpc

import (
	"fmt"

	"go-substrate-client/types"
)

// StatusKind is the transaction pool status reported by author_submitAndWatchExtrinsic
type StatusKind uint8

const (
	StatusFuture StatusKind = iota
	StatusReady
	StatusBroadcast
	StatusInBlock
	StatusRetracted
	StatusFinalityTimeout
	StatusFinalized
	StatusUsurped
	StatusDropped
	StatusInvalid
)

var statusNames = []string{
	"future", "ready", "broadcast", "inBlock", "retracted",
	"finalityTimeout", "finalized", "usurped", "dropped", "invalid",
}

func (k StatusKind) String() string {
	if int(k) < len(statusNames) {
		return statusNames[k]
	}
	return "unknown"
}

// ParseStatusKind maps a status name as sent by the node
func ParseStatusKind(name string) (StatusKind, bool) {
	for i, n := range statusNames {
		if n == name {
			return StatusKind(i), true
		}
	}
	return 0, false
}

// Final reports whether the node sends nothing after this status
func (k StatusKind) Final() bool {
	switch k {
	case StatusFinalized, StatusFinalityTimeout, StatusUsurped, StatusDropped, StatusInvalid:
		return true
	}
	return false
}

// TransactionStatus is one notification of a watched extrinsic
type TransactionStatus struct {
	Kind StatusKind

	// Block is set for inBlock, retracted, finalityTimeout and finalized;
	// for usurped it is the hash of the replacing transaction
	Block     types.Hash
	Broadcast []string
}

func (s TransactionStatus) String() string {
	switch s.Kind {
	case StatusInBlock, StatusRetracted, StatusFinalityTimeout, StatusFinalized, StatusUsurped:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Block.Hex())
	}
	return s.Kind.String()
}
