package system

import (
	"go-substrate-client/codec"
	"go-substrate-client/events"
	"go-substrate-client/frame"
	"go-substrate-client/types"
)

type (
	ExtrinsicSuccess struct {
		DispatchInfo codec.Value
	}

	ExtrinsicFailed struct {
		DispatchError codec.Value
		DispatchInfo  codec.Value
	}

	NewAccount struct {
		Account types.AccountID
	}

	KilledAccount struct {
		Account types.AccountID
	}

	Remarked struct {
		Sender types.AccountID
		Hash   types.Hash
	}
)

func (ExtrinsicSuccess) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "ExtrinsicSuccess"}
}

func (e *ExtrinsicSuccess) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Value("dispatch_info", &e.DispatchInfo).Err()
}

func (ExtrinsicFailed) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "ExtrinsicFailed"}
}

func (e *ExtrinsicFailed) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).
		Value("dispatch_error", &e.DispatchError).
		Value("dispatch_info", &e.DispatchInfo).
		Err()
}

func (NewAccount) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "NewAccount"}
}

func (e *NewAccount) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("account", &e.Account).Err()
}

func (KilledAccount) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "KilledAccount"}
}

func (e *KilledAccount) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("account", &e.Account).Err()
}

func (Remarked) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "Remarked"}
}

func (e *Remarked) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("sender", &e.Sender).Hash("hash", &e.Hash).Err()
}
