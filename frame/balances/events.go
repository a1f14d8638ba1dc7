package balances

import (
	"math/big"

	"go-substrate-client/codec"
	"go-substrate-client/events"
	"go-substrate-client/frame"
	"go-substrate-client/types"
)

type (
	Transfer struct {
		From   types.AccountID
		To     types.AccountID
		Amount *big.Int
	}

	Endowed struct {
		Account     types.AccountID
		FreeBalance *big.Int
	}

	DustLost struct {
		Account types.AccountID
		Amount  *big.Int
	}

	Deposit struct {
		Who    types.AccountID
		Amount *big.Int
	}

	Withdraw struct {
		Who    types.AccountID
		Amount *big.Int
	}

	Reserved struct {
		Who    types.AccountID
		Amount *big.Int
	}
)

func (Transfer) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "Transfer"}
}

func (e *Transfer) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("from", &e.From).Account("to", &e.To).Balance("amount", &e.Amount).Err()
}

func (Endowed) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "Endowed"}
}

func (e *Endowed) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("account", &e.Account).Balance("free_balance", &e.FreeBalance).Err()
}

func (DustLost) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "DustLost"}
}

func (e *DustLost) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("account", &e.Account).Balance("amount", &e.Amount).Err()
}

func (Deposit) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "Deposit"}
}

func (e *Deposit) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("who", &e.Who).Balance("amount", &e.Amount).Err()
}

func (Withdraw) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "Withdraw"}
}

func (e *Withdraw) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("who", &e.Who).Balance("amount", &e.Amount).Err()
}

func (Reserved) EventIdentity() events.Identity {
	return events.Identity{Pallet: Pallet, Name: "Reserved"}
}

func (e *Reserved) DecodeEvent(v codec.Value) error {
	return frame.Fields(v).Account("who", &e.Who).Balance("amount", &e.Amount).Err()
}
