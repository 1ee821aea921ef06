package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/types"
)

const (
	TypeEscrowDeposited         = "escrow.deposited"
	TypeEscrowDeliveryConfirmed = "escrow.delivery_confirmed"
	TypeEscrowDisputed          = "escrow.disputed"
	TypeEscrowDisputeCleared    = "escrow.dispute_cleared"
)

// EscrowDeposited is emitted when a payer funds a new escrow.
type EscrowDeposited struct {
	ID       common.Hash
	Payer    common.Address
	Amount   *big.Int
	MetaHash common.Hash
}

func (EscrowDeposited) EventType() string { return TypeEscrowDeposited }

func (e EscrowDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowDeposited,
		Attributes: map[string]string{
			"id":       e.ID.Hex(),
			"payer":    e.Payer.Hex(),
			"amount":   formatAmount(e.Amount),
			"metaHash": e.MetaHash.Hex(),
		},
	}
}

// EscrowDeliveryConfirmed is emitted when the settlement authority confirms
// delivery and the escrow becomes releasable.
type EscrowDeliveryConfirmed struct {
	ID     common.Hash
	Caller common.Address
}

func (EscrowDeliveryConfirmed) EventType() string { return TypeEscrowDeliveryConfirmed }

func (e EscrowDeliveryConfirmed) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowDeliveryConfirmed,
		Attributes: map[string]string{
			"id":     e.ID.Hex(),
			"caller": e.Caller.Hex(),
		},
	}
}

// EscrowDisputed is emitted when the payer or an administrator raises a
// dispute on an escrow.
type EscrowDisputed struct {
	ID     common.Hash
	Caller common.Address
}

func (EscrowDisputed) EventType() string { return TypeEscrowDisputed }

func (e EscrowDisputed) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowDisputed,
		Attributes: map[string]string{
			"id":     e.ID.Hex(),
			"caller": e.Caller.Hex(),
		},
	}
}

// EscrowDisputeCleared is emitted when an administrator clears a dispute.
type EscrowDisputeCleared struct {
	ID     common.Hash
	Caller common.Address
}

func (EscrowDisputeCleared) EventType() string { return TypeEscrowDisputeCleared }

func (e EscrowDisputeCleared) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowDisputeCleared,
		Attributes: map[string]string{
			"id":     e.ID.Hex(),
			"caller": e.Caller.Hex(),
		},
	}
}
