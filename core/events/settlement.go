package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/types"
)

const (
	TypeSettlementBatchPaid         = "settlement.batch_paid"
	TypeSettlementRevenueShared     = "settlement.revenue_shared"
	TypeSettlementCommissionUpdated = "settlement.commission_updated"
	TypeSettlementTreasuryUpdated   = "settlement.treasury_updated"
	TypeSettlementPaused            = "settlement.paused"
	TypeSettlementUnpaused          = "settlement.unpaused"
)

// SettlementBatchPaid summarises a completed release batch. It is emitted once
// per batch after the commission sweep.
type SettlementBatchPaid struct {
	BatchID         common.Hash
	ItemCount       uint64
	TotalCommission *big.Int
}

func (SettlementBatchPaid) EventType() string { return TypeSettlementBatchPaid }

func (e SettlementBatchPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeSettlementBatchPaid,
		Attributes: map[string]string{
			"batchId":         e.BatchID.Hex(),
			"itemCount":       uintToString(e.ItemCount),
			"totalCommission": formatAmount(e.TotalCommission),
		},
	}
}

// SettlementRevenueShared summarises a completed revenue-share batch.
type SettlementRevenueShared struct {
	BatchID   common.Hash
	ItemCount uint64
}

func (SettlementRevenueShared) EventType() string { return TypeSettlementRevenueShared }

func (e SettlementRevenueShared) Event() *types.Event {
	return &types.Event{
		Type: TypeSettlementRevenueShared,
		Attributes: map[string]string{
			"batchId":   e.BatchID.Hex(),
			"itemCount": uintToString(e.ItemCount),
		},
	}
}

// SettlementCommissionUpdated records an administrator change of the
// commission rate.
type SettlementCommissionUpdated struct {
	Bps uint32
}

func (SettlementCommissionUpdated) EventType() string { return TypeSettlementCommissionUpdated }

func (e SettlementCommissionUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSettlementCommissionUpdated,
		Attributes: map[string]string{
			"bps": uintToString(uint64(e.Bps)),
		},
	}
}

// SettlementTreasuryUpdated records an administrator change of the commission
// treasury destination.
type SettlementTreasuryUpdated struct {
	Treasury common.Address
}

func (SettlementTreasuryUpdated) EventType() string { return TypeSettlementTreasuryUpdated }

func (e SettlementTreasuryUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSettlementTreasuryUpdated,
		Attributes: map[string]string{
			"treasury": e.Treasury.Hex(),
		},
	}
}

// SettlementPaused is emitted when the administrator halts fund-moving
// operations.
type SettlementPaused struct {
	Caller common.Address
}

func (SettlementPaused) EventType() string { return TypeSettlementPaused }

func (e SettlementPaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeSettlementPaused,
		Attributes: map[string]string{"caller": e.Caller.Hex()},
	}
}

// SettlementUnpaused is emitted when the administrator resumes operations.
type SettlementUnpaused struct {
	Caller common.Address
}

func (SettlementUnpaused) EventType() string { return TypeSettlementUnpaused }

func (e SettlementUnpaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeSettlementUnpaused,
		Attributes: map[string]string{"caller": e.Caller.Hex()},
	}
}
