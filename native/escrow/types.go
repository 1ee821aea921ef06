package escrow

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Escrow is the sole persistent entity of the settlement ledger. Identifier,
// payer, amount and meta hash are immutable after creation; Released grows
// monotonically towards Amount as batches pay out.
type Escrow struct {
	ID              common.Hash
	Payer           common.Address
	Amount          *big.Int
	Released        *big.Int
	ReadyForRelease bool
	Disputed        bool
	MetaHash        common.Hash
	CreatedAt       uint64
}

// Clone returns a deep copy of the escrow so callers can mutate the copy
// without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if e.Released != nil {
		clone.Released = new(big.Int).Set(e.Released)
	} else {
		clone.Released = big.NewInt(0)
	}
	return &clone
}

// Remaining returns the unreleased balance backing the escrow.
func (e *Escrow) Remaining() *big.Int {
	if e == nil || e.Amount == nil {
		return big.NewInt(0)
	}
	released := e.Released
	if released == nil {
		released = big.NewInt(0)
	}
	return new(big.Int).Sub(e.Amount, released)
}

// SanitizeEscrow validates the supplied escrow record and returns a cloned
// instance with non-nil amount fields. The fund-conservation invariant
// 0 <= released <= amount must hold for every stored record.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil escrow")
	}
	clone := e.Clone()
	if clone.ID == (common.Hash{}) {
		return nil, fmt.Errorf("escrow: zero identifier")
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive")
	}
	if clone.Released.Sign() < 0 {
		return nil, fmt.Errorf("escrow: released must be non-negative")
	}
	if clone.Released.Cmp(clone.Amount) > 0 {
		return nil, fmt.Errorf("escrow: released exceeds amount")
	}
	return clone, nil
}
