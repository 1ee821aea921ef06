package types

import "math/big"

// Account is the token-ledger record for a single address. Balance is
// denominated in the settlement token's smallest unit.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Normalize returns the account with a non-nil balance so callers can operate
// on it without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}
