package escrow

import "errors"

// Every mutating operation evaluates its preconditions before touching state
// and surfaces a specific condition, so operator tooling can distinguish
// "retry later" from "never retry as-is". None of these are retried
// internally.
var (
	ErrInvalidID        = errors.New("escrow: invalid identifier")
	ErrZeroAmount       = errors.New("escrow: amount must be positive")
	ErrZeroRecipient    = errors.New("escrow: recipient must not be zero")
	ErrEscrowExists     = errors.New("escrow: identifier already exists")
	ErrEscrowNotFound   = errors.New("escrow: escrow not found")
	ErrNotAuthorized    = errors.New("escrow: caller not authorized")
	ErrAlreadyDisputed  = errors.New("escrow: already disputed")
	ErrNotDisputed      = errors.New("escrow: not disputed")
	ErrAlreadyConfirmed = errors.New("escrow: delivery already confirmed")
	ErrNotReady         = errors.New("escrow: not ready for release")
	ErrDisputed         = errors.New("escrow: escrow disputed")
	ErrExceedsEscrow    = errors.New("escrow: release exceeds escrow amount")
	ErrLengthMismatch   = errors.New("escrow: stakeholders and amounts length mismatch")
	ErrTransferFailed   = errors.New("escrow: token transfer failed")

	ErrEmptyBatch        = errors.New("settlement: batch must not be empty")
	ErrBatchTooLarge     = errors.New("settlement: batch exceeds item cap")
	ErrCommissionTooHigh = errors.New("settlement: commission bps above ceiling")
	ErrTreasuryNotSet    = errors.New("settlement: treasury not configured")
	ErrZeroTreasury      = errors.New("settlement: treasury must not be zero")
)
