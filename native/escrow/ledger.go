package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/events"
	nativecommon "clearcore/native/common"
)

const escrowModuleName = "escrow"

var errNilState = errors.New("escrow ledger: state not configured")

// State is the persistence surface the escrow engines require.
type State interface {
	EscrowPut(*Escrow) error
	EscrowGet(id common.Hash) (*Escrow, bool)
}

// TokenBridge is the external fungible-token collaborator. Pull moves funds
// from a payer into custody; Push moves funds out of custody. A reported
// failure aborts the whole enclosing operation.
type TokenBridge interface {
	Pull(from common.Address, amount *big.Int) error
	Push(to common.Address, amount *big.Int) error
}

// Authority resolves role membership for callers of gated operations.
type Authority interface {
	IsAdmin(addr common.Address) bool
	IsSettlement(addr common.Address) bool
}

// Ledger owns escrow records and raw fund custody. It is the only component
// allowed to move funds out of custody, and every mutating entry point is
// all-or-nothing: precondition failures abort the call with no partial
// mutation and no partial transfer.
type Ledger struct {
	state   State
	token   TokenBridge
	auth    Authority
	emitter events.Emitter
	guard   *nativecommon.CallGuard
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewLedger creates an escrow ledger with a no-op emitter and its own call
// guard. Callers wire state, token bridge and authority before use.
func NewLedger() *Ledger {
	return &Ledger{
		emitter: events.NoopEmitter{},
		guard:   &nativecommon.CallGuard{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state State) { l.state = state }

// SetToken configures the fungible-token collaborator.
func (l *Ledger) SetToken(token TokenBridge) { l.token = token }

// SetAuthority configures the role registry consulted by gated operations.
func (l *Ledger) SetAuthority(auth Authority) { l.auth = auth }

// SetPauses configures the circuit-breaker view consulted before any state
// change.
func (l *Ledger) SetPauses(p nativecommon.PauseView) { l.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetGuard overrides the re-entrancy guard. A settlement engine sharing the
// ledger's deployment unit passes its own guard here so the two components
// form one external-facing surface.
func (l *Ledger) SetGuard(guard *nativecommon.CallGuard) {
	if guard == nil {
		guard = &nativecommon.CallGuard{}
	}
	l.guard = guard
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// Guard exposes the ledger's re-entrancy guard for co-deployed components.
func (l *Ledger) Guard() *nativecommon.CallGuard { return l.guard }

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(evt)
}

func (l *Ledger) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

func (l *Ledger) loadEscrow(id common.Hash) (*Escrow, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	esc, ok := l.state.EscrowGet(id)
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func (l *Ledger) isAdmin(addr common.Address) bool {
	return l.auth != nil && l.auth.IsAdmin(addr)
}

func (l *Ledger) isSettlement(addr common.Address) bool {
	return l.auth != nil && l.auth.IsSettlement(addr)
}

// Deposit pulls amount from the payer's token balance into custody and
// creates the escrow record. Identifiers are caller-supplied and
// collision-checked, never regenerated.
func (l *Ledger) Deposit(id common.Hash, payer common.Address, amount *big.Int, metaHash common.Hash) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	if l.state == nil || l.token == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, escrowModuleName); err != nil {
		return err
	}
	if id == (common.Hash{}) {
		return ErrInvalidID
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if _, exists := l.state.EscrowGet(id); exists {
		return ErrEscrowExists
	}
	if err := l.token.Pull(payer, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	esc := &Escrow{
		ID:        id,
		Payer:     payer,
		Amount:    new(big.Int).Set(amount),
		Released:  big.NewInt(0),
		MetaHash:  metaHash,
		CreatedAt: uint64(l.now()),
	}
	if err := l.state.EscrowPut(esc); err != nil {
		return err
	}
	l.emit(events.EscrowDeposited{ID: id, Payer: payer, Amount: new(big.Int).Set(amount), MetaHash: metaHash})
	return nil
}

// RaiseDispute marks the escrow disputed, blocking confirmation and all
// fund-moving transitions until an administrator clears it. Only the payer or
// an administrator may raise. Disputes stay available while paused so the
// circuit breaker cannot silence the safety valve.
func (l *Ledger) RaiseDispute(id common.Hash, caller common.Address) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	esc, err := l.loadEscrow(id)
	if err != nil {
		return err
	}
	if caller != esc.Payer && !l.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	esc.Disputed = true
	if err := l.state.EscrowPut(esc); err != nil {
		return err
	}
	l.emit(events.EscrowDisputed{ID: id, Caller: caller})
	return nil
}

// ClearDispute lifts the dispute gate. Administrator only.
func (l *Ledger) ClearDispute(id common.Hash, caller common.Address) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	esc, err := l.loadEscrow(id)
	if err != nil {
		return err
	}
	if !l.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if !esc.Disputed {
		return ErrNotDisputed
	}
	esc.Disputed = false
	if err := l.state.EscrowPut(esc); err != nil {
		return err
	}
	l.emit(events.EscrowDisputeCleared{ID: id, Caller: caller})
	return nil
}

// ConfirmDelivery marks the escrow releasable. Settlement authority only; the
// transition happens at most once and is blocked while disputed.
func (l *Ledger) ConfirmDelivery(id common.Hash, caller common.Address) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	if err := nativecommon.Guard(l.pauses, escrowModuleName); err != nil {
		return err
	}
	esc, err := l.loadEscrow(id)
	if err != nil {
		return err
	}
	if !l.isSettlement(caller) {
		return ErrNotAuthorized
	}
	if esc.Disputed {
		return ErrDisputed
	}
	if esc.ReadyForRelease {
		return ErrAlreadyConfirmed
	}
	esc.ReadyForRelease = true
	if err := l.state.EscrowPut(esc); err != nil {
		return err
	}
	l.emit(events.EscrowDeliveryConfirmed{ID: id, Caller: caller})
	return nil
}

// ReleaseTo pays amount-commission to the recipient out of custody and
// increments the escrow's released total by amount. The commission stays in
// custody for the caller to sweep once per batch. Settlement authority only.
func (l *Ledger) ReleaseTo(id common.Hash, amount *big.Int, recipient common.Address, commission *big.Int, caller common.Address) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	if err := nativecommon.Guard(l.pauses, escrowModuleName); err != nil {
		return err
	}
	if !l.isSettlement(caller) {
		return ErrNotAuthorized
	}
	return l.release(id, amount, recipient, commission)
}

// ShareTo distributes amounts directly to their recipients out of custody and
// increments the escrow's released total by the sum. No commission is taken on
// this path. Settlement authority only.
func (l *Ledger) ShareTo(id common.Hash, stakeholders []common.Address, amounts []*big.Int, caller common.Address) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	if err := nativecommon.Guard(l.pauses, escrowModuleName); err != nil {
		return err
	}
	if !l.isSettlement(caller) {
		return ErrNotAuthorized
	}
	return l.share(id, stakeholders, amounts)
}

// release is the guarded core of ReleaseTo, shared with the settlement engine
// which holds the component guard across a whole batch.
func (l *Ledger) release(id common.Hash, amount *big.Int, recipient common.Address, commission *big.Int) error {
	if l.state == nil || l.token == nil {
		return errNilState
	}
	esc, err := l.loadEscrow(id)
	if err != nil {
		return err
	}
	if !esc.ReadyForRelease {
		return ErrNotReady
	}
	if esc.Disputed {
		return ErrDisputed
	}
	if recipient == (common.Address{}) {
		return ErrZeroRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if commission == nil {
		commission = big.NewInt(0)
	}
	if commission.Sign() < 0 || commission.Cmp(amount) > 0 {
		return fmt.Errorf("escrow: commission out of range")
	}
	released := new(big.Int).Add(esc.Released, amount)
	if released.Cmp(esc.Amount) > 0 {
		return ErrExceedsEscrow
	}
	payout := new(big.Int).Sub(amount, commission)
	if payout.Sign() > 0 {
		if err := l.token.Push(recipient, payout); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	esc.Released = released
	return l.state.EscrowPut(esc)
}

// share is the guarded core of ShareTo, shared with the settlement engine.
func (l *Ledger) share(id common.Hash, stakeholders []common.Address, amounts []*big.Int) error {
	if l.state == nil || l.token == nil {
		return errNilState
	}
	esc, err := l.loadEscrow(id)
	if err != nil {
		return err
	}
	if !esc.ReadyForRelease {
		return ErrNotReady
	}
	if esc.Disputed {
		return ErrDisputed
	}
	if len(stakeholders) == 0 || len(stakeholders) != len(amounts) {
		return ErrLengthMismatch
	}
	total := big.NewInt(0)
	for i, stakeholder := range stakeholders {
		if stakeholder == (common.Address{}) {
			return ErrZeroRecipient
		}
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return ErrZeroAmount
		}
		total = total.Add(total, amounts[i])
	}
	if total.Cmp(esc.Remaining()) > 0 {
		return ErrExceedsEscrow
	}
	for i, stakeholder := range stakeholders {
		if err := l.token.Push(stakeholder, amounts[i]); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	esc.Released = new(big.Int).Add(esc.Released, total)
	return l.state.EscrowPut(esc)
}

// --- Read-only queries ---

// Get returns a copy of the escrow record.
func (l *Ledger) Get(id common.Hash) (*Escrow, error) {
	esc, err := l.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Exists reports whether an escrow record is present for the identifier.
func (l *Ledger) Exists(id common.Hash) bool {
	if l == nil || l.state == nil {
		return false
	}
	_, ok := l.state.EscrowGet(id)
	return ok
}

// Remaining returns the unreleased balance of the escrow.
func (l *Ledger) Remaining(id common.Hash) (*big.Int, error) {
	esc, err := l.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Remaining(), nil
}
