package escrow

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/events"
	nativecommon "clearcore/native/common"
)

const settlementModuleName = "settlement"

// Bounds on batched settlement work. The item cap limits the blast radius of
// one failing batch; the commission ceiling is an economic guardrail
// independent of any single escrow.
const (
	MaxBatchItems    = 50
	MaxCommissionBps = 1000
	bpsDenominator   = 10_000
)

// Parameter names for the settlement module.
const (
	ParamCommissionBps = "settlement/commission-bps"
	ParamTreasury      = "settlement/treasury"
)

var errNilLedger = errors.New("settlement engine: ledger not configured")

// ParamStore persists module parameters across calls.
type ParamStore interface {
	ParamPut(name string, value interface{}) error
	ParamGet(name string, out interface{}) (bool, error)
}

// ReleaseItem is one leg of a release batch.
type ReleaseItem struct {
	EscrowID  common.Hash
	Recipient common.Address
	Amount    *big.Int
}

// ShareItem is one leg of a revenue-share batch. Stakeholders and Amounts
// pair element-wise.
type ShareItem struct {
	EscrowID     common.Hash
	Stakeholders []common.Address
	Amounts      []*big.Int
}

// BatchReceipt summarises a completed batch.
type BatchReceipt struct {
	BatchID         common.Hash
	ItemCount       int
	Gross           *big.Int
	TotalCommission *big.Int
}

// SettlementEngine drives the escrow ledger through batched, all-or-nothing
// release operations, computes the commission split and enforces operator
// authority. It shares the ledger's call guard so the pair forms a single
// external-facing surface: while a batch executes, any re-entrant call into a
// mutating entry point is rejected outright.
type SettlementEngine struct {
	ledger  *Ledger
	params  ParamStore
	token   TokenBridge
	auth    Authority
	emitter events.Emitter
	guard   *nativecommon.CallGuard
	pauses  nativecommon.PauseView
}

// NewSettlementEngine constructs a settlement engine bound to the supplied
// ledger, adopting the ledger's call guard.
func NewSettlementEngine(ledger *Ledger) *SettlementEngine {
	engine := &SettlementEngine{
		ledger:  ledger,
		emitter: events.NoopEmitter{},
		guard:   &nativecommon.CallGuard{},
	}
	if ledger != nil {
		engine.guard = ledger.Guard()
	}
	return engine
}

// SetParams configures the parameter store holding commission and treasury.
func (s *SettlementEngine) SetParams(params ParamStore) { s.params = params }

// SetToken configures the token bridge used for the commission sweep.
func (s *SettlementEngine) SetToken(token TokenBridge) { s.token = token }

// SetAuthority configures the role registry consulted by gated operations.
func (s *SettlementEngine) SetAuthority(auth Authority) { s.auth = auth }

// SetPauses configures the circuit-breaker view.
func (s *SettlementEngine) SetPauses(p nativecommon.PauseView) {
	s.pauses = p
	if s.ledger != nil {
		s.ledger.SetPauses(p)
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (s *SettlementEngine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *SettlementEngine) emit(evt events.Event) {
	if s == nil || s.emitter == nil || evt == nil {
		return
	}
	s.emitter.Emit(evt)
}

func (s *SettlementEngine) isAdmin(addr common.Address) bool {
	return s.auth != nil && s.auth.IsAdmin(addr)
}

func (s *SettlementEngine) isSettlement(addr common.Address) bool {
	return s.auth != nil && s.auth.IsSettlement(addr)
}

// CommissionBps returns the configured commission rate, zero when unset.
func (s *SettlementEngine) CommissionBps() (uint32, error) {
	if s.params == nil {
		return 0, nil
	}
	var bps uint32
	ok, err := s.params.ParamGet(ParamCommissionBps, &bps)
	if err != nil || !ok {
		return 0, err
	}
	return bps, nil
}

// Treasury returns the configured commission destination. The boolean reports
// whether a treasury has been set.
func (s *SettlementEngine) Treasury() (common.Address, bool, error) {
	if s.params == nil {
		return common.Address{}, false, nil
	}
	var raw []byte
	ok, err := s.params.ParamGet(ParamTreasury, &raw)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

// Commission computes the floor basis-points commission on a gross amount.
func Commission(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	c := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return c.Div(c, big.NewInt(bpsDenominator))
}

func (s *SettlementEngine) checkBatchHeader(caller common.Address, batchID common.Hash, itemCount int) error {
	if err := nativecommon.Guard(s.pauses, settlementModuleName); err != nil {
		return err
	}
	if !s.isSettlement(caller) {
		return ErrNotAuthorized
	}
	if batchID == (common.Hash{}) {
		return ErrInvalidID
	}
	if itemCount == 0 {
		return ErrEmptyBatch
	}
	if itemCount > MaxBatchItems {
		return ErrBatchTooLarge
	}
	return nil
}

// BatchRelease processes up to MaxBatchItems release legs as one atomic unit,
// paying each recipient net of commission and sweeping the aggregated
// commission to the treasury once at the end. Rounding is applied once per
// item and the commission is summed, not recomputed, so no value is created
// or destroyed: sum(payouts) + totalCommission == sum(amounts) exactly.
//
// Any failing item aborts the whole call; the node discards the state overlay
// so earlier items in the same batch never become visible.
func (s *SettlementEngine) BatchRelease(caller common.Address, batchID common.Hash, items []ReleaseItem) (*BatchReceipt, error) {
	if err := s.guard.Enter(); err != nil {
		return nil, err
	}
	defer s.guard.Exit()
	if s.ledger == nil {
		return nil, errNilLedger
	}
	if err := s.checkBatchHeader(caller, batchID, len(items)); err != nil {
		return nil, err
	}
	bps, err := s.CommissionBps()
	if err != nil {
		return nil, err
	}
	gross := big.NewInt(0)
	totalCommission := big.NewInt(0)
	for _, item := range items {
		if item.Recipient == (common.Address{}) {
			return nil, ErrZeroRecipient
		}
		if item.Amount == nil || item.Amount.Sign() <= 0 {
			return nil, ErrZeroAmount
		}
		commission := Commission(item.Amount, bps)
		if err := s.ledger.release(item.EscrowID, item.Amount, item.Recipient, commission); err != nil {
			return nil, err
		}
		gross = gross.Add(gross, item.Amount)
		totalCommission = totalCommission.Add(totalCommission, commission)
	}
	if totalCommission.Sign() > 0 {
		treasury, ok, err := s.Treasury()
		if err != nil {
			return nil, err
		}
		if !ok || treasury == (common.Address{}) {
			return nil, ErrTreasuryNotSet
		}
		if s.token == nil {
			return nil, errNilLedger
		}
		if err := s.token.Push(treasury, totalCommission); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	s.emit(events.SettlementBatchPaid{
		BatchID:         batchID,
		ItemCount:       uint64(len(items)),
		TotalCommission: new(big.Int).Set(totalCommission),
	})
	return &BatchReceipt{
		BatchID:         batchID,
		ItemCount:       len(items),
		Gross:           gross,
		TotalCommission: totalCommission,
	}, nil
}

// BatchRevenueShare processes up to MaxBatchItems revenue-share legs as one
// atomic unit. No commission is taken on this path: revenue share is direct
// peer distribution.
func (s *SettlementEngine) BatchRevenueShare(caller common.Address, batchID common.Hash, items []ShareItem) (*BatchReceipt, error) {
	if err := s.guard.Enter(); err != nil {
		return nil, err
	}
	defer s.guard.Exit()
	if s.ledger == nil {
		return nil, errNilLedger
	}
	if err := s.checkBatchHeader(caller, batchID, len(items)); err != nil {
		return nil, err
	}
	gross := big.NewInt(0)
	for _, item := range items {
		if err := s.ledger.share(item.EscrowID, item.Stakeholders, item.Amounts); err != nil {
			return nil, err
		}
		for _, amount := range item.Amounts {
			gross = gross.Add(gross, amount)
		}
	}
	s.emit(events.SettlementRevenueShared{BatchID: batchID, ItemCount: uint64(len(items))})
	return &BatchReceipt{
		BatchID:         batchID,
		ItemCount:       len(items),
		Gross:           gross,
		TotalCommission: big.NewInt(0),
	}, nil
}

// SetCommissionBps updates the commission rate. Administrator only; values
// above MaxCommissionBps (a 10% hard ceiling) are rejected.
func (s *SettlementEngine) SetCommissionBps(caller common.Address, bps uint32) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()
	if s.params == nil {
		return errNilLedger
	}
	if !s.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if bps > MaxCommissionBps {
		return ErrCommissionTooHigh
	}
	if err := s.params.ParamPut(ParamCommissionBps, bps); err != nil {
		return err
	}
	s.emit(events.SettlementCommissionUpdated{Bps: bps})
	return nil
}

// SetTreasury updates the commission destination. Administrator only; the
// zero address is rejected.
func (s *SettlementEngine) SetTreasury(caller common.Address, treasury common.Address) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()
	if s.params == nil {
		return errNilLedger
	}
	if !s.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if treasury == (common.Address{}) {
		return ErrZeroTreasury
	}
	if err := s.params.ParamPut(ParamTreasury, treasury.Bytes()); err != nil {
		return err
	}
	s.emit(events.SettlementTreasuryUpdated{Treasury: treasury})
	return nil
}
