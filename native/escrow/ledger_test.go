package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"clearcore/core/events"
	nativecommon "clearcore/native/common"
)

type mockState struct {
	escrows map[common.Hash]*Escrow
	params  map[string][]byte
}

func newMockState() *mockState {
	return &mockState{
		escrows: make(map[common.Hash]*Escrow),
		params:  make(map[string][]byte),
	}
}

func (m *mockState) EscrowPut(e *Escrow) error {
	sanitized, err := SanitizeEscrow(e)
	if err != nil {
		return err
	}
	m.escrows[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) EscrowGet(id common.Hash) (*Escrow, bool) {
	esc, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

func (m *mockState) ParamPut(name string, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.params[name] = encoded
	return nil
}

func (m *mockState) ParamGet(name string, out interface{}) (bool, error) {
	data, ok := m.params[name]
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// mockToken is an in-memory fungible-token collaborator with a custody
// balance, so tests can assert solvency across pulls and pushes.
type mockToken struct {
	balances map[common.Address]*big.Int
	custody  *big.Int
	failPull bool
	failPush bool
}

func newMockToken() *mockToken {
	return &mockToken{
		balances: make(map[common.Address]*big.Int),
		custody:  big.NewInt(0),
	}
}

func (t *mockToken) fund(addr common.Address, amount int64) {
	t.balances[addr] = big.NewInt(amount)
}

func (t *mockToken) balance(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (t *mockToken) Pull(from common.Address, amount *big.Int) error {
	if t.failPull {
		return fmt.Errorf("pull rejected")
	}
	balance := t.balance(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	t.balances[from] = balance.Sub(balance, amount)
	t.custody = t.custody.Add(t.custody, amount)
	return nil
}

func (t *mockToken) Push(to common.Address, amount *big.Int) error {
	if t.failPush {
		return fmt.Errorf("push rejected")
	}
	if t.custody.Cmp(amount) < 0 {
		return fmt.Errorf("custody overdrawn")
	}
	t.custody = t.custody.Sub(t.custody, amount)
	t.balances[to] = t.balance(to).Add(t.balance(to), amount)
	return nil
}

type mockAuthority struct {
	admins      map[common.Address]bool
	settlements map[common.Address]bool
}

func newMockAuthority() *mockAuthority {
	return &mockAuthority{
		admins:      make(map[common.Address]bool),
		settlements: make(map[common.Address]bool),
	}
}

func (a *mockAuthority) IsAdmin(addr common.Address) bool      { return a.admins[addr] }
func (a *mockAuthority) IsSettlement(addr common.Address) bool { return a.settlements[addr] }

type staticPauses bool

func (p staticPauses) IsPaused(string) bool { return bool(p) }

type recordingEmitter struct {
	emitted []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.emitted = append(r.emitted, evt) }

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.emitted))
	for _, evt := range r.emitted {
		out = append(out, evt.EventType())
	}
	return out
}

func testAddress(fill byte) common.Address {
	var addr common.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, common.AddressLength))
	return addr
}

func testHash(fill byte) common.Hash {
	var h common.Hash
	copy(h[:], bytes.Repeat([]byte{fill}, common.HashLength))
	return h
}

var (
	payer    = testAddress(0x01)
	provider = testAddress(0x02)
	operator = testAddress(0x03)
	admin    = testAddress(0x04)
	treasury = testAddress(0x05)
	stranger = testAddress(0x06)
)

func newTestLedger(t *testing.T) (*Ledger, *mockState, *mockToken, *mockAuthority) {
	t.Helper()
	state := newMockState()
	token := newMockToken()
	auth := newMockAuthority()
	auth.admins[admin] = true
	auth.settlements[operator] = true
	ledger := NewLedger()
	ledger.SetState(state)
	ledger.SetToken(token)
	ledger.SetAuthority(auth)
	ledger.SetNowFunc(func() int64 { return 1_700_000_000 })
	return ledger, state, token, auth
}

func mustDeposit(t *testing.T, ledger *Ledger, token *mockToken, id common.Hash, amount int64) {
	t.Helper()
	token.fund(payer, amount)
	if err := ledger.Deposit(id, payer, big.NewInt(amount), testHash(0xEE)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func TestDepositCreatesEscrow(t *testing.T) {
	ledger, state, token, _ := newTestLedger(t)
	id := testHash(0x10)
	token.fund(payer, 1_000_000)

	if err := ledger.Deposit(id, payer, big.NewInt(400_000), testHash(0xEE)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	esc, ok := state.EscrowGet(id)
	if !ok {
		t.Fatalf("escrow not stored")
	}
	if esc.Payer != payer {
		t.Fatalf("unexpected payer %x", esc.Payer)
	}
	if esc.Amount.Cmp(big.NewInt(400_000)) != 0 || esc.Released.Sign() != 0 {
		t.Fatalf("unexpected amounts: %s released %s", esc.Amount, esc.Released)
	}
	if esc.ReadyForRelease || esc.Disputed {
		t.Fatalf("fresh escrow must be neither ready nor disputed")
	}
	if token.balance(payer).Cmp(big.NewInt(600_000)) != 0 {
		t.Fatalf("payer balance not debited: %s", token.balance(payer))
	}
	if token.custody.Cmp(big.NewInt(400_000)) != 0 {
		t.Fatalf("custody not credited: %s", token.custody)
	}
}

func TestDepositValidation(t *testing.T) {
	ledger, _, token, _ := newTestLedger(t)
	token.fund(payer, 1_000)

	if err := ledger.Deposit(common.Hash{}, payer, big.NewInt(100), common.Hash{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("zero id: got %v", err)
	}
	if err := ledger.Deposit(testHash(0x11), payer, big.NewInt(0), common.Hash{}); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if err := ledger.Deposit(testHash(0x11), payer, nil, common.Hash{}); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
	if err := ledger.Deposit(testHash(0x11), payer, big.NewInt(100), common.Hash{}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := ledger.Deposit(testHash(0x11), payer, big.NewInt(100), common.Hash{}); !errors.Is(err, ErrEscrowExists) {
		t.Fatalf("duplicate id: got %v", err)
	}
}

func TestDepositTransferFailureAborts(t *testing.T) {
	ledger, state, token, _ := newTestLedger(t)
	token.failPull = true
	err := ledger.Deposit(testHash(0x12), payer, big.NewInt(100), common.Hash{})
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if _, ok := state.EscrowGet(testHash(0x12)); ok {
		t.Fatalf("record must not exist after failed pull")
	}
}

func TestDepositWhilePaused(t *testing.T) {
	ledger, _, token, _ := newTestLedger(t)
	ledger.SetPauses(staticPauses(true))
	token.fund(payer, 1_000)
	if err := ledger.Deposit(testHash(0x13), payer, big.NewInt(100), common.Hash{}); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
}

func TestDisputeLifecycle(t *testing.T) {
	ledger, state, token, _ := newTestLedger(t)
	id := testHash(0x20)
	mustDeposit(t, ledger, token, id, 1_000)

	if err := ledger.RaiseDispute(id, stranger); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger raise: got %v", err)
	}
	if err := ledger.RaiseDispute(id, payer); err != nil {
		t.Fatalf("payer raise: %v", err)
	}
	if err := ledger.RaiseDispute(id, admin); !errors.Is(err, ErrAlreadyDisputed) {
		t.Fatalf("double raise: got %v", err)
	}
	if err := ledger.ClearDispute(id, payer); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("payer clear: got %v", err)
	}
	if err := ledger.ClearDispute(id, admin); err != nil {
		t.Fatalf("admin clear: %v", err)
	}
	if err := ledger.ClearDispute(id, admin); !errors.Is(err, ErrNotDisputed) {
		t.Fatalf("double clear: got %v", err)
	}
	esc, _ := state.EscrowGet(id)
	if esc.Disputed {
		t.Fatalf("dispute should be cleared")
	}

	// Administrators may raise on behalf of the platform too.
	if err := ledger.RaiseDispute(id, admin); err != nil {
		t.Fatalf("admin raise: %v", err)
	}
}

func TestDisputeUnknownEscrow(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)
	if err := ledger.RaiseDispute(testHash(0x21), payer); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestConfirmDelivery(t *testing.T) {
	ledger, state, token, _ := newTestLedger(t)
	id := testHash(0x30)
	mustDeposit(t, ledger, token, id, 1_000)

	if err := ledger.ConfirmDelivery(id, stranger); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger confirm: got %v", err)
	}
	if err := ledger.RaiseDispute(id, payer); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := ledger.ConfirmDelivery(id, operator); !errors.Is(err, ErrDisputed) {
		t.Fatalf("disputed confirm: got %v", err)
	}
	if err := ledger.ClearDispute(id, admin); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ledger.ConfirmDelivery(id, operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := ledger.ConfirmDelivery(id, operator); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("double confirm: got %v", err)
	}
	esc, _ := state.EscrowGet(id)
	if !esc.ReadyForRelease {
		t.Fatalf("escrow should be ready for release")
	}
}

func TestReleaseToPreconditions(t *testing.T) {
	ledger, _, token, _ := newTestLedger(t)
	id := testHash(0x40)
	mustDeposit(t, ledger, token, id, 1_000)

	if err := ledger.ReleaseTo(id, big.NewInt(100), provider, big.NewInt(0), operator); !errors.Is(err, ErrNotReady) {
		t.Fatalf("not ready: got %v", err)
	}
	if err := ledger.ConfirmDelivery(id, operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(100), provider, big.NewInt(0), stranger); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger release: got %v", err)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(0), provider, big.NewInt(0), operator); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(100), common.Address{}, big.NewInt(0), operator); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("zero recipient: got %v", err)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(2_000), provider, big.NewInt(0), operator); !errors.Is(err, ErrExceedsEscrow) {
		t.Fatalf("over release: got %v", err)
	}
}

func TestReleaseToPartialFills(t *testing.T) {
	ledger, state, token, _ := newTestLedger(t)
	id := testHash(0x41)
	mustDeposit(t, ledger, token, id, 1_000)
	if err := ledger.ConfirmDelivery(id, operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := ledger.ReleaseTo(id, big.NewInt(400), provider, big.NewInt(20), operator); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(600), provider, big.NewInt(0), operator); err != nil {
		t.Fatalf("second fill: %v", err)
	}
	esc, _ := state.EscrowGet(id)
	if esc.Released.Cmp(esc.Amount) != 0 {
		t.Fatalf("released %s != amount %s", esc.Released, esc.Amount)
	}
	// 400-20 + 600 paid out; the 20 commission stays in custody for the sweep.
	if token.balance(provider).Cmp(big.NewInt(980)) != 0 {
		t.Fatalf("provider balance %s", token.balance(provider))
	}
	if token.custody.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("custody %s", token.custody)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(1), provider, big.NewInt(0), operator); !errors.Is(err, ErrExceedsEscrow) {
		t.Fatalf("release past full: got %v", err)
	}
}

func TestReleaseDisputedBlocked(t *testing.T) {
	ledger, _, token, _ := newTestLedger(t)
	id := testHash(0x42)
	mustDeposit(t, ledger, token, id, 1_000)
	if err := ledger.ConfirmDelivery(id, operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := ledger.RaiseDispute(id, payer); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := ledger.ReleaseTo(id, big.NewInt(100), provider, big.NewInt(0), operator); !errors.Is(err, ErrDisputed) {
		t.Fatalf("disputed release: got %v", err)
	}
}

func TestShareTo(t *testing.T) {
	ledger, state, token, _ := newTestLedger(t)
	id := testHash(0x50)
	mustDeposit(t, ledger, token, id, 1_000)
	if err := ledger.ConfirmDelivery(id, operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	a := testAddress(0x51)
	b := testAddress(0x52)
	if err := ledger.ShareTo(id, []common.Address{a}, []*big.Int{big.NewInt(1), big.NewInt(2)}, operator); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("length mismatch: got %v", err)
	}
	if err := ledger.ShareTo(id, nil, nil, operator); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("empty share: got %v", err)
	}
	if err := ledger.ShareTo(id, []common.Address{a, common.Address{}}, []*big.Int{big.NewInt(1), big.NewInt(2)}, operator); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("zero stakeholder: got %v", err)
	}
	if err := ledger.ShareTo(id, []common.Address{a, b}, []*big.Int{big.NewInt(1), big.NewInt(0)}, operator); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if err := ledger.ShareTo(id, []common.Address{a, b}, []*big.Int{big.NewInt(900), big.NewInt(200)}, operator); !errors.Is(err, ErrExceedsEscrow) {
		t.Fatalf("over share: got %v", err)
	}
	if err := ledger.ShareTo(id, []common.Address{a, b}, []*big.Int{big.NewInt(700), big.NewInt(300)}, operator); err != nil {
		t.Fatalf("share: %v", err)
	}
	if token.balance(a).Cmp(big.NewInt(700)) != 0 || token.balance(b).Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("stakeholder balances %s/%s", token.balance(a), token.balance(b))
	}
	esc, _ := state.EscrowGet(id)
	if esc.Remaining().Sign() != 0 {
		t.Fatalf("remaining %s", esc.Remaining())
	}
}

func TestLedgerEvents(t *testing.T) {
	ledger, _, token, _ := newTestLedger(t)
	recorder := &recordingEmitter{}
	ledger.SetEmitter(recorder)
	id := testHash(0x60)
	mustDeposit(t, ledger, token, id, 1_000)
	if err := ledger.RaiseDispute(id, payer); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := ledger.ClearDispute(id, admin); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ledger.ConfirmDelivery(id, operator); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	want := []string{
		events.TypeEscrowDeposited,
		events.TypeEscrowDisputed,
		events.TypeEscrowDisputeCleared,
		events.TypeEscrowDeliveryConfirmed,
	}
	got := recorder.types()
	if len(got) != len(want) {
		t.Fatalf("events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, got[i], want[i])
		}
	}
}
