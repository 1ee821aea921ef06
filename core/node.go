package core

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/events"
	"clearcore/core/state"
	"clearcore/core/types"
	"clearcore/native/access"
	"clearcore/native/escrow"
	"clearcore/observability"
	"clearcore/storage"
)

const eventTailCap = 256

const genesisDoneParam = "genesis/done"

// Node is the global serialization point for the settlement ledger. Every
// mutating operation runs under a single writer lock against a fresh state
// overlay and either commits in full or leaves the base store untouched, so
// no intermediate checkpoint is ever visible to another caller.
type Node struct {
	db storage.Database

	stateMu sync.Mutex

	eventMu   sync.Mutex
	eventTail []types.Event
}

// Option adjusts node construction, primarily genesis bootstrapping.
type Option func(*genesisConfig)

type genesisConfig struct {
	admin      common.Address
	treasury   common.Address
	commission uint32
	accounts   map[common.Address]*big.Int
}

// WithGenesisAdmin grants the administrator role to the address on first
// start.
func WithGenesisAdmin(addr common.Address) Option {
	return func(g *genesisConfig) { g.admin = addr }
}

// WithGenesisTreasury sets the initial commission treasury on first start.
func WithGenesisTreasury(addr common.Address) Option {
	return func(g *genesisConfig) { g.treasury = addr }
}

// WithGenesisCommission sets the initial commission rate on first start.
func WithGenesisCommission(bps uint32) Option {
	return func(g *genesisConfig) { g.commission = bps }
}

// WithGenesisAccounts funds token accounts on first start.
func WithGenesisAccounts(accounts map[common.Address]*big.Int) Option {
	return func(g *genesisConfig) { g.accounts = accounts }
}

// NewNode creates a node over the provided database, applying genesis
// bootstrap exactly once for the lifetime of the store.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	n := &Node{db: db}
	genesis := &genesisConfig{}
	for _, opt := range opts {
		opt(genesis)
	}
	if err := n.bootstrap(genesis); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) bootstrap(genesis *genesisConfig) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	overlay := state.NewOverlay(n.db)
	manager := state.NewManager(overlay)

	var done bool
	if ok, err := manager.ParamGet(genesisDoneParam, &done); err != nil {
		return err
	} else if ok && done {
		return nil
	}
	if genesis.admin != (common.Address{}) {
		if _, err := manager.RoleGrant(access.RoleAdmin, genesis.admin); err != nil {
			return err
		}
	}
	if genesis.treasury != (common.Address{}) {
		if err := manager.ParamPut(escrow.ParamTreasury, genesis.treasury.Bytes()); err != nil {
			return err
		}
	}
	if genesis.commission > 0 {
		if err := manager.ParamPut(escrow.ParamCommissionBps, genesis.commission); err != nil {
			return err
		}
	}
	for addr, balance := range genesis.accounts {
		if balance == nil || balance.Sign() <= 0 {
			continue
		}
		if err := manager.Mint(addr, balance); err != nil {
			return err
		}
	}
	if err := manager.ParamPut(genesisDoneParam, true); err != nil {
		return err
	}
	return overlay.Commit()
}

// eventCollector buffers events for one mutating call so nothing is published
// until the overlay commits.
type eventCollector struct {
	collected []types.Event
}

func (c *eventCollector) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	if e := payload.Event(); e != nil {
		c.collected = append(c.collected, *e)
	}
}

func (n *Node) appendEvents(collected []types.Event) {
	if len(collected) == 0 {
		return
	}
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	n.eventTail = append(n.eventTail, collected...)
	if overflow := len(n.eventTail) - eventTailCap; overflow > 0 {
		n.eventTail = append(n.eventTail[:0], n.eventTail[overflow:]...)
	}
}

// Events returns a copy of the recent event tail, oldest first.
func (n *Node) Events() []types.Event {
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	out := make([]types.Event, len(n.eventTail))
	copy(out, n.eventTail)
	return out
}

func (n *Node) newLedger(manager *state.Manager, controller *access.Controller, collector *eventCollector) *escrow.Ledger {
	ledger := escrow.NewLedger()
	ledger.SetState(manager)
	ledger.SetToken(manager)
	ledger.SetAuthority(controller)
	ledger.SetPauses(controller)
	ledger.SetEmitter(collector)
	return ledger
}

func (n *Node) newSettlementEngine(manager *state.Manager, controller *access.Controller, collector *eventCollector) *escrow.SettlementEngine {
	engine := escrow.NewSettlementEngine(n.newLedger(manager, controller, collector))
	engine.SetParams(manager)
	engine.SetToken(manager)
	engine.SetAuthority(controller)
	engine.SetPauses(controller)
	engine.SetEmitter(collector)
	return engine
}

// withState runs fn against a fresh overlay under the writer lock, committing
// state and publishing buffered events only when fn succeeds.
func (n *Node) withState(op string, fn func(*state.Manager, *access.Controller, *eventCollector) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	overlay := state.NewOverlay(n.db)
	manager := state.NewManager(overlay)
	collector := &eventCollector{}
	controller := access.NewController(manager)
	controller.SetEmitter(collector)

	err := fn(manager, controller, collector)
	observability.Settlement().ObserveOp(op, err)
	if err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	n.appendEvents(collector.collected)
	if custody, err := state.NewManager(n.db).CustodyBalance(); err == nil {
		f, _ := new(big.Float).SetInt(custody).Float64()
		observability.Settlement().CustodyUnits.Set(f)
	}
	return nil
}

// --- Escrow ledger operations ---

func (n *Node) EscrowDeposit(id common.Hash, payer common.Address, amount *big.Int, metaHash common.Hash) error {
	return n.withState("escrow_deposit", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return n.newLedger(manager, controller, collector).Deposit(id, payer, amount, metaHash)
	})
}

func (n *Node) EscrowRaiseDispute(id common.Hash, caller common.Address) error {
	return n.withState("escrow_raise_dispute", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return n.newLedger(manager, controller, collector).RaiseDispute(id, caller)
	})
}

func (n *Node) EscrowClearDispute(id common.Hash, caller common.Address) error {
	return n.withState("escrow_clear_dispute", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return n.newLedger(manager, controller, collector).ClearDispute(id, caller)
	})
}

func (n *Node) EscrowConfirmDelivery(id common.Hash, caller common.Address) error {
	return n.withState("escrow_confirm_delivery", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return n.newLedger(manager, controller, collector).ConfirmDelivery(id, caller)
	})
}

// --- Settlement operations ---

func (n *Node) SettlementBatchRelease(caller common.Address, batchID common.Hash, items []escrow.ReleaseItem) (*escrow.BatchReceipt, error) {
	var receipt *escrow.BatchReceipt
	err := n.withState("settlement_batch_release", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		var innerErr error
		receipt, innerErr = n.newSettlementEngine(manager, controller, collector).BatchRelease(caller, batchID, items)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	observability.Settlement().BatchItems.Observe(float64(receipt.ItemCount))
	return receipt, nil
}

func (n *Node) SettlementBatchRevenueShare(caller common.Address, batchID common.Hash, items []escrow.ShareItem) (*escrow.BatchReceipt, error) {
	var receipt *escrow.BatchReceipt
	err := n.withState("settlement_batch_revenue_share", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		var innerErr error
		receipt, innerErr = n.newSettlementEngine(manager, controller, collector).BatchRevenueShare(caller, batchID, items)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	observability.Settlement().BatchItems.Observe(float64(receipt.ItemCount))
	return receipt, nil
}

func (n *Node) SettlementSetCommission(caller common.Address, bps uint32) error {
	return n.withState("settlement_set_commission", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return n.newSettlementEngine(manager, controller, collector).SetCommissionBps(caller, bps)
	})
}

func (n *Node) SettlementSetTreasury(caller common.Address, treasury common.Address) error {
	return n.withState("settlement_set_treasury", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return n.newSettlementEngine(manager, controller, collector).SetTreasury(caller, treasury)
	})
}

// --- Administrative operations ---

func (n *Node) AccessGrantRole(caller common.Address, role string, addr common.Address) error {
	return n.withState("access_grant_role", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return controller.Grant(caller, role, addr)
	})
}

func (n *Node) AccessRevokeRole(caller common.Address, role string, addr common.Address) error {
	return n.withState("access_revoke_role", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return controller.Revoke(caller, role, addr)
	})
}

func (n *Node) Pause(caller common.Address) error {
	return n.withState("pause", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return controller.Pause(caller)
	})
}

func (n *Node) Unpause(caller common.Address) error {
	return n.withState("unpause", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		return controller.Unpause(caller)
	})
}

// Mint credits freshly issued tokens to an address. Administrator only; it
// exists for operational funding, the settlement paths never mint.
func (n *Node) Mint(caller common.Address, addr common.Address, amount *big.Int) error {
	return n.withState("mint", func(manager *state.Manager, controller *access.Controller, collector *eventCollector) error {
		if !controller.IsAdmin(caller) {
			return access.ErrNotAuthorized
		}
		return manager.Mint(addr, amount)
	})
}

// --- Read-only queries ---

func (n *Node) EscrowGet(id common.Hash) (*escrow.Escrow, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).EscrowGet(id)
}

func (n *Node) Balance(addr common.Address) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).Balance(addr)
}

func (n *Node) CustodyBalance() (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).CustodyBalance()
}

func (n *Node) CommissionBps() (uint32, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	var bps uint32
	ok, err := state.NewManager(n.db).ParamGet(escrow.ParamCommissionBps, &bps)
	if err != nil || !ok {
		return 0, err
	}
	return bps, nil
}

func (n *Node) Treasury() (common.Address, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	var raw []byte
	ok, err := state.NewManager(n.db).ParamGet(escrow.ParamTreasury, &raw)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(raw), true, nil
}

func (n *Node) Paused() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return access.NewController(state.NewManager(n.db)).Paused()
}

func (n *Node) HasRole(role string, addr common.Address) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).HasRole(role, addr)
}
