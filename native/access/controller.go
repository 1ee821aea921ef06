package access

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/events"
)

// Role identifiers recognised by the controller. A caller may hold both.
const (
	RoleAdmin      = "ROLE_ADMIN"
	RoleSettlement = "ROLE_SETTLEMENT"
)

const pausedParam = "access/paused"

var (
	ErrNotAuthorized = errors.New("access: caller is not an administrator")
	ErrUnknownRole   = errors.New("access: unknown role")
)

// State is the persistence surface the controller requires: a role-to-member
// registry and a parameter slot for the pause switch.
type State interface {
	RoleGrant(role string, addr common.Address) (bool, error)
	RoleRevoke(role string, addr common.Address) (bool, error)
	HasRole(role string, addr common.Address) bool
	ParamPut(name string, value interface{}) error
	ParamGet(name string, out interface{}) (bool, error)
}

// Controller is the role registry and circuit breaker consulted by every
// mutating entry point of the escrow and settlement engines.
type Controller struct {
	state   State
	emitter events.Emitter
}

// NewController creates an access controller over the provided state.
func NewController(state State) *Controller {
	return &Controller{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *Controller) emit(evt events.Event) {
	if c == nil || c.emitter == nil || evt == nil {
		return
	}
	c.emitter.Emit(evt)
}

func knownRole(role string) bool {
	return role == RoleAdmin || role == RoleSettlement
}

// IsAdmin reports whether the address holds the administrator role.
func (c *Controller) IsAdmin(addr common.Address) bool {
	return c != nil && c.state != nil && c.state.HasRole(RoleAdmin, addr)
}

// IsSettlement reports whether the address holds the settlement authority
// role.
func (c *Controller) IsSettlement(addr common.Address) bool {
	return c != nil && c.state != nil && c.state.HasRole(RoleSettlement, addr)
}

// Grant assigns a role to an address. Administrator-gated and idempotent:
// granting an already-held role is a no-op, not an error.
func (c *Controller) Grant(caller common.Address, role string, addr common.Address) error {
	if !knownRole(role) {
		return ErrUnknownRole
	}
	if !c.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	changed, err := c.state.RoleGrant(role, addr)
	if err != nil {
		return err
	}
	if changed {
		c.emit(events.RoleGranted{Role: role, Address: addr})
	}
	return nil
}

// Revoke removes a role from an address. Administrator-gated and idempotent:
// revoking an absent grant is a no-op, not an error.
func (c *Controller) Revoke(caller common.Address, role string, addr common.Address) error {
	if !knownRole(role) {
		return ErrUnknownRole
	}
	if !c.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	changed, err := c.state.RoleRevoke(role, addr)
	if err != nil {
		return err
	}
	if changed {
		c.emit(events.RoleRevoked{Role: role, Address: addr})
	}
	return nil
}

// Paused reports whether the circuit breaker is engaged.
func (c *Controller) Paused() bool {
	if c == nil || c.state == nil {
		return false
	}
	var paused bool
	ok, err := c.state.ParamGet(pausedParam, &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}

// IsPaused implements the PauseView consulted by the engines. A single switch
// gates every module, so the module name is accepted but not inspected.
func (c *Controller) IsPaused(string) bool { return c.Paused() }

// Pause engages the circuit breaker. Administrator-gated. Pausing while
// already paused is an idempotent no-op.
func (c *Controller) Pause(caller common.Address) error {
	if !c.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	if c.Paused() {
		return nil
	}
	if err := c.state.ParamPut(pausedParam, true); err != nil {
		return err
	}
	c.emit(events.SettlementPaused{Caller: caller})
	return nil
}

// Unpause releases the circuit breaker. Administrator-gated. Unpausing while
// active is an idempotent no-op.
func (c *Controller) Unpause(caller common.Address) error {
	if !c.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	if !c.Paused() {
		return nil
	}
	if err := c.state.ParamPut(pausedParam, false); err != nil {
		return err
	}
	c.emit(events.SettlementUnpaused{Caller: caller})
	return nil
}
