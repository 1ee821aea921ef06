package events

import (
	"github.com/ethereum/go-ethereum/common"

	"clearcore/core/types"
)

const (
	TypeRoleGranted = "access.role_granted"
	TypeRoleRevoked = "access.role_revoked"
)

// RoleGranted is emitted when an administrator grants a role. Grants are
// idempotent; the event fires only when membership actually changed.
type RoleGranted struct {
	Role    string
	Address common.Address
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleGranted,
		Attributes: map[string]string{
			"role":    e.Role,
			"address": e.Address.Hex(),
		},
	}
}

// RoleRevoked is emitted when an administrator revokes a role.
type RoleRevoked struct {
	Role    string
	Address common.Address
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleRevoked,
		Attributes: map[string]string{
			"role":    e.Role,
			"address": e.Address.Hex(),
		},
	}
}
