package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"clearcore/native/escrow"
)

// EscrowPut validates and persists an escrow record.
func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	return m.kv.Put(escrowKey(sanitized.ID), encoded)
}

// EscrowGet loads an escrow record by identifier. The boolean reports whether
// the record exists.
func (m *Manager) EscrowGet(id common.Hash) (*escrow.Escrow, bool) {
	data, ok, err := m.get(escrowKey(id))
	if err != nil || !ok {
		return nil, false
	}
	esc := new(escrow.Escrow)
	if err := rlp.DecodeBytes(data, esc); err != nil {
		return nil, false
	}
	return esc, true
}

// EscrowHas reports whether an escrow record exists for the identifier.
func (m *Manager) EscrowHas(id common.Hash) bool {
	_, ok := m.EscrowGet(id)
	return ok
}
