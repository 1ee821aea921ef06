package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"clearcore/core/types"
	"clearcore/storage"
)

// ErrInsufficientBalance is returned when a token transfer would overdraw the
// sending account.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// Manager provides typed access to ledger state stored in a key-value
// backend: token accounts, escrow records, role membership and module
// parameters. All values are RLP encoded under keccak-hashed keys.
type Manager struct {
	kv storage.Database
}

// NewManager creates a state manager operating on the provided backend.
func NewManager(kv storage.Database) *Manager {
	return &Manager{kv: kv}
}

var (
	accountPrefix = []byte("acct:")
	escrowPrefix  = []byte("escrow:")
	rolePrefix    = []byte("role:")
	paramPrefix   = []byte("param:")

	custodyVault = common.BytesToAddress(ethcrypto.Keccak256([]byte("clearcore/custody-vault"))[12:])
)

// CustodyVault returns the fixed address holding all escrowed funds.
func CustodyVault() common.Address { return custodyVault }

func accountKey(addr common.Address) []byte {
	return ethcrypto.Keccak256(append(accountPrefix, addr.Bytes()...))
}

func escrowKey(id common.Hash) []byte {
	return ethcrypto.Keccak256(append(escrowPrefix, id.Bytes()...))
}

func roleKey(role string) []byte {
	return ethcrypto.Keccak256(append(rolePrefix, []byte(role)...))
}

func paramKey(name string) []byte {
	return ethcrypto.Keccak256(append(paramPrefix, []byte(name)...))
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// --- Token accounts ---

// GetAccount loads the account for the provided address, returning a zeroed
// record when none is stored.
func (m *Manager) GetAccount(addr common.Address) (*types.Account, error) {
	data, ok, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, err
	}
	return account.Normalize(), nil
}

// PutAccount persists the account record for the provided address.
func (m *Manager) PutAccount(addr common.Address, account *types.Account) error {
	account = account.Normalize()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %s", addr.Hex())
	}
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return m.kv.Put(accountKey(addr), encoded)
}

// Balance returns the token balance held by the provided address.
func (m *Manager) Balance(addr common.Address) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Transfer moves amount between two token accounts. A zero amount is a no-op;
// negative amounts are rejected.
func (m *Manager) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to, toAcc)
}

// Mint credits freshly issued tokens to the provided address. It exists for
// genesis funding and tests; the settlement engines never mint.
func (m *Manager) Mint(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr, account)
}

// Pull moves amount from the payer into the custody vault. It implements the
// inbound leg of the token bridge used by the escrow ledger.
func (m *Manager) Pull(from common.Address, amount *big.Int) error {
	return m.Transfer(from, custodyVault, amount)
}

// Push moves amount out of the custody vault to the recipient. It implements
// the outbound leg of the token bridge.
func (m *Manager) Push(to common.Address, amount *big.Int) error {
	return m.Transfer(custodyVault, to, amount)
}

// CustodyBalance returns the aggregate value held by the vault.
func (m *Manager) CustodyBalance() (*big.Int, error) {
	return m.Balance(custodyVault)
}

// --- Roles ---

// RoleGrant associates an address with the specified role. Duplicate grants
// are ignored while the stored list remains sorted for determinism. The
// returned bool reports whether membership changed.
func (m *Manager) RoleGrant(role string, addr common.Address) (bool, error) {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return false, fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return false, err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr.Bytes()) {
			return false, nil
		}
	}
	members = append(members, addr.Bytes())
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return true, m.storeRoleMembers(trimmed, members)
}

// RoleRevoke removes an address from the specified role. Revoking an absent
// grant is a no-op; the returned bool reports whether membership changed.
func (m *Manager) RoleRevoke(role string, addr common.Address) (bool, error) {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return false, fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return false, err
	}
	filtered := members[:0]
	removed := false
	for _, existing := range members {
		if bytes.Equal(existing, addr.Bytes()) {
			removed = true
			continue
		}
		filtered = append(filtered, existing)
	}
	if !removed {
		return false, nil
	}
	return true, m.storeRoleMembers(trimmed, filtered)
}

// HasRole reports whether the provided address is associated with the
// specified role. Read errors result in a false return, matching the
// best-effort semantics required by the authority checks.
func (m *Manager) HasRole(role string, addr common.Address) bool {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr.Bytes()) {
			return true
		}
	}
	return false
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([]common.Address, error) {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(members))
	for _, member := range members {
		out = append(out, common.BytesToAddress(member))
	}
	return out, nil
}

func (m *Manager) roleMembers(role string) ([][]byte, error) {
	data, ok, err := m.get(roleKey(role))
	if err != nil || !ok {
		return nil, err
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) storeRoleMembers(role string, members [][]byte) error {
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.kv.Put(roleKey(role), encoded)
}

// --- Module parameters ---

// ParamPut stores the provided value under the supplied parameter name using
// RLP encoding.
func (m *Manager) ParamPut(name string, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(paramKey(name), encoded)
}

// ParamGet retrieves the parameter stored under the supplied name and decodes
// it into out. The boolean reports whether the parameter was present.
func (m *Manager) ParamGet(name string, out interface{}) (bool, error) {
	data, ok, err := m.get(paramKey(name))
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
