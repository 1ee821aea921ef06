package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const maxCommissionBps = 1000

// Validate checks the configuration for values the daemon would reject at
// runtime, so misconfiguration fails at startup rather than on the first
// batch.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.CommissionBps > maxCommissionBps {
		return fmt.Errorf("config: CommissionBps %d above ceiling %d", c.CommissionBps, maxCommissionBps)
	}
	if c.AdminAddress != "" {
		if _, err := ParseAddress(c.AdminAddress); err != nil {
			return fmt.Errorf("config: AdminAddress: %w", err)
		}
	}
	if c.Treasury != "" {
		addr, err := ParseAddress(c.Treasury)
		if err != nil {
			return fmt.Errorf("config: Treasury: %w", err)
		}
		if addr == (common.Address{}) {
			return fmt.Errorf("config: Treasury must not be the zero address")
		}
	}
	if c.CommissionBps > 0 && c.Treasury == "" {
		return fmt.Errorf("config: CommissionBps set without a Treasury")
	}
	for rawAddr, rawAmount := range c.GenesisAccounts {
		if _, err := ParseAddress(rawAddr); err != nil {
			return fmt.Errorf("config: GenesisAccounts key %q: %w", rawAddr, err)
		}
		if _, err := ParseAmount(rawAmount); err != nil {
			return fmt.Errorf("config: GenesisAccounts[%s]: %w", rawAddr, err)
		}
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// ParseAmount decodes a positive decimal token amount.
func ParseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
