package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "./clearcore-data", cfg.DataDir)
	require.FileExists(t, path)

	// The created file round-trips.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/clearcore"
Environment = "production"
AdminAddress = "0x0000000000000000000000000000000000000001"
Treasury = "0x0000000000000000000000000000000000000005"
CommissionBps = 500

[GenesisAccounts]
"0x0000000000000000000000000000000000000003" = "1000000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, uint32(500), cfg.CommissionBps)
	require.Len(t, cfg.GenesisAccounts, 1)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.CommissionBps = maxCommissionBps + 1
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.CommissionBps = 500
	require.Error(t, cfg.Validate(), "commission without treasury")
	cfg.Treasury = "0x0000000000000000000000000000000000000005"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Treasury = "0x0000000000000000000000000000000000000000"
	require.Error(t, cfg.Validate(), "zero treasury")

	cfg = base()
	cfg.AdminAddress = "not-an-address"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.GenesisAccounts = map[string]string{"bogus": "100"}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.GenesisAccounts = map[string]string{
		"0x0000000000000000000000000000000000000003": "-5",
	}
	require.Error(t, cfg.Validate())
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 1000000 ")
	require.NoError(t, err)
	require.Equal(t, "1000000", amount.String())

	_, err = ParseAmount("0")
	require.Error(t, err)
	_, err = ParseAmount("1.5")
	require.Error(t, err)
}
