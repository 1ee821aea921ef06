package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/config"
	"clearcore/core"
	"clearcore/observability/logging"
	"clearcore/rpc"
	"clearcore/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logOpts []logging.Option
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.LogFile))
	}
	logger := logging.Setup("clearcored", cfg.Environment, logOpts...)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	opts, err := genesisOptions(cfg)
	if err != nil {
		logger.Error("Invalid genesis configuration", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(db, opts...)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(node)
	logger.Info("Starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func genesisOptions(cfg *config.Config) ([]core.Option, error) {
	var opts []core.Option
	if cfg.AdminAddress != "" {
		admin, err := config.ParseAddress(cfg.AdminAddress)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithGenesisAdmin(admin))
	}
	if cfg.Treasury != "" {
		treasury, err := config.ParseAddress(cfg.Treasury)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithGenesisTreasury(treasury))
	}
	if cfg.CommissionBps > 0 {
		opts = append(opts, core.WithGenesisCommission(cfg.CommissionBps))
	}
	if len(cfg.GenesisAccounts) > 0 {
		accounts := make(map[common.Address]*big.Int, len(cfg.GenesisAccounts))
		for rawAddr, rawAmount := range cfg.GenesisAccounts {
			addr, err := config.ParseAddress(rawAddr)
			if err != nil {
				return nil, err
			}
			amount, err := config.ParseAmount(rawAmount)
			if err != nil {
				return nil, err
			}
			accounts[addr] = amount
		}
		opts = append(opts, core.WithGenesisAccounts(accounts))
	}
	return opts, nil
}
