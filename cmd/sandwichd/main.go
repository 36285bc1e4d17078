package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"

	"github.com/mevexec/sandwichd/chain"
	"github.com/mevexec/sandwichd/config"
	"github.com/mevexec/sandwichd/executor"
	"github.com/mevexec/sandwichd/ports"
	"github.com/mevexec/sandwichd/relay"
	"github.com/mevexec/sandwichd/signer"
)

var statsFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "bundle-hash",
		Usage: "relay-assigned bundle hash",
	},
	&cli.Uint64Flag{
		Name:  "block",
		Usage: "target block the bundle was submitted for",
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	initLogger(cfg)

	// the executor must not start without a signing identity
	txSigner, err := signer.NewLocal(cfg.ExecutorKeyHex)
	if err != nil {
		slog.Error("Failed to establish signing identity", "error", err)
		os.Exit(1)
	}

	authKeyHex := cfg.RelayAuthKeyHex
	if authKeyHex == "" {
		authKeyHex = cfg.ExecutorKeyHex
	}
	authKey, err := crypto.HexToECDSA(strings.TrimPrefix(authKeyHex, "0x"))
	if err != nil {
		slog.Error("Failed to parse relay auth key", "error", err)
		os.Exit(1)
	}

	chainClient, err := chain.Dial(cfg.RPCURL, &chain.EthClientOpts{CallTimeout: cfg.CallTimeout})
	if err != nil {
		slog.Error("Failed to init chain client", "error", err)
		os.Exit(1)
	}

	relayClient := relay.New(cfg.RelayURL, authKey, &relay.Opts{CallTimeout: cfg.CallTimeout})
	estimator := &executor.StaticEstimator{Profit: cfg.StaticProfit}

	scanner := executor.NewScanner(chainClient, estimator, cfg.Routers, cfg.ScanLimit, nil)
	builder := executor.NewBuilder(chainClient, txSigner, executor.NewNonceAllocator(chainClient), cfg.ChainID, cfg.GasLimit, nil)
	gate := executor.NewGate(relayClient, cfg.MinProposerPay, nil)
	submitter := executor.NewSubmitter(relayClient, chainClient, time.Second*2, nil)

	exec := executor.New(scanner, builder, gate, submitter, chainClient, estimator, executor.Config{
		ScanInterval:   cfg.ScanInterval,
		MaxPipelines:   cfg.MaxPipelines,
		RebuildOnStale: cfg.RebuildOnStale,
	}, nil)

	slog.Info("Executor identity", "address", txSigner.Address(), "chain_id", cfg.ChainID, "routers", len(cfg.Routers))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	handler := &ports.Handler{
		Executor:    exec,
		Scanner:     scanner,
		Submitter:   submitter,
		Relay:       relayClient,
		MetricsAddr: cfg.MetricsAddr,
	}

	app := &cli.App{
		Name:        "sandwichd",
		Description: "MEV sandwich bundle executor",
	}

	runCmd := &cli.Command{
		Name:        "run",
		Aliases:     []string{"r"},
		Description: "run the scan loop and bundle pipelines until signalled",
		Action:      handler.Run(ctx),
	}

	scanOnceCmd := &cli.Command{
		Name:        "scan-once",
		Aliases:     []string{"so"},
		Description: "run one detection cycle and print candidates",
		Action:      handler.ScanOnce(ctx),
	}

	bundleStatsCmd := &cli.Command{
		Name:        "bundle-stats",
		Aliases:     []string{"bs"},
		Description: "query relay inclusion statistics for a bundle",
		Flags:       statsFlags,
		Action:      handler.BundleStats(ctx),
	}

	app.Commands = append(app.Commands, runCmd, scanOnceCmd, bundleStatsCmd)

	if err := app.Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initLogger(cfg config.Settings) {
	level := slog.LevelInfo
	if cfg.LogDebug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.LogPretty {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}
