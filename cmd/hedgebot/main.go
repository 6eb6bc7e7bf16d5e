// Command hedgebot runs the delta-neutral hedge bot: poll the AMM pool and
// the perpetual venue on a fixed interval, feed each combined snapshot
// through StrategyCore, and place or close short positions to keep the
// pool's volatile-asset exposure hedged.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnayoung/delta-hedge-bot/internal/aggregator"
	"github.com/johnayoung/delta-hedge-bot/internal/config"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/executor"
	"github.com/johnayoung/delta-hedge-bot/internal/ledger"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
	"github.com/johnayoung/delta-hedge-bot/internal/poolrpc"
	"github.com/johnayoung/delta-hedge-bot/internal/risk"
	"github.com/johnayoung/delta-hedge-bot/internal/strategy"
	"github.com/johnayoung/delta-hedge-bot/internal/venue"
)

var envFile string
var mainnetProfile string

func main() {
	root := &cobra.Command{
		Use:   "hedgebot",
		Short: "Delta-neutral hedge bot for a concentrated-liquidity pool",
		RunE:  run,
	}
	root.Flags().StringVar(&envFile, "env-file", "", "path to a .env file (defaults to ./.env if present)")
	root.Flags().StringVar(&mainnetProfile, "mainnet-profile", "", "path to a mainnet pool profile JSON (sets max position size, emergency stop-loss, and desync threshold from the pool's real parameters instead of the config heuristic)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.LogLevel, logging.WithFile(cfg.LogFile))
	log.Info(logging.TagInfo, "starting hedgebot")

	store, err := ledger.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	pool, err := poolrpc.NewReader(cfg.RPCURL, cfg.PoolAddress)
	if err != nil {
		return fmt.Errorf("connecting to pool rpc: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venueAdapter := venue.NewBinanceFutures(cfg.VenueAPIKey, cfg.VenueAPISecret, cfg.VenueTestnet, log)
	if err := venueAdapter.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to venue: %w", err)
	}
	defer venueAdapter.Disconnect(context.Background())

	maxPosition, emergencyStopLoss, desyncThreshold, err := riskBoundsFrom(cfg, mainnetProfile, log)
	if err != nil {
		return fmt.Errorf("loading mainnet profile: %w", err)
	}

	limits := risk.Limits{
		MinHedgeSize:       cfg.MinHedgeSize,
		HedgeThreshold:     cfg.HedgeThreshold,
		MaxPositionSize:    maxPosition,
		MaxSlippagePercent: cfg.MaxSlippagePercent,
		DefaultLeverage:    cfg.DefaultLeverage,
		MaxTradesPerHour:   20,
		EmergencyStopLoss:  emergencyStopLoss,
	}
	riskCore := risk.New(limits, log)

	exec := executor.New(venueAdapter, riskCore, store, log, cfg.SymbolPerpetual, "binance")
	strategyCore := strategy.New(riskCore, exec, venueAdapter, log, cfg.SymbolPerpetual)

	monitor := aggregator.New(pool, venueAdapter, store, log, cfg.SymbolPerpetual, cfg.PoolAddress, desyncThreshold)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	monitor.Start(ctx, interval, strategyCallback(strategyCore, log))

	<-sigCh
	log.Info(logging.TagInfo, "shutdown signal received, stopping")
	monitor.Stop()
	cancel()

	stats := strategyCore.Stats()
	log.Info(logging.TagInfo, fmt.Sprintf("final stats: %d hedges, %d succeeded, %d failed",
		stats.TotalHedges, stats.SuccessfulHedges, stats.FailedHedges))

	return nil
}

func strategyCallback(core *strategy.Core, log *logging.Handle) aggregator.Callback {
	return func(ctx context.Context, snap model.PositionSnapshot) error {
		record, err := core.ProcessSnapshot(ctx, snap)
		if err != nil {
			log.Error(logging.TagStrategy, "processing snapshot failed", err)
			return err
		}
		if record != nil && !record.Success {
			log.Warn(logging.TagStrategy, "hedge attempt failed: "+record.ErrorMessage)
		}
		return nil
	}
}

// riskBoundsFrom resolves the max position size, emergency stop-loss, and
// desync warning threshold. When profilePath names a mainnet pool profile,
// these come from the pool's own parameters via config.LoadMainnetFromJSON.
// Without one, MaxPositionSize and EmergencyStopLoss fall back to a
// conservative multiple of the configured hedge threshold (Config carries no
// standalone setting for either outside a mainnet profile), and the desync
// threshold defaults to 5%, matching the example used throughout the data
// model's desync detection scenarios.
func riskBoundsFrom(cfg config.Config, profilePath string, log *logging.Handle) (maxPosition, emergencyStopLoss decimalx.Amount, desyncThreshold decimalx.Decimal, err error) {
	if profilePath != "" {
		mc, err := config.LoadMainnetFromJSON(cfg, profilePath)
		if err != nil {
			return decimalx.Amount{}, decimalx.Amount{}, decimalx.Decimal{}, err
		}
		log.Info(logging.TagInfo, "loaded mainnet profile from "+profilePath)
		return mc.MaxPositionSize, mc.EmergencyStopLoss, mc.DesyncWarningPercent, nil
	}

	ten := decimalx.NewDecimal(10)
	scaled := cfg.HedgeThreshold.Decimal().Mul(ten)
	amt, amtErr := decimalx.NewAmount(scaled)
	if amtErr != nil {
		amt = cfg.HedgeThreshold
	}
	return amt, amt, decimalx.NewDecimal(5), nil
}
