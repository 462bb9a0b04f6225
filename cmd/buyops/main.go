package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/bot"
	"github.com/solwatch/buyops/core"
	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/internal/config"
	"github.com/solwatch/buyops/internal/solana"
	"github.com/solwatch/buyops/internal/wallet"
	"github.com/solwatch/buyops/storage"
	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msg("              BUYOPS - AUTONOMOUS BUY ENGINE")
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	// 1. Storage (targets, positions, evaluation log)
	db, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	log.Info().Msg("✅ Storage layer initialized")

	// 2. Funding wallet
	walletProvider, err := wallet.New(cfg.WalletPubkey, cfg.WalletAlias, cfg.WalletStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load funding wallet")
	}
	fundingWallet := walletProvider.GetDefaultFundingWallet()
	log.Info().Str("alias", fundingWallet.Alias).Msg("✅ Funding wallet loaded")

	// 3. Balance client. A failure here disables buys, not the loop.
	var balanceClient *solana.Client
	var watcher *solana.AccountWatcher
	if cfg.SolanaRPCURL != "" && fundingWallet.Pubkey != "" {
		balanceClient = solana.NewClient(cfg.SolanaRPCURL)
		log.Info().Msg("✅ Solana balance client initialized")

		if cfg.SolanaWSURL != "" {
			watcher = solana.NewAccountWatcher(cfg.SolanaWSURL, balanceClient)
			watcher.Watch(fundingWallet.Pubkey)
			if err := watcher.Start(); err != nil {
				log.Warn().Err(err).Msg("Account watcher failed to start, falling back to RPC polling")
				watcher = nil
			} else {
				log.Info().Msg("✅ Account watcher subscribed")
			}
		}
	} else {
		log.Warn().Msg("No Solana RPC or wallet pubkey configured, buy dispatch disabled")
	}

	// 4. Execution client
	executor := exec.NewClient(cfg.SwapServiceURL, cfg.DryRun)
	log.Info().Msg("✅ Execution layer initialized")

	// 5. Heartbeats
	heartbeat := core.NewHeartbeatEmitter(fundingWallet.Alias, fundingWallet.Strategy)

	// 6. Telegram (optional)
	var tg *bot.TelegramBot
	var tradeExecutor core.TradeExecutor = executor
	if cfg.TelegramToken != "" {
		tg, err = bot.NewTelegramBot(
			cfg.TelegramToken,
			strconv.FormatInt(cfg.TelegramChatID, 10),
			fundingWallet,
			cfg.DryRun,
			&statusProvider{balance: balanceClient, db: db},
		)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram init failed, continuing without notifications")
		} else {
			tg.Start()
			heartbeat.Subscribe(tg)
			tradeExecutor = &bot.NotifyingExecutor{Inner: executor, Bot: tg}
			log.Info().Msg("✅ Telegram bot initialized")
		}
	}

	// 7. Worker substrate
	detached := &worker.DetachedSet{}
	oracle := &core.WorkerOracle{BinPath: cfg.EvalWorkerBin, Env: os.Environ()}
	spawner := &core.DetachedMonitorSpawner{BinPath: cfg.SwapMonitorBin, Set: detached}
	log.Info().
		Str("eval_worker", cfg.EvalWorkerBin).
		Str("swap_monitor", cfg.SwapMonitorBin).
		Msg("✅ Worker substrate initialized")

	// 8. Controller
	opts := core.Options{
		Targets:     db,
		Positions:   db,
		Wallet:      walletProvider,
		Oracle:      oracle,
		Executor:    tradeExecutor,
		Evaluations: db,
		Monitor:     spawner,
		Heartbeat:   heartbeat,
		Detached:    detached,

		TickInterval:      cfg.TickInterval,
		TickTimeoutBudget: cfg.TickTimeoutBudget,
		LivenessInterval:  cfg.LivenessInterval,

		EvalConcurrency: cfg.EvalConcurrency,
		MinScore:        cfg.MinScore,
		EvalTimeout:     cfg.EvalTimeout,

		RegimeConfirmTicks: cfg.RegimeConfirmTicks,
		RegimeResetWindow:  cfg.RegimeResetWindow,
		MaxOpenPositions:   cfg.MaxOpenPositions,

		ReservePerPositionSol: cfg.ReservePerPositionSol,
		BalanceAllocation:     cfg.BalanceAllocation,
	}
	if balanceClient != nil {
		opts.Balance = balanceClient
	}
	controller := core.NewController(opts)
	log.Info().Msg("✅ Controller initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// PRINT CONFIG
	// ═══════════════════════════════════════════════════════════════════════════════

	mode := "LIVE TRADING"
	if cfg.DryRun {
		mode = "PAPER TRADING"
	}
	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msg("║               🎯 BUYOPS - EVALUATE AND DISPATCH              ║")
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Mode: %-52s  ║", mode)
	log.Info().Msgf("║  Tick interval: %-43s  ║", cfg.TickInterval)
	log.Info().Msgf("║  Eval concurrency: %-40d  ║", cfg.EvalConcurrency)
	log.Info().Msgf("║  Min score: %-47.1f  ║", cfg.MinScore)
	log.Info().Msgf("║  Regime confirm ticks: %-36d  ║", cfg.RegimeConfirmTicks)
	log.Info().Msgf("║  Max open positions: %-38d  ║", cfg.MaxOpenPositions)
	log.Info().Msgf("║  Reserve per position: %-32s SOL  ║", cfg.ReservePerPositionSol)
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
	log.Info().Msg("")

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	controller.Start()
	log.Info().Msg("🚀 All systems running...")

	// ═══════════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("🛑 Shutting down...")
	controller.Stop("signal received")

	if tg != nil {
		tg.Stop()
	}
	if watcher != nil {
		watcher.Stop()
	}
	if balanceClient != nil {
		balanceClient.Close()
	}
	executor.Close()
	db.Close()

	log.Info().Msg("👋 Goodbye!")
}

// statusProvider adapts the storage and balance layers for Telegram commands.
type statusProvider struct {
	balance *solana.Client
	db      *storage.Database
}

func (s *statusProvider) GetBalance(ctx context.Context, pubkey string) (decimal.Decimal, error) {
	if s.balance == nil {
		return decimal.Zero, fmt.Errorf("balance client not configured")
	}
	return s.balance.GetBalance(ctx, pubkey)
}

func (s *statusProvider) LoadOpenPositions(walletAlias string) ([]types.Position, error) {
	return s.db.LoadOpenPositions(walletAlias)
}
