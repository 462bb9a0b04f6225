package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the daemon
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Evaluation loop
	TickInterval       time.Duration
	EvalConcurrency    int
	MinScore           float64
	EvalTimeout        time.Duration
	TickTimeoutBudget  time.Duration
	LivenessInterval   time.Duration

	// Entry gating
	RegimeConfirmTicks int
	RegimeResetWindow  time.Duration
	MaxOpenPositions   int

	// Capital
	ReservePerPositionSol decimal.Decimal
	// BalanceAllocation is a fraction of available balance (0..1). The env
	// value accepts either a percentage ("60%", "60") or a fraction ("0.6").
	BalanceAllocation decimal.Decimal

	// Solana
	SolanaRPCURL string
	SolanaWSURL  string

	// Funding wallet
	WalletPubkey   string
	WalletAlias    string
	WalletStrategy string

	// Swap service
	SwapServiceURL string

	// Worker binaries
	EvalWorkerBin  string
	SwapMonitorBin string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Database: sqlite path or postgres:// DSN
	DatabaseURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		TickInterval:      getEnvMillis("TICK_INTERVAL_MS", 15*time.Second),
		EvalConcurrency:   getEnvInt("EVAL_CONCURRENCY", 4),
		MinScore:          getEnvFloat("MIN_SCORE", 65),
		EvalTimeout:       getEnvMillis("EVAL_TIMEOUT_MS", 20*time.Second),
		TickTimeoutBudget: getEnvMillis("TICK_TIMEOUT_BUDGET_MS", 2*time.Minute),
		LivenessInterval:  getEnvMillis("LIVENESS_INTERVAL_MS", time.Minute),

		RegimeConfirmTicks: getEnvInt("REGIME_CONFIRM_TICKS", 3),
		RegimeResetWindow:  getEnvMillis("REGIME_RESET_WINDOW_MS", 2*time.Minute),
		MaxOpenPositions:   getEnvInt("MAX_OPEN_POSITIONS", 3),

		ReservePerPositionSol: getEnvDecimal("RESERVE_PER_POSITION_SOL", decimal.NewFromFloat(0.03)),

		SolanaRPCURL: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		SolanaWSURL:  getEnv("SOLANA_WS_URL", ""),

		WalletPubkey:   os.Getenv("WALLET_PUBKEY"),
		WalletAlias:    getEnv("WALLET_ALIAS", "default"),
		WalletStrategy: os.Getenv("WALLET_STRATEGY"),

		SwapServiceURL: getEnv("SWAP_SERVICE_URL", ""),

		EvalWorkerBin:  getEnv("EVAL_WORKER_BIN", "./bin/evalworker"),
		SwapMonitorBin: getEnv("SWAP_MONITOR_BIN", "./bin/swapmonitor"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabaseURL: getEnv("DATABASE_URL", "data/buyops.db"),
	}

	alloc, err := ParseAllocation(getEnv("BALANCE_ALLOCATION", "100%"))
	if err != nil {
		return nil, fmt.Errorf("invalid BALANCE_ALLOCATION: %w", err)
	}
	cfg.BalanceAllocation = alloc

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.EvalConcurrency < 1 {
		cfg.EvalConcurrency = 1
	}

	return cfg, nil
}

// ParseAllocation accepts "60%", "60" (percent when > 1) or "0.6" (fraction)
// and returns a fraction in (0, 1].
func ParseAllocation(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	pct := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if pct || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	if d.LessThanOrEqual(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("allocation %q out of range", raw)
	}
	return d, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
