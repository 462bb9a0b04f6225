package core

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXTERNAL COLLABORATORS - Interfaces the loop consumes
// ═══════════════════════════════════════════════════════════════════════════════

// TargetStore is the scanner-owned watchlist.
type TargetStore interface {
	ListTargetsByPriority(statuses []string, minScore float64) ([]types.Target, error)
	AddUpdateTarget(t types.Target) (types.Target, error)
}

// PositionStore is the swap-pipeline-owned position ledger.
type PositionStore interface {
	LoadOpenPositions(walletAlias string) ([]types.Position, error)
	UpdatePositionStrategyName(positionID uint, strategyName string) error
}

// WalletProvider resolves the funding wallet.
type WalletProvider interface {
	GetDefaultFundingWallet() types.Wallet
}

// BalanceProvider reads the wallet's live SOL balance.
type BalanceProvider interface {
	GetBalance(ctx context.Context, pubkey string) (decimal.Decimal, error)
}

// OracleClient runs one decision evaluation, isolated from the scheduler.
type OracleClient interface {
	Evaluate(ctx context.Context, req worker.EvaluateRequest) (*worker.EvaluateResponse, error)
}

// TradeExecutor dispatches capital-committing swaps.
type TradeExecutor interface {
	Dispatch(ctx context.Context, req exec.BuyRequest) (types.TradeDispatch, error)
}

// EvaluationSink records oracle snapshots; failures are logged, never thrown.
type EvaluationSink interface {
	RecordEvaluation(mint, walletAlias string, result types.EvaluationResult) error
}

// MonitorSpawner fires the detached confirmation watcher for a dispatch.
type MonitorSpawner interface {
	Spawn(payload worker.SwapMonitorPayload) (worker.DetachedHandle, error)
}
