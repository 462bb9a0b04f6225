package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Target is a scan-identified candidate token eligible for evaluation.
// Targets are owned by the external scanner; BuyOps only reads them, except
// for the best-effort strategy-label writeback.
type Target struct {
	Mint             string
	Symbol           string
	Name             string
	Status           string // "watch", "buy", "ignored"
	Score            float64
	Confidence       float64
	StrategyOverride string
	LastCheckedAt    time.Time
}

// Position is an open (or not-yet-opened, synthesized) holding of a token.
// A synthesized position has no store row yet: TradeUUID is freshly minted
// each tick until a buy executes and the persistence layer writes a real row.
type Position struct {
	ID                 uint
	WalletID           string
	WalletAlias        string
	Mint               string
	TradeUUID          string
	CurrentTokenAmount decimal.Decimal
	StrategyName       string
	StrategyID         string
	Synthesized        bool
	OpenedAt           time.Time
}

// Decision labels returned by the oracle.
const (
	DecisionBuy   = "buy"
	DecisionWatch = "watch"
	DecisionSkip  = "skip"
)

// Regime classifications.
const (
	RegimeTrendUp   = "trend_up"
	RegimeTrendDown = "trend_down"
	RegimeFlat      = "flat"
)

// EvaluationResult is the per-target outcome of one oracle call.
// Ephemeral: produced per tick, forwarded to the evaluation sink, discarded.
type EvaluationResult struct {
	Decision       string
	Reasons        []string
	RegimeStatus   string
	ChosenStrategy string
	// ExpectedNotional is the oracle's requested trade size in SOL.
	ExpectedNotional decimal.Decimal
	// Evaluation carries the opaque oracle snapshot for persistence.
	Evaluation map[string]any
}

// BalanceSnapshot is the once-per-tick view of spendable capital.
type BalanceSnapshot struct {
	BalanceSol   decimal.Decimal
	ReservedSol  decimal.Decimal
	AvailableSol decimal.Decimal
	CapSol       decimal.Decimal
}

// Wallet identifies the funding wallet used for all dispatches.
type Wallet struct {
	WalletID string
	Alias    string
	Pubkey   string
	Strategy string
}

// Heartbeat statuses emitted at tick boundaries.
const (
	HeartbeatStarting  = "starting"
	HeartbeatIdle      = "idle"
	HeartbeatSkipped   = "skipped"
	HeartbeatEvaluated = "evaluated"
	HeartbeatAlive     = "alive"
)

// DecisionCounts buckets one tick's outcomes.
type DecisionCounts struct {
	Buy   int
	Watch int
	Skip  int
}

// Heartbeat is the structured status event broadcast at tick boundaries
// and on the fixed liveness interval.
type Heartbeat struct {
	TS            time.Time
	WalletAlias   string
	StrategyLabel string
	Status        string
	Targets       int
	Evaluated     int
	Decisions     DecisionCounts
	Errors        int
	Note          string
}

// TradeDispatch is the executor's receipt for a dispatched swap.
type TradeDispatch struct {
	TxID           string
	MonitorPayload map[string]any
}
