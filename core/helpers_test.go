package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles for the controller's collaborators
// ─────────────────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeTargets struct {
	mu      sync.Mutex
	targets []types.Target
	err     error
	updates []types.Target
}

func (f *fakeTargets) ListTargetsByPriority(statuses []string, minScore float64) ([]types.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.Target, len(f.targets))
	copy(out, f.targets)
	return out, nil
}

func (f *fakeTargets) AddUpdateTarget(t types.Target) (types.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, t)
	return t, nil
}

func (f *fakeTargets) updatedMints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	mints := make([]string, 0, len(f.updates))
	for _, t := range f.updates {
		mints = append(mints, t.Mint)
	}
	return mints
}

type fakePositions struct {
	mu              sync.Mutex
	open            []types.Position
	loadErr         error
	loadCalls       int
	strategyUpdates map[uint]string
}

func (f *fakePositions) LoadOpenPositions(walletAlias string) ([]types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]types.Position, len(f.open))
	copy(out, f.open)
	return out, nil
}

func (f *fakePositions) UpdatePositionStrategyName(positionID uint, strategyName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.strategyUpdates == nil {
		f.strategyUpdates = make(map[uint]string)
	}
	f.strategyUpdates[positionID] = strategyName
	return nil
}

func (f *fakePositions) strategyFor(positionID uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strategyUpdates[positionID]
}

type fakeWallet struct {
	wallet types.Wallet
}

func (f *fakeWallet) GetDefaultFundingWallet() types.Wallet {
	return f.wallet
}

type fakeBalance struct {
	mu      sync.Mutex
	calls   int
	balance decimal.Decimal
	err     error
}

func (f *fakeBalance) GetBalance(ctx context.Context, pubkey string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.balance, nil
}

func (f *fakeBalance) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOracle struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	maxSeen  int
	hold     time.Duration
	fn       func(req worker.EvaluateRequest) (*worker.EvaluateResponse, error)
}

func (f *fakeOracle) Evaluate(ctx context.Context, req worker.EvaluateRequest) (*worker.EvaluateResponse, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	if f.hold > 0 {
		time.Sleep(f.hold)
	}

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	return f.fn(req)
}

type fakeExecutor struct {
	mu       sync.Mutex
	calls    []exec.BuyRequest
	err      error
	gate     chan struct{} // when non-nil, Dispatch blocks until closed
	dispatch types.TradeDispatch
}

func (f *fakeExecutor) Dispatch(ctx context.Context, req exec.BuyRequest) (types.TradeDispatch, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.TradeDispatch{}, f.err
	}
	f.calls = append(f.calls, req)
	d := f.dispatch
	if d.TxID == "" {
		d.TxID = "tx-test"
	}
	return d, nil
}

func (f *fakeExecutor) dispatched() []exec.BuyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exec.BuyRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeSpawner struct {
	mu       sync.Mutex
	payloads []worker.SwapMonitorPayload
}

func (f *fakeSpawner) Spawn(payload worker.SwapMonitorPayload) (worker.DetachedHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return worker.DetachedHandle{PID: 1234}, nil
}

func (f *fakeSpawner) spawned() []worker.SwapMonitorPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]worker.SwapMonitorPayload, len(f.payloads))
	copy(out, f.payloads)
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []types.Heartbeat
}

func (s *recordingSink) Notify(hb types.Heartbeat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, hb)
}

func (s *recordingSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, hb := range s.events {
		out = append(out, hb.Status)
	}
	return out
}

// newTestController wires a controller with an active context but without
// the background loops, so ticks can be driven directly.
func newTestController(t *testing.T, opts Options) *Controller {
	t.Helper()
	c := NewController(opts)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	t.Cleanup(func() {
		c.cancel()
		c.wg.Wait()
	})
	return c
}

func testWallet() types.Wallet {
	return types.Wallet{
		WalletID: "abc12345",
		Alias:    "primary",
		Pubkey:   "abc12345pubkey",
		Strategy: "",
	}
}

func buyResponse(notional string) *worker.EvaluateResponse {
	return &worker.EvaluateResponse{
		Decision: types.DecisionBuy,
		Regime:   worker.Regime{Status: types.RegimeTrendUp},
		Evaluation: worker.EvaluationDetail{
			Strategy: "momentum-breakout",
			Position: worker.EvaluationPosition{ExpectedNotional: dec(notional)},
		},
		ChosenStrategy: "momentum-breakout",
	}
}
