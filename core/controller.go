package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONTROLLER - The BuyOps evaluation-and-dispatch loop
// ═══════════════════════════════════════════════════════════════════════════════
//
// Tick:
//   load targets + open positions → fan evaluations across a bounded pool →
//   oracle (isolated process) per entry → regime gate → capital allocator →
//   single-flight dispatch → reconciliation → heartbeat
//
// All mutable state lives on this one instance; there are no package-level
// lookup tables or in-flight flags.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Options wires the controller's collaborators and tuning.
type Options struct {
	Targets     TargetStore
	Positions   PositionStore
	Wallet      WalletProvider
	Balance     BalanceProvider // nil disables buys (balance unavailable)
	Oracle      OracleClient
	Executor    TradeExecutor
	Evaluations EvaluationSink  // optional
	Monitor     MonitorSpawner  // optional
	Heartbeat   *HeartbeatEmitter
	Detached    *worker.DetachedSet // optional, terminated on Stop

	TickInterval      time.Duration
	TickTimeoutBudget time.Duration
	LivenessInterval  time.Duration

	EvalConcurrency int
	MinScore        float64
	EvalTimeout     time.Duration

	RegimeConfirmTicks int
	RegimeResetWindow  time.Duration
	MaxOpenPositions   int

	ReservePerPositionSol decimal.Decimal
	BalanceAllocation     decimal.Decimal

	EventIntervals []string
	MarketData     worker.MarketDataOptions
}

// Controller owns the tick loop and every piece of gating state.
type Controller struct {
	opts      Options
	gate      *RegimeGate
	allocator *Allocator
	heartbeat *HeartbeatEmitter

	mu           sync.Mutex
	running      bool
	swapInFlight bool

	tickInFlight  atomic.Bool
	tickStartedAt atomic.Int64
	tickSeq       atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StopResult reports how the loop ended.
type StopResult struct {
	Status string
	Reason string
}

// NewController builds the controller. Lookup state is constructed here,
// once, from the injected options.
func NewController(opts Options) *Controller {
	if opts.EvalConcurrency < 1 {
		opts.EvalConcurrency = 1
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 15 * time.Second
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = time.Minute
	}
	if opts.Heartbeat == nil {
		opts.Heartbeat = NewHeartbeatEmitter("", "")
	}

	c := &Controller{
		opts:      opts,
		gate:      NewRegimeGate(opts.RegimeConfirmTicks, opts.RegimeResetWindow),
		heartbeat: opts.Heartbeat,
	}
	if opts.Balance != nil {
		c.allocator = NewAllocator(opts.Balance, opts.ReservePerPositionSol, opts.BalanceAllocation)
	} else {
		// Startup dependency failure: buys stay disabled, logged once.
		log.Warn().Msg("no balance provider - buy dispatch disabled")
	}
	return c
}

// Start launches the tick and liveness loops.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.heartbeat.Emit(types.Heartbeat{Status: types.HeartbeatStarting})

	c.wg.Add(2)
	go c.tickLoop()
	go c.livenessLoop()

	log.Info().
		Dur("tick_interval", c.opts.TickInterval).
		Int("concurrency", c.opts.EvalConcurrency).
		Int("confirm_ticks", c.opts.RegimeConfirmTicks).
		Int("max_positions", c.opts.MaxOpenPositions).
		Msg("⚡ BuyOps started")
}

// Stop cancels the loops, awaits in-flight cleanup (including reconciliation
// goroutines) and terminates tracked detached workers.
func (c *Controller) Stop(reason string) StopResult {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return StopResult{Status: "stopped", Reason: reason}
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()

	if c.opts.Detached != nil {
		worker.TerminateTracked(c.opts.Detached.Drain(), worker.DefaultGrace)
	}

	log.Info().Str("reason", reason).Msg("BuyOps stopped")
	return StopResult{Status: "stopped", Reason: reason}
}

// tickLoop drives evaluation ticks at the fixed cadence with a re-entrant
// guard: a tick still in flight suppresses the next one.
func (c *Controller) tickLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	c.startTick()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.tickInFlight.Load() {
				elapsed := time.Since(time.Unix(0, c.tickStartedAt.Load()))
				if c.opts.TickTimeoutBudget > 0 && elapsed > c.opts.TickTimeoutBudget {
					log.Warn().
						Dur("elapsed", elapsed).
						Dur("budget", c.opts.TickTimeoutBudget).
						Msg("⏱️ Tick exceeded its timeout budget - letting it finish")
				}
				continue
			}
			c.startTick()
		}
	}
}

func (c *Controller) startTick() {
	if !c.tickInFlight.CompareAndSwap(false, true) {
		return
	}
	c.tickStartedAt.Store(time.Now().UnixNano())
	seq := c.tickSeq.Add(1)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.tickInFlight.Store(false)

		hb := c.runTick(c.ctx)
		c.heartbeat.Emit(hb)

		log.Debug().Uint64("tick", seq).Str("status", hb.Status).Msg("tick complete")
	}()
}

// livenessLoop fires independently of tick cadence so a frozen loop is
// still visible downstream.
func (c *Controller) livenessLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.heartbeat.Emit(types.Heartbeat{Status: types.HeartbeatAlive, Note: "liveness"})
		}
	}
}

// tryAcquireDispatch claims the single-flight buy slot.
func (c *Controller) tryAcquireDispatch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.swapInFlight {
		return false
	}
	c.swapInFlight = true
	return true
}

func (c *Controller) releaseDispatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swapInFlight = false
}
