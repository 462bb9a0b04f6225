package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EVALUATION SCHEDULER - One tick
// ═══════════════════════════════════════════════════════════════════════════════

// Target statuses eligible for evaluation.
var eligibleStatuses = []string{"buy", "watch"}

// entry is one unit of per-target work for the pool.
type entry struct {
	Target           types.Target
	Position         types.Position
	StrategyOverride string
}

// tally accumulates one tick's outcomes under its own lock.
type tally struct {
	mu        sync.Mutex
	evaluated int
	counts    types.DecisionCounts
	errors    int
}

func (t *tally) recordError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors++
}

func (t *tally) recordDecision(decision string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evaluated++
	switch decision {
	case types.DecisionBuy:
		t.counts.Buy++
	case types.DecisionWatch:
		t.counts.Watch++
	default:
		// Unrecognized labels count as skip.
		t.counts.Skip++
	}
}

// runTick executes one full evaluation pass and returns its heartbeat.
// No error from per-target work escapes this function.
func (c *Controller) runTick(ctx context.Context) types.Heartbeat {
	wallet := c.opts.Wallet.GetDefaultFundingWallet()

	targets, err := c.opts.Targets.ListTargetsByPriority(eligibleStatuses, c.opts.MinScore)
	if err != nil {
		log.Warn().Err(err).Msg("target load failed - skipping tick")
		return types.Heartbeat{Status: types.HeartbeatSkipped, Note: "targets unavailable"}
	}

	openPositions, err := c.opts.Positions.LoadOpenPositions(wallet.Alias)
	if err != nil {
		log.Warn().Err(err).Msg("position load failed - skipping tick")
		return types.Heartbeat{Status: types.HeartbeatSkipped, Note: "positions unavailable"}
	}

	if len(targets) == 0 {
		return types.Heartbeat{Status: types.HeartbeatIdle, Note: "no eligible targets"}
	}

	if c.allocator != nil {
		c.allocator.BeginTick()
	}

	byMint := make(map[string]types.Position, len(openPositions))
	for _, p := range openPositions {
		byMint[normalizeMint(p.Mint)] = p
	}

	entries := make([]entry, 0, len(targets))
	for _, target := range targets {
		pos, real := byMint[normalizeMint(target.Mint)]
		if !real {
			// Synthesized fresh each tick until a buy executes and the
			// external pipeline writes a real row.
			pos = types.Position{
				WalletID:           wallet.WalletID,
				WalletAlias:        wallet.Alias,
				Mint:               target.Mint,
				TradeUUID:          uuid.NewString(),
				CurrentTokenAmount: decimal.Zero,
				Synthesized:        true,
			}
		}

		override := wallet.Strategy
		if override == "" {
			override = target.StrategyOverride
		}

		entries = append(entries, entry{Target: target, Position: pos, StrategyOverride: override})
	}

	poolSize := c.opts.EvalConcurrency
	if poolSize > len(entries) {
		poolSize = len(entries)
	}

	var (
		cursor atomic.Int64
		t      tally
		g      errgroup.Group
	)
	for i := 0; i < poolSize; i++ {
		g.Go(func() error {
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= len(entries) || ctx.Err() != nil {
					return nil
				}
				c.processEntry(ctx, wallet, entries[idx], len(openPositions), &t)
			}
		})
	}
	_ = g.Wait()

	return types.Heartbeat{
		Status:    types.HeartbeatEvaluated,
		Targets:   len(targets),
		Evaluated: t.evaluated,
		Decisions: t.counts,
		Errors:    t.errors,
	}
}

// processEntry evaluates one target and applies its side effects. Failures
// are counted and logged; siblings continue unaffected.
func (c *Controller) processEntry(ctx context.Context, wallet types.Wallet, e entry, openCount int, t *tally) {
	req := worker.EvaluateRequest{
		Position:          e.Position,
		Target:            e.Target,
		StrategyOverride:  e.StrategyOverride,
		MinScore:          c.opts.MinScore,
		EventIntervals:    c.opts.EventIntervals,
		MarketDataOptions: c.opts.MarketData,
		EvalTimeoutMs:     c.opts.EvalTimeout.Milliseconds(),
	}

	started := time.Now()
	resp, err := c.opts.Oracle.Evaluate(ctx, req)
	if err != nil {
		t.recordError()
		log.Error().
			Err(err).
			Str("mint", e.Target.Mint).
			Str("symbol", e.Target.Symbol).
			Dur("elapsed", time.Since(started)).
			Msg("evaluation failed")
		return
	}

	decision := resp.Decision
	switch decision {
	case types.DecisionBuy, types.DecisionWatch, types.DecisionSkip:
	default:
		decision = types.DecisionSkip
	}
	t.recordDecision(decision)

	result := types.EvaluationResult{
		Decision:         decision,
		Reasons:          resp.Reasons,
		RegimeStatus:     resp.Regime.Status,
		ChosenStrategy:   resp.ChosenStrategy,
		ExpectedNotional: resp.Evaluation.Position.ExpectedNotional,
		Evaluation: map[string]any{
			"strategy": resp.Evaluation.Strategy,
			"qualify":  resp.Evaluation.Qualify,
		},
	}

	// Best-effort side effects: logged, never thrown.
	if c.opts.Evaluations != nil {
		if err := c.opts.Evaluations.RecordEvaluation(e.Target.Mint, wallet.Alias, result); err != nil {
			log.Warn().Err(err).Str("mint", e.Target.Mint).Msg("evaluation persist failed")
		}
	}

	if e.StrategyOverride == "" && resp.ChosenStrategy != "" {
		writeback := e.Target
		writeback.StrategyOverride = resp.ChosenStrategy
		writeback.LastCheckedAt = time.Now()
		if _, err := c.opts.Targets.AddUpdateTarget(writeback); err != nil {
			log.Warn().Err(err).Str("mint", e.Target.Mint).Msg("target strategy writeback failed")
		}
	}

	if decision != types.DecisionBuy {
		return
	}

	strategy := resolveStrategy(e, resp)

	if !e.Position.Synthesized && strategy != "" && e.Position.StrategyName != strategy {
		if err := c.opts.Positions.UpdatePositionStrategyName(e.Position.ID, strategy); err != nil {
			log.Warn().Err(err).Str("mint", e.Target.Mint).Msg("position strategy update failed")
		}
	}

	streakCount := c.gate.Observe(e.Target.Mint, resp.Regime.Status)

	dispatched, skipReason := c.maybeDispatchBuy(ctx, wallet, e, resp, strategy, streakCount, openCount)
	if dispatched {
		log.Info().
			Str("mint", e.Target.Mint).
			Str("symbol", e.Target.Symbol).
			Str("strategy", strategy).
			Msg("🎯 Buy dispatched")
	} else {
		log.Debug().
			Str("mint", e.Target.Mint).
			Str("reason", skipReason).
			Int("streak", streakCount).
			Msg("buy skipped")
	}
}

func resolveStrategy(e entry, resp *worker.EvaluateResponse) string {
	if e.StrategyOverride != "" {
		return e.StrategyOverride
	}
	if resp.ChosenStrategy != "" {
		return resp.ChosenStrategy
	}
	return resp.Evaluation.Strategy
}
