package core

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/internal/retry"
	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SINGLE-FLIGHT DISPATCH
// ═══════════════════════════════════════════════════════════════════════════════
//
// Skip reasons, in the order the rules are checked. The order is pinned by
// tests: a condition satisfying several rules must surface the earliest one.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	SkipRegimeNotConfirmed   = "regime_not_confirmed"
	SkipPositionOpen         = "position_open"
	SkipSwapInFlight         = "swap_in_flight"
	SkipStreakBelowThreshold = "streak_below_threshold"
	SkipMaxPositions         = "max_positions"
	SkipNoNotional           = "no_notional"
	SkipBalanceUnavailable   = "balance_unavailable"
	SkipBalanceReserved      = "balance_reserved"
	SkipZeroCap              = "zero_cap"
	SkipDispatchFailed       = "dispatch_failed"
)

// maybeDispatchBuy runs the ordered gate chain and, if every rule passes,
// dispatches exactly one buy. The in-flight slot is claimed before dispatch
// and released on every exit path.
func (c *Controller) maybeDispatchBuy(
	ctx context.Context,
	wallet types.Wallet,
	e entry,
	resp *worker.EvaluateResponse,
	strategy string,
	streakCount int,
	openCount int,
) (bool, string) {
	// (1) regime must be confirmed on this very tick
	if resp.Regime.Status != types.RegimeTrendUp {
		return false, SkipRegimeNotConfirmed
	}

	// (2) never add to an existing holding
	if !e.Position.Synthesized {
		return false, SkipPositionOpen
	}

	// (3) one capital-committing action at a time, system-wide
	if !c.tryAcquireDispatch() {
		return false, SkipSwapInFlight
	}
	defer c.releaseDispatch()

	// (4) the streak has to clear the confirmation gate
	if !c.gate.Confirmed(streakCount) {
		return false, SkipStreakBelowThreshold
	}

	// (5) position cap
	if c.opts.MaxOpenPositions > 0 && openCount >= c.opts.MaxOpenPositions {
		return false, SkipMaxPositions
	}

	// (6) the oracle must have sized an entry
	notional := resp.Evaluation.Position.ExpectedNotional
	if notional.LessThanOrEqual(decimal.Zero) {
		return false, SkipNoNotional
	}

	// (7) live balance
	if c.allocator == nil {
		return false, SkipBalanceUnavailable
	}
	snap, err := c.allocator.Snapshot(ctx, wallet.Pubkey, openCount)
	if err != nil {
		log.Warn().Err(err).Str("mint", e.Target.Mint).Msg("balance snapshot failed")
		return false, SkipBalanceUnavailable
	}

	// (8) everything spendable is reserved for existing positions
	if snap.AvailableSol.LessThanOrEqual(decimal.Zero) {
		return false, SkipBalanceReserved
	}

	// (9) allocation cap
	amount := ClampNotional(notional, snap)
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, SkipZeroCap
	}

	dispatch, err := c.opts.Executor.Dispatch(ctx, exec.BuyRequest{
		WalletAlias: wallet.Alias,
		Mint:        e.Target.Mint,
		TradeUUID:   e.Position.TradeUUID,
		AmountSol:   amount,
		Strategy:    strategy,
	})
	if err != nil {
		// No position was recorded, so the next tick naturally retries.
		log.Error().Err(err).Str("mint", e.Target.Mint).Msg("buy dispatch failed")
		return false, SkipDispatchFailed
	}

	if c.opts.Monitor != nil {
		if _, err := c.opts.Monitor.Spawn(worker.SwapMonitorPayload{
			TxID:        dispatch.TxID,
			Mint:        e.Target.Mint,
			WalletAlias: wallet.Alias,
			Monitor:     dispatch.MonitorPayload,
		}); err != nil {
			log.Warn().Err(err).Str("txid", dispatch.TxID).Msg("swap monitor spawn failed")
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconcilePosition(c.ctx, wallet.Alias, e.Target.Mint, strategy)
	}()

	return true, ""
}

// reconcilePosition waits for the externally-written position row to appear
// and attaches the strategy label. Bounded, backing-off poll: the external
// pipeline persists on its own schedule, never in step with this loop.
func (c *Controller) reconcilePosition(ctx context.Context, walletAlias, mint, strategy string) {
	key := normalizeMint(mint)

	policy := retry.Policy{
		Schedule: retry.ReconcileSchedule,
		OnGiveUp: func() {
			log.Warn().
				Str("mint", mint).
				Int("attempts", len(retry.ReconcileSchedule)).
				Msg("⚠️ position never appeared - strategy label not attached")
		},
	}

	matched, err := policy.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		positions, err := c.opts.Positions.LoadOpenPositions(walletAlias)
		if err != nil {
			return false, err
		}
		for _, p := range positions {
			if normalizeMint(p.Mint) != key {
				continue
			}
			if err := c.opts.Positions.UpdatePositionStrategyName(p.ID, strategy); err != nil {
				return false, err
			}
			log.Info().
				Str("mint", mint).
				Str("strategy", strategy).
				Int("attempt", attempt).
				Msg("position reconciled")
			return true, nil
		}
		return false, nil
	})
	if err != nil && !matched {
		log.Debug().Err(err).Str("mint", mint).Msg("reconciliation ended with error")
	}
}
