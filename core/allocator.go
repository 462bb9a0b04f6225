package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/solwatch/buyops/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CAPITAL ALLOCATOR
// ═══════════════════════════════════════════════════════════════════════════════
//
// One balance read per tick, shared by every concurrent entry: the snapshot
// is computed through singleflight and memoized until the next BeginTick.
// Reserve per open position preserves margin for fees and slippage on exits.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Allocator computes the spendable-capital snapshot for a tick.
type Allocator struct {
	balance            BalanceProvider
	reservePerPosition decimal.Decimal
	allocation         decimal.Decimal // fraction in (0, 1]

	group singleflight.Group

	mu     sync.Mutex
	tick   uint64
	snap   *types.BalanceSnapshot
	snapEr error
}

// NewAllocator creates an allocator.
func NewAllocator(balance BalanceProvider, reservePerPosition, allocation decimal.Decimal) *Allocator {
	if allocation.LessThanOrEqual(decimal.Zero) || allocation.GreaterThan(decimal.NewFromInt(1)) {
		allocation = decimal.NewFromInt(1)
	}
	return &Allocator{
		balance:            balance,
		reservePerPosition: reservePerPosition,
		allocation:         allocation,
	}
}

// BeginTick invalidates the previous tick's memoized snapshot.
func (a *Allocator) BeginTick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tick++
	a.snap = nil
	a.snapEr = nil
}

// Snapshot returns this tick's balance snapshot, computing it at most once.
// Concurrent callers share the same in-flight balance read.
func (a *Allocator) Snapshot(ctx context.Context, pubkey string, openPositions int) (types.BalanceSnapshot, error) {
	a.mu.Lock()
	if a.snap != nil {
		snap := *a.snap
		a.mu.Unlock()
		return snap, nil
	}
	if a.snapEr != nil {
		err := a.snapEr
		a.mu.Unlock()
		return types.BalanceSnapshot{}, err
	}
	tick := a.tick
	a.mu.Unlock()

	v, err, _ := a.group.Do(fmt.Sprintf("tick-%d", tick), func() (any, error) {
		snap, err := a.compute(ctx, pubkey, openPositions)
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.tick == tick {
			if err != nil {
				a.snapEr = err
			} else {
				a.snap = &snap
			}
		}
		return snap, err
	})
	if err != nil {
		return types.BalanceSnapshot{}, err
	}
	return v.(types.BalanceSnapshot), nil
}

func (a *Allocator) compute(ctx context.Context, pubkey string, openPositions int) (types.BalanceSnapshot, error) {
	balance, err := a.balance.GetBalance(ctx, pubkey)
	if err != nil {
		return types.BalanceSnapshot{}, fmt.Errorf("balance read: %w", err)
	}

	reserved := a.reservePerPosition.Mul(decimal.NewFromInt(int64(openPositions)))
	available := balance.Sub(reserved)

	cap := available.Mul(a.allocation)
	if cap.GreaterThan(available) {
		cap = available
	}

	return types.BalanceSnapshot{
		BalanceSol:   balance,
		ReservedSol:  reserved,
		AvailableSol: available,
		CapSol:       cap,
	}, nil
}

// ClampNotional bounds a requested notional to the snapshot's cap.
func ClampNotional(requested decimal.Decimal, snap types.BalanceSnapshot) decimal.Decimal {
	if requested.GreaterThan(snap.CapSol) {
		return snap.CapSol
	}
	return requested
}
