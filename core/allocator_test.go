package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/buyops/types"
)

func TestAllocatorSnapshotMath(t *testing.T) {
	balance := &fakeBalance{balance: dec("1.0")}
	a := NewAllocator(balance, dec("0.03"), dec("0.5"))
	a.BeginTick()

	snap, err := a.Snapshot(context.Background(), "pubkey", 2)
	require.NoError(t, err)

	assert.True(t, snap.BalanceSol.Equal(dec("1.0")), "balance %s", snap.BalanceSol)
	assert.True(t, snap.ReservedSol.Equal(dec("0.06")), "reserved %s", snap.ReservedSol)
	assert.True(t, snap.AvailableSol.Equal(dec("0.94")), "available %s", snap.AvailableSol)
	assert.True(t, snap.CapSol.Equal(dec("0.47")), "cap %s", snap.CapSol)
}

func TestAllocatorCapNeverExceedsAvailable(t *testing.T) {
	balance := &fakeBalance{balance: dec("0.5")}
	a := NewAllocator(balance, dec("0.03"), dec("1"))
	a.BeginTick()

	snap, err := a.Snapshot(context.Background(), "pubkey", 3)
	require.NoError(t, err)
	assert.True(t, snap.CapSol.LessThanOrEqual(snap.AvailableSol))
}

func TestAllocatorReservesCanExceedBalance(t *testing.T) {
	// 10 open positions on a 0.1 SOL wallet: everything is reserved and
	// the cap must not go positive.
	balance := &fakeBalance{balance: dec("0.1")}
	a := NewAllocator(balance, dec("0.03"), dec("1"))
	a.BeginTick()

	snap, err := a.Snapshot(context.Background(), "pubkey", 10)
	require.NoError(t, err)
	assert.True(t, snap.AvailableSol.LessThanOrEqual(decimal.Zero))
	assert.True(t, snap.CapSol.LessThanOrEqual(snap.AvailableSol))
}

func TestAllocatorReadsBalanceOncePerTick(t *testing.T) {
	balance := &fakeBalance{balance: dec("2.0")}
	a := NewAllocator(balance, dec("0.03"), dec("1"))
	a.BeginTick()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Snapshot(context.Background(), "pubkey", 0)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, balance.callCount())

	a.BeginTick()
	_, err := a.Snapshot(context.Background(), "pubkey", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, balance.callCount())
}

func TestAllocatorMemoizesErrorForTheTick(t *testing.T) {
	balance := &fakeBalance{err: errors.New("rpc down")}
	a := NewAllocator(balance, dec("0.03"), dec("1"))
	a.BeginTick()

	_, err := a.Snapshot(context.Background(), "pubkey", 0)
	require.Error(t, err)
	_, err = a.Snapshot(context.Background(), "pubkey", 0)
	require.Error(t, err)
	assert.Equal(t, 1, balance.callCount())
}

func TestAllocatorInvalidAllocationFallsBackToFull(t *testing.T) {
	balance := &fakeBalance{balance: dec("1.0")}
	a := NewAllocator(balance, decimal.Zero, dec("1.7"))
	a.BeginTick()

	snap, err := a.Snapshot(context.Background(), "pubkey", 0)
	require.NoError(t, err)
	assert.True(t, snap.CapSol.Equal(dec("1.0")))
}

func TestClampNotional(t *testing.T) {
	snap := types.BalanceSnapshot{CapSol: dec("0.4")}

	assert.True(t, ClampNotional(dec("0.25"), snap).Equal(dec("0.25")))
	assert.True(t, ClampNotional(dec("5"), snap).Equal(dec("0.4")))
	assert.True(t, ClampNotional(dec("0.4"), snap).Equal(dec("0.4")))
}
