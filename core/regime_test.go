package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solwatch/buyops/types"
)

func TestRegimeGateStreakGrowsOnConsecutiveTrendUp(t *testing.T) {
	g := NewRegimeGate(3, 2*time.Minute)

	assert.Equal(t, 1, g.Observe("MintA", types.RegimeTrendUp))
	assert.Equal(t, 2, g.Observe("MintA", types.RegimeTrendUp))
	assert.Equal(t, 3, g.Observe("MintA", types.RegimeTrendUp))

	assert.False(t, g.Confirmed(2))
	assert.True(t, g.Confirmed(3))
	assert.True(t, g.Confirmed(4))
}

func TestRegimeGateResetsOnNonTrendUp(t *testing.T) {
	g := NewRegimeGate(3, 2*time.Minute)

	g.Observe("mint", types.RegimeTrendUp)
	g.Observe("mint", types.RegimeTrendUp)

	assert.Equal(t, 0, g.Observe("mint", types.RegimeFlat))
	assert.Equal(t, 1, g.Observe("mint", types.RegimeTrendUp))

	assert.Equal(t, 0, g.Observe("mint", types.RegimeTrendDown))
	assert.Equal(t, 1, g.Observe("mint", types.RegimeTrendUp))
}

func TestRegimeGateStaleStreakRestartsAtOne(t *testing.T) {
	g := NewRegimeGate(3, 2*time.Minute)

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }

	assert.Equal(t, 1, g.Observe("mint", types.RegimeTrendUp))
	clock = clock.Add(15 * time.Second)
	assert.Equal(t, 2, g.Observe("mint", types.RegimeTrendUp))

	// Past the reset window the observation starts a fresh streak rather
	// than extending the stale one.
	clock = clock.Add(3 * time.Minute)
	assert.Equal(t, 1, g.Observe("mint", types.RegimeTrendUp))
	clock = clock.Add(15 * time.Second)
	assert.Equal(t, 2, g.Observe("mint", types.RegimeTrendUp))
}

func TestRegimeGateTracksMintsIndependently(t *testing.T) {
	g := NewRegimeGate(2, 2*time.Minute)

	assert.Equal(t, 1, g.Observe("mint-a", types.RegimeTrendUp))
	assert.Equal(t, 1, g.Observe("mint-b", types.RegimeTrendUp))
	assert.Equal(t, 0, g.Observe("mint-b", types.RegimeFlat))
	assert.Equal(t, 2, g.Observe("mint-a", types.RegimeTrendUp))
}

func TestRegimeGateNormalizesMintKeys(t *testing.T) {
	g := NewRegimeGate(3, 2*time.Minute)

	assert.Equal(t, 1, g.Observe("MintXYZ", types.RegimeTrendUp))
	assert.Equal(t, 2, g.Observe("  MintXYZ ", types.RegimeTrendUp))

	// Base58 is case-sensitive; a different case is a different mint.
	assert.Equal(t, 1, g.Observe("mintxyz", types.RegimeTrendUp))
}

func TestRegimeGateMinimumRequiredIsOne(t *testing.T) {
	g := NewRegimeGate(0, 2*time.Minute)
	assert.Equal(t, 1, g.Required())
	assert.True(t, g.Confirmed(1))
	assert.False(t, g.Confirmed(0))
}
