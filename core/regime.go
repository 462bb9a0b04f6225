package core

import (
	"strings"
	"sync"
	"time"

	"github.com/solwatch/buyops/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REGIME CONFIRMATION GATE
// ═══════════════════════════════════════════════════════════════════════════════
//
// One noisy trend_up bar is not a regime. A buy needs the oracle to report
// trend_up on the required number of consecutive ticks; anything else resets
// the streak, and a long gap between observations restarts it at 1.
//
// ═══════════════════════════════════════════════════════════════════════════════

type streak struct {
	count int
	last  time.Time
}

// RegimeGate tracks per-target confirmation streaks.
type RegimeGate struct {
	mu          sync.Mutex
	required    int
	resetWindow time.Duration
	streaks     map[string]*streak
	now         func() time.Time
}

// NewRegimeGate creates a gate requiring `required` consecutive trend_up
// observations within the reset window.
func NewRegimeGate(required int, resetWindow time.Duration) *RegimeGate {
	if required < 1 {
		required = 1
	}
	return &RegimeGate{
		required:    required,
		resetWindow: resetWindow,
		streaks:     make(map[string]*streak),
		now:         time.Now,
	}
}

// Observe folds one regime classification into the target's streak and
// returns the updated count.
func (g *RegimeGate) Observe(mint, regimeStatus string) int {
	key := normalizeMint(mint)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	s, ok := g.streaks[key]
	if !ok {
		s = &streak{}
		g.streaks[key] = s
	}

	if regimeStatus != types.RegimeTrendUp {
		s.count = 0
		s.last = now
		return 0
	}

	if s.count > 0 && now.Sub(s.last) > g.resetWindow {
		// Stale streak: this observation starts over, it does not extend.
		s.count = 1
	} else {
		s.count++
	}
	s.last = now
	return s.count
}

// Confirmed reports whether a streak count clears the gate.
func (g *RegimeGate) Confirmed(count int) bool {
	return count >= g.required
}

// Required returns the configured confirmation tick count.
func (g *RegimeGate) Required() int {
	return g.required
}

// normalizeMint trims surrounding whitespace only. Base58 addresses are
// case-sensitive, so mints differing in case are distinct keys.
func normalizeMint(mint string) string {
	return strings.TrimSpace(mint)
}
