package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solwatch/buyops/types"
)

// HeartbeatSink receives status events; implementations must not block.
type HeartbeatSink interface {
	Notify(hb types.Heartbeat)
}

// HeartbeatEmitter broadcasts structured status at tick boundaries and on
// the fixed liveness interval.
type HeartbeatEmitter struct {
	mu            sync.RWMutex
	sinks         []HeartbeatSink
	walletAlias   string
	strategyLabel string
}

// NewHeartbeatEmitter creates an emitter stamped with the wallet identity.
func NewHeartbeatEmitter(walletAlias, strategyLabel string) *HeartbeatEmitter {
	return &HeartbeatEmitter{walletAlias: walletAlias, strategyLabel: strategyLabel}
}

// Subscribe adds a sink.
func (e *HeartbeatEmitter) Subscribe(sink HeartbeatSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// Emit stamps and broadcasts a heartbeat.
func (e *HeartbeatEmitter) Emit(hb types.Heartbeat) {
	hb.TS = time.Now()
	hb.WalletAlias = e.walletAlias
	if hb.StrategyLabel == "" {
		hb.StrategyLabel = e.strategyLabel
	}

	log.Info().
		Str("status", hb.Status).
		Str("wallet", hb.WalletAlias).
		Str("strategy", hb.StrategyLabel).
		Int("targets", hb.Targets).
		Int("evaluated", hb.Evaluated).
		Int("buy", hb.Decisions.Buy).
		Int("watch", hb.Decisions.Watch).
		Int("skip", hb.Decisions.Skip).
		Int("errors", hb.Errors).
		Str("note", hb.Note).
		Msg("💓 heartbeat")

	e.mu.RLock()
	sinks := e.sinks
	e.mu.RUnlock()
	for _, sink := range sinks {
		sink.Notify(hb)
	}
}
