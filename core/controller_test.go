package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

func TestControllerStartStopLifecycle(t *testing.T) {
	sink := &recordingSink{}
	emitter := NewHeartbeatEmitter("primary", "auto")
	emitter.Subscribe(sink)

	opts := tickOptions(&fakeTargets{}, &fakePositions{}, &fakeOracle{}, &fakeExecutor{})
	opts.TickInterval = 20 * time.Millisecond
	opts.Heartbeat = emitter
	c := NewController(opts)

	c.Start()
	time.Sleep(80 * time.Millisecond)
	result := c.Stop("test shutdown")

	assert.Equal(t, "stopped", result.Status)
	assert.Equal(t, "test shutdown", result.Reason)

	statuses := sink.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, types.HeartbeatStarting, statuses[0])

	idle := 0
	for _, s := range statuses[1:] {
		if s == types.HeartbeatIdle {
			idle++
		}
	}
	assert.GreaterOrEqual(t, idle, 2, "expected repeated idle ticks, got %v", statuses)
}

func TestControllerStopIsIdempotent(t *testing.T) {
	c := NewController(tickOptions(&fakeTargets{}, &fakePositions{}, &fakeOracle{}, &fakeExecutor{}))
	c.Start()

	first := c.Stop("first")
	second := c.Stop("second")
	assert.Equal(t, "stopped", first.Status)
	assert.Equal(t, "stopped", second.Status)
}

func TestControllerSuppressesOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	oracle := &fakeOracle{fn: func(req worker.EvaluateRequest) (*worker.EvaluateResponse, error) {
		<-release
		return skipResponse(), nil
	}}
	targets := &fakeTargets{targets: []types.Target{watchTarget("mint-a")}}
	positions := &fakePositions{}

	opts := tickOptions(targets, positions, oracle, &fakeExecutor{})
	opts.TickInterval = 10 * time.Millisecond
	opts.TickTimeoutBudget = 5 * time.Millisecond
	c := NewController(opts)

	c.Start()
	time.Sleep(100 * time.Millisecond)

	// The first tick is still blocked inside the oracle, so no further
	// evaluations may have started.
	oracle.mu.Lock()
	calls := oracle.calls
	oracle.mu.Unlock()
	assert.Equal(t, 1, calls)

	close(release)
	c.Stop("done")
}

func TestControllerLivenessHeartbeatIndependentOfTicks(t *testing.T) {
	sink := &recordingSink{}
	emitter := NewHeartbeatEmitter("primary", "")
	emitter.Subscribe(sink)

	opts := tickOptions(&fakeTargets{}, &fakePositions{}, &fakeOracle{}, &fakeExecutor{})
	opts.TickInterval = time.Hour // ticks effectively disabled after the first
	opts.LivenessInterval = 15 * time.Millisecond
	opts.Heartbeat = emitter
	c := NewController(opts)

	c.Start()
	time.Sleep(60 * time.Millisecond)
	c.Stop("done")

	alive := 0
	for _, s := range sink.statuses() {
		if s == types.HeartbeatAlive {
			alive++
		}
	}
	assert.GreaterOrEqual(t, alive, 2)
}

func TestHeartbeatEmitterStampsIdentity(t *testing.T) {
	sink := &recordingSink{}
	emitter := NewHeartbeatEmitter("primary", "auto")
	emitter.Subscribe(sink)

	emitter.Emit(types.Heartbeat{Status: types.HeartbeatIdle})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, "primary", sink.events[0].WalletAlias)
	assert.Equal(t, "auto", sink.events[0].StrategyLabel)
	assert.False(t, sink.events[0].TS.IsZero())
}

func TestNewControllerDefaults(t *testing.T) {
	c := NewController(Options{
		Targets:   &fakeTargets{},
		Positions: &fakePositions{},
		Wallet:    &fakeWallet{wallet: testWallet()},
		Oracle:    &fakeOracle{},
		Executor:  &fakeExecutor{},
	})

	assert.Equal(t, 1, c.opts.EvalConcurrency)
	assert.Equal(t, 15*time.Second, c.opts.TickInterval)
	assert.Equal(t, time.Minute, c.opts.LivenessInterval)
	assert.Nil(t, c.allocator, "no balance provider disables the allocator")
}
