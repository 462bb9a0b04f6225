package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSleep(record *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*record = append(*record, d)
		return nil
	}
}

func TestDoStopsOnFirstMatch(t *testing.T) {
	var slept []time.Duration
	p := Policy{Schedule: ReconcileSchedule, Sleep: fakeSleep(&slept)}

	attempts := 0
	done, err := p.Do(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		attempts = attempt
		return attempt == 3, nil
	})

	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, ReconcileSchedule[:3], slept)
}

func TestDoExhaustsScheduleAndGivesUp(t *testing.T) {
	var slept []time.Duration
	gaveUp := false
	p := Policy{
		Schedule: ReconcileSchedule,
		OnGiveUp: func() { gaveUp = true },
		Sleep:    fakeSleep(&slept),
	}

	attempts := 0
	done, err := p.Do(context.Background(), func(_ context.Context, _ int) (bool, error) {
		attempts++
		return false, nil
	})

	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, gaveUp)
	assert.Equal(t, 6, attempts)
	assert.Equal(t, []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		1500 * time.Millisecond,
		2 * time.Second,
		3 * time.Second,
	}, slept)
}

func TestDoProbeErrorsDoNotAbort(t *testing.T) {
	var slept []time.Duration
	p := Policy{Schedule: ReconcileSchedule, Sleep: fakeSleep(&slept)}

	probeErr := errors.New("store unavailable")
	attempts := 0
	done, err := p.Do(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		attempts++
		if attempt < 4 {
			return false, probeErr
		}
		return true, nil
	})

	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 4, attempts)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{Schedule: ReconcileSchedule}
	done, err := p.Do(ctx, func(_ context.Context, _ int) (bool, error) {
		t.Fatal("probe should not run after cancellation")
		return false, nil
	})

	assert.False(t, done)
	assert.ErrorIs(t, err, context.Canceled)
}
