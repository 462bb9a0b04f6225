package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/buyops/worker"
)

func TestMonitorSkipsDryRunSwaps(t *testing.T) {
	payload := worker.SwapMonitorPayload{
		TxID:    "DRY_7a1b",
		Mint:    "mint-a",
		Monitor: map[string]any{"dryRun": true},
	}

	start := time.Now()
	err := monitor(context.Background(), payload, &worker.Tracker{})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "a fabricated txid must not be polled")
}

func TestMonitorRejectsEmptyTxID(t *testing.T) {
	err := monitor(context.Background(), worker.SwapMonitorPayload{}, &worker.Tracker{})
	assert.Error(t, err)
}
