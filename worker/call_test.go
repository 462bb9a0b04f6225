package worker

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell worker into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func readPID(t *testing.T, path string) int {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	return pid
}

func TestCallWithTimeoutRoundTrip(t *testing.T) {
	script := writeScript(t, t.TempDir(), "echo-worker.sh", `read line
printf '%s\n' '{"kind":"evaluate","id":"call-1","ok":true,"payload":{"decision":"watch"}}'
`)

	req, err := NewRequest(KindEvaluate, "call-1", EvaluateRequest{MinScore: 65})
	require.NoError(t, err)

	resp, err := CallWithTimeout(context.Background(), script, req, CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	var eval EvaluateResponse
	require.NoError(t, resp.Decode(KindEvaluate, "call-1", &eval))
	assert.Equal(t, "watch", eval.Decision)
}

func TestCallWithTimeoutRejectsMismatchedCorrelationID(t *testing.T) {
	script := writeScript(t, t.TempDir(), "rogue-worker.sh", `read line
printf '%s\n' '{"kind":"evaluate","id":"someone-else","ok":true,"payload":{}}'
`)

	req, err := NewRequest(KindEvaluate, "call-2", EvaluateRequest{})
	require.NoError(t, err)

	_, err = CallWithTimeout(context.Background(), script, req, CallOptions{Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"someone-else"`)
}

func TestCallWithTimeoutKillsAndReapsHungWorker(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "worker.pid")
	script := writeScript(t, dir, "hung-worker.sh", `echo $$ > "$PID_FILE"
exec sleep 30
`)

	req, err := NewRequest(KindEvaluate, "call-3", EvaluateRequest{})
	require.NoError(t, err)

	_, err = CallWithTimeout(context.Background(), script, req, CallOptions{
		Timeout: 200 * time.Millisecond,
		Env:     []string{"PID_FILE=" + pidFile},
	})
	require.ErrorIs(t, err, ErrCallTimeout)

	// Killed and reaped before the call returned: signal 0 must not deliver.
	pid := readPID(t, pidFile)
	assert.Error(t, syscall.Kill(pid, 0), "timed-out worker left in the process table")
}

func TestCallWithTimeoutKillsWorkerOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "worker.pid")
	script := writeScript(t, dir, "slow-worker.sh", `echo $$ > "$PID_FILE"
exec sleep 30
`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	req, err := NewRequest(KindEvaluate, "call-4", EvaluateRequest{})
	require.NoError(t, err)

	_, err = CallWithTimeout(ctx, script, req, CallOptions{
		Timeout: time.Minute,
		Env:     []string{"PID_FILE=" + pidFile},
	})
	require.ErrorIs(t, err, context.Canceled)

	pid := readPID(t, pidFile)
	assert.Error(t, syscall.Kill(pid, 0))
}
