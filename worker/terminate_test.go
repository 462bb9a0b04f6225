package worker

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startSleeper launches a child that idles until signalled and reaps it in the
// background so alive() reports liveness, not a zombie.
func startSleeper(t *testing.T, script string) int {
	t.Helper()
	cmd := exec.Command(script)
	require.NoError(t, cmd.Start())
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd.Process.Pid
}

func waitGone(t *testing.T, pid int) {
	t.Helper()
	require.Eventually(t, func() bool { return !alive(pid) }, 3*time.Second, 20*time.Millisecond)
}

func TestTerminateTrackedStopsWorkerWithSigterm(t *testing.T) {
	script := writeScript(t, t.TempDir(), "cooperative.sh", `exec sleep 30`)

	pid := startSleeper(t, script)
	require.True(t, alive(pid))

	TerminateTracked([]DetachedHandle{{PID: pid}}, time.Second)
	waitGone(t, pid)
}

func TestTerminateTrackedEscalatesToSigkill(t *testing.T) {
	script := writeScript(t, t.TempDir(), "stubborn.sh", `trap '' TERM
while :; do sleep 1; done
`)

	pid := startSleeper(t, script)
	require.True(t, alive(pid))

	TerminateTracked([]DetachedHandle{{PID: pid}}, 300*time.Millisecond)
	waitGone(t, pid)
}

func TestTerminateTrackedIdempotentOnExitedHandles(t *testing.T) {
	dir := t.TempDir()

	short := writeScript(t, dir, "short.sh", `exit 0`)
	cmd := exec.Command(short)
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())
	gone := cmd.Process.Pid

	pid := startSleeper(t, writeScript(t, dir, "live.sh", `exec sleep 30`))

	handles := []DetachedHandle{{PID: gone}, {PID: pid}}
	TerminateTracked(handles, time.Second)
	waitGone(t, pid)

	// A second pass over the same handles is a no-op.
	TerminateTracked(handles, 200*time.Millisecond)
	TerminateTracked(nil, time.Second)
}
