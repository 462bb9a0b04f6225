package worker

import (
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TERMINATE - Graceful shutdown of detached workers
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultGrace is the window between SIGTERM and SIGKILL.
const DefaultGrace = 2 * time.Second

// TerminateTracked asks every handle to exit with SIGTERM, waits up to grace,
// then SIGKILLs whatever is still alive. Safe to call with handles that have
// already exited, and safe to call more than once.
func TerminateTracked(handles []DetachedHandle, grace time.Duration) {
	if len(handles) == 0 {
		return
	}
	if grace <= 0 {
		grace = DefaultGrace
	}

	pending := make(map[int]bool, len(handles))
	for _, h := range handles {
		if err := syscall.Kill(h.PID, syscall.SIGTERM); err != nil {
			// Already gone.
			continue
		}
		pending[h.PID] = true
	}

	deadline := time.Now().Add(grace)
	for len(pending) > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		for pid := range pending {
			if !alive(pid) {
				delete(pending, pid)
			}
		}
	}

	for pid := range pending {
		log.Warn().Int("pid", pid).Msg("Worker ignored SIGTERM - escalating to SIGKILL")
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

// alive reports whether a signal can still be delivered to pid.
func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
