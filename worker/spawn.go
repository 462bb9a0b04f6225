package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SPAWN - Fire-and-forget detached workers
// ═══════════════════════════════════════════════════════════════════════════════
//
// The payload goes through a uniquely named temp file rather than a pipe so
// the parent never blocks on the child and the child can outlive it. The
// caller gets a handle immediately and never awaits completion.
//
// ═══════════════════════════════════════════════════════════════════════════════

// DetachedHandle identifies a spawned fire-and-forget worker.
type DetachedHandle struct {
	PID         int
	PayloadFile string
}

// SpawnOptions configures a detached spawn.
type SpawnOptions struct {
	Payload           any
	PayloadFilePrefix string
	Env               []string
}

// SpawnDetached serializes the payload to a temp file and starts workerPath
// in its own session with the file path as its argument.
func SpawnDetached(workerPath string, opts SpawnOptions) (DetachedHandle, error) {
	prefix := opts.PayloadFilePrefix
	if prefix == "" {
		prefix = "worker"
	}

	f, err := os.CreateTemp("", prefix+"-*.json")
	if err != nil {
		return DetachedHandle{}, fmt.Errorf("payload file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(opts.Payload); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return DetachedHandle{}, fmt.Errorf("write payload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return DetachedHandle{}, fmt.Errorf("close payload file: %w", err)
	}

	cmd := exec.Command(workerPath, "--payload-file", f.Name())
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = os.Remove(f.Name())
		return DetachedHandle{}, fmt.Errorf("spawn %s: %w", workerPath, err)
	}

	handle := DetachedHandle{PID: cmd.Process.Pid, PayloadFile: f.Name()}

	// Detach: the child is reparented and reaped by init, not by us.
	_ = cmd.Process.Release()

	log.Debug().
		Int("pid", handle.PID).
		Str("worker", workerPath).
		Str("payload_file", handle.PayloadFile).
		Msg("Detached worker spawned")

	return handle, nil
}

// ReadPayloadFile loads the payload a detached worker was spawned with. The
// file is removed after a successful read; it exists only for the handoff.
func ReadPayloadFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload file: %w", err)
	}
	_ = os.Remove(path)
	return nil
}

// DetachedSet tracks spawned handles so an external cancellation can
// terminate everything still running.
type DetachedSet struct {
	mu      sync.Mutex
	handles []DetachedHandle
}

// Add records a handle for later termination.
func (s *DetachedSet) Add(h DetachedHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, h)
}

// Drain returns and clears the tracked handles.
func (s *DetachedSet) Drain() []DetachedHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.handles
	s.handles = nil
	return out
}
