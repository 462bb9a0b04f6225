package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CALL - Timeout-bounded request/response worker invocation
// ═══════════════════════════════════════════════════════════════════════════════
//
// One process per call: the worker gets the request on stdin, writes exactly
// one response line on stdout and exits. A hung or pathological worker cannot
// stall the scheduler; on timeout the process is killed and reaped, never
// abandoned.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrCallTimeout marks a worker call that exceeded its deadline.
var ErrCallTimeout = errors.New("worker call timed out")

// CallOptions configures a single worker call.
type CallOptions struct {
	// Env entries ("KEY=value") appended to the parent environment.
	Env []string
	// Timeout bounds the whole call: spawn, request, response.
	Timeout time.Duration
}

// CallWithTimeout starts workerPath, sends req on stdin and awaits exactly one
// response envelope on stdout. Worker stderr is inherited so its logs surface
// in the parent's stream.
func CallWithTimeout(ctx context.Context, workerPath string, req Request, opts CallOptions) (*Response, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	cmd := exec.Command(workerPath)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", workerPath, err)
	}

	started := time.Now()

	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		enc := json.NewEncoder(stdin)
		if err := enc.Encode(req); err != nil {
			done <- outcome{err: fmt.Errorf("send request: %w", err)}
			return
		}
		_ = stdin.Close()

		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				done <- outcome{err: fmt.Errorf("read response: %w", err)}
				return
			}
			done <- outcome{err: errors.New("worker exited without a response")}
			return
		}

		var resp Response
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			done <- outcome{err: fmt.Errorf("malformed response: %w", err)}
			return
		}
		done <- outcome{resp: &resp}
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		// Reap regardless of outcome; the worker exits after one response.
		waitErr := cmd.Wait()
		if out.err != nil {
			return nil, out.err
		}
		if waitErr != nil && !out.resp.OK {
			log.Debug().Err(waitErr).Str("worker", workerPath).Msg("worker exited non-zero")
		}
		if err := out.resp.Validate(req.Kind, req.ID); err != nil {
			return nil, err
		}
		return out.resp, nil

	case <-ctx.Done():
		killAndReap(cmd)
		return nil, ctx.Err()

	case <-timer.C:
		killAndReap(cmd)
		log.Warn().
			Str("worker", workerPath).
			Str("kind", string(req.Kind)).
			Dur("elapsed", time.Since(started)).
			Msg("⏱️ Worker call timed out - process killed")
		return nil, fmt.Errorf("%w after %s", ErrCallTimeout, opts.Timeout)
	}
}

// killAndReap force-terminates the worker and collects its exit status so the
// process table entry is released.
func killAndReap(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()
}
